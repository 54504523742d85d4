// Package optimizer orders trains contending for shared track sections.
//
// Four strategies are available: a priority heuristic, an ant colony search
// (ACO), a genetic algorithm (GA) and the hybrid pipeline that chains them,
// threading each stage's best ordering into the next one as a seed. Every
// strategy works on a Problem, an immutable index built once from the raw
// train, section and usage records, and returns a model.OptimizationResult.
//
// All scores follow the same convention: lower is better.
package optimizer
