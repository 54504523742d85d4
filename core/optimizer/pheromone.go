package optimizer

// PheromoneFloor is the lowest weight evaporation can leave on an edge.
const PheromoneFloor = 0.1

const initialPheromone = 1.0

// pheromones is a dense matrix over ordered train pairs, indexed by problem
// position.
type pheromones struct {
	n int
	w []float64
}

func newPheromones(n int) *pheromones {
	m := &pheromones{n: n, w: make([]float64, n*n)}
	for i := range m.w {
		m.w[i] = initialPheromone
	}
	return m
}

func (m *pheromones) at(i, j int) float64 { return m.w[i*m.n+j] }

// evaporate scales every weight by (1 - rate), never below PheromoneFloor.
func (m *pheromones) evaporate(rate float64) {
	for k, v := range m.w {
		v *= 1 - rate
		if v < PheromoneFloor {
			v = PheromoneFloor
		}
		m.w[k] = v
	}
}

// deposit reinforces consecutive edges of order by 1/score. A zero score is
// skipped.
func (m *pheromones) deposit(order []int, score float64) {
	if score <= 0 {
		return
	}
	for k := 0; k+1 < len(order); k++ {
		m.w[order[k]*m.n+order[k+1]] += 1 / score
	}
}

// min returns the smallest weight.
func (m *pheromones) min() float64 {
	lo := m.w[0]
	for _, v := range m.w[1:] {
		if v < lo {
			lo = v
		}
	}
	return lo
}
