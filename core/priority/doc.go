// Package priority scores how urgently a train should be favoured when it
// contends for track. Scores follow the lower-is-more-urgent convention used
// across the optimizers: a base level taken from the train type table (capped
// by any declared priority), scaled by a time-of-day factor and increased by a
// bounded penalty for accumulated delay.
package priority
