package repository

import "time"

// queryTimer receives per-query latency observations.
type queryTimer interface {
	ObserveDBQuery(label string, duration time.Duration)
}
