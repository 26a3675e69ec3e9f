package transport

import "time"

// BackoffConfig defines reconnect delays: Initial, doubled per attempt up
// to Max. Attempts bounds the number of dials; zero means unlimited.
type BackoffConfig struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	d := b.Initial
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
