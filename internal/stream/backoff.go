package stream

import "time"

// reconnectDelay computes the wait before redial attempt (1-based):
// min(base * 2^(attempt-1), max), multiplied by penalty when the previous
// failure was an abnormal closure. The doubling is capped as it goes, so
// large attempt numbers cannot overflow.
func reconnectDelay(base, max time.Duration, attempt int, abnormal bool, penalty float64) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	d := base
	for i := 1; i < attempt; i++ {
		d <<= 1
		if d >= max || d <= 0 {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	if abnormal && penalty > 1 {
		d = time.Duration(float64(d) * penalty)
	}
	return d
}
