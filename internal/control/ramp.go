package control

import "math"

// RateLimiter ramps a reference toward its target with a bounded rate
// of change, the usual front end of a speed or frequency reference.
type RateLimiter struct {
	Rate float64 // maximum |d(value)/dt|; non-positive disables limiting
	val  float64
}

func NewRateLimiter(rate, initial float64) *RateLimiter {
	return &RateLimiter{Rate: rate, val: initial}
}

func (r *RateLimiter) Value() float64 { return r.val }

// Step advances the internal value toward ref over one period.
func (r *RateLimiter) Step(ts, ref float64) float64 {
	if r.Rate <= 0 {
		r.val = ref
		return r.val
	}
	d := ref - r.val
	lim := r.Rate * ts
	r.val += math.Max(-lim, math.Min(lim, d))
	return r.val
}
