// Package pwm implements switching-instant-exact carrier comparison.
// Given duty ratios and a sampling period it constructs the switching
// sequence a triangular-carrier modulator would produce, analytically,
// without root-finding.
package pwm

import (
	"math"
	"sort"
)

// DefaultLevels is the default duty-ratio quantization resolution.
const DefaultLevels = 4096

// Segment is one piece of a switching sequence: a duration and the
// three-phase switching state held during it.
type Segment struct {
	Dur float64
	Q   [3]int
}

// CarrierComparison converts duty ratios into switching sequences. The
// carrier free-runs as a triangle across calls, so the only mutable
// state is the carrier direction for the upcoming period. The first
// call uses a falling carrier.
type CarrierComparison struct {
	levels int
	rising bool
}

// New returns a carrier comparator with the given quantization level
// count; levels <= 0 selects DefaultLevels.
func New(levels int) *CarrierComparison {
	if levels <= 0 {
		levels = DefaultLevels
	}
	return &CarrierComparison{levels: levels}
}

// Sequence returns the switching sequence for one sampling period. Duty
// ratios are clipped to [0, 1] and quantized to the configured number
// of levels; the segment durations sum to ts up to quantization
// rounding. Ties across phases merge into a single switching instant.
func (c *CarrierComparison) Sequence(ts float64, d [3]float64) []Segment {
	n := c.levels
	var m [3]int
	for k := 0; k < 3; k++ {
		v := math.Round(d[k] * float64(n))
		if v < 0 {
			v = 0
		}
		if v > float64(n) {
			v = float64(n)
		}
		m[k] = int(v)
	}

	// Initial state and toggle instants, in carrier ticks. With a
	// rising carrier a phase starts high and switches off at m[k]; with
	// a falling carrier it starts low and switches on at n-m[k].
	// Instants at 0 or n never fire: they are folded into the initial
	// state (duty exactly 0 or 1 yields no switching).
	var q [3]int
	type toggle struct{ tick, phase int }
	var toggles []toggle
	for k := 0; k < 3; k++ {
		if c.rising {
			if m[k] > 0 {
				q[k] = 1
			}
			if m[k] > 0 && m[k] < n {
				toggles = append(toggles, toggle{m[k], k})
			}
		} else {
			if m[k] == n {
				q[k] = 1
			}
			if t := n - m[k]; t > 0 && t < n {
				toggles = append(toggles, toggle{t, k})
			}
		}
	}
	c.rising = !c.rising

	sort.Slice(toggles, func(i, j int) bool { return toggles[i].tick < toggles[j].tick })

	tick := ts / float64(n)
	segs := make([]Segment, 0, 4)
	prev := 0
	for i := 0; i < len(toggles); {
		tk := toggles[i].tick
		if tk > prev {
			segs = append(segs, Segment{Dur: float64(tk-prev) * tick, Q: q})
			prev = tk
		}
		for i < len(toggles) && toggles[i].tick == tk {
			q[toggles[i].phase] ^= 1
			i++
		}
	}
	segs = append(segs, Segment{Dur: float64(n-prev) * tick, Q: q})
	return segs
}
