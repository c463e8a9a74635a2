package observer

import (
	"math"

	"github.com/emdrive/drivesim/internal/spacevec"
)

// PLL is a synchronous-reference-frame phase-locked loop tracking the
// angle and angular frequency of the grid voltage vector.
type PLL struct {
	Alpha float64 // tracking bandwidth, rad/s
	UNom  float64 // nominal voltage magnitude for error normalization

	theta float64
	w     float64
}

// NewPLL returns a PLL seeded at the given initial frequency (typically
// the nominal grid frequency, so lock is immediate at startup).
func NewPLL(alpha, uNom, w0 float64) *PLL {
	return &PLL{Alpha: alpha, UNom: uNom, w: w0}
}

// Angle returns the grid-angle estimate for the upcoming sampling
// instant: Update integrates the estimate one period past the sample it
// assimilates, so a controller reads the angle first and updates after
// computing its output.
func (p *PLL) Angle() float64     { return p.theta }
func (p *PLL) Frequency() float64 { return p.w }

// Update assimilates the grid voltage vector measured at the current
// sampling instant and advances the estimate by one period.
func (p *PLL) Update(ts float64, ug complex128) {
	u := spacevec.Rotate(ug, -p.theta)
	eps := imag(u) / p.UNom
	p.w += ts * p.Alpha * p.Alpha * eps
	p.theta = wrapAngle(p.theta + ts*(p.w+2*p.Alpha*eps))
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
