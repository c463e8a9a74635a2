package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// Saturation maps stator flux magnitude to the magnetizing inductance
// of an induction machine Gamma model. Implementations must be defined
// at zero flux; the zero limit is the unsaturated inductance.
type Saturation interface {
	Inductance(psiAbs float64) float64
}

// ConstantInductance is the linear magnetic model.
type ConstantInductance float64

func (l ConstantInductance) Inductance(float64) float64 { return float64(l) }

// PowerLaw models main-flux saturation as L(psi) = Lu/(1 + (beta*|psi|)^S).
type PowerLaw struct {
	Lu   float64 // unsaturated inductance
	Beta float64 // inverse of the flux where saturation sets in
	S    float64 // sharpness exponent
}

func (p PowerLaw) Inductance(psiAbs float64) float64 {
	return p.Lu / (1 + math.Pow(p.Beta*math.Abs(psiAbs), p.S))
}

// LUT interpolates measured (flux, inductance) samples with a
// piecewise-linear predictor. Outside the sampled range the nearest
// endpoint value is held, so the zero-flux limit is the first sample.
type LUT struct {
	pl  interp.PiecewiseLinear
	min float64
	max float64
}

// NewLUT fits a look-up table from flux magnitudes (ascending, starting
// at or near zero) to inductance values. The samples must describe a
// locally invertible flux-current relation in the operating region.
func NewLUT(psi, l []float64) (*LUT, error) {
	if len(psi) < 2 || len(psi) != len(l) {
		return nil, fmt.Errorf("saturation lut: need matching sample slices of length >= 2, got %d and %d", len(psi), len(l))
	}
	for _, v := range l {
		if v <= 0 {
			return nil, fmt.Errorf("saturation lut: inductance samples must be positive, got %g", v)
		}
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(psi, l); err != nil {
		return nil, fmt.Errorf("saturation lut: %w", err)
	}
	return &LUT{pl: pl, min: psi[0], max: psi[len(psi)-1]}, nil
}

func (t *LUT) Inductance(psiAbs float64) float64 {
	x := math.Abs(psiAbs)
	if x < t.min {
		x = t.min
	}
	if x > t.max {
		x = t.max
	}
	return t.pl.Predict(x)
}
