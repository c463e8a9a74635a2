package model

import "fmt"

// LFilter is an inductive grid filter. State: converter current.
type LFilter struct {
	L float64
	R float64
}

func NewLFilter(l, r float64) (*LFilter, error) {
	if l <= 0 {
		return nil, fmt.Errorf("l filter: L must be positive, got %g", l)
	}
	return &LFilter{L: l, R: r}, nil
}

func (f *LFilter) Dim() int                { return 2 }
func (f *LFilter) InitialState() []float64 { return []float64{0, 0} }

func (f *LFilter) Current(x []float64) complex128 { return unpackComplex(x, 0) }

func (f *LFilter) Derivative(dst, x []float64, uc, ug complex128) {
	i := unpackComplex(x, 0)
	packComplex(dst, 0, (uc-ug-complex(f.R, 0)*i)/complex(f.L, 0))
}

// LCFilter sits between a drive inverter and the machine terminals.
// State: converter current and capacitor voltage; the machine current
// is a declared input.
type LCFilter struct {
	L float64
	C float64
	R float64 // series resistance of the inductor
}

func NewLCFilter(l, c, r float64) (*LCFilter, error) {
	if l <= 0 || c <= 0 {
		return nil, fmt.Errorf("lc filter: L and C must be positive, got L=%g C=%g", l, c)
	}
	return &LCFilter{L: l, C: c, R: r}, nil
}

func (f *LCFilter) Dim() int                { return 4 }
func (f *LCFilter) InitialState() []float64 { return []float64{0, 0, 0, 0} }

func (f *LCFilter) Current(x []float64) complex128    { return unpackComplex(x, 0) }
func (f *LCFilter) CapVoltage(x []float64) complex128 { return unpackComplex(x, 2) }

func (f *LCFilter) Derivative(dst, x []float64, uc, is complex128) {
	ic := unpackComplex(x, 0)
	uf := unpackComplex(x, 2)
	packComplex(dst, 0, (uc-uf-complex(f.R, 0)*ic)/complex(f.L, 0))
	packComplex(dst, 2, (ic-is)/complex(f.C, 0))
}

// LCLFilter is the standard grid-converter output filter. State:
// converter current, capacitor voltage and grid current.
type LCLFilter struct {
	LC float64 // converter-side inductance
	RC float64
	CF float64
	LG float64 // grid-side inductance
	RG float64
}

func NewLCLFilter(lc, rc, cf, lg, rg float64) (*LCLFilter, error) {
	if lc <= 0 || cf <= 0 || lg <= 0 {
		return nil, fmt.Errorf("lcl filter: inductances and capacitance must be positive, got LC=%g CF=%g LG=%g", lc, cf, lg)
	}
	return &LCLFilter{LC: lc, RC: rc, CF: cf, LG: lg, RG: rg}, nil
}

func (f *LCLFilter) Dim() int                { return 6 }
func (f *LCLFilter) InitialState() []float64 { return make([]float64, 6) }

func (f *LCLFilter) Current(x []float64) complex128     { return unpackComplex(x, 0) }
func (f *LCLFilter) CapVoltage(x []float64) complex128  { return unpackComplex(x, 2) }
func (f *LCLFilter) GridCurrent(x []float64) complex128 { return unpackComplex(x, 4) }

func (f *LCLFilter) Derivative(dst, x []float64, uc, ug complex128) {
	ic := unpackComplex(x, 0)
	uf := unpackComplex(x, 2)
	ig := unpackComplex(x, 4)
	packComplex(dst, 0, (uc-uf-complex(f.RC, 0)*ic)/complex(f.LC, 0))
	packComplex(dst, 2, (ic-ig)/complex(f.CF, 0))
	packComplex(dst, 4, (uf-ug-complex(f.RG, 0)*ig)/complex(f.LG, 0))
}
