package model

import "fmt"

// GridFilter is the AC-side filter of a grid-connected converter.
type GridFilter interface {
	Dim() int
	InitialState() []float64
	// Current returns the converter-side current.
	Current(x []float64) complex128
	// GridCurrent returns the current injected into the grid.
	GridCurrent(x []float64) complex128
	Derivative(dst, x []float64, uc, ug complex128)
}

// GridCurrent implements GridFilter for LFilter; with a plain L filter
// the converter and grid currents coincide.
func (f *LFilter) GridCurrent(x []float64) complex128 { return f.Current(x) }

// GridConverter composes an inverter, an AC filter and a stiff grid
// source into one differential system. Signal flow: DC link ->
// inverter -> filter -> grid.
type GridConverter struct {
	Converter Inverter
	DC        DCLink
	Filter    GridFilter
	Grid      func(t float64) complex128 // grid voltage space vector

	q complex128
	x []float64

	fOff, dcOff int
	dim         int
}

func NewGridConverter(dc DCLink, filter GridFilter, grid func(float64) complex128) (*GridConverter, error) {
	switch {
	case dc == nil:
		return nil, fmt.Errorf("grid converter: DC link is required")
	case filter == nil:
		return nil, fmt.Errorf("grid converter: filter is required")
	case grid == nil:
		return nil, fmt.Errorf("grid converter: grid voltage function is required")
	}
	g := &GridConverter{DC: dc, Filter: filter, Grid: grid}
	g.fOff = 0
	g.dcOff = filter.Dim()
	g.dim = g.dcOff + dc.Dim()
	g.x = make([]float64, g.dim)
	copy(g.x[g.fOff:], filter.InitialState())
	copy(g.x[g.dcOff:], dc.InitialState())
	return g, nil
}

func (g *GridConverter) Dim() int                  { return g.dim }
func (g *GridConverter) State() []float64          { return g.x }
func (g *GridConverter) SetSwitching(q complex128) { g.q = q }

func (g *GridConverter) Derivative(dst []float64, t float64, x []float64) {
	xf := x[g.fOff : g.fOff+g.Filter.Dim()]
	xdc := x[g.dcOff:]
	uDC := g.DC.Voltage(xdc)
	uConv := g.Converter.ACVoltage(g.q, uDC)
	g.Filter.Derivative(dst[g.fOff:], xf, uConv, g.Grid(t))
	g.DC.Derivative(dst[g.dcOff:], xdc, g.Converter.DCCurrent(g.q, g.Filter.Current(xf)), t)
}

func (g *GridConverter) Measure(t float64) Measurement {
	xf := g.x[g.fOff : g.fOff+g.Filter.Dim()]
	m := Measurement{
		Is:  g.Filter.Current(xf),
		IG:  g.Filter.GridCurrent(xf),
		UG:  g.Grid(t),
		UDC: g.DC.Voltage(g.x[g.dcOff:]),
	}
	if lcl, ok := g.Filter.(*LCLFilter); ok {
		m.UF = lcl.CapVoltage(xf)
	}
	return m
}
