package model

import "fmt"

// Drive composes an inverter, an optional LC output filter, a machine
// and a mechanical load into one differential system. The signal-flow
// order is fixed: DC link -> inverter -> (filter) -> machine ->
// mechanics; there are no algebraic loops. State packing offsets are
// resolved here, once, and reused every derivative evaluation.
type Drive struct {
	Machine   Machine
	Mechanics Mechanics
	Converter Inverter
	DC        DCLink
	Filter    *LCFilter // nil for a direct machine connection

	q complex128
	x []float64

	mOff, mechOff, fOff, dcOff int
	dim                        int
}

// NewDrive wires the subsystems and allocates the composite state.
func NewDrive(machine Machine, mech Mechanics, dc DCLink, filter *LCFilter) (*Drive, error) {
	switch {
	case machine == nil:
		return nil, fmt.Errorf("drive: machine is required")
	case mech == nil:
		return nil, fmt.Errorf("drive: mechanics is required")
	case dc == nil:
		return nil, fmt.Errorf("drive: DC link is required")
	}
	d := &Drive{Machine: machine, Mechanics: mech, DC: dc, Filter: filter}
	d.mOff = 0
	d.mechOff = d.mOff + machine.Dim()
	d.fOff = d.mechOff + mech.Dim()
	fDim := 0
	if filter != nil {
		fDim = filter.Dim()
	}
	d.dcOff = d.fOff + fDim
	d.dim = d.dcOff + dc.Dim()

	d.x = make([]float64, d.dim)
	copy(d.x[d.mOff:], machine.InitialState())
	copy(d.x[d.mechOff:], mech.InitialState())
	if filter != nil {
		copy(d.x[d.fOff:], filter.InitialState())
	}
	copy(d.x[d.dcOff:], dc.InitialState())
	return d, nil
}

func (d *Drive) Dim() int                  { return d.dim }
func (d *Drive) State() []float64          { return d.x }
func (d *Drive) SetSwitching(q complex128) { d.q = q }

// SetInitialSpeed presets both the mechanics and, for a synchronous
// machine, nothing further; mainly for steady-state test setups.
func (d *Drive) SetInitialSpeed(wM float64) { d.x[d.mechOff] = wM }

func (d *Drive) Derivative(dst []float64, t float64, x []float64) {
	xm := x[d.mOff : d.mOff+d.Machine.Dim()]
	xmech := x[d.mechOff : d.mechOff+d.Mechanics.Dim()]
	xdc := x[d.dcOff:]

	uDC := d.DC.Voltage(xdc)
	uConv := d.Converter.ACVoltage(d.q, uDC)
	is := d.Machine.Current(xm)

	us := uConv
	iConv := is
	if d.Filter != nil {
		xf := x[d.fOff : d.fOff+d.Filter.Dim()]
		us = d.Filter.CapVoltage(xf)
		iConv = d.Filter.Current(xf)
		d.Filter.Derivative(dst[d.fOff:], xf, uConv, is)
	}

	wEl := float64(d.Machine.PolePairs()) * d.Mechanics.Speed(xmech)
	d.Machine.Derivative(dst[d.mOff:], xm, us, wEl)
	d.Mechanics.Derivative(dst[d.mechOff:], xmech, d.Machine.Torque(xm), t)
	d.DC.Derivative(dst[d.dcOff:], xdc, d.Converter.DCCurrent(d.q, iConv), t)
}

func (d *Drive) Measure(t float64) Measurement {
	xm := d.x[d.mOff : d.mOff+d.Machine.Dim()]
	xmech := d.x[d.mechOff : d.mechOff+d.Mechanics.Dim()]
	m := Measurement{
		Is:     d.Machine.Current(xm),
		UDC:    d.DC.Voltage(d.x[d.dcOff:]),
		WM:     d.Mechanics.Speed(xmech),
		ThetaM: d.Mechanics.Angle(xmech),
	}
	if d.Filter != nil {
		xf := d.x[d.fOff : d.fOff+d.Filter.Dim()]
		m.Is = d.Filter.Current(xf)
		m.UF = d.Filter.CapVoltage(xf)
	}
	return m
}

// Torque returns the instantaneous electromagnetic torque, a
// post-processing accessor.
func (d *Drive) Torque() float64 {
	return d.Machine.Torque(d.x[d.mOff : d.mOff+d.Machine.Dim()])
}
