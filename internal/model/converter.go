package model

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/spacevec"
)

// Inverter is a lossless two-level voltage-source converter. The AC
// side is the switching-state space vector scaled by the DC-bus
// voltage; the DC side follows from instantaneous power balance,
// u_dc*i_dc = 1.5*Re{u_ac*conj(i_ac)} exactly.
type Inverter struct{}

// ACVoltage returns the converter output voltage for switching vector q.
func (Inverter) ACVoltage(q complex128, uDC float64) complex128 {
	return q * complex(uDC, 0)
}

// DCCurrent returns the DC-side current drawn for switching vector q
// and AC-side current i.
func (Inverter) DCCurrent(q, i complex128) float64 {
	return 1.5 * real(q*cmplx.Conj(i))
}

// DiodeBridge is a six-pulse diode rectifier feeding an L-C DC link.
// State: DC inductor current (nonnegative, the diodes block reverse
// flow) and DC-bus capacitor voltage. The supply is a stiff three-phase
// source given as a space-vector function of time.
type DiodeBridge struct {
	LDC    float64
	CDC    float64
	Supply func(t float64) complex128
	UDC0   float64 // initial capacitor voltage
}

func NewDiodeBridge(ldc, cdc float64, supply func(float64) complex128, udc0 float64) (*DiodeBridge, error) {
	switch {
	case ldc <= 0:
		return nil, fmt.Errorf("diode bridge: LDC must be positive, got %g", ldc)
	case cdc <= 0:
		return nil, fmt.Errorf("diode bridge: CDC must be positive, got %g", cdc)
	case supply == nil:
		return nil, fmt.Errorf("diode bridge: supply voltage function is required")
	}
	return &DiodeBridge{LDC: ldc, CDC: cdc, Supply: supply, UDC0: udc0}, nil
}

func (d *DiodeBridge) Dim() int                { return 2 }
func (d *DiodeBridge) InitialState() []float64 { return []float64{0, d.UDC0} }

// UDC returns the bus voltage for the packed state.
func (d *DiodeBridge) UDC(x []float64) float64 { return x[1] }

func (d *DiodeBridge) Derivative(dst, x []float64, iDC, t float64) {
	iL, uDC := x[0], x[1]
	ea, eb, ec := spacevec.ToPhases(d.Supply(t))
	uDI := math.Max(ea, math.Max(eb, ec)) - math.Min(ea, math.Min(eb, ec))
	diL := (uDI - uDC) / d.LDC
	if iL <= 0 && diL < 0 {
		diL = 0 // diodes block
	}
	dst[0] = diL
	dst[1] = (iL - iDC) / d.CDC
}

// ConstantDC is a stiff DC supply, the default when no bridge is used.
type ConstantDC struct {
	UDC float64
}

func (c ConstantDC) Dim() int                                    { return 0 }
func (c ConstantDC) InitialState() []float64                     { return nil }
func (c ConstantDC) Voltage(x []float64) float64                 { return c.UDC }
func (c ConstantDC) Derivative(dst, x []float64, iDC, t float64) {}

// DCLink abstracts the converter supply side: either a stiff source or
// a diode-bridge-fed L-C link.
type DCLink interface {
	Dim() int
	InitialState() []float64
	Voltage(x []float64) float64
	Derivative(dst, x []float64, iDC, t float64)
}

// Voltage implements DCLink for DiodeBridge.
func (d *DiodeBridge) Voltage(x []float64) float64 { return d.UDC(x) }
