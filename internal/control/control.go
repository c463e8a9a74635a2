// Package control implements the discrete-time control systems: vector
// control and observer-assisted V/Hz control for induction machines,
// current-vector and flux-vector control for synchronous machines, and
// grid-following current control for grid converters.
//
// Every controller follows the same fixed per-sample cycle: read
// feedback, evaluate references and compute the output, update the
// persistent states for the next cycle using realized (post-saturation)
// signals, log, and return the duty ratios plus the next sampling
// period. Infeasible references are clipped to the nearest feasible
// point, never propagated.
package control

import "github.com/emdrive/drivesim/internal/model"

// System is a discrete-time control system invoked once per sampling
// instant.
type System interface {
	// Sample runs one control cycle at simulated time t with the given
	// plant measurements, returning the duty-ratio references for the
	// upcoming interval and its length.
	Sample(t float64, m model.Measurement) ([3]float64, float64)
	// Trace returns the controller's logged time series.
	Trace() *Trace
}

// Trace is an append-only collection of named sample series, one value
// per control cycle. Converted to dense arrays only in post-processing.
type Trace struct {
	order []string
	data  map[string][]float64
}

func NewTrace() *Trace {
	return &Trace{data: make(map[string][]float64)}
}

func (tr *Trace) Append(name string, v float64) {
	if _, ok := tr.data[name]; !ok {
		tr.order = append(tr.order, name)
	}
	tr.data[name] = append(tr.data[name], v)
}

// Names returns the signal names in first-appended order.
func (tr *Trace) Names() []string { return tr.order }

// Series returns the samples logged under name, nil if unknown.
func (tr *Trace) Series(name string) []float64 { return tr.data[name] }
