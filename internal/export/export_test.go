package export

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emdrive/drivesim/internal/control"
	"github.com/emdrive/drivesim/internal/integrator"
	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/sim"
)

type restPlant struct{ x []float64 }

func (p *restPlant) Dim() int                                         { return 1 }
func (p *restPlant) State() []float64                                 { return p.x }
func (p *restPlant) Derivative(dst []float64, t float64, x []float64) { dst[0] = 0 }
func (p *restPlant) SetSwitching(q complex128)                        {}
func (p *restPlant) Measure(t float64) model.Measurement {
	return model.Measurement{UDC: 540, WM: t}
}

type traceControl struct{ tr *control.Trace }

func (c *traceControl) Trace() *control.Trace { return c.tr }
func (c *traceControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	c.tr.Append("w_ref", 1.0)
	return [3]float64{0.5, 0.5, 0.5}, 1e-3
}

func runTiny(t *testing.T) *sim.Result {
	t.Helper()
	s, err := sim.New(&restPlant{x: make([]float64, 1)}, &traceControl{tr: control.NewTrace()},
		integrator.NewRK45(), sim.Options{StopTime: 2.5e-3})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestJSONSignalNamesMatchLogging(t *testing.T) {
	res := runTiny(t)
	d := New("im", "vector", 1e-3, 2.5e-3, res)

	var buf bytes.Buffer
	require.NoError(t, d.JSON(&buf))

	var got Data
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got.Samples)
	require.Len(t, got.Times, 3)

	// One array per named signal, sample-aligned, plant and controller
	// signals side by side under their logging names.
	for _, name := range res.Names() {
		require.Contains(t, got.Signals, name)
		assert.Len(t, got.Signals[name], 3, name)
	}
	assert.Equal(t, []float64{1, 1, 1}, got.Signals["w_ref"])
	assert.Equal(t, []float64{540, 540, 540}, got.Signals["u_dc"])
}

func TestWriteReadFile(t *testing.T) {
	res := runTiny(t)
	d := New("im", "vhz", 1e-3, 2.5e-3, res)

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, d.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.Plant, got.Plant)
	assert.Equal(t, d.Signals["w_m"], got.Signals["w_m"])

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
