// Package export persists simulation results as a structured numeric
// container: one array per named signal, sample-aligned by index, field
// names identical to the internal logging names.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/emdrive/drivesim/internal/sim"
)

// Data is the on-disk container.
type Data struct {
	Plant    string  `json:"plant"`
	Control  string  `json:"control"`
	Ts       float64 `json:"ts"`
	StopTime float64 `json:"stop_time"`
	Samples  int     `json:"samples"`

	Times   []float64            `json:"times"`
	Signals map[string][]float64 `json:"signals"`
}

// New assembles the container from a result.
func New(plant, control string, ts, stopTime float64, res *sim.Result) *Data {
	d := &Data{
		Plant:    plant,
		Control:  control,
		Ts:       ts,
		StopTime: stopTime,
		Samples:  len(res.Times),
		Times:    res.Times,
		Signals:  make(map[string][]float64),
	}
	for _, name := range res.Names() {
		d.Signals[name] = res.Series(name)
	}
	return d
}

// JSON writes the container, indented.
func (d *Data) JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteFile writes the container to path as JSON.
func (d *Data) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer f.Close()
	if err := d.JSON(f); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a previously exported container.
func ReadFile(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("export %s: %w", path, err)
	}
	return &d, nil
}
