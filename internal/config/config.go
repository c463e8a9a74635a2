// Package config defines the YAML run configuration and the presets
// shipped with the simulator. Construction is two-phase: Load overlays
// a file onto DefaultConfig, then Validate derives dependent defaults
// and rejects incompatible parameter combinations before any
// simulation step runs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTs       = 250e-6
	DefaultStopTime = 1.0
	DefaultDelay    = 1
	DefaultUDC      = 540.0
)

type Config struct {
	// Plant selects the topology: im | sm | grid.
	Plant string `yaml:"plant"`
	// Control selects the control system: vector | vhz (im),
	// vector | flux_vector (sm), current (grid).
	Control string `yaml:"control"`

	StopTime float64 `yaml:"stop_time"`
	Ts       float64 `yaml:"ts"`
	Delay    int     `yaml:"delay"`
	PWM      bool    `yaml:"pwm"`

	Sensorless bool    `yaml:"sensorless"`
	UDC        float64 `yaml:"u_dc"`
	DiodeFed   bool    `yaml:"diode_fed"` // six-pulse rectifier DC link

	IM        IMConfig        `yaml:"im"`
	SM        SMConfig        `yaml:"sm"`
	Grid      GridConfig      `yaml:"grid"`
	Mechanics MechanicsConfig `yaml:"mechanics"`
	Reference ReferenceConfig `yaml:"reference"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// IMConfig holds induction-machine parameters in inverse-Gamma form,
// with an optional main-flux saturation model applied to the Gamma
// magnetizing inductance.
type IMConfig struct {
	Rs     float64 `yaml:"rs"`
	RR     float64 `yaml:"rr"`
	LSigma float64 `yaml:"l_sigma"`
	LM     float64 `yaml:"l_m"`
	NP     int     `yaml:"np"`
	PsiRef float64 `yaml:"psi_ref"`

	Saturation SaturationConfig `yaml:"saturation"`
}

type SaturationConfig struct {
	Kind string  `yaml:"kind"` // "", linear | power_law | lut
	Beta float64 `yaml:"beta"`
	S    float64 `yaml:"s"`
	// LUT samples: flux magnitudes (ascending) and inductances.
	Psi []float64 `yaml:"psi"`
	L   []float64 `yaml:"l"`
}

type SMConfig struct {
	Rs     float64 `yaml:"rs"`
	Ld     float64 `yaml:"ld"`
	Lq     float64 `yaml:"lq"`
	PsiF   float64 `yaml:"psi_f"`
	NP     int     `yaml:"np"`
	PsiRef float64 `yaml:"psi_ref"` // flux-vector control only
}

type GridConfig struct {
	// Filter selects l | lcl.
	Filter string  `yaml:"filter"`
	L      float64 `yaml:"l"`
	R      float64 `yaml:"r"`
	CF     float64 `yaml:"c_f"`
	LG     float64 `yaml:"l_g"`
	RG     float64 `yaml:"r_g"`

	UGNom float64 `yaml:"u_g_nom"` // peak line-to-neutral
	FGNom float64 `yaml:"f_g_nom"` // Hz
	IDRef float64 `yaml:"i_d_ref"`
	IQRef float64 `yaml:"i_q_ref"`
}

type MechanicsConfig struct {
	// Kind selects one_mass (default) | two_mass.
	Kind string  `yaml:"kind"`
	J    float64 `yaml:"j"`
	B    float64 `yaml:"b"`
	// Two-mass shaft parameters.
	JL float64 `yaml:"j_l"`
	KS float64 `yaml:"k_s"`
	CS float64 `yaml:"c_s"`
	// Constant load torque applied from LoadTime on.
	TauL     float64 `yaml:"tau_l"`
	LoadTime float64 `yaml:"load_time"`
}

// ReferenceConfig describes the speed (or frequency) reference: a step
// from zero to Final at StepTime, optionally rate limited.
type ReferenceConfig struct {
	Final    float64 `yaml:"final"` // mechanical rad/s (el. rad/s for V/Hz)
	StepTime float64 `yaml:"step_time"`
	RampRate float64 `yaml:"ramp_rate"` // 0 selects the controller default, negative disables
}

type LimitsConfig struct {
	IMax   float64 `yaml:"i_max"`
	TauMax float64 `yaml:"tau_max"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant:    "im",
		Control:  "vector",
		StopTime: DefaultStopTime,
		Ts:       DefaultTs,
		Delay:    DefaultDelay,
		UDC:      DefaultUDC,
	}
}

// Load reads a YAML file over the defaults. Validate must still be
// called before building a simulation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate derives dependent defaults and fails fast on incompatible
// combinations, identifying the offending parameter by name.
func (c *Config) Validate() error {
	if c.Ts <= 0 {
		return fmt.Errorf("config: ts must be positive, got %g", c.Ts)
	}
	if c.StopTime <= 0 {
		return fmt.Errorf("config: stop_time must be positive, got %g", c.StopTime)
	}
	if c.UDC <= 0 && !c.DiodeFed {
		return fmt.Errorf("config: u_dc must be positive, got %g", c.UDC)
	}

	switch c.Plant {
	case "im":
		if c.Control != "vector" && c.Control != "vhz" {
			return fmt.Errorf("config: control %q not available for plant im (want vector or vhz)", c.Control)
		}
		return c.validateIM()
	case "sm":
		if c.Control != "vector" && c.Control != "flux_vector" {
			return fmt.Errorf("config: control %q not available for plant sm (want vector or flux_vector)", c.Control)
		}
		return c.validateSM()
	case "grid":
		if c.Control != "current" {
			return fmt.Errorf("config: control %q not available for plant grid (want current)", c.Control)
		}
		return c.validateGrid()
	default:
		return fmt.Errorf("config: unknown plant %q", c.Plant)
	}
}

func (c *Config) validateIM() error {
	im := &c.IM
	switch {
	case im.LSigma <= 0 || im.LM <= 0:
		return fmt.Errorf("config: im.l_sigma and im.l_m must be positive, got %g and %g", im.LSigma, im.LM)
	case im.NP < 1:
		return fmt.Errorf("config: im.np must be at least 1, got %d", im.NP)
	}
	if im.PsiRef == 0 {
		im.PsiRef = 0.9
	}
	if err := c.validateMechanics(); err != nil {
		return err
	}
	if c.Control == "vector" {
		if c.Limits.IMax <= 0 {
			return fmt.Errorf("config: limits.i_max is required for vector control")
		}
		if im.PsiRef/im.LM >= c.Limits.IMax {
			return fmt.Errorf("config: im.psi_ref/im.l_m = %g exceeds limits.i_max = %g", im.PsiRef/im.LM, c.Limits.IMax)
		}
	}
	switch im.Saturation.Kind {
	case "", "linear", "power_law", "lut":
	default:
		return fmt.Errorf("config: unknown im.saturation.kind %q", im.Saturation.Kind)
	}
	if im.Saturation.Kind == "power_law" && (im.Saturation.Beta <= 0 || im.Saturation.S <= 0) {
		return fmt.Errorf("config: im.saturation power_law requires positive beta and s")
	}
	if im.Saturation.Kind == "lut" && len(im.Saturation.Psi) < 2 {
		return fmt.Errorf("config: im.saturation lut requires at least 2 psi/l samples")
	}
	return nil
}

func (c *Config) validateSM() error {
	sm := &c.SM
	switch {
	case sm.Ld <= 0 || sm.Lq <= 0:
		return fmt.Errorf("config: sm.ld and sm.lq must be positive, got %g and %g", sm.Ld, sm.Lq)
	case sm.NP < 1:
		return fmt.Errorf("config: sm.np must be at least 1, got %d", sm.NP)
	}
	if c.Limits.IMax <= 0 {
		return fmt.Errorf("config: limits.i_max is required for plant sm")
	}
	if c.Control == "flux_vector" && sm.PsiRef <= 0 {
		return fmt.Errorf("config: sm.psi_ref is required for flux_vector control")
	}
	return c.validateMechanics()
}

func (c *Config) validateGrid() error {
	g := &c.Grid
	if g.Filter == "" {
		g.Filter = "l"
	}
	switch {
	case g.Filter != "l" && g.Filter != "lcl":
		return fmt.Errorf("config: unknown grid.filter %q (want l or lcl)", g.Filter)
	case g.L <= 0:
		return fmt.Errorf("config: grid.l must be positive, got %g", g.L)
	case g.Filter == "lcl" && (g.CF <= 0 || g.LG <= 0):
		return fmt.Errorf("config: grid lcl filter requires positive c_f and l_g")
	case g.UGNom <= 0:
		return fmt.Errorf("config: grid.u_g_nom must be positive, got %g", g.UGNom)
	}
	if g.FGNom == 0 {
		g.FGNom = 50
	}
	if c.Limits.IMax <= 0 {
		return fmt.Errorf("config: limits.i_max is required for plant grid")
	}
	return nil
}

func (c *Config) validateMechanics() error {
	m := &c.Mechanics
	if m.Kind == "" {
		m.Kind = "one_mass"
	}
	switch m.Kind {
	case "one_mass":
		if m.J <= 0 {
			return fmt.Errorf("config: mechanics.j must be positive, got %g", m.J)
		}
	case "two_mass":
		if m.J <= 0 || m.JL <= 0 || m.KS <= 0 {
			return fmt.Errorf("config: mechanics two_mass requires positive j, j_l and k_s")
		}
	default:
		return fmt.Errorf("config: unknown mechanics.kind %q", m.Kind)
	}
	return nil
}
