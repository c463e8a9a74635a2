package config

import "math"

// im22kW returns the 2.2 kW 50 Hz induction-machine base configuration
// used by the shipped presets and the regression scenario.
func im22kW() *Config {
	cfg := DefaultConfig()
	cfg.IM = IMConfig{Rs: 3.7, RR: 2.1, LSigma: 0.021, LM: 0.224, NP: 2, PsiRef: 0.9}
	cfg.Mechanics = MechanicsConfig{J: 0.015}
	cfg.Limits = LimitsConfig{IMax: 10}
	return cfg
}

func sm67kW() *Config {
	cfg := DefaultConfig()
	cfg.Plant = "sm"
	cfg.Ts = 125e-6
	cfg.SM = SMConfig{Rs: 0.63, Ld: 0.036, Lq: 0.051, PsiF: 0.545, NP: 3, PsiRef: 0.6}
	cfg.Mechanics = MechanicsConfig{J: 0.015}
	cfg.Limits = LimitsConfig{IMax: 26}
	return cfg
}

// Presets maps plant family to named ready-to-run configurations.
var Presets = map[string]map[string]func() *Config{
	"im": {
		// The repeatable end-to-end regression scenario: rated-flux
		// open-loop drive with a step speed reference at t = 0.5 s.
		"step": func() *Config {
			cfg := im22kW()
			cfg.Control = "vhz"
			cfg.StopTime = 0.8
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 50, StepTime: 0.5}
			return cfg
		},
		"sensorless": func() *Config {
			cfg := im22kW()
			cfg.Sensorless = true
			cfg.StopTime = 1.5
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 25, StepTime: 0.5}
			return cfg
		},
		"zero-speed": func() *Config {
			cfg := im22kW()
			cfg.Sensorless = true
			cfg.StopTime = 0.5
			return cfg
		},
		"saturated": func() *Config {
			cfg := im22kW()
			cfg.Control = "vhz"
			cfg.StopTime = 0.8
			cfg.IM.Saturation = SaturationConfig{Kind: "power_law", Beta: 0.86, S: 7}
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 50, StepTime: 0.5}
			return cfg
		},
		"diode-fed": func() *Config {
			cfg := im22kW()
			cfg.Control = "vhz"
			cfg.DiodeFed = true
			cfg.StopTime = 0.8
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 50, StepTime: 0.5}
			return cfg
		},
	},
	"sm": {
		"servo": func() *Config {
			cfg := sm67kW()
			cfg.StopTime = 0.5
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 20, StepTime: 0.1}
			return cfg
		},
		"sensorless": func() *Config {
			cfg := sm67kW()
			cfg.Sensorless = true
			cfg.StopTime = 1.0
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 20, StepTime: 0.2, RampRate: 2 * math.Pi * 500}
			return cfg
		},
		"flux-vector": func() *Config {
			cfg := sm67kW()
			cfg.Control = "flux_vector"
			cfg.StopTime = 0.5
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 20, StepTime: 0.1}
			return cfg
		},
		"two-mass": func() *Config {
			cfg := sm67kW()
			cfg.StopTime = 0.5
			cfg.Mechanics = MechanicsConfig{Kind: "two_mass", J: 0.01, JL: 0.005, KS: 700, CS: 0.01}
			cfg.Reference = ReferenceConfig{Final: 2 * math.Pi * 10, StepTime: 0.1}
			return cfg
		},
	},
	"grid": {
		"l-filter": func() *Config {
			cfg := DefaultConfig()
			cfg.Plant = "grid"
			cfg.Control = "current"
			cfg.Ts = 125e-6
			cfg.StopTime = 0.1
			cfg.UDC = 650
			cfg.Grid = GridConfig{Filter: "l", L: 10e-3, UGNom: 325, FGNom: 50, IDRef: 10}
			cfg.Limits = LimitsConfig{IMax: 20}
			return cfg
		},
		"lcl": func() *Config {
			cfg := DefaultConfig()
			cfg.Plant = "grid"
			cfg.Control = "current"
			cfg.Ts = 125e-6
			cfg.StopTime = 0.1
			cfg.UDC = 650
			cfg.Grid = GridConfig{Filter: "lcl", L: 3e-3, CF: 10e-6, LG: 3e-3, UGNom: 325, FGNom: 50, IDRef: 10}
			cfg.Limits = LimitsConfig{IMax: 20}
			return cfg
		},
	},
}

// GetPreset returns a fresh configuration for the named preset, nil if
// unknown.
func GetPreset(plant, name string) *Config {
	group, ok := Presets[plant]
	if !ok {
		return nil
	}
	mk, ok := group[name]
	if !ok {
		return nil
	}
	return mk()
}

// ListPresets returns the preset names available for a plant family.
func ListPresets(plant string) []string {
	group, ok := Presets[plant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}
