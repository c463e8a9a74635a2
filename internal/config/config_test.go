package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsValidateAndBuild(t *testing.T) {
	for plant, group := range Presets {
		for name := range group {
			cfg := GetPreset(plant, name)
			require.NotNil(t, cfg, "%s/%s", plant, name)
			require.NoError(t, cfg.Validate(), "%s/%s", plant, name)
			p, c, err := cfg.Build()
			require.NoError(t, err, "%s/%s", plant, name)
			assert.NotNil(t, p, "%s/%s", plant, name)
			assert.NotNil(t, c, "%s/%s", plant, name)
		}
	}
}

func TestGetPresetReturnsFreshCopies(t *testing.T) {
	a := GetPreset("im", "step")
	b := GetPreset("im", "step")
	require.NotNil(t, a)
	a.StopTime = 99
	assert.NotEqual(t, a.StopTime, b.StopTime)
}

func TestGetPresetUnknown(t *testing.T) {
	assert.Nil(t, GetPreset("im", "nope"))
	assert.Nil(t, GetPreset("nope", "step"))
	assert.Nil(t, ListPresets("nope"))
	assert.NotEmpty(t, ListPresets("im"))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plant: im
control: vhz
im:
  rs: 3.7
  rr: 2.1
  l_sigma: 0.021
  l_m: 0.224
  np: 2
mechanics:
  j: 0.015
reference:
  final: 314.159
  step_time: 0.5
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Unset keys keep their defaults.
	assert.Equal(t, DefaultTs, cfg.Ts)
	assert.Equal(t, DefaultDelay, cfg.Delay)
	assert.Equal(t, DefaultUDC, cfg.UDC)
	// Derived default.
	assert.Equal(t, 0.9, cfg.IM.PsiRef)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	cfg := GetPreset("sm", "servo")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SM, got.SM)
	assert.Equal(t, cfg.Limits, got.Limits)
	assert.Equal(t, cfg.StopTime, got.StopTime)
}

func TestValidateNamesOffendingParameter(t *testing.T) {
	cases := []struct {
		mutate func(*Config)
		want   string
	}{
		{func(c *Config) { c.Ts = 0 }, "ts"},
		{func(c *Config) { c.StopTime = -1 }, "stop_time"},
		{func(c *Config) { c.Plant = "warp" }, "plant"},
		{func(c *Config) { c.Control = "current" }, "control"},
		{func(c *Config) { c.IM.LSigma = 0 }, "l_sigma"},
		{func(c *Config) { c.IM.NP = 0 }, "np"},
		{func(c *Config) { c.Limits.IMax = 0 }, "i_max"},
		{func(c *Config) { c.Mechanics.J = 0 }, "mechanics.j"},
		{func(c *Config) { c.IM.Saturation.Kind = "magic" }, "saturation"},
		{func(c *Config) { c.IM.PsiRef = 5 }, "i_max"},
	}
	for _, tc := range cases {
		cfg := GetPreset("im", "sensorless")
		tc.mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, tc.want)
	}
}

func TestValidateGrid(t *testing.T) {
	cfg := GetPreset("grid", "lcl")
	cfg.Grid.CF = 0
	assert.ErrorContains(t, cfg.Validate(), "c_f")

	cfg = GetPreset("grid", "l-filter")
	cfg.Grid.UGNom = 0
	assert.ErrorContains(t, cfg.Validate(), "u_g_nom")
}
