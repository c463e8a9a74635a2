package config

import (
	"math"

	"github.com/emdrive/drivesim/internal/control"
	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// Build constructs the plant and control system described by a
// validated configuration.
func (c *Config) Build() (model.Plant, control.System, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	switch c.Plant {
	case "im":
		return c.buildIM()
	case "sm":
		return c.buildSM()
	default:
		return c.buildGrid()
	}
}

func (c *Config) reference() func(float64) float64 {
	ref := c.Reference
	return func(t float64) float64 {
		if t < ref.StepTime {
			return 0
		}
		return ref.Final
	}
}

func (c *Config) dcLink() (model.DCLink, error) {
	if !c.DiodeFed {
		return model.ConstantDC{UDC: c.UDC}, nil
	}
	// Six-pulse rectifier fed from a stiff supply sized to the
	// configured DC voltage.
	ug := c.UDC / (3 * math.Sqrt(3) / math.Pi)
	wg := 2 * math.Pi * 50
	supply := func(t float64) complex128 {
		return spacevec.Rotate(complex(ug, 0), wg*t)
	}
	return model.NewDiodeBridge(2e-3, 235e-6, supply, c.UDC)
}

func (c *Config) mechanics() (model.Mechanics, float64, error) {
	m := c.Mechanics
	tauL := func(t float64) float64 {
		if t < m.LoadTime {
			return 0
		}
		return m.TauL
	}
	if m.TauL == 0 {
		tauL = nil
	}
	if m.Kind == "two_mass" {
		mech, err := model.NewTwoMass(m.J, m.JL, m.KS, m.CS, tauL)
		return mech, m.J + m.JL, err
	}
	mech, err := model.NewOneMass(m.J, m.B, tauL)
	return mech, m.J, err
}

func (c *Config) imSaturation() (model.Saturation, error) {
	im := &c.IM
	lsGamma := im.LM + im.LSigma
	switch im.Saturation.Kind {
	case "", "linear":
		return model.ConstantInductance(lsGamma), nil
	case "power_law":
		return model.PowerLaw{Lu: lsGamma, Beta: im.Saturation.Beta, S: im.Saturation.S}, nil
	default:
		return model.NewLUT(im.Saturation.Psi, im.Saturation.L)
	}
}

func (c *Config) buildIM() (model.Plant, control.System, error) {
	im := &c.IM

	var machine *model.InductionMachine
	var err error
	if im.Saturation.Kind == "" || im.Saturation.Kind == "linear" {
		machine, err = model.NewInductionMachineInvGamma(im.Rs, im.RR, im.LSigma, im.LM, im.NP)
	} else {
		var sat model.Saturation
		sat, err = c.imSaturation()
		if err != nil {
			return nil, nil, err
		}
		// Saturated models are specified directly on the Gamma form.
		gamma := im.LM / (im.LM + im.LSigma)
		machine, err = model.NewInductionMachine(im.Rs, im.RR/(gamma*gamma), im.LSigma/gamma, sat, im.NP)
	}
	if err != nil {
		return nil, nil, err
	}

	mech, jTotal, err := c.mechanics()
	if err != nil {
		return nil, nil, err
	}
	dc, err := c.dcLink()
	if err != nil {
		return nil, nil, err
	}
	plant, err := model.NewDrive(machine, mech, dc, nil)
	if err != nil {
		return nil, nil, err
	}

	if c.Control == "vhz" {
		ctrl, err := control.NewVHzControl(control.VHzParams{
			Rs: im.Rs, RR: im.RR, LSigma: im.LSigma, LM: im.LM, NP: im.NP,
			Ts: c.Ts, PsiRef: im.PsiRef,
			FreqRef:  c.reference(),
			RampRate: c.Reference.RampRate,
		})
		return plant, ctrl, err
	}
	ctrl, err := control.NewCurrentVectorControl(control.IMVectorParams{
		Rs: im.Rs, RR: im.RR, LSigma: im.LSigma, LM: im.LM, NP: im.NP, J: jTotal,
		Ts: c.Ts, Sensorless: c.Sensorless,
		PsiRef: im.PsiRef, IMax: c.Limits.IMax, TauMax: c.Limits.TauMax,
		SpeedRef: c.reference(), RampRate: c.Reference.RampRate,
	})
	return plant, ctrl, err
}

func (c *Config) buildSM() (model.Plant, control.System, error) {
	sm := &c.SM
	law := model.LinearPM{Ld: sm.Ld, Lq: sm.Lq, PsiF: sm.PsiF}
	machine, err := model.NewSynchronousMachine(sm.Rs, law, sm.NP, complex(sm.PsiF, 0))
	if err != nil {
		return nil, nil, err
	}
	mech, jTotal, err := c.mechanics()
	if err != nil {
		return nil, nil, err
	}
	dc, err := c.dcLink()
	if err != nil {
		return nil, nil, err
	}
	plant, err := model.NewDrive(machine, mech, dc, nil)
	if err != nil {
		return nil, nil, err
	}

	if c.Control == "flux_vector" {
		ctrl, err := control.NewFluxVectorControl(control.FluxVectorParams{
			Rs: sm.Rs, Ld: sm.Ld, Lq: sm.Lq, PsiF: sm.PsiF, NP: sm.NP, J: jTotal,
			Ts: c.Ts, Sensorless: c.Sensorless,
			PsiRef: sm.PsiRef, IMax: c.Limits.IMax, TauMax: c.Limits.TauMax,
			SpeedRef: c.reference(), RampRate: c.Reference.RampRate,
		})
		return plant, ctrl, err
	}
	ctrl, err := control.NewSMCurrentVectorControl(control.SMVectorParams{
		Rs: sm.Rs, Ld: sm.Ld, Lq: sm.Lq, PsiF: sm.PsiF, NP: sm.NP, J: jTotal,
		Ts: c.Ts, Sensorless: c.Sensorless,
		IMax: c.Limits.IMax, TauMax: c.Limits.TauMax,
		SpeedRef: c.reference(), RampRate: c.Reference.RampRate,
	})
	return plant, ctrl, err
}

func (c *Config) buildGrid() (model.Plant, control.System, error) {
	g := &c.Grid

	var filter model.GridFilter
	var err error
	if g.Filter == "lcl" {
		filter, err = model.NewLCLFilter(g.L, g.R, g.CF, g.LG, g.RG)
	} else {
		filter, err = model.NewLFilter(g.L, g.R)
	}
	if err != nil {
		return nil, nil, err
	}

	wg := 2 * math.Pi * g.FGNom
	grid := func(t float64) complex128 {
		return spacevec.Rotate(complex(g.UGNom, 0), wg*t)
	}
	dc, err := c.dcLink()
	if err != nil {
		return nil, nil, err
	}
	plant, err := model.NewGridConverter(dc, filter, grid)
	if err != nil {
		return nil, nil, err
	}

	ctrl, err := control.NewGridCurrentControl(control.GridParams{
		L: g.L, R: g.R, Ts: c.Ts,
		UGNom: g.UGNom, WGNom: wg, IMax: c.Limits.IMax,
		CurrentRef: func(float64) complex128 { return complex(g.IDRef, g.IQRef) },
	})
	return plant, ctrl, err
}
