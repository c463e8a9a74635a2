package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/emdrive/drivesim/internal/config"
	"github.com/emdrive/drivesim/internal/export"
	"github.com/emdrive/drivesim/internal/integrator"
	"github.com/emdrive/drivesim/internal/sim"
)

var (
	configFile string
	preset     string
	stopTime   float64
	ts         float64
	delay      int
	usePWM     bool
	sensorless bool
	maxStep    float64
	outFile    string
	plotSignal string
	plotWidth  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drivesim",
		Short: "electric drive and grid converter simulator",
	}

	runCmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "preset configuration name")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Float64Var(&stopTime, "time", 0, "simulation stop time (s)")
	runCmd.Flags().Float64Var(&ts, "ts", 0, "control sampling period (s)")
	runCmd.Flags().IntVar(&delay, "delay", -1, "computational delay in samples")
	runCmd.Flags().BoolVar(&usePWM, "pwm", false, "switching-exact carrier comparison instead of averaged voltage")
	runCmd.Flags().BoolVar(&sensorless, "sensorless", false, "sensorless operation")
	runCmd.Flags().Float64Var(&maxStep, "max-step", 0, "integrator maximum step (s), for reproducible runs")
	runCmd.Flags().StringVar(&outFile, "out", "", "export results to JSON file")
	runCmd.Flags().StringVar(&plotSignal, "plot", "", "plot named signals after the run (comma separated)")

	presetsCmd := &cobra.Command{
		Use:   "presets [plant]",
		Short: "list preset configurations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [result.json]",
		Short: "plot signals from an exported result",
		Args:  cobra.ExactArgs(1),
		RunE:  plotResult,
	}
	plotCmd.Flags().StringVar(&plotSignal, "signal", "", "signal names (comma separated, default all)")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	signalsCmd := &cobra.Command{
		Use:   "signals [result.json]",
		Short: "list signals in an exported result",
		Args:  cobra.ExactArgs(1),
		RunE:  listSignals,
	}

	checkCmd := &cobra.Command{
		Use:   "check [config.yaml]",
		Short: "validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: ok (plant %s, control %s)\n", args[0], cfg.Plant, cfg.Control)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, presetsCmd, plotCmd, signalsCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildConfig(cmd *cobra.Command, plant string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(plant, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets(plant))
		}
	default:
		return nil, fmt.Errorf("either --preset or --config is required")
	}

	// CLI flags override the file/preset.
	if cmd.Flags().Changed("time") {
		cfg.StopTime = stopTime
	}
	if cmd.Flags().Changed("ts") {
		cfg.Ts = ts
	}
	if cmd.Flags().Changed("delay") {
		cfg.Delay = delay
	}
	if cmd.Flags().Changed("pwm") {
		cfg.PWM = usePWM
	}
	if cmd.Flags().Changed("sensorless") {
		cfg.Sensorless = sensorless
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	plant, ctrl, err := cfg.Build()
	if err != nil {
		return err
	}

	rk := integrator.NewRK45()
	if maxStep > 0 {
		rk.MaxStep = maxStep
	}

	s, err := sim.New(plant, ctrl, rk, sim.Options{
		StopTime: cfg.StopTime,
		Delay:    cfg.Delay,
		PWM:      cfg.PWM,
	})
	if err != nil {
		return err
	}

	fmt.Printf("running %s/%s for %g s (ts %g s)...\n", cfg.Plant, cfg.Control, cfg.StopTime, cfg.Ts)
	start := time.Now()
	res, err := s.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v, %d control samples\n", time.Since(start), len(res.Times))

	printSummary(res)

	if outFile != "" {
		data := export.New(cfg.Plant, cfg.Control, cfg.Ts, cfg.StopTime, res)
		if err := data.WriteFile(outFile); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", outFile)
	}

	if plotSignal != "" {
		for _, name := range strings.Split(plotSignal, ",") {
			if err := plotSeries(name, res.Series(strings.TrimSpace(name))); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(res *sim.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNAL\tFINAL\tMIN\tMAX")
	for _, name := range res.Names() {
		s := res.Series(name)
		if len(s) == 0 {
			continue
		}
		lo, hi := s[0], s[0]
		for _, v := range s {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\n", name, s[len(s)-1], lo, hi)
	}
	w.Flush()
}

func plotSeries(name string, data []float64) error {
	if data == nil {
		return fmt.Errorf("unknown signal %q", name)
	}
	if plotWidth <= 0 {
		plotWidth = 80
	}
	// Downsample for the terminal.
	plotted := data
	if len(plotted) > 4*plotWidth {
		step := len(plotted) / (4 * plotWidth)
		ds := make([]float64, 0, len(plotted)/step+1)
		for i := 0; i < len(plotted); i += step {
			ds = append(ds, plotted[i])
		}
		plotted = ds
	}
	fmt.Println(asciigraph.Plot(plotted,
		asciigraph.Height(10),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(name),
	))
	fmt.Println()
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	plants := []string{"im", "sm", "grid"}
	if len(args) == 1 {
		plants = args[:1]
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLANT\tPRESET\tCONTROL\tSTOP TIME")
	for _, plant := range plants {
		names := config.ListPresets(plant)
		if names == nil {
			return fmt.Errorf("unknown plant %q", plant)
		}
		sort.Strings(names)
		for _, name := range names {
			cfg := config.GetPreset(plant, name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%gs\n", plant, name, cfg.Control, cfg.StopTime)
		}
	}
	return w.Flush()
}

func plotResult(cmd *cobra.Command, args []string) error {
	data, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	names := make([]string, 0, len(data.Signals))
	if plotSignal != "" {
		for _, n := range strings.Split(plotSignal, ",") {
			names = append(names, strings.TrimSpace(n))
		}
	} else {
		for n := range data.Signals {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		if err := plotSeries(name, data.Signals[name]); err != nil {
			return err
		}
	}
	return nil
}

func listSignals(cmd *cobra.Command, args []string) error {
	data, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	names := make([]string, 0, len(data.Signals))
	for n := range data.Signals {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Printf("%s: plant %s, control %s, %d samples\n", args[0], data.Plant, data.Control, data.Samples)
	for _, n := range names {
		fmt.Println(" ", n)
	}
	return nil
}
