package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/trainsim/internal/app"
	"github.com/san-kum/trainsim/internal/automation"
	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/export"
	"github.com/san-kum/trainsim/internal/httpapi"
	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/optim"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/storage"
	"github.com/san-kum/trainsim/internal/store"
	"github.com/san-kum/trainsim/internal/tui"
	"github.com/san-kum/trainsim/internal/viz"
)

var (
	configFile string
	dataDir    string
	logLevel   string
	dt         float64
	integrator string
	paramsFile string
	// serve
	port int
	addr string
	// run
	live    bool
	plot    bool
	timeout time.Duration
	// sweep and montecarlo
	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepSteps  int
	mcParams    []string
	mcPerturb   float64
	mcTrials    int
	seed        int64
	workers     int
	outputFile  string
	chartFormat string
	theme       string
	axes        []string
	metricName  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "trainsim",
		Short:         "train running and energy simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newApp(cmd)
			if err != nil {
				return err
			}
			viz.SetTheme(theme)
			return tui.Run(c)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run archive directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&dt, "dt", sim.DefaultDt, "integration step in seconds")
	rootCmd.PersistentFlags().StringVar(&integrator, "integrator", integrators.Default, "integrator ("+strings.Join(integrators.Names(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&paramsFile, "params", "", "parameter set file (yaml)")
	rootCmd.Flags().StringVar(&theme, "theme", viz.ThemeSignal.Name, "colour theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().IntVar(&port, "port", 8080, "listen port")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides --port")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run one simulation and archive it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().BoolVar(&live, "live", false, "show a live view while running")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot speed and power profiles when done")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the run after this wall-clock duration")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scenario file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "vary one parameter over a range",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "mass_kg", "parameter to vary ("+strings.Join(automation.Params(), ", ")+")")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = all CPUs)")
	_ = sweepCmd.MarkFlagRequired("min")
	_ = sweepCmd.MarkFlagRequired("max")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "perturb parameters randomly and count completed runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().StringSliceVar(&mcParams, "vary", []string{"mass_kg"}, "parameters to perturb")
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 0.1, "relative perturbation")
	mcCmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	mcCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = all CPUs)")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [preset]",
		Short: "grid search parameters for the lowest metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().StringArrayVar(&axes, "grid", nil, "axis as name=min:max:steps, repeatable")
	optimizeCmd.Flags().StringVar(&metricName, "metric", "energy_kwh", "metric to minimise")
	optimizeCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = all CPUs)")
	_ = optimizeCmd.MarkFlagRequired("grid")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "time a preset across integrators and step sizes",
		Args:  cobra.ExactArgs(1),
		RunE:  benchPreset,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id|latest]",
		Short: "plot an archived run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id|latest]",
		Short: "print archived run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id|latest]",
		Short: "export archived run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id|latest]",
		Short: "render an archived run as an image or html page",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default <run_id>.<format>)")
	chartCmd.Flags().StringVar(&chartFormat, "format", "png", "png, svg, pdf or html")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [params.yaml]",
		Short: "check a parameter file",
		Args:  cobra.ExactArgs(1),
		RunE:  validateParams,
	}

	rootCmd.AddCommand(serveCmd, runCmd, batchCmd, sweepCmd, mcCmd, optimizeCmd, benchCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, chartCmd, presetsCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	if lvl, err := log.ParseLevel(logLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// loadConfig reads --config and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	logLevel = cfg.LogLevel
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("params") {
		cfg.ParamsFile = paramsFile
	}
	return cfg, cfg.Validate()
}

func newApp(cmd *cobra.Command) (*app.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, newLogger())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serve(cmd *cobra.Command, args []string) error {
	c, err := newApp(cmd)
	if err != nil {
		return err
	}
	listen := c.Config.Server.Addr
	if cmd.Flags().Changed("port") {
		listen = fmt.Sprintf(":%d", port)
	}
	if addr != "" {
		listen = addr
	}

	srv := httpapi.New(c, c.Logger.WithPrefix("http"))
	c.Logger.Info("train simulation server started", "addr", listen, "version", httpapi.Version)
	for _, route := range srv.Routes() {
		c.Logger.Info("  " + route)
	}

	ctx, stop := signalContext()
	defer stop()
	return srv.ListenAndServe(ctx, listen)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	c, err := newApp(cmd)
	if err != nil {
		return err
	}
	switch {
	case len(args) == 1:
		if err := c.LoadPreset(args[0]); err != nil {
			return fmt.Errorf("%w (available: %v)", err, config.ListPresets())
		}
	case c.Config.ParamsFile == "":
		return errors.New("give a preset name or --params file")
	}

	ctx, stop := signalContext()
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var run sim.Run
	if live {
		if _, err := c.Start(); err != nil {
			return err
		}
		stopCancel := context.AfterFunc(ctx, func() { _ = c.Sim.Cancel() })
		defer stopCancel()
		if err := tui.RunLive(c); err != nil {
			return err
		}
		if err := c.Sim.Wait(context.Background()); err != nil {
			return err
		}
		run, _ = c.Sim.Run()
		err = run.Err
	} else {
		run, err = c.RunToEnd(ctx)
	}
	if run.ID == "" {
		return err
	}

	res, resErr := c.Sim.Results()
	fmt.Printf("run id: %s\n", run.ID)
	fmt.Printf("state: %s\n", run.State)
	fmt.Printf("wall time: %v\n", time.Since(start).Round(time.Millisecond))
	if resErr == nil && res.RunID == run.ID {
		fmt.Printf("samples: %d\n", res.Len())
		if len(res.Metrics) > 0 {
			fmt.Println("\nmetrics:")
			fmt.Print(viz.Metrics(res.Metrics))
		}
		if plot {
			fmt.Println()
			printProfiles(res.Samples, run.Params.Track)
		}
	}
	return err
}

func printProfiles(samples []dynamo.Sample, track params.TrackParameters) {
	fmt.Println(viz.SpeedProfile(samples, track, viz.DefaultWidth, viz.DefaultHeight))
	fmt.Println()
	fmt.Println(viz.TimeProfile(samples, "power (kW)", func(s dynamo.Sample) float64 { return s.PowerW / 1000 }, viz.DefaultWidth, viz.DefaultHeight))
	fmt.Println()
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	results, err := automation.RunScenario(ctx, sc, newLogger())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATE\tSAMPLES\tTRIP\tENERGY\tREGEN\tERROR")
	failed := 0
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1fs\t%.3fkWh\t%.3fkWh\t%s\n",
			r.Name, r.State, r.Samples,
			r.Metrics["trip_time_s"], r.Metrics["energy_kwh"], r.Metrics["regen_energy_kwh"],
			errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(results))
	}
	return nil
}

func simOptions(cmd *cobra.Command) ([]sim.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cfg.SimOptions()
}

func preset(name string) (params.Snapshot, error) {
	snap := config.GetPreset(name)
	if snap == nil {
		return params.Snapshot{}, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}
	return *snap, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := preset(args[0])
	if err != nil {
		return err
	}
	opts, err := simOptions(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		Min:       sweepMin,
		Max:       sweepMax,
		NumSteps:  sweepSteps,
		Workers:   workers,
	}, newLogger(), opts...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTATE\tTRIP\tENERGY\tMAX SPEED\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%g\t%s\t-\t-\t%v\n", r.ParamValue, r.State, r.Err)
			continue
		}
		fmt.Fprintf(w, "%g\t%s\t%.1fs\t%.3fkWh\t%.2fm/s\n",
			r.ParamValue, r.State, r.Metrics["trip_time_s"], r.Metrics["energy_kwh"], r.Metrics["max_speed_mps"])
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	base, err := preset(args[0])
	if err != nil {
		return err
	}
	opts, err := simOptions(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base:         base,
		Params:       mcParams,
		Perturbation: mcPerturb,
		NumTrials:    mcTrials,
		Workers:      workers,
		Seed:         seed,
	}, newLogger(), opts...)
	if err != nil {
		return err
	}

	completed, failed := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d\ncompleted: %d\nfailed: %d\n", len(results), completed, failed)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  trial %d: %v\n", r.TrialID, r.Err)
		}
	}
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	base, err := preset(args[0])
	if err != nil {
		return err
	}
	opts, err := simOptions(cmd)
	if err != nil {
		return err
	}

	names := make([]string, len(axes))
	ranges := make([][]float64, len(axes))
	for i, a := range axes {
		if names[i], ranges[i], err = optim.ParseAxis(a); err != nil {
			return err
		}
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	g.Workers = workers

	ctx, stop := signalContext()
	defer stop()

	newLogger().Info("searching grid", "points", g.Size(), "metric", metricName)
	best, all, err := g.Search(ctx, base, metricName, opts...)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTATE\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, c := range all {
		vals := make([]string, len(names))
		for i, n := range names {
			vals[i] = fmt.Sprintf("%g", c.Values[n])
		}
		metric := "-"
		if c.State == dynamo.Completed {
			metric = fmt.Sprintf("%.4f", c.Metrics[metricName])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(vals, "\t"), c.State, metric)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.4f at", metricName, best.Metrics[metricName])
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best.Values[n])
	}
	fmt.Println()
	return nil
}

func benchPreset(cmd *cobra.Command, args []string) error {
	snap, err := preset(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s\n\n", args[0])
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tDT\tSTEPS\tSIM TIME\tWALL\tSTEPS/SEC")

	for _, name := range integrators.Names() {
		for _, step := range []float64{0.5, 0.1, 0.01} {
			integ, _ := integrators.New(name)
			s, err := sim.New(sim.WithIntegrator(integ), sim.WithDt(step))
			if err != nil {
				return err
			}

			start := time.Now()
			if _, err := s.Start(snap); err != nil {
				return err
			}
			if err := s.Wait(context.Background()); err != nil {
				return err
			}
			elapsed := time.Since(start)

			st := s.Status()
			fmt.Fprintf(w, "%s\t%.2fs\t%d\t%.1fs\t%v\t%.0f\n",
				name, step, st.Samples, st.TimeS, elapsed.Round(time.Microsecond), float64(st.Samples)/elapsed.Seconds())
		}
	}
	return w.Flush()
}

func archive(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.DataDir), nil
}

// loadRun resolves "latest" to the most recent archived run.
func loadRun(cmd *cobra.Command, id string) (*storage.Store, *storage.RunMetadata, error) {
	st, err := archive(cmd)
	if err != nil {
		return nil, nil, err
	}
	var meta *storage.RunMetadata
	if id == "latest" {
		meta, err = st.Latest()
	} else {
		meta, err = st.Load(id)
	}
	return st, meta, err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := archive(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTIME\tTRACK\tSAMPLES\tDT\tINTEG\tENERGY")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fm\t%d\t%.3fs\t%s\t%.3fkWh\n",
			run.ID,
			run.State,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TrackLengthM,
			run.Samples,
			run.Dt,
			run.Integrator,
			run.Metrics["energy_kwh"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("track: %.0f m, %d segments\n", meta.TrackLengthM, len(meta.Params.Track.Segments))
	fmt.Printf("samples: %d\n\n", len(samples))
	printProfiles(samples, meta.Params.Track)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	_, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if len(samples) == 0 {
		return fmt.Errorf("run %s has no samples", meta.ID)
	}
	if err := store.WriteCSV(out, samples); err != nil {
		return err
	}
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "exported %d samples to %s\n", len(samples), outputFile)
	}
	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	st, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}

	path := outputFile
	if path == "" {
		path = meta.ID + "." + chartFormat
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if chartFormat == "html" {
		err = export.WriteHTML(f, meta.ID, samples)
	} else {
		p, perr := export.SpeedProfile("speed profile "+meta.ID, samples, export.Limits(meta.Params.Track))
		if perr != nil {
			return perr
		}
		err = export.WriteChart(f, p, chartFormat)
	}
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range config.ListPresets() {
			snap := config.GetPreset(name)
			fmt.Printf("  %-12s %6.0f m, %d stops\n", name, snap.Track.Length(), len(snap.Running.StopPositionsM))
		}
		return nil
	}
	snap, err := preset(args[0])
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func validateParams(cmd *cobra.Command, args []string) error {
	snap, err := config.LoadParams(args[0])
	var ve *params.ValidationError
	if errors.As(err, &ve) {
		fmt.Printf("%s: invalid %s parameters\n", args[0], ve.Group)
		for _, f := range ve.Fields {
			fmt.Printf("  %s\n", f)
		}
		return errors.New("validation failed")
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%.0f m, %d segments, %d stops)\n",
		args[0], snap.Track.Length(), len(snap.Track.Segments), len(snap.Running.StopPositionsM))
	return nil
}
