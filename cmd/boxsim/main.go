package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/boxsim/internal/automation"
	"github.com/san-kum/boxsim/internal/chipmunk"
	"github.com/san-kum/boxsim/internal/compute"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/logging"
	"github.com/san-kum/boxsim/internal/render"
	"github.com/san-kum/boxsim/internal/sim"
	"github.com/san-kum/boxsim/internal/storage"
	"github.com/san-kum/boxsim/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dialTimeout = 2 * time.Second

var (
	dataDir     string
	configFile  string
	preset      string
	logLevel    string
	logFormat   string
	seed        int64
	workers     int
	useGPU      bool
	diagnostics string

	frames       int
	dt           float64
	spawnEvery   int
	noSave       bool
	scenarioFile string
	svgFile      string

	sweepMin    float64
	sweepMax    float64
	sweepSteps  int
	sweepFrames int
	sweepDt     float64

	cols int
	rows int
	hud  bool
)

// raylib must be driven from the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "boxsim",
		Short:        "falling boxes on a rigid-body engine",
		SilenceUsage: true,
		RunE:         runWindow,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".boxsim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", logging.FormatConsole, "log format (console, json)")
	pf.Int64Var(&seed, "seed", 0, "random seed")
	pf.IntVar(&workers, "workers", config.DefaultWorkers, "physics dispatcher workers")
	pf.BoolVar(&useGPU, "gpu", true, "try GPU acceleration")
	pf.StringVar(&diagnostics, "diagnostics", "", "diagnostics websocket address (ws://host:port/path)")

	windowCmd := &cobra.Command{
		Use:   "window",
		Short: "run in a window (space spawns, g toggles gravity)",
		RunE:  runWindow,
	}
	windowCmd.Flags().BoolVar(&hud, "hud", false, "draw the frame rate")
	rootCmd.Flags().AddFlagSet(windowCmd.Flags())

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "run in the terminal",
		RunE:  runTUI,
	}
	tuiCmd.Flags().IntVar(&cols, "cols", 80, "canvas width in cells")
	tuiCmd.Flags().IntVar(&rows, "rows", 24, "canvas height in cells")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run headless and record the result",
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&frames, "frames", 600, "number of frames")
	runCmd.Flags().Float64Var(&dt, "dt", 1.0/60.0, "fixed timestep")
	runCmd.Flags().IntVar(&spawnEvery, "spawn-every", 30, "spawn a box every n frames (0 disables)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&scenarioFile, "scenario", "", "scripted scenario (yaml); overrides frames, dt and spawn-every")
	runCmd.Flags().StringVar(&svgFile, "svg", "", "write the final frame as svg")

	sweepCmd := &cobra.Command{
		Use:       "sweep [param]",
		Short:     "run headless once per parameter value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: automation.SweepParams(),
		RunE:      runSweep,
	}
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&sweepFrames, "frames", 300, "frames per run")
	sweepCmd.Flags().Float64Var(&sweepDt, "dt", 1.0/60.0, "fixed timestep")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "report GPU availability",
		RunE:  probeGPU,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(windowCmd, tuiCmd, runCmd, sweepCmd, listCmd, plotCmd, exportCmd, probeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies, in order: defaults, preset, config file, changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	name := "default"

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		name = preset
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		cfg = fileCfg
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}

	flagOverrides(cmd)(cfg)
	return cfg, name, cfg.Validate()
}

// flagOverrides applies the persistent flags the user actually set.
func flagOverrides(cmd *cobra.Command) automation.Override {
	flags := cmd.Flags()
	return func(cfg *config.Config) {
		if flags.Changed("seed") {
			cfg.Seed = seed
		}
		if flags.Changed("workers") {
			cfg.Engine.Workers = workers
		}
		if flags.Changed("gpu") {
			cfg.Engine.GPU = useGPU
		}
		if flags.Changed("diagnostics") {
			cfg.Diagnostics.Address = diagnostics
		}
	}
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel, logFormat)
}

func dialer(ctx context.Context, log *zap.Logger) sim.DialFunc {
	return func(addr string) (sim.Diagnostics, error) {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		conn, err := telemetry.Dial(dctx, addr, log)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// session runs one simulation on surface until quit, interrupt or failure,
// then shuts the simulation down and closes the surface.
func session(cfg *config.Config, log *zap.Logger, surface engine.Surface, opts ...sim.LoopOption) (*sim.Context, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := sim.Initialize(cfg, sim.Deps{
		Physics: chipmunk.New(),
		Dial:    dialer(ctx, log),
		Log:     log,
	})
	if err != nil {
		return nil, errors.Join(err, surface.Close())
	}

	runErr := sim.NewLoop(s, surface, opts...).Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		log.Info("interrupted")
		runErr = nil
	}
	return s, errors.Join(runErr, s.Shutdown(), surface.Close())
}

func runWindow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	surface := render.OpenWindow(cfg.Viewport, "boxsim", hud)
	_, err = session(cfg, log, surface)
	return err
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the terminal belongs to the view; only errors reach stderr
	if !cmd.Flags().Changed("log-level") {
		logLevel = "error"
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	surface := render.NewTerminal(cfg.Viewport, cols, rows)
	_, err = session(cfg, log, surface)
	return err
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var res *automation.Result
	if scenarioFile != "" {
		scenario, err := automation.LoadScenario(scenarioFile)
		if err != nil {
			return err
		}
		if scenario.Preset != "" {
			name = scenario.Preset
		}
		res, err = automation.RunScenario(ctx, scenario, cfg, chipmunk.New(), log, flagOverrides(cmd))
		if err != nil {
			return err
		}
	} else {
		if frames <= 0 {
			return fmt.Errorf("frames must be positive, got %d", frames)
		}
		if dt <= 0 {
			return fmt.Errorf("dt must be positive, got %g", dt)
		}
		cfg.Loop.FixedDt = dt
		res, err = automation.Headless(ctx, cfg, chipmunk.New(), log, frames, automation.SpawnEvery(spawnEvery, frames)...)
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("frames: %d  boxes: %.0f  mean height: %.3f  settled: %.2fs  wall: %s\n",
		len(res.Frames), res.Metrics["final_entities"], res.Metrics["final_mean_height"],
		res.Metrics["settle_time"], elapsed.Round(time.Millisecond))

	if svgFile != "" {
		svg := render.FrameToSVG(res.Last, cfg.Viewport.Width, cfg.Viewport.Height)
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("final frame: %s\n", svgFile)
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Preset:  name,
		Seed:    res.Config.Seed,
		Dt:      res.Config.Loop.FixedDt,
		GPU:     res.GPU,
		Metrics: res.Metrics,
	}, res.Frames)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Param:    args[0],
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
		Frames:   sweepFrames,
		Dt:       sweepDt,
	}, cfg, func() engine.Physics { return chipmunk.New() }, log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tMEAN HEIGHT\tMIN HEIGHT\tSETTLED\tSTABILITY\n", strings.ToUpper(args[0]))
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%.3f\t%.3f\t%.2fs\t%.2f\n",
			r.ParamValue,
			r.Metrics["final_mean_height"],
			r.Metrics["min_mean_height"],
			r.Metrics["settle_time"],
			r.Metrics["stability"],
		)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tFRAMES\tDURATION\tDT\tGPU\tBOXES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2fs\t%.4fs\t%t\t%.0f\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Duration,
			run.Dt,
			run.GPU,
			run.Metrics["final_entities"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(samples))

	heights := make([]float64, len(samples))
	counts := make([]float64, len(samples))
	for i, f := range samples {
		heights[i] = f.MeanHeight
		counts[i] = float64(f.Entities)
	}

	for _, p := range []struct {
		data    []float64
		caption string
	}{
		{heights, "mean box height (m)"},
		{counts, "boxes"},
	} {
		fmt.Println(asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).Export(os.Stdout, args[0])
}

func probeGPU(cmd *cobra.Command, args []string) error {
	p := compute.Run()
	if p.Valid {
		fmt.Printf("gpu: %s (available)\n", p.Name)
		return nil
	}
	fmt.Printf("gpu: %s\n", p.Name)
	if p.Reason != "" {
		fmt.Printf("reason: %s\n", p.Reason)
	}
	fmt.Println("physics will run on the CPU")
	return nil
}
