package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/journal"
	"github.com/pthm-cable/canopy/metrics"
	"github.com/pthm-cable/canopy/scenario"
	"github.com/pthm-cable/canopy/sim"
	"github.com/pthm-cable/canopy/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	catalogPath := flag.String("catalog", "", "Extra blueprint catalog merged over the built-in one")
	savegamePath := flag.String("savegame", "", "Savegame YAML (empty = built-in starter)")
	days := flag.Int("days", 30, "Simulated days to run")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (overrides -days)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config or savegame)")
	difficulty := flag.String("difficulty", "", "Difficulty profile (empty = config or savegame)")
	parallel := flag.Bool("parallel", false, "Run zones concurrently within a tick")
	logStats := flag.Bool("log-stats", false, "Output daily zone summaries via slog")
	logFormat := flag.String("log-format", "json", "Log format: json or text")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	journalPath := flag.String("journal", "", "SQLite file for the ledger journal")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg().Clone()
	cfg.Simulation.ParallelZones = cfg.Simulation.ParallelZones || *parallel

	cat, err := blueprints.Load(*catalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	sg, err := scenario.Load(*savegamePath)
	if err != nil {
		slog.Error("failed to load savegame", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		sg.Seed = *seed
	}
	if *difficulty != "" {
		sg.Difficulty = *difficulty
	}
	if sg.Seed == 0 && cfg.Simulation.Seed == 0 {
		sg.Seed = time.Now().UnixNano()
	}

	if err := run(cfg, cat, sg, runOptions{
		ticks:       ticksToRun(*maxTicks, *days, cfg),
		logStats:    *logStats,
		outputDir:   *outputDir,
		snapshotDir: *snapshotDir,
		journalPath: *journalPath,
		metricsAddr: *metricsAddr,
	}); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	ticks       int
	logStats    bool
	outputDir   string
	snapshotDir string
	journalPath string
	metricsAddr string
}

func ticksToRun(maxTicks, days int, cfg *config.Config) int {
	if maxTicks > 0 {
		return maxTicks
	}
	return days * cfg.Derived.TicksPerDay
}

func run(cfg *config.Config, cat *blueprints.Catalog, sg *scenario.Savegame, ro runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := sim.Options{
		Config:      cfg,
		Catalog:     cat,
		Savegame:    sg,
		Logger:      slog.Default(),
		SnapshotDir: ro.snapshotDir,
		LogStats:    ro.logStats,
	}

	om, err := telemetry.NewOutputManager(ro.outputDir)
	if err != nil {
		return err
	}
	if om != nil {
		defer om.Close()
		if err := om.WriteConfig(cfg); err != nil {
			return err
		}
		opts.Output = om
	}

	if ro.journalPath != "" {
		j, err := journal.OpenSQLite(ro.journalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts.Journal = j
	}

	if ro.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		opts.Metrics = m

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: ro.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("serving metrics", "addr", ro.metricsAddr)
	}

	s, err := sim.New(opts)
	if err != nil {
		return err
	}

	slog.Info("starting simulation",
		"seed", s.Config().Simulation.Seed,
		"ticks", ro.ticks,
		"parallel_zones", s.Config().Simulation.ParallelZones,
	)

	start := time.Now()
	runErr := s.Run(ctx, ro.ticks)
	if errors.Is(runErr, context.Canceled) {
		slog.Info("interrupted", "tick", s.Tick())
		runErr = nil
	}

	totals := s.Ledger().GrandTotals()
	slog.Info("simulation finished",
		"tick", s.Tick(),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"balance", s.Ledger().Balance().StringFixed(2),
		"revenue", totals.Revenue.StringFixed(2),
		"expenses", totals.Expenses().StringFixed(2),
	)
	rollup := s.Structure().TotalCosts()
	slog.Info("facility",
		"zones", rollup.Zones,
		"devices", rollup.Devices,
		"plants", rollup.Plants,
		"installed_capex", rollup.InstalledCapex,
	)
	for _, st := range s.Statuses() {
		slog.Info("zone", "id", st.ID, "plants", len(st.Plants), "harvested", st.Harvested, "device_failures", st.Failures)
	}
	return runErr
}
