// Package sim drives a facility through global ticks: it brackets every
// tick with the ledger, schedules lights, runs the zone pipelines and fans
// the results out to telemetry.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/devices"
	"github.com/pthm-cable/canopy/facility"
	"github.com/pthm-cable/canopy/journal"
	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/metrics"
	"github.com/pthm-cable/canopy/scenario"
	"github.com/pthm-cable/canopy/telemetry"
)

// Options configures a simulation. Config, Catalog and Savegame are
// required; everything else is optional.
type Options struct {
	Config   *config.Config
	Catalog  *blueprints.Catalog
	Savegame *scenario.Savegame
	Logger   *slog.Logger

	// Sinks receive every event. With parallel zones they are called
	// concurrently.
	Sinks []telemetry.Sink

	Output      *telemetry.OutputManager
	Journal     *journal.Journal
	Metrics     *metrics.Collector
	SnapshotDir string

	// LogStats logs zone summaries and perf stats at every window.
	LogStats bool
	// StatsCallback receives the zone summaries of every window.
	StatsCallback func([]telemetry.ZoneSummary)
}

// Sim holds the complete simulation state.
type Sim struct {
	cfg    *config.Config
	logger *slog.Logger

	ledger    *ledger.CostEngine
	structure *facility.Structure
	zones     []*facility.Zone
	lights    devices.LightCycle

	sink          telemetry.Sink
	events        *telemetry.Recorder
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	journal       *journal.Journal
	metrics       *metrics.Collector
	snapshotDir   string
	logStats      bool
	statsCallback func([]telemetry.ZoneSummary)

	tick int
}

// New builds the facility of the savegame and opens its ledger. The
// config is cloned; the savegame's difficulty and seed apply to the clone.
func New(opts Options) (*Sim, error) {
	if opts.Config == nil || opts.Catalog == nil || opts.Savegame == nil {
		return nil, fmt.Errorf("sim: config, catalog and savegame are required")
	}
	cfg := opts.Config.Clone()
	if err := opts.Savegame.ApplyTo(cfg); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sim{
		cfg:           cfg,
		logger:        logger,
		events:        &telemetry.Recorder{},
		collector:     telemetry.NewCollector(cfg.Telemetry.SummaryHours, cfg.Simulation.TickHours),
		perf:          telemetry.NewPerfCollector(cfg.Derived.TicksPerWindow),
		bookmarks:     telemetry.NewBookmarkDetector(10),
		output:        opts.Output,
		journal:       opts.Journal,
		metrics:       opts.Metrics,
		snapshotDir:   opts.SnapshotDir,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		lights:        devices.LightCycle{StartHour: cfg.Simulation.StartHour, TickHours: cfg.Simulation.TickHours},
	}

	sinks := telemetry.MultiSink{s.collector, s.events}
	if s.metrics != nil {
		sinks = append(sinks, s.metrics)
	}
	if s.journal != nil {
		sinks = append(sinks, s.journal)
	}
	sinks = append(sinks, opts.Sinks...)
	s.sink = sinks

	s.ledger = ledger.New(cfg.Derived.InitialCapital, ledger.PricesFromConfig(cfg), ledger.Options{
		Detailed: cfg.Simulation.DetailedLedger,
		Logger:   logger,
	})

	structure, err := scenario.Build(opts.Savegame, cfg, opts.Catalog, facility.Services{
		Ledger: s.ledger,
		Sink:   s.sink,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	s.structure = structure
	s.zones = structure.Zones()

	// Setup capex and initial seeds settled while building.
	for _, rec := range s.ledger.History() {
		s.publishRecord(context.Background(), rec)
	}

	logger.Info("facility built",
		"savegame", opts.Savegame.Name,
		"zones", len(s.zones),
		"seed", cfg.Simulation.Seed,
		"difficulty", cfg.Simulation.Difficulty,
		"balance", s.ledger.Balance().StringFixed(2),
	)
	return s, nil
}

// Step runs one global tick.
func (s *Sim) Step(ctx context.Context) error {
	tick := s.tick
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseOpen)
	if err := s.ledger.StartTick(tick); err != nil {
		return err
	}

	s.perf.StartPhase(telemetry.PhaseLights)
	for _, z := range s.zones {
		z.ScheduleLights(s.lights, tick)
	}

	s.perf.StartPhase(telemetry.PhaseZones)
	if err := s.runZones(ctx, tick); err != nil {
		s.abortTick(tick)
		return err
	}

	s.perf.StartPhase(telemetry.PhaseOverhead)
	s.structure.BookOverhead(s.ledger, s.cfg.Simulation.TickHours)

	s.perf.StartPhase(telemetry.PhaseCommit)
	rec, err := s.ledger.CommitTick()
	if err != nil {
		return err
	}

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	for _, z := range s.zones {
		s.collector.RecordClimate(z.ID, z.ClimateSample())
	}
	s.publishRecord(ctx, rec)
	s.tick++
	s.flushTelemetry()

	s.perf.EndTick()
	return nil
}

// abortTick closes a tick whose zone phase failed part way. Zones that
// already stepped keep their state; overhead is still booked and the record
// committed and published, so the ledger has no gap and the next Step opens
// tick+1.
func (s *Sim) abortTick(tick int) {
	s.structure.BookOverhead(s.ledger, s.cfg.Simulation.TickHours)
	rec, err := s.ledger.CommitTick()
	if err != nil {
		s.logger.Error("commit after aborted tick", "tick", tick, "error", err)
		return
	}
	s.publishRecord(context.Background(), rec)
	s.tick++
	s.perf.EndTick()
	s.logger.Warn("tick aborted", "tick", tick)
}

// Run executes ticks until n have completed or ctx is done.
func (s *Sim) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick := s.tick
		if err := s.Step(ctx); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}
	return nil
}

// Tick returns the number of completed ticks.
func (s *Sim) Tick() int { return s.tick }

// Ledger returns the simulation's ledger.
func (s *Sim) Ledger() *ledger.CostEngine { return s.ledger }

// Structure returns the simulated facility.
func (s *Sim) Structure() *facility.Structure { return s.structure }

// Config returns the effective configuration.
func (s *Sim) Config() *config.Config { return s.cfg }

// Perf returns the tick timing collector.
func (s *Sim) Perf() *telemetry.PerfCollector { return s.perf }

// Statuses returns the status of every zone in facility order.
func (s *Sim) Statuses() []facility.ZoneStatus {
	out := make([]facility.ZoneStatus, len(s.zones))
	for i, z := range s.zones {
		out[i] = z.Status()
	}
	return out
}
