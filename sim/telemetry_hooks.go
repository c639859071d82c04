package sim

import (
	"context"

	"github.com/pthm-cable/canopy/facility"
	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/metrics"
	"github.com/pthm-cable/canopy/telemetry"
)

// publishRecord hands a sealed ledger record to metrics, the journal and
// the CSV output, together with the events recorded since the last call.
func (s *Sim) publishRecord(ctx context.Context, rec ledger.Record) {
	if s.metrics != nil {
		s.metrics.ObserveTick(rec, s.readings())
	}
	if s.journal != nil {
		if err := s.journal.WriteTick(ctx, rec); err != nil {
			s.logger.Error("failed to journal tick", "tick", rec.Tick, "error", err)
		}
	}
	if s.output != nil {
		if err := s.output.WriteLedger(rec); err != nil {
			s.logger.Error("failed to write ledger", "error", err)
		}
	}
	s.writeEvents()
}

func (s *Sim) writeEvents() {
	events := s.events.Drain()
	if s.output == nil || len(events) == 0 {
		return
	}
	if err := s.output.WriteEvents(events); err != nil {
		s.logger.Error("failed to write events", "error", err)
	}
}

func (s *Sim) readings() []metrics.ZoneReading {
	out := make([]metrics.ZoneReading, len(s.zones))
	for i, z := range s.zones {
		out[i] = metrics.ZoneReading{
			Zone:        z.ID,
			Temperature: z.Env.Temperature,
			Humidity:    z.Env.Humidity,
			CO2:         z.Env.CO2,
			Plants:      len(z.Plants()),
		}
	}
	return out
}

// flushTelemetry closes the summary window when it is due, emits one daily
// summary per zone and handles bookmarks.
func (s *Sim) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	states := make([]telemetry.ZoneState, len(s.zones))
	for i, z := range s.zones {
		states[i] = z.SummaryState()
	}
	summaries := s.collector.Flush(s.tick, states)
	perfStats := s.perf.Stats()

	for _, sum := range summaries {
		s.sink.Emit(telemetry.NewDailySummaryEvent(s.tick-1, sum))
	}

	if s.statsCallback != nil {
		s.statsCallback(summaries)
	}

	if s.logStats {
		for _, sum := range summaries {
			sum.LogStats()
		}
		perfStats.LogStats()
	}

	if s.output != nil {
		if err := s.output.WriteZoneSummaries(summaries); err != nil {
			s.logger.Error("failed to write zone summaries", "error", err)
		}
		if err := s.output.WritePerf(perfStats, s.tick); err != nil {
			s.logger.Error("failed to write perf", "error", err)
		}
	}

	for _, sum := range summaries {
		for _, bm := range s.bookmarks.Check(sum) {
			if s.logStats {
				bm.LogBookmark()
			}
			if s.output != nil {
				if err := s.output.WriteBookmark(bm); err != nil {
					s.logger.Error("failed to write bookmark", "error", err)
				}
			}
			if s.snapshotDir != "" {
				s.saveSnapshot(&bm)
			}
		}
	}

	s.writeEvents()
}

// Snapshot captures the ledger and every zone status.
func (s *Sim) Snapshot(bookmark *telemetry.Bookmark) (*telemetry.Snapshot, error) {
	snap, err := telemetry.NewSnapshot(s.cfg.Simulation.Seed, s.tick, s.ledger.Balance(), s.ledger.GrandTotals(), s.Statuses())
	if err != nil {
		return nil, err
	}
	snap.Bookmark = bookmark
	return snap, nil
}

// saveSnapshot creates and saves a snapshot to disk.
func (s *Sim) saveSnapshot(bookmark *telemetry.Bookmark) {
	snap, err := s.Snapshot(bookmark)
	if err != nil {
		s.logger.Error("failed to build snapshot", "error", err)
		return
	}
	path, err := telemetry.SaveSnapshot(snap, s.snapshotDir)
	if err != nil {
		s.logger.Error("failed to save snapshot", "error", err)
		return
	}
	s.logger.Info("snapshot saved", "path", path, "tick", s.tick)
}

// ZoneStatuses decodes the zone views of a snapshot written by Snapshot.
func ZoneStatuses(snap *telemetry.Snapshot) ([]facility.ZoneStatus, error) {
	var out []facility.ZoneStatus
	if err := snap.DecodeZones(&out); err != nil {
		return nil, err
	}
	return out, nil
}
