package telemetry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/ledger"
)

// LedgerRow is the flat CSV form of a committed ledger record.
type LedgerRow struct {
	Tick           int    `csv:"tick"`
	OpeningBalance string `csv:"opening_balance_eur"`
	ClosingBalance string `csv:"closing_balance_eur"`
	EnergyEUR      string `csv:"energy_eur"`
	EnergyKWh      string `csv:"energy_kwh"`
	WaterL         string `csv:"water_l"`
	MaintenanceEUR string `csv:"maintenance_eur"`
	CapexEUR       string `csv:"capex_eur"`
	OtherEUR       string `csv:"other_expense_eur"`
	RevenueEUR     string `csv:"revenue_eur"`
	NetEUR         string `csv:"net_eur"`
	Entries        int    `csv:"entries"`
}

// NewLedgerRow flattens a ledger record.
func NewLedgerRow(r ledger.Record) LedgerRow {
	t := r.Totals
	return LedgerRow{
		Tick:           r.Tick,
		OpeningBalance: r.OpeningBalance.StringFixed(2),
		ClosingBalance: r.ClosingBalance.StringFixed(2),
		EnergyEUR:      t.Energy.String(),
		EnergyKWh:      t.EnergyKWh.String(),
		WaterL:         t.WaterL.String(),
		MaintenanceEUR: t.Maintenance.String(),
		CapexEUR:       t.Capex.String(),
		OtherEUR:       t.OtherExpense.String(),
		RevenueEUR:     t.Revenue.String(),
		NetEUR:         r.Net().String(),
		Entries:        len(r.Entries),
	}
}

// csvFile appends gocsv records to one file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(records interface{}) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir string

	ledger    *csvFile
	zones     *csvFile
	events    *csvFile
	perf      *csvFile
	bookmarks *csvFile
}

var outputFiles = []string{"ledger.csv", "zones.csv", "events.csv", "perf.csv", "bookmarks.csv"}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	files := make([]*csvFile, 0, len(outputFiles))
	for _, name := range outputFiles {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			for _, cf := range files {
				cf.f.Close()
			}
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
		files = append(files, &csvFile{f: f})
	}

	return &OutputManager{
		dir:       dir,
		ledger:    files[0],
		zones:     files[1],
		events:    files[2],
		perf:      files[3],
		bookmarks: files[4],
	}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteLedger writes one committed record to ledger.csv.
func (om *OutputManager) WriteLedger(r ledger.Record) error {
	if om == nil {
		return nil
	}
	if err := om.ledger.write([]LedgerRow{NewLedgerRow(r)}); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// WriteZoneSummaries writes a flushed window to zones.csv.
func (om *OutputManager) WriteZoneSummaries(summaries []ZoneSummary) error {
	if om == nil || len(summaries) == 0 {
		return nil
	}
	if err := om.zones.write(summaries); err != nil {
		return fmt.Errorf("writing zone summaries: %w", err)
	}
	return nil
}

// WriteEvents appends events to events.csv.
func (om *OutputManager) WriteEvents(events []Event) error {
	if om == nil || len(events) == 0 {
		return nil
	}
	if err := om.events.write(events); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, cf := range []*csvFile{om.ledger, om.zones, om.events, om.perf, om.bookmarks} {
		if cf == nil || cf.f == nil {
			continue
		}
		if err := cf.f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ io.Closer = (*OutputManager)(nil)
