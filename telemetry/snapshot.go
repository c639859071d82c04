package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pthm-cable/canopy/ledger"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a read-only dump of the facility at the end of a tick.
// Zones holds the caller's zone views as raw JSON so this package stays
// independent of the facility model.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`
	Tick    int   `json:"tick"`

	Balance decimal.Decimal `json:"balance_eur"`
	Totals  ledger.Totals   `json:"grand_totals"`

	Zones json.RawMessage `json:"zones"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// NewSnapshot builds a snapshot, encoding zones as JSON.
func NewSnapshot(seed int64, tick int, balance decimal.Decimal, totals ledger.Totals, zones any) (*Snapshot, error) {
	raw, err := json.Marshal(zones)
	if err != nil {
		return nil, fmt.Errorf("marshal zones: %w", err)
	}
	return &Snapshot{
		Version: SnapshotVersion,
		Seed:    seed,
		Tick:    tick,
		Balance: balance,
		Totals:  totals,
		Zones:   raw,
	}, nil
}

// DecodeZones unmarshals the zone views into v.
func (s *Snapshot) DecodeZones(v any) error {
	if len(s.Zones) == 0 {
		return nil
	}
	return json.Unmarshal(s.Zones, v)
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
