package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pthm-cable/canopy/ledger"
)

type testZone struct {
	ID          string  `json:"id"`
	Temperature float64 `json:"temperature"`
	Plants      int     `json:"plants"`
}

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	zones := []testZone{{ID: "veg", Temperature: 24.5, Plants: 4}, {ID: "flower", Temperature: 22, Plants: 16}}
	totals := ledger.Totals{Revenue: decimal.NewFromInt(50), Capex: decimal.NewFromInt(440)}
	snapshot, err := NewSnapshot(42, 1000, decimal.RequireFromString("1234.56"), totals, zones)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if filepath.Base(path) != "snapshot_1000.json" {
		t.Errorf("unexpected file name %s", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if loaded.Seed != 42 || loaded.Tick != 1000 {
		t.Errorf("seed/tick = %d/%d, want 42/1000", loaded.Seed, loaded.Tick)
	}
	if !loaded.Balance.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("balance = %s", loaded.Balance)
	}
	if !loaded.Totals.Equal(totals) {
		t.Errorf("totals = %+v, want %+v", loaded.Totals, totals)
	}

	var got []testZone
	if err := loaded.DecodeZones(&got); err != nil {
		t.Fatalf("DecodeZones: %v", err)
	}
	if len(got) != 2 || got[1] != zones[1] {
		t.Errorf("zones = %+v, want %+v", got, zones)
	}
}

func TestSnapshotBookmarkFilename(t *testing.T) {
	tmpDir := t.TempDir()
	snapshot, err := NewSnapshot(1, 240, decimal.Zero, ledger.Totals{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	snapshot.Bookmark = &Bookmark{Type: BookmarkCropLoss, Tick: 240, Zone: "a"}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "snapshot_240_crop_loss.json") {
		t.Errorf("unexpected path %s", path)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadSnapshot(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}

	old := filepath.Join(tmpDir, "old.json")
	if err := os.WriteFile(old, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(old); err == nil {
		t.Error("expected error for unknown version")
	}
}
