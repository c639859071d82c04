package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/facility"
	"github.com/pthm-cable/canopy/ledger"
)

func loadCatalog(t *testing.T) *blueprints.Catalog {
	t.Helper()
	cat, err := blueprints.Load("")
	require.NoError(t, err)
	return cat
}

func TestStarterBuilds(t *testing.T) {
	cfg := config.Default()
	sg := Starter()
	require.NoError(t, sg.ApplyTo(cfg))
	cat := loadCatalog(t)
	l := ledger.New(cfg.Derived.InitialCapital, ledger.PricesFromConfig(cfg), ledger.Options{})

	s, err := Build(sg, cfg, cat, facility.Services{Ledger: l})
	require.NoError(t, err)

	zones := s.Zones()
	require.Len(t, zones, 2)
	assert.Equal(t, "veg", zones[0].ID)
	assert.Equal(t, 3.2, zones[0].Height, "height inherited through the room")
	assert.Len(t, zones[0].Devices(), 8)
	assert.Len(t, zones[0].Plants(), zones[0].Capacity())
	assert.Equal(t, 32, zones[0].Capacity(), "8 m² of sea-of-green")
	assert.Equal(t, 12, zones[1].Capacity(), "12 m² of scrog")
	assert.Equal(t, 0.5, zones[1].Devices()[11].Settings().TargetHumidity)

	assert.True(t, l.Balance().LessThan(decimal.NewFromFloat(cfg.Derived.InitialCapital)), "capex and seeds booked")
}

// Two 220 € lamps against 1000 € of capital leave 560 € at the first tick.
func TestSetupCapexOpeningBalance(t *testing.T) {
	sg, err := Parse([]byte(`
name: capex
structure:
  id: s
  usable_area: 10
  height: 3
  rooms:
    - id: r
      area: 10
      zones:
        - id: z
          area: 4
          devices:
            - blueprint: hps-1000
              count: 2
`))
	require.NoError(t, err)
	cfg := config.Default()
	l := ledger.New(1000, ledger.PricesFromConfig(cfg), ledger.Options{Detailed: true})

	_, err = Build(sg, cfg, loadCatalog(t), facility.Services{Ledger: l})
	require.NoError(t, err)

	require.NoError(t, l.StartTick(0))
	opening, ok := l.OpeningBalance()
	require.True(t, ok)
	assert.True(t, opening.Equal(decimal.NewFromInt(560)), "opening %s", opening)
}

func TestPlantingCount(t *testing.T) {
	sg, err := Parse([]byte(`
structure:
  id: s
  usable_area: 10
  height: 3
  rooms:
    - id: r
      area: 10
      zones:
        - id: z
          area: 1
          planting: {strain: ak-47, method: sea-of-green, count: 3}
`))
	require.NoError(t, err)
	s, err := Build(sg, config.Default(), loadCatalog(t), facility.Services{})
	require.NoError(t, err)
	z, ok := s.Zone("z")
	require.True(t, ok)
	assert.Len(t, z.Plants(), 3)
	assert.Equal(t, 4, z.Capacity())
}

func TestValidateJoinsProblems(t *testing.T) {
	sg := &Savegame{Structure: StructureSpec{
		ID: "s", UsableArea: 10, Height: 3,
		Rooms: []RoomSpec{
			{ID: "r", Area: 8, Zones: []ZoneSpec{
				{ID: "a", Area: 6, Devices: []DeviceSpec{{Blueprint: "warp-drive", Count: 1}}},
				{ID: "a", Area: 6, Planting: &PlantingSpec{Strain: "ak-47", Method: "sea-of-green", Count: 100}},
			}},
			{ID: "r2", Area: 5},
		},
	}}
	err := sg.Validate(loadCatalog(t))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"warp-drive", "duplicate id", "zones use 12.00 of 8.00", "rooms use 13.00 of 10.00", "exceed capacity 24"} {
		assert.Contains(t, msg, want)
	}
	assert.ErrorIs(t, err, blueprints.ErrNotFound)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("structure:\n  id: s\n  floors: 3\n"))
	assert.Error(t, err)
}

func TestLoadFileAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nseed: 99\ndifficulty: hard\nstructure: {id: s, usable_area: 1, height: 2}\n"), 0o644))

	sg, err := Load(path)
	require.NoError(t, err)
	cfg := config.Default()
	require.NoError(t, sg.ApplyTo(cfg))
	assert.Equal(t, int64(99), cfg.Simulation.Seed)
	assert.Equal(t, "hard", cfg.Simulation.Difficulty)
	assert.Equal(t, 0.85, cfg.Derived.Difficulty.RevenueMultiplier)

	sg.Difficulty = "impossible"
	assert.Error(t, sg.ApplyTo(cfg))
}

func TestBuildDeterministic(t *testing.T) {
	cat := loadCatalog(t)
	ids := func() []string {
		s, err := Build(Starter(), config.Default(), cat, facility.Services{})
		require.NoError(t, err)
		var out []string
		for _, z := range s.Zones() {
			for _, d := range z.Devices() {
				out = append(out, d.ID())
			}
			for _, p := range z.Plants() {
				out = append(out, p.ID)
			}
		}
		return out
	}
	assert.Equal(t, ids(), ids())
}
