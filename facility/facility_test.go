package facility

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/devices"
	"github.com/pthm-cable/canopy/environment"
	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/plants"
	"github.com/pthm-cable/canopy/telemetry"
)

type testCatalog struct {
	devices map[string]blueprints.Device
	strains map[string]blueprints.Strain
	methods map[string]blueprints.Method
}

func (c *testCatalog) Device(id string) (blueprints.Device, error) {
	if d, ok := c.devices[id]; ok {
		return d, nil
	}
	return blueprints.Device{}, fmt.Errorf("%w: device %q", blueprints.ErrNotFound, id)
}

func (c *testCatalog) Strain(id string) (blueprints.Strain, error) {
	if s, ok := c.strains[id]; ok {
		return s, nil
	}
	return blueprints.Strain{}, fmt.Errorf("%w: strain %q", blueprints.ErrNotFound, id)
}

func (c *testCatalog) Method(id string) (blueprints.Method, error) {
	if m, ok := c.methods[id]; ok {
		return m, nil
	}
	return blueprints.Method{}, fmt.Errorf("%w: method %q", blueprints.ErrNotFound, id)
}

func newTestCatalog() *testCatalog {
	pref := blueprints.EnvPreference{TempMin: 20, TempMax: 28, HumidityMin: 0.4, HumidityMax: 0.7, LightMin: 200, LightMax: 1000}
	return &testCatalog{
		devices: map[string]blueprints.Device{
			"ac": {
				ID: "ac", Kind: blueprints.KindClimateUnit, Quality: 1, LifespanHours: 40000,
				CapitalExpenditure: 220, MaintenancePerHour: 0.01,
				Settings: blueprints.DeviceSettings{PowerKW: 1, CoolingCapacityKW: 3, COP: 3, TargetTemperature: 24, HysteresisK: 1},
			},
			"lamp": {
				ID: "lamp", Kind: blueprints.KindLamp, Quality: 1, LifespanHours: 40000,
				CapitalExpenditure: 300,
				Settings:           blueprints.DeviceSettings{PowerKW: 0.6, HeatFraction: 0.5, PPFD: 800, CoverageArea: 1},
			},
		},
		strains: map[string]blueprints.Strain{
			"kush": {
				ID: "kush", GeneticVariance: 0.05, HarvestIndex: 0.6, LightUseEfficiency: 1, MaxDryMassG: 120,
				Resilience: 0.5, TemperatureQ10: 2, SeedlingDays: 7, VegetativeDays: 14, FloweringDays: 28,
				Photoperiod:         blueprints.Photoperiod{VegetativeHours: 18, FloweringHours: 12},
				Preferences:         blueprints.StagePreferences{Seedling: pref, Vegetative: pref, Flowering: pref},
				NutrientDemand:      blueprints.StageNutrients{Seedling: blueprints.NutrientRatio{N: 0.02, P: 0.01, K: 0.02}, Vegetative: blueprints.NutrientRatio{N: 0.04, P: 0.01, K: 0.03}, Flowering: blueprints.NutrientRatio{N: 0.02, P: 0.02, K: 0.04}},
				HarvestPricePerGram: 5,
				SeedCost:            3,
			},
		},
		methods: map[string]blueprints.Method{
			"sog": {ID: "sog", AreaPerPlant: 0.25, SetupCostPerPlant: 1},
		},
	}
}

func testSettings() Settings {
	return SettingsFromConfig(config.Default())
}

func newTestZone(t *testing.T, area float64, svc Services) *Zone {
	t.Helper()
	if svc.Catalog == nil {
		svc.Catalog = newTestCatalog()
	}
	z, err := NewZone("z1", area, 3, 7, testSettings(), svc)
	require.NoError(t, err)
	return z
}

func newTestLedger(capital float64) *ledger.CostEngine {
	cfg := config.Default()
	return ledger.New(capital, ledger.Prices{
		ElectricityPerKWh: cfg.Economics.ElectricityPrice,
		WaterPerL:         cfg.Economics.WaterPrice,
		FertilizerN:       cfg.Economics.FertilizerPrice.N,
		FertilizerP:       cfg.Economics.FertilizerPrice.P,
		FertilizerK:       cfg.Economics.FertilizerPrice.K,
	}, ledger.Options{Detailed: true})
}

func TestStructureAreaInvariant(t *testing.T) {
	s := NewStructure("s", 100, 4, 10)
	require.NoError(t, s.AddRoom(NewRoom("a", 60, 0, 1)))

	err := s.AddRoom(NewRoom("b", 41, 0, 1))
	assert.ErrorIs(t, err, ErrAreaExceeded)
	assert.Len(t, s.Rooms(), 1, "rejected room must leave the structure unchanged")
	assert.InDelta(t, 60, s.UsedArea(), 1e-12)

	require.NoError(t, s.AddRoom(NewRoom("c", 40, 0, 1)))
	assert.InDelta(t, 100, s.UsedArea(), 1e-12)
}

func TestRoomAreaInvariant(t *testing.T) {
	r := NewRoom("r", 10, 3, 0)
	z1 := newTestZone(t, 6, Services{})
	z2 := newTestZone(t, 5, Services{})
	require.NoError(t, r.AddZone(z1))

	err := r.AddZone(z2)
	assert.ErrorIs(t, err, ErrAreaExceeded)
	assert.Len(t, r.Zones(), 1)

	_, err = NewZone("bad", 0, 3, 1, testSettings(), Services{})
	assert.ErrorIs(t, err, ErrInvalidArea)
}

func TestHeightInheritance(t *testing.T) {
	s := NewStructure("s", 100, 4.5, 0)
	room := NewRoom("r", 50, 0, 0)
	require.NoError(t, s.AddRoom(room))
	assert.Equal(t, 4.5, room.Height)

	z, err := NewZone("z", 10, 0, 1, testSettings(), Services{})
	require.NoError(t, err)
	require.NoError(t, room.AddZone(z))
	assert.Equal(t, 4.5, z.Height)
	assert.Greater(t, z.Env.Moisture, 0.0, "environment initialized on attach")

	explicit := NewRoom("tall", 20, 6, 0)
	require.NoError(t, s.AddRoom(explicit))
	assert.Equal(t, 6.0, explicit.Height)

	s.Height = 3
	room.Height = 2
	assert.Equal(t, 4.5, z.Height, "attached children keep their resolved height")
	assert.Equal(t, 6.0, explicit.Height)
}

func TestHeightInheritedThroughLateRoomAttach(t *testing.T) {
	room := NewRoom("r", 50, 0, 0)
	z, err := NewZone("z", 10, 0, 1, testSettings(), Services{})
	require.NoError(t, err)
	require.NoError(t, room.AddZone(z))
	assert.Equal(t, 0.0, z.Height)

	s := NewStructure("s", 100, 3.2, 0)
	require.NoError(t, s.AddRoom(room))
	assert.Equal(t, 3.2, z.Height)
}

// Scenario A
func TestReplantFillsCapacity(t *testing.T) {
	rec := &telemetry.Recorder{}
	z := newTestZone(t, 1, Services{Sink: rec})
	require.NoError(t, z.SetTemplate("kush", "sog"))
	assert.Equal(t, 4, z.Capacity())

	z.HarvestAndInventory()
	assert.Len(t, z.Plants(), 4)
	assert.InDelta(t, 1.0, z.PlantedArea(), 1e-12)

	events := rec.OfType(telemetry.EventReplant)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].Count)

	n, err := z.Replant()
	require.NoError(t, err)
	assert.Zero(t, n, "full zone plants nothing")

	_, err = z.AddPlant("kush", "sog")
	assert.ErrorIs(t, err, ErrAreaExceeded)
}

// Scenario B
func TestAddDeviceNBooksOneCapexEntry(t *testing.T) {
	l := newTestLedger(1000)
	z := newTestZone(t, 10, Services{Ledger: l})
	cat := newTestCatalog()

	added, err := z.AddDeviceN(cat.devices["ac"], 2, nil)
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, z.Devices(), 2)

	hist := l.History()
	require.Len(t, hist, 1)
	require.Len(t, hist[0].Entries, 1)
	assert.Equal(t, ledger.CategoryCapex, hist[0].Entries[0].Category)
	assert.True(t, hist[0].Entries[0].Amount.Equal(decimal.NewFromInt(440)))

	require.NoError(t, l.StartTick(0))
	opening, ok := l.OpeningBalance()
	require.True(t, ok)
	assert.True(t, opening.Equal(decimal.NewFromInt(560)), "opening %s", opening)
}

func TestAddDevicesByIDUnknown(t *testing.T) {
	z := newTestZone(t, 10, Services{})
	_, err := z.AddDevicesByID("nope", 1, nil)
	assert.ErrorIs(t, err, ErrUnknownBlueprint)
}

// Scenario D
func TestHarvestBooksRevenue(t *testing.T) {
	l := newTestLedger(0)
	rec := &telemetry.Recorder{}
	z := newTestZone(t, 1, Services{Ledger: l, Sink: rec})

	p, err := z.AddPlant("kush", "sog")
	require.NoError(t, err)
	p.Stage = plants.StageHarvestReady
	p.Biomass.Partition = plants.Partition{Buds: 10}

	require.NoError(t, l.StartTick(0))
	z.ApplyDevices(0)
	z.HarvestAndInventory()
	r, err := l.CommitTick()
	require.NoError(t, err)

	assert.True(t, r.Totals.Revenue.Equal(decimal.NewFromInt(50)), "revenue %s", r.Totals.Revenue)
	assert.Empty(t, z.Plants())
	harvests := rec.OfType(telemetry.EventHarvest)
	require.Len(t, harvests, 1)
	assert.Equal(t, 10.0, harvests[0].Amount)
	assert.Equal(t, 50.0, harvests[0].Value)
}

func TestHarvestIsAllOrNothing(t *testing.T) {
	l := newTestLedger(0)
	z := newTestZone(t, 1, Services{Ledger: l})
	ready, err := z.AddPlant("kush", "sog")
	require.NoError(t, err)
	ready.Stage = plants.StageHarvestReady
	ready.Biomass.Partition = plants.Partition{Buds: 10}
	_, err = z.AddPlant("kush", "sog")
	require.NoError(t, err)

	require.NoError(t, l.StartTick(0))
	z.HarvestAndInventory()
	r, err := l.CommitTick()
	require.NoError(t, err)
	assert.True(t, r.Totals.Revenue.IsZero())
	assert.Len(t, z.Plants(), 2)
}

func TestIrrigationShortageSetsStress(t *testing.T) {
	l := newTestLedger(0)
	z := newTestZone(t, 1, Services{Ledger: l})
	a, _ := z.AddPlant("kush", "sog")
	b, _ := z.AddPlant("kush", "sog")

	a.WaterDemandL = 2
	a.NutrientDemand = environment.Nutrients{N: 1, P: 1, K: 1}
	b.WaterDemandL = z.Reservoir.CapacityL // more than what is left after a
	before := z.Reservoir

	require.NoError(t, l.StartTick(0))
	z.ApplyDevices(0)
	z.IrrigateAndFeed()
	r, err := l.CommitTick()
	require.NoError(t, err)

	assert.False(t, a.WaterStress)
	assert.False(t, a.NutrientStress)
	assert.True(t, b.WaterStress, "no partial fulfillment")
	assert.False(t, b.NutrientStress)
	assert.Equal(t, before.WaterL, z.Reservoir.WaterL, "consumption is resupplied")
	assert.True(t, r.Totals.WaterL.Equal(decimal.NewFromInt(2)))
	assert.InDelta(t, 2, z.CurrentCosts().WaterL, 1e-12)
	assert.True(t, r.Totals.OtherExpense.IsPositive())
}

func TestIrrigationOverCapacityStressesAll(t *testing.T) {
	z := newTestZone(t, 1, Services{})
	a, _ := z.AddPlant("kush", "sog")
	z.Reservoir.WaterL = z.Reservoir.CapacityL + 5

	z.ApplyDevices(0)
	z.IrrigateAndFeed()
	assert.True(t, a.WaterStress)
	assert.Equal(t, z.Reservoir.CapacityL, z.Reservoir.WaterL)
}

func TestClimateUnitCoolsZone(t *testing.T) {
	l := newTestLedger(100000)
	z := newTestZone(t, 10, Services{Ledger: l})
	_, err := z.AddDevicesByID("ac", 1, nil)
	require.NoError(t, err)
	z.Env = environment.NewState(30, 0.5, 400, z.Geometry())

	require.NoError(t, l.StartTick(0))
	z.ApplyDevices(0)
	assert.Less(t, z.Env.HeatW, 0.0)
	z.DeriveEnvironment()
	assert.Less(t, z.Env.Temperature, 30.0)
	z.IrrigateAndFeed()
	z.UpdatePlants(1, 0)
	z.HarvestAndInventory()
	z.Accounting(0)
	r, err := l.CommitTick()
	require.NoError(t, err)

	costs, ok := z.TickCosts(0)
	require.True(t, ok)
	assert.Greater(t, costs.EnergyKWh, 0.0)
	assert.InDelta(t, costs.EnergyKWh, r.Totals.EnergyKWh.InexactFloat64(), 1e-6)
	assert.True(t, r.Totals.Maintenance.IsPositive())
}

func TestBrokenDeviceReplacedInPlace(t *testing.T) {
	l := newTestLedger(10000)
	rec := &telemetry.Recorder{}
	cat := newTestCatalog()
	fragile := cat.devices["ac"]
	fragile.LifespanHours = 0.001
	fragile.Quality = 0.05
	cat.devices["ac"] = fragile
	z := newTestZone(t, 10, Services{Ledger: l, Sink: rec, Catalog: cat})

	_, err := z.AddDevicesByID("lamp", 1, nil)
	require.NoError(t, err)
	_, err = z.AddDevicesByID("ac", 1, map[string]interface{}{"target_temperature": 22})
	require.NoError(t, err)
	old := z.Devices()[1]

	require.NoError(t, l.StartTick(0))
	z.ApplyDevices(0)
	assert.Equal(t, devices.StatusBroken, old.Status())
	z.HarvestAndInventory()
	r, err := l.CommitTick()
	require.NoError(t, err)

	devs := z.Devices()
	require.Len(t, devs, 2)
	assert.Equal(t, "lamp", devs[0].BlueprintID())
	assert.Equal(t, "ac", devs[1].BlueprintID(), "same slot")
	assert.NotEqual(t, old.ID(), devs[1].ID())
	assert.Equal(t, devices.StatusOK, devs[1].Status())
	assert.Equal(t, 22.0, devs[1].Settings().TargetTemperature, "overrides carried over")
	assert.True(t, r.Totals.Capex.Equal(decimal.NewFromInt(220)))
	assert.Len(t, rec.OfType(telemetry.EventDeviceFailure), 1)
	assert.Len(t, rec.OfType(telemetry.EventDeviceReplaced), 1)
}

func TestBrokenDeviceRemovedWhenBlueprintGone(t *testing.T) {
	rec := &telemetry.Recorder{}
	cat := newTestCatalog()
	z := newTestZone(t, 10, Services{Sink: rec, Catalog: cat})
	bp := cat.devices["ac"]
	bp.ID = "discontinued"
	bp.LifespanHours = 0.001
	bp.Quality = 0.05
	_, err := z.AddDeviceN(bp, 1, nil)
	require.NoError(t, err)

	z.ApplyDevices(0)
	z.HarvestAndInventory()
	assert.Empty(t, z.Devices())
	removed := rec.OfType(telemetry.EventDeviceRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "discontinued", removed[0].Blueprint)
}

// panicDevice is a device whose effect always panics.
type panicDevice struct{ devices.Device }

func (panicDevice) ApplyEffect(*environment.State, devices.Context) error { panic("boom") }

func TestDevicePanicIsolated(t *testing.T) {
	rec := &telemetry.Recorder{}
	z := newTestZone(t, 10, Services{Sink: rec})
	cat := newTestCatalog()
	added, err := z.AddDeviceN(cat.devices["lamp"], 2, nil)
	require.NoError(t, err)
	z.devices[0] = panicDevice{added[0]}
	added[1].(devices.Switchable).SetOn(true)

	assert.NotPanics(t, func() { z.ApplyDevices(0) })
	assert.Greater(t, z.Env.PPFD, 0.0, "remaining devices still apply")
	errs := rec.OfType(telemetry.EventPhaseError)
	require.Len(t, errs, 1)
	assert.Equal(t, PhaseApplyDevices, errs[0].From)
}

func TestDeadPlantsRemoved(t *testing.T) {
	rec := &telemetry.Recorder{}
	z := newTestZone(t, 1, Services{Sink: rec})
	p, err := z.AddPlant("kush", "sog")
	require.NoError(t, err)
	_, err = z.AddPlant("kush", "sog")
	require.NoError(t, err)
	p.Health = 1e-9
	p.WaterStress = true
	z.settings.Plant.StressDamageThreshold = 0

	// Irrigation is skipped so the shortage flag persists.
	z.ApplyDevices(0)
	z.UpdatePlants(1, 0)

	assert.Len(t, z.Plants(), 1)
	deaths := rec.OfType(telemetry.EventDeath)
	require.Len(t, deaths, 1)
	assert.Equal(t, p.ID, deaths[0].EntityID)
	assert.Equal(t, 1, z.Status().Deaths["water"])
}

func TestPlantFluxesFoldIntoEnvironment(t *testing.T) {
	z := newTestZone(t, 1, Services{})
	require.NoError(t, z.SetTemplate("kush", "sog"))
	_, err := z.Replant()
	require.NoError(t, err)
	z.Env = environment.NewState(24, 0.5, 1000, z.Geometry())
	z.Env.PPFD = 600

	co2Before := z.Env.CO2
	moistureBefore := z.Env.Moisture
	z.UpdatePlants(1, 0)

	assert.Less(t, z.Env.CO2, co2Before)
	assert.Greater(t, z.Env.Moisture, moistureBefore)
	assert.Greater(t, z.Env.MoistureDelta, 0.0)
	assert.Less(t, z.Env.CO2Delta, 0.0)
}

func TestEmptyZoneConvergesToOutside(t *testing.T) {
	z := newTestZone(t, 10, Services{})
	out := z.settings.Physics

	t.Run("temperature", func(t *testing.T) {
		z.Env = environment.NewState(32, out.OutsideHumidity, out.OutsideCO2, z.Geometry())
		prev := math.Abs(z.Env.Temperature - out.OutsideTemperature)
		for tick := 0; tick < 48; tick++ {
			z.RunTick(tick)
			d := math.Abs(z.Env.Temperature - out.OutsideTemperature)
			require.LessOrEqual(t, d, prev, "tick %d", tick)
			prev = d
		}
		assert.Less(t, prev, 1.0)
	})

	t.Run("humidity and co2", func(t *testing.T) {
		z.Env = environment.NewState(out.OutsideTemperature, 0.9, 1800, z.Geometry())
		prevRH := math.Abs(z.Env.Humidity - out.OutsideHumidity)
		prevCO2 := math.Abs(z.Env.CO2 - out.OutsideCO2)
		for tick := 48; tick < 96; tick++ {
			z.RunTick(tick)
			rh := math.Abs(z.Env.Humidity - out.OutsideHumidity)
			co2 := math.Abs(z.Env.CO2 - out.OutsideCO2)
			require.LessOrEqual(t, rh, prevRH+1e-12, "tick %d", tick)
			require.LessOrEqual(t, co2, prevCO2+1e-9, "tick %d", tick)
			prevRH, prevCO2 = rh, co2
		}
		assert.Less(t, prevCO2, 10.0)
	})

	t.Run("temperature and humidity together", func(t *testing.T) {
		z.Env = environment.NewState(32, 0.85, 1500, z.Geometry())
		prevT := math.Abs(z.Env.Temperature - out.OutsideTemperature)
		prevRH := math.Abs(z.Env.Humidity - out.OutsideHumidity)
		for tick := 96; tick < 144; tick++ {
			z.RunTick(tick)
			d := math.Abs(z.Env.Temperature - out.OutsideTemperature)
			rh := math.Abs(z.Env.Humidity - out.OutsideHumidity)
			require.LessOrEqual(t, d, prevT, "tick %d", tick)
			require.LessOrEqual(t, rh, prevRH+1e-12, "tick %d", tick)
			prevT, prevRH = d, rh
		}
		assert.Less(t, prevRH, 0.05)
	})
}

func TestPhotoperiodFollowsStage(t *testing.T) {
	z := newTestZone(t, 1, Services{})
	assert.Zero(t, z.Photoperiod())

	a, _ := z.AddPlant("kush", "sog")
	b, _ := z.AddPlant("kush", "sog")
	assert.Equal(t, 18.0, z.Photoperiod())

	a.Stage = plants.StageFlowering
	b.Stage = plants.StageFlowering
	assert.Equal(t, 12.0, z.Photoperiod())
}

func TestStructureRollupAndOverhead(t *testing.T) {
	l := newTestLedger(1000)
	s := NewStructure("s", 100, 3, 2)
	r := NewRoom("r", 50, 0, 0.5)
	require.NoError(t, s.AddRoom(r))
	z := newTestZone(t, 10, Services{Ledger: l})
	require.NoError(t, r.AddZone(z))
	_, err := z.AddDevicesByID("ac", 2, nil)
	require.NoError(t, err)

	c := s.TotalCosts()
	assert.Equal(t, 2.0, c.RentPerHour)
	assert.Equal(t, 0.5, c.RoomMaintenancePerHour)
	assert.InDelta(t, 0.02, c.DeviceMaintenancePerHour, 1e-12)
	assert.Equal(t, 440.0, c.InstalledCapex)
	assert.Equal(t, 2, c.Devices)

	require.NoError(t, l.StartTick(0))
	s.BookOverhead(l, 2)
	rec, err := l.CommitTick()
	require.NoError(t, err)
	assert.True(t, rec.Totals.Maintenance.Equal(decimal.NewFromInt(5)))

	got, ok := s.Zone("z1")
	assert.True(t, ok)
	assert.Same(t, z, got)
}

func TestSetTemplateUnknown(t *testing.T) {
	z := newTestZone(t, 1, Services{})
	err := z.SetTemplate("nope", "sog")
	assert.True(t, errors.Is(err, ErrUnknownBlueprint))
	err = z.SetTemplate("kush", "nope")
	assert.True(t, errors.Is(err, ErrUnknownBlueprint))
}
