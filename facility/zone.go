package facility

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/devices"
	"github.com/pthm-cable/canopy/environment"
	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/plants"
	"github.com/pthm-cable/canopy/telemetry"
)

// Catalog resolves blueprints by id.
type Catalog interface {
	Device(id string) (blueprints.Device, error)
	Strain(id string) (blueprints.Strain, error)
	Method(id string) (blueprints.Method, error)
}

// Services are the collaborators a zone books, resolves and reports through.
type Services struct {
	Ledger  *ledger.CostEngine
	Catalog Catalog
	Sink    telemetry.Sink
	Logger  *slog.Logger
}

// Settings holds the zone-independent parameters of the tick pipeline.
type Settings struct {
	TickHours             float64
	Physics               environment.Params
	Plant                 config.PlantConfig
	ReservoirLitersPerM2  float64
	NutrientCapacityPerM2 environment.Nutrients
	MaintenanceScale      float64
	RevenueMultiplier     float64
	Device                devices.Options
}

// SettingsFromConfig extracts zone settings from a loaded config, applying
// the active difficulty profile.
func SettingsFromConfig(cfg *config.Config) Settings {
	diff := cfg.Derived.Difficulty
	np := cfg.Economics.NutrientCapacityPerM2
	return Settings{
		TickHours:             cfg.Simulation.TickHours,
		Physics:               environment.ParamsFromConfig(cfg),
		Plant:                 cfg.Plant,
		ReservoirLitersPerM2:  cfg.Economics.ReservoirLitersPerM2,
		NutrientCapacityPerM2: environment.Nutrients{N: np.N, P: np.P, K: np.K},
		MaintenanceScale:      cfg.Economics.DeviceMaintenanceScale,
		RevenueMultiplier:     diff.RevenueMultiplier,
		Device: devices.Options{
			DefaultLifespanHours: cfg.Devices.DefaultLifespanHours,
			MTBFMultiplier:       diff.DeviceMTBFMultiplier,
		},
	}
}

// Reservoir is the zone's irrigation tank.
type Reservoir struct {
	WaterL           float64               `json:"water_l"`
	CapacityL        float64               `json:"capacity_l"`
	Nutrients        environment.Nutrients `json:"nutrients"`
	NutrientCapacity environment.Nutrients `json:"nutrient_capacity"`
}

// Template is the planting recipe used to refill the zone.
type Template struct {
	StrainID     string  `json:"strain"`
	MethodID     string  `json:"method"`
	AreaPerPlant float64 `json:"area_per_plant"`
}

// deviceUse is the consumption of one device during the device phase,
// booked by the accounting phase.
type deviceUse struct {
	source      string
	kWh         float64
	waterL      float64
	maintenance float64
}

// recentCosts is how many committed tick tallies a zone keeps.
const recentCosts = 48

// Zone is the smallest simulated unit: an environment with devices and
// plants, a reservoir, and the six-phase tick pipeline.
type Zone struct {
	ID     string
	Name   string
	Area   float64
	Height float64 // 0 = inherit from the room on attach

	Env       environment.State
	Reservoir Reservoir

	settings Settings
	svc      Services
	logger   *slog.Logger
	rng      *rand.Rand

	devices   []devices.Device
	overrides map[string]map[string]interface{}
	plants    []*plants.Plant
	template  *Template
	strains   map[string]*blueprints.Strain
	envReady  bool

	tick    int
	pending []deviceUse
	tally   TickCosts
	costs   map[int]TickCosts

	deaths      map[string]int
	harvested   int
	failures    int
	phaseErrors int
}

// NewZone creates a zone. The seed drives every stochastic draw of the
// zone: ids, device failures and plant noise. A zone with a height gets its
// environment now; otherwise on attach.
func NewZone(id string, area, height float64, seed int64, settings Settings, svc Services) (*Zone, error) {
	if area <= 0 {
		return nil, fmt.Errorf("zone %s: %w", id, ErrInvalidArea)
	}
	if settings.TickHours <= 0 {
		return nil, fmt.Errorf("zone %s: tick hours must be positive", id)
	}
	if svc.Sink == nil {
		svc.Sink = telemetry.NopSink{}
	}
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	z := &Zone{
		ID:        id,
		Name:      id,
		Area:      area,
		Height:    height,
		settings:  settings,
		svc:       svc,
		logger:    logger.With("zone", id),
		rng:       rand.New(rand.NewSource(seed)),
		overrides: make(map[string]map[string]interface{}),
		strains:   make(map[string]*blueprints.Strain),
		costs:     make(map[int]TickCosts),
		deaths:    make(map[string]int),
	}
	capL := settings.ReservoirLitersPerM2
	if capL <= 0 {
		capL = 10
	}
	z.Reservoir = Reservoir{
		CapacityL:        area * capL,
		WaterL:           area * capL,
		NutrientCapacity: settings.NutrientCapacityPerM2.Scale(area),
		Nutrients:        settings.NutrientCapacityPerM2.Scale(area),
	}
	if height > 0 {
		z.initEnvironment()
	}
	return z, nil
}

func (z *Zone) attach(height float64) {
	if z.Height == 0 {
		z.Height = height
	}
	if !z.envReady && z.Height > 0 {
		z.initEnvironment()
	}
}

func (z *Zone) initEnvironment() {
	p := z.settings.Physics
	z.Env = environment.NewState(p.OutsideTemperature, p.OutsideHumidity, p.OutsideCO2, z.Geometry())
	z.Env.Nutrients = z.Reservoir.Nutrients
	z.envReady = true
}

// Geometry returns the zone's area and height.
func (z *Zone) Geometry() environment.Geometry {
	return environment.Geometry{Area: z.Area, Height: z.Height}
}

// TickHours returns the zone's tick duration.
func (z *Zone) TickHours() float64 {
	return z.settings.TickHours
}

// Devices returns the devices in insertion order.
func (z *Zone) Devices() []devices.Device {
	return append([]devices.Device(nil), z.devices...)
}

// Plants returns the live plants in insertion order.
func (z *Zone) Plants() []*plants.Plant {
	return append([]*plants.Plant(nil), z.plants...)
}

// Template returns the planting template, nil when none is set.
func (z *Zone) Template() *Template {
	if z.template == nil {
		return nil
	}
	t := *z.template
	return &t
}

func (z *Zone) newID() string {
	u, err := uuid.NewRandomFromReader(z.rng)
	if err != nil {
		// math/rand never fails a read
		panic(err)
	}
	return u.String()
}

func (z *Zone) deviceSource(d devices.Device) string {
	return z.ID + "/" + d.ID()
}

// AddDeviceN installs n devices of bp and books their capex as one entry.
func (z *Zone) AddDeviceN(bp blueprints.Device, n int, overrides map[string]interface{}) ([]devices.Device, error) {
	if n <= 0 {
		return nil, nil
	}
	opts := z.settings.Device
	opts.Overrides = overrides
	added := make([]devices.Device, 0, n)
	for i := 0; i < n; i++ {
		d, err := devices.New(bp, z.rng, opts)
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", z.ID, err)
		}
		added = append(added, d)
	}
	for _, d := range added {
		z.devices = append(z.devices, d)
		if len(overrides) > 0 {
			z.overrides[d.ID()] = overrides
		}
	}
	z.bookCapex(z.ID, bp.CapitalExpenditure*float64(n))
	z.logger.Debug("devices installed", "blueprint", bp.ID, "count", n)
	return added, nil
}

// AddDevicesByID resolves a device blueprint through the catalog and
// installs n of it.
func (z *Zone) AddDevicesByID(blueprintID string, n int, overrides map[string]interface{}) ([]devices.Device, error) {
	if z.svc.Catalog == nil {
		return nil, fmt.Errorf("zone %s: device %q: %w", z.ID, blueprintID, ErrUnknownBlueprint)
	}
	bp, err := z.svc.Catalog.Device(blueprintID)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w: %w", z.ID, ErrUnknownBlueprint, err)
	}
	return z.AddDeviceN(bp, n, overrides)
}

func (z *Zone) strain(id string) (*blueprints.Strain, error) {
	if s, ok := z.strains[id]; ok {
		return s, nil
	}
	if z.svc.Catalog == nil {
		return nil, fmt.Errorf("strain %q: %w", id, ErrUnknownBlueprint)
	}
	s, err := z.svc.Catalog.Strain(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownBlueprint, err)
	}
	z.strains[id] = &s
	return &s, nil
}

func (z *Zone) method(id string) (blueprints.Method, error) {
	if z.svc.Catalog == nil {
		return blueprints.Method{}, fmt.Errorf("method %q: %w", id, ErrUnknownBlueprint)
	}
	m, err := z.svc.Catalog.Method(id)
	if err != nil {
		return blueprints.Method{}, fmt.Errorf("%w: %w", ErrUnknownBlueprint, err)
	}
	return m, nil
}

// PlantedArea returns the summed footprint of the live plants.
func (z *Zone) PlantedArea() float64 {
	var sum float64
	for _, p := range z.plants {
		sum += p.Area
	}
	return sum
}

// AddPlant plants one seedling of the strain with the method's footprint.
func (z *Zone) AddPlant(strainID, methodID string) (*plants.Plant, error) {
	s, err := z.strain(strainID)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	m, err := z.method(methodID)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	if z.PlantedArea()+m.AreaPerPlant > z.Area+areaEpsilon {
		return nil, fmt.Errorf("zone %s: plant of %.2f m² with %.2f of %.2f m² planted: %w",
			z.ID, m.AreaPerPlant, z.PlantedArea(), z.Area, ErrAreaExceeded)
	}
	id := z.newID()
	p := plants.New(id, s, m.ID, m.AreaPerPlant, z.rng.Int63(), &z.settings.Plant)
	p.ZoneID = z.ID
	z.plants = append(z.plants, p)
	return p, nil
}

// SetTemplate records the strain and method used for replanting.
func (z *Zone) SetTemplate(strainID, methodID string) error {
	if _, err := z.strain(strainID); err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	m, err := z.method(methodID)
	if err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	if m.AreaPerPlant <= 0 {
		return fmt.Errorf("zone %s: method %s: %w", z.ID, m.ID, ErrInvalidArea)
	}
	z.template = &Template{StrainID: strainID, MethodID: m.ID, AreaPerPlant: m.AreaPerPlant}
	return nil
}

// Capacity returns how many plants of the template fit the zone, 0 without
// a template.
func (z *Zone) Capacity() int {
	if z.template == nil || z.template.AreaPerPlant <= 0 {
		return 0
	}
	return int(math.Floor(z.Area/z.template.AreaPerPlant + areaEpsilon))
}

// Replant fills the zone up to capacity with the template and books one
// seed cost per new plant. Returns the number planted.
func (z *Zone) Replant() (int, error) {
	return z.PlantTemplate(z.Capacity())
}

// PlantTemplate plants up to n template plants, never past capacity, and
// books their seed and setup cost. Returns the number planted.
func (z *Zone) PlantTemplate(n int) (int, error) {
	if z.template == nil {
		return 0, nil
	}
	t := *z.template
	n = min(n, z.Capacity()-len(z.plants))
	if n <= 0 {
		return 0, nil
	}
	s, err := z.strain(t.StrainID)
	if err != nil {
		return 0, fmt.Errorf("zone %s: replant: %w", z.ID, err)
	}
	m, err := z.method(t.MethodID)
	if err != nil {
		return 0, fmt.Errorf("zone %s: replant: %w", z.ID, err)
	}

	planted := 0
	for i := 0; i < n; i++ {
		if _, err := z.AddPlant(t.StrainID, t.MethodID); err != nil {
			return planted, err
		}
		planted++
	}
	cost := (s.SeedCost + m.SetupCostPerPlant) * float64(planted)
	z.bookSeeds(cost)
	z.svc.Sink.Emit(telemetry.NewReplantEvent(z.tick, z.ID, t.StrainID, planted, cost))
	z.logger.Info("replanted", "strain", t.StrainID, "count", planted)
	return planted, nil
}

// Photoperiod returns the light hours the plants want: flowering hours when
// flowering plants outnumber the rest, vegetative hours otherwise, and 0
// for an empty zone.
func (z *Zone) Photoperiod() float64 {
	if len(z.plants) == 0 {
		return 0
	}
	var flowering, growing int
	var flowerHours, vegHours float64
	for _, p := range z.plants {
		switch p.Stage {
		case plants.StageFlowering, plants.StageHarvestReady:
			if flowering == 0 {
				flowerHours = p.PhotoperiodHours()
			}
			flowering++
		default:
			if growing == 0 {
				vegHours = p.PhotoperiodHours()
			}
			growing++
		}
	}
	if flowering > growing {
		return flowerHours
	}
	return vegHours
}

// ScheduleLights switches the zone's lamps for tick. Returns lamps lit.
func (z *Zone) ScheduleLights(lc devices.LightCycle, tick int) int {
	return lc.Apply(z.devices, tick, z.Photoperiod())
}
