// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig            `yaml:"simulation"`
	Physics    PhysicsConfig               `yaml:"physics"`
	Outside    OutsideConfig               `yaml:"outside"`
	Bounds     BoundsConfig                `yaml:"bounds"`
	Plant      PlantConfig                 `yaml:"plant"`
	Economics  EconomicsConfig             `yaml:"economics"`
	Difficulty map[string]DifficultyConfig `yaml:"difficulty"`
	Devices    DevicesConfig               `yaml:"devices"`
	Telemetry  TelemetryConfig             `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds tick pacing and run-wide switches.
type SimulationConfig struct {
	TickHours      float64 `yaml:"tick_hours"`      // Simulated hours per tick
	Seed           int64   `yaml:"seed"`            // RNG seed (0 = caller decides)
	StartHour      float64 `yaml:"start_hour"`      // Hour of day at tick 0
	ParallelZones  bool    `yaml:"parallel_zones"`  // Run independent zones concurrently within a tick
	DetailedLedger bool    `yaml:"detailed_ledger"` // Keep itemized ledger entries
	Difficulty     string  `yaml:"difficulty"`      // Name of the active difficulty profile
}

// PhysicsConfig holds the environmental integration constants.
type PhysicsConfig struct {
	AirDensity            float64 `yaml:"air_density"`             // kg/m³
	AirSpecificHeat       float64 `yaml:"air_specific_heat"`       // J/(kg·K)
	ThermalMassMultiplier float64 `yaml:"thermal_mass_multiplier"` // Shell/water/inventory inertia on top of air
	AirChangesPerHour     float64 `yaml:"air_changes_per_hour"`    // Exchange rate with outside air
	AtmosphericPressure   float64 `yaml:"atmospheric_pressure"`    // Pa
}

// OutsideConfig describes the air the zones exchange with.
type OutsideConfig struct {
	Temperature float64 `yaml:"temperature"` // °C
	Humidity    float64 `yaml:"humidity"`    // 0..1
	CO2         float64 `yaml:"co2"`         // ppm
}

// BoundsConfig holds clamp ranges for derived environment values.
type BoundsConfig struct {
	HumidityMin float64 `yaml:"humidity_min"`
	HumidityMax float64 `yaml:"humidity_max"`
	CO2Min      float64 `yaml:"co2_min"`
	CO2Max      float64 `yaml:"co2_max"`
}

// PlantConfig holds growth and stress model coefficients shared by all strains.
type PlantConfig struct {
	InitialDryMassG   float64 `yaml:"initial_dry_mass_g"`  // Seedling dry mass at planting
	DryMatterFraction float64 `yaml:"dry_matter_fraction"` // dry / fresh
	SpecificLeafArea  float64 `yaml:"specific_leaf_area"`  // m² leaf per g leaf dry mass
	LightExtinction   float64 `yaml:"light_extinction"`    // Beer-Lambert k for interception
	MaxLAI            float64 `yaml:"max_lai"`

	// Assimilation (Michaelis-Menten half saturation constants)
	LightHalfSaturation float64 `yaml:"light_half_saturation"` // µmol/m²/s
	CO2HalfSaturation   float64 `yaml:"co2_half_saturation"`   // ppm
	CO2Saturation       float64 `yaml:"co2_saturation"`        // ppm at which the CO₂ factor reaches 1
	CO2PerDryGram       float64 `yaml:"co2_per_dry_gram"`      // g CO₂ fixed per g dry mass

	// Transpiration
	TranspirationRate float64 `yaml:"transpiration_rate"` // L per m² leaf per hour at VPD 1 kPa, full light
	ReferencePPFD     float64 `yaml:"reference_ppfd"`     // PPFD treated as full light
	WaterPerDryGram   float64 `yaml:"water_per_dry_gram"` // L of water bound per g of dry growth

	// Respiration and noise
	MaintenanceRespiration float64 `yaml:"maintenance_respiration"` // fraction of dry mass per hour at 20°C
	RespirationQ10         float64 `yaml:"respiration_q10"`
	GrowthNoise            float64 `yaml:"growth_noise"` // ± fraction applied to each growth increment

	// Stress
	StressRetain      float64 `yaml:"stress_retain"` // low-pass weight of the previous stress value
	StressJitter      float64 `yaml:"stress_jitter"` // ± bound of stochastic stress noise
	TempDeadband      float64 `yaml:"temp_deadband"`
	HumidityDeadband  float64 `yaml:"humidity_deadband"`
	LightDeadband     float64 `yaml:"light_deadband"`
	TempTolerance     float64 `yaml:"temp_tolerance"`     // °C beyond the optimum for full stress
	HumidityTolerance float64 `yaml:"humidity_tolerance"` // RH beyond the optimum for full stress
	LightTolerance    float64 `yaml:"light_tolerance"`    // PPFD beyond the optimum for full stress
	WaterStressWeight float64 `yaml:"water_stress_weight"`
	NutrientStressWt  float64 `yaml:"nutrient_stress_weight"`

	// Health
	StressDamageThreshold float64 `yaml:"stress_damage_threshold"`
	DamageRate            float64 `yaml:"damage_rate"`   // health lost per hour at stress 1
	RecoveryRate          float64 `yaml:"recovery_rate"` // health regained per hour at stress 0
}

// NutrientAmounts is an N/P/K triple in grams.
type NutrientAmounts struct {
	N float64 `yaml:"n"`
	P float64 `yaml:"p"`
	K float64 `yaml:"k"`
}

// EconomicsConfig holds base prices and starting capital.
type EconomicsConfig struct {
	InitialCapital         float64         `yaml:"initial_capital"`
	ElectricityPrice       float64         `yaml:"electricity_price"` // €/kWh
	WaterPrice             float64         `yaml:"water_price"`       // €/L
	FertilizerPrice        NutrientAmounts `yaml:"fertilizer_price"`  // €/g
	ReservoirLitersPerM2   float64         `yaml:"reservoir_liters_per_m2"`
	NutrientCapacityPerM2  NutrientAmounts `yaml:"nutrient_capacity_per_m2"` // g
	DeviceMaintenanceScale float64         `yaml:"device_maintenance_scale"`
}

// DifficultyConfig holds the multipliers of a difficulty profile.
type DifficultyConfig struct {
	DeviceMTBFMultiplier  float64 `yaml:"device_mtbf_multiplier"`
	EnergyPriceMultiplier float64 `yaml:"energy_price_multiplier"`
	WaterPriceMultiplier  float64 `yaml:"water_price_multiplier"`
	RevenueMultiplier     float64 `yaml:"revenue_multiplier"`
	InitialCapital        float64 `yaml:"initial_capital"` // 0 = economics.initial_capital
}

// DevicesConfig holds defaults for device reliability.
type DevicesConfig struct {
	DefaultLifespanHours float64 `yaml:"default_lifespan_hours"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	SummaryHours float64 `yaml:"summary_hours"` // Simulated hours per zone summary window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickSeconds    float64          // Simulation.TickHours in seconds
	TicksPerDay    int              // Ticks in one simulated day (at least 1)
	TicksPerWindow int              // Ticks per telemetry summary window (at least 1)
	Difficulty     DifficultyConfig // Active profile with zero multipliers defaulted to 1
	InitialCapital float64          // Profile override or economics.initial_capital
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Simulation.TickHours <= 0 {
		return fmt.Errorf("simulation.tick_hours must be positive, got %v", c.Simulation.TickHours)
	}
	if c.Physics.AirDensity <= 0 || c.Physics.AirSpecificHeat <= 0 {
		return fmt.Errorf("physics.air_density and physics.air_specific_heat must be positive")
	}
	if c.Physics.ThermalMassMultiplier < 1 {
		return fmt.Errorf("physics.thermal_mass_multiplier must be >= 1, got %v", c.Physics.ThermalMassMultiplier)
	}
	if c.Bounds.HumidityMin > c.Bounds.HumidityMax || c.Bounds.CO2Min > c.Bounds.CO2Max {
		return fmt.Errorf("bounds: min exceeds max")
	}
	if c.Simulation.Difficulty != "" {
		if _, ok := c.Difficulty[c.Simulation.Difficulty]; !ok {
			return fmt.Errorf("unknown difficulty %q (have %v)", c.Simulation.Difficulty, c.DifficultyNames())
		}
	}
	return nil
}

// DifficultyNames returns the configured profile names in sorted order.
func (c *Config) DifficultyNames() []string {
	names := make([]string, 0, len(c.Difficulty))
	for name := range c.Difficulty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDifficulty switches the active profile and recomputes derived values.
func (c *Config) SetDifficulty(name string) error {
	if _, ok := c.Difficulty[name]; !ok {
		return fmt.Errorf("unknown difficulty %q (have %v)", name, c.DifficultyNames())
	}
	c.Simulation.Difficulty = name
	c.computeDerived()
	return nil
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TickSeconds = c.Simulation.TickHours * 3600

	c.Derived.TicksPerDay = int(24/c.Simulation.TickHours + 0.5)
	if c.Derived.TicksPerDay < 1 {
		c.Derived.TicksPerDay = 1
	}
	c.Derived.TicksPerWindow = int(c.Telemetry.SummaryHours/c.Simulation.TickHours + 0.5)
	if c.Derived.TicksPerWindow < 1 {
		c.Derived.TicksPerWindow = 1
	}

	d := c.Difficulty[c.Simulation.Difficulty]
	if d.DeviceMTBFMultiplier == 0 {
		d.DeviceMTBFMultiplier = 1
	}
	if d.EnergyPriceMultiplier == 0 {
		d.EnergyPriceMultiplier = 1
	}
	if d.WaterPriceMultiplier == 0 {
		d.WaterPriceMultiplier = 1
	}
	if d.RevenueMultiplier == 0 {
		d.RevenueMultiplier = 1
	}
	c.Derived.Difficulty = d

	c.Derived.InitialCapital = c.Economics.InitialCapital
	if d.InitialCapital > 0 {
		c.Derived.InitialCapital = d.InitialCapital
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Difficulty = make(map[string]DifficultyConfig, len(c.Difficulty))
	for k, v := range c.Difficulty {
		cp.Difficulty[k] = v
	}
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
