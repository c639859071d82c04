// Package blueprints defines the device, strain and cultivation-method
// records the simulation is built from, and loads them from YAML catalogs.
package blueprints

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownKind is returned for device kinds no variant implements.
	ErrUnknownKind = errors.New("unknown device kind")
	// ErrNotFound is returned when a blueprint id cannot be resolved.
	ErrNotFound = errors.New("blueprint not found")
)

// DeviceSettings is the kind-specific tunables bag. Fields a kind does not
// use stay zero.
type DeviceSettings struct {
	PowerKW float64 `yaml:"power_kw,omitempty" json:"power_kw,omitempty"`

	// Lamp
	HeatFraction float64 `yaml:"heat_fraction,omitempty" json:"heat_fraction,omitempty"`
	PPFD         float64 `yaml:"ppfd,omitempty" json:"ppfd,omitempty"`
	CoverageArea float64 `yaml:"coverage_area,omitempty" json:"coverage_area,omitempty"`

	// ClimateUnit
	CoolingCapacityKW float64 `yaml:"cooling_capacity_kw,omitempty" json:"cooling_capacity_kw,omitempty"`
	COP               float64 `yaml:"cop,omitempty" json:"cop,omitempty"`
	TargetTemperature float64 `yaml:"target_temperature,omitempty" json:"target_temperature,omitempty"`
	HysteresisK       float64 `yaml:"hysteresis_k,omitempty" json:"hysteresis_k,omitempty"`

	// Dehumidifier
	RemovalKgPerHour float64 `yaml:"removal_kg_per_hour,omitempty" json:"removal_kg_per_hour,omitempty"`

	// CO2Injector
	Mode          string  `yaml:"mode,omitempty" json:"mode,omitempty"`
	TargetCO2     float64 `yaml:"target_co2,omitempty" json:"target_co2,omitempty"`
	HysteresisPPM float64 `yaml:"hysteresis_ppm,omitempty" json:"hysteresis_ppm,omitempty"`
	PulsePPM      float64 `yaml:"pulse_ppm,omitempty" json:"pulse_ppm,omitempty"`

	// HumidityControlUnit
	TargetHumidity     float64 `yaml:"target_humidity,omitempty" json:"target_humidity,omitempty"`
	HysteresisRH       float64 `yaml:"hysteresis_rh,omitempty" json:"hysteresis_rh,omitempty"`
	MaxFractionPerTick float64 `yaml:"max_fraction_per_tick,omitempty" json:"max_fraction_per_tick,omitempty"`
	CapacityKgPerHour  float64 `yaml:"capacity_kg_per_hour,omitempty" json:"capacity_kg_per_hour,omitempty"`
}

// WithOverrides returns a copy of s with the fields present in overrides
// replaced. Keys use the YAML field names.
func (s DeviceSettings) WithOverrides(overrides map[string]interface{}) (DeviceSettings, error) {
	if len(overrides) == 0 {
		return s, nil
	}
	data, err := yaml.Marshal(overrides)
	if err != nil {
		return s, fmt.Errorf("marshaling overrides: %w", err)
	}
	out := s
	if err := yaml.Unmarshal(data, &out); err != nil {
		return s, fmt.Errorf("applying overrides: %w", err)
	}
	return out, nil
}

// Device is a device blueprint.
type Device struct {
	ID                 string         `yaml:"id"`
	Kind               DeviceKind     `yaml:"kind"`
	Name               string         `yaml:"name"`
	Quality            float64        `yaml:"quality"`
	LifespanHours      float64        `yaml:"lifespan_hours"`
	CapitalExpenditure float64        `yaml:"capital_expenditure"`
	MaintenancePerHour float64        `yaml:"maintenance_per_hour"`
	Settings           DeviceSettings `yaml:"settings"`
}

// EnvPreference is the comfortable range of a growth stage.
type EnvPreference struct {
	TempMin     float64 `yaml:"temp_min"`
	TempMax     float64 `yaml:"temp_max"`
	HumidityMin float64 `yaml:"humidity_min"`
	HumidityMax float64 `yaml:"humidity_max"`
	LightMin    float64 `yaml:"light_min"`
	LightMax    float64 `yaml:"light_max"`
}

// OptimalTemperature returns the middle of the temperature range.
func (e EnvPreference) OptimalTemperature() float64 {
	return (e.TempMin + e.TempMax) / 2
}

// StagePreferences groups per-stage environment preferences.
type StagePreferences struct {
	Seedling   EnvPreference `yaml:"seedling"`
	Vegetative EnvPreference `yaml:"vegetative"`
	Flowering  EnvPreference `yaml:"flowering"`
}

// NutrientRatio is grams of N/P/K required per gram of assimilated dry mass.
type NutrientRatio struct {
	N float64 `yaml:"n"`
	P float64 `yaml:"p"`
	K float64 `yaml:"k"`
}

// StageNutrients groups per-stage nutrient ratios.
type StageNutrients struct {
	Seedling   NutrientRatio `yaml:"seedling"`
	Vegetative NutrientRatio `yaml:"vegetative"`
	Flowering  NutrientRatio `yaml:"flowering"`
}

// Photoperiod is the number of light hours per day by phase.
type Photoperiod struct {
	VegetativeHours float64 `yaml:"vegetative_hours"`
	FloweringHours  float64 `yaml:"flowering_hours"`
}

// Strain is a strain blueprint.
type Strain struct {
	ID                  string           `yaml:"id"`
	Name                string           `yaml:"name"`
	GeneticVariance     float64          `yaml:"genetic_variance"`
	HarvestIndex        float64          `yaml:"harvest_index"`
	LightUseEfficiency  float64          `yaml:"light_use_efficiency"` // g dry mass per mol photons
	MaxDryMassG         float64          `yaml:"max_dry_mass_g"`
	Resilience          float64          `yaml:"resilience"` // 0..1
	TemperatureQ10      float64          `yaml:"temperature_q10"`
	SeedlingDays        float64          `yaml:"seedling_days"`
	VegetativeDays      float64          `yaml:"vegetative_days"`
	FloweringDays       float64          `yaml:"flowering_days"`
	Photoperiod         Photoperiod      `yaml:"photoperiod"`
	Preferences         StagePreferences `yaml:"preferences"`
	NutrientDemand      StageNutrients   `yaml:"nutrient_demand"`
	HarvestPricePerGram float64          `yaml:"harvest_price_per_gram"`
	SeedCost            float64          `yaml:"seed_cost"`
}

// Method is a cultivation method blueprint.
type Method struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	AreaPerPlant      float64 `yaml:"area_per_plant"`
	SetupCostPerPlant float64 `yaml:"setup_cost_per_plant"`
}
