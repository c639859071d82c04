// Package plants implements the per-plant growth, stress and health model.
package plants

import (
	"math/rand"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/environment"
)

// Partition splits dry mass among plant organs, in grams.
type Partition struct {
	Leaves float64 `json:"leaves"`
	Stems  float64 `json:"stems"`
	Roots  float64 `json:"roots"`
	Buds   float64 `json:"buds"`
}

// Total returns the summed organ mass.
func (p Partition) Total() float64 {
	return p.Leaves + p.Stems + p.Roots + p.Buds
}

func (p Partition) scale(f float64) Partition {
	return Partition{Leaves: p.Leaves * f, Stems: p.Stems * f, Roots: p.Roots * f, Buds: p.Buds * f}
}

// Biomass is the plant's mass state.
type Biomass struct {
	DryG      float64   `json:"dry_g"`
	FreshG    float64   `json:"fresh_g"`
	Partition Partition `json:"partition"`
}

// Vegetative organ shares of non-bud growth.
const (
	leafShare = 0.5
	stemShare = 0.3
	rootShare = 0.2
)

// Plant is a single plant in a zone.
type Plant struct {
	ID       string
	ZoneID   string
	StrainID string
	MethodID string
	Strain   *blueprints.Strain

	Area     float64 // m² footprint
	LAI      float64
	Stage    Stage
	Health   float64 // 0..1
	Stress   float64 // 0..1, after resilience
	Genetics float64 // multiplier drawn once at creation
	Biomass  Biomass

	AgeHours        float64
	StageStartHours float64

	// Demand of the last update, drawn by irrigation on the next tick.
	WaterDemandL   float64
	NutrientDemand environment.Nutrients
	// Set by irrigation when the reservoir could not serve the demand.
	WaterStress    bool
	NutrientStress bool

	CauseOfDeath string
	Seed         int64

	filtered float64 // low-pass stress before resilience
	rng      *rand.Rand
}

// New creates a seedling. The genetic multiplier and all later noise come
// from a private RNG seeded with seed.
func New(id string, strain *blueprints.Strain, methodID string, area float64, seed int64, cfg *config.PlantConfig) *Plant {
	rng := rand.New(rand.NewSource(seed))
	genetics := 1 + (rng.Float64()*2-1)*strain.GeneticVariance

	p := &Plant{
		ID:       id,
		StrainID: strain.ID,
		MethodID: methodID,
		Strain:   strain,
		Area:     area,
		Stage:    StageSeedling,
		Health:   1,
		Genetics: genetics,
		Seed:     seed,
		rng:      rng,
	}
	dry := cfg.InitialDryMassG
	p.Biomass.Partition = Partition{
		Leaves: dry * leafShare,
		Stems:  dry * stemShare,
		Roots:  dry * rootShare,
	}
	p.refreshDerived(cfg)
	return p
}

// Alive reports whether the plant is not dead.
func (p *Plant) Alive() bool {
	return p.Stage.Alive()
}

// BudMassG returns the harvestable bud dry mass.
func (p *Plant) BudMassG() float64 {
	return p.Biomass.Partition.Buds
}

// StageDays returns the days spent in the current stage.
func (p *Plant) StageDays() float64 {
	return (p.AgeHours - p.StageStartHours) / 24
}

// Preferences returns the environment preference of the current stage.
func (p *Plant) Preferences() blueprints.EnvPreference {
	switch p.Stage {
	case StageSeedling:
		return p.Strain.Preferences.Seedling
	case StageVegetative:
		return p.Strain.Preferences.Vegetative
	default:
		return p.Strain.Preferences.Flowering
	}
}

// PhotoperiodHours returns the light hours the current stage wants.
func (p *Plant) PhotoperiodHours() float64 {
	if p.Stage == StageSeedling || p.Stage == StageVegetative {
		return p.Strain.Photoperiod.VegetativeHours
	}
	return p.Strain.Photoperiod.FloweringHours
}

func (p *Plant) nutrientRatio() blueprints.NutrientRatio {
	switch p.Stage {
	case StageSeedling:
		return p.Strain.NutrientDemand.Seedling
	case StageVegetative:
		return p.Strain.NutrientDemand.Vegetative
	default:
		return p.Strain.NutrientDemand.Flowering
	}
}

func (p *Plant) refreshDerived(cfg *config.PlantConfig) {
	p.Biomass.DryG = p.Biomass.Partition.Total()
	if cfg.DryMatterFraction > 0 {
		p.Biomass.FreshG = p.Biomass.DryG / cfg.DryMatterFraction
	}
	if p.Area > 0 {
		p.LAI = min(cfg.MaxLAI, p.Biomass.Partition.Leaves*cfg.SpecificLeafArea/p.Area)
	}
}
