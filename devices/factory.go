package devices

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pthm-cable/canopy/blueprints"
)

// Options adjusts how a blueprint is instantiated.
type Options struct {
	// ID overrides the generated identity.
	ID string
	// DefaultLifespanHours is used when the blueprint has no lifespan.
	DefaultLifespanHours float64
	// MTBFMultiplier scales the lifespan (difficulty profile). Zero means 1.
	MTBFMultiplier float64
	// Overrides replace blueprint settings by YAML field name.
	Overrides map[string]interface{}
}

// New builds the variant matching bp.Kind. The rng becomes the device's
// private failure source; when no ID is given one is drawn from it.
func New(bp blueprints.Device, rng *rand.Rand, opts Options) (Device, error) {
	settings, err := bp.Settings.WithOverrides(opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", bp.ID, err)
	}

	id := opts.ID
	if id == "" {
		u, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("device %s: generating id: %w", bp.ID, err)
		}
		id = u.String()
	}

	lifespan := bp.LifespanHours
	if lifespan <= 0 {
		lifespan = opts.DefaultLifespanHours
	}
	mult := opts.MTBFMultiplier
	if mult <= 0 {
		mult = 1
	}

	b := base{
		id:          id,
		blueprintID: bp.ID,
		name:        bp.Name,
		kind:        bp.Kind,
		quality:     clampQuality(bp.Quality),
		mtbfHours:   lifespan * mult,
		capex:       bp.CapitalExpenditure,
		maintenance: bp.MaintenancePerHour,
		settings:    settings,
		rng:         rand.New(rand.NewSource(rng.Int63())),
	}

	switch bp.Kind {
	case blueprints.KindLamp:
		return &Lamp{base: b}, nil
	case blueprints.KindClimateUnit:
		return &ClimateUnit{base: b}, nil
	case blueprints.KindDehumidifier:
		return &Dehumidifier{base: b}, nil
	case blueprints.KindCO2Injector:
		return &CO2Injector{base: b}, nil
	case blueprints.KindHumidityControlUnit:
		return &HumidityControlUnit{base: b}, nil
	default:
		return nil, fmt.Errorf("device %s: %w: %s", bp.ID, ErrUnknownKind, bp.Kind)
	}
}
