package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/scenario"
)

// ParamSpec defines a single optimizable parameter. Parameters with a Kind
// become a setting override on every device of that kind in the savegame;
// the others are config fields.
type ParamSpec struct {
	Name    string                // Human-readable name
	Kind    blueprints.DeviceKind // 0 = config parameter
	Key     string                // Override key or config path
	Min     float64               // Lower bound
	Max     float64               // Upper bound
	Default float64               // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Climate
			{Name: "target_temperature", Kind: blueprints.KindClimateUnit, Key: "target_temperature", Min: 18, Max: 30, Default: 24},
			{Name: "hysteresis_k", Kind: blueprints.KindClimateUnit, Key: "hysteresis_k", Min: 0.2, Max: 3, Default: 1},
			// Air
			{Name: "target_co2", Kind: blueprints.KindCO2Injector, Key: "target_co2", Min: 400, Max: 1500, Default: 1000},
			{Name: "target_humidity", Kind: blueprints.KindHumidityControlUnit, Key: "target_humidity", Min: 0.35, Max: 0.7, Default: 0.55},
			// Lighting schedule
			{Name: "start_hour", Key: "simulation.start_hour", Min: 0, Max: 23, Default: 0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Apply returns copies of cfg and sg with the parameter values applied.
// The catalog resolves which devices each override reaches.
func (pv *ParamVector) Apply(cfg *config.Config, sg *scenario.Savegame, cat *blueprints.Catalog, values []float64) (*config.Config, *scenario.Savegame, error) {
	clamped := pv.Clamp(values)
	outCfg := cfg.Clone()
	outSg, err := cloneSavegame(sg)
	if err != nil {
		return nil, nil, err
	}

	for i, spec := range pv.Specs {
		if spec.Kind == 0 {
			if err := applyConfig(outCfg, spec.Key, clamped[i]); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err := overrideKind(outSg, cat, spec.Kind, spec.Key, clamped[i]); err != nil {
			return nil, nil, err
		}
	}
	outCfg.Refresh()
	return outCfg, outSg, nil
}

func applyConfig(cfg *config.Config, key string, v float64) error {
	switch key {
	case "simulation.start_hour":
		cfg.Simulation.StartHour = float64(int(v))
	default:
		return fmt.Errorf("unknown config parameter %q", key)
	}
	return nil
}

func overrideKind(sg *scenario.Savegame, cat *blueprints.Catalog, kind blueprints.DeviceKind, key string, v float64) error {
	for ri := range sg.Structure.Rooms {
		room := &sg.Structure.Rooms[ri]
		for zi := range room.Zones {
			zone := &room.Zones[zi]
			for di := range zone.Devices {
				ds := &zone.Devices[di]
				bp, err := cat.Device(ds.Blueprint)
				if err != nil {
					return err
				}
				if bp.Kind != kind {
					continue
				}
				if ds.Overrides == nil {
					ds.Overrides = make(map[string]interface{})
				}
				ds.Overrides[key] = v
			}
		}
	}
	return nil
}

// cloneSavegame deep-copies a savegame through YAML.
func cloneSavegame(sg *scenario.Savegame) (*scenario.Savegame, error) {
	data, err := yaml.Marshal(sg)
	if err != nil {
		return nil, fmt.Errorf("marshal savegame: %w", err)
	}
	return scenario.Parse(data)
}
