package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/scenario"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-9 {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, back[i], def[i])
		}
	}
}

func TestClamp(t *testing.T) {
	pv := NewParamVector()
	v := make([]float64, pv.Dim())
	for i, s := range pv.Specs {
		v[i] = s.Max + 100
	}
	for i, got := range pv.Clamp(v) {
		if got != pv.Specs[i].Max {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, got, pv.Specs[i].Max)
		}
	}
}

func TestApplyOverridesDevicesByKind(t *testing.T) {
	cat, err := blueprints.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	sg := scenario.Starter()
	pv := NewParamVector()

	values := pv.DefaultVector()
	values[0] = 26 // target_temperature
	values[4] = 6  // start_hour

	outCfg, outSg, err := pv.Apply(cfg, sg, cat, values)
	if err != nil {
		t.Fatal(err)
	}
	if outCfg.Simulation.StartHour != 6 {
		t.Errorf("start hour = %v, want 6", outCfg.Simulation.StartHour)
	}
	if cfg.Simulation.StartHour != 0 {
		t.Error("base config mutated")
	}

	var climate int
	for _, room := range outSg.Structure.Rooms {
		for _, zone := range room.Zones {
			for _, ds := range zone.Devices {
				bp, err := cat.Device(ds.Blueprint)
				if err != nil {
					t.Fatal(err)
				}
				_, has := ds.Overrides["target_temperature"]
				if bp.Kind == blueprints.KindClimateUnit {
					climate++
					if ds.Overrides["target_temperature"] != 26.0 {
						t.Errorf("%s: target_temperature = %v", ds.Blueprint, ds.Overrides["target_temperature"])
					}
				} else if has {
					t.Errorf("%s: unexpected climate override", ds.Blueprint)
				}
			}
		}
	}
	if climate == 0 {
		t.Fatal("starter has no climate units")
	}

	for _, room := range sg.Structure.Rooms {
		for _, zone := range room.Zones {
			for _, ds := range zone.Devices {
				if _, ok := ds.Overrides["target_temperature"]; ok {
					t.Error("base savegame mutated")
				}
			}
		}
	}
}

func TestComputeQuality(t *testing.T) {
	if got := computeQuality(nil); got != 0 {
		t.Errorf("empty windows: got %v", got)
	}
}
