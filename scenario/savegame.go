// Package scenario loads savegame YAML and builds the facility it
// describes.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
)

//go:embed starter.yaml
var starterYAML []byte

// Savegame is the YAML description of a facility.
type Savegame struct {
	Name       string        `yaml:"name"`
	Seed       int64         `yaml:"seed"`       // 0 = keep the config seed
	Difficulty string        `yaml:"difficulty"` // "" = keep the config profile
	Structure  StructureSpec `yaml:"structure"`
}

// StructureSpec describes the building.
type StructureSpec struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	UsableArea  float64    `yaml:"usable_area"`
	Height      float64    `yaml:"height"`
	RentPerHour float64    `yaml:"rent_per_hour"`
	Rooms       []RoomSpec `yaml:"rooms"`
}

// RoomSpec describes one room. A zero height inherits the structure's.
type RoomSpec struct {
	ID                 string     `yaml:"id"`
	Name               string     `yaml:"name"`
	Area               float64    `yaml:"area"`
	Height             float64    `yaml:"height"`
	MaintenancePerHour float64    `yaml:"maintenance_per_hour"`
	Zones              []ZoneSpec `yaml:"zones"`
}

// ZoneSpec describes one zone. A zero height inherits the room's.
type ZoneSpec struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Area     float64       `yaml:"area"`
	Height   float64       `yaml:"height"`
	Devices  []DeviceSpec  `yaml:"devices"`
	Planting *PlantingSpec `yaml:"planting,omitempty"`
}

// DeviceSpec installs Count devices of a blueprint with optional setting
// overrides.
type DeviceSpec struct {
	Blueprint string                 `yaml:"blueprint"`
	Count     int                    `yaml:"count"`
	Overrides map[string]interface{} `yaml:"overrides,omitempty"`
}

// PlantingSpec sets the zone template and its initial planting.
// Count 0 fills the zone to capacity.
type PlantingSpec struct {
	Strain string `yaml:"strain"`
	Method string `yaml:"method"`
	Count  int    `yaml:"count"`
}

// Parse decodes a savegame, rejecting unknown fields.
func Parse(data []byte) (*Savegame, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sg Savegame
	if err := dec.Decode(&sg); err != nil {
		return nil, fmt.Errorf("parsing savegame: %w", err)
	}
	return &sg, nil
}

// Load reads a savegame file. An empty path returns the built-in starter
// facility.
func Load(path string) (*Savegame, error) {
	if path == "" {
		return Starter(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading savegame: %w", err)
	}
	return Parse(data)
}

// Starter returns the built-in starter facility.
func Starter() *Savegame {
	sg, err := Parse(starterYAML)
	if err != nil {
		panic(fmt.Sprintf("scenario: embedded starter is invalid: %v", err))
	}
	return sg
}

// ApplyTo switches cfg to the savegame's difficulty and seed.
func (sg *Savegame) ApplyTo(cfg *config.Config) error {
	if sg.Difficulty != "" {
		if err := cfg.SetDifficulty(sg.Difficulty); err != nil {
			return err
		}
	}
	if sg.Seed != 0 {
		cfg.Simulation.Seed = sg.Seed
	}
	return nil
}

// Validate checks the savegame against the catalog and returns every
// problem found, joined.
func (sg *Savegame) Validate(cat *blueprints.Catalog) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	s := sg.Structure
	if s.ID == "" {
		add("structure: missing id")
	}
	if s.UsableArea <= 0 {
		add("structure %s: usable_area must be positive", s.ID)
	}
	if s.Height <= 0 {
		add("structure %s: height must be positive", s.ID)
	}

	ids := make(map[string]bool)
	unique := func(kind, id string) {
		if id == "" {
			add("%s: missing id", kind)
			return
		}
		if ids[id] {
			add("%s %s: duplicate id", kind, id)
		}
		ids[id] = true
	}

	var roomSum float64
	for _, r := range s.Rooms {
		unique("room", r.ID)
		if r.Area <= 0 {
			add("room %s: area must be positive", r.ID)
		}
		roomSum += r.Area

		var zoneSum float64
		for _, z := range r.Zones {
			unique("zone", z.ID)
			if z.Area <= 0 {
				add("zone %s: area must be positive", z.ID)
			}
			zoneSum += z.Area
			errs = append(errs, validateZone(z, cat)...)
		}
		if zoneSum > r.Area+1e-9 {
			add("room %s: zones use %.2f of %.2f m²", r.ID, zoneSum, r.Area)
		}
	}
	if roomSum > s.UsableArea+1e-9 {
		add("structure %s: rooms use %.2f of %.2f m²", s.ID, roomSum, s.UsableArea)
	}
	return errors.Join(errs...)
}

func validateZone(z ZoneSpec, cat *blueprints.Catalog) []error {
	var errs []error
	for _, d := range z.Devices {
		if d.Count <= 0 {
			errs = append(errs, fmt.Errorf("zone %s: device %s: count must be positive", z.ID, d.Blueprint))
		}
		if _, err := cat.Device(d.Blueprint); err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", z.ID, err))
		}
	}
	p := z.Planting
	if p == nil {
		return errs
	}
	if _, err := cat.Strain(p.Strain); err != nil {
		errs = append(errs, fmt.Errorf("zone %s: %w", z.ID, err))
	}
	m, err := cat.Method(p.Method)
	if err != nil {
		errs = append(errs, fmt.Errorf("zone %s: %w", z.ID, err))
		return errs
	}
	if p.Count < 0 {
		errs = append(errs, fmt.Errorf("zone %s: planting count must not be negative", z.ID))
	}
	if m.AreaPerPlant > 0 && z.Area > 0 {
		capacity := int(math.Floor(z.Area/m.AreaPerPlant + 1e-9))
		if p.Count > capacity {
			errs = append(errs, fmt.Errorf("zone %s: %d plants exceed capacity %d", z.ID, p.Count, capacity))
		}
	}
	return errs
}
