package blueprints

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog holds every loaded blueprint, in file order.
type Catalog struct {
	Devices []Device `yaml:"devices"`
	Strains []Strain `yaml:"strains"`
	Methods []Method `yaml:"methods"`

	deviceIdx map[string]int
	strainIdx map[string]int
	methodIdx map[string]int
}

// Load parses the embedded catalog and, when path is not empty, merges the
// blueprints of that file on top: entries with an existing id replace it,
// new ids are appended. The result is validated.
func Load(path string) (*Catalog, error) {
	cat := &Catalog{}
	if err := yaml.Unmarshal(defaultCatalogYAML, cat); err != nil {
		return nil, fmt.Errorf("parsing embedded catalog: %w", err)
	}
	cat.reindex()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog file: %w", err)
		}
		overlay, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog file: %w", err)
		}
		cat.Merge(overlay)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Parse decodes a catalog document without merging or validation.
func Parse(data []byte) (*Catalog, error) {
	cat := &Catalog{}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, err
	}
	cat.reindex()
	return cat, nil
}

// Merge copies the blueprints of o into c.
func (c *Catalog) Merge(o *Catalog) {
	for _, d := range o.Devices {
		if i, ok := c.deviceIdx[d.ID]; ok {
			c.Devices[i] = d
		} else {
			c.Devices = append(c.Devices, d)
		}
	}
	for _, s := range o.Strains {
		if i, ok := c.strainIdx[s.ID]; ok {
			c.Strains[i] = s
		} else {
			c.Strains = append(c.Strains, s)
		}
	}
	for _, m := range o.Methods {
		if i, ok := c.methodIdx[m.ID]; ok {
			c.Methods[i] = m
		} else {
			c.Methods = append(c.Methods, m)
		}
	}
	c.reindex()
}

func (c *Catalog) reindex() {
	c.deviceIdx = make(map[string]int, len(c.Devices))
	for i, d := range c.Devices {
		c.deviceIdx[d.ID] = i
	}
	c.strainIdx = make(map[string]int, len(c.Strains))
	for i, s := range c.Strains {
		c.strainIdx[s.ID] = i
	}
	c.methodIdx = make(map[string]int, len(c.Methods))
	for i, m := range c.Methods {
		c.methodIdx[m.ID] = i
	}
}

// Device resolves a device blueprint by id.
func (c *Catalog) Device(id string) (Device, error) {
	if i, ok := c.deviceIdx[id]; ok {
		return c.Devices[i], nil
	}
	return Device{}, fmt.Errorf("%w: device %q", ErrNotFound, id)
}

// Strain resolves a strain blueprint by id.
func (c *Catalog) Strain(id string) (Strain, error) {
	if i, ok := c.strainIdx[id]; ok {
		return c.Strains[i], nil
	}
	return Strain{}, fmt.Errorf("%w: strain %q", ErrNotFound, id)
}

// Method resolves a cultivation method blueprint by id.
func (c *Catalog) Method(id string) (Method, error) {
	if i, ok := c.methodIdx[id]; ok {
		return c.Methods[i], nil
	}
	return Method{}, fmt.Errorf("%w: method %q", ErrNotFound, id)
}

// RemoveDevice drops a device blueprint. Devices built from it can no longer be
// replaced.
func (c *Catalog) RemoveDevice(id string) {
	i, ok := c.deviceIdx[id]
	if !ok {
		return
	}
	c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
	c.reindex()
}

// PriceTable maps strain ids to harvest price per gram of buds.
type PriceTable map[string]float64

// Price returns the price per gram for a strain, 0 if unknown.
func (p PriceTable) Price(strainID string) float64 {
	return p[strainID]
}

// PriceTable builds the per-strain harvest price table.
func (c *Catalog) PriceTable() PriceTable {
	table := make(PriceTable, len(c.Strains))
	for _, s := range c.Strains {
		table[s.ID] = s.HarvestPricePerGram
	}
	return table
}

// Validate checks every blueprint and reports all problems at once.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, errors.New("device blueprint without id"))
			continue
		}
		if seen["d:"+d.ID] {
			errs = append(errs, fmt.Errorf("device %q: duplicate id", d.ID))
		}
		seen["d:"+d.ID] = true
		if d.Kind == 0 {
			errs = append(errs, fmt.Errorf("device %q: %w: missing kind", d.ID, ErrUnknownKind))
		}
		if d.Quality < 0 || d.Quality > 1 {
			errs = append(errs, fmt.Errorf("device %q: quality %v outside 0..1", d.ID, d.Quality))
		}
		if d.CapitalExpenditure < 0 || d.MaintenancePerHour < 0 {
			errs = append(errs, fmt.Errorf("device %q: negative cost", d.ID))
		}
		errs = append(errs, validateSettings(d)...)
	}
	for _, s := range c.Strains {
		if s.ID == "" {
			errs = append(errs, errors.New("strain blueprint without id"))
			continue
		}
		if seen["s:"+s.ID] {
			errs = append(errs, fmt.Errorf("strain %q: duplicate id", s.ID))
		}
		seen["s:"+s.ID] = true
		if s.HarvestIndex <= 0 || s.HarvestIndex >= 1 {
			errs = append(errs, fmt.Errorf("strain %q: harvest_index %v outside (0,1)", s.ID, s.HarvestIndex))
		}
		if s.MaxDryMassG <= 0 || s.LightUseEfficiency <= 0 {
			errs = append(errs, fmt.Errorf("strain %q: max_dry_mass_g and light_use_efficiency must be positive", s.ID))
		}
		if s.VegetativeDays <= 0 || s.FloweringDays <= 0 {
			errs = append(errs, fmt.Errorf("strain %q: stage durations must be positive", s.ID))
		}
		if s.GeneticVariance < 0 || s.GeneticVariance >= 1 {
			errs = append(errs, fmt.Errorf("strain %q: genetic_variance %v outside [0,1)", s.ID, s.GeneticVariance))
		}
	}
	for _, m := range c.Methods {
		if m.ID == "" {
			errs = append(errs, errors.New("method blueprint without id"))
			continue
		}
		if seen["m:"+m.ID] {
			errs = append(errs, fmt.Errorf("method %q: duplicate id", m.ID))
		}
		seen["m:"+m.ID] = true
		if m.AreaPerPlant <= 0 {
			errs = append(errs, fmt.Errorf("method %q: area_per_plant must be positive", m.ID))
		}
	}
	return errors.Join(errs...)
}

func validateSettings(d Device) []error {
	var errs []error
	s := d.Settings
	switch d.Kind {
	case KindLamp:
		if s.HeatFraction < 0 || s.HeatFraction > 1 {
			errs = append(errs, fmt.Errorf("device %q: heat_fraction outside 0..1", d.ID))
		}
	case KindClimateUnit:
		if s.COP <= 0 {
			errs = append(errs, fmt.Errorf("device %q: cop must be positive", d.ID))
		}
		if s.HysteresisK < 0 {
			errs = append(errs, fmt.Errorf("device %q: negative hysteresis", d.ID))
		}
	case KindCO2Injector:
		if s.Mode != "" && s.Mode != "auto" && s.Mode != "off" {
			errs = append(errs, fmt.Errorf("device %q: mode %q (want auto or off)", d.ID, s.Mode))
		}
	case KindHumidityControlUnit:
		if s.MaxFractionPerTick < 0 || s.MaxFractionPerTick > 1 {
			errs = append(errs, fmt.Errorf("device %q: max_fraction_per_tick outside 0..1", d.ID))
		}
	}
	if s.PowerKW < 0 {
		errs = append(errs, fmt.Errorf("device %q: negative power", d.ID))
	}
	return errs
}
