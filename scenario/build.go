package scenario

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/facility"
)

// Build validates the savegame and constructs its facility. Device capex
// and initial seed costs are booked through svc.Ledger. Zone seeds derive
// from cfg.Simulation.Seed in declaration order, so a savegame builds the
// same facility for the same seed.
func Build(sg *Savegame, cfg *config.Config, cat *blueprints.Catalog, svc facility.Services) (*facility.Structure, error) {
	if err := sg.Validate(cat); err != nil {
		return nil, fmt.Errorf("savegame %s: %w", sg.Name, err)
	}
	svc.Catalog = cat
	settings := facility.SettingsFromConfig(cfg)
	seeds := rand.New(rand.NewSource(cfg.Simulation.Seed))

	spec := sg.Structure
	s := facility.NewStructure(spec.ID, spec.UsableArea, spec.Height, spec.RentPerHour)
	if spec.Name != "" {
		s.Name = spec.Name
	}

	for _, rs := range spec.Rooms {
		room := facility.NewRoom(rs.ID, rs.Area, rs.Height, rs.MaintenancePerHour)
		if rs.Name != "" {
			room.Name = rs.Name
		}
		if err := s.AddRoom(room); err != nil {
			return nil, err
		}
		for _, zs := range rs.Zones {
			z, err := facility.NewZone(zs.ID, zs.Area, zs.Height, seeds.Int63(), settings, svc)
			if err != nil {
				return nil, err
			}
			if zs.Name != "" {
				z.Name = zs.Name
			}
			if err := room.AddZone(z); err != nil {
				return nil, err
			}
			if err := equip(z, zs); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func equip(z *facility.Zone, zs ZoneSpec) error {
	for _, d := range zs.Devices {
		if _, err := z.AddDevicesByID(d.Blueprint, d.Count, d.Overrides); err != nil {
			return err
		}
	}
	p := zs.Planting
	if p == nil {
		return nil
	}
	if err := z.SetTemplate(p.Strain, p.Method); err != nil {
		return err
	}
	n := p.Count
	if n == 0 {
		n = z.Capacity()
	}
	if _, err := z.PlantTemplate(n); err != nil {
		return fmt.Errorf("zone %s: initial planting: %w", z.ID, err)
	}
	return nil
}
