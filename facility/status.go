package facility

import (
	"maps"

	"github.com/pthm-cable/canopy/devices"
	"github.com/pthm-cable/canopy/plants"
	"github.com/pthm-cable/canopy/telemetry"
)

// DeviceStatus is the read-only view of one device.
type DeviceStatus struct {
	ID        string  `json:"id"`
	Blueprint string  `json:"blueprint"`
	Kind      string  `json:"kind"`
	Status    string  `json:"status"`
	Quality   float64 `json:"quality"`
	AgeHours  float64 `json:"age_hours"`
	Active    bool    `json:"active"`
}

// PlantStatus is the read-only view of one plant.
type PlantStatus struct {
	ID       string  `json:"id"`
	Strain   string  `json:"strain"`
	Stage    string  `json:"stage"`
	AgeHours float64 `json:"age_hours"`
	Health   float64 `json:"health"`
	Stress   float64 `json:"stress"`
	DryG     float64 `json:"dry_g"`
	BudsG    float64 `json:"buds_g"`
	LAI      float64 `json:"lai"`
}

// ZoneStatus is the read-only projection of a zone.
type ZoneStatus struct {
	ID          string         `json:"id"`
	Area        float64        `json:"area"`
	Height      float64        `json:"height"`
	Tick        int            `json:"tick"`
	Temperature float64        `json:"temperature"`
	Humidity    float64        `json:"humidity"`
	CO2         float64        `json:"co2"`
	PPFD        float64        `json:"ppfd"`
	MoistureKg  float64        `json:"moisture_kg"`
	Reservoir   Reservoir      `json:"reservoir"`
	Template    *Template      `json:"template,omitempty"`
	Capacity    int            `json:"capacity"`
	Stages      map[string]int `json:"stages"`
	Deaths      map[string]int `json:"deaths"`
	Harvested   int            `json:"harvested"`
	Failures    int            `json:"device_failures"`
	PhaseErrors int            `json:"phase_errors"`
	Devices     []DeviceStatus `json:"devices"`
	Plants      []PlantStatus  `json:"plants"`
}

// Status returns a snapshot of the zone.
func (z *Zone) Status() ZoneStatus {
	s := ZoneStatus{
		ID:          z.ID,
		Area:        z.Area,
		Height:      z.Height,
		Tick:        z.tick,
		Temperature: z.Env.Temperature,
		Humidity:    z.Env.Humidity,
		CO2:         z.Env.CO2,
		PPFD:        z.Env.PPFD,
		MoistureKg:  z.Env.Moisture,
		Reservoir:   z.Reservoir,
		Template:    z.Template(),
		Capacity:    z.Capacity(),
		Stages:      make(map[string]int),
		Deaths:      maps.Clone(z.deaths),
		Harvested:   z.harvested,
		Failures:    z.failures,
		PhaseErrors: z.phaseErrors,
	}
	for _, d := range z.devices {
		s.Devices = append(s.Devices, DeviceStatus{
			ID:        d.ID(),
			Blueprint: d.BlueprintID(),
			Kind:      d.Kind().String(),
			Status:    d.Status().String(),
			Quality:   d.Quality(),
			AgeHours:  d.AgeHours(),
			Active:    d.Active(),
		})
	}
	for _, p := range z.plants {
		s.Stages[p.Stage.String()]++
		s.Plants = append(s.Plants, PlantStatus{
			ID:       p.ID,
			Strain:   p.StrainID,
			Stage:    p.Stage.String(),
			AgeHours: p.AgeHours,
			Health:   p.Health,
			Stress:   p.Stress,
			DryG:     p.Biomass.DryG,
			BudsG:    p.BudMassG(),
			LAI:      p.LAI,
		})
	}
	return s
}

// SummaryState samples the plant distributions for a telemetry summary.
func (z *Zone) SummaryState() telemetry.ZoneState {
	st := telemetry.ZoneState{Zone: z.ID, Devices: len(z.devices)}
	for _, d := range z.devices {
		if d.Status() == devices.StatusBroken {
			st.BrokenDevices++
		}
	}
	for _, p := range z.plants {
		if p.Stage == plants.StageDead {
			continue
		}
		st.Biomass = append(st.Biomass, p.Biomass.DryG)
		st.Health = append(st.Health, p.Health)
		st.Stress = append(st.Stress, p.Stress)
	}
	return st
}

// ClimateSample returns the climate and consumption of the last tick.
func (z *Zone) ClimateSample() telemetry.ClimateSample {
	return telemetry.ClimateSample{
		Temperature: z.Env.Temperature,
		Humidity:    z.Env.Humidity,
		CO2:         z.Env.CO2,
		PPFD:        z.Env.PPFD,
		EnergyKWh:   z.tally.EnergyKWh,
		WaterL:      z.tally.WaterL,
	}
}
