package devices

import "github.com/pthm-cable/canopy/environment"

// ClimateUnit is a cooling thermostat with a hysteresis band.
//
// It engages when the temperature rises above target + hysteresis/2 and
// disengages once it falls to target − hysteresis/2. Inside the band it
// keeps its previous state.
type ClimateUnit struct {
	base
	engaged  bool
	thermalW float64
}

// Engaged reports the thermostat state.
func (c *ClimateUnit) Engaged() bool { return c.engaged }

// ThermalW returns the cooling power removed during the last ApplyEffect.
func (c *ClimateUnit) ThermalW() float64 { return c.thermalW }

func (c *ClimateUnit) ApplyEffect(env *environment.State, ctx Context) error {
	s := c.settings
	t := env.Temperature
	half := s.HysteresisK / 2
	switch {
	case t > s.TargetTemperature+half:
		c.engaged = true
	case t <= s.TargetTemperature-half:
		c.engaged = false
	}

	c.thermalW = 0
	c.active = c.engaged
	if !c.engaged || t <= s.TargetTemperature {
		return nil
	}

	tickSeconds := ctx.TickSeconds()
	if tickSeconds <= 0 {
		return nil
	}
	required := ctx.Params.HeatCapacity(ctx.Geometry) * (t - s.TargetTemperature) / tickSeconds
	c.thermalW = min(required, s.CoolingCapacityKW*1000)
	env.AddHeat(-c.thermalW)
	return nil
}

// EstimateEnergyKWh converts the thermal work of the tick through the COP.
func (c *ClimateUnit) EstimateEnergyKWh(tickHours float64) float64 {
	if c.thermalW <= 0 || c.settings.COP <= 0 {
		return 0
	}
	return c.thermalW / 1000 / c.settings.COP * tickHours
}
