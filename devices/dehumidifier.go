package devices

import "github.com/pthm-cable/canopy/environment"

// Dehumidifier removes a fixed mass of water per hour from the zone air.
type Dehumidifier struct {
	base
	removedKg float64
}

// RemovedKg returns the water removed during the last ApplyEffect.
func (d *Dehumidifier) RemovedKg() float64 { return d.removedKg }

func (d *Dehumidifier) ApplyEffect(env *environment.State, ctx Context) error {
	d.removedKg = min(d.settings.RemovalKgPerHour*ctx.TickHours, env.Moisture)
	if d.removedKg < 0 {
		d.removedKg = 0
	}
	d.active = d.removedKg > 0
	env.AddMoisture(-d.removedKg)
	return nil
}

func (d *Dehumidifier) EstimateEnergyKWh(tickHours float64) float64 {
	if !d.active {
		return 0
	}
	return d.settings.PowerKW * tickHours
}
