package devices

import "github.com/pthm-cable/canopy/environment"

// HumidityControlUnit humidifies or dehumidifies toward a target RH.
//
// Outside the band target ± hysteresis/2 it moves at most
// max_fraction_per_tick of the moisture mass separating the zone from the
// target, limited by its hourly capacity. Water added while humidifying is
// bought, 1 kg per liter.
type HumidityControlUnit struct {
	base
	movedKg   float64 // signed: + humidify, − dehumidify
	purchased float64
}

// MovedKg returns the signed moisture change of the last ApplyEffect.
func (h *HumidityControlUnit) MovedKg() float64 { return h.movedKg }

func (h *HumidityControlUnit) WaterPurchasedL() float64 { return h.purchased }

func (h *HumidityControlUnit) ApplyEffect(env *environment.State, ctx Context) error {
	s := h.settings
	h.movedKg = 0
	h.purchased = 0
	h.active = false

	half := s.HysteresisRH / 2
	var dir float64
	switch {
	case env.Humidity < s.TargetHumidity-half:
		dir = 1
	case env.Humidity > s.TargetHumidity+half:
		dir = -1
	default:
		return nil
	}

	targetMass := s.TargetHumidity * environment.SaturationDensity(env.Temperature) * ctx.Geometry.Volume()
	needed := (targetMass - env.Moisture) * dir
	if needed <= 0 {
		return nil
	}
	move := needed * s.MaxFractionPerTick
	if s.CapacityKgPerHour > 0 {
		move = min(move, s.CapacityKgPerHour*ctx.TickHours)
	}
	if move <= 0 {
		return nil
	}

	h.movedKg = move * dir
	h.active = true
	env.AddMoisture(h.movedKg)
	if dir > 0 {
		h.purchased = move
	}
	return nil
}

func (h *HumidityControlUnit) EstimateEnergyKWh(tickHours float64) float64 {
	if !h.active {
		return 0
	}
	return h.settings.PowerKW * tickHours
}
