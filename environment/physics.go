package environment

import "math"

const (
	// WaterVaporGasConstant in J/(kg·K).
	WaterVaporGasConstant = 461.5
	// UniversalGasConstant in J/(mol·K).
	UniversalGasConstant = 8.314
	// KelvinOffset converts °C to K.
	KelvinOffset = 273.15
)

// Geometry is the physical shape of a zone.
type Geometry struct {
	Area   float64 // m²
	Height float64 // m
}

// Volume returns the air volume in m³.
func (g Geometry) Volume() float64 {
	return g.Area * g.Height
}

// Params holds the physical constants the integrator needs.
type Params struct {
	AirDensity            float64 // kg/m³
	AirSpecificHeat       float64 // J/(kg·K)
	ThermalMassMultiplier float64
	AirChangesPerHour     float64
	Pressure              float64 // Pa

	OutsideTemperature float64
	OutsideHumidity    float64
	OutsideCO2         float64

	HumidityMin, HumidityMax float64
	CO2Min, CO2Max           float64
}

// HeatCapacity returns the effective heat capacity of the zone in J/K:
// air mass × specific heat × thermal-mass multiplier.
func (p Params) HeatCapacity(g Geometry) float64 {
	mult := p.ThermalMassMultiplier
	if mult < 1 {
		mult = 1
	}
	return g.Volume() * p.AirDensity * p.AirSpecificHeat * mult
}

// AirMoles returns the total moles of air in the zone at temperature t.
func (p Params) AirMoles(g Geometry, t float64) float64 {
	return p.Pressure * g.Volume() / (UniversalGasConstant * (t + KelvinOffset))
}

// ExchangeFraction is the share of zone air replaced by outside air during a
// tick: 1 − e^(−ACH × tickHours).
func (p Params) ExchangeFraction(tickHours float64) float64 {
	if p.AirChangesPerHour <= 0 || tickHours <= 0 {
		return 0
	}
	return 1 - math.Exp(-p.AirChangesPerHour*tickHours)
}

// SaturationVaporPressure returns the Magnus approximation in hPa.
func SaturationVaporPressure(t float64) float64 {
	return 6.112 * math.Exp(17.62*t/(243.12+t))
}

// SaturationDensity returns the water vapor a cubic meter of air holds at
// saturation, in kg/m³.
func SaturationDensity(t float64) float64 {
	return SaturationVaporPressure(t) * 100 / (WaterVaporGasConstant * (t + KelvinOffset))
}

// VaporPressureDeficit returns the deficit in kPa at temperature t and relative humidity rh.
func VaporPressureDeficit(t, rh float64) float64 {
	vpd := SaturationVaporPressure(t) / 10 * (1 - rh)
	if vpd < 0 {
		return 0
	}
	return vpd
}

// Integrate folds the tick accumulators of s into its integrated state.
//
// Temperature follows the accumulated heat energy over the effective heat
// capacity, then leaks toward outside. Humidity mixes toward outside RH, so
// with no sources it approaches the outside value monotonically; the moisture
// pool is kept equal to RH × saturation mass at the current temperature.
// CO₂ is carried in moles for mass-conservative mixing toward outside ppm.
func Integrate(s *State, g Geometry, p Params, tickHours float64) {
	vol := g.Volume()
	if vol <= 0 {
		return
	}
	exchange := p.ExchangeFraction(tickHours)

	// Thermal step
	satBefore := SaturationDensity(s.Temperature) * vol
	capacity := p.HeatCapacity(g)
	if capacity > 0 {
		s.Temperature += s.HeatW * tickHours * 3600 / capacity
	}
	s.Temperature += (p.OutsideTemperature - s.Temperature) * exchange

	// Humidity step: the pool plus this tick's vapor is read as RH at the
	// pre-step temperature, mixed toward outside RH and stored back at the
	// new temperature.
	rh := 0.0
	if satBefore > 0 {
		rh = math.Max(s.Moisture+s.MoistureDelta, 0) / satBefore
	}
	rh += (p.OutsideHumidity - rh) * exchange
	rh = clamp(rh, p.HumidityMin, p.HumidityMax)
	s.Humidity = rh
	s.Moisture = rh * SaturationDensity(s.Temperature) * vol

	// CO₂ step
	moles := p.AirMoles(g, s.Temperature)
	co2Moles := (s.CO2 + s.CO2Delta) * 1e-6 * moles
	if co2Moles < 0 {
		co2Moles = 0
	}
	co2Moles += (p.OutsideCO2*1e-6*moles - co2Moles) * exchange
	s.CO2 = clamp(co2Moles/moles*1e6, p.CO2Min, p.CO2Max)
}

// FoldMoisture adds kg of vapor directly into the moisture pool and refreshes
// RH. Used for fluxes produced after the integration step of a tick.
func FoldMoisture(s *State, g Geometry, p Params, kg float64) {
	satMass := SaturationDensity(s.Temperature) * g.Volume()
	if satMass <= 0 {
		return
	}
	s.Moisture += kg
	if s.Moisture < 0 {
		s.Moisture = 0
	}
	rh := clamp(s.Moisture/satMass, p.HumidityMin, p.HumidityMax)
	s.Moisture = rh * satMass
	s.Humidity = rh
}

// FoldCO2 adds ppm directly to the CO₂ level, clamped to bounds.
func FoldCO2(s *State, p Params, ppm float64) {
	s.CO2 = clamp(s.CO2+ppm, p.CO2Min, p.CO2Max)
}

// PPMForMoles converts a molar amount of CO₂ to ppm of the zone air.
func PPMForMoles(g Geometry, p Params, t, mol float64) float64 {
	moles := p.AirMoles(g, t)
	if moles <= 0 {
		return 0
	}
	return mol / moles * 1e6
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
