package environment

import "github.com/pthm-cable/canopy/config"

// ParamsFromConfig extracts integration constants from a loaded config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		AirDensity:            cfg.Physics.AirDensity,
		AirSpecificHeat:       cfg.Physics.AirSpecificHeat,
		ThermalMassMultiplier: cfg.Physics.ThermalMassMultiplier,
		AirChangesPerHour:     cfg.Physics.AirChangesPerHour,
		Pressure:              cfg.Physics.AtmosphericPressure,
		OutsideTemperature:    cfg.Outside.Temperature,
		OutsideHumidity:       cfg.Outside.Humidity,
		OutsideCO2:            cfg.Outside.CO2,
		HumidityMin:           cfg.Bounds.HumidityMin,
		HumidityMax:           cfg.Bounds.HumidityMax,
		CO2Min:                cfg.Bounds.CO2Min,
		CO2Max:                cfg.Bounds.CO2Max,
	}
}
