package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Distribution summarizes a sample of values.
type Distribution struct {
	Mean float64
	Std  float64
	Min  float64
	P10  float64
	P50  float64
	P90  float64
	Max  float64
}

// Describe computes mean, sample standard deviation and empirical quantiles.
// Returns the zero Distribution for an empty sample.
func Describe(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var d Distribution
	if n == 1 {
		d.Mean = sorted[0]
	} else {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	}
	d.Min = sorted[0]
	d.Max = sorted[n-1]
	d.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return d
}

// ZoneSummary holds aggregated statistics of one zone over a window.
type ZoneSummary struct {
	WindowStartTick int     `csv:"-" json:"window_start"`
	WindowEndTick   int     `csv:"window_end" json:"window_end"`
	Day             int     `csv:"day" json:"day"`
	Zone            string  `csv:"zone" json:"zone"`
	SimHours        float64 `csv:"sim_hours" json:"sim_hours"`

	// Population at window end
	Plants        int `csv:"plants" json:"plants"`
	Devices       int `csv:"devices" json:"devices"`
	BrokenDevices int `csv:"broken_devices" json:"broken_devices"`

	// Events during window
	Deaths         int     `csv:"deaths" json:"deaths"`
	Harvests       int     `csv:"harvests" json:"harvests"`
	Replanted      int     `csv:"replanted" json:"replanted"`
	DeviceFailures int     `csv:"device_failures" json:"device_failures"`
	PhaseErrors    int     `csv:"phase_errors" json:"phase_errors"`
	BudsG          float64 `csv:"buds_g" json:"buds_g"`
	RevenueEUR     float64 `csv:"revenue_eur" json:"revenue_eur"`

	// Plant distributions (sampled at window end)
	BiomassMean float64 `csv:"biomass_mean" json:"biomass_mean"`
	BiomassStd  float64 `csv:"biomass_std" json:"biomass_std"`
	BiomassP10  float64 `csv:"biomass_p10" json:"biomass_p10"`
	BiomassP50  float64 `csv:"biomass_p50" json:"biomass_p50"`
	BiomassP90  float64 `csv:"biomass_p90" json:"biomass_p90"`
	HealthMean  float64 `csv:"health_mean" json:"health_mean"`
	HealthMin   float64 `csv:"health_min" json:"health_min"`
	StressMean  float64 `csv:"stress_mean" json:"stress_mean"`

	// Climate over the window
	TemperatureMean float64 `csv:"temperature_mean" json:"temperature_mean"`
	TemperatureMin  float64 `csv:"temperature_min" json:"temperature_min"`
	TemperatureMax  float64 `csv:"temperature_max" json:"temperature_max"`
	HumidityMean    float64 `csv:"humidity_mean" json:"humidity_mean"`
	CO2Mean         float64 `csv:"co2_mean" json:"co2_mean"`
	PPFDMean        float64 `csv:"ppfd_mean" json:"ppfd_mean"`
	EnergyKWh       float64 `csv:"energy_kwh" json:"energy_kwh"`
	WaterL          float64 `csv:"water_l" json:"water_l"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s ZoneSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("zone", s.Zone),
		slog.Int("day", s.Day),
		slog.Int("window_end", s.WindowEndTick),
		slog.Int("plants", s.Plants),
		slog.Int("deaths", s.Deaths),
		slog.Int("harvests", s.Harvests),
		slog.Int("replanted", s.Replanted),
		slog.Int("device_failures", s.DeviceFailures),
		slog.Int("broken_devices", s.BrokenDevices),
		slog.Float64("buds_g", s.BudsG),
		slog.Float64("revenue_eur", s.RevenueEUR),
		slog.Float64("biomass_mean", s.BiomassMean),
		slog.Float64("biomass_p50", s.BiomassP50),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("stress_mean", s.StressMean),
		slog.Float64("temperature_mean", s.TemperatureMean),
		slog.Float64("humidity_mean", s.HumidityMean),
		slog.Float64("co2_mean", s.CO2Mean),
		slog.Float64("energy_kwh", s.EnergyKWh),
		slog.Float64("water_l", s.WaterL),
	)
}

// LogStats logs the summary using slog.
func (s ZoneSummary) LogStats() {
	slog.Info("zone",
		"zone", s.Zone,
		"day", s.Day,
		"plants", s.Plants,
		"deaths", s.Deaths,
		"harvests", s.Harvests,
		"biomass_mean", s.BiomassMean,
		"health_mean", s.HealthMean,
		"temp", s.TemperatureMean,
		"rh", s.HumidityMean,
		"co2", s.CO2Mean,
		"energy_kwh", s.EnergyKWh,
		"revenue", s.RevenueEUR,
	)
}
