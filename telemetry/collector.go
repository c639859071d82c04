package telemetry

import (
	"math"
	"sync"
)

// ClimateSample is one tick of a zone's climate and consumption.
type ClimateSample struct {
	Temperature float64
	Humidity    float64
	CO2         float64
	PPFD        float64
	EnergyKWh   float64
	WaterL      float64
}

// ZoneState is the end-of-window state the caller hands to Flush.
type ZoneState struct {
	Zone          string
	Biomass       []float64 // dry g per live plant
	Health        []float64
	Stress        []float64
	Devices       int
	BrokenDevices int
}

type zoneWindow struct {
	samples        int
	tempSum        float64
	tempMin        float64
	tempMax        float64
	humSum         float64
	co2Sum         float64
	ppfdSum        float64
	energyKWh      float64
	waterL         float64
	deaths         int
	harvests       int
	replanted      int
	deviceFailures int
	phaseErrors    int
	budsG          float64
	revenue        float64
}

// Collector accumulates events and climate samples per zone within time
// windows and produces ZoneSummary records. It is a Sink; Emit and
// RecordClimate are safe for concurrent use.
type Collector struct {
	windowTicks int
	tickHours   float64

	mu              sync.Mutex
	windowStartTick int
	zones           map[string]*zoneWindow
}

// NewCollector creates a new stats collector.
// windowHours: simulated hours per window
// tickHours: simulated hours per tick (used for tick-to-time conversion)
func NewCollector(windowHours, tickHours float64) *Collector {
	ticksPerWindow := 1
	if tickHours > 0 {
		ticksPerWindow = int(math.Round(windowHours / tickHours))
	}
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowTicks: ticksPerWindow,
		tickHours:   tickHours,
		zones:       make(map[string]*zoneWindow),
	}
}

func (c *Collector) zone(id string) *zoneWindow {
	w, ok := c.zones[id]
	if !ok {
		w = &zoneWindow{tempMin: math.Inf(1), tempMax: math.Inf(-1)}
		c.zones[id] = w
	}
	return w
}

// Emit counts zone events for the current window.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.zone(e.Zone)
	switch e.Type {
	case EventDeath:
		w.deaths++
	case EventHarvest:
		w.harvests++
		w.budsG += e.Amount
		w.revenue += e.Value
	case EventReplant:
		w.replanted += e.Count
	case EventDeviceFailure:
		w.deviceFailures++
	case EventPhaseError:
		w.phaseErrors++
	}
}

// RecordClimate adds one tick of zone climate to the window.
func (c *Collector) RecordClimate(zone string, s ClimateSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.zone(zone)
	w.samples++
	w.tempSum += s.Temperature
	w.tempMin = math.Min(w.tempMin, s.Temperature)
	w.tempMax = math.Max(w.tempMax, s.Temperature)
	w.humSum += s.Humidity
	w.co2Sum += s.CO2
	w.ppfdSum += s.PPFD
	w.energyKWh += s.EnergyKWh
	w.waterL += s.WaterL
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
// currentTick is the number of ticks completed.
func (c *Collector) ShouldFlush(currentTick int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush produces one ZoneSummary per state, in the order given, and resets
// the counters for the next window.
func (c *Collector) Flush(currentTick int, states []ZoneState) []ZoneSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := 0
	if ticksPerDay := 24 / c.tickHours; c.tickHours > 0 && ticksPerDay > 0 {
		day = int(float64(currentTick) / ticksPerDay)
	}

	out := make([]ZoneSummary, 0, len(states))
	for _, st := range states {
		w := c.zone(st.Zone)
		biomass := Describe(st.Biomass)
		health := Describe(st.Health)
		stress := Describe(st.Stress)

		s := ZoneSummary{
			WindowStartTick: c.windowStartTick,
			WindowEndTick:   currentTick,
			Day:             day,
			Zone:            st.Zone,
			SimHours:        float64(currentTick) * c.tickHours,

			Plants:        len(st.Biomass),
			Devices:       st.Devices,
			BrokenDevices: st.BrokenDevices,

			Deaths:         w.deaths,
			Harvests:       w.harvests,
			Replanted:      w.replanted,
			DeviceFailures: w.deviceFailures,
			PhaseErrors:    w.phaseErrors,
			BudsG:          w.budsG,
			RevenueEUR:     w.revenue,

			BiomassMean: biomass.Mean,
			BiomassStd:  biomass.Std,
			BiomassP10:  biomass.P10,
			BiomassP50:  biomass.P50,
			BiomassP90:  biomass.P90,
			HealthMean:  health.Mean,
			HealthMin:   health.Min,
			StressMean:  stress.Mean,

			EnergyKWh: w.energyKWh,
			WaterL:    w.waterL,
		}
		if w.samples > 0 {
			n := float64(w.samples)
			s.TemperatureMean = w.tempSum / n
			s.TemperatureMin = w.tempMin
			s.TemperatureMax = w.tempMax
			s.HumidityMean = w.humSum / n
			s.CO2Mean = w.co2Sum / n
			s.PPFDMean = w.ppfdSum / n
		}
		out = append(out, s)
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.zones = make(map[string]*zoneWindow)
	return out
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int {
	return c.windowTicks
}
