// Package metrics exposes the simulation as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/telemetry"
)

// ZoneReading is the per-zone state published after each tick.
type ZoneReading struct {
	Zone        string
	Temperature float64
	Humidity    float64
	CO2         float64
	Plants      int
}

// Collector bundles the simulation metrics. It is a telemetry.Sink: every
// emitted event increments canopy_events_total{type}.
type Collector struct {
	gatherer prometheus.Gatherer

	Balance prometheus.Gauge
	Tick    prometheus.Gauge

	ZoneTemperature *prometheus.GaugeVec
	ZoneHumidity    *prometheus.GaugeVec
	ZoneCO2         *prometheus.GaugeVec
	ZonePlants      *prometheus.GaugeVec

	Events    *prometheus.CounterVec
	EnergyKWh prometheus.Counter
	Revenue   prometheus.Counter
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_balance_eur",
			Help: "Ledger balance after the last committed tick.",
		}),
		Tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_tick",
			Help: "Last committed tick.",
		}),
		ZoneTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_zone_temperature_celsius",
			Help: "Zone air temperature.",
		}, []string{"zone"}),
		ZoneHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_zone_humidity_ratio",
			Help: "Zone relative humidity, 0..1.",
		}, []string{"zone"}),
		ZoneCO2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_zone_co2_ppm",
			Help: "Zone CO2 concentration.",
		}, []string{"zone"}),
		ZonePlants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_zone_plants",
			Help: "Live plants per zone.",
		}, []string{"zone"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_events_total",
			Help: "Simulation events, labeled by type.",
		}, []string{"type"}),
		EnergyKWh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_energy_kwh_total",
			Help: "Electricity booked across all ticks.",
		}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_revenue_eur_total",
			Help: "Harvest revenue booked across all ticks.",
		}),
	}

	for name, col := range map[string]prometheus.Collector{
		"canopy_balance_eur":              c.Balance,
		"canopy_tick":                     c.Tick,
		"canopy_zone_temperature_celsius": c.ZoneTemperature,
		"canopy_zone_humidity_ratio":      c.ZoneHumidity,
		"canopy_zone_co2_ppm":             c.ZoneCO2,
		"canopy_zone_plants":              c.ZonePlants,
		"canopy_events_total":             c.Events,
		"canopy_energy_kwh_total":         c.EnergyKWh,
		"canopy_revenue_eur_total":        c.Revenue,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return c, nil
}

// Emit counts an event.
func (c *Collector) Emit(e telemetry.Event) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(e.Type.String()).Inc()
}

// ObserveTick publishes a committed record and the zone readings.
func (c *Collector) ObserveTick(rec ledger.Record, zones []ZoneReading) {
	if c == nil {
		return
	}
	c.Balance.Set(rec.ClosingBalance.InexactFloat64())
	c.Tick.Set(float64(rec.Tick))
	if kwh := rec.Totals.EnergyKWh.InexactFloat64(); kwh > 0 {
		c.EnergyKWh.Add(kwh)
	}
	if rev := rec.Totals.Revenue.InexactFloat64(); rev > 0 {
		c.Revenue.Add(rev)
	}
	for _, z := range zones {
		c.ZoneTemperature.WithLabelValues(z.Zone).Set(z.Temperature)
		c.ZoneHumidity.WithLabelValues(z.Zone).Set(z.Humidity)
		c.ZoneCO2.WithLabelValues(z.Zone).Set(z.CO2)
		c.ZonePlants.WithLabelValues(z.Zone).Set(float64(z.Plants))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
