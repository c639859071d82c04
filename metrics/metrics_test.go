package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/telemetry"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestEmitCountsByType(t *testing.T) {
	c := newTestCollector(t)
	var sink telemetry.Sink = c

	sink.Emit(telemetry.NewDeathEvent(1, "z", "p1", "water"))
	sink.Emit(telemetry.NewDeathEvent(2, "z", "p2", "stress"))
	sink.Emit(telemetry.NewHarvestEvent(3, "z", "p3", "kush", 10, 50))

	if got := testutil.ToFloat64(c.Events.WithLabelValues("death")); got != 2 {
		t.Fatalf("canopy_events_total{type=death} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Events.WithLabelValues("harvest")); got != 1 {
		t.Fatalf("canopy_events_total{type=harvest} = %v, want 1", got)
	}
}

func TestObserveTick(t *testing.T) {
	c := newTestCollector(t)

	rec := ledger.Record{
		Tick:           7,
		ClosingBalance: decimal.RequireFromString("512.5"),
		Totals: ledger.Totals{
			EnergyKWh: decimal.NewFromInt(3),
			Revenue:   decimal.NewFromInt(50),
		},
	}
	zones := []ZoneReading{{Zone: "a", Temperature: 24, Humidity: 0.55, CO2: 900, Plants: 4}}
	c.ObserveTick(rec, zones)
	rec.Tick = 8
	rec.Totals.Revenue = decimal.Zero
	c.ObserveTick(rec, zones)

	if got := testutil.ToFloat64(c.Balance); got != 512.5 {
		t.Errorf("balance = %v", got)
	}
	if got := testutil.ToFloat64(c.Tick); got != 8 {
		t.Errorf("tick = %v", got)
	}
	if got := testutil.ToFloat64(c.EnergyKWh); got != 6 {
		t.Errorf("energy = %v, want 6", got)
	}
	if got := testutil.ToFloat64(c.Revenue); got != 50 {
		t.Errorf("revenue = %v, want 50", got)
	}
	if got := testutil.ToFloat64(c.ZoneCO2.WithLabelValues("a")); got != 900 {
		t.Errorf("co2 = %v", got)
	}
	if got := testutil.ToFloat64(c.ZonePlants.WithLabelValues("a")); got != 4 {
		t.Errorf("plants = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := newTestCollector(t)
	c.ObserveTick(ledger.Record{Tick: 1}, []ZoneReading{{Zone: "veg", Temperature: 23}})
	c.Emit(telemetry.NewReplantEvent(1, "veg", "kush", 4, 12))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`canopy_zone_temperature_celsius{zone="veg"} 23`,
		`canopy_events_total{type="replant"} 1`,
		"canopy_tick 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCollector(reg); err == nil {
		t.Error("expected error registering twice")
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Emit(telemetry.NewDeathEvent(1, "z", "p", "water"))
	c.ObserveTick(ledger.Record{}, nil)
}
