package environment

import (
	"math"
	"testing"
)

func testParams() Params {
	return Params{
		AirDensity:            1.2,
		AirSpecificHeat:       1005,
		ThermalMassMultiplier: 60,
		AirChangesPerHour:     0.5,
		Pressure:              101325,
		OutsideTemperature:    20,
		OutsideHumidity:       0.5,
		OutsideCO2:            400,
		HumidityMin:           0,
		HumidityMax:           1,
		CO2Min:                0,
		CO2Max:                5000,
	}
}

func TestSaturationDensity(t *testing.T) {
	tests := []struct {
		temp float64
		want float64 // kg/m³
	}{
		{0, 0.00485},
		{20, 0.0173},
		{25, 0.0230},
		{30, 0.0304},
	}
	for _, tt := range tests {
		got := SaturationDensity(tt.temp)
		if math.Abs(got-tt.want)/tt.want > 0.02 {
			t.Errorf("SaturationDensity(%v) = %v, want ~%v", tt.temp, got, tt.want)
		}
	}
}

func TestExchangeFraction(t *testing.T) {
	p := testParams()
	got := p.ExchangeFraction(1)
	want := 1 - math.Exp(-0.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("ExchangeFraction(1) = %v, want %v", got, want)
	}
	p.AirChangesPerHour = 0
	if p.ExchangeFraction(1) != 0 {
		t.Error("expected no exchange without air changes")
	}
}

func TestIntegrate_HeatRaisesTemperature(t *testing.T) {
	p := testParams()
	p.AirChangesPerHour = 0
	g := Geometry{Area: 4, Height: 2.5}
	s := NewState(20, 0.5, 400, g)

	s.AddHeat(1000)
	Integrate(&s, g, p, 1)

	want := 20 + 1000*3600/p.HeatCapacity(g)
	if math.Abs(s.Temperature-want) > 1e-9 {
		t.Errorf("temperature = %v, want %v", s.Temperature, want)
	}
}

func TestIntegrate_CoolingLowersTemperature(t *testing.T) {
	p := testParams()
	g := Geometry{Area: 4, Height: 2.5}
	s := NewState(26, 0.5, 400, g)
	s.AddHeat(-2000)
	Integrate(&s, g, p, 1)
	if s.Temperature >= 26 {
		t.Errorf("expected cooling, got %v", s.Temperature)
	}
}

func TestIntegrate_ConvergesToOutside(t *testing.T) {
	p := testParams()
	g := Geometry{Area: 10, Height: 3}
	tests := []struct {
		name          string
		temp, rh, co2 float64
	}{
		{"warm at outside RH", 32, 0.5, 400},
		{"warm and humid", 30, 0.8, 1500},
		{"cold and dry", 12, 0.2, 300},
		{"cold and humid", 10, 0.9, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(tt.temp, tt.rh, tt.co2, g)
			prevT := math.Abs(s.Temperature - p.OutsideTemperature)
			prevC := math.Abs(s.CO2 - p.OutsideCO2)
			prevH := math.Abs(s.Humidity - p.OutsideHumidity)
			for i := 0; i < 48; i++ {
				s.ResetAccumulators()
				Integrate(&s, g, p, 1)

				dT := math.Abs(s.Temperature - p.OutsideTemperature)
				dC := math.Abs(s.CO2 - p.OutsideCO2)
				dH := math.Abs(s.Humidity - p.OutsideHumidity)
				if dT > prevT || dC > prevC+1e-9 || dH > prevH+1e-12 {
					t.Fatalf("tick %d: distance grew (T %v->%v, CO2 %v->%v, RH %v->%v)", i, prevT, dT, prevC, dC, prevH, dH)
				}
				prevT, prevC, prevH = dT, dC, dH
			}
			if prevT > 0.01 || prevC > 1 || prevH > 0.001 {
				t.Errorf("did not converge: T off by %v, CO2 off by %v, RH off by %v", prevT, prevC, prevH)
			}
		})
	}
}

func TestIntegrate_MoisturePoolTracksTemperature(t *testing.T) {
	p := testParams()
	g := Geometry{Area: 10, Height: 3}
	s := NewState(32, 0.5, 400, g)
	Integrate(&s, g, p, 1)
	want := s.Humidity * SaturationDensity(s.Temperature) * g.Volume()
	if math.Abs(s.Moisture-want) > 1e-12 {
		t.Errorf("moisture = %v, want %v", s.Moisture, want)
	}
}

func TestIntegrate_MoistureSourceRaisesHumidity(t *testing.T) {
	p := testParams()
	p.AirChangesPerHour = 0
	g := Geometry{Area: 1, Height: 2}
	s := NewState(25, 0.4, 400, g)

	s.AddMoisture(0.01)
	Integrate(&s, g, p, 1)

	want := 0.4 + 0.01/(SaturationDensity(25)*g.Volume())
	if math.Abs(s.Humidity-want) > 1e-9 {
		t.Errorf("humidity = %v, want %v", s.Humidity, want)
	}
}

func TestIntegrate_HumidityClamped(t *testing.T) {
	p := testParams()
	p.AirChangesPerHour = 0
	p.HumidityMax = 0.95
	g := Geometry{Area: 1, Height: 2}
	s := NewState(25, 0.9, 400, g)

	s.AddMoisture(1)
	Integrate(&s, g, p, 1)

	if s.Humidity != 0.95 {
		t.Errorf("humidity = %v, want clamp at 0.95", s.Humidity)
	}
	if want := 0.95 * SaturationDensity(s.Temperature) * g.Volume(); math.Abs(s.Moisture-want) > 1e-12 {
		t.Errorf("moisture pool not reconciled with clamp: %v vs %v", s.Moisture, want)
	}
}

func TestIntegrate_CO2Delta(t *testing.T) {
	p := testParams()
	p.AirChangesPerHour = 0
	g := Geometry{Area: 1, Height: 2}
	s := NewState(25, 0.5, 800, g)

	s.AddCO2(150)
	Integrate(&s, g, p, 1)
	if math.Abs(s.CO2-950) > 1e-9 {
		t.Errorf("co2 = %v, want 950", s.CO2)
	}

	s.ResetAccumulators()
	s.AddCO2(-2000)
	Integrate(&s, g, p, 1)
	if s.CO2 != 0 {
		t.Errorf("co2 = %v, want clamp at 0", s.CO2)
	}
}

func TestResetAccumulators(t *testing.T) {
	s := State{PPFD: 500, HeatW: 10, MoistureDelta: 1, CO2Delta: 5, Temperature: 22}
	s.ResetAccumulators()
	if s.PPFD != 0 || s.HeatW != 0 || s.MoistureDelta != 0 || s.CO2Delta != 0 {
		t.Errorf("accumulators not reset: %+v", s)
	}
	if s.Temperature != 22 {
		t.Error("integrated state must survive a reset")
	}
}

func TestNutrients(t *testing.T) {
	a := Nutrients{N: 10, P: 5, K: 8}
	b := Nutrients{N: 4, P: 5, K: 2}
	if !a.Covers(b) {
		t.Error("expected a to cover b")
	}
	if b.Covers(a) {
		t.Error("expected b not to cover a")
	}
	if got := a.Sub(b); got != (Nutrients{N: 6, P: 0, K: 6}) {
		t.Errorf("Sub = %+v", got)
	}
	if !a.Exceeds(b) || b.Exceeds(a.Add(b)) {
		t.Error("Exceeds mismatch")
	}
}
