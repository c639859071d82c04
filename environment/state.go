// Package environment holds the per-zone air state and the physics that
// integrates device and plant contributions into it each tick.
package environment

// Nutrients is an N/P/K amount in grams.
type Nutrients struct {
	N float64 `json:"n" yaml:"n"`
	P float64 `json:"p" yaml:"p"`
	K float64 `json:"k" yaml:"k"`
}

// Add returns the element-wise sum.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{N: n.N + o.N, P: n.P + o.P, K: n.K + o.K}
}

// Sub returns the element-wise difference.
func (n Nutrients) Sub(o Nutrients) Nutrients {
	return Nutrients{N: n.N - o.N, P: n.P - o.P, K: n.K - o.K}
}

// Scale multiplies every element by f.
func (n Nutrients) Scale(f float64) Nutrients {
	return Nutrients{N: n.N * f, P: n.P * f, K: n.K * f}
}

// Covers reports whether n holds at least o of every element.
func (n Nutrients) Covers(o Nutrients) bool {
	return n.N >= o.N && n.P >= o.P && n.K >= o.K
}

// Exceeds reports whether any element of n is above the matching element of o.
func (n Nutrients) Exceeds(o Nutrients) bool {
	return n.N > o.N || n.P > o.P || n.K > o.K
}

// Min returns the element-wise minimum.
func (n Nutrients) Min(o Nutrients) Nutrients {
	return Nutrients{N: min(n.N, o.N), P: min(n.P, o.P), K: min(n.K, o.K)}
}

// Total returns N+P+K.
func (n Nutrients) Total() float64 {
	return n.N + n.P + n.K
}

// State is the mutable environment record of one zone.
//
// Temperature, Humidity, CO2 and Moisture are integrated state. PPFD and the
// three accumulators are tick-scoped: they are reset at the start of the
// device phase and only written by device and plant effects during that tick.
type State struct {
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // relative, 0..1
	CO2         float64   `json:"co2"`         // ppm
	PPFD        float64   `json:"ppfd"`        // µmol/m²/s
	Moisture    float64   `json:"moisture"`    // kg water vapor in zone air
	Nutrients   Nutrients `json:"nutrients"`   // dissolved pool available to roots

	HeatW         float64 `json:"heat_w"`         // accumulated heat flux this tick
	MoistureDelta float64 `json:"moisture_delta"` // kg added (+) or removed (-) this tick
	CO2Delta      float64 `json:"co2_delta"`      // ppm added (+) or removed (-) this tick
}

// NewState builds a state at the given conditions with a moisture pool
// consistent with the humidity for the zone geometry.
func NewState(temperature, humidity, co2 float64, geo Geometry) State {
	return State{
		Temperature: temperature,
		Humidity:    humidity,
		CO2:         co2,
		Moisture:    humidity * SaturationDensity(temperature) * geo.Volume(),
	}
}

// ResetAccumulators clears the tick-scoped fields, including photon flux.
func (s *State) ResetAccumulators() {
	s.PPFD = 0
	s.HeatW = 0
	s.MoistureDelta = 0
	s.CO2Delta = 0
}

// AddHeat adds w watts (negative for cooling) to the heat accumulator.
func (s *State) AddHeat(w float64) {
	s.HeatW += w
}

// AddMoisture adds kg of water vapor (negative to remove) to the moisture accumulator.
func (s *State) AddMoisture(kg float64) {
	s.MoistureDelta += kg
}

// AddCO2 adds ppm (negative to remove) to the CO₂ accumulator.
func (s *State) AddCO2(ppm float64) {
	s.CO2Delta += ppm
}

// AddPPFD adds photon flux; negative values are ignored.
func (s *State) AddPPFD(v float64) {
	if v > 0 {
		s.PPFD += v
	}
}

// Reading is a read-only view handed to devices and plants.
type Reading struct {
	Temperature float64
	Humidity    float64
	CO2         float64
	PPFD        float64
	Moisture    float64
}

// Read returns the integrated values without the accumulators.
func (s *State) Read() Reading {
	return Reading{
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		CO2:         s.CO2,
		PPFD:        s.PPFD,
		Moisture:    s.Moisture,
	}
}
