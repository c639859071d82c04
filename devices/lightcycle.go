package devices

import "math"

// LightCycle switches lamps on for the first photoperiod hours of each
// simulated day.
type LightCycle struct {
	StartHour float64 // hour of day at tick 0
	TickHours float64
}

// HourOfDay returns the clock hour at the start of tick.
func (lc LightCycle) HourOfDay(tick int) float64 {
	return math.Mod(lc.StartHour+float64(tick)*lc.TickHours, 24)
}

// LightsOn reports whether lamps are lit at tick for the given photoperiod.
func (lc LightCycle) LightsOn(tick int, photoperiodHours float64) bool {
	return lc.HourOfDay(tick) < photoperiodHours
}

// Apply sets every switchable device and returns the number switched on.
func (lc LightCycle) Apply(devs []Device, tick int, photoperiodHours float64) int {
	on := lc.LightsOn(tick, photoperiodHours)
	n := 0
	for _, d := range devs {
		sw, ok := d.(Switchable)
		if !ok {
			continue
		}
		sw.SetOn(on)
		if on {
			n++
		}
	}
	return n
}
