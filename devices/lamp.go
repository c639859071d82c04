package devices

import (
	"fmt"

	"github.com/pthm-cable/canopy/environment"
)

// Lamp emits light and waste heat while switched on by the light cycle.
type Lamp struct {
	base
	on bool
}

func (l *Lamp) SetOn(on bool) { l.on = on }
func (l *Lamp) On() bool      { return l.on }

// ApplyEffect adds power×1000×heatFraction watts of heat and photon flux
// scaled by the share of the zone the lamp covers.
func (l *Lamp) ApplyEffect(env *environment.State, ctx Context) error {
	l.active = false
	if !l.on {
		return nil
	}
	area := ctx.Geometry.Area
	if area <= 0 {
		return fmt.Errorf("lamp %s: zone area %v", l.id, area)
	}
	s := l.settings
	env.AddHeat(s.PowerKW * 1000 * s.HeatFraction)

	coverage := 1.0
	if s.CoverageArea > 0 {
		coverage = min(1, s.CoverageArea/area)
	}
	env.AddPPFD(s.PPFD * coverage)
	l.active = true
	return nil
}

func (l *Lamp) EstimateEnergyKWh(tickHours float64) float64 {
	if !l.active {
		return 0
	}
	return l.settings.PowerKW * tickHours
}
