package devices

import "github.com/pthm-cable/canopy/environment"

// CO2 injector modes.
const (
	ModeAuto = "auto"
	ModeOff  = "off"
)

// CO2Injector is a two-point controller that pulses CO₂ while the zone is
// below target − hysteresis/2.
type CO2Injector struct {
	base
	injectedPPM float64
}

// InjectedPPM returns the pulse added during the last ApplyEffect.
func (c *CO2Injector) InjectedPPM() float64 { return c.injectedPPM }

func (c *CO2Injector) ApplyEffect(env *environment.State, ctx Context) error {
	s := c.settings
	c.injectedPPM = 0
	c.active = false
	if s.Mode == ModeOff {
		return nil
	}
	if env.CO2 < s.TargetCO2-s.HysteresisPPM/2 {
		c.injectedPPM = s.PulsePPM
		c.active = c.injectedPPM > 0
		env.AddCO2(c.injectedPPM)
	}
	return nil
}

func (c *CO2Injector) EstimateEnergyKWh(tickHours float64) float64 {
	if !c.active {
		return 0
	}
	return c.settings.PowerKW * tickHours
}
