package plants

import (
	"math"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/environment"
)

// CO₂ molar mass in g/mol.
const co2MolarMass = 44.01

// Inputs is what a plant sees of its zone during an update.
type Inputs struct {
	Env       environment.Reading
	Geometry  environment.Geometry
	Params    environment.Params
	TickHours float64
}

// TickResult reports the fluxes and events of one plant update.
type TickResult struct {
	TranspirationKg float64               // moisture source
	CO2UptakePPM    float64               // CO₂ sink, positive
	NutrientDemand  environment.Nutrients // g for next tick's irrigation
	WaterDemandL    float64
	GrossG          float64 // assimilated dry mass before respiration
	GrowthG         float64 // net dry mass change

	StageChanged bool
	FromStage    Stage
	ToStage      Stage

	Died  bool
	Cause string
}

// Update advances the plant by one tick: transpiration, assimilation,
// stress, health, aging and stage, then biomass growth.
func (p *Plant) Update(in Inputs, cfg *config.PlantConfig) TickResult {
	var res TickResult
	if !p.Alive() {
		return res
	}
	hours := in.TickHours
	env := in.Env
	pref := p.Preferences()

	// (a) transpiration
	vpd := min(environment.VaporPressureDeficit(env.Temperature, env.Humidity), 2.5)
	lightOpen := 0.1
	if cfg.ReferencePPFD > 0 {
		lightOpen = min(1, 0.1+env.PPFD/cfg.ReferencePPFD)
	}
	res.TranspirationKg = cfg.TranspirationRate * p.LAI * p.Area * vpd * lightOpen * p.Health * p.Genetics * hours

	// (b) CO₂ assimilation
	tempFactor := temperatureFactor(env.Temperature, pref.OptimalTemperature(), p.Strain.TemperatureQ10)
	co2Factor := co2Response(env.CO2, cfg)
	humidityFactor := humidityResponse(env.Humidity, pref, cfg)
	waterFactor, nutrientFactor := 1.0, 1.0
	if p.WaterStress {
		waterFactor = 0.3
	}
	if p.NutrientStress {
		nutrientFactor = 0.5
	}
	if p.Stage != StageHarvestReady {
		potential := p.potentialGrowth(env.PPFD, hours, cfg)
		res.GrossG = potential * tempFactor * co2Factor * waterFactor * nutrientFactor * humidityFactor
	}
	if res.GrossG > 0 {
		mol := res.GrossG * cfg.CO2PerDryGram / co2MolarMass
		res.CO2UptakePPM = environment.PPMForMoles(in.Geometry, in.Params, env.Temperature, mol)
		ratio := p.nutrientRatio()
		res.NutrientDemand = environment.Nutrients{
			N: res.GrossG * ratio.N,
			P: res.GrossG * ratio.P,
			K: res.GrossG * ratio.K,
		}
	}

	// (c) stress
	envStress, dominant := environmentalStress(env, pref, cfg)
	shortage := 0.0
	if p.NutrientStress {
		shortage += cfg.NutrientStressWt
		if dominant == "" {
			dominant = "nutrients"
		}
	}
	if p.WaterStress {
		shortage += cfg.WaterStressWeight
		dominant = "water"
	}
	raw := min(1, envStress+shortage)
	jitter := (p.rng.Float64()*2 - 1) * cfg.StressJitter
	p.filtered = clamp01(cfg.StressRetain*p.filtered + (1-cfg.StressRetain)*(raw+jitter))
	p.Stress = p.filtered * (1 - 0.5*clamp01(p.Strain.Resilience))

	// (d) health
	if p.Stress > cfg.StressDamageThreshold {
		p.Health -= cfg.DamageRate * p.Stress * hours
	} else if cfg.StressDamageThreshold > 0 {
		p.Health += cfg.RecoveryRate * (1 - p.Stress/cfg.StressDamageThreshold) * hours
	}
	p.Health = min(1, p.Health)
	if p.Health <= 0 {
		p.Health = 0
		if dominant == "" {
			dominant = "stress"
		}
		p.die(dominant, &res)
		return res
	}

	// (e) aging and stage
	p.AgeHours += hours
	p.advanceStage(&res)

	// (f) biomass growth; a harvest-ready plant holds its mass
	if p.Stage != StageHarvestReady {
		noise := 1 + (p.rng.Float64()*2-1)*cfg.GrowthNoise
		q10 := cfg.RespirationQ10
		if q10 <= 0 {
			q10 = 1
		}
		respiration := p.Biomass.DryG * cfg.MaintenanceRespiration * hours * math.Pow(q10, (env.Temperature-20)/10)
		net := res.GrossG*noise - respiration
		if net > 0 {
			if ceiling := p.ceiling(); ceiling > 0 {
				net *= max(0, 1-p.Biomass.DryG/ceiling)
			}
		}
		res.GrowthG = p.grow(net)
		p.refreshDerived(cfg)
	}

	res.WaterDemandL = res.TranspirationKg + max(0, res.GrowthG)*cfg.WaterPerDryGram
	p.WaterDemandL = res.WaterDemandL
	p.NutrientDemand = res.NutrientDemand
	return res
}

// potentialGrowth is the light-limited dry mass gain of the tick in grams:
// intercepted photons × light-use efficiency, with a saturating response
// above the reference flux.
func (p *Plant) potentialGrowth(ppfd, hours float64, cfg *config.PlantConfig) float64 {
	if ppfd <= 0 {
		return 0
	}
	mol := ppfd * 3600 * hours * 1e-6
	sat := 1.0
	if k := cfg.LightHalfSaturation; k > 0 {
		sat = min(1, (cfg.ReferencePPFD+k)/(ppfd+k))
	}
	interception := 1 - math.Exp(-cfg.LightExtinction*p.LAI)
	return mol * sat * p.Strain.LightUseEfficiency * interception * p.Area * p.Genetics
}

// ceiling is the stage-dependent logistic cap on dry mass.
func (p *Plant) ceiling() float64 {
	top := p.Strain.MaxDryMassG * p.Genetics
	switch p.Stage {
	case StageSeedling:
		return 0.1 * top
	case StageVegetative:
		return 0.5 * top
	default:
		return top
	}
}

// grow distributes net dry mass change among organs and returns the
// change actually applied.
func (p *Plant) grow(net float64) float64 {
	part := p.Biomass.Partition
	total := part.Total()
	if net < 0 {
		if total <= 0 {
			return 0
		}
		loss := min(-net, total)
		p.Biomass.Partition = part.scale(1 - loss/total)
		return -loss
	}
	budFrac := 0.0
	if p.Stage == StageFlowering || p.Stage == StageHarvestReady {
		budFrac = p.Strain.HarvestIndex * p.floweringProgress()
	}
	veg := net * (1 - budFrac)
	part.Buds += net * budFrac
	part.Leaves += veg * leafShare
	part.Stems += veg * stemShare
	part.Roots += veg * rootShare
	p.Biomass.Partition = part
	return net
}

func (p *Plant) floweringProgress() float64 {
	if p.Stage == StageHarvestReady {
		return 1
	}
	if p.Strain.FloweringDays <= 0 {
		return 1
	}
	return clamp01(p.StageDays() / p.Strain.FloweringDays)
}

func (p *Plant) advanceStage(res *TickResult) {
	var next Stage
	var days float64
	switch p.Stage {
	case StageSeedling:
		next, days = StageVegetative, p.Strain.SeedlingDays
	case StageVegetative:
		next, days = StageFlowering, p.Strain.VegetativeDays
	case StageFlowering:
		next, days = StageHarvestReady, p.Strain.FloweringDays
	default:
		return
	}
	if p.StageDays() < days {
		return
	}
	res.StageChanged = true
	res.FromStage = p.Stage
	res.ToStage = next
	p.Stage = next
	p.StageStartHours = p.AgeHours
}

func (p *Plant) die(cause string, res *TickResult) {
	res.Died = true
	res.Cause = cause
	res.StageChanged = true
	res.FromStage = p.Stage
	res.ToStage = StageDead
	p.Stage = StageDead
	p.CauseOfDeath = cause
	p.WaterDemandL = 0
	p.NutrientDemand = environment.Nutrients{}
	res.TranspirationKg = 0
	res.CO2UptakePPM = 0
	res.NutrientDemand = environment.Nutrients{}
	res.GrossG = 0
}

// temperatureFactor is a Q10 response symmetric around the optimum, 1 at opt.
func temperatureFactor(t, opt, q10 float64) float64 {
	if q10 <= 1 {
		return 1
	}
	return math.Pow(q10, -math.Abs(t-opt)/10)
}

// co2Response is a Michaelis–Menten curve normalized to 1 at saturation.
func co2Response(ppm float64, cfg *config.PlantConfig) float64 {
	if ppm <= 0 {
		return 0
	}
	k := cfg.CO2HalfSaturation
	sat := cfg.CO2Saturation
	if k <= 0 || sat <= 0 {
		return 1
	}
	return min(1, (ppm/(ppm+k))/(sat/(sat+k)))
}

// humidityResponse is 1 inside the preferred band and falls linearly to
// 0.6 at the tolerance distance.
func humidityResponse(rh float64, pref blueprints.EnvPreference, cfg *config.PlantConfig) float64 {
	d := outside(rh, pref.HumidityMin, pref.HumidityMax)
	if d <= 0 || cfg.HumidityTolerance <= 0 {
		return 1
	}
	return 1 - 0.4*min(1, d/cfg.HumidityTolerance)
}

// Stress weights of the environmental deviations.
const (
	tempStressWeight     = 0.4
	humidityStressWeight = 0.3
	lightStressWeight    = 0.3
)

// environmentalStress combines temperature, humidity and light deviation
// from the stage preference. Each deviation counts only once it passes its
// deadband. Dark periods are not light stress. Returns the stress and the
// name of the largest contributor, empty when there is none.
func environmentalStress(env environment.Reading, pref blueprints.EnvPreference, cfg *config.PlantConfig) (float64, string) {
	temp := tempStressWeight * deviation(outside(env.Temperature, pref.TempMin, pref.TempMax), cfg.TempDeadband, cfg.TempTolerance)
	hum := humidityStressWeight * deviation(outside(env.Humidity, pref.HumidityMin, pref.HumidityMax), cfg.HumidityDeadband, cfg.HumidityTolerance)
	light := 0.0
	if env.PPFD > 0 {
		light = lightStressWeight * deviation(outside(env.PPFD, pref.LightMin, pref.LightMax), cfg.LightDeadband, cfg.LightTolerance)
	}

	dominant, top := "", 0.0
	for _, c := range []struct {
		name string
		v    float64
	}{{"temperature", temp}, {"humidity", hum}, {"light", light}} {
		if c.v > top {
			dominant, top = c.name, c.v
		}
	}
	return temp + hum + light, dominant
}

// outside returns how far v lies outside [lo, hi], 0 inside.
func outside(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}

// deviation maps a distance to 0..1: 0 within the deadband, 1 at
// deadband + tolerance and beyond.
func deviation(d, deadband, tolerance float64) float64 {
	d -= deadband
	if d <= 0 {
		return 0
	}
	if tolerance <= 0 {
		return 1
	}
	return min(1, d/tolerance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
