package facility

import (
	"fmt"

	"github.com/pthm-cable/canopy/devices"
	"github.com/pthm-cable/canopy/environment"
	"github.com/pthm-cable/canopy/plants"
	"github.com/pthm-cable/canopy/telemetry"
)

// Phase names, in pipeline order.
const (
	PhaseApplyDevices        = "apply_devices"
	PhaseDeriveEnvironment   = "derive_environment"
	PhaseIrrigateAndFeed     = "irrigate_and_feed"
	PhaseUpdatePlants        = "update_plants"
	PhaseHarvestAndInventory = "harvest_and_inventory"
	PhaseAccounting          = "accounting"
)

// Phases lists the pipeline in execution order.
var Phases = []string{
	PhaseApplyDevices,
	PhaseDeriveEnvironment,
	PhaseIrrigateAndFeed,
	PhaseUpdatePlants,
	PhaseHarvestAndInventory,
	PhaseAccounting,
}

// RunTick executes the six phases in order. The ledger tick must be open.
func (z *Zone) RunTick(tick int) {
	z.ApplyDevices(tick)
	z.DeriveEnvironment()
	z.IrrigateAndFeed()
	z.UpdatePlants(z.settings.TickHours, tick)
	z.HarvestAndInventory()
	z.Accounting(tick)
}

func (z *Zone) phaseError(phase, entity string, err error) {
	z.phaseErrors++
	z.logger.Warn("phase error", "phase", phase, "entity", entity, "error", err)
	z.svc.Sink.Emit(telemetry.NewPhaseErrorEvent(z.tick, z.ID, phase, entity, err))
}

// ApplyDevices resets the tick accumulators, ages every device and lets
// the ok ones add their effects.
func (z *Zone) ApplyDevices(tick int) {
	z.tick = tick
	z.tally = TickCosts{Tick: tick}
	z.pending = z.pending[:0]
	z.Env.ResetAccumulators()

	hours := z.settings.TickHours
	ctx := devices.Context{Geometry: z.Geometry(), Params: z.settings.Physics, TickHours: hours}
	for _, d := range z.devices {
		if d.Tick(hours) {
			z.failures++
			z.logger.Warn("device failed", "device", d.ID(), "blueprint", d.BlueprintID(), "age_hours", d.AgeHours())
			z.svc.Sink.Emit(telemetry.NewDeviceFailureEvent(tick, z.ID, d.ID(), d.BlueprintID()))
		}
		if d.Status() != devices.StatusOK {
			continue
		}
		use := deviceUse{
			source:      z.deviceSource(d),
			maintenance: d.MaintenancePerHour() * hours * z.maintenanceScale(),
		}
		if err := z.applyDevice(d, ctx); err != nil {
			z.phaseError(PhaseApplyDevices, d.ID(), err)
			z.pending = append(z.pending, use)
			continue
		}
		use.kWh = d.EstimateEnergyKWh(hours)
		if wc, ok := d.(devices.WaterConsumer); ok {
			use.waterL = wc.WaterPurchasedL()
		}
		z.pending = append(z.pending, use)
	}
}

func (z *Zone) applyDevice(d devices.Device, ctx devices.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("device %s panicked: %v", d.ID(), r)
		}
	}()
	return d.ApplyEffect(&z.Env, ctx)
}

func (z *Zone) maintenanceScale() float64 {
	if z.settings.MaintenanceScale <= 0 {
		return 1
	}
	return z.settings.MaintenanceScale
}

// DeriveEnvironment integrates the tick accumulators into temperature,
// humidity and CO₂.
func (z *Zone) DeriveEnvironment() {
	environment.Integrate(&z.Env, z.Geometry(), z.settings.Physics, z.settings.TickHours)
}

// IrrigateAndFeed draws each plant's previous demand from the reservoir.
// A demand the reservoir cannot cover in full sets that plant's stress flag
// and draws nothing. The consumed totals are then resupplied and booked.
func (z *Zone) IrrigateAndFeed() {
	r := &z.Reservoir
	var water float64
	var nutrients environment.Nutrients

	for _, p := range z.plants {
		p.WaterStress = false
		p.NutrientStress = false

		if p.WaterDemandL > 0 {
			if r.WaterL >= p.WaterDemandL {
				r.WaterL -= p.WaterDemandL
				water += p.WaterDemandL
			} else {
				p.WaterStress = true
			}
		}
		if d := p.NutrientDemand; d.Total() > 0 {
			if r.Nutrients.Covers(d) {
				r.Nutrients = r.Nutrients.Sub(d)
				nutrients = nutrients.Add(d)
			} else {
				p.NutrientStress = true
			}
		}
	}

	// Continuous resupply of what was consumed, bounded by the tank.
	r.WaterL += water
	r.Nutrients = r.Nutrients.Add(nutrients)
	if r.WaterL > r.CapacityL {
		r.WaterL = r.CapacityL
		for _, p := range z.plants {
			p.WaterStress = true
		}
	}
	if r.Nutrients.Exceeds(r.NutrientCapacity) {
		r.Nutrients = r.Nutrients.Min(r.NutrientCapacity)
		for _, p := range z.plants {
			p.NutrientStress = true
		}
	}
	z.Env.Nutrients = r.Nutrients

	z.bookWater(z.ID, water)
	z.bookFertilizer(nutrients)
}

// UpdatePlants runs the growth model of every live plant against the same
// environment reading, adds their fluxes to the accumulators and folds them
// into the moisture pool and CO₂ level. Dead plants are removed.
func (z *Zone) UpdatePlants(tickHours float64, tick int) {
	z.tick = tick
	in := plants.Inputs{
		Env:       z.Env.Read(),
		Geometry:  z.Geometry(),
		Params:    z.settings.Physics,
		TickHours: tickHours,
	}

	var transpired, uptake float64
	dead := 0
	for _, p := range z.plants {
		res, err := z.updatePlant(p, in)
		if err != nil {
			z.phaseError(PhaseUpdatePlants, p.ID, err)
			continue
		}
		z.Env.AddMoisture(res.TranspirationKg)
		z.Env.AddCO2(-res.CO2UptakePPM)
		transpired += res.TranspirationKg
		uptake += res.CO2UptakePPM

		if res.Died {
			dead++
			z.deaths[res.Cause]++
			z.logger.Info("plant died", "plant", p.ID, "cause", res.Cause, "age_hours", p.AgeHours)
			z.svc.Sink.Emit(telemetry.NewDeathEvent(tick, z.ID, p.ID, res.Cause))
		} else if res.StageChanged {
			z.svc.Sink.Emit(telemetry.NewStageChangeEvent(tick, z.ID, p.ID, res.FromStage.String(), res.ToStage.String()))
		}
	}
	environment.FoldMoisture(&z.Env, z.Geometry(), z.settings.Physics, transpired)
	environment.FoldCO2(&z.Env, z.settings.Physics, -uptake)

	if dead > 0 {
		live := z.plants[:0]
		for _, p := range z.plants {
			if p.Alive() {
				live = append(live, p)
			}
		}
		for i := len(live); i < len(z.plants); i++ {
			z.plants[i] = nil
		}
		z.plants = live
	}
}

func (z *Zone) updatePlant(p *plants.Plant, in plants.Inputs) (res plants.TickResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plant %s panicked: %v", p.ID, r)
		}
	}()
	return p.Update(in, &z.settings.Plant), nil
}

// HarvestAndInventory harvests the zone when every live plant is ready, or
// when it is empty, and refills it from the template. Broken devices are
// then replaced in place, or removed when their blueprint is gone.
func (z *Zone) HarvestAndInventory() {
	if z.allReady() {
		z.harvest()
		if _, err := z.Replant(); err != nil {
			z.phaseError(PhaseHarvestAndInventory, z.ID, err)
		}
	}
	z.replaceBroken()
}

func (z *Zone) allReady() bool {
	for _, p := range z.plants {
		if p.Stage != plants.StageHarvestReady {
			return false
		}
	}
	return true
}

func (z *Zone) harvest() {
	if len(z.plants) == 0 {
		return
	}
	mult := z.settings.RevenueMultiplier
	if mult <= 0 {
		mult = 1
	}
	var buds float64
	for _, p := range z.plants {
		g := p.BudMassG()
		revenue := g * p.Strain.HarvestPricePerGram * mult
		buds += g
		z.bookRevenue(p.ID, g, revenue)
		z.svc.Sink.Emit(telemetry.NewHarvestEvent(z.tick, z.ID, p.ID, p.StrainID, g, revenue))
	}
	z.harvested += len(z.plants)
	z.logger.Info("harvested", "plants", len(z.plants), "buds_g", buds)
	clear(z.plants)
	z.plants = z.plants[:0]
}

func (z *Zone) replaceBroken() {
	kept := z.devices[:0]
	for _, d := range z.devices {
		if d.Status() == devices.StatusOK {
			kept = append(kept, d)
			continue
		}
		nd, err := z.replacement(d)
		if err != nil {
			z.logger.Warn("broken device removed", "device", d.ID(), "blueprint", d.BlueprintID(), "error", err)
			z.svc.Sink.Emit(telemetry.NewDeviceRemovedEvent(z.tick, z.ID, d.ID(), d.BlueprintID(), err.Error()))
			delete(z.overrides, d.ID())
			continue
		}
		z.bookCapex(z.deviceSource(nd), nd.Capex())
		z.svc.Sink.Emit(telemetry.NewDeviceReplacedEvent(z.tick, z.ID, d.ID(), nd.ID(), nd.BlueprintID(), nd.Capex()))
		kept = append(kept, nd)
	}
	for i := len(kept); i < len(z.devices); i++ {
		z.devices[i] = nil
	}
	z.devices = kept
}

func (z *Zone) replacement(old devices.Device) (devices.Device, error) {
	if z.svc.Catalog == nil {
		return nil, fmt.Errorf("device %q: %w", old.BlueprintID(), ErrUnknownBlueprint)
	}
	bp, err := z.svc.Catalog.Device(old.BlueprintID())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownBlueprint, err)
	}
	opts := z.settings.Device
	opts.Overrides = z.overrides[old.ID()]
	nd, err := devices.New(bp, z.rng, opts)
	if err != nil {
		return nil, err
	}
	if ov, ok := z.overrides[old.ID()]; ok {
		delete(z.overrides, old.ID())
		z.overrides[nd.ID()] = ov
	}
	if sw, ok := old.(devices.Switchable); ok {
		if nsw, ok := nd.(devices.Switchable); ok {
			nsw.SetOn(sw.On())
		}
	}
	return nd, nil
}

// Accounting books the device energy, purchased water and maintenance of
// the tick and stores the zone's cost tally.
func (z *Zone) Accounting(tick int) {
	for _, u := range z.pending {
		z.bookEnergy(u.source, u.kWh)
		z.bookWater(u.source, u.waterL)
		z.bookMaintenance(u.source, u.maintenance)
	}
	z.pending = z.pending[:0]

	z.tally.Tick = tick
	z.costs[tick] = z.tally
	delete(z.costs, tick-recentCosts)
}
