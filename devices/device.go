// Package devices implements the environmental-control equipment of a zone:
// lamps, climate units, dehumidifiers, CO₂ injectors and humidity control
// units, plus the shared reliability model they age under.
package devices

import (
	"math/rand"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/environment"
)

// Kind discriminates device variants.
type Kind = blueprints.DeviceKind

// ErrUnknownKind is returned by New for kinds no variant implements.
var ErrUnknownKind = blueprints.ErrUnknownKind

// ParseKind maps a kind name to its Kind, rejecting unknown names.
func ParseKind(s string) (Kind, error) {
	return blueprints.ParseDeviceKind(s)
}

// Status is the reliability state of a device.
type Status uint8

const (
	StatusOK Status = iota
	StatusBroken
)

func (s Status) String() string {
	if s == StatusBroken {
		return "broken"
	}
	return "ok"
}

// Context carries the zone facts a device needs while applying its effect.
type Context struct {
	Geometry  environment.Geometry
	Params    environment.Params
	TickHours float64
}

// TickSeconds returns the tick duration in seconds.
func (c Context) TickSeconds() float64 {
	return c.TickHours * 3600
}

// Device is the capability set every variant implements.
//
// Within a tick the zone calls Tick, then ApplyEffect on ok devices only,
// then EstimateEnergyKWh. ApplyEffect reads integrated environment values and
// adds to the tick accumulators; the energy estimate reflects what the device
// decided during that ApplyEffect.
type Device interface {
	ID() string
	Kind() Kind
	BlueprintID() string
	Name() string
	Status() Status
	Quality() float64
	Age() int
	AgeHours() float64
	Settings() blueprints.DeviceSettings
	Capex() float64
	MaintenancePerHour() float64

	// Tick ages the device and draws its failure sample. Returns true when
	// the device broke during this call.
	Tick(tickHours float64) bool
	ApplyEffect(env *environment.State, ctx Context) error
	EstimateEnergyKWh(tickHours float64) float64
	// Active reports whether the last ApplyEffect did any work.
	Active() bool
}

// Switchable is implemented by devices a scheduler turns on and off.
type Switchable interface {
	SetOn(on bool)
	On() bool
}

// WaterConsumer is implemented by devices that buy water for their effect.
type WaterConsumer interface {
	// WaterPurchasedL returns liters bought during the last ApplyEffect.
	WaterPurchasedL() float64
}

// base holds identity and reliability state shared by all variants.
type base struct {
	id          string
	blueprintID string
	name        string
	kind        Kind
	quality     float64
	mtbfHours   float64
	capex       float64
	maintenance float64
	settings    blueprints.DeviceSettings

	status   Status
	ageTicks int
	ageHours float64
	active   bool
	rng      *rand.Rand
}

func (b *base) ID() string                          { return b.id }
func (b *base) Kind() Kind                          { return b.kind }
func (b *base) BlueprintID() string                 { return b.blueprintID }
func (b *base) Name() string                        { return b.name }
func (b *base) Status() Status                      { return b.status }
func (b *base) Quality() float64                    { return b.quality }
func (b *base) Age() int                            { return b.ageTicks }
func (b *base) AgeHours() float64                   { return b.ageHours }
func (b *base) Settings() blueprints.DeviceSettings { return b.settings }
func (b *base) Capex() float64                      { return b.capex }
func (b *base) MaintenancePerHour() float64         { return b.maintenance }
func (b *base) Active() bool                        { return b.active }

// MTBFHours returns the effective mean time between failures.
func (b *base) MTBFHours() float64 { return b.mtbfHours }

// Tick advances age and, while ok, draws exactly one failure sample.
func (b *base) Tick(tickHours float64) bool {
	b.ageTicks++
	b.ageHours += tickHours
	if b.status != StatusOK {
		return false
	}
	if b.rng.Float64() < FailureProbability(tickHours, b.mtbfHours, b.quality) {
		b.status = StatusBroken
		b.active = false
		return true
	}
	return false
}

// MinQuality is the floor applied to blueprint quality.
const MinQuality = 0.05

// FailureProbability returns p = (tickHours / mtbf) × (1 / quality), with
// quality floored at MinQuality and the result clamped to [0, 1].
// A non-positive MTBF never fails.
func FailureProbability(tickHours, mtbfHours, quality float64) float64 {
	if mtbfHours <= 0 || tickHours <= 0 {
		return 0
	}
	q := clampQuality(quality)
	p := (tickHours / mtbfHours) * (1 / q)
	if p > 1 {
		return 1
	}
	return p
}

func clampQuality(q float64) float64 {
	if q < MinQuality {
		return MinQuality
	}
	if q > 1 {
		return 1
	}
	return q
}
