// Package telemetry provides typed simulation events, daily zone summaries,
// phase timing, CSV output and snapshots.
package telemetry

import (
	"fmt"
	"sync"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventStageChange EventType = iota
	EventHarvest
	EventDeath
	EventReplant
	EventDeviceFailure
	EventDeviceReplaced
	EventDeviceRemoved
	EventDailySummary
	EventPhaseError
)

var eventNames = [...]string{
	"stage_change",
	"harvest",
	"death",
	"replant",
	"device_failure",
	"device_replaced",
	"device_removed",
	"daily_summary",
	"phase_error",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// MarshalCSV writes the event name.
func (t EventType) MarshalCSV() (string, error) {
	return t.String(), nil
}

// ParseEventType maps an event name back to its type.
func ParseEventType(s string) (EventType, error) {
	for i, n := range eventNames {
		if n == s {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// EventTypes returns every event type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, len(eventNames))
	for i := range eventNames {
		out[i] = EventType(i)
	}
	return out
}

// Event represents a single telemetry event.
type Event struct {
	Type     EventType `csv:"type" json:"type"`
	Tick     int       `csv:"tick" json:"tick"`
	Zone     string    `csv:"zone" json:"zone"`
	EntityID string    `csv:"entity" json:"entity,omitempty"`

	// Optional fields depending on event type
	Blueprint string  `csv:"blueprint" json:"blueprint,omitempty"` // strain or device blueprint
	From      string  `csv:"from" json:"from,omitempty"`           // previous stage, replaced device id
	To        string  `csv:"to" json:"to,omitempty"`               // new stage, replacement device id
	Cause     string  `csv:"cause" json:"cause,omitempty"`         // death cause, removal reason, error
	Count     int     `csv:"count" json:"count,omitempty"`         // plants replanted
	Amount    float64 `csv:"amount" json:"amount,omitempty"`       // bud grams
	Value     float64 `csv:"value" json:"value,omitempty"`         // euros

	Summary *ZoneSummary `csv:"-" json:"summary,omitempty"`
}

// NewStageChangeEvent creates a plant stage transition event.
func NewStageChangeEvent(tick int, zone, plantID, from, to string) Event {
	return Event{Type: EventStageChange, Tick: tick, Zone: zone, EntityID: plantID, From: from, To: to}
}

// NewHarvestEvent creates a per-plant harvest event.
func NewHarvestEvent(tick int, zone, plantID, strainID string, budG, revenue float64) Event {
	return Event{
		Type:      EventHarvest,
		Tick:      tick,
		Zone:      zone,
		EntityID:  plantID,
		Blueprint: strainID,
		Amount:    budG,
		Value:     revenue,
	}
}

// NewDeathEvent creates a plant death event.
func NewDeathEvent(tick int, zone, plantID, cause string) Event {
	return Event{Type: EventDeath, Tick: tick, Zone: zone, EntityID: plantID, Cause: cause}
}

// NewReplantEvent creates a zone replant event.
func NewReplantEvent(tick int, zone, strainID string, count int, seedCost float64) Event {
	return Event{Type: EventReplant, Tick: tick, Zone: zone, Blueprint: strainID, Count: count, Value: seedCost}
}

// NewDeviceFailureEvent creates a device breakdown event.
func NewDeviceFailureEvent(tick int, zone, deviceID, blueprintID string) Event {
	return Event{Type: EventDeviceFailure, Tick: tick, Zone: zone, EntityID: deviceID, Blueprint: blueprintID}
}

// NewDeviceReplacedEvent creates an in-place device replacement event.
func NewDeviceReplacedEvent(tick int, zone, oldID, newID, blueprintID string, capex float64) Event {
	return Event{
		Type:      EventDeviceReplaced,
		Tick:      tick,
		Zone:      zone,
		EntityID:  newID,
		Blueprint: blueprintID,
		From:      oldID,
		To:        newID,
		Value:     capex,
	}
}

// NewDeviceRemovedEvent creates an event for a broken device that could not be replaced.
func NewDeviceRemovedEvent(tick int, zone, deviceID, blueprintID, reason string) Event {
	return Event{Type: EventDeviceRemoved, Tick: tick, Zone: zone, EntityID: deviceID, Blueprint: blueprintID, Cause: reason}
}

// NewDailySummaryEvent wraps a zone summary.
func NewDailySummaryEvent(tick int, s ZoneSummary) Event {
	return Event{Type: EventDailySummary, Tick: tick, Zone: s.Zone, Count: s.Plants, Summary: &s}
}

// NewPhaseErrorEvent records a device or plant failure isolated inside a phase.
func NewPhaseErrorEvent(tick int, zone, phase, entityID string, err error) Event {
	return Event{Type: EventPhaseError, Tick: tick, Zone: zone, EntityID: entityID, From: phase, Cause: err.Error()}
}

// Sink consumes events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Drain returns and clears the recorded events.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
