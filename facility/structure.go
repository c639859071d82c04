// Package facility models the structure → room → zone hierarchy and the
// per-zone tick pipeline.
package facility

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/canopy/ledger"
)

var (
	// ErrAreaExceeded is returned when a child would not fit its parent.
	ErrAreaExceeded = errors.New("area exceeds parent capacity")
	// ErrUnknownBlueprint is returned when a device, strain or method id
	// cannot be resolved.
	ErrUnknownBlueprint = errors.New("unknown blueprint")
	// ErrInvalidArea is returned for non-positive areas.
	ErrInvalidArea = errors.New("area must be positive")
)

// areaEpsilon absorbs float error when children exactly fill a parent.
const areaEpsilon = 1e-9

// Structure is the building. Rooms are kept in insertion order.
type Structure struct {
	ID              string
	Name            string
	UsableArea      float64 // m²
	Height          float64 // m
	BaseRentPerHour float64 // €

	rooms []*Room
}

// NewStructure creates an empty structure.
func NewStructure(id string, usableArea, height, baseRentPerHour float64) *Structure {
	return &Structure{
		ID:              id,
		Name:            id,
		UsableArea:      usableArea,
		Height:          height,
		BaseRentPerHour: baseRentPerHour,
	}
}

// UsedArea returns the summed room area.
func (s *Structure) UsedArea() float64 {
	var sum float64
	for _, r := range s.rooms {
		sum += r.Area
	}
	return sum
}

// AddRoom attaches r. The room is rejected, and the structure left
// unchanged, when its area would push the total past UsableArea. A room
// without height takes the structure's height now; later structure height
// changes do not reach it.
func (s *Structure) AddRoom(r *Room) error {
	if r.Area <= 0 {
		return fmt.Errorf("room %s: %w", r.ID, ErrInvalidArea)
	}
	if used := s.UsedArea(); used+r.Area > s.UsableArea+areaEpsilon {
		return fmt.Errorf("room %s (%.2f m²) in structure %s (%.2f of %.2f m² used): %w",
			r.ID, r.Area, s.ID, used, s.UsableArea, ErrAreaExceeded)
	}
	if r.Height == 0 {
		r.Height = s.Height
	}
	for _, z := range r.zones {
		z.attach(r.Height)
	}
	s.rooms = append(s.rooms, r)
	return nil
}

// Rooms returns the rooms in insertion order.
func (s *Structure) Rooms() []*Room {
	return append([]*Room(nil), s.rooms...)
}

// Zones returns every zone of every room, rooms first, in insertion order.
func (s *Structure) Zones() []*Zone {
	var out []*Zone
	for _, r := range s.rooms {
		out = append(out, r.zones...)
	}
	return out
}

// Zone finds a zone by id.
func (s *Structure) Zone(id string) (*Zone, bool) {
	for _, r := range s.rooms {
		for _, z := range r.zones {
			if z.ID == id {
				return z, true
			}
		}
	}
	return nil, false
}

// CostRollup sums the standing costs of a structure.
type CostRollup struct {
	RentPerHour              float64
	RoomMaintenancePerHour   float64
	DeviceMaintenancePerHour float64
	InstalledCapex           float64
	Rooms                    int
	Zones                    int
	Devices                  int
	Plants                   int
}

// TotalCosts rolls up rent, maintenance and installed equipment value.
func (s *Structure) TotalCosts() CostRollup {
	c := CostRollup{RentPerHour: s.BaseRentPerHour, Rooms: len(s.rooms)}
	for _, r := range s.rooms {
		c.RoomMaintenancePerHour += r.BaseMaintenancePerHour
		for _, z := range r.zones {
			c.Zones++
			c.Plants += len(z.plants)
			for _, d := range z.devices {
				c.Devices++
				c.DeviceMaintenancePerHour += d.MaintenancePerHour()
				c.InstalledCapex += d.Capex()
			}
		}
	}
	return c
}

// BookOverhead books structure rent and room maintenance for one tick.
func (s *Structure) BookOverhead(l *ledger.CostEngine, tickHours float64) {
	if l == nil {
		return
	}
	l.BookMaintenance(s.ID, s.BaseRentPerHour*tickHours)
	for _, r := range s.rooms {
		l.BookMaintenance(r.ID, r.BaseMaintenancePerHour*tickHours)
	}
}

// Room groups zones. Zones are kept in insertion order.
type Room struct {
	ID                     string
	Name                   string
	Area                   float64
	Height                 float64 // 0 = inherit from the structure on attach
	BaseMaintenancePerHour float64

	zones []*Zone
}

// NewRoom creates an empty room.
func NewRoom(id string, area, height, maintenancePerHour float64) *Room {
	return &Room{
		ID:                     id,
		Name:                   id,
		Area:                   area,
		Height:                 height,
		BaseMaintenancePerHour: maintenancePerHour,
	}
}

// UsedArea returns the summed zone area.
func (r *Room) UsedArea() float64 {
	var sum float64
	for _, z := range r.zones {
		sum += z.Area
	}
	return sum
}

// AddZone attaches z, rejecting it when the zones would outgrow the room.
// A zone without height takes the room's height now.
func (r *Room) AddZone(z *Zone) error {
	if z.Area <= 0 {
		return fmt.Errorf("zone %s: %w", z.ID, ErrInvalidArea)
	}
	if used := r.UsedArea(); used+z.Area > r.Area+areaEpsilon {
		return fmt.Errorf("zone %s (%.2f m²) in room %s (%.2f of %.2f m² used): %w",
			z.ID, z.Area, r.ID, used, r.Area, ErrAreaExceeded)
	}
	z.attach(r.Height)
	r.zones = append(r.zones, z)
	return nil
}

// Zones returns the zones in insertion order.
func (r *Room) Zones() []*Zone {
	return append([]*Zone(nil), r.zones...)
}
