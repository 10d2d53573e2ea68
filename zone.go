package explorer

import (
	"fmt"

	"go.uber.org/zap"
)

// ZoneName identifies a dropzone.
type ZoneName string

const (
	Primary   ZoneName = "primary"
	Secondary ZoneName = "secondary"
)

// Zone is a single-occupancy slot. It refers to its occupant by key.
type Zone struct {
	name      ZoneName
	dimension string
}

func (z *Zone) Name() ZoneName { return z.name }

// Dimension returns the key of the occupant.
func (z *Zone) Dimension() (string, bool) {
	return z.dimension, z.dimension != ""
}

// Zones keeps the zone/dimension relation a bijection.
// Every mutation of either side goes through Assign or Clear.
type Zones struct {
	registry *Registry
	bus      *Bus
	logger   *zap.Logger

	order  []*Zone
	byName map[ZoneName]*Zone
}

func newZones(registry *Registry, bus *Bus, logger *zap.Logger, names ...ZoneName) *Zones {
	z := &Zones{
		registry: registry,
		bus:      bus,
		logger:   logger,
		order:    make([]*Zone, 0, len(names)),
		byName:   make(map[ZoneName]*Zone, len(names)),
	}
	for _, name := range names {
		zone := &Zone{name: name}
		z.order = append(z.order, zone)
		z.byName[name] = zone
	}

	return z
}

// All returns the zones in declaration order.
func (z *Zones) All() []*Zone {
	return z.order
}

func (z *Zones) Get(name ZoneName) (*Zone, bool) {
	zone, ok := z.byName[name]
	return zone, ok
}

// Occupant returns the dimension held by zone.
func (z *Zones) Occupant(name ZoneName) (*Dimension, bool) {
	zone, ok := z.byName[name]
	if !ok || zone.dimension == "" {
		return nil, false
	}

	return z.registry.Get(zone.dimension)
}

// Assign puts the dimension with key into zone, as a completed drop does.
// A type the zone does not accept leaves the zone empty and the dimension
// unassigned; that is not an error.
func (z *Zones) Assign(name ZoneName, key string) error {
	if name == "" && key == "" {
		return ErrInvalidAssignment
	}

	zone, ok := z.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}

	var dim *Dimension
	if key != "" {
		if dim, ok = z.registry.Get(key); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, key)
		}
	}

	old := zone.dimension
	if dim != nil {
		zone.dimension = dim.Key()
	}
	z.reconcile(zone, dim, old)

	return nil
}

// reconcile restores the bijection after zone's occupant changed from old to dim.
func (z *Zones) reconcile(zone *Zone, dim *Dimension, old string) {
	if dim == nil || dim.zone == zone.name {
		return
	}

	if !dim.Type().AcceptedBy(zone.name) {
		z.logger.Debug("zone rejected dimension",
			zap.String("zone", string(zone.name)),
			zap.String("dimension", dim.Key()),
			zap.Stringer("type", dim.Type()),
		)

		z.evict(zone, old, dim.Key())
		if prev, ok := z.byName[dim.zone]; ok && prev.dimension == dim.Key() {
			prev.dimension = ""
		}
		zone.dimension = ""
		dim.zone = ""

		return
	}

	z.evict(zone, old, dim.Key())
	if prev, ok := z.byName[dim.zone]; ok && prev != zone && prev.dimension == dim.Key() {
		prev.dimension = ""
	}
	dim.zone = zone.name

	z.logger.Debug("dimension assigned",
		zap.String("zone", string(zone.name)),
		zap.String("dimension", dim.Key()),
	)
	z.bus.Publish(string(TopicDimensions))
}

// evict clears the back-reference of the previous occupant old if it still
// believes it owns zone.
func (z *Zones) evict(zone *Zone, old, current string) {
	if old == "" || old == current {
		return
	}

	if prev, ok := z.registry.Get(old); ok && prev.zone == zone.name {
		prev.zone = ""
	}
}

// Clear empties zone.
func (z *Zones) Clear(name ZoneName) error {
	zone, ok := z.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	if zone.dimension == "" {
		return nil
	}

	if d, ok := z.registry.Get(zone.dimension); ok && d.zone == zone.name {
		d.zone = ""
	}
	zone.dimension = ""
	z.bus.Publish(string(TopicDimensions))

	return nil
}

// Check verifies that both sides of the relation agree.
func (z *Zones) Check() error {
	for _, zone := range z.order {
		if zone.dimension == "" {
			continue
		}
		d, ok := z.registry.Get(zone.dimension)
		if !ok || d.zone != zone.name {
			return fmt.Errorf("%w: zone %q holds %q", ErrBrokenBijection, zone.name, zone.dimension)
		}
	}

	for _, d := range z.registry.All() {
		if d.zone == "" {
			continue
		}
		zone, ok := z.byName[d.zone]
		if !ok || zone.dimension != d.Key() {
			return fmt.Errorf("%w: dimension %q points at %q", ErrBrokenBijection, d.Key(), d.zone)
		}
	}

	return nil
}
