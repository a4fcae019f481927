// Package outstation implements the DNP3 outstation (server) role: the
// static point database, bounded event buffer, Select-Before-Operate
// state, and the request/response/unsolicited responder state machine,
// keyed by (PointType, index), and on
// mutex-guarded mapping update pattern for the per-point update path.
package outstation

import (
	"sync"

	"github.com/dnp3go/dnp3/pkg/objects"
)

// Point is one entry of the outstation's static database.
type Point struct {
	Type            objects.PointType
	Index           uint32
	Flags           byte
	Time            objects.Timestamp
	Bool            bool
	DoubleBit       objects.DoubleBit
	Uint            uint64
	Int             int64
	Float           float64
	Octets          []byte
	StaticVariation objects.GroupVariation
	EventVariation  objects.GroupVariation
	EventClass      EventClass
	Deadband        float64 // analog/counter points: minimum |delta| to emit an event
}

func (p Point) toValue() objects.Value {
	return objects.Value{
		Index:     p.Index,
		Flags:     p.Flags,
		HasTime:   p.Time.Quality != objects.TimeInvalid,
		Time:      p.Time,
		Bool:      p.Bool,
		DoubleBit: p.DoubleBit,
		Uint:      p.Uint,
		Int:       p.Int,
		Float:     p.Float,
		Octets:    p.Octets,
	}
}

// EventClass is a point's assigned event class (none, or 1/2/3).
type EventClass uint8

const (
	ClassNone EventClass = iota
	Class1
	Class2
	Class3
)

// Database holds every static point the outstation exposes, plus the
// event buffer fed by point updates. All mutation happens inside
// Transaction: the database is mutated only inside user-provided
// transactions executed on the outstation task thread.
type Database struct {
	mu     sync.Mutex
	points map[objects.PointType]map[uint32]*Point
	Events *EventBuffer
	iin    IINState
}

// IINState is the outstation-owned subset of IIN bits that persist
// between responses (device restart, need-time, event-buffer overflow).
type IINState struct {
	DeviceRestart bool
	NeedTime      bool
	EventOverflow bool
}

func NewDatabase(capacities EventCapacities) *Database {
	return &Database{
		points: make(map[objects.PointType]map[uint32]*Point),
		Events: NewEventBuffer(capacities),
	}
}

// Transaction runs fn with exclusive access to the database, the single
// synchronization point for point updates and event buffer mutation.
func (db *Database) Transaction(fn func(tx *Database)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db)
}

// AddPoint registers or replaces a static point definition (not a value
// update — see UpdatePoint). Must be called from within a Transaction or
// before the outstation starts serving requests.
func (db *Database) AddPoint(p Point) {
	m, ok := db.points[p.Type]
	if !ok {
		m = make(map[uint32]*Point)
		db.points[p.Type] = m
	}
	stored := p
	m[p.Index] = &stored
}

func (db *Database) Get(t objects.PointType, index uint32) (*Point, bool) {
	m, ok := db.points[t]
	if !ok {
		return nil, false
	}
	p, ok := m[index]
	return p, ok
}

// All returns every point of type t, sorted by index is the caller's
// responsibility (iteration order over a map is not guaranteed).
func (db *Database) All(t objects.PointType) []*Point {
	m := db.points[t]
	out := make([]*Point, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

// detectEvent decides, per the event-class enqueue policy, whether
// updating from old to new should emit an event.
func detectEvent(t objects.PointType, old, new Point) bool {
	switch t {
	case objects.BinaryInput, objects.BinaryOutputStatus:
		return old.Bool != new.Bool || old.Flags != new.Flags
	case objects.DoubleBitBinaryInput:
		return old.DoubleBit != new.DoubleBit
	case objects.Counter, objects.FrozenCounter:
		delta := new.Uint - old.Uint
		if new.Uint < old.Uint {
			delta = old.Uint - new.Uint
		}
		return float64(delta) >= new.Deadband
	case objects.AnalogInput, objects.AnalogOutputStatus:
		delta := new.Float - old.Float
		if delta < 0 {
			delta = -delta
		}
		return delta > new.Deadband
	default:
		return old.Octets == nil || string(old.Octets) != string(new.Octets)
	}
}

// UpdatePoint writes a new value for (t,index) and, if the point is
// configured with an event class and the change qualifies, enqueues an
// event into the database's event buffer.
func (db *Database) UpdatePoint(t objects.PointType, index uint32, mutate func(p *Point)) {
	db.updatePoint(t, index, mutate, false)
}

// ForceUpdatePoint writes a new value for (t,index) and, if the point is
// configured with an event class, unconditionally enqueues an event
// regardless of whether detectEvent's threshold/any-change comparison would
// have fired on its own. Used when a caller has independently decided an
// event is warranted (e.g. a freeze operation or an explicit detect-event
// request), not just a raw value write.
func (db *Database) ForceUpdatePoint(t objects.PointType, index uint32, mutate func(p *Point)) {
	db.updatePoint(t, index, mutate, true)
}

func (db *Database) updatePoint(t objects.PointType, index uint32, mutate func(p *Point), forceEvent bool) {
	m, ok := db.points[t]
	if !ok {
		return
	}
	p, ok := m[index]
	if !ok {
		return
	}
	before := *p
	mutate(p)
	if p.EventClass != ClassNone && (forceEvent || detectEvent(t, before, *p)) {
		variation := p.EventVariation
		if variation == (objects.GroupVariation{}) {
			variation = objects.DefaultEventVariation(t)
		}
		overflowed := db.Events.Push(Event{
			Type:      t,
			Index:     index,
			Value:     p.toValue(),
			Variation: variation,
			Class:     p.EventClass,
		})
		if overflowed {
			db.iin.EventOverflow = true
		}
	}
}

// IIN returns the outstation-owned persistent IIN bits for folding into a
// response header alongside transient per-request bits.
func (db *Database) IIN() IINState { return db.iin }

func (db *Database) ClearEventOverflow() { db.iin.EventOverflow = false }

func (db *Database) SetDeviceRestart(v bool) { db.iin.DeviceRestart = v }

func (db *Database) SetNeedTime(v bool) { db.iin.NeedTime = v }
