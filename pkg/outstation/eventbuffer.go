package outstation

import (
	"container/list"

	"github.com/dnp3go/dnp3/pkg/objects"
)

// Event is an immutable snapshot of one point change.
type Event struct {
	Type      objects.PointType
	Index     uint32
	Value     objects.Value
	Variation objects.GroupVariation
	Class     EventClass

	inFlight bool // carried in an unconfirmed response, not yet removable
}

// EventCapacities configures the bounded per-type FIFO sizes.
type EventCapacities struct {
	Binary             int
	DoubleBitBinary    int
	BinaryOutputStatus int
	Counter            int
	FrozenCounter      int
	Analog             int
	AnalogOutputStatus int
	OctetString        int
}

// DefaultEventCapacities mirrors common outstation defaults (a few
// thousand events per class is typical; this stack defaults much smaller
// since it targets embedded-style deployments).
func DefaultEventCapacities() EventCapacities {
	return EventCapacities{
		Binary: 100, DoubleBitBinary: 100, BinaryOutputStatus: 100,
		Counter: 100, FrozenCounter: 100, Analog: 100,
		AnalogOutputStatus: 100, OctetString: 20,
	}
}

// EventBuffer is a set of bounded FIFOs, one per point type, with
// class-priority selection for response building.
type EventBuffer struct {
	capacities EventCapacities
	queues     map[objects.PointType]*list.List
}

func NewEventBuffer(cap EventCapacities) *EventBuffer {
	return &EventBuffer{
		capacities: cap,
		queues: map[objects.PointType]*list.List{
			objects.BinaryInput:          list.New(),
			objects.DoubleBitBinaryInput: list.New(),
			objects.BinaryOutputStatus:   list.New(),
			objects.Counter:              list.New(),
			objects.FrozenCounter:        list.New(),
			objects.AnalogInput:          list.New(),
			objects.AnalogOutputStatus:   list.New(),
			objects.OctetString:          list.New(),
		},
	}
}

func (b *EventBuffer) capacityFor(t objects.PointType) int {
	switch t {
	case objects.BinaryInput:
		return b.capacities.Binary
	case objects.DoubleBitBinaryInput:
		return b.capacities.DoubleBitBinary
	case objects.BinaryOutputStatus:
		return b.capacities.BinaryOutputStatus
	case objects.Counter:
		return b.capacities.Counter
	case objects.FrozenCounter:
		return b.capacities.FrozenCounter
	case objects.AnalogInput:
		return b.capacities.Analog
	case objects.AnalogOutputStatus:
		return b.capacities.AnalogOutputStatus
	case objects.OctetString:
		return b.capacities.OctetString
	default:
		return 0
	}
}

// Push enqueues ev, dropping the oldest not-in-flight event of the same
// type on overflow. An in-flight event (already sent in an unconfirmed
// response, awaiting CONFIRM) is never dropped; if every queued event is
// in-flight, the queue is allowed to exceed cap rather than drop one the
// master may still confirm. Returns true if a drop occurred (caller sets
// IIN2.EVENT_BUFFER_OVERFLOW).
func (b *EventBuffer) Push(ev Event) bool {
	q := b.queues[ev.Type]
	if q == nil {
		return false
	}
	overflowed := false
	cap := b.capacityFor(ev.Type)
	for q.Len() >= cap && cap > 0 {
		oldest := oldestNotInFlight(q)
		if oldest == nil {
			break
		}
		q.Remove(oldest)
		overflowed = true
	}
	q.PushBack(&ev)
	return overflowed
}

func oldestNotInFlight(q *list.List) *list.Element {
	for e := q.Front(); e != nil; e = e.Next() {
		if !e.Value.(*Event).inFlight {
			return e
		}
	}
	return nil
}

// Pending reports whether any class in classes has at least one queued
// event (used to decide whether to start an unsolicited response or
// answer a class-N poll with real content).
func (b *EventBuffer) Pending(classes ...EventClass) bool {
	want := map[EventClass]bool{}
	for _, c := range classes {
		want[c] = true
	}
	for _, q := range b.queues {
		for e := q.Front(); e != nil; e = e.Next() {
			if want[e.Value.(*Event).Class] {
				return true
			}
		}
	}
	return false
}

// SelectForClasses gathers queued, not-yet-in-flight events across the
// given classes in class-priority order (1 then 2 then 3), marks them
// in-flight, and returns them. Call CommitInFlight after a successful
// CONFIRM, or ReleaseInFlight on confirm timeout/loss.
func (b *EventBuffer) SelectForClasses(classes ...EventClass) []*Event {
	var out []*Event
	for _, class := range orderByPriority(classes) {
		for _, q := range b.queues {
			for e := q.Front(); e != nil; e = e.Next() {
				ev := e.Value.(*Event)
				if ev.Class == class && !ev.inFlight {
					ev.inFlight = true
					out = append(out, ev)
				}
			}
		}
	}
	return out
}

func orderByPriority(classes []EventClass) []EventClass {
	present := map[EventClass]bool{}
	for _, c := range classes {
		present[c] = true
	}
	var ordered []EventClass
	for _, c := range []EventClass{Class1, Class2, Class3} {
		if present[c] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// CommitInFlight removes events from their queues after the matching
// CONFIRM was received.
func (b *EventBuffer) CommitInFlight(events []*Event) {
	for _, q := range b.queues {
		for e := q.Front(); e != nil; {
			next := e.Next()
			if ev := e.Value.(*Event); ev.inFlight && containsEvent(events, ev) {
				q.Remove(e)
			}
			e = next
		}
	}
}

// ReleaseInFlight clears the in-flight mark without removing the events,
// so they are retransmitted on the next unsolicited attempt or poll:
// an event is removed only once the outstation has received a
// confirmation for it.
func (b *EventBuffer) ReleaseInFlight(events []*Event) {
	for _, ev := range events {
		ev.inFlight = false
	}
}

func containsEvent(haystack []*Event, needle *Event) bool {
	for _, e := range haystack {
		if e == needle {
			return true
		}
	}
	return false
}
