package outstation

import (
	"testing"

	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/stretchr/testify/assert"
)

func TestEventBufferDropsOldestOnOverflow(t *testing.T) {
	cap := EventCapacities{Binary: 3}
	b := NewEventBuffer(cap)
	for i := 0; i < 5; i++ {
		b.Push(Event{Type: objects.BinaryInput, Index: uint32(i), Class: Class1})
	}
	events := b.SelectForClasses(Class1)
	assert.Len(t, events, 3)
	assert.EqualValues(t, 2, events[0].Index)
	assert.EqualValues(t, 4, events[2].Index)
}

func TestEventBufferOverflowSkipsInFlightEvents(t *testing.T) {
	b := NewEventBuffer(EventCapacities{Binary: 2})
	b.Push(Event{Type: objects.BinaryInput, Index: 0, Class: Class1})
	b.Push(Event{Type: objects.BinaryInput, Index: 1, Class: Class1})
	selected := b.SelectForClasses(Class1) // marks both in-flight

	overflowed := b.Push(Event{Type: objects.BinaryInput, Index: 2, Class: Class1})
	assert.False(t, overflowed, "no not-in-flight event to drop, queue grows instead")

	b.ReleaseInFlight(selected)
	events := b.SelectForClasses(Class1)
	assert.Len(t, events, 3, "all three events, including the oldest, survived")
	assert.EqualValues(t, 0, events[0].Index)
}

func TestEventBufferOverflowFlagReported(t *testing.T) {
	b := NewEventBuffer(EventCapacities{Binary: 2})
	assert.False(t, b.Push(Event{Type: objects.BinaryInput, Index: 0, Class: Class1}))
	assert.False(t, b.Push(Event{Type: objects.BinaryInput, Index: 1, Class: Class1}))
	assert.True(t, b.Push(Event{Type: objects.BinaryInput, Index: 2, Class: Class1}))
}

func TestEventBufferClassPriorityOrder(t *testing.T) {
	b := NewEventBuffer(DefaultEventCapacities())
	b.Push(Event{Type: objects.AnalogInput, Index: 1, Class: Class3})
	b.Push(Event{Type: objects.BinaryInput, Index: 2, Class: Class1})
	b.Push(Event{Type: objects.Counter, Index: 3, Class: Class2})

	events := b.SelectForClasses(Class1, Class2, Class3)
	assert.Len(t, events, 3)
	assert.Equal(t, Class1, events[0].Class)
	assert.Equal(t, Class2, events[1].Class)
	assert.Equal(t, Class3, events[2].Class)
}

func TestEventBufferCommitRemovesOnlyConfirmed(t *testing.T) {
	b := NewEventBuffer(DefaultEventCapacities())
	b.Push(Event{Type: objects.BinaryInput, Index: 0, Class: Class1})
	b.Push(Event{Type: objects.BinaryInput, Index: 1, Class: Class1})
	selected := b.SelectForClasses(Class1)
	assert.Len(t, selected, 2)

	b.CommitInFlight(selected)
	assert.False(t, b.Pending(Class1))
}

func TestEventBufferReleaseKeepsEventsForRetransmission(t *testing.T) {
	b := NewEventBuffer(DefaultEventCapacities())
	b.Push(Event{Type: objects.BinaryInput, Index: 0, Class: Class1})
	selected := b.SelectForClasses(Class1)
	assert.Len(t, selected, 1)

	b.ReleaseInFlight(selected)
	assert.True(t, b.Pending(Class1))
	reselected := b.SelectForClasses(Class1)
	assert.Len(t, reselected, 1)
}
