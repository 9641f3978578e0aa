package messenger_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/messenger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher models a single-slot "next tick" queue: ScheduleNextTick
// just appends to a slice; Tick runs exactly what was scheduled as of the
// start of the call, mirroring how the real Dispatcher would run timer
// callbacks to completion before looking at newly-scheduled ones.
type fakeDispatcher struct {
	scheduled []func()
}

func (f *fakeDispatcher) ScheduleNextTick(cb func()) {
	f.scheduled = append(f.scheduled, cb)
}

func (f *fakeDispatcher) Tick() {
	batch := f.scheduled
	f.scheduled = nil
	for _, cb := range batch {
		cb()
	}
}

func TestDeliveryIsDeferredOneTick(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)

	var received []messenger.Missive
	m.Subscribe(func(miss messenger.Missive) { received = append(received, miss) })

	m.Send(messenger.Missive{Kind: messenger.ConnectionUp, ConnID: 1})
	assert.Empty(t, received, "must not deliver synchronously")
	require.Equal(t, 1, m.Pending())

	d.Tick()
	require.Len(t, received, 1)
	assert.Equal(t, uint64(1), received[0].ConnID)
}

func TestEmitDuringEmitIsDeferredAnotherTick(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)

	var order []uint64
	m.Subscribe(func(miss messenger.Missive) {
		order = append(order, miss.ConnID)
		if miss.ConnID == 1 {
			m.Send(messenger.Missive{Kind: messenger.ConnectionDestroyed, ConnID: 2})
		}
	})

	m.Send(messenger.Missive{Kind: messenger.ConnectionUp, ConnID: 1})
	d.Tick()
	assert.Equal(t, []uint64{1}, order, "the re-entrant send must not be delivered in this tick")

	d.Tick()
	assert.Equal(t, []uint64{1, 2}, order)
}

func TestMultipleSubscribersEachGetACopy(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)

	var a, b int
	m.Subscribe(func(messenger.Missive) { a++ })
	m.Subscribe(func(messenger.Missive) { b++ })

	m.Send(messenger.Missive{Kind: messenger.ConnectionUp, ConnID: 1})
	d.Tick()

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestCancelSubscription(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)

	count := 0
	cancel := m.Subscribe(func(messenger.Missive) { count++ })
	cancel()

	m.Send(messenger.Missive{Kind: messenger.ConnectionUp, ConnID: 1})
	d.Tick()
	assert.Equal(t, 0, count)
}
