package connection_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/messenger"
	"github.com/named-data/icnfwd/internal/rc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct{ scheduled []func() }

func (f *fakeDispatcher) ScheduleNextTick(cb func()) { f.scheduled = append(f.scheduled, cb) }
func (f *fakeDispatcher) Tick() {
	batch := f.scheduled
	f.scheduled = nil
	for _, cb := range batch {
		cb()
	}
}

func TestAddAssignsDenseIdsAndEmitsUp(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)
	var ups []uint64
	m.Subscribe(func(miss messenger.Missive) {
		if miss.Kind == messenger.ConnectionUp {
			ups = append(ups, miss.ConnID)
		}
	})

	tbl := connection.New(m)
	c0 := tbl.Add(func(*rc.Ref[*message.Message]) error { return nil }, false, "10.0.0.1:6363")
	c1 := tbl.Add(func(*rc.Ref[*message.Message]) error { return nil }, true, "")

	assert.Equal(t, uint64(0), c0.ID)
	assert.Equal(t, uint64(1), c1.ID)

	d.Tick()
	assert.Equal(t, []uint64{0, 1}, ups)
}

func TestLookupByPeerAddr(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)
	tbl := connection.New(m)
	c := tbl.Add(func(*rc.Ref[*message.Message]) error { return nil }, false, "1.2.3.4:1234")

	id, ok := tbl.Lookup("1.2.3.4:1234")
	require.True(t, ok)
	assert.Equal(t, c.ID, id)

	_, ok = tbl.Lookup("nope")
	assert.False(t, ok)
}

func TestRemoveEmitsDestroyedAndClearsBackIndex(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)
	var downs []uint64
	m.Subscribe(func(miss messenger.Missive) {
		if miss.Kind == messenger.ConnectionDestroyed {
			downs = append(downs, miss.ConnID)
		}
	})

	tbl := connection.New(m)
	c := tbl.Add(func(*rc.Ref[*message.Message]) error { return nil }, false, "1.2.3.4:1234")
	tbl.Remove(c.ID)
	d.Tick()

	assert.Equal(t, []uint64{c.ID}, downs)
	_, ok := tbl.Get(c.ID)
	assert.False(t, ok)
	_, ok = tbl.Lookup("1.2.3.4:1234")
	assert.False(t, ok)
}

func TestSendToUnknownConnectionIsNoOp(t *testing.T) {
	d := &fakeDispatcher{}
	m := messenger.New(d.ScheduleNextTick)
	tbl := connection.New(m)
	err := tbl.Send(999, nil)
	assert.NoError(t, err)
}
