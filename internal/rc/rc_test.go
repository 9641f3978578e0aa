package rc_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/rc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	released := false
	r := rc.New(42, func(int) { released = true })
	require.Equal(t, 1, r.Count())

	r.Acquire()
	assert.Equal(t, 2, r.Count())

	r.Release()
	assert.False(t, released)
	assert.Equal(t, 1, r.Count())

	r.Release()
	assert.True(t, released)
	assert.Equal(t, 0, r.Count())
}

func TestReleaseAtZeroPanics(t *testing.T) {
	r := rc.New("x", nil)
	r.Release()
	assert.Panics(t, func() { r.Release() })
}

func TestAcquireAfterReleaseAllPanics(t *testing.T) {
	r := rc.New("x", nil)
	r.Release()
	assert.Panics(t, func() { r.Acquire() })
}
