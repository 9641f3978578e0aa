package clock_test

import (
	"testing"
	"time"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestAdvanceUpdatesTicksAndTimers(t *testing.T) {
	c := clock.New(time.Now())
	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, clock.Ticks(1500), c.Now())
	assert.Equal(t, uint16(1), c.FastTimer())
	assert.Equal(t, uint16(0), c.SlowTimer())

	c.Advance(59*time.Second + 0*time.Millisecond)
	assert.Equal(t, uint16(1), c.SlowTimer())
}

func TestSeqGreaterOrEqualWraparound(t *testing.T) {
	assert.True(t, clock.SeqGreaterOrEqual(10, 5))
	assert.False(t, clock.SeqGreaterOrEqual(5, 10))

	// wraparound: 2 is "ahead of" 65530 in sequence-number space
	assert.True(t, clock.SeqGreaterOrEqual(2, 65530))
	assert.False(t, clock.SeqGreaterOrEqual(65530, 2))
}

func TestUsesFastTimer(t *testing.T) {
	assert.True(t, clock.UsesFastTimer(4*time.Second))
	assert.False(t, clock.UsesFastTimer(20*time.Hour))
}
