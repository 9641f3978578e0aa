package numberset_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/numberset"
	"github.com/stretchr/testify/assert"
)

func TestAddRemoveContains(t *testing.T) {
	s := numberset.New[uint64]()
	assert.True(t, s.Add(5))
	assert.False(t, s.Add(5))
	assert.True(t, s.Contains(5))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Remove(5))
	assert.False(t, s.Remove(5))
	assert.False(t, s.Contains(5))
}

func TestSortedIteration(t *testing.T) {
	s := numberset.New[uint64](3, 1, 2)
	assert.Equal(t, []uint64{1, 2, 3}, s.Items())
}

func TestMinus(t *testing.T) {
	s := numberset.New[uint64](1, 2, 3)
	assert.Equal(t, []uint64{1, 3}, s.Minus(2))
}

func TestClone(t *testing.T) {
	s := numberset.New[uint64](1, 2)
	c := s.Clone()
	c.Add(3)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, c.Len())
}
