package message_test

import (
	"testing"

	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInterestRefcount(t *testing.T) {
	ref := message.NewInterest(name.FromString("/a/b"), message.Restriction{}, 4000, 32, 7, 100)
	require.Equal(t, 1, ref.Count())
	m := ref.Get()
	assert.Equal(t, message.Interest, m.Kind)
	assert.Equal(t, uint64(7), m.Ingress)

	ref.Acquire()
	assert.Equal(t, 2, ref.Count())
	ref.Release()
	ref.Release()
}

func TestIsExpired(t *testing.T) {
	ref := message.NewContentObject(name.FromString("/a"), []byte("x"), nil, 1000, true, 0, false, 1, 0)
	m := ref.Get()
	assert.False(t, m.IsExpired(999))
	assert.True(t, m.IsExpired(1000))
	assert.True(t, m.IsExpired(1001))
}

func TestNoExpiryNeverExpires(t *testing.T) {
	ref := message.NewContentObject(name.FromString("/a"), []byte("x"), nil, 0, false, 0, false, 1, 0)
	m := ref.Get()
	assert.False(t, m.IsExpired(1_000_000))
}

func TestObjectHashIsDeterministic(t *testing.T) {
	ref1 := message.NewContentObject(name.FromString("/a"), []byte("payload"), nil, 0, false, 0, false, 1, 0)
	ref2 := message.NewContentObject(name.FromString("/a"), []byte("payload"), nil, 0, false, 0, false, 1, 0)
	assert.Equal(t, ref1.Get().ObjectHash(), ref2.Get().ObjectHash())

	ref3 := message.NewContentObject(name.FromString("/a"), []byte("different"), nil, 0, false, 0, false, 1, 0)
	assert.NotEqual(t, ref1.Get().ObjectHash(), ref3.Get().ObjectHash())
}
