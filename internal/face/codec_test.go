package face

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/name"
)

// TestCodecRoundTrip exercises spec.md §6's wire-format contract: "the
// same packet bytes re-encoded and re-parsed must produce an equivalent
// Message."
func TestCodecRoundTrip(t *testing.T) {
	t.Run("interest", func(t *testing.T) {
		n := name.FromString("/a/b/c")
		msgRef := message.NewInterest(n, message.Restriction{KeyID: []byte("key1")}, 4000, 64, 0, 0)

		buf, err := Encode(msgRef.Get())
		require.NoError(t, err)

		decodedRef, err := Decode(buf, 7, 42)
		require.NoError(t, err)
		decoded := decodedRef.Get()

		assert.Equal(t, message.Interest, decoded.Kind)
		assert.True(t, decoded.Name.Equal(n))
		assert.Equal(t, []byte("key1"), decoded.Restriction.KeyID)
		assert.EqualValues(t, 4000, decoded.Lifetime)
		assert.EqualValues(t, 64, decoded.HopLimit)
		assert.EqualValues(t, 7, decoded.Ingress)
		assert.EqualValues(t, 42, decoded.Created)
	})

	t.Run("content object", func(t *testing.T) {
		n := name.FromString("/a/b/c")
		msgRef := message.NewContentObject(n, []byte("payload"), []byte("locator"), 1000, true, 500, true, 0, 0)

		buf, err := Encode(msgRef.Get())
		require.NoError(t, err)

		decodedRef, err := Decode(buf, 3, 9)
		require.NoError(t, err)
		decoded := decodedRef.Get()

		assert.Equal(t, message.ContentObject, decoded.Kind)
		assert.True(t, decoded.Name.Equal(n))
		assert.Equal(t, []byte("payload"), decoded.Payload)
		assert.Equal(t, []byte("locator"), decoded.KeyLocator)
		assert.True(t, decoded.HasExpiry)
		assert.EqualValues(t, 1000, decoded.ExpiryTime)
		assert.True(t, decoded.HasCacheTime)
		assert.EqualValues(t, 500, decoded.CacheTime)
	})

	t.Run("control", func(t *testing.T) {
		msgRef := message.NewControl("add route conn1 /x 1", 0, 0)

		buf, err := Encode(msgRef.Get())
		require.NoError(t, err)

		decodedRef, err := Decode(buf, 2, 5)
		require.NoError(t, err)
		decoded := decodedRef.Get()

		assert.Equal(t, message.Control, decoded.Kind)
		assert.Equal(t, "add route conn1 /x 1", decoded.ControlVerb)
	})
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{byte(wireInterest)}, 0, 0)
	assert.Error(t, err)
}
