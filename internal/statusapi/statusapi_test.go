package statusapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/dispatcher"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/pit"
	"github.com/named-data/icnfwd/internal/statusapi"
)

func TestHandlerServeHTTP(t *testing.T) {
	d := dispatcher.New()
	p := pit.New(64)
	cs := contentstore.New(8)
	f := fib.New(fib.Multicast{})
	f.AddRoute(name.FromString("/a"), 1)

	go d.Run()
	defer func() {
		d.Stop()
		d.WaitForStopped()
	}()

	h := &statusapi.Handler{D: d, Pit: p, CS: cs, Fib: f}

	t.Run("no filter returns everything", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap statusapi.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.PitEntries)
		require.NotNil(t, snap.CsEntries)
		require.NotNil(t, snap.CsCapacity)
		require.NotNil(t, snap.FibEntries)
		assert.Equal(t, 0, *snap.PitEntries)
		assert.Equal(t, 0, *snap.CsEntries)
		assert.Equal(t, 8, *snap.CsCapacity)
		assert.Equal(t, 1, *snap.FibEntries)
	})

	t.Run("component filter narrows the snapshot", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status?component=pit", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap statusapi.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.NotNil(t, snap.PitEntries)
		assert.Nil(t, snap.CsEntries)
		assert.Nil(t, snap.CsCapacity)
		assert.Nil(t, snap.FibEntries)
	})

	t.Run("component=fib returns only the fib count", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status?component=fib", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap statusapi.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.FibEntries)
		assert.Equal(t, 1, *snap.FibEntries)
		assert.Nil(t, snap.PitEntries)
		assert.Nil(t, snap.CsEntries)
		assert.Nil(t, snap.CsCapacity)
	})
}
