// Package statusapi is the ambient HTTP status/debug surface spec.md §2's
// overview names as a collaborator ("everything else ... is an external
// collaborator specified only through the interfaces the core consumes"),
// grounded on this project's lineage of shipping a small HTTP demo app
// alongside the forwarder (original_source/apps/http,
// original_source/icnet/http). It exposes read-only PIT/CS/FIB counts,
// filterable by query string.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/dispatcher"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/pit"
)

// Filter narrows which counters a GET /status request returns, decoded
// from the request's query string via gorilla/schema.
type Filter struct {
	Component string `schema:"component"` // "pit", "cs", "fib", or "" for all
}

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// Snapshot is the JSON body returned by GET /status.
type Snapshot struct {
	PitEntries *int `json:"pit_entries,omitempty"`
	CsEntries  *int `json:"cs_entries,omitempty"`
	CsCapacity *int `json:"cs_capacity,omitempty"`
	FibEntries *int `json:"fib_entries,omitempty"`
}

// Handler bundles the live tables this surface reads counts from. It
// never mutates forwarder state, but PIT/CS/FIB are only safe to read
// from the Dispatcher goroutine that owns them (spec.md §5), so every
// request's actual read is Posted onto D and ServeHTTP blocks for the
// reply — the same cross-thread-to-Dispatcher pattern internal/ctrlsock
// uses for verb application.
type Handler struct {
	D   *dispatcher.Dispatcher
	Pit *pit.Pit
	CS  *contentstore.ContentStore
	Fib *fib.Fib
}

// ServeHTTP implements http.Handler: GET /status[?component=pit|cs|fib].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var f Filter
	if err := decoder.Decode(&f, r.Form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapCh := make(chan Snapshot, 1)
	h.D.Post(func() { snapCh <- h.snapshot(f) })
	snap := <-snapCh

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// snapshot builds one Snapshot; only ever called from the Dispatcher
// goroutine.
func (h *Handler) snapshot(f Filter) Snapshot {
	snap := Snapshot{}
	want := func(c string) bool { return f.Component == "" || f.Component == c }
	if want("pit") && h.Pit != nil {
		n := h.Pit.Len()
		snap.PitEntries = &n
	}
	if want("cs") && h.CS != nil {
		n, capacity := h.CS.Len(), h.CS.Capacity()
		snap.CsEntries = &n
		snap.CsCapacity = &capacity
	}
	if want("fib") && h.Fib != nil {
		n := h.Fib.Len()
		snap.FibEntries = &n
	}
	return snap
}
