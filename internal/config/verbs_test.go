package config_test

import (
	"testing"

	"time"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/config"
	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/messenger"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/pit"
	"github.com/named-data/icnfwd/internal/processor"
	"github.com/named-data/icnfwd/internal/rc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFaces struct {
	nextID uint64
}

func (f *fakeFaces) CreateListener(proto, addr, port string) (uint64, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeFaces) CreateConnection(proto, local, remote string) (uint64, error) {
	f.nextID++
	return f.nextID, nil
}

func newApplier(t *testing.T) (*config.Applier, *fib.Fib, *connection.Table, *contentstore.ContentStore, *processor.CacheConfig) {
	t.Helper()
	f := fib.New(fib.Multicast{})
	conns := connection.New(messenger.New(func(func()) {}))
	cs := contentstore.New(16)
	cache := processor.DefaultCacheConfig()
	strategies := func(n string) (fib.Strategy, bool) {
		switch n {
		case "multicast":
			return fib.Multicast{}, true
		case "best-route":
			return fib.BestRoute{}, true
		}
		return nil, false
	}
	a := config.NewApplier(&fakeFaces{}, f, conns, cs, cache, strategies)
	return a, f, conns, cs, cache
}

func TestParseVerbGrammar(t *testing.T) {
	cases := []struct {
		line string
		kind config.VerbKind
	}{
		{"# a comment", config.VerbComment},
		{"", config.VerbComment},
		{"add listener eth0 tcp 0.0.0.0 6363", config.VerbAddListener},
		{"add connection peer1 udp 127.0.0.1:9000 127.0.0.1:9001", config.VerbAddConnection},
		{"add route peer1 /ndn/example 10", config.VerbAddRoute},
		{"set strategy /ndn/example multicast", config.VerbSetStrategy},
		{"cache size 512", config.VerbCacheSize},
		{"cache store on", config.VerbCacheStore},
		{"cache serve off", config.VerbCacheServe},
	}
	for _, c := range cases {
		v, err := config.ParseVerb(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.kind, v.Kind, c.line)
	}
}

func TestParseVerbRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"add listener eth0 tcp",
		"add bogus a b c d",
		"set strategy onlyoneprefix",
		"cache size",
		"frobnicate",
	} {
		_, err := config.ParseVerb(line)
		assert.Error(t, err, line)
	}
}

func TestApplyAddConnectionThenRoute(t *testing.T) {
	a, f, _, _, _ := newApplier(t)

	v, err := config.ParseVerb("add connection peer1 tcp 127.0.0.1:6363 10.0.0.1:6363")
	require.NoError(t, err)
	_, err = a.Apply(v)
	require.NoError(t, err)

	v, err = config.ParseVerb("add route peer1 /ndn/example 10")
	require.NoError(t, err)
	reply, err := a.Apply(v)
	require.NoError(t, err)
	assert.Contains(t, reply, "/ndn/example")

	entry, ok := f.Lookup(name.FromString("/ndn/example/data"))
	require.True(t, ok)
	assert.Equal(t, []uint64{1}, entry.Nexthops())
}

func TestApplyRouteUnknownConnectionFails(t *testing.T) {
	a, _, _, _, _ := newApplier(t)
	v, err := config.ParseVerb("add route ghost /ndn/example 10")
	require.NoError(t, err)
	_, err = a.Apply(v)
	assert.Error(t, err)
}

func TestApplySetStrategy(t *testing.T) {
	a, f, _, _, _ := newApplier(t)
	f.AddRoute(name.FromString("/ndn/example"), 1)

	v, err := config.ParseVerb("set strategy /ndn/example best-route")
	require.NoError(t, err)
	_, err = a.Apply(v)
	require.NoError(t, err)

	entry, ok := f.Lookup(name.FromString("/ndn/example"))
	require.True(t, ok)
	assert.Equal(t, "best-route", entry.Strategy().Name())
}

func TestApplySetStrategyUnknownNameFails(t *testing.T) {
	a, f, _, _, _ := newApplier(t)
	f.AddRoute(name.FromString("/ndn/example"), 1)

	v, err := config.ParseVerb("set strategy /ndn/example nonexistent")
	require.NoError(t, err)
	_, err = a.Apply(v)
	assert.Error(t, err)
}

func TestApplyCacheVerbsToggleConfig(t *testing.T) {
	a, _, _, cs, cache := newApplier(t)

	v, _ := config.ParseVerb("cache size 4")
	_, err := a.Apply(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cs.Capacity())

	v, _ = config.ParseVerb("cache store off")
	_, err = a.Apply(v)
	require.NoError(t, err)
	assert.False(t, cache.Store)

	v, _ = config.ParseVerb("cache serve off")
	_, err = a.Apply(v)
	require.NoError(t, err)
	assert.False(t, cache.Serve)
}

func TestApplyCacheStoreOffSuppressesProcessorCaching(t *testing.T) {
	a, f, conns, cs, cache := newApplier(t)
	received := make(map[uint64][]*message.Message)
	requester := conns.Add(func(m *rc.Ref[*message.Message]) error {
		received[0] = append(received[0], m.Get())
		return nil
	}, false, "").ID
	producer := conns.Add(func(m *rc.Ref[*message.Message]) error {
		received[1] = append(received[1], m.Get())
		return nil
	}, false, "").ID
	f.AddRoute(name.FromString("/x"), producer)

	v, _ := config.ParseVerb("cache store off")
	_, err := a.Apply(v)
	require.NoError(t, err)

	pr := processor.New(cs, pit.New(64), f, conns, clock.New(time.Unix(0, 0)), processor.Config{
		Lifetimes: pit.Lifetimes{Default: 4 * time.Second, Max: 30 * time.Second},
		Cache:     cache,
	})

	pr.OnReceive(message.NewInterest(name.FromString("/x"), message.Restriction{}, 4000, 64, requester, 0))
	pr.OnReceive(message.NewContentObject(name.FromString("/x"), []byte("data"), nil, 0, false, 0, false, producer, 0))
	assert.Equal(t, 0, cs.Len(), "store-off means the reply never lands in the content store")
}
