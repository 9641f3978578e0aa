package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/named-data/icnfwd/internal/config"
	"github.com/named-data/icnfwd/internal/logging"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadProfileAppliesOverridesOnTopOfDefaults(t *testing.T) {
	path := writeProfile(t, `
cache_capacity: 256
pit_default_lifetime_ms: 2000
log:
  processor: debug
`)
	p, err := config.LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 256, p.CacheCapacity)
	assert.Equal(t, 2000, p.PitDefaultLifetimeMs)
	assert.Equal(t, 30000, p.PitMaxLifetimeMs, "omitted field keeps the default")
}

func TestLoadProfileRejectsNonStandardTimerPeriods(t *testing.T) {
	path := writeProfile(t, "fast_timer_period_ms: 500\n")
	_, err := config.LoadProfile(path)
	assert.Error(t, err)
}

func TestLifetimesConversion(t *testing.T) {
	p := config.DefaultProfile()
	lt := p.Lifetimes()
	assert.Equal(t, 4*time.Second, lt.Default)
	assert.Equal(t, 30*time.Second, lt.Max)
}

func TestApplyLogLevels(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, logging.LevelError)

	p := config.DefaultProfile()
	p.Log = map[string]string{"processor": "debug"}
	require.NoError(t, p.ApplyLogLevels(l))

	l.Debug(logging.FacilityProcessor, fakeModule("proc"), "hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestApplyLogLevelsRejectsUnknownLevel(t *testing.T) {
	l := logging.New(&bytes.Buffer{}, logging.LevelInfo)
	p := config.DefaultProfile()
	p.Log = map[string]string{"core": "bogus"}
	assert.Error(t, p.ApplyLogLevels(l))
}

type fakeModule string

func (m fakeModule) String() string { return string(m) }

func TestApplyVerbsRunsInOrderAndStopsOnError(t *testing.T) {
	a, f, _, _, _ := newApplier(t)
	p := config.DefaultProfile()
	p.Verbs = []string{
		"add connection peer1 tcp 127.0.0.1:6363 10.0.0.1:6363",
		"add route peer1 /ndn/example 10",
	}
	require.NoError(t, p.ApplyVerbs(a))

	_, ok := f.Lookup(name.FromString("/ndn/example"))
	require.True(t, ok)

	p.Verbs = []string{
		"add route ghost /ndn/unreached 10",
		"add route peer1 /ndn/later 10",
	}
	require.Error(t, p.ApplyVerbs(a))
	_, ok = f.Lookup(name.FromString("/ndn/later"))
	assert.False(t, ok, "verbs after the failing one are not applied")
}
