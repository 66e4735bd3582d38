package wax

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsEmptyIndex(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), ".wax_index.toml"))
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
}

func TestRecordLookupSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wax_index.toml")
	idx, err := Load(path)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.Record("greet", "1.0.0", "/cache/greet@1.0.0", now)
	require.NoError(t, idx.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Lookup("greet", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "/cache/greet@1.0.0", entry.InstallDir)
}

func TestEvictExpiredRemovesOldEntries(t *testing.T) {
	idx := &Index{Entries: map[string]Entry{}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.Record("stale", "1.0.0", "/cache/stale", now.Add(-20*24*time.Hour))
	idx.Record("fresh", "1.0.0", "/cache/fresh", now.Add(-1*time.Hour))

	evicted := EvictExpired(idx, DefaultTTL, now)
	require.Len(t, evicted, 1)
	assert.Equal(t, "stale", evicted[0].Name)
	_, ok := idx.Lookup("fresh", "1.0.0")
	assert.True(t, ok)
}

func TestClearRemovesEverything(t *testing.T) {
	idx := &Index{Entries: map[string]Entry{}}
	idx.Record("a", "1.0.0", "/cache/a", time.Now())
	idx.Record("b", "1.0.0", "/cache/b", time.Now())

	evicted := Clear(idx)
	assert.Len(t, evicted, 2)
	assert.Empty(t, idx.Entries)
}
