// Package wax implements the execute cache (spec section 4.H): a TOML
// index of ephemerally-installed commands, keyed by (name, version),
// evicted opportunistically at resolve time once an entry exceeds its
// TTL. Grounded on internal/config's same
// load-strictly/mutate/atomic-rename discipline, applied to a cache file
// instead of user settings.
package wax

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wapm-community/wapm/internal/werror"
)

// DefaultTTL is the eviction age for cache entries (spec section 4.H).
const DefaultTTL = 14 * 24 * time.Hour

// Entry records one ephemerally-installed command.
type Entry struct {
	Name        string    `toml:"name"`
	Version     string    `toml:"version"`
	InstallDir  string    `toml:"install_dir"`
	InstalledAt time.Time `toml:"installed_at"`
}

// Index is the full .wax_index.toml contents.
type Index struct {
	Entries map[string]Entry `toml:"entries"`

	path string
}

// key builds the cache's lookup key for a (name, version) pair.
func key(name, version string) string {
	return name + "@" + version
}

// Load reads and strictly parses the execute cache index, returning an
// empty index if it does not yet exist.
func Load(path string) (*Index, error) {
	path = filepath.Clean(path)

	idx := &Index{Entries: map[string]Entry{}, path: path}

	data, err := os.ReadFile(path) // #nosec G304 -- path is layout-derived, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to read execute cache")
	}

	meta, err := toml.Decode(string(data), idx)
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to parse execute cache")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, werror.Newf(werror.KindFilesystemIO, "unknown execute cache key(s): %v", undecoded)
	}
	if idx.Entries == nil {
		idx.Entries = map[string]Entry{}
	}
	idx.path = path
	return idx, nil
}

// Save writes the index atomically.
func (idx *Index) Save() error {
	tmp := idx.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create execute cache temp file")
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(idx); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to encode execute cache")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to write execute cache")
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to save execute cache")
	}
	return nil
}

// Lookup returns the cached install directory for (name, version), if
// present and not evicted by EvictExpired.
func (idx *Index) Lookup(name, version string) (Entry, bool) {
	e, ok := idx.Entries[key(name, version)]
	return e, ok
}

// Record adds or replaces a cache entry.
func (idx *Index) Record(name, version, installDir string, installedAt time.Time) {
	idx.Entries[key(name, version)] = Entry{
		Name:        name,
		Version:     version,
		InstallDir:  installDir,
		InstalledAt: installedAt,
	}
}

// EvictExpired removes entries older than ttl and reports the evicted
// install directories, so the caller can remove them from disk too
// (spec section 4.H: "eviction is opportunistic at resolve time").
func EvictExpired(idx *Index, ttl time.Duration, now time.Time) []Entry {
	var evicted []Entry
	for k, e := range idx.Entries {
		if now.Sub(e.InstalledAt) > ttl {
			evicted = append(evicted, e)
			delete(idx.Entries, k)
		}
	}
	return evicted
}

// Clear removes every entry, returning the install directories that were
// cleared (`wax --clear`).
func Clear(idx *Index) []Entry {
	evicted := make([]Entry, 0, len(idx.Entries))
	for k, e := range idx.Entries {
		evicted = append(evicted, e)
		delete(idx.Entries, k)
	}
	return evicted
}
