// Package layout resolves the on-disk paths wapm reads and writes: the
// global scope under $WASMER_DIR, the project scope under the nearest
// wapm.toml, the key database, and the execute cache. Both scopes share a
// single Scope type so install/uninstall never duplicate codepaths between
// "project" and "global" (spec section 9's dual-scope design note).
package layout

import (
	"os"
	"path/filepath"

	"github.com/wapm-community/wapm/internal/werror"
)

// Scope is a single install root: either the project (current directory's
// wapm_packages/) or the user's global store ($WASMER_DIR/globals/).
type Scope struct {
	// Global is true for the per-user global scope, false for the
	// project-local scope.
	Global bool
	// Root is the scope's base directory (cwd for project scope,
	// $WASMER_DIR/globals for global scope).
	Root string
	// PackagesDir holds installed package directories,
	// <namespace>/<name>@<version>.
	PackagesDir string
	// LockfilePath is the scope's wapm.lock.
	LockfilePath string
	// ManifestPath is the scope's wapm.toml. Only meaningful for the
	// project scope; the global scope has no author-facing manifest.
	ManifestPath string
}

// PackageDir returns the install directory for a fully-qualified package
// version within the scope.
func (s Scope) PackageDir(namespace, name, version string) string {
	return filepath.Join(s.PackagesDir, namespace, name+"@"+version)
}

// LockPath returns the path of the scope's exclusive write lock file.
// No install or uninstall operation acquires this lock, so operations on
// the same scope are not serialized against each other.
func (s Scope) LockPath() string {
	return s.LockfilePath + ".lock"
}

// HomeDir returns $WASMER_DIR, falling back to the user's home directory
// under a .wasmer subdirectory, per spec section 6's environment variable
// table.
func HomeDir() (string, error) {
	if dir := os.Getenv("WASMER_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", werror.Wrap(werror.KindFilesystemIO, err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".wasmer"), nil
}

// GlobalScope returns the per-user global scope rooted at $WASMER_DIR/globals.
func GlobalScope() (Scope, error) {
	home, err := HomeDir()
	if err != nil {
		return Scope{}, err
	}
	root := filepath.Join(home, "globals")
	return Scope{
		Global:       true,
		Root:         root,
		PackagesDir:  filepath.Join(root, "wapm_packages"),
		LockfilePath: filepath.Join(root, "wapm.lock"),
	}, nil
}

// ProjectScope returns the project-local scope rooted at dir (normally the
// current working directory).
func ProjectScope(dir string) Scope {
	return Scope{
		Global:       false,
		Root:         dir,
		PackagesDir:  filepath.Join(dir, "wapm_packages"),
		LockfilePath: filepath.Join(dir, "wapm.lock"),
		ManifestPath: filepath.Join(dir, "wapm.toml"),
	}
}

// FindProjectRoot walks upward from dir looking for the nearest wapm.toml,
// matching the command resolver's "current directory upward to the
// nearest wapm.toml" lookup (spec section 4.G).
func FindProjectRoot(dir string) (string, bool) {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(filepath.Join(dir, "wapm.toml")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// KeyStorePath returns the path to the persistent publisher-key database
// (JSON-backed; see DESIGN.md for why this is not a SQL file despite the
// spec describing it in table terms).
func KeyStorePath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "wapm_keys.json"), nil
}

// ExecuteCachePath returns the path to the ephemeral execute cache.
func ExecuteCachePath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wax_index.toml"), nil
}

// LogPath returns the path wapm appends error backtraces to.
func LogPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "wapm.log"), nil
}

// EnsureDirs creates the scope's directories if they do not exist.
func (s Scope) EnsureDirs() error {
	if err := os.MkdirAll(s.PackagesDir, 0o750); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create packages directory")
	}
	return nil
}

// SweepTrash best-effort removes any .trash-* siblings left behind by a
// crashed install/uninstall (spec section 9's open question: sweep at
// install start rather than relying on uninstall's own cleanup).
func (s Scope) SweepTrash() {
	entries, err := os.ReadDir(s.PackagesDir)
	if err != nil {
		return
	}
	for _, nsEntry := range entries {
		if !nsEntry.IsDir() {
			continue
		}
		nsPath := filepath.Join(s.PackagesDir, nsEntry.Name())
		pkgEntries, err := os.ReadDir(nsPath)
		if err != nil {
			continue
		}
		for _, pkgEntry := range pkgEntries {
			name := pkgEntry.Name()
			if ok, _ := filepath.Match("*.trash-*", name); ok {
				_ = os.RemoveAll(filepath.Join(nsPath, name))
			}
		}
	}
}
