// Package lockfile implements wapm.lock: the generated pinning of a
// resolved dependency graph. It models the cyclic command→module→package
// relationship as an arena keyed by string (package_qualified_name,
// package_version, module_name) tuples, per the design note in spec
// section 9 ("entries store keys, not references").
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/werror"
)

// FileName is the canonical lockfile name.
const FileName = "wapm.lock"

// CurrentVersion is bumped whenever the lockfile schema changes.
const CurrentVersion = 1

// ModuleEntry pins one module of one resolved package version.
type ModuleEntry struct {
	Source         string `toml:"source"`
	ResolvedSource string `toml:"resolved_source,omitempty"`
	ABI            string `toml:"abi,omitempty"`
	PackageVersion string `toml:"package_version"`
	// EntryPath is relative to the lockfile's anchor directory (the
	// directory the lockfile lives in); resolved to an absolute path
	// only at use time.
	EntryPath string `toml:"entry_path"`
}

// CommandEntry pins one command to the package/module that serves it.
type CommandEntry struct {
	Package       string `toml:"package"`
	Version       string `toml:"version"`
	Module        string `toml:"module"`
	MainArgs      string `toml:"main_args,omitempty"`
	IsTopLevel    bool   `toml:"is_top_level"`
	DisableRename bool   `toml:"disable_rename,omitempty"`
}

// Lockfile is the full wapm.lock contents.
type Lockfile struct {
	Version  int                     `toml:"version"`
	Modules  map[string]ModuleEntry  `toml:"modules"`
	Commands map[string]CommandEntry `toml:"commands"`
}

// New returns an empty lockfile at the current schema version.
func New() *Lockfile {
	return &Lockfile{
		Version:  CurrentVersion,
		Modules:  map[string]ModuleEntry{},
		Commands: map[string]CommandEntry{},
	}
}

// ModuleKey builds the table key for a (package, version, module) triple.
func ModuleKey(qualifiedName, version, moduleName string) string {
	return fmt.Sprintf("%s@%s::%s", qualifiedName, version, moduleName)
}

// Load reads and strictly parses a lockfile. Unknown keys are an error,
// matching the manifest's strictness (spec section 9).
func Load(path string) (*Lockfile, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path) // #nosec G304 -- path is scope-derived, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, werror.Wrap(werror.KindLockfile, err, "failed to read lockfile")
	}

	lf := New()
	meta, err := toml.Decode(string(data), lf)
	if err != nil {
		return nil, werror.Wrap(werror.KindLockfile, err, "failed to parse lockfile")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, werror.Newf(werror.KindLockfile, "unknown lockfile key(s): %v", undecoded)
	}
	if lf.Modules == nil {
		lf.Modules = map[string]ModuleEntry{}
	}
	if lf.Commands == nil {
		lf.Commands = map[string]CommandEntry{}
	}
	return lf, nil
}

// Save writes the lockfile atomically (temp file + rename).
func (lf *Lockfile) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create lockfile temp file")
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(lf); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindLockfile, err, "failed to encode lockfile")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to write lockfile")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to save lockfile")
	}
	return nil
}

// ResolvedPackage is one package version from the registry's flat resolved
// set (spec section 4.E step 2: "the registry is the solver"), carrying
// enough of its manifest to materialize lockfile entries.
type ResolvedPackage struct {
	Namespace            string
	Name                 string
	Version              string
	Modules              []manifest.Module
	Commands             []manifest.Command
	IsTopLevel           bool
	DisableCommandRename bool
}

// QualifiedName returns the package's namespace/name form.
func (r ResolvedPackage) QualifiedName() string {
	return manifest.QualifiedName(r.Namespace, r.Name)
}

// Regenerate implements spec section 4.E's regeneration algorithm steps
// 3-5: materializing module/command entries for a resolved package set,
// rewriting module paths relative to anchorDir, and breaking command-name
// ties in favor of top-level dependencies (first-declared wins when both
// are top-level or both are transitive).
func Regenerate(anchorDir, packagesDir string, resolved []ResolvedPackage) (*Lockfile, error) {
	lf := New()

	for _, pkg := range resolved {
		qname := pkg.QualifiedName()
		pkgDir := filepath.Join(packagesDir, pkg.Namespace, pkg.Name+"@"+pkg.Version)

		for _, mod := range pkg.Modules {
			entryPath, err := filepath.Rel(anchorDir, filepath.Join(pkgDir, mod.Source))
			if err != nil {
				return nil, werror.Wrapf(werror.KindLockfile, err, "failed to anchor module %q of %s", mod.Name, qname)
			}
			lf.Modules[ModuleKey(qname, pkg.Version, mod.Name)] = ModuleEntry{
				Source:         mod.Source,
				ABI:            string(mod.ABI),
				PackageVersion: pkg.Version,
				EntryPath:      entryPath,
			}
		}
	}

	for _, pkg := range resolved {
		qname := pkg.QualifiedName()
		for _, cmd := range pkg.Commands {
			owner := qname
			if cmd.Package != "" {
				owner = cmd.Package
			}
			candidate := CommandEntry{
				Package:       owner,
				Version:       pkg.Version,
				Module:        cmd.Module,
				MainArgs:      cmd.MainArgs,
				IsTopLevel:    pkg.IsTopLevel,
				DisableRename: pkg.DisableCommandRename,
			}

			existing, exists := lf.Commands[cmd.Name]
			if !exists {
				lf.Commands[cmd.Name] = candidate
				continue
			}
			// Top-level wins over transitive; ties (including both
			// transitive) keep whichever was declared first, which is
			// already `existing` since resolved is walked in manifest
			// declaration order.
			if candidate.IsTopLevel && !existing.IsTopLevel {
				lf.Commands[cmd.Name] = candidate
			}
		}
	}

	return lf, nil
}

// VerifyReferentialIntegrity checks that every command references an
// existing module entry and that every module entry's resolved path
// exists on disk (spec section 8's "Lockfile referential integrity" law).
func (lf *Lockfile) VerifyReferentialIntegrity(anchorDir string) error {
	for name, cmd := range lf.Commands {
		key := ModuleKey(cmd.Package, cmd.Version, cmd.Module)
		if _, ok := lf.Modules[key]; !ok {
			return werror.Newf(werror.KindLockfile, "command %q references missing module entry %q", name, key)
		}
	}
	for key, mod := range lf.Modules {
		abs := filepath.Join(anchorDir, mod.EntryPath)
		if _, err := os.Stat(abs); err != nil {
			return werror.Wrapf(werror.KindLockfile, err, "module entry %q points to missing file %s", key, abs)
		}
	}
	return nil
}

// PruneOrphans drops module entries whose entry file no longer exists
// under anchorDir, and command entries whose module entry is gone (the
// uninstall algorithm's "regenerate lockfile (drops entries whose install
// directory no longer exists)"). It does not garbage-collect packages by
// top-level mark or inbound references: a package whose files are still
// on disk keeps its entries whether or not anything refers to it.
func (lf *Lockfile) PruneOrphans(anchorDir string) {
	live := map[string]bool{}
	for key, mod := range lf.Modules {
		if _, err := os.Stat(filepath.Join(anchorDir, mod.EntryPath)); err != nil {
			delete(lf.Modules, key)
			continue
		}
		live[key] = true
	}
	for name, cmd := range lf.Commands {
		key := ModuleKey(cmd.Package, cmd.Version, cmd.Module)
		if !live[key] {
			delete(lf.Commands, name)
		}
	}
}

// sortedModuleKeys returns the lockfile's module keys sorted, for
// deterministic iteration in tests and diagnostics.
func (lf *Lockfile) sortedModuleKeys() []string {
	keys := make([]string, 0, len(lf.Modules))
	for k := range lf.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
