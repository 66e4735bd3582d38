// Package manifest provides type-safe access to wapm.toml, the
// author-authored package description: its dependency ranges, the
// WebAssembly modules it ships, the commands it exposes, and the
// filesystem entries bundled at publish time.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/wapm-community/wapm/internal/werror"
)

// FileName is the canonical manifest file name wapm looks for in a
// project directory.
const FileName = "wapm.toml"

// ABI is the host-function interface a module targets.
type ABI string

const (
	ABIWasi       ABI = "wasi"
	ABIEmscripten ABI = "emscripten"
	ABINone       ABI = "none"
)

func (a ABI) valid() bool {
	switch a {
	case ABIWasi, ABIEmscripten, ABINone, "":
		return true
	default:
		return false
	}
}

// Package carries a package's own identity and publish metadata.
type Package struct {
	Name                 string `toml:"name"`
	Version              string `toml:"version"`
	Description          string `toml:"description,omitempty"`
	License              string `toml:"license,omitempty"`
	LicenseFile          string `toml:"license-file,omitempty"`
	Readme               string `toml:"readme,omitempty"`
	Repository           string `toml:"repository,omitempty"`
	Homepage             string `toml:"homepage,omitempty"`
	WasmerExtraFlags     string `toml:"wasmer-extra-flags,omitempty"`
	DisableCommandRename bool   `toml:"disable-command-rename,omitempty"`
}

// Module is a single WebAssembly binary shipped by the package.
type Module struct {
	Name       string   `toml:"name"`
	Source     string   `toml:"source"`
	ABI        ABI      `toml:"abi,omitempty"`
	Interfaces []string `toml:"interfaces,omitempty"`
}

// Command is a named entry point that binds to a module.
type Command struct {
	Name     string `toml:"name"`
	Module   string `toml:"module"`
	MainArgs string `toml:"main-args,omitempty"`
	// Package aliases a command exported by a dependency rather than a
	// module declared in this manifest.
	Package string `toml:"package,omitempty"`
}

// Manifest is the parsed contents of wapm.toml.
type Manifest struct {
	Package      Package           `toml:"package"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
	Modules      []Module          `toml:"module,omitempty"`
	Commands     []Command         `toml:"command,omitempty"`
	FS           map[string]string `toml:"fs,omitempty"`
}

// New returns an empty manifest with the given package name and version,
// used by `init` to scaffold a new wapm.toml.
func New(name, version string) *Manifest {
	return &Manifest{
		Package: Package{
			Name:    name,
			Version: version,
		},
		Dependencies: map[string]string{},
	}
}

// Load reads and strictly parses a manifest file. Unknown keys are an
// error, per spec section 9's "reject unknown fields only on local
// config/manifest/lockfile files".
func Load(path string) (*Manifest, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from project discovery, not untrusted input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, werror.Wrapf(werror.KindManifest, err, "no manifest at %s", path)
		}
		return nil, werror.Wrap(werror.KindManifest, err, "failed to read manifest")
	}

	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, werror.Wrap(werror.KindManifest, err, "failed to parse manifest")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, werror.Newf(werror.KindManifest, "unknown manifest key(s): %v", undecoded)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadAuto loads wapm.toml from dir.
func LoadAuto(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the manifest to path in the canonical field order: package,
// dependencies, module[], command[], fs. BurntSushi/toml encodes struct
// fields in declaration order, so Manifest's field order above is the
// wire order; this function only needs the atomic-write discipline.
func (m *Manifest) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create manifest temp file")
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindManifest, err, "failed to encode manifest")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to write manifest")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to save manifest")
	}
	return nil
}

// Validate checks the manifest invariants from spec section 3: every
// command.module resolves within module[], every module.source is a
// non-empty relative path, package.version is valid SemVer, and
// dependency keys/ranges parse.
func (m *Manifest) Validate() error {
	if m.Package.Name == "" {
		return werror.New(werror.KindManifest, "package.name is required")
	}
	if _, err := semver.NewVersion(m.Package.Version); err != nil {
		return werror.Wrapf(werror.KindManifest, err, "package.version %q is not valid SemVer", m.Package.Version)
	}

	modules := make(map[string]Module, len(m.Modules))
	for _, mod := range m.Modules {
		if mod.Name == "" {
			return werror.New(werror.KindManifest, "module entry missing name")
		}
		if _, dup := modules[mod.Name]; dup {
			return werror.Newf(werror.KindManifest, "duplicate module name %q", mod.Name)
		}
		if mod.Source == "" {
			return werror.Newf(werror.KindManifest, "module %q missing source", mod.Name)
		}
		if filepath.IsAbs(mod.Source) {
			return werror.Newf(werror.KindManifest, "module %q source %q is not a relative path", mod.Name, mod.Source)
		}
		if !mod.ABI.valid() {
			return werror.Newf(werror.KindManifest, "module %q has invalid abi %q", mod.Name, mod.ABI)
		}
		modules[mod.Name] = mod
	}

	commandNames := make(map[string]bool, len(m.Commands))
	for _, cmd := range m.Commands {
		if cmd.Name == "" {
			return werror.New(werror.KindManifest, "command entry missing name")
		}
		if commandNames[cmd.Name] {
			return werror.Newf(werror.KindManifest, "duplicate command name %q", cmd.Name)
		}
		commandNames[cmd.Name] = true

		if cmd.Package != "" {
			// Aliases a foreign command; has no local module to check.
			continue
		}
		if _, ok := modules[cmd.Module]; !ok {
			return werror.Newf(werror.KindManifest, "command %q references unknown module %q", cmd.Name, cmd.Module)
		}
	}

	for name, rng := range m.Dependencies {
		if !isQualifiedName(name) {
			return werror.Newf(werror.KindManifest, "invalid dependency name %q", name)
		}
		if _, err := semver.NewConstraint(rng); err != nil {
			return werror.Wrapf(werror.KindManifest, err, "dependency %q has invalid version range %q", name, rng)
		}
	}

	return nil
}

// isQualifiedName reports whether name looks like namespace/name or name
// (the unscoped-legacy form, spec section 3's "namespace may be elided").
func isQualifiedName(name string) bool {
	if name == "" {
		return false
	}
	parts := strings.Split(name, "/")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// FindModule returns the module with the given name, if any.
func (m *Manifest) FindModule(name string) (*Module, bool) {
	for i := range m.Modules {
		if m.Modules[i].Name == name {
			return &m.Modules[i], true
		}
	}
	return nil, false
}

// FindCommand returns the command with the given name, if any.
func (m *Manifest) FindCommand(name string) (*Command, bool) {
	for i := range m.Commands {
		if m.Commands[i].Name == name {
			return &m.Commands[i], true
		}
	}
	return nil, false
}

// AddDependency sets (or overwrites) a dependency range.
func (m *Manifest) AddDependency(qualifiedName, rangeSpec string) {
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	m.Dependencies[qualifiedName] = rangeSpec
}

// RemoveDependency removes a dependency, reporting whether it was present.
func (m *Manifest) RemoveDependency(qualifiedName string) bool {
	if _, ok := m.Dependencies[qualifiedName]; !ok {
		return false
	}
	delete(m.Dependencies, qualifiedName)
	return true
}

// QualifiedName returns namespace/name, or bare name when namespace is
// empty (legacy unscoped packages use the sentinel "_" namespace per
// spec section 4.F, which still renders as "_/name").
func QualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", namespace, name)
}
