// Package run resolves a command name to its installed module and spawns
// the external WebAssembly runtime, per spec section 4.G. Spawning is
// grounded on the teacher's `exec.Command`-wraps-an-`os/exec.Cmd` pattern
// (internal/cli/test.go's `go test` subprocess) and its `ExecCommand`
// package variable indirection (internal/cli/exec_mock.go), which lets
// tests substitute a fake process without touching production code.
package run

import (
	"path/filepath"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/lockfile"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/werror"
)

// Resolution is everything the runner needs to construct argv for one
// command (spec section 4.G: "(package_dir, module_file, abi, main_args,
// disable_rename)").
type Resolution struct {
	CommandName       string
	AnchorDir         string
	ModulePath        string
	ABI               manifest.ABI
	MainArgs          string
	DisableRename     bool
	FromGlobal        bool
	PackageQualified  string
	PackageVersion    string
}

// Resolve implements spec section 4.G's three-step lookup order: project
// lockfile (searching upward from dir for the nearest wapm.toml), then
// the global lockfile, then failure.
func Resolve(dir, name string) (*Resolution, error) {
	if projectRoot, ok := layout.FindProjectRoot(dir); ok {
		scope := layout.ProjectScope(projectRoot)
		if res, err := resolveInScope(scope, name); err == nil {
			return res, nil
		}
	}

	global, err := layout.GlobalScope()
	if err != nil {
		return nil, err
	}
	if res, err := resolveInScope(global, name); err == nil {
		res.FromGlobal = true
		return res, nil
	}

	return nil, werror.Newf(werror.KindResolution, "command %q is not installed in the project or global scope", name)
}

func resolveInScope(scope layout.Scope, name string) (*Resolution, error) {
	lf, err := lockfile.Load(scope.LockfilePath)
	if err != nil {
		return nil, err
	}

	cmd, ok := lf.Commands[name]
	if !ok {
		return nil, werror.Newf(werror.KindResolution, "command %q not found in %s", name, scope.LockfilePath)
	}

	modKey := lockfile.ModuleKey(cmd.Package, cmd.Version, cmd.Module)
	mod, ok := lf.Modules[modKey]
	if !ok {
		return nil, werror.Newf(werror.KindLockfile, "command %q references missing module entry %q", name, modKey)
	}

	return &Resolution{
		CommandName:      name,
		AnchorDir:        scope.Root,
		ModulePath:       filepath.Join(scope.Root, mod.EntryPath),
		ABI:              manifest.ABI(mod.ABI),
		MainArgs:         cmd.MainArgs,
		DisableRename:    cmd.DisableRename,
		PackageQualified: cmd.Package,
		PackageVersion:   cmd.Version,
	}, nil
}
