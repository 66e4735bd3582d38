package run

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/registryclient"
	"github.com/wapm-community/wapm/internal/wax"
	"github.com/wapm-community/wapm/internal/werror"
)

// Installer is the subset of install.Engine the ephemeral-install path
// needs, kept narrow so this package doesn't import install directly
// (install already imports lockfile/manifest; a two-way import would
// cycle).
type Installer interface {
	InstallEphemeral(ctx context.Context, pv registryclient.PackageVersion, destDir string) error
}

// Searcher looks up the registry package that serves a given command
// name, for `execute`'s ephemeral install and for the "did you mean to
// install X?" suggestion on a failed `run` (spec section 4.G).
type Searcher interface {
	GetPackageVersion(ctx context.Context, name, version string) (*registryclient.PackageVersion, error)
	Search(ctx context.Context, query string) ([]registryclient.SearchResult, error)
}

// Suggest returns a "did you mean to install X?" candidate name for a
// failed run lookup, or "" if search found nothing (spec section 4.G
// step 3, skipped entirely under --offline by the caller).
func Suggest(ctx context.Context, searcher Searcher, name string) string {
	results, err := searcher.Search(ctx, name)
	if err != nil || len(results) == 0 {
		return ""
	}
	return manifest.QualifiedName(results[0].Namespace, results[0].Name)
}

// Execute implements `execute <name>`/`wax`: resolve normally first
// (project then global scope); if not found, and not --offline, resolve
// the command via the registry and install it into the execute cache
// (spec section 4.G: "ephemeral install... keyed by (name, version)").
func Execute(ctx context.Context, dir, name string, searcher Searcher, installer Installer, idx *wax.Index, offline bool) (*Resolution, error) {
	if res, err := Resolve(dir, name); err == nil {
		return res, nil
	}

	if offline {
		return nil, werror.Newf(werror.KindResolution, "command %q is not installed and --offline forbids an ephemeral install", name)
	}

	pv, err := searcher.GetPackageVersion(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if pv == nil {
		return nil, werror.Newf(werror.KindResolution, "no package on the registry provides command %q", name)
	}

	if evicted := wax.EvictExpired(idx, wax.DefaultTTL, time.Now()); len(evicted) > 0 {
		for _, stale := range evicted {
			_ = os.RemoveAll(stale.InstallDir)
		}
		if err := idx.Save(); err != nil {
			return nil, err
		}
	}

	if cached, ok := idx.Lookup(pv.Name, pv.Version); ok {
		return resolutionFromCache(pv, cached)
	}

	cacheHome, err := layout.HomeDir()
	if err != nil {
		return nil, err
	}
	destDir := filepath.Join(cacheHome, "wax", pv.Namespace, pv.Name+"@"+pv.Version)

	if err := installer.InstallEphemeral(ctx, *pv, destDir); err != nil {
		return nil, err
	}

	idx.Record(pv.Name, pv.Version, destDir, time.Now())
	if err := idx.Save(); err != nil {
		return nil, err
	}

	return resolutionFromCache(pv, wax.Entry{InstallDir: destDir})
}

func resolutionFromCache(pv *registryclient.PackageVersion, cached wax.Entry) (*Resolution, error) {
	for _, cmd := range pv.Manifest.Commands {
		mod, ok := moduleByName(pv.Manifest.Modules, cmd.Module)
		if !ok {
			continue
		}
		return &Resolution{
			CommandName:      cmd.Name,
			AnchorDir:        cached.InstallDir,
			ModulePath:       filepath.Join(cached.InstallDir, mod.Source),
			ABI:              manifest.ABI(mod.ABI),
			MainArgs:         cmd.MainArgs,
			DisableRename:    pv.Manifest.DisableCommandRename,
			PackageQualified: manifest.QualifiedName(pv.Namespace, pv.Name),
			PackageVersion:   pv.Version,
		}, nil
	}
	return nil, werror.Newf(werror.KindManifest, "package %s has no runnable command", manifest.QualifiedName(pv.Namespace, pv.Name))
}

func moduleByName(mods []registryclient.ModuleDescriptor, name string) (registryclient.ModuleDescriptor, bool) {
	for _, m := range mods {
		if m.Name == name {
			return m, true
		}
	}
	return registryclient.ModuleDescriptor{}, false
}

// Which implements `--which`: print the resolved install directory
// without running anything.
func Which(res *Resolution) string {
	return res.AnchorDir
}
