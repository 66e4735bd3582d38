// Package install implements the resolve -> download -> verify ->
// extract -> commit -> regenerate-lockfile pipeline (spec section 4.F),
// its uninstall inverse, and publish. The download-then-atomic-rename
// cache discipline is grounded on the teacher's pkg/oci.WASMPuller.Pull;
// the staging-then-commit install directory discipline generalizes the
// same pattern from a single cached file to a whole package directory.
package install

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wapm-community/wapm/internal/confirm"
	"github.com/wapm-community/wapm/internal/keystore"
	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/lockfile"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/registryclient"
	"github.com/wapm-community/wapm/internal/werror"
)

// Registry is the subset of registryclient.Client the install engine
// needs; satisfied directly by *registryclient.Client, and by fakes in
// tests.
type Registry interface {
	GetPackageVersion(ctx context.Context, name, version string) (*registryclient.PackageVersion, error)
	GetPackageVersions(ctx context.Context, requirements map[string]string) ([]registryclient.PackageVersion, error)
}

// Downloader fetches archive bytes from a distribution URL. Split out
// from Registry so tests can serve fixed bytes without standing up an
// HTTP server for the download leg.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// httpDownloader is the production Downloader.
type httpDownloader struct {
	client *http.Client
}

func (d httpDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, werror.Wrap(werror.KindNetwork, err, "failed to build download request")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, werror.Wrap(werror.KindNetwork, err, "failed to download package archive")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, werror.Newf(werror.KindNetwork, "download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Flags mirror spec section 4.F's install flag set.
type Flags struct {
	Yes      bool
	ForceYes bool
	Offline  bool
}

// Engine ties the registry client, key store, and filesystem layout
// together to run installs/uninstalls/publishes against one Scope.
type Engine struct {
	Registry   Registry
	Downloader Downloader
	Keys       *keystore.Store
	Confirmer  confirm.Confirmer
}

// NewEngine constructs an Engine with the production HTTP downloader.
func NewEngine(reg Registry, keys *keystore.Store, confirmer confirm.Confirmer) *Engine {
	return &Engine{
		Registry:   reg,
		Downloader: httpDownloader{client: &http.Client{Timeout: 60 * time.Second}},
		Keys:       keys,
		Confirmer:  confirmer,
	}
}

const archiveHashFile = ".wapm_archive_sha256"

// Install runs spec section 4.F's install pipeline for each spec against
// scope, then regenerates the scope's lockfile.
func (e *Engine) Install(ctx context.Context, specs []string, scope layout.Scope, flags Flags) error {
	scope.SweepTrash()
	if err := scope.EnsureDirs(); err != nil {
		return err
	}

	if flags.Offline {
		return e.installOffline(scope)
	}

	requirements := map[string]string{}
	for _, spec := range specs {
		name, constraint := splitSpec(spec)
		requirements[name] = constraint
	}

	resolved, err := e.Registry.GetPackageVersions(ctx, requirements)
	if err != nil {
		return err
	}

	topLevel := make(map[string]bool, len(requirements))
	for name := range requirements {
		topLevel[name] = true
	}

	for _, pv := range resolved {
		qname := manifest.QualifiedName(pv.Namespace, pv.Name)
		if err := e.installOne(ctx, pv, scope); err != nil {
			return werror.Wrapf(werror.KindNetwork, err, "failed to install %s@%s", qname, pv.Version)
		}
	}

	return e.regenerate(scope, resolved, topLevel)
}

func (e *Engine) installOffline(scope layout.Scope) error {
	lf, err := lockfile.Load(scope.LockfilePath)
	if err != nil {
		return err
	}
	return lf.VerifyReferentialIntegrity(scope.Root)
}

// installOne runs steps 2-6 of the install pipeline for a single
// resolved package version.
func (e *Engine) installOne(ctx context.Context, pv registryclient.PackageVersion, scope layout.Scope) error {
	return e.installInto(ctx, pv, scope.PackageDir(pv.Namespace, pv.Name, pv.Version))
}

// InstallEphemeral runs the same pipeline as Install but outside any
// scope's lockfile-tracked packages directory, for `execute`/`wax`'s
// ephemeral-install-by-command-name path (spec section 4.G).
func (e *Engine) InstallEphemeral(ctx context.Context, pv registryclient.PackageVersion, destDir string) error {
	return e.installInto(ctx, pv, destDir)
}

func (e *Engine) installInto(ctx context.Context, pv registryclient.PackageVersion, installDir string) error {
	// Short-circuit: a recorded archive hash in an already-committed
	// install directory means this exact name@version was already
	// downloaded, verified, and extracted here; registry versions are
	// immutable, so there is nothing to re-fetch or re-compare against
	// (spec section 4.F step 2, section 8's install-idempotence law).
	if recorded, err := os.ReadFile(filepath.Join(installDir, archiveHashFile)); err == nil && len(recorded) > 0 { // #nosec G304 -- installDir is scope-derived
		return nil
	}

	archive, err := e.Downloader.Download(ctx, pv.Distribution.DownloadURL)
	if err != nil {
		return err
	}
	archive, err = maybeGunzip(archive)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(archive)
	digest := hex.EncodeToString(sum[:])

	if err := e.verifySignature(pv, archive); err != nil {
		return err
	}

	staging := installDir + ".staging-" + uuid.NewString()
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extractTar(archive, staging); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(staging, archiveHashFile), []byte(digest), 0o600); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to record archive hash")
	}

	_ = os.RemoveAll(installDir)
	if err := os.MkdirAll(filepath.Dir(installDir), 0o750); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create namespace directory")
	}
	if err := os.Rename(staging, installDir); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to commit install directory")
	}
	return nil
}

func (e *Engine) verifySignature(pv registryclient.PackageVersion, archive []byte) error {
	var sig *keystore.Signature
	if pv.Signature != nil {
		data, err := base64.StdEncoding.DecodeString(pv.Signature.Data)
		if err != nil {
			return werror.Wrap(werror.KindSignatureMismatch, err, "malformed signature data")
		}
		pub, err := base64.StdEncoding.DecodeString(pv.Signature.PublicKey.Key)
		if err != nil {
			return werror.Wrap(werror.KindSignatureMismatch, err, "malformed signature public key")
		}
		sig = &keystore.Signature{
			PublicKeyID:    pv.Signature.PublicKey.KeyID,
			PublicKeyValue: base64.StdEncoding.EncodeToString(pub),
			Data:           data,
		}
	}
	if err := e.Keys.VerifyInstall(pv.Uploader, archive, sig, e.Confirmer); err != nil {
		return err
	}
	return e.Keys.Save()
}

// regenerate converts the registry's resolved package versions into
// lockfile.ResolvedPackage values and runs spec section 4.E's
// regeneration algorithm.
func (e *Engine) regenerate(scope layout.Scope, resolved []registryclient.PackageVersion, topLevel map[string]bool) error {
	pkgs := make([]lockfile.ResolvedPackage, 0, len(resolved))
	for _, pv := range resolved {
		qname := manifest.QualifiedName(pv.Namespace, pv.Name)

		mods := make([]manifest.Module, 0, len(pv.Manifest.Modules))
		for _, m := range pv.Manifest.Modules {
			mods = append(mods, manifest.Module{Name: m.Name, Source: m.Source, ABI: manifest.ABI(m.ABI)})
		}
		cmds := make([]manifest.Command, 0, len(pv.Manifest.Commands))
		for _, c := range pv.Manifest.Commands {
			cmds = append(cmds, manifest.Command{Name: c.Name, Module: c.Module, MainArgs: c.MainArgs})
		}

		pkgs = append(pkgs, lockfile.ResolvedPackage{
			Namespace:            pv.Namespace,
			Name:                 pv.Name,
			Version:              pv.Version,
			Modules:              mods,
			Commands:             cmds,
			IsTopLevel:           topLevel[qname] || topLevel[pv.Name],
			DisableCommandRename: pv.Manifest.DisableCommandRename,
		})
	}

	lf, err := lockfile.Regenerate(scope.Root, scope.PackagesDir, pkgs)
	if err != nil {
		return err
	}
	lf.PruneOrphans(scope.Root)
	return lf.Save(scope.LockfilePath)
}

// Uninstall removes each spec's install directory via the
// rename-to-trash-then-delete pattern (spec section 4.F), then
// regenerates the lockfile from what remains on disk.
func (e *Engine) Uninstall(ctx context.Context, specs []string, scope layout.Scope) error {
	scope.SweepTrash()

	for _, spec := range specs {
		namespace, name, version := splitQualified(spec)
		dirs, err := e.resolveInstalledDirs(scope, namespace, name, version)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			trash := dir + ".trash-" + uuid.NewString()
			if err := os.Rename(dir, trash); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to stage uninstall")
			}
			// Best-effort delete; failure here is logged but not fatal
			// (spec section 4.F's uninstall step 3).
			if err := os.RemoveAll(trash); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to delete %s: %v\n", trash, err)
			}
		}
	}

	return e.regenerateFromDisk(scope)
}

// resolveInstalledDirs returns the install directories matching
// namespace/name. When version is empty (the `remove` command only knows
// the dependency name, not its resolved version) every installed version
// of the package is returned.
func (e *Engine) resolveInstalledDirs(scope layout.Scope, namespace, name, version string) ([]string, error) {
	if version != "" {
		dir := scope.PackageDir(namespace, name, version)
		if _, err := os.Stat(dir); err != nil {
			return nil, nil
		}
		return []string{dir}, nil
	}

	matches, err := filepath.Glob(filepath.Join(scope.PackagesDir, namespace, name+"@*"))
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to enumerate installed versions")
	}
	return matches, nil
}

// regenerateFromDisk rebuilds the lockfile purely from what survives on
// disk, for the uninstall path where no registry round-trip is needed.
func (e *Engine) regenerateFromDisk(scope layout.Scope) error {
	lf, err := lockfile.Load(scope.LockfilePath)
	if err != nil {
		return err
	}
	lf.PruneOrphans(scope.Root)
	return lf.Save(scope.LockfilePath)
}

func splitSpec(spec string) (name, constraint string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '@' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, ""
}

func splitQualified(spec string) (namespace, name, version string) {
	n, v := splitSpec(spec)
	for i := len(n) - 1; i >= 0; i-- {
		if n[i] == '/' {
			return n[:i], n[i+1:], v
		}
	}
	return "", n, v
}
