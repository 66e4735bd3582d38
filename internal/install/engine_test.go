package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/confirm"
	"github.com/wapm-community/wapm/internal/keystore"
	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/lockfile"
	"github.com/wapm-community/wapm/internal/registryclient"
)

type fakeRegistry struct {
	versions []registryclient.PackageVersion
}

func (f *fakeRegistry) GetPackageVersion(ctx context.Context, name, version string) (*registryclient.PackageVersion, error) {
	for _, pv := range f.versions {
		if pv.Name == name {
			return &pv, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistry) GetPackageVersions(ctx context.Context, requirements map[string]string) ([]registryclient.PackageVersion, error) {
	return f.versions, nil
}

type fakeDownloader struct {
	archives map[string][]byte
	calls    int
}

func (f *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	return f.archives[url], nil
}

func newTestScope(t *testing.T) layout.Scope {
	t.Helper()
	dir := t.TempDir()
	return layout.Scope{
		Root:         dir,
		PackagesDir:  filepath.Join(dir, "wapm_packages"),
		LockfilePath: filepath.Join(dir, "wapm.lock"),
	}
}

func newTestEngine(t *testing.T, reg Registry, archives map[string][]byte) *Engine {
	t.Helper()
	keyPath := filepath.Join(t.TempDir(), "wapm_keys.json")
	store, err := keystore.Load(keyPath)
	require.NoError(t, err)
	return &Engine{
		Registry:   reg,
		Downloader: &fakeDownloader{archives: archives},
		Keys:       store,
		Confirmer:  confirm.NonInteractive{ForceYes: true},
	}
}

func testPackageVersion(downloadURL string) registryclient.PackageVersion {
	return registryclient.PackageVersion{
		Namespace: "acme",
		Name:      "greet",
		Version:   "1.0.0",
		Manifest: registryclient.ManifestDescriptor{
			Modules:  []registryclient.ModuleDescriptor{{Name: "greet", Source: "greet.wasm", ABI: "wasi"}},
			Commands: []registryclient.CommandDescriptor{{Name: "greet", Module: "greet"}},
		},
		Distribution: registryclient.Distribution{DownloadURL: downloadURL},
		Uploader:     "acme",
	}
}

func TestInstallExtractsAndRegeneratesLockfile(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	err := engine.Install(context.Background(), []string{"acme/greet"}, scope, Flags{ForceYes: true})
	require.NoError(t, err)

	installDir := scope.PackageDir("acme", "greet", "1.0.0")
	data, err := os.ReadFile(filepath.Join(installDir, "greet.wasm"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	lf, err := lockfile.Load(scope.LockfilePath)
	require.NoError(t, err)
	assert.Contains(t, lf.Commands, "greet")
}

func TestInstallIsIdempotent(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	ctx := context.Background()
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))

	installDir := scope.PackageDir("acme", "greet", "1.0.0")
	data, err := os.ReadFile(filepath.Join(installDir, "greet.wasm"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestInstallSkipsDownloadOnSecondInstall(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	downloader := &fakeDownloader{archives: map[string][]byte{pv.Distribution.DownloadURL: archive}}
	engine := newTestEngine(t, reg, nil)
	engine.Downloader = downloader

	ctx := context.Background()
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))
	require.Equal(t, 1, downloader.calls)

	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))
	assert.Equal(t, 1, downloader.calls, "second install of the same name@version must not re-download")
}

func TestUninstallRemovesDirectoryAndPrunesLockfile(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	ctx := context.Background()
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))
	require.NoError(t, engine.Uninstall(ctx, []string{"acme/greet@1.0.0"}, scope))

	installDir := scope.PackageDir("acme", "greet", "1.0.0")
	_, err := os.Stat(installDir)
	assert.True(t, os.IsNotExist(err))

	lf, err := lockfile.Load(scope.LockfilePath)
	require.NoError(t, err)
	assert.NotContains(t, lf.Commands, "greet")
}

func TestOfflineInstallVerifiesIntegrity(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	ctx := context.Background()
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))
	require.NoError(t, engine.Install(ctx, nil, scope, Flags{Offline: true}))
}

func TestSplitSpec(t *testing.T) {
	name, constraint := splitSpec("acme/greet@^1.0.0")
	assert.Equal(t, "acme/greet", name)
	assert.Equal(t, "^1.0.0", constraint)

	name, constraint = splitSpec("acme/greet")
	assert.Equal(t, "acme/greet", name)
	assert.Equal(t, "", constraint)
}

func TestSplitQualified(t *testing.T) {
	namespace, name, version := splitQualified("acme/greet@1.0.0")
	assert.Equal(t, "acme", namespace)
	assert.Equal(t, "greet", name)
	assert.Equal(t, "1.0.0", version)
}
