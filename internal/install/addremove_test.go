package install

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/registryclient"
)

func TestAddUpdatesManifestAndInstalls(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	m := manifest.New("acme/app", "0.1.0")
	manifestPath := filepath.Join(scope.Root, "wapm.toml")

	err := engine.Add(context.Background(), m, manifestPath, []string{"acme/greet@^1.0.0"}, scope, Flags{ForceYes: true})
	require.NoError(t, err)

	assert.Equal(t, "^1.0.0", m.Dependencies["acme/greet"])

	loaded, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "^1.0.0", loaded.Dependencies["acme/greet"])
}

func TestRemoveUpdatesManifestAndUninstalls(t *testing.T) {
	scope := newTestScope(t)
	archive := buildTar(t, map[string]string{"greet.wasm": "binary"})
	pv := testPackageVersion("https://registry.example/archive.tar")

	reg := &fakeRegistry{versions: []registryclient.PackageVersion{pv}}
	engine := newTestEngine(t, reg, map[string][]byte{pv.Distribution.DownloadURL: archive})

	m := manifest.New("acme/app", "0.1.0")
	m.AddDependency("acme/greet", "^1.0.0")
	manifestPath := filepath.Join(scope.Root, "wapm.toml")
	require.NoError(t, m.Save(manifestPath))

	ctx := context.Background()
	require.NoError(t, engine.Install(ctx, []string{"acme/greet"}, scope, Flags{ForceYes: true}))

	err := engine.Remove(ctx, m, manifestPath, []string{"acme/greet"}, scope)
	require.NoError(t, err)

	_, ok := m.Dependencies["acme/greet"]
	assert.False(t, ok)

	loaded, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	_, ok = loaded.Dependencies["acme/greet"]
	assert.False(t, ok)
}
