package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/lockfile"
	"github.com/wapm-community/wapm/internal/manifest"
)

func writeProjectLockfile(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wapm.toml"), []byte("[package]\nname=\"acme/app\"\nversion=\"0.1.0\"\n"), 0o644))

	modDir := filepath.Join(dir, "wapm_packages", "acme", "greet@1.0.0")
	require.NoError(t, os.MkdirAll(modDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "greet.wasm"), []byte("binary"), 0o644))

	lf := lockfile.New()
	lf.Modules[lockfile.ModuleKey("acme/greet", "1.0.0", "greet")] = lockfile.ModuleEntry{
		Source:         "greet.wasm",
		ABI:            string(manifest.ABIWasi),
		PackageVersion: "1.0.0",
		EntryPath:      "wapm_packages/acme/greet@1.0.0/greet.wasm",
	}
	lf.Commands["greet"] = lockfile.CommandEntry{
		Package: "acme/greet",
		Version: "1.0.0",
		Module:  "greet",
	}
	require.NoError(t, lf.Save(filepath.Join(dir, "wapm.lock")))
}

func TestResolveFindsProjectCommand(t *testing.T) {
	dir := t.TempDir()
	writeProjectLockfile(t, dir)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	res, err := Resolve(sub, "greet")
	require.NoError(t, err)
	assert.Equal(t, manifest.ABIWasi, res.ABI)
	assert.False(t, res.FromGlobal)
	assert.Equal(t, filepath.Join(dir, "wapm_packages", "acme", "greet@1.0.0", "greet.wasm"), res.ModulePath)
}

func TestResolveFailsForUnknownCommand(t *testing.T) {
	dir := t.TempDir()
	writeProjectLockfile(t, dir)

	_, err := Resolve(dir, "nonexistent")
	assert.Error(t, err)
}

func TestBuildArgvDefaultRenamesCommand(t *testing.T) {
	res := &Resolution{CommandName: "greet", ModulePath: "/pkgs/greet.wasm", ABI: manifest.ABIWasi}
	argv := BuildArgv("wasmer", res, []string{"world"})
	assert.Equal(t, []string{"wasmer", "/pkgs/greet.wasm", "--command-name", "greet", "world"}, argv)
}

func TestBuildArgvDisableRenameOmitsFlag(t *testing.T) {
	res := &Resolution{CommandName: "greet", ModulePath: "/pkgs/greet.wasm", ABI: manifest.ABIWasi, DisableRename: true}
	argv := BuildArgv("wasmer", res, nil)
	assert.Equal(t, []string{"wasmer", "/pkgs/greet.wasm"}, argv)
}

func TestBuildArgvIncludesMainArgs(t *testing.T) {
	res := &Resolution{CommandName: "greet", ModulePath: "/pkgs/greet.wasm", ABI: manifest.ABIWasi, MainArgs: "--verbose --level 2"}
	argv := BuildArgv("wasmer", res, nil)
	assert.Equal(t, []string{"wasmer", "/pkgs/greet.wasm", "--command-name", "greet", "--verbose", "--level", "2"}, argv)
}
