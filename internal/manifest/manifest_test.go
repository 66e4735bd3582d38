package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "cowsay"
version = "0.1.2"

[dependencies]
"namespace-example/leftpad" = "^1.0.0"

[[module]]
name = "main"
source = "target/cowsay.wasm"
abi = "wasi"

[[command]]
name = "cowsay"
module = "main"
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cowsay", m.Package.Name)
	assert.Equal(t, "0.1.2", m.Package.Version)

	mod, ok := m.FindModule("main")
	require.True(t, ok)
	assert.Equal(t, ABIWasi, mod.ABI)

	cmd, ok := m.FindCommand("cowsay")
	require.True(t, ok)
	assert.Equal(t, "main", cmd.Module)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "cowsay"
version = "0.1.2"
bogus = true
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCommandReferencesUnknownModule(t *testing.T) {
	m := New("cowsay", "0.1.0")
	m.Commands = []Command{{Name: "cowsay", Module: "missing"}}

	err := m.Validate()
	assert.Error(t, err)
}

func TestValidateBadSemver(t *testing.T) {
	m := New("cowsay", "not-a-version")
	assert.Error(t, m.Validate())
}

func TestValidateDuplicateCommandName(t *testing.T) {
	m := New("cowsay", "0.1.0")
	m.Modules = []Module{{Name: "main", Source: "a.wasm"}}
	m.Commands = []Command{
		{Name: "cowsay", Module: "main"},
		{Name: "cowsay", Module: "main"},
	}
	assert.Error(t, m.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	m := New("cowsay", "0.1.0")
	m.AddDependency("namespace-example/leftpad", "^1.0.0")
	m.Modules = []Module{{Name: "main", Source: "a.wasm", ABI: ABIWasi}}
	m.Commands = []Command{{Name: "cowsay", Module: "main"}}

	require.NoError(t, m.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Package.Name, reloaded.Package.Name)
	assert.Equal(t, m.Dependencies, reloaded.Dependencies)
}

func TestAddRemoveDependency(t *testing.T) {
	m := New("cowsay", "0.1.0")
	m.AddDependency("a/b", "^1.0.0")
	assert.Equal(t, "^1.0.0", m.Dependencies["a/b"])

	assert.True(t, m.RemoveDependency("a/b"))
	assert.False(t, m.RemoveDependency("a/b"))
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "a/b", QualifiedName("a", "b"))
	assert.Equal(t, "b", QualifiedName("", "b"))
}
