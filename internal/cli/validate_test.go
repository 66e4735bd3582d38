package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWasmFileAcceptsValidHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, wasmMagic...), 0x01, 0x02), 0o644))

	assert.NoError(t, validateWasmFile(path))
}

func TestValidateWasmFileRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(path, []byte("not a wasm module"), 0o644))

	assert.Error(t, validateWasmFile(path))
}

func TestValidateWasmFileRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x61}, 0o644))

	assert.Error(t, validateWasmFile(path))
}
