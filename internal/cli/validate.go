package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/werror"
)

// wasmMagic is the 8-byte header every WebAssembly binary module starts
// with: "\0asm" followed by the version number 1 (little-endian uint32).
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Run the WebAssembly validator on a manifest or wasm file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func runValidate(path string) error {
	if filepath.Ext(path) == ".wasm" {
		return validateWasmFile(path)
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	for _, mod := range m.Modules {
		if err := validateWasmFile(filepath.Join(dir, mod.Source)); err != nil {
			return err
		}
	}
	Success("%s is valid", path)
	return nil
}

// validateWasmFile checks a module's binary header. This is the "external
// WebAssembly validator" collaborator standing in for a real validation
// toolchain (no WASM binary validator library appears anywhere in the
// example pack; wasmer itself, invoked by `run`, is the authoritative
// validator at install time).
func validateWasmFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the author's own manifest or CLI arg
	if err != nil {
		return werror.Wrapf(werror.KindManifest, err, "cannot read %s", path)
	}
	if len(data) < len(wasmMagic) {
		return werror.Newf(werror.KindManifest, "%s is too small to be a WebAssembly module", path)
	}
	for i, b := range wasmMagic {
		if data[i] != b {
			return werror.Newf(werror.KindManifest, "%s is not a valid WebAssembly binary module", path)
		}
	}
	Success("%s is a valid WebAssembly module", path)
	return nil
}
