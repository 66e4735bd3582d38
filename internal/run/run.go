package run

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/werror"
)

// ExecCommand is overridden in tests to substitute a fake process,
// matching the teacher's internal/cli/exec_mock.go indirection.
var ExecCommand = exec.CommandContext

// runtimeFlags derives the wasmer invocation flags for an ABI (spec
// section 4.G: "runtime-flags derived from abi").
func runtimeFlags(abi manifest.ABI) []string {
	switch abi {
	case manifest.ABIEmscripten:
		return []string{"--enable-threads"}
	case manifest.ABIWasi, manifest.ABINone, "":
		return nil
	default:
		return nil
	}
}

// BuildArgv constructs the runtime invocation for a resolved command,
// following spec section 4.G's argv recipe exactly.
func BuildArgv(runtime string, res *Resolution, userArgs []string) []string {
	argv := []string{runtime}
	argv = append(argv, runtimeFlags(res.ABI)...)
	argv = append(argv, res.ModulePath)
	if !res.DisableRename {
		argv = append(argv, "--command-name", res.CommandName)
	}
	if res.MainArgs != "" {
		argv = append(argv, strings.Fields(res.MainArgs)...)
	}
	argv = append(argv, userArgs...)
	return argv
}

// Runtime returns the runtime binary to invoke: $WAPM_RUNTIME if set,
// else "wasmer" resolved on $PATH (spec section 4.G).
func Runtime() (string, error) {
	if override := os.Getenv("WAPM_RUNTIME"); override != "" {
		return override, nil
	}
	path, err := exec.LookPath("wasmer")
	if err != nil {
		return "", werror.Wrap(werror.KindRuntimeMissing, err, "wasmer not found on PATH; set WAPM_RUNTIME to override")
	}
	return path, nil
}

// Run spawns the runtime for res with userArgs, inheriting stdio and the
// invoking process's working directory (spec section 4.G), and returns
// the runtime's exit code.
func Run(ctx context.Context, res *Resolution, userArgs []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	runtime, err := Runtime()
	if err != nil {
		return 0, err
	}
	argv := BuildArgv(runtime, res, userArgs)

	cmd := ExecCommand(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, werror.Wrap(werror.KindRuntimeMissing, err, "failed to run wasm runtime")
}
