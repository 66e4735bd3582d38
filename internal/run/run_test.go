package run

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/manifest"
)

// TestHelperProcess is not a real test; it's invoked as a subprocess by
// the fake ExecCommand below to produce a controllable exit code,
// matching the teacher's internal/cli/exec_mock.go helper-process
// pattern.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(7)
}

func fakeExecCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--"}
	cmd := exec.CommandContext(ctx, os.Args[0], cs...) // #nosec G204 -- test helper process only
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestRunPropagatesExitCode(t *testing.T) {
	orig := ExecCommand
	ExecCommand = fakeExecCommand
	defer func() { ExecCommand = orig }()
	t.Setenv("WAPM_RUNTIME", "fake-wasmer")

	res := &Resolution{CommandName: "greet", ModulePath: "/pkgs/greet.wasm", ABI: manifest.ABIWasi}
	var out, errOut bytes.Buffer
	code, err := Run(context.Background(), res, nil, nil, &out, &errOut)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestRuntimeUsesOverride(t *testing.T) {
	t.Setenv("WAPM_RUNTIME", "/opt/custom-wasmer")
	runtime, err := Runtime()
	require.NoError(t, err)
	assert.Equal(t, "/opt/custom-wasmer", runtime)
}

func TestRuntimeMissingFromPath(t *testing.T) {
	t.Setenv("WAPM_RUNTIME", "")
	t.Setenv("PATH", "")
	_, err := Runtime()
	assert.Error(t, err)
}
