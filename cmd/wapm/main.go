package main

import (
	"fmt"
	"os"

	"github.com/wapm-community/wapm/internal/cli"
	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/werror"
)

// Version information set at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	if err := cli.Execute(); err != nil {
		os.Exit(handleError(err))
	}
}

// handleError prints a one-line colored message, appends the full error
// chain and stack trace to $HOME_DIR/wapm.log, and maps the error to its
// exit code per the taxonomy in spec section 7.
func handleError(err error) int {
	cli.Error("%s", err)

	if logPath, logErr := layout.LogPath(); logErr == nil {
		if f, openErr := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); openErr == nil {
			fmt.Fprintf(f, "%s\n%s\n", err, werror.StackTrace(err))
			_ = f.Close()
		}
	}

	return werror.KindOf(err).ExitCode()
}
