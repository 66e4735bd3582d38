package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/run"
	"github.com/wapm-community/wapm/internal/wax"
	"github.com/wapm-community/wapm/internal/werror"
)

func newRunCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "run <name> [-- args...]",
		Short: "Run an installed command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommandByName(args[0], args[1:], offline, false)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "fail instead of suggesting or ephemerally installing")
	return cmd
}

func newExecuteCmd() *cobra.Command {
	var offline, which bool

	cmd := &cobra.Command{
		Use:   "execute <name> [args...]",
		Short: "Run a command, ephemerally installing it from the registry if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if which {
				return runWhich(args[0])
			}
			return runCommandByName(args[0], args[1:], offline, true)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "forbid the ephemeral install step")
	cmd.Flags().BoolVar(&which, "which", false, "print the resolved install directory and exit")
	return cmd
}

func newBinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bin",
		Short: "Print the scripts bin directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := layout.HomeDir()
			if err != nil {
				return err
			}
			cmd.Println(home)
			return nil
		},
	}
}

func runWhich(name string) error {
	res, err := run.Resolve(".", name)
	if err != nil {
		return err
	}
	os.Stdout.WriteString(run.Which(res) + "\n")
	return nil
}

func runCommandByName(name string, userArgs []string, offline, ephemeral bool) error {
	ctx := context.Background()

	if !ephemeral {
		resolution, err := run.Resolve(".", name)
		if err != nil {
			if !offline {
				cfg, cfgErr := loadConfig()
				if cfgErr == nil {
					suggestion := run.Suggest(ctx, registryClient(cfg), name)
					if suggestion != "" {
						Info("command %q is not installed; did you mean to install %q?", name, suggestion)
					}
				}
			}
			return err
		}
		code, err := run.Run(ctx, resolution, userArgs, os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		if code != 0 {
			return werror.Newf(werror.KindRuntimeMissing, "command %q exited with status %d", name, code)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	keys, err := loadKeyStore()
	if err != nil {
		return err
	}
	engine := newEngine(cfg, keys, newConfirmer(false, true))

	cachePath, err := layout.ExecuteCachePath()
	if err != nil {
		return err
	}
	idx, err := wax.Load(cachePath)
	if err != nil {
		return err
	}

	resolution, err := run.Execute(ctx, ".", name, registryClient(cfg), engine, idx, offline)
	if err != nil {
		return err
	}

	code, err := run.Run(ctx, resolution, userArgs, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return werror.Newf(werror.KindRuntimeMissing, "command %q exited with status %d", name, code)
	}
	return nil
}
