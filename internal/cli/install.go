package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/install"
	"github.com/wapm-community/wapm/internal/manifest"
)

func newInstallCmd() *cobra.Command {
	var global, yes, forceYes, offline bool

	cmd := &cobra.Command{
		Use:   "install [spec...]",
		Short: "Install dependencies",
		Long:  `Install the given package specs, or every dependency declared in wapm.toml when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := resolveScope(global)
			if err != nil {
				return err
			}

			specs := args
			if len(specs) == 0 {
				if global {
					return nil
				}
				m, err := manifest.LoadAuto(scope.Root)
				if err != nil {
					return err
				}
				for name, rangeSpec := range m.Dependencies {
					specs = append(specs, name+"@"+rangeSpec)
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			engine := newEngine(cfg, keys, newConfirmer(yes, forceYes))

			if err := engine.Install(context.Background(), specs, scope, install.Flags{
				Yes: yes, ForceYes: forceYes, Offline: offline,
			}); err != nil {
				return err
			}
			Success("Installed %d package(s)", len(specs))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "install into the global scope")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "auto-accept trust-on-first-use prompts")
	cmd.Flags().BoolVar(&forceYes, "force-yes", false, "auto-accept trust-on-first-use prompts (never bypasses signature verification)")
	cmd.Flags().BoolVar(&offline, "offline", false, "refuse network calls, verify only the local install graph")
	return cmd
}

func newUninstallCmd() *cobra.Command {
	var global, all bool

	cmd := &cobra.Command{
		Use:   "uninstall [spec...]",
		Short: "Uninstall packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := resolveScope(global)
			if err != nil {
				return err
			}

			specs := args
			if all {
				lf, err := loadLockfileForListing(scope)
				if err != nil {
					return err
				}
				seen := map[string]bool{}
				for _, cmdEntry := range lf.Commands {
					key := cmdEntry.Package + "@" + cmdEntry.Version
					if !seen[key] {
						seen[key] = true
						specs = append(specs, key)
					}
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			engine := newEngine(cfg, keys, newConfirmer(true, false))

			if err := engine.Uninstall(context.Background(), specs, scope); err != nil {
				return err
			}
			Success("Uninstalled %d package(s)", len(specs))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "uninstall from the global scope")
	cmd.Flags().BoolVar(&all, "all", false, "uninstall every installed package in the scope")
	return cmd
}
