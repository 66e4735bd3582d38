package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/install"
	"github.com/wapm-community/wapm/internal/manifest"
)

func newAddCmd() *cobra.Command {
	var yes, forceYes bool

	cmd := &cobra.Command{
		Use:   "add <spec...>",
		Short: "Add one or more dependencies to wapm.toml and install them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, manifestPath, err := loadProjectManifest()
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			scope, err := resolveScope(false)
			if err != nil {
				return err
			}
			engine := newEngine(cfg, keys, newConfirmer(yes, forceYes))

			if err := engine.Add(context.Background(), m, manifestPath, args, scope, install.Flags{Yes: yes, ForceYes: forceYes}); err != nil {
				return err
			}
			for _, spec := range args {
				Success("Added %s", spec)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "auto-accept trust-on-first-use prompts")
	cmd.Flags().BoolVar(&forceYes, "force-yes", false, "auto-accept trust-on-first-use prompts (never bypasses signature verification)")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <spec...>",
		Short: "Remove one or more dependencies from wapm.toml and uninstall them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, manifestPath, err := loadProjectManifest()
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			scope, err := resolveScope(false)
			if err != nil {
				return err
			}
			engine := newEngine(cfg, keys, newConfirmer(true, false))

			if err := engine.Remove(context.Background(), m, manifestPath, args, scope); err != nil {
				return err
			}
			for _, spec := range args {
				Success("Removed %s", spec)
			}
			return nil
		},
	}
	return cmd
}

// loadProjectManifest loads wapm.toml from the current directory, failing
// clearly when `add`/`remove` are run outside a project (spec section 6:
// these commands edit the manifest, which only exists at project scope).
func loadProjectManifest() (*manifest.Manifest, string, error) {
	scope, err := resolveScope(false)
	if err != nil {
		return nil, "", err
	}
	m, err := manifest.Load(scope.ManifestPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w (run `wapm init` first)", err)
	}
	return m, scope.ManifestPath, nil
}
