package cli

import (
	"context"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/install"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/werror"
)

// headerValidator adapts validateWasmFile to install.WasmValidator.
type headerValidator struct{}

func (headerValidator) ValidateModule(path string) error {
	return validateWasmFile(path)
}

func newPublishCmd() *cobra.Command {
	var dryRun, quiet bool
	var namespace, keyID string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate, package, sign, and upload the package in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			m, err := manifest.LoadAuto(dir)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := registryClient(cfg)

			var signer *install.Signer
			if keyID != "" {
				keys, err := loadKeyStore()
				if err != nil {
					return err
				}
				pk, ok := keys.FindPersonalKey(keyID)
				if !ok {
					return werror.Newf(werror.KindSignatureMissing, "no personal key registered with fingerprint %q", keyID)
				}
				passphrase := ""
				if pk.PassphraseEncrypted {
					if err := survey.AskOne(&survey.Password{Message: "Key passphrase:"}, &passphrase); err != nil {
						return err
					}
				}
				signer, err = install.LoadSigner(pk, passphrase)
				if err != nil {
					return err
				}
			}

			err = install.Publish(context.Background(), reg, headerValidator{}, dir, m, namespace, signer, install.PublishFlags{
				DryRun: dryRun,
				Quiet:  quiet,
			})
			if err != nil {
				return err
			}
			if dryRun {
				Success("Dry run succeeded for %s@%s", m.Package.Name, m.Package.Version)
				return nil
			}
			Success("Published %s@%s", m.Package.Name, m.Package.Version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and package without uploading")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress non-essential output")
	cmd.Flags().StringVar(&namespace, "namespace", "", "publishing namespace")
	cmd.Flags().StringVar(&keyID, "key", "", "personal signing key fingerprint (omit to publish unsigned)")
	return cmd
}
