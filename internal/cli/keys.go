package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/keystore"
	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/werror"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage publisher signing keys",
	}
	cmd.AddCommand(newKeysListCmd(), newKeysGenerateCmd(), newKeysRegisterCmd(), newKeysDeleteCmd(), newKeysImportCmd())
	return cmd
}

func newKeysListCmd() *cobra.Command {
	var all bool
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known publisher keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}

			dw := NewDataWriter(os.Stdout, outputFormat)
			tb := NewTableBuilder("KEY ID", "OWNER", "REVOKED")
			for _, pk := range keys.PersonalKeys {
				tb.AddRow(pk.PublicKeyID, "(you)", "no")
			}
			if all {
				for _, pub := range keys.PublicKeys {
					revoked := "no"
					if pub.RevokedAt != nil {
						revoked = "yes"
					}
					tb.AddRow(pub.PublicKeyID, pub.UserName, revoked)
				}
			}
			return tb.Write(dw)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list every publisher key ever observed")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var passphraseProtect bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new personal signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to generate key")
			}

			home, err := layout.HomeDir()
			if err != nil {
				return err
			}
			keyDir := filepath.Join(home, "keys")
			if err := os.MkdirAll(keyDir, 0o750); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to create key directory")
			}
			keyPath := filepath.Join(keyDir, keystore.Fingerprint(pub)+".key")

			privBlob := []byte(priv)
			if passphraseProtect {
				var passphrase string
				if err := survey.AskOne(&survey.Password{Message: "New key passphrase:"}, &passphrase, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
				privBlob, err = keystore.EncryptPrivateKey(priv, passphrase)
				if err != nil {
					return err
				}
			}
			if err := os.WriteFile(keyPath, privBlob, 0o600); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to write private key")
			}

			pk := keystore.PersonalKey{
				PublicKeyID:         keystore.Fingerprint(pub),
				PublicKeyValue:      base64.StdEncoding.EncodeToString(pub),
				PrivateKeyPath:      keyPath,
				PassphraseEncrypted: passphraseProtect,
			}

			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			keys.AddPersonalKey(pk)
			if err := keys.Save(); err != nil {
				return err
			}

			Success("Generated key %s", pk.PublicKeyID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&passphraseProtect, "passphrase", false, "encrypt the private key with a passphrase")
	return cmd
}

func newKeysRegisterCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a personal key's public half with the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			if keyID == "" && len(keys.PersonalKeys) == 1 {
				keyID = keys.PersonalKeys[0].PublicKeyID
			}
			pk, ok := keys.FindPersonalKey(keyID)
			if !ok {
				return werror.Newf(werror.KindSignatureMissing, "no personal key registered with fingerprint %q", keyID)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := registryClient(cfg)
			if err := reg.PublishPublicKey(context.Background(), pk.PublicKeyID, pk.PublicKeyValue, ""); err != nil {
				return err
			}

			Success("Registered key %s with the registry", pk.PublicKeyID)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyID, "key", "", "personal key fingerprint (defaults to the only personal key, if there's exactly one)")
	return cmd
}

func newKeysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Revoke a trusted publisher key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			if !keys.Revoke(args[0]) {
				return werror.Newf(werror.KindKeyRevoked, "no active key with fingerprint %q", args[0])
			}
			if err := keys.Save(); err != nil {
				return err
			}
			Success("Revoked key %s", args[0])
			return nil
		},
	}
}

func newKeysImportCmd() *cobra.Command {
	var passphraseEncrypted bool

	cmd := &cobra.Command{
		Use:   "import <private-key-path>",
		Short: "Import an existing Ed25519 private key for publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := validateAndCleanPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path) // #nosec G304 -- validated above
			if err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to read private key")
			}

			var pub ed25519.PublicKey
			if !passphraseEncrypted {
				priv := ed25519.PrivateKey(data)
				if len(priv) != ed25519.PrivateKeySize {
					return werror.Newf(werror.KindManifest, "%s is not a raw Ed25519 private key", path)
				}
				pub = priv.Public().(ed25519.PublicKey)
			} else {
				var passphrase string
				if err := survey.AskOne(&survey.Password{Message: "Key passphrase:"}, &passphrase, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
				decrypted, err := keystore.DecryptPrivateKey(data, passphrase)
				if err != nil {
					return err
				}
				pub = ed25519.PrivateKey(decrypted).Public().(ed25519.PublicKey)
			}

			pk := keystore.PersonalKey{
				PublicKeyID:         keystore.Fingerprint(pub),
				PublicKeyValue:      base64.StdEncoding.EncodeToString(pub),
				PrivateKeyPath:      path,
				PassphraseEncrypted: passphraseEncrypted,
			}

			keys, err := loadKeyStore()
			if err != nil {
				return err
			}
			keys.AddPersonalKey(pk)
			if err := keys.Save(); err != nil {
				return err
			}

			Success("Imported key %s", pk.PublicKeyID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&passphraseEncrypted, "passphrase-encrypted", false, "the private key file is passphrase-encrypted")
	return cmd
}
