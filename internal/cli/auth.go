package cli

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/auth"
)

// newAuthCmd returns the top-level `login` command; `logout` and `whoami`
// are registered as its siblings in root.go rather than subcommands of an
// `auth` parent, matching spec section 6's flat CLI surface.
func newAuthCmd() *cobra.Command {
	return newLoginCmd()
}

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the registry",
		Long:  `Authenticate against the configured registry, storing the session token in the wapm config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if username == "" {
				if err := survey.AskOne(&survey.Input{Message: "Username:"}, &username, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if password == "" {
				if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}

			m := auth.NewManager(registryClient(cfg), cfg)
			info, err := m.Login(context.Background(), username, password)
			if err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			Success("Logged in as %s", info.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "registry username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "registry password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := auth.NewManager(registryClient(cfg), cfg)
			if err := m.Logout(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			Success("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the currently logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m := auth.NewManager(registryClient(cfg), cfg)
			info, err := m.Whoami(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", info.Username, info.Email)
			return nil
		},
	}
}
