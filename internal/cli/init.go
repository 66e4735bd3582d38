package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/manifest"
)

func newInitCmd() *cobra.Command {
	var acceptDefaults bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively scaffold a new wapm.toml",
		Long:  `Create a wapm.toml in the current directory. With -y, accepts defaults instead of prompting.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(acceptDefaults)
		},
	}

	cmd.Flags().BoolVarP(&acceptDefaults, "yes", "y", false, "accept defaults without prompting")
	return cmd
}

func runInit(acceptDefaults bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(cwd, manifest.FileName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("%s already exists", manifest.FileName)
	}

	name := filepath.Base(cwd)
	version := "0.1.0"
	description := ""
	license := ""

	if !acceptDefaults {
		if err := survey.AskOne(&survey.Input{Message: "Package name:", Default: name}, &name); err != nil {
			return err
		}
		if err := survey.AskOne(&survey.Input{Message: "Version:", Default: version}, &version); err != nil {
			return err
		}
		if err := survey.AskOne(&survey.Input{Message: "Description:"}, &description); err != nil {
			return err
		}
		if err := survey.AskOne(&survey.Input{Message: "License:", Default: "MIT"}, &license); err != nil {
			return err
		}
	} else {
		license = "MIT"
	}

	m := manifest.New(name, version)
	m.Package.Description = description
	m.Package.License = license

	if err := m.Validate(); err != nil {
		return err
	}
	if err := m.Save(manifestPath); err != nil {
		return err
	}

	Success("Created %s", manifest.FileName)
	Info("Next: wapm add <namespace/package> to declare a dependency, then wapm install")
	return nil
}
