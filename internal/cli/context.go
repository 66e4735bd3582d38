package cli

import (
	"os"

	"github.com/wapm-community/wapm/internal/config"
	"github.com/wapm-community/wapm/internal/confirm"
	"github.com/wapm-community/wapm/internal/install"
	"github.com/wapm-community/wapm/internal/keystore"
	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/registryclient"
)

// loadConfig loads the user config, wrapping failures in a consistent way
// for every command's RunE.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// registryClient builds a registryclient.Client bound to the configured
// endpoint and session token.
func registryClient(cfg *config.Config) *registryclient.Client {
	return registryclient.New(cfg.Registry.URL, cfg.Registry.Token)
}

// resolveScope picks the project or global scope for a command, per spec
// section 6's `-g`/`--global` flag convention.
func resolveScope(global bool) (layout.Scope, error) {
	if global {
		return layout.GlobalScope()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return layout.Scope{}, err
	}
	if root, ok := layout.FindProjectRoot(cwd); ok {
		return layout.ProjectScope(root), nil
	}
	return layout.ProjectScope(cwd), nil
}

// loadKeyStore opens the shared publisher-key database.
func loadKeyStore() (*keystore.Store, error) {
	path, err := layout.KeyStorePath()
	if err != nil {
		return nil, err
	}
	return keystore.Load(path)
}

// newConfirmer picks the TOFU confirmer: non-interactive when -y/--force-yes
// was passed, interactive (survey-backed) otherwise.
func newConfirmer(yes, forceYes bool) confirm.Confirmer {
	if yes || forceYes {
		return confirm.NonInteractive{ForceYes: true}
	}
	return confirm.Interactive{}
}

// newEngine builds an install.Engine wired to cfg's registry and the shared
// key store.
func newEngine(cfg *config.Config, keys *keystore.Store, confirmer confirm.Confirmer) *install.Engine {
	return install.NewEngine(registryClient(cfg), keys, confirmer)
}
