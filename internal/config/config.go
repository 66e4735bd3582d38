// Package config manages wapm's user-level configuration: registry URL,
// auth token, proxy override, and telemetry/update-notification opt-ins.
// It is stored as TOML at $WASMER_DIR/wapm.toml.
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/werror"
)

// DefaultRegistryURL is used when registry.url has never been set.
const DefaultRegistryURL = "https://registry.wapm.io/graphql"

// Config is wapm's persisted user-level configuration.
type Config struct {
	Registry  RegistrySection `toml:"registry"`
	Proxy     ProxySection    `toml:"proxy"`
	Telemetry TelemetrySection `toml:"telemetry"`
	Update    UpdateSection   `toml:"update-notifications"`
}

// RegistrySection holds the registry endpoint and auth token.
type RegistrySection struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// ProxySection optionally overrides the standard proxy environment
// variables.
type ProxySection struct {
	URL string `toml:"url,omitempty"`
}

// TelemetrySection is the telemetry opt-in.
type TelemetrySection struct {
	Enabled bool `toml:"enabled"`
}

// UpdateSection is the update-notification opt-in.
type UpdateSection struct {
	Enabled bool `toml:"enabled"`
}

var mu sync.Mutex

func defaultConfig() *Config {
	return &Config{
		Registry:  RegistrySection{URL: DefaultRegistryURL},
		Telemetry: TelemetrySection{Enabled: true},
		Update:    UpdateSection{Enabled: true},
	}
}

// path returns $WASMER_DIR/wapm.toml.
func path() (string, error) {
	home, err := layout.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "wapm.toml"), nil
}

// Load reads the config from disk, returning defaults if it does not yet
// exist. Unknown keys are an error (spec section 9: local config files
// are parsed strictly, unlike registry responses).
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p) // #nosec G304 -- path is derived from layout.HomeDir(), not user input
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, werror.Wrap(werror.KindConfig, err, "failed to read config")
	}

	cfg := defaultConfig()
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, werror.Wrap(werror.KindConfig, err, "failed to parse config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, werror.Newf(werror.KindConfig, "unknown config key(s): %v", undecoded)
	}

	return cfg, nil
}

// Save writes the config to disk atomically (temp file + rename), matching
// the teacher's config store discipline generalized from JSON to TOML.
func (c *Config) Save() error {
	mu.Lock()
	defer mu.Unlock()

	p, err := path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create config directory")
	}

	tmp := p + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create config temp file")
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindConfig, err, "failed to encode config")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to write config")
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to save config")
	}
	return nil
}

// Get returns the string value at a dotted key ("registry.url",
// "telemetry.enabled", ...).
func (c *Config) Get(dottedKey string) (string, error) {
	switch dottedKey {
	case "registry.url":
		return c.Registry.URL, nil
	case "registry.token":
		return c.Registry.Token, nil
	case "proxy.url":
		return c.Proxy.URL, nil
	case "telemetry.enabled":
		return boolString(c.Telemetry.Enabled), nil
	case "update-notifications.enabled":
		return boolString(c.Update.Enabled), nil
	default:
		return "", werror.Newf(werror.KindConfig, "unrecognized config key %q", dottedKey)
	}
}

// Set assigns value at a dotted key. Setting registry.url implicitly
// clears registry.token (spec section 4.A).
func (c *Config) Set(dottedKey, value string) error {
	switch dottedKey {
	case "registry.url":
		c.Registry.URL = value
		c.Registry.Token = ""
	case "registry.token":
		c.Registry.Token = value
	case "proxy.url":
		c.Proxy.URL = value
	case "telemetry.enabled":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.Telemetry.Enabled = b
	case "update-notifications.enabled":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.Update.Enabled = b
	default:
		return werror.Newf(werror.KindConfig, "unrecognized config key %q", dottedKey)
	}
	return nil
}

// ClearToken clears the registry token in memory, for the auth-error path
// in the registry client (spec section 4.C): "clear registry.token in
// memory and fail with a distinct error kind".
func (c *Config) ClearToken() {
	c.Registry.Token = ""
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, werror.Newf(werror.KindConfig, "invalid boolean value %q", s)
	}
}
