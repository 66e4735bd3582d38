package auth

import (
	"context"

	"github.com/wapm-community/wapm/internal/config"
	"github.com/wapm-community/wapm/internal/registryclient"
	"github.com/wapm-community/wapm/internal/werror"
)

// Registry is the subset of registryclient.Client the auth manager needs
// (spec section 4.C's tokenAuth/verifyToken/refreshToken operations).
type Registry interface {
	TokenAuth(ctx context.Context, username, password string) (*registryclient.AuthResult, error)
	VerifyToken(ctx context.Context) (*registryclient.AuthResult, error)
	RefreshToken(ctx context.Context) (*registryclient.AuthResult, error)
}

// WhoamiInfo is what `wapm whoami` displays.
type WhoamiInfo struct {
	Username string
	Email    string
}

// Manager drives login/logout/whoami against a Registry, persisting the
// session token into config.Config exactly as spec section 4.A describes
// ("login ... sets registry.token").
type Manager struct {
	registry Registry
	cfg      *config.Config
}

// NewManager constructs a Manager bound to cfg. cfg is saved to disk on
// every state change this manager makes.
func NewManager(registry Registry, cfg *config.Config) *Manager {
	return &Manager{registry: registry, cfg: cfg}
}

// LoggedIn reports whether a registry token is currently configured,
// without making a network call.
func (m *Manager) LoggedIn() bool {
	return m.cfg.Registry.Token != ""
}

// Login exchanges username/password for a session token via the
// registry's tokenAuth operation and persists it to config.
func (m *Manager) Login(ctx context.Context, username, password string) (*WhoamiInfo, error) {
	result, err := m.registry.TokenAuth(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, werror.New(werror.KindAuth, "registry returned an empty token")
	}

	m.cfg.Registry.Token = result.Token
	if err := m.cfg.Save(); err != nil {
		return nil, err
	}

	return m.whoamiFromResult(result), nil
}

// Logout clears the configured registry token.
func (m *Manager) Logout() error {
	if !m.LoggedIn() {
		return werror.New(werror.KindAuth, "not logged in")
	}
	m.cfg.ClearToken()
	return m.cfg.Save()
}

// Whoami reports the identity behind the configured token. When the
// token is shaped like a JWT its claims are decoded locally (spec
// section 4.O) to avoid a round trip; otherwise, and whenever local
// decoding fails, it falls back to the registry's verifyToken query.
func (m *Manager) Whoami(ctx context.Context) (*WhoamiInfo, error) {
	token := m.cfg.Registry.Token
	if token == "" {
		return nil, werror.New(werror.KindAuth, "not logged in")
	}

	if looksLikeJWT(token) {
		if claims, err := decodeClaims(token); err == nil {
			return &WhoamiInfo{Username: claims.DisplayName(), Email: claims.Email}, nil
		}
	}

	result, err := m.registry.VerifyToken(ctx)
	if err != nil {
		m.cfg.ClearToken()
		_ = m.cfg.Save()
		return nil, err
	}
	return m.whoamiFromResult(result), nil
}

// Refresh exchanges the current token for a new one and persists it.
func (m *Manager) Refresh(ctx context.Context) (*WhoamiInfo, error) {
	if !m.LoggedIn() {
		return nil, werror.New(werror.KindAuth, "not logged in")
	}
	result, err := m.registry.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	m.cfg.Registry.Token = result.Token
	if err := m.cfg.Save(); err != nil {
		return nil, err
	}
	return m.whoamiFromResult(result), nil
}

func (m *Manager) whoamiFromResult(result *registryclient.AuthResult) *WhoamiInfo {
	return &WhoamiInfo{Username: result.Username}
}
