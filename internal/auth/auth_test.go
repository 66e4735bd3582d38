package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/config"
	"github.com/wapm-community/wapm/internal/registryclient"
)

type fakeRegistry struct {
	authResult      *registryclient.AuthResult
	err             error
	verifyTokenCall int
}

func (f *fakeRegistry) TokenAuth(ctx context.Context, username, password string) (*registryclient.AuthResult, error) {
	return f.authResult, f.err
}

func (f *fakeRegistry) VerifyToken(ctx context.Context) (*registryclient.AuthResult, error) {
	f.verifyTokenCall++
	return f.authResult, f.err
}

func (f *fakeRegistry) RefreshToken(ctx context.Context) (*registryclient.AuthResult, error) {
	return f.authResult, f.err
}

func newTestConfig() *config.Config {
	return &config.Config{Registry: config.RegistrySection{URL: config.DefaultRegistryURL}}
}

func TestLoginPersistsToken(t *testing.T) {
	reg := &fakeRegistry{authResult: &registryclient.AuthResult{Token: "sess-tok", Username: "alice"}}
	cfg := newTestConfig()
	m := NewManager(reg, cfg)

	info, err := m.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "sess-tok", cfg.Registry.Token)
	assert.True(t, m.LoggedIn())
}

func TestLogoutClearsToken(t *testing.T) {
	cfg := newTestConfig()
	cfg.Registry.Token = "sess-tok"
	m := NewManager(&fakeRegistry{}, cfg)

	require.NoError(t, m.Logout())
	assert.Equal(t, "", cfg.Registry.Token)
}

func TestLogoutFailsWhenNotLoggedIn(t *testing.T) {
	m := NewManager(&fakeRegistry{}, newTestConfig())
	assert.Error(t, m.Logout())
}

func TestWhoamiDecodesJWTLocallyWithoutNetworkCall(t *testing.T) {
	claims := jwt.MapClaims{"sub": "user-1", "username": "alice", "email": "alice@example.com"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("unused-signing-key"))
	require.NoError(t, err)

	cfg := newTestConfig()
	cfg.Registry.Token = signed
	reg := &fakeRegistry{}
	m := NewManager(reg, cfg)

	info, err := m.Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "alice@example.com", info.Email)
	assert.Equal(t, 0, reg.verifyTokenCall, "JWT-shaped tokens must decode locally, not round-trip to the registry")
}

func TestWhoamiFallsBackToVerifyTokenForOpaqueToken(t *testing.T) {
	cfg := newTestConfig()
	cfg.Registry.Token = "opaque-session-token"
	reg := &fakeRegistry{authResult: &registryclient.AuthResult{Username: "bob"}}
	m := NewManager(reg, cfg)

	info, err := m.Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Username)
}

func TestWhoamiFailsWhenNotLoggedIn(t *testing.T) {
	m := NewManager(&fakeRegistry{}, newTestConfig())
	_, err := m.Whoami(context.Background())
	assert.Error(t, err)
}
