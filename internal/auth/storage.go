package auth

import (
	"github.com/zalando/go-keyring"

	"github.com/wapm-community/wapm/internal/werror"
)

// keyringService is the OS keyring service name personal-key passphrases
// are stored under (spec section 4.M), generalized from the teacher's
// single OAuth-credential-blob keyring entry to one entry per personal
// key, keyed by its fingerprint.
const keyringService = "wapm-personal-key"

// PassphraseStore holds the passphrases that decrypt passphrase-encrypted
// personal signing keys (spec section 4.D), keyed by the key's
// fingerprint so multiple personal keys can coexist.
type PassphraseStore interface {
	Get(keyID string) (string, bool, error)
	Set(keyID, passphrase string) error
	Delete(keyID string) error
}

// KeyringStore is the production PassphraseStore, backed by the OS
// keyring exactly as the teacher's KeyringStore uses
// github.com/zalando/go-keyring, generalized from one fixed
// (service, username) pair to (keyringService, keyID) per personal key.
type KeyringStore struct{}

// NewKeyringStore constructs a KeyringStore. The zalando library selects
// the OS backend (Keychain, Secret Service, Credential Manager)
// automatically.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Get returns the stored passphrase for keyID, or found=false if none is
// stored.
func (s *KeyringStore) Get(keyID string) (string, bool, error) {
	passphrase, err := keyring.Get(keyringService, keyID)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", false, nil
		}
		return "", false, werror.Wrap(werror.KindAuth, err, "failed to read passphrase from keyring")
	}
	return passphrase, true, nil
}

// Set stores passphrase for keyID.
func (s *KeyringStore) Set(keyID, passphrase string) error {
	if err := keyring.Set(keyringService, keyID, passphrase); err != nil {
		return werror.Wrap(werror.KindAuth, err, "failed to store passphrase in keyring")
	}
	return nil
}

// Delete removes any stored passphrase for keyID.
func (s *KeyringStore) Delete(keyID string) error {
	if err := keyring.Delete(keyringService, keyID); err != nil && err != keyring.ErrNotFound {
		return werror.Wrap(werror.KindAuth, err, "failed to delete passphrase from keyring")
	}
	return nil
}

// MockStore is an in-memory PassphraseStore for tests.
type MockStore struct {
	passphrases map[string]string
}

// NewMockStore constructs an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{passphrases: map[string]string{}}
}

func (m *MockStore) Get(keyID string) (string, bool, error) {
	p, ok := m.passphrases[keyID]
	return p, ok, nil
}

func (m *MockStore) Set(keyID, passphrase string) error {
	m.passphrases[keyID] = passphrase
	return nil
}

func (m *MockStore) Delete(keyID string) error {
	delete(m.passphrases, keyID)
	return nil
}
