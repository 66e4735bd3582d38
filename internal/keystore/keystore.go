// Package keystore implements wapm's persistent publisher-key database
// and the trust-on-first-use (TOFU) verification algorithm run on every
// install (spec section 4.D). It is grounded on the same Ed25519
// fingerprint/verify shape as SeleniaProject-Orizon's
// internal/packagemanager/signature.go, simplified from that package's
// certificate-chain model down to this spec's flat users/public_keys/
// personal_keys tables, and persisted as JSON rather than SQL — see
// DESIGN.md's Open Question decisions for why no SQL driver is used.
package keystore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wapm-community/wapm/internal/confirm"
	"github.com/wapm-community/wapm/internal/werror"
)

// Fingerprint computes a stable key ID for a raw Ed25519 public key, the
// same sha256-of-key-bytes scheme as Orizon's packagemanager.Fingerprint.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// PublicKey is one entry in the public_keys table: a key a user has been
// observed signing with.
type PublicKey struct {
	UserName          string     `json:"user_name"`
	PublicKeyID       string     `json:"public_key_id"`
	PublicKeyValue    string     `json:"public_key_value"` // base64 raw Ed25519 key
	KeyTypeIdentifier string     `json:"key_type_identifier"`
	DateAdded         time.Time  `json:"date_added"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// PersonalKey is a private key the local user holds for publishing.
type PersonalKey struct {
	PublicKeyID         string `json:"public_key_id"`
	PublicKeyValue      string `json:"public_key_value"`
	PrivateKeyPath      string `json:"private_key_path"`
	PassphraseEncrypted bool   `json:"passphrase_encrypted"`
}

// Store is the full key database: every publisher key ever observed, plus
// the local user's own personal keys.
type Store struct {
	mu           sync.Mutex
	path         string
	PublicKeys   []PublicKey   `json:"public_keys"`
	PersonalKeys []PersonalKey `json:"personal_keys"`
}

// Load reads the key store from path, returning an empty store if it
// doesn't exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from layout.KeyStorePath
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to read key store")
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to parse key store")
	}
	return s, nil
}

// Save writes the store atomically (temp file + rename), matching the
// mutex + atomic-rename discipline used by config and manifest.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create key store directory")
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to create key store temp file")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to encode key store")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to write key store")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return werror.Wrap(werror.KindFilesystemIO, err, "failed to save key store")
	}
	return nil
}

// trustedKeyFor returns the single non-revoked key trusted for userName,
// if any. A (user, public_key_id) pair is immutable once inserted (spec
// section 3), so there is at most one active key per user at a time in
// this simplified flat model: replacing it is the only mutation, and it
// always goes through the confirm prompts below.
func (s *Store) trustedKeyFor(userName string) *PublicKey {
	for i := range s.PublicKeys {
		if s.PublicKeys[i].UserName == userName && s.PublicKeys[i].RevokedAt == nil {
			return &s.PublicKeys[i]
		}
	}
	return nil
}

// Signature is the detached signature attached to a registry response
// (spec section 4.C's get_package_version shape).
type Signature struct {
	PublicKeyID    string
	PublicKeyValue string // base64 raw Ed25519 key
	Data           []byte
}

// VerifyInstall runs the spec section 4.D algorithm against a downloaded
// archive for a given uploader userName. A confirmer that auto-accepts
// (--force-yes) answers the prompts, but never overrides a failed
// verification or a revoked key.
func (s *Store) VerifyInstall(userName string, archive []byte, sig *Signature, confirmer confirm.Confirmer) error {
	trusted := s.trustedKeyFor(userName)

	switch {
	case sig == nil && trusted == nil:
		// Truly first contact with this publisher: allow.
		return nil

	case sig == nil && trusted != nil:
		// We have a trusted key for them but this download carries no
		// signature at all: warn and block unless --force-yes (spec
		// section 4.D case 1).
		ok, err := confirmer.AskAcceptMissingSignature(userName)
		if err != nil {
			return werror.Wrap(werror.KindSignatureMissing, err, "failed to confirm missing signature")
		}
		if !ok {
			return werror.Newf(werror.KindSignatureMissing,
				"package uploader %q has a trusted signing key but this download is unsigned", userName)
		}
		return nil

	case trusted != nil && trusted.PublicKeyID == sig.PublicKeyID && trusted.PublicKeyValue == sig.PublicKeyValue:
		return s.verifySignature(*trusted, archive, sig)

	case trusted != nil:
		// Same user, different key.
		ok, err := confirmer.AskReplaceKey(userName, trusted.PublicKeyID, sig.PublicKeyID)
		if err != nil {
			return werror.Wrap(werror.KindSignatureMismatch, err, "failed to confirm key replacement")
		}
		if !ok {
			return werror.Newf(werror.KindSignatureMismatch,
				"refused to trust new signing key %s for publisher %q", sig.PublicKeyID, userName)
		}
		newKey := s.insertKey(userName, *sig)
		return s.verifySignature(newKey, archive, sig)

	default:
		// No prior key, signature provided: TOFU.
		ok, err := confirmer.AskTrustNewKey(userName, sig.PublicKeyID)
		if err != nil {
			return werror.Wrap(werror.KindSignatureMissing, err, "failed to confirm new key trust")
		}
		if !ok {
			return werror.Newf(werror.KindSignatureMismatch,
				"refused to trust signing key %s for publisher %q", sig.PublicKeyID, userName)
		}
		newKey := s.insertKey(userName, *sig)
		return s.verifySignature(newKey, archive, sig)
	}
}

// insertKey appends a new public key for userName. Existing keys for the
// same user are left in place (soft history; revocation is the only way
// to retire one), but trustedKeyFor only ever returns the most recently
// inserted non-revoked key since a replace-key flow always revokes the
// prior entry first via Revoke.
func (s *Store) insertKey(userName string, sig Signature) PublicKey {
	if prior := s.trustedKeyFor(userName); prior != nil {
		s.revokeLocked(prior.PublicKeyID)
	}
	key := PublicKey{
		UserName:          userName,
		PublicKeyID:       sig.PublicKeyID,
		PublicKeyValue:    sig.PublicKeyValue,
		KeyTypeIdentifier: "ed25519",
		DateAdded:         time.Now(),
	}
	s.PublicKeys = append(s.PublicKeys, key)
	return key
}

func (s *Store) verifySignature(key PublicKey, archive []byte, sig *Signature) error {
	if key.RevokedAt != nil {
		return werror.Newf(werror.KindKeyRevoked, "signing key %s for %q has been revoked", key.PublicKeyID, key.UserName)
	}
	pub, err := base64.StdEncoding.DecodeString(key.PublicKeyValue)
	if err != nil {
		return werror.Wrap(werror.KindSignatureMismatch, err, "malformed public key")
	}
	if len(pub) != ed25519.PublicKeySize {
		return werror.Newf(werror.KindSignatureMismatch, "public key %s has unexpected length", key.PublicKeyID)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), archive, sig.Data) {
		return werror.Newf(werror.KindSignatureMismatch, "signature verification failed for %q", key.UserName)
	}
	return nil
}

// Revoke sets revoked_at on the key matching publicKeyID, never deleting
// it (spec section 3: "Revocation is soft ... never delete").
func (s *Store) Revoke(publicKeyID string) bool {
	return s.revokeLocked(publicKeyID)
}

func (s *Store) revokeLocked(publicKeyID string) bool {
	now := time.Now()
	for i := range s.PublicKeys {
		if s.PublicKeys[i].PublicKeyID == publicKeyID && s.PublicKeys[i].RevokedAt == nil {
			s.PublicKeys[i].RevokedAt = &now
			return true
		}
	}
	return false
}

// GeneratePersonalKey writes the caller-supplied Ed25519 private key to
// privateKeyPath (mode 0600) and returns the PersonalKey entry describing
// its public half. It does not add the entry to a store; callers do that
// with AddPersonalKey.
func GeneratePersonalKey(pub ed25519.PublicKey, priv ed25519.PrivateKey, privateKeyPath string, passphraseEncrypted bool) (PersonalKey, error) {
	if err := os.WriteFile(privateKeyPath, priv, 0o600); err != nil {
		return PersonalKey{}, werror.Wrap(werror.KindFilesystemIO, err, "failed to write personal key")
	}
	return PersonalKey{
		PublicKeyID:         Fingerprint(pub),
		PublicKeyValue:      base64.StdEncoding.EncodeToString(pub),
		PrivateKeyPath:      privateKeyPath,
		PassphraseEncrypted: passphraseEncrypted,
	}, nil
}

// AddPersonalKey registers a personal key in the store.
func (s *Store) AddPersonalKey(k PersonalKey) {
	s.PersonalKeys = append(s.PersonalKeys, k)
}

// FindPersonalKey returns the personal key with the given ID.
func (s *Store) FindPersonalKey(publicKeyID string) (PersonalKey, bool) {
	for _, k := range s.PersonalKeys {
		if k.PublicKeyID == publicKeyID {
			return k, true
		}
	}
	return PersonalKey{}, false
}

// DeletePersonalKey removes a personal key's registration (not its
// on-disk private key file, which the caller may separately remove).
func (s *Store) DeletePersonalKey(publicKeyID string) bool {
	for i, k := range s.PersonalKeys {
		if k.PublicKeyID == publicKeyID {
			s.PersonalKeys = append(s.PersonalKeys[:i], s.PersonalKeys[i+1:]...)
			return true
		}
	}
	return false
}
