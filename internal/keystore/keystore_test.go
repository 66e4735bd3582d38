package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapm-community/wapm/internal/confirm"
)

func genKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func sign(priv ed25519.PrivateKey, archive []byte) []byte {
	return ed25519.Sign(priv, archive)
}

func sigFor(pub ed25519.PublicKey, priv ed25519.PrivateKey, archive []byte) *Signature {
	return &Signature{
		PublicKeyID:    Fingerprint(pub),
		PublicKeyValue: base64.StdEncoding.EncodeToString(pub),
		Data:           sign(priv, archive),
	}
}

func TestFirstContactNoSignatureAllowed(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	archive := []byte("archive-bytes")

	err := s.VerifyInstall("alice", archive, nil, confirm.NonInteractive{ForceYes: false})
	assert.NoError(t, err)
}

func TestTrustedUserUnsignedIsBlocked(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub, priv := genKey(t)
	archive := []byte("archive-bytes")

	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true}))

	err := s.VerifyInstall("alice", archive, nil, confirm.NonInteractive{ForceYes: false})
	assert.Error(t, err)
}

func TestTrustedUserUnsignedAllowedWithForceYes(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub, priv := genKey(t)
	archive := []byte("archive-bytes")

	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true}))

	err := s.VerifyInstall("alice", archive, nil, confirm.NonInteractive{ForceYes: true})
	assert.NoError(t, err, "--force-yes must override the missing-signature warning")
}

func TestTOFUPromptsOnFirstSignature(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub, priv := genKey(t)
	archive := []byte("archive-bytes")

	err := s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: false})
	assert.Error(t, err, "refusing the TOFU prompt must fail, not silently accept")

	err = s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true})
	assert.NoError(t, err)
}

func TestSameKeyNoPromptNeeded(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub, priv := genKey(t)
	archive := []byte("archive-bytes")

	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true}))

	// Second install, same key: must not require a prompt even with
	// ForceYes false, since no new-key confirmation is on the path.
	err := s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: false})
	assert.NoError(t, err)
}

func TestDifferentKeyPromptsReplace(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub1, priv1 := genKey(t)
	pub2, priv2 := genKey(t)
	archive := []byte("archive-bytes")

	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub1, priv1, archive), confirm.NonInteractive{ForceYes: true}))

	err := s.VerifyInstall("alice", archive, sigFor(pub2, priv2, archive), confirm.NonInteractive{ForceYes: false})
	assert.Error(t, err)

	// The refused key must not have been inserted: the old key is still
	// the one on file and a subsequent install signed by it needs no
	// prompt.
	err = s.VerifyInstall("alice", archive, sigFor(pub1, priv1, archive), confirm.NonInteractive{ForceYes: false})
	assert.NoError(t, err)
}

func TestRevokedKeyNeverAccepted(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "keys.json")}
	pub, priv := genKey(t)
	archive := []byte("archive-bytes")

	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true}))
	require.True(t, s.Revoke(Fingerprint(pub)))
	require.NotNil(t, s.PublicKeys[0].RevokedAt)

	err := s.verifySignature(s.PublicKeys[0], archive, sigFor(pub, priv, archive))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	s := &Store{path: path}
	pub, priv := genKey(t)
	archive := []byte("x")
	require.NoError(t, s.VerifyInstall("alice", archive, sigFor(pub, priv, archive), confirm.NonInteractive{ForceYes: true}))
	require.NoError(t, s.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.PublicKeys, 1)
	assert.Equal(t, "alice", reloaded.PublicKeys[0].UserName)
}

func TestEncryptDecryptPrivateKeyRoundTrip(t *testing.T) {
	_, priv := genKey(t)

	blob, err := EncryptPrivateKey(priv, "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, []byte(priv), blob)

	decrypted, err := DecryptPrivateKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, []byte(priv), decrypted)
}

func TestDecryptPrivateKeyRejectsWrongPassphrase(t *testing.T) {
	_, priv := genKey(t)

	blob, err := EncryptPrivateKey(priv, "right-passphrase")
	require.NoError(t, err)

	_, err = DecryptPrivateKey(blob, "wrong-passphrase")
	assert.Error(t, err)
}
