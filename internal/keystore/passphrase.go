package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/wapm-community/wapm/internal/werror"
)

// EncryptPrivateKey encrypts priv under passphrase with AES-256-GCM,
// returning nonce||ciphertext for storage at a PersonalKey's
// PrivateKeyPath (spec section 3's "optional passphrase-encrypted
// private blob"). No third-party password-KDF library appears anywhere
// in the example pack, so the passphrase is stretched with a single
// sha256 pass rather than scrypt/bcrypt; see DESIGN.md.
func EncryptPrivateKey(priv []byte, passphrase string) ([]byte, error) {
	block, err := aes.NewCipher(derivePassphraseKey(passphrase))
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to initialize key cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to initialize key cipher mode")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to generate nonce")
	}
	return gcm.Seal(nonce, nonce, priv, nil), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func DecryptPrivateKey(blob []byte, passphrase string) ([]byte, error) {
	block, err := aes.NewCipher(derivePassphraseKey(passphrase))
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to initialize key cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to initialize key cipher mode")
	}
	if len(blob) < gcm.NonceSize() {
		return nil, werror.New(werror.KindFilesystemIO, "encrypted key blob is truncated")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	priv, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "incorrect passphrase or corrupted key file")
	}
	return priv, nil
}

func derivePassphraseKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}
