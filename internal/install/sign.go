package install

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"io"
	"net/http"

	"github.com/wapm-community/wapm/internal/werror"
)

// signEd25519 produces a detached signature over data using an Ed25519
// private key loaded from disk (either the 64-byte raw key or the seed
// form, matching keystore.GeneratePersonalKey's output).
func signEd25519(priv []byte, data []byte) ([]byte, error) {
	switch len(priv) {
	case ed25519.PrivateKeySize:
		return ed25519.Sign(ed25519.PrivateKey(priv), data), nil
	case ed25519.SeedSize:
		return ed25519.Sign(ed25519.NewKeyFromSeed(priv), data), nil
	default:
		return nil, werror.Newf(werror.KindSignatureMismatch, "personal key has unexpected length %d", len(priv))
	}
}

// putChunk uploads one chunk of a chunked publish to its pre-signed URL
// and returns the response ETag (spec section 4.C's chunked upload path).
func putChunk(ctx context.Context, url string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", werror.Wrap(werror.KindNetwork, err, "failed to build chunk upload request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", werror.Wrap(werror.KindNetwork, err, "failed to upload chunk")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", werror.Newf(werror.KindNetwork, "chunk upload failed with status %d", resp.StatusCode)
	}
	return resp.Header.Get("ETag"), nil
}
