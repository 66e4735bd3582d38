package install

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/wapm-community/wapm/internal/keystore"
	"github.com/wapm-community/wapm/internal/manifest"
	"github.com/wapm-community/wapm/internal/registryclient"
	"github.com/wapm-community/wapm/internal/spdx"
	"github.com/wapm-community/wapm/internal/werror"
)

// WasmValidator is the external WebAssembly validator, consumed as a
// pure library per spec section 1's "Deliberately out of scope" list.
type WasmValidator interface {
	ValidateModule(path string) error
}

// PublishFlags mirror spec section 6's `publish` command flags.
type PublishFlags struct {
	DryRun bool
	Quiet  bool
}

// Publisher is the subset of registryclient.Client publish needs.
type Publisher interface {
	PublishPackage(ctx context.Context, input registryclient.PublishInput) error
	ChunkedUploadSession(ctx context.Context, namespace, name, version string, partCount int) ([]registryclient.SignedUploadPart, error)
	FinalizeChunkedPublish(ctx context.Context, input registryclient.PublishInput, receipts []registryclient.PartReceipt) error
}

// ChunkThreshold is the archive size above which a chunked upload is
// used even without FORCE_WAPM_USE_CHUNKED_UPLOAD set.
const ChunkThreshold = 64 * 1024 * 1024

const chunkSize = 8 * 1024 * 1024

// Publish validates, packages, optionally signs, and uploads the package
// rooted at dir (spec section 4.F's publish pipeline).
func Publish(ctx context.Context, pub Publisher, validator WasmValidator, dir string, m *manifest.Manifest, namespace string, signer *Signer, flags PublishFlags) error {
	if err := validateForPublish(dir, m, validator); err != nil {
		return err
	}

	archive, err := packageTarball(dir, m)
	if err != nil {
		return err
	}

	input := registryclient.PublishInput{
		Namespace:   namespace,
		Name:        m.Package.Name,
		Version:     m.Package.Version,
		ArchiveData: base64.StdEncoding.EncodeToString(archive),
	}
	if manifestTOML, err := manifestTOMLBytes(m); err != nil {
		return err
	} else {
		input.ManifestTOML = string(manifestTOML)
	}

	if signer != nil {
		sig, err := signer.Sign(archive)
		if err != nil {
			return err
		}
		input.SignatureKeyID = signer.KeyID
		input.SignatureData = base64.StdEncoding.EncodeToString(sig)
	}

	if flags.DryRun {
		return nil
	}

	useChunked := os.Getenv("FORCE_WAPM_USE_CHUNKED_UPLOAD") == "1" || len(archive) > ChunkThreshold
	if !useChunked {
		return pub.PublishPackage(ctx, input)
	}
	return publishChunked(ctx, pub, input, archive)
}

func validateForPublish(dir string, m *manifest.Manifest, validator WasmValidator) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Package.License != "" && !spdx.Valid(m.Package.License) {
		return werror.Newf(werror.KindManifest, "package.license %q is not a recognized SPDX identifier", m.Package.License)
	}
	for _, mod := range m.Modules {
		path := filepath.Join(dir, mod.Source)
		if _, err := os.Stat(path); err != nil {
			return werror.Wrapf(werror.KindManifest, err, "module %q source is not readable", mod.Name)
		}
		if validator != nil {
			if err := validator.ValidateModule(path); err != nil {
				return werror.Wrapf(werror.KindManifest, err, "module %q failed validation", mod.Name)
			}
		}
	}
	return nil
}

// packageTarball packages the manifest's modules into a tar archive,
// rooted at dir. When the manifest declares fs mounts, their contents are
// bundled directly into each module's bytecode as a WASM custom section
// (spec section 6's "Package custom section header"), rather than shipped
// as loose files, so a consumer that only unpacks .wasm files still gets
// the fs payload.
func packageTarball(dir string, m *manifest.Manifest) ([]byte, error) {
	fsSection, err := buildFSCustomSection(dir, m.FS)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, mod := range m.Modules {
		fullPath := filepath.Join(dir, mod.Source)
		data, err := os.ReadFile(fullPath) // #nosec G304 -- mod.Source comes from the author's own manifest
		if err != nil {
			return nil, werror.Wrapf(werror.KindManifest, err, "failed to read module %q for packaging", mod.Name)
		}
		if fsSection != nil {
			data = append(data, fsSection...)
		}
		hdr := &tar.Header{Name: mod.Source, Size: int64(len(data)), Mode: 0o644}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to write tar header")
		}
		if _, err := tw.Write(data); err != nil {
			return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to write tar entry")
		}
	}

	if err := tw.Close(); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to finalize tarball")
	}
	return buf.Bytes(), nil
}

func manifestTOMLBytes(m *manifest.Manifest) ([]byte, error) {
	tmp, err := os.CreateTemp("", "wapm-manifest-*.toml")
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to stage manifest for publish")
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	if err := m.Save(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path) // #nosec G304 -- path is our own temp file
}

func publishChunked(ctx context.Context, pub Publisher, input registryclient.PublishInput, archive []byte) error {
	partCount := (len(archive) + chunkSize - 1) / chunkSize
	if partCount == 0 {
		partCount = 1
	}

	parts, err := pub.ChunkedUploadSession(ctx, input.Namespace, input.Name, input.Version, partCount)
	if err != nil {
		return err
	}

	receipts := make([]registryclient.PartReceipt, 0, len(parts))
	for _, part := range parts {
		start := (part.PartNumber - 1) * chunkSize
		end := start + chunkSize
		if end > len(archive) {
			end = len(archive)
		}
		etag, err := putChunk(ctx, part.UploadURL, archive[start:end])
		if err != nil {
			return err
		}
		receipts = append(receipts, registryclient.PartReceipt{PartNumber: part.PartNumber, ETag: etag})
	}

	return pub.FinalizeChunkedPublish(ctx, input, receipts)
}

// Signer holds a personal key loaded from disk for signing a publish
// archive.
type Signer struct {
	KeyID      string
	PrivateKey []byte
}

// Sign produces an Ed25519 detached signature over archive.
func (s *Signer) Sign(archive []byte) ([]byte, error) {
	return signEd25519(s.PrivateKey, archive)
}

// LoadSigner reads the personal key's private key file, decrypting it
// with passphrase when the key is passphrase-encrypted (spec section
// 4.D/4.M).
func LoadSigner(key keystore.PersonalKey, passphrase string) (*Signer, error) {
	data, err := os.ReadFile(key.PrivateKeyPath) // #nosec G304 -- path is from the local key store, not external input
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to read personal key")
	}
	if !key.PassphraseEncrypted {
		return &Signer{KeyID: key.PublicKeyID, PrivateKey: data}, nil
	}
	priv, err := keystore.DecryptPrivateKey(data, passphrase)
	if err != nil {
		return nil, err
	}
	return &Signer{KeyID: key.PublicKeyID, PrivateKey: priv}, nil
}
