package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wapm-community/wapm/internal/werror"
)

// ArchiveType and CompressionType are the two bytes of the 4-byte custom
// WASM section header described in spec section 6, bundled alongside a
// package's fs mounts so runtime consumers can tell how to unpack them
// without re-deriving it from file extension sniffing.
type ArchiveType byte

const (
	ArchiveTypeTar ArchiveType = iota
)

type CompressionType byte

const (
	CompressionNone CompressionType = iota
	CompressionGzip
)

// SectionHeader encodes the 4-byte header: archive type, compression
// type, 2 reserved zero bytes.
func SectionHeader(archive ArchiveType, compression CompressionType) [4]byte {
	return [4]byte{byte(archive), byte(compression), 0, 0}
}

// ParseSectionHeader decodes a 4-byte custom section header.
func ParseSectionHeader(b [4]byte) (ArchiveType, CompressionType, error) {
	if b[2] != 0 || b[3] != 0 {
		return 0, 0, werror.New(werror.KindManifest, "custom section header reserved bytes must be zero")
	}
	return ArchiveType(b[0]), CompressionType(b[1]), nil
}

// fsSectionName is the WASM custom section name a bundled `fs` payload is
// stored under, per spec section 6.
const fsSectionName = "wapm_fs"

// buildFSCustomSection packages dir's fs mounts into a gzip-compressed tar,
// prefixes it with the 4-byte archive header, and wraps the result in a
// WASM custom section ready to append to a module's bytecode. Returns nil
// if the manifest declares no fs mounts.
func buildFSCustomSection(dir string, mounts map[string]string) ([]byte, error) {
	if len(mounts) == 0 {
		return nil, nil
	}

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for mountPath, hostPath := range mounts {
		data, err := os.ReadFile(filepath.Join(dir, hostPath)) // #nosec G304 -- hostPath comes from the author's own manifest
		if err != nil {
			return nil, werror.Wrapf(werror.KindManifest, err, "fs mount %q source is not readable", mountPath)
		}
		if err := tw.WriteHeader(&tar.Header{Name: mountPath, Size: int64(len(data)), Mode: 0o644}); err != nil {
			return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to write fs bundle header")
		}
		if _, err := tw.Write(data); err != nil {
			return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to write fs bundle entry")
		}
	}
	if err := tw.Close(); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to finalize fs bundle")
	}

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write(tarBuf.Bytes()); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to compress fs bundle")
	}
	if err := gw.Close(); err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to finalize fs bundle compression")
	}

	header := SectionHeader(ArchiveTypeTar, CompressionGzip)
	payload := append(header[:], gz.Bytes()...)
	return wasmCustomSection(fsSectionName, payload), nil
}

// wasmCustomSection encodes a WASM binary custom section: the section id
// (0x00), its ULEB128-encoded byte length, the ULEB128-prefixed section
// name, then the raw payload.
func wasmCustomSection(name string, payload []byte) []byte {
	var body bytes.Buffer
	body.Write(uleb128(uint64(len(name))))
	body.WriteString(name)
	body.Write(payload)

	var section bytes.Buffer
	section.WriteByte(0x00)
	section.Write(uleb128(uint64(body.Len())))
	section.Write(body.Bytes())
	return section.Bytes()
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// maybeGunzip transparently decodes gzip-compressed content; archives
// downloaded without Content-Encoding: gzip are passed through unchanged
// (spec section 4.F step 3: "decode only if present").
func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, werror.Wrap(werror.KindFilesystemIO, err, "failed to decompress archive")
	}
	defer func() { _ = gr.Close() }()
	return io.ReadAll(gr)
}

// extractTar extracts a tar archive into destDir, rejecting any entry
// whose normalized path escapes destDir (spec section 4.F step 5 and the
// "Archive safety" law of spec section 8).
func extractTar(data []byte, destDir string) error {
	tr := tar.NewReader(bytes.NewReader(data))

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return werror.Wrap(werror.KindFilesystemIO, err, "failed to read archive entry")
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to create directory from archive")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to create parent directory")
			}
			// #nosec G304 -- target was validated against destDir by safeJoin
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode(hdr.Mode))
			if err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to create file from archive")
			}
			if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // size is bounded by the archive's own declared entries
				_ = f.Close()
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to write file from archive")
			}
			if err := f.Close(); err != nil {
				return werror.Wrap(werror.KindFilesystemIO, err, "failed to close extracted file")
			}
		case tar.TypeSymlink:
			return werror.Newf(werror.KindFilesystemIO, "archive entry %q is a symlink, which is not permitted", hdr.Name)
		}
	}
}

// safeJoin joins base and rel, rejecting any result that normalizes
// outside base.
func safeJoin(base, rel string) (string, error) {
	cleanBase := filepath.Clean(base)
	target := filepath.Join(cleanBase, rel)
	if !strings.HasPrefix(target, cleanBase+string(filepath.Separator)) && target != cleanBase {
		return "", werror.Newf(werror.KindFilesystemIO, "archive entry %q escapes the extraction root", rel)
	}
	return target, nil
}

func fileMode(mode int64) os.FileMode {
	m := os.FileMode(mode) & 0o777 //nolint:gosec // tar mode bits are small, truncation is intentional
	if m == 0 {
		return 0o644
	}
	return m
}
