package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestSectionHeaderRoundTrip(t *testing.T) {
	hdr := SectionHeader(ArchiveTypeTar, CompressionGzip)
	archive, compression, err := ParseSectionHeader(hdr)
	require.NoError(t, err)
	assert.Equal(t, ArchiveTypeTar, archive)
	assert.Equal(t, CompressionGzip, compression)
}

func TestParseSectionHeaderRejectsNonZeroReserved(t *testing.T) {
	_, _, err := ParseSectionHeader([4]byte{0, 0, 1, 0})
	assert.Error(t, err)
}

func TestMaybeGunzipPassesThroughPlainData(t *testing.T) {
	data := []byte("not gzip")
	out, err := maybeGunzip(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestMaybeGunzipDecodes(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	out, err := maybeGunzip(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestExtractTarWritesFiles(t *testing.T) {
	dir := t.TempDir()
	archive := buildTar(t, map[string]string{"module.wasm": "binary", "sub/readme.txt": "hi"})

	require.NoError(t, extractTar(archive, dir))

	data, err := os.ReadFile(filepath.Join(dir, "module.wasm"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "sub/readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestExtractTarRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	archive := buildTar(t, map[string]string{"../escape.txt": "bad"})

	err := extractTar(archive, dir)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractTarRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "link",
		Typeflag: tar.TypeSymlink,
		Linkname: "/etc/passwd",
	}))
	require.NoError(t, tw.Close())

	err := extractTar(buf.Bytes(), dir)
	assert.Error(t, err)
}

func TestSafeJoinRejectsEscape(t *testing.T) {
	_, err := safeJoin("/base", "../../etc/passwd")
	assert.Error(t, err)
}

func TestSafeJoinAllowsNested(t *testing.T) {
	target, err := safeJoin("/base", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/base", "a/b.txt"), target)
}
