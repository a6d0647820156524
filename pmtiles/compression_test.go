package pmtiles

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundtrip(t *testing.T) {
	raw := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, repeated for compressibility")

	for _, c := range []Compression{NoCompression, Gzip, Zstd} {
		compressed, err := compressBytes(raw, c)
		require.NoError(t, err, c)
		out, err := decompressBytes(compressed, c)
		require.NoError(t, err, c)
		assert.Equal(t, raw, out, c)
	}
}

func TestCompressBrotliEncodeUnsupported(t *testing.T) {
	_, err := compressBytes([]byte("x"), Brotli)
	require.Error(t, err)
	assert.True(t, IsKind(err, UnsupportedCompression))
}

func TestGzipProducesValidStream(t *testing.T) {
	compressed, err := compressBytes([]byte("hello"), Gzip)
	require.NoError(t, err)
	_, err = gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
}
