package pmtiles

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaderReport(t *testing.T) {
	archive := buildFixtureArchive(t, map[Zxy][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("root tile"),
	}, map[string]any{"name": "describe-fixture"})

	reader, err := NewReader(context.Background(), &memRangeReader{data: archive})
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteHeaderReport(&buf, reader.Header()))
	out := buf.String()
	assert.Contains(t, out, "tile type: mvt")
	assert.Contains(t, out, "tile compression:")
	assert.Contains(t, out, "addressed tiles count: 1")
}

func TestWriteHeaderJSON(t *testing.T) {
	archive := buildFixtureArchive(t, map[Zxy][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("root tile"),
	}, map[string]any{"name": "describe-fixture"})

	reader, err := NewReader(context.Background(), &memRangeReader{data: archive})
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteHeaderJSON(&buf, reader.Header()))

	var decoded HeaderDescription
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "mvt", decoded.TileType)
	assert.Equal(t, uint64(1), decoded.AddressedTilesCount)
}

func TestWriteMetadataReport(t *testing.T) {
	archive := buildFixtureArchive(t, map[Zxy][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("root tile"),
	}, map[string]any{"generator": "tippecanoe v2.5.0", "vector_layers": []string{"a", "b"}})

	reader, err := NewReader(context.Background(), &memRangeReader{data: archive})
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteMetadataReport(context.Background(), &buf, reader))
	out := buf.String()
	assert.True(t, strings.Contains(out, "generator tippecanoe v2.5.0"))
	assert.True(t, strings.Contains(out, "vector_layers <object...>"))
}

func TestWriteTile(t *testing.T) {
	archive := buildFixtureArchive(t, map[Zxy][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("root tile payload"),
	}, nil)

	reader, err := NewReader(context.Background(), &memRangeReader{data: archive})
	require.NoError(t, err)
	defer reader.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteTile(context.Background(), &buf, reader, 0, 0, 0))
	assert.Equal(t, "root tile payload", buf.String())

	err = WriteTile(context.Background(), &buf, reader, 5, 0, 0)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}
