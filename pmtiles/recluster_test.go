package pmtiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildUnclusteredFixture(t *testing.T) []byte {
	t.Helper()
	out := &memWriterAt{}
	w := NewWriter(out,
		WithTileCompression(NoCompression),
		WithZoomRange(0, 1),
		WithClustered(false),
		WithBounds(-10, -10, 10, 10),
		WithCenter(0, 0, 0),
	)
	require.NoError(t, w.SetMetadata(map[string]any{"name": "unclustered-fixture"}))
	require.NoError(t, w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, []byte("root")))
	firstID := firstIDAtZoom(1)
	for i := uint64(0); i < 3; i++ {
		_, x, y := IDToZxy(firstID + i)
		require.NoError(t, w.AddTile(Zxy{Z: 1, X: x, Y: y}, []byte("leaf")))
	}
	_, err := w.Complete(context.Background())
	require.NoError(t, err)
	return out.buf
}

func TestReclusterRejectsAlreadyClustered(t *testing.T) {
	archive := buildFixtureArchive(t, map[Zxy][]byte{
		{Z: 0, X: 0, Y: 0}: []byte("tile"),
	}, nil)

	out := &memWriterAt{}
	_, err := Recluster(context.Background(), &memRangeReader{data: archive}, out)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestReclusterPreservesTilesAndMetadata(t *testing.T) {
	src := buildUnclusteredFixture(t)

	out := &memWriterAt{}
	header, err := Recluster(context.Background(), &memRangeReader{data: src}, out)
	require.NoError(t, err)
	assert.True(t, header.Clustered)
	assert.Equal(t, uint64(4), header.AddressedTilesCount)

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	data, ok, err := reader.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "root", string(data))

	m, err := reader.MetadataJSON(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unclustered-fixture", m["name"])
}
