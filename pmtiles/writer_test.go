package pmtiles

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memWriterAt is an in-memory io.WriterAt, growing as needed, used so
// writer tests don't need a real file.
type memWriterAt struct {
	buf []byte
}

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

func TestWriterSingleTileRoundTrip(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 0))

	require.NoError(t, w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, []byte("Sample tile data")))
	header, err := w.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), header.AddressedTilesCount)

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	data, ok, err := reader.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sample tile data", string(data))

	_, ok, err = reader.GetTile(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriterDedup(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 1))

	require.NoError(t, w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, []byte("A")))
	require.NoError(t, w.AddTile(Zxy{Z: 1, X: 0, Y: 0}, []byte("B")))
	require.NoError(t, w.AddTile(Zxy{Z: 1, X: 0, Y: 1}, []byte("A")))

	header, err := w.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), header.AddressedTilesCount)
	assert.Equal(t, uint64(2), header.TileContentsCount)

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	a1, ok, err := reader.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", string(a1))

	b, ok, err := reader.GetTile(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", string(b))

	a2, ok, err := reader.GetTile(context.Background(), 1, 0, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", string(a2))
}

func TestWriterRunLength(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 2))

	firstID := firstIDAtZoom(2)
	var coords [4]Zxy
	for i := uint64(0); i < 4; i++ {
		_, x, y := IDToZxy(firstID + i)
		coords[i] = Zxy{Z: 2, X: x, Y: y}
		require.NoError(t, w.AddTile(coords[i], []byte("X")))
	}
	header, err := w.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), header.AddressedTilesCount)
	assert.Equal(t, uint64(1), header.TileContentsCount)
	assert.Equal(t, uint64(1), header.TileEntriesCount)

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	for _, zxy := range coords {
		data, ok, err := reader.GetTile(context.Background(), zxy.Z, zxy.X, zxy.Y)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "X", string(data))
	}
}

func TestWriterRejectsOutOfOrderTiles(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithZoomRange(0, 2))

	require.NoError(t, w.AddTile(Zxy{Z: 2, X: 1, Y: 1}, []byte("a")))
	err := w.AddTile(Zxy{Z: 1, X: 0, Y: 0}, []byte("b"))
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestWriterRejectsEmptyPayload(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out)
	err := w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestWriterRejectsOutOfBoundsCoordinates(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithZoomRange(0, 1))

	err := w.AddTile(Zxy{Z: 1, X: 99, Y: 0}, []byte("a"))
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))

	err = w.AddTile(Zxy{Z: 1, X: 0, Y: 99}, []byte("a"))
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestWriterMetadataRoundTrip(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 0))
	require.NoError(t, w.SetMetadata(map[string]any{"name": "test-archive"}))
	require.NoError(t, w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, []byte("tile")))
	_, err := w.Complete(context.Background())
	require.NoError(t, err)

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	m, err := reader.MetadataJSON(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-archive", m["name"])
}

func TestWriterCancellationDuringComplete(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 0), WithProgressObserver(cancelAtHalf{}))
	require.NoError(t, w.AddTile(Zxy{Z: 0, X: 0, Y: 0}, []byte("tile")))

	_, err := w.Complete(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, Cancelled))
}

type cancelAtHalf struct{}

func (cancelAtHalf) OnProgress(fraction float64) bool {
	return fraction >= 0.5
}

func TestWriterLargeDirectoryPartitions(t *testing.T) {
	out := &memWriterAt{}
	w := NewWriter(out, WithTileCompression(NoCompression), WithZoomRange(0, 12), WithRootMaxBytes(1024))

	firstID := firstIDAtZoom(12)
	var buf bytes.Buffer
	var lastX, lastY uint32
	for i := uint64(0); i < 2000; i++ {
		_, x, y := IDToZxy(firstID + i)
		lastX, lastY = x, y
		buf.Reset()
		buf.WriteString("tile-payload-")
		buf.WriteByte(byte(i % 251))
		require.NoError(t, w.AddTile(Zxy{Z: 12, X: x, Y: y}, append([]byte(nil), buf.Bytes()...)))
	}
	header, err := w.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), header.AddressedTilesCount)
	assert.Greater(t, header.LeafDirectoryLength, uint64(0))

	reader, err := NewReader(context.Background(), &memRangeReader{data: out.buf})
	require.NoError(t, err)
	defer reader.Close()

	data, ok, err := reader.GetTile(context.Background(), 12, lastX, lastY)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "tile-payload-")
}
