package pmtiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundtrip(t *testing.T) {
	header := HeaderV3{}
	header.RootOffset = 1
	header.RootLength = 2
	header.MetadataOffset = 3
	header.MetadataLength = 4
	header.LeafDirectoryOffset = 5
	header.LeafDirectoryLength = 6
	header.TileDataOffset = 7
	header.TileDataLength = 8
	header.AddressedTilesCount = 9
	header.TileEntriesCount = 10
	header.TileContentsCount = 11
	header.Clustered = true
	header.InternalCompression = Gzip
	header.TileCompression = Brotli
	header.TileType = Mvt
	header.MinZoom = 1
	header.MaxZoom = 2
	header.MinLonE7 = 11000000
	header.MinLatE7 = 21000000
	header.MaxLonE7 = 12000000
	header.MaxLatE7 = 22000000
	header.CenterZoom = 3
	header.CenterLonE7 = 31000000
	header.CenterLatE7 = 32000000

	b := serializeHeader(header)
	require.Equal(t, HeaderV3LenBytes, len(b))
	result, err := deserializeHeader(b)
	require.NoError(t, err)

	assert.Equal(t, uint8(3), result.SpecVersion)
	assert.Equal(t, uint64(1), result.RootOffset)
	assert.Equal(t, uint64(2), result.RootLength)
	assert.Equal(t, uint64(3), result.MetadataOffset)
	assert.Equal(t, uint64(4), result.MetadataLength)
	assert.Equal(t, uint64(5), result.LeafDirectoryOffset)
	assert.Equal(t, uint64(6), result.LeafDirectoryLength)
	assert.Equal(t, uint64(7), result.TileDataOffset)
	assert.Equal(t, uint64(8), result.TileDataLength)
	assert.Equal(t, uint64(9), result.AddressedTilesCount)
	assert.Equal(t, uint64(10), result.TileEntriesCount)
	assert.Equal(t, uint64(11), result.TileContentsCount)
	assert.True(t, result.Clustered)
	assert.Equal(t, Gzip, result.InternalCompression)
	assert.Equal(t, Brotli, result.TileCompression)
	assert.Equal(t, Mvt, result.TileType)
	assert.Equal(t, uint8(1), result.MinZoom)
	assert.Equal(t, uint8(2), result.MaxZoom)
	assert.Equal(t, int32(11000000), result.MinLonE7)
	assert.Equal(t, int32(21000000), result.MinLatE7)
	assert.Equal(t, int32(12000000), result.MaxLonE7)
	assert.Equal(t, int32(22000000), result.MaxLatE7)
	assert.Equal(t, uint8(3), result.CenterZoom)
	assert.Equal(t, int32(31000000), result.CenterLonE7)
	assert.Equal(t, int32(32000000), result.CenterLatE7)
	assert.NotEmpty(t, result.Etag)
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	b := make([]byte, HeaderV3LenBytes)
	copy(b, "NOTMAGIC")
	_, err := deserializeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidFormat))
}

func TestHeaderRejectsShortBuffer(t *testing.T) {
	_, err := deserializeHeader(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidFormat))
}

func TestHeaderRejectsUnsupportedVersion(t *testing.T) {
	b := make([]byte, HeaderV3LenBytes)
	copy(b, "PMTiles")
	b[7] = 2
	_, err := deserializeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidFormat))
}

func TestHeaderJSON(t *testing.T) {
	header := HeaderV3{}
	header.TileCompression = Brotli
	header.TileType = Mvt
	header.MinZoom = 1
	header.MaxZoom = 3
	header.MinLonE7 = 11000000
	header.MinLatE7 = 21000000
	header.MaxLonE7 = 12000000
	header.MaxLatE7 = 22000000
	header.CenterZoom = 2
	header.CenterLonE7 = 31000000
	header.CenterLatE7 = 32000000

	j := header.JSON()
	assert.Equal(t, "brotli", j.TileCompression)
	assert.Equal(t, "mvt", j.TileType)
	assert.Equal(t, 1, j.MinZoom)
	assert.Equal(t, 3, j.MaxZoom)
	assert.InDelta(t, 1.1, j.Bounds[0], 1e-9)
	assert.InDelta(t, 2.1, j.Bounds[1], 1e-9)
	assert.InDelta(t, 1.2, j.Bounds[2], 1e-9)
	assert.InDelta(t, 2.2, j.Bounds[3], 1e-9)
	assert.InDelta(t, 3.1, j.Center[0], 1e-9)
	assert.InDelta(t, 3.2, j.Center[1], 1e-9)
}
