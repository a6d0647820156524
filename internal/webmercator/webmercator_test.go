package webmercator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLonLatToTileOrigin(t *testing.T) {
	x, y := LonLatToTile(0, 0, 1)
	assert.Equal(t, uint32(1), x)
	assert.Equal(t, uint32(1), y)
}

func TestLonLatToTileCornersZoomZero(t *testing.T) {
	x, y := LonLatToTile(-180, MaxLatitude, 0)
	assert.Equal(t, uint32(0), x)
	assert.Equal(t, uint32(0), y)

	x, y = LonLatToTile(179.9, -MaxLatitude, 0)
	assert.Equal(t, uint32(0), x)
	assert.Equal(t, uint32(0), y)
}

func TestLonLatToTileClampsPoles(t *testing.T) {
	x, y := LonLatToTile(0, 90, 4)
	assert.Equal(t, uint32(8), x)
	assert.Equal(t, uint32(0), y)

	x, y = LonLatToTile(0, -90, 4)
	assert.Equal(t, uint32(8), x)
	assert.Equal(t, uint32(15), y)
}

func TestTileBoundsRoundTrip(t *testing.T) {
	minLon, minLat, maxLon, maxLat := TileBounds(2, 2, 1)
	assert.InDelta(t, 0, minLon, 1e-9)
	assert.InDelta(t, 90, maxLon, 1e-9)
	assert.Greater(t, maxLat, minLat)

	cx, cy := LonLatToTile((minLon+maxLon)/2, (minLat+maxLat)/2, 2)
	assert.Equal(t, uint32(2), cx)
	assert.Equal(t, uint32(1), cy)
}

func TestTileBoundsAdjacentTilesShareEdges(t *testing.T) {
	_, tile0MinLat, _, _ := TileBounds(3, 0, 0)
	_, _, _, tile1MaxLat := TileBounds(3, 0, 1)
	assert.InDelta(t, tile0MinLat, tile1MaxLat, 1e-9)
}

func TestExtentToLonLatCorners(t *testing.T) {
	transform := ExtentToLonLat(2, 2, 1, 4096)
	minLon, minLat, maxLon, maxLat := TileBounds(2, 2, 1)

	lon, lat := transform(0, 0)
	assert.InDelta(t, minLon, lon, 1e-9)
	assert.InDelta(t, maxLat, lat, 1e-9)

	lon, lat = transform(4096, 4096)
	assert.InDelta(t, maxLon, lon, 1e-9)
	assert.InDelta(t, minLat, lat, 1e-9)
}
