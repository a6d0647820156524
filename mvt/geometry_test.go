package mvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackCommand(t *testing.T) {
	packed := packCommand(cmdLineTo, 17)
	id, count := unpackCommand(packed)
	assert.Equal(t, uint32(cmdLineTo), id)
	assert.Equal(t, uint32(17), count)
}

func TestDecodePartsUnknownCommandErrors(t *testing.T) {
	_, err := decodeParts([]uint64{packUint(99, 1)}, nil, orbFactory{})
	require.Error(t, err)
}

func TestDecodePartsTruncatedStreamErrors(t *testing.T) {
	// MoveTo declares one coordinate pair but the stream is cut short.
	_, err := decodeParts([]uint64{uint64(packCommand(cmdMoveTo, 1)), 4}, nil, orbFactory{})
	require.Error(t, err)
}

func TestRingAreaDegenerate(t *testing.T) {
	r := ring{coords: [][2]float64{{0, 0}, {1, 1}}}
	assert.Equal(t, float64(0), r.area())
}

func packUint(id, count uint32) uint64 {
	return uint64(packCommand(id, count))
}
