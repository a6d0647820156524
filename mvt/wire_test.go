package mvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireReaderTagAndVarint(t *testing.T) {
	w := newWireWriter()
	w.putUvarintField(3, 150)
	r := newWireReader(w.buf)
	field, wt, err := r.tag()
	require.NoError(t, err)
	assert.Equal(t, 3, field)
	assert.Equal(t, wireVarint, wt)
	v, err := r.uvarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), v)
	assert.True(t, r.done())
}

func TestWireReaderBytesField(t *testing.T) {
	w := newWireWriter()
	w.putBytesField(2, []byte("hello"))
	r := newWireReader(w.buf)
	_, wt, err := r.tag()
	require.NoError(t, err)
	assert.Equal(t, wireBytes, wt)
	b, err := r.bytesField()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestWireReaderPackedUvarints(t *testing.T) {
	w := newWireWriter()
	w.putPackedUvarints(4, []uint64{9, 4, 6})
	r := newWireReader(w.buf)
	_, _, err := r.tag()
	require.NoError(t, err)
	vals, err := r.packedUvarints()
	require.NoError(t, err)
	assert.Equal(t, []uint64{9, 4, 6}, vals)
}

func TestWireReaderSkipsUnknownFields(t *testing.T) {
	w := newWireWriter()
	w.putUvarintField(99, 42)
	w.putBytesField(1, []byte("kept"))
	r := newWireReader(w.buf)

	field, wt, err := r.tag()
	require.NoError(t, err)
	assert.Equal(t, 99, field)
	require.NoError(t, r.skip(wt))

	field, wt, err = r.tag()
	require.NoError(t, err)
	assert.Equal(t, 1, field)
	b, err := r.bytesField()
	require.NoError(t, err)
	assert.Equal(t, "kept", string(b))
}

func TestWireReaderTruncatedVarintErrors(t *testing.T) {
	r := newWireReader([]byte{0x80, 0x80, 0x80})
	_, err := r.uvarint()
	require.Error(t, err)
}

func TestBoundedWireWriterOverflow(t *testing.T) {
	w := newBoundedWireWriter(2)
	w.putBytesField(1, []byte("way too long for two bytes"))
	assert.True(t, w.overflowed())
}

func TestZigzagRoundTrip32(t *testing.T) {
	for _, n := range []int32{0, 1, -1, 2, -2, 1000000, -1000000} {
		assert.Equal(t, n, zigzagDecode32(zigzagEncode32(n)))
	}
}

func TestZigzagRoundTrip64(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		assert.Equal(t, n, zigzagDecode64(zigzagEncode64(n)))
	}
}

func TestZigzagKnownEncoding(t *testing.T) {
	// packCommand(MoveTo, 1), zigzag(2), zigzag(3) == [9, 4, 6], scenario 7.
	assert.Equal(t, uint32(9), packCommand(cmdMoveTo, 1))
	assert.Equal(t, uint64(4), zigzagEncode32(2))
	assert.Equal(t, uint64(6), zigzagEncode32(3))
}
