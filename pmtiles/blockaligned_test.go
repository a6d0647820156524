package pmtiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRangeReader struct {
	data  []byte
	calls []blockKey
}

func (f *fakeRangeReader) ReadRange(_ context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	f.calls = append(f.calls, blockKey{offset, length})
	end := offset + uint64(length)
	if end > uint64(len(f.data)) {
		return 0, newError(TransportFailure, "out of range", nil)
	}
	return copy(dst[:length], f.data[offset:end]), nil
}

func (f *fakeRangeReader) Size(context.Context) (uint64, error) { return uint64(len(f.data)), nil }
func (f *fakeRangeReader) Close() error                         { return nil }

func TestBlockAlignedReaderAlignsRequests(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	inner := &fakeRangeReader{data: data}
	r, err := NewBlockAlignedReader(inner, 16)
	require.NoError(t, err)

	dst := make([]byte, 5)
	n, err := r.ReadRange(context.Background(), 10, 5, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, data[10:15], dst)

	require.Len(t, inner.calls, 1)
	assert.Equal(t, uint64(0), inner.calls[0].offset)
	assert.Equal(t, uint32(16), inner.calls[0].length)
}

func TestBlockAlignedReaderRejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewBlockAlignedReader(&fakeRangeReader{}, 15)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}
