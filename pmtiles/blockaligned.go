package pmtiles

import "context"

// BlockAlignedReader rounds every request out to blockSize-aligned
// boundaries before delegating, so a caching decorator layered on top sees
// a small, repeating set of block keys instead of one distinct key per
// byte-exact request. blockSize must be a power of two.
type BlockAlignedReader struct {
	inner     RangeReader
	blockSize uint64
}

// NewBlockAlignedReader wraps inner, rounding requests to blockSize-aligned
// windows. blockSize must be a power of two; a non-power-of-two value is a
// programmer error.
func NewBlockAlignedReader(inner RangeReader, blockSize uint64) (*BlockAlignedReader, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return nil, newError(InvalidArgument, "block size must be a power of two", nil)
	}
	return &BlockAlignedReader{inner: inner, blockSize: blockSize}, nil
}

func (r *BlockAlignedReader) alignedWindow(offset uint64, length uint32) (uint64, uint32) {
	mask := r.blockSize - 1
	alignedOffset := offset &^ mask
	end := offset + uint64(length)
	alignedEnd := (end + mask) &^ mask
	return alignedOffset, uint32(alignedEnd - alignedOffset)
}

func (r *BlockAlignedReader) ReadRange(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	if len(dst) < int(length) {
		return 0, newError(InvalidArgument, "destination buffer smaller than requested length", nil)
	}
	alignedOffset, alignedLength := r.alignedWindow(offset, length)
	block := make([]byte, alignedLength)
	n, err := r.inner.ReadRange(ctx, alignedOffset, alignedLength, block)
	if err != nil {
		return 0, err
	}
	start := offset - alignedOffset
	end := start + uint64(length)
	if uint64(n) < end {
		end = uint64(n) // the source ends inside the requested window
	}
	if end <= start {
		return 0, nil
	}
	return copy(dst[:length], block[start:end]), nil
}

func (r *BlockAlignedReader) Size(ctx context.Context) (uint64, error) {
	return r.inner.Size(ctx)
}

func (r *BlockAlignedReader) Close() error {
	return r.inner.Close()
}
