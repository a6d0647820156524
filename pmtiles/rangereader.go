package pmtiles

import "context"

// RangeReader is a pull-based, byte-addressable source: given an offset and
// length it returns that many bytes, or an error. A read that runs past the
// end of the source returns only the bytes that exist (0 when offset is at or
// beyond the end). Implementations
// must be safe for concurrent use; callers routinely issue overlapping
// ReadRange calls for directory lookups and tile fetches.
type RangeReader interface {
	// ReadRange fills dst[:length] with the bytes at [offset, offset+length)
	// and returns the number of bytes written, which is less than length
	// when the range extends past the end of the source. dst must have length >=
	// length; callers size it with the buffer pool.
	ReadRange(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error)

	// Size returns the total addressable length of the underlying source.
	Size(ctx context.Context) (uint64, error)

	Close() error
}

// readRangeAlloc is a convenience for callers that don't already hold a
// destination buffer; it allocates one sized exactly to length.
func readRangeAlloc(ctx context.Context, r RangeReader, offset uint64, length uint32) ([]byte, error) {
	dst := make([]byte, length)
	n, err := r.ReadRange(ctx, offset, length, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
