package pmtiles

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

type blockKey struct {
	offset uint64
	length uint32
}

// CachedRangeReader decorates a RangeReader with a bounded, access-frequency
// aware cache (ristretto, grounded on iwpnd-pmtilr/cache.go) keyed by
// (offset, length). Concurrent misses on the same key coalesce through
// golang.org/x/sync/singleflight rather than each issuing a redundant read
// to the inner reader — the same request-coalescing idea as the teacher's
// server.go inflight map, translated from its single-goroutine channel
// actor to singleflight since blocks, unlike directories, carry no shared
// eviction-order state that needs a single owner.
type CachedRangeReader struct {
	inner RangeReader
	cache *ristretto.Cache[blockKey, []byte]
	group singleflight.Group
}

// NewCachedRangeReader wraps inner with a cache sized for approximately
// maxBytes of cached block data.
func NewCachedRangeReader(inner RangeReader, maxBytes int64) (*CachedRangeReader, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[blockKey, []byte]{
		NumCounters: maxBytes / 100, // ristretto's own heuristic: ~10x the expected entry count
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, newError(InvalidArgument, "constructing block cache", err)
	}
	return &CachedRangeReader{inner: inner, cache: cache}, nil
}

func (r *CachedRangeReader) ReadRange(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	if len(dst) < int(length) {
		return 0, newError(InvalidArgument, "destination buffer smaller than requested length", nil)
	}
	key := blockKey{offset: offset, length: length}

	if cached, ok := r.cache.Get(key); ok {
		return copy(dst[:length], cached), nil
	}

	groupKey := fmt.Sprintf("%d:%d", offset, length)
	v, err, _ := r.group.Do(groupKey, func() (interface{}, error) {
		block := make([]byte, length)
		n, err := r.inner.ReadRange(ctx, offset, length, block)
		if err != nil {
			return nil, err
		}
		block = block[:n]
		r.cache.Set(key, block, int64(n))
		return block, nil
	})
	if err != nil {
		return 0, err
	}
	block := v.([]byte)
	return copy(dst[:length], block), nil
}

func (r *CachedRangeReader) Size(ctx context.Context) (uint64, error) {
	return r.inner.Size(ctx)
}

func (r *CachedRangeReader) Close() error {
	r.cache.Close()
	return r.inner.Close()
}
