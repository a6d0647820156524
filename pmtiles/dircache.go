package pmtiles

import (
	"container/list"
	"context"
)

// dirCacheKey identifies a directory (or the root) by its byte range within
// the archive. Callers pass absolute offsets: the root directory is keyed by
// the header's root offset/length, leaves by the leaf section offset plus the
// entry's offset.
type dirCacheKey struct {
	offset uint64
	length uint64
}

type dirRequest struct {
	key   dirCacheKey
	value chan dirCacheValue
}

type dirCacheValue struct {
	entries []EntryV3
	ok      bool
}

type dirResponse struct {
	key   dirCacheKey
	value dirCacheValue
	size  int
	ok    bool
}

// dirFetcher retrieves and deserializes the raw bytes for a directory at the
// given offset/length. It is supplied by Reader, which knows the archive's
// RangeReader and internal compression.
type dirFetcher func(ctx context.Context, offset, length uint64) ([]EntryV3, error)

// dirCache is a bounded, single-goroutine-owned directory cache, grounded on
// the teacher's server.go request-coalescing design: one goroutine owns the
// cache map, the in-flight map, and the LRU eviction list, so concurrent
// lookups for the same directory share a single fetch instead of racing.
// Unlike the teacher's multi-tenant version, a dirCache belongs to exactly
// one archive, so requests carry no name or etag-purge fields.
type dirCache struct {
	reqs     chan dirRequest
	fetch    dirFetcher
	maxBytes int
	metrics  *Metrics
}

func newDirCache(maxBytes int, fetch dirFetcher, metrics *Metrics) *dirCache {
	c := &dirCache{
		reqs:     make(chan dirRequest, 8),
		fetch:    fetch,
		maxBytes: maxBytes,
		metrics:  metrics,
	}
	metrics.initCacheStats(maxBytes)
	go c.run()
	return c
}

func (c *dirCache) run() {
	cache := make(map[dirCacheKey]*list.Element)
	inflight := make(map[dirCacheKey][]dirRequest)
	resps := make(chan dirResponse, 8)
	evictList := list.New()
	totalSize := 0
	ctx := context.Background()

	for {
		select {
		case req, open := <-c.reqs:
			if !open {
				return
			}
			key := req.key
			if val, ok := cache[key]; ok {
				c.metrics.cacheRequest("hit")
				evictList.MoveToFront(val)
				req.value <- val.Value.(*dirResponse).value
			} else if _, ok := inflight[key]; ok {
				c.metrics.cacheRequest("miss")
				inflight[key] = append(inflight[key], req)
			} else {
				c.metrics.cacheRequest("miss")
				inflight[key] = []dirRequest{req}
				go func() {
					entries, err := c.fetch(ctx, key.offset, key.length)
					if err != nil {
						resps <- dirResponse{key: key, value: dirCacheValue{ok: false}, ok: false}
						return
					}
					resps <- dirResponse{
						key:   key,
						value: dirCacheValue{entries: entries, ok: true},
						size:  24 * len(entries),
						ok:    true,
					}
				}()
			}
		case resp := <-resps:
			key := resp.key
			for _, waiter := range inflight[key] {
				waiter.value <- resp.value
			}
			delete(inflight, key)

			if resp.ok {
				totalSize += resp.size
				r := resp
				entry := evictList.PushFront(&r)
				cache[key] = entry

				for totalSize > c.maxBytes {
					back := evictList.Back()
					if back == nil {
						break
					}
					evictList.Remove(back)
					kv := back.Value.(*dirResponse)
					delete(cache, kv.key)
					totalSize -= kv.size
				}
				c.metrics.updateCacheStats(totalSize, len(cache))
			}
		}
	}
}

// get looks up (or fetches and caches) the directory entries for the given
// byte range, blocking until the owning goroutine resolves it.
func (c *dirCache) get(ctx context.Context, offset, length uint64) ([]EntryV3, error) {
	req := dirRequest{key: dirCacheKey{offset: offset, length: length}, value: make(chan dirCacheValue, 1)}
	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-req.value:
		if !v.ok {
			return nil, newError(TransportFailure, "failed to fetch directory", nil)
		}
		return v.entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *dirCache) close() {
	close(c.reqs)
}
