package pmtiles

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCacheReportsHitsAndMisses(t *testing.T) {
	metrics := NewMetrics("pmtiles_test_dircache", nil)

	fetches := 0
	fetch := func(ctx context.Context, offset, length uint64) ([]EntryV3, error) {
		fetches++
		return []EntryV3{{TileID: offset, RunLength: 1}}, nil
	}

	cache := newDirCache(1<<20, fetch, metrics)
	defer cache.close()

	_, err := cache.get(context.Background(), 0, 10)
	require.NoError(t, err)
	_, err = cache.get(context.Background(), 0, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, fetches)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.dirCacheRequests.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.dirCacheRequests.WithLabelValues("hit")))
}

func TestDirCacheWithNilMetricsDoesNotPanic(t *testing.T) {
	fetch := func(ctx context.Context, offset, length uint64) ([]EntryV3, error) {
		return []EntryV3{{TileID: offset, RunLength: 1}}, nil
	}
	cache := newDirCache(1<<20, fetch, nil)
	defer cache.close()

	_, err := cache.get(context.Background(), 0, 10)
	require.NoError(t, err)
}

func TestInstrumentedRangeReaderCountsRequests(t *testing.T) {
	metrics := NewMetrics("pmtiles_test_range", nil)
	inner := &memRangeReader{data: []byte("abcdefghij")}
	instrumented := NewInstrumentedRangeReader(inner, metrics)

	dst := make([]byte, 4)
	n, err := instrumented.ReadRange(context.Background(), 0, 4, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(dst))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rangeRequests.WithLabelValues("ok")))
}
