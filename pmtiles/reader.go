package pmtiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"golang.org/x/sync/errgroup"
)

const defaultDirCacheBytes = 64 * 1000 * 1000

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	dirCacheBytes int
	concurrency   int
	metrics       *Metrics
}

// WithDirectoryCacheBytes bounds the directory cache's approximate memory
// footprint, counted the same way the teacher's server does: 24 bytes per
// cached EntryV3.
func WithDirectoryCacheBytes(n int) ReaderOption {
	return func(c *readerConfig) { c.dirCacheBytes = n }
}

// WithTileFetchConcurrency bounds how many tiles GetTilesInRange fetches at once.
func WithTileFetchConcurrency(n int) ReaderOption {
	return func(c *readerConfig) { c.concurrency = n }
}

// WithMetrics attaches a prometheus-backed Metrics instance to the reader's
// directory cache. Nil (the default) disables reporting entirely.
func WithMetrics(m *Metrics) ReaderOption {
	return func(c *readerConfig) { c.metrics = m }
}

// Reader serves tiles and metadata out of a single PMTiles v3 archive
// reachable through a RangeReader. It owns a directory cache backed by a
// single goroutine (dirCache), grounded on the teacher's server.go
// request-coalescing actor, so concurrent GetTile calls for the same
// directory share one fetch.
type Reader struct {
	ranger RangeReader
	header HeaderV3
	dirs   *dirCache
	config readerConfig
}

// NewReader opens a PMTiles v3 archive over r, reading and validating the
// fixed header before returning.
func NewReader(ctx context.Context, r RangeReader, opts ...ReaderOption) (*Reader, error) {
	config := readerConfig{dirCacheBytes: defaultDirCacheBytes, concurrency: 16}
	for _, opt := range opts {
		opt(&config)
	}

	headerBytes, err := readRangeAlloc(ctx, r, 0, HeaderV3LenBytes)
	if err != nil {
		return nil, err
	}
	header, err := deserializeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	reader := &Reader{ranger: r, header: header, config: config}
	reader.dirs = newDirCache(config.dirCacheBytes, reader.fetchDirectory, config.metrics)
	return reader, nil
}

func (reader *Reader) fetchDirectory(ctx context.Context, offset, length uint64) ([]EntryV3, error) {
	raw, err := readRangeAlloc(ctx, reader.ranger, offset, uint32(length))
	if err != nil {
		return nil, err
	}
	return deserializeEntries(raw, reader.header.InternalCompression)
}

// Header returns the archive's parsed fixed header.
func (reader *Reader) Header() HeaderV3 {
	return reader.header
}

// Metadata returns the archive's raw, decompressed JSON metadata blob.
func (reader *Reader) Metadata(ctx context.Context) ([]byte, error) {
	raw, err := readRangeAlloc(ctx, reader.ranger, reader.header.MetadataOffset, uint32(reader.header.MetadataLength))
	if err != nil {
		return nil, err
	}
	return decompressBytes(raw, reader.header.InternalCompression)
}

// MetadataJSON returns the archive's metadata unmarshaled into a generic map.
func (reader *Reader) MetadataJSON(ctx context.Context) (map[string]any, error) {
	raw, err := reader.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, newError(InvalidFormat, "metadata is not valid JSON", err)
	}
	return m, nil
}

// GetTile returns the decompressed tile bytes at (z, x, y), or ok=false if
// the archive has no such tile. It walks the directory tree to a depth of
// three, matching the archive format's maximum nesting.
func (reader *Reader) GetTile(ctx context.Context, z uint8, x, y uint32) ([]byte, bool, error) {
	if dim := uint32(1) << z; x >= dim || y >= dim {
		return nil, false, newError(InvalidArgument, fmt.Sprintf("tile coordinates %d/%d out of bounds for zoom %d", x, y, z), nil)
	}
	if z < reader.header.MinZoom || z > reader.header.MaxZoom {
		return nil, false, nil
	}
	tileID := ZxyToID(z, x, y)

	dirOffset, dirLength := reader.header.RootOffset, reader.header.RootLength
	for depth := 0; depth <= 3; depth++ {
		entries, err := reader.dirs.get(ctx, dirOffset, dirLength)
		if err != nil {
			return nil, false, err
		}
		entry, ok := findTile(entries, tileID)
		if !ok {
			return nil, false, nil
		}
		if entry.RunLength > 0 {
			raw, err := readRangeAlloc(ctx, reader.ranger, reader.header.TileDataOffset+entry.Offset, entry.Length)
			if err != nil {
				return nil, false, err
			}
			tileReader, err := decompressReader(bytes.NewReader(raw), reader.header.TileCompression)
			if err != nil {
				return nil, false, err
			}
			data, err := io.ReadAll(tileReader)
			if err != nil {
				return nil, false, newError(TransportFailure, "decompressing tile", err)
			}
			return data, true, nil
		}
		dirOffset = reader.header.LeafDirectoryOffset + entry.Offset
		dirLength = uint64(entry.Length)
	}
	return nil, false, newError(InvalidFormat, "maximum directory depth exceeded", nil)
}

var errStopWalk = newError(Cancelled, "tile id enumeration stopped by caller", nil)

// TileIDs enumerates every addressed Hilbert tile ID at the given zoom
// level present in the archive's root and leaf directories, without
// materializing the whole tree at once.
func (reader *Reader) TileIDs(ctx context.Context, zoom uint8) (iter.Seq[uint64], error) {
	first := firstIDAtZoom(zoom)
	last := firstIDAtZoom(zoom + 1)

	rootDir, err := readRangeAlloc(ctx, reader.ranger, reader.header.RootOffset, uint32(reader.header.RootLength))
	if err != nil {
		return nil, err
	}

	fetch := func(offset, length uint64) ([]byte, error) {
		return readRangeAlloc(ctx, reader.ranger, reader.header.LeafDirectoryOffset+offset, uint32(length))
	}

	return func(yield func(uint64) bool) {
		err := walkEntries(rootDir, reader.header.InternalCompression, fetch, func(entry EntryV3) error {
			if entry.TileID+uint64(entry.RunLength) <= first || entry.TileID >= last {
				return nil
			}
			for i := uint32(0); i < entry.RunLength; i++ {
				id := entry.TileID + uint64(i)
				if id < first || id >= last {
					continue
				}
				if !yield(id) {
					return errStopWalk
				}
			}
			return nil
		})
		if err != nil && err != errStopWalk {
			// Walk errors surface as a truncated sequence; callers that need
			// the error should prefer reading the directory tree directly.
			return
		}
	}, nil
}

// AllEntries enumerates every tile entry in the archive's directory tree, in
// ascending tile ID order, without materializing the whole tree at once.
// Each yielded EntryV3 describes one run of identical, contiguous tiles
// (RunLength >= 1); Recluster uses this to rebuild an archive tile-by-tile
// without needing to know its zoom range up front.
func (reader *Reader) AllEntries(ctx context.Context) (iter.Seq[EntryV3], error) {
	rootDir, err := readRangeAlloc(ctx, reader.ranger, reader.header.RootOffset, uint32(reader.header.RootLength))
	if err != nil {
		return nil, err
	}

	fetch := func(offset, length uint64) ([]byte, error) {
		return readRangeAlloc(ctx, reader.ranger, reader.header.LeafDirectoryOffset+offset, uint32(length))
	}

	return func(yield func(EntryV3) bool) {
		err := walkEntries(rootDir, reader.header.InternalCompression, fetch, func(entry EntryV3) error {
			if !yield(entry) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && err != errStopWalk {
			return
		}
	}, nil
}

// rawTileBytes returns entry's tile bytes exactly as stored, without
// decompressing them.
func (reader *Reader) rawTileBytes(ctx context.Context, entry EntryV3) ([]byte, error) {
	return readRangeAlloc(ctx, reader.ranger, reader.header.TileDataOffset+entry.Offset, entry.Length)
}

// GetTilesInRange fetches every tile in ids concurrently, bounded by the
// reader's configured fetch concurrency, and returns results indexed the
// same as ids. A tile absent from the archive yields a nil slice with no
// error at its index.
func (reader *Reader) GetTilesInRange(ctx context.Context, ids []Zxy) ([][]byte, error) {
	results := make([][]byte, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reader.config.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			data, ok, err := reader.GetTile(ctx, id.Z, id.X, id.Y)
			if err != nil {
				return fmt.Errorf("fetching tile %s: %w", id, err)
			}
			if ok {
				results[i] = data
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close releases the reader's directory cache goroutine and underlying
// RangeReader.
func (reader *Reader) Close() error {
	reader.dirs.close()
	return reader.ranger.Close()
}
