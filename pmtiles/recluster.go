package pmtiles

import (
	"context"
	"io"
)

// ReclusterOption configures Recluster.
type ReclusterOption func(*reclusterConfig)

type reclusterConfig struct {
	progress ProgressObserver
}

// WithReclusterProgress attaches a cancellable fractional-progress observer
// to Recluster's tile rewrite loop.
func WithReclusterProgress(p ProgressObserver) ReclusterOption {
	return func(c *reclusterConfig) { c.progress = p }
}

// Recluster reads every tile out of src in ascending tile ID order and
// rewrites them into out as a newly clustered archive, preserving src's
// tile type, compression, zoom range, bounds, and metadata. It returns an
// InvalidArgument error if src is already clustered, since clustering an
// already-clustered archive is a no-op that would otherwise silently
// rewrite the whole archive for nothing.
//
// Grounded on the teacher's Cluster (cluster.go): walk the directory tree
// collecting every addressed tile, feed it through a fresh resolver, and
// finalize a new archive. This version drives the same two phases through
// this module's own Reader (AllEntries) and Writer instead of the
// teacher's ad hoc file-offset walking and standalone finalize function.
func Recluster(ctx context.Context, src RangeReader, out io.WriterAt, opts ...ReclusterOption) (HeaderV3, error) {
	config := reclusterConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	reader, err := NewReader(ctx, src)
	if err != nil {
		return HeaderV3{}, err
	}
	defer reader.Close()

	header := reader.Header()
	if header.Clustered {
		return HeaderV3{}, newError(InvalidArgument, "archive is already clustered", nil)
	}

	metadata, err := reader.MetadataJSON(ctx)
	if err != nil {
		return HeaderV3{}, err
	}

	entries, err := reader.AllEntries(ctx)
	if err != nil {
		return HeaderV3{}, err
	}

	const e7 = 1e7
	writer := NewWriter(out,
		WithTileType(header.TileType),
		WithTileCompression(header.TileCompression),
		WithInternalCompression(header.InternalCompression),
		WithZoomRange(header.MinZoom, header.MaxZoom),
		WithBounds(
			float64(header.MinLonE7)/e7, float64(header.MinLatE7)/e7,
			float64(header.MaxLonE7)/e7, float64(header.MaxLatE7)/e7,
		),
		WithCenter(float64(header.CenterLonE7)/e7, float64(header.CenterLatE7)/e7, header.CenterZoom),
		WithExpectedTileCount(header.AddressedTilesCount),
		WithProgressObserver(config.progress),
	)

	if err := writer.SetMetadata(metadata); err != nil {
		return HeaderV3{}, err
	}

	for entry := range entries {
		data, err := reader.rawTileBytes(ctx, entry)
		if err != nil {
			return HeaderV3{}, err
		}
		for i := uint32(0); i < entry.RunLength; i++ {
			z, x, y := IDToZxy(entry.TileID + uint64(i))
			if err := writer.AddTile(Zxy{Z: z, X: x, Y: y}, data); err != nil {
				return HeaderV3{}, err
			}
		}
	}

	return writer.Complete(ctx)
}
