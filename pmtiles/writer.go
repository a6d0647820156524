package pmtiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

const defaultRootMaxBytes = 16384

// WriterOption configures a Writer at construction time.
type WriterOption func(*writerConfig)

type writerConfig struct {
	tileType            TileType
	tileCompression     Compression
	internalCompression Compression
	minZoom, maxZoom    uint8
	minLonE7, minLatE7  int32
	maxLonE7, maxLatE7  int32
	centerZoom          uint8
	centerLonE7         int32
	centerLatE7         int32
	rootMaxBytes        int
	progress            ProgressObserver
	expectedTiles       uint64
	clustered           bool
}

// WithTileType sets the tile content format recorded in the header.
func WithTileType(t TileType) WriterOption {
	return func(c *writerConfig) { c.tileType = t }
}

// WithTileCompression declares the compression already applied to payloads
// passed to AddTile. The writer does not re-compress tile content; it only
// records this value in the header.
func WithTileCompression(compression Compression) WriterOption {
	return func(c *writerConfig) { c.tileCompression = compression }
}

// WithInternalCompression sets the compression used for the metadata blob
// and the serialized directories. Defaults to Gzip.
func WithInternalCompression(compression Compression) WriterOption {
	return func(c *writerConfig) { c.internalCompression = compression }
}

// WithZoomRange sets the archive's minzoom/maxzoom header fields.
func WithZoomRange(min, max uint8) WriterOption {
	return func(c *writerConfig) { c.minZoom, c.maxZoom = min, max }
}

// WithBounds sets the archive's geographic bounds, in degrees.
func WithBounds(minLon, minLat, maxLon, maxLat float64) WriterOption {
	return func(c *writerConfig) {
		c.minLonE7, c.minLatE7 = int32(minLon*1e7), int32(minLat*1e7)
		c.maxLonE7, c.maxLatE7 = int32(maxLon*1e7), int32(maxLat*1e7)
	}
}

// WithCenter sets the archive's suggested viewer center.
func WithCenter(lon, lat float64, zoom uint8) WriterOption {
	return func(c *writerConfig) {
		c.centerLonE7, c.centerLatE7, c.centerZoom = int32(lon*1e7), int32(lat*1e7), zoom
	}
}

// WithRootMaxBytes overrides the default 16384-byte root directory budget.
func WithRootMaxBytes(n int) WriterOption {
	return func(c *writerConfig) { c.rootMaxBytes = n }
}

// WithProgressObserver attaches a cancellable fractional-progress observer
// to the writer's AddTile/Complete loop.
func WithProgressObserver(p ProgressObserver) WriterOption {
	return func(c *writerConfig) { c.progress = p }
}

// WithExpectedTileCount tells the writer how many tiles will be added in
// total, so AddTile can report a true entries-emitted-vs-total fraction to
// the progress observer instead of always reporting zero.
func WithExpectedTileCount(n uint64) WriterOption {
	return func(c *writerConfig) { c.expectedTiles = n }
}

// WithClustered overrides the header's clustered flag. Defaults to true:
// this Writer always emits tiles sorted by ascending tile ID with
// deduplicated, run-length-fused entries, which is what "clustered" means
// for this format. Set false only to build a deliberately unclustered
// fixture for testing Recluster.
func WithClustered(clustered bool) WriterOption {
	return func(c *writerConfig) { c.clustered = clustered }
}

// Writer assembles a PMTiles v3 archive from a monotone stream of tiles. It
// is not safe for concurrent use: it owns its output sink exclusively
// between construction and Complete, grounded on the teacher's
// Resolver/finalize two-phase build (convert.go) generalized into a
// standalone incremental writer.
type Writer struct {
	out       io.WriterAt
	config    writerConfig
	resolver  *resolver
	tileData  []byte
	metadata  []byte
	totalTile uint64
}

// NewWriter returns a Writer that will assemble the archive into out once
// Complete is called. out must support random-access writes; Complete
// writes the header, root directory, metadata, leaf directories, and tile
// data in that order.
func NewWriter(out io.WriterAt, opts ...WriterOption) *Writer {
	config := writerConfig{
		tileType:            Mvt,
		tileCompression:     Gzip,
		internalCompression: Gzip,
		maxZoom:             14,
		rootMaxBytes:        defaultRootMaxBytes,
		clustered:           true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Writer{out: out, config: config, resolver: newResolver()}
}

// AddTile appends one tile's already-compressed payload. zxy must address a
// tile ID strictly greater than (or forming a contiguous run with) every
// tile already added, or AddTile returns an InvalidArgument error. Zero-
// length payloads are rejected; writing an empty tile must be expressed by
// omitting it.
func (w *Writer) AddTile(zxy Zxy, data []byte) error {
	if len(data) == 0 {
		return newError(InvalidArgument, "tile payload must not be empty", nil)
	}
	if zxy.Z < w.config.minZoom || zxy.Z > w.config.maxZoom {
		return newError(InvalidArgument, "tile zoom out of configured range", nil)
	}
	if dim := uint32(1) << zxy.Z; zxy.X >= dim || zxy.Y >= dim {
		return newError(InvalidArgument, fmt.Sprintf("tile coordinates %d/%d out of bounds for zoom %d", zxy.X, zxy.Y, zxy.Z), nil)
	}

	tileID := ZxyToID(zxy.Z, zxy.X, zxy.Y)
	toWrite, err := w.resolver.addTile(tileID, data)
	if err != nil {
		return err
	}
	if toWrite != nil {
		w.tileData = append(w.tileData, toWrite...)
	}
	w.totalTile++

	if w.config.progress != nil {
		var fraction float64
		if w.config.expectedTiles > 0 {
			fraction = float64(w.totalTile) / float64(w.config.expectedTiles)
		}
		if w.config.progress.OnProgress(fraction) {
			return newError(Cancelled, "writer cancelled by progress observer", nil)
		}
	}
	return nil
}

// SetMetadata marshals v as JSON and stores it as the archive's metadata
// blob, independent of AddTile's ordering requirement.
func (w *Writer) SetMetadata(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return newError(InvalidArgument, "marshaling metadata", err)
	}
	w.metadata = raw
	return nil
}

// Complete partitions the directory, compresses the metadata and
// directories, and writes every section of the archive to the writer's
// output sink. It returns the finished header. Complete consults the
// configured ProgressObserver between major phases and aborts with a
// Cancelled error if the observer requests it.
func (w *Writer) Complete(ctx context.Context) (HeaderV3, error) {
	if err := ctx.Err(); err != nil {
		return HeaderV3{}, err
	}

	root, leaves, _, err := optimizeDirectories(w.resolver.entries, w.config.rootMaxBytes, w.config.internalCompression)
	if err != nil {
		return HeaderV3{}, err
	}

	if w.config.progress != nil && w.config.progress.OnProgress(0.5) {
		return HeaderV3{}, newError(Cancelled, "writer cancelled by progress observer", nil)
	}

	metadataCompressed, err := compressBytes(w.metadata, w.config.internalCompression)
	if err != nil {
		return HeaderV3{}, err
	}

	header := HeaderV3{
		Clustered:           w.config.clustered,
		InternalCompression: w.config.internalCompression,
		TileCompression:     w.config.tileCompression,
		TileType:            w.config.tileType,
		MinZoom:             w.config.minZoom,
		MaxZoom:             w.config.maxZoom,
		MinLonE7:            w.config.minLonE7,
		MinLatE7:            w.config.minLatE7,
		MaxLonE7:            w.config.maxLonE7,
		MaxLatE7:            w.config.maxLatE7,
		CenterZoom:          w.config.centerZoom,
		CenterLonE7:         w.config.centerLonE7,
		CenterLatE7:         w.config.centerLatE7,
		AddressedTilesCount: w.resolver.addressedTiles,
		TileEntriesCount:    uint64(len(w.resolver.entries)),
		TileContentsCount:   w.resolver.tileContents,
	}

	header.RootOffset = HeaderV3LenBytes
	header.RootLength = uint64(len(root))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = uint64(len(metadataCompressed))
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leaves))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	header.TileDataLength = uint64(len(w.tileData))

	sections := [][]byte{
		serializeHeader(header),
		root,
		metadataCompressed,
		leaves,
		w.tileData,
	}
	var writeOffset int64
	for _, section := range sections {
		if len(section) > 0 {
			if _, err := w.out.WriteAt(section, writeOffset); err != nil {
				return HeaderV3{}, newError(TransportFailure, "writing archive section", err)
			}
		}
		writeOffset += int64(len(section))
	}

	if w.config.progress != nil {
		w.config.progress.OnProgress(1)
	}

	return header, nil
}

// maxRunLength is the largest value RunLength can hold without overflow,
// mirrored here for documentation since resolver.go enforces it inline.
const maxRunLength = math.MaxUint32
