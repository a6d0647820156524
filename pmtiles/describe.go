package pmtiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// HeaderDescription is a JSON-friendly rendering of HeaderV3, translating
// its enum fields (TileType, compression) into human-readable names the way
// the teacher's show.go prints them.
type HeaderDescription struct {
	SpecVersion         uint8   `json:"specVersion"`
	TileType            string  `json:"tileType"`
	MinLon              float64 `json:"minLon"`
	MinLat              float64 `json:"minLat"`
	MaxLon              float64 `json:"maxLon"`
	MaxLat              float64 `json:"maxLat"`
	MinZoom             uint8   `json:"minZoom"`
	MaxZoom             uint8   `json:"maxZoom"`
	CenterLon           float64 `json:"centerLon"`
	CenterLat           float64 `json:"centerLat"`
	CenterZoom          uint8   `json:"centerZoom"`
	AddressedTilesCount uint64  `json:"addressedTilesCount"`
	TileEntriesCount    uint64  `json:"tileEntriesCount"`
	TileContentsCount   uint64  `json:"tileContentsCount"`
	Clustered           bool    `json:"clustered"`
	InternalCompression string  `json:"internalCompression"`
	TileCompression     string  `json:"tileCompression"`
}

func tileTypeName(t TileType) string {
	switch t {
	case Mvt:
		return "mvt"
	case Png:
		return "png"
	case Jpeg:
		return "jpeg"
	case Webp:
		return "webp"
	case Avif:
		return "avif"
	default:
		return "unknown"
	}
}

func compressionName(c Compression) string {
	switch c {
	case NoCompression:
		return "none"
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// DescribeHeader translates a Reader's parsed header into a human- and
// JSON-friendly description, grounded on the teacher's show.go header dump.
func DescribeHeader(header HeaderV3) HeaderDescription {
	const e7 = 1e7
	return HeaderDescription{
		SpecVersion:         header.SpecVersion,
		TileType:            tileTypeName(header.TileType),
		MinLon:              float64(header.MinLonE7) / e7,
		MinLat:              float64(header.MinLatE7) / e7,
		MaxLon:              float64(header.MaxLonE7) / e7,
		MaxLat:              float64(header.MaxLatE7) / e7,
		MinZoom:             header.MinZoom,
		MaxZoom:             header.MaxZoom,
		CenterLon:           float64(header.CenterLonE7) / e7,
		CenterLat:           float64(header.CenterLatE7) / e7,
		CenterZoom:          header.CenterZoom,
		AddressedTilesCount: header.AddressedTilesCount,
		TileEntriesCount:    header.TileEntriesCount,
		TileContentsCount:   header.TileContentsCount,
		Clustered:           header.Clustered,
		InternalCompression: compressionName(header.InternalCompression),
		TileCompression:     compressionName(header.TileCompression),
	}
}

// WriteHeaderReport writes a human-readable summary of reader's header to w,
// one field per line, matching the teacher's show.go Printf block.
func WriteHeaderReport(w io.Writer, header HeaderV3) error {
	d := DescribeHeader(header)
	lines := []string{
		fmt.Sprintf("pmtiles spec version: %d", d.SpecVersion),
		fmt.Sprintf("tile type: %s", d.TileType),
		fmt.Sprintf("bounds: %f,%f %f,%f", d.MinLon, d.MinLat, d.MaxLon, d.MaxLat),
		fmt.Sprintf("min zoom: %d", d.MinZoom),
		fmt.Sprintf("max zoom: %d", d.MaxZoom),
		fmt.Sprintf("center: %f,%f", d.CenterLon, d.CenterLat),
		fmt.Sprintf("center zoom: %d", d.CenterZoom),
		fmt.Sprintf("addressed tiles count: %d", d.AddressedTilesCount),
		fmt.Sprintf("tile entries count: %d", d.TileEntriesCount),
		fmt.Sprintf("tile contents count: %d", d.TileContentsCount),
		fmt.Sprintf("tile data size: %s", humanize.Bytes(header.TileDataLength)),
		fmt.Sprintf("clustered: %t", d.Clustered),
		fmt.Sprintf("internal compression: %s", d.InternalCompression),
		fmt.Sprintf("tile compression: %s", d.TileCompression),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return newError(TransportFailure, "writing header report", err)
		}
	}
	return nil
}

// WriteHeaderJSON writes reader's header description as JSON to w.
func WriteHeaderJSON(w io.Writer, header HeaderV3) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(DescribeHeader(header)); err != nil {
		return newError(InvalidFormat, "encoding header description", err)
	}
	return nil
}

// WriteMetadataReport writes reader's metadata to w, one "key value" line
// per top-level string field and "key <object...>" for anything else,
// matching the teacher's show.go metadata dump.
func WriteMetadataReport(ctx context.Context, w io.Writer, reader *Reader) error {
	metadata, err := reader.MetadataJSON(ctx)
	if err != nil {
		return err
	}
	for k, v := range metadata {
		switch value := v.(type) {
		case string:
			if _, err := fmt.Fprintln(w, k, value); err != nil {
				return newError(TransportFailure, "writing metadata report", err)
			}
		default:
			if _, err := fmt.Fprintln(w, k, "<object...>"); err != nil {
				return newError(TransportFailure, "writing metadata report", err)
			}
		}
	}
	return nil
}

// WriteTile writes the decompressed bytes of the tile at (z, x, y) to w, or
// returns an InvalidArgument error if the archive has no such tile,
// matching the teacher's show.go single-tile extraction mode.
func WriteTile(ctx context.Context, w io.Writer, reader *Reader, z uint8, x, y uint32) error {
	data, ok, err := reader.GetTile(ctx, z, x, y)
	if err != nil {
		return err
	}
	if !ok {
		return newError(InvalidArgument, "tile not found in archive", nil)
	}
	if _, err := w.Write(data); err != nil {
		return newError(TransportFailure, "writing tile", err)
	}
	return nil
}
