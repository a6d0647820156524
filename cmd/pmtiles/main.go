// Command pmtiles is a thin external binding over the pmtiles and mvt
// packages: it contains no archive logic of its own, only URL/file
// plumbing and flag parsing around the library.
package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/paulmach/orb/geojson"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/cartonauts/pmtiles/mvt"
	"github.com/cartonauts/pmtiles/pmtiles"
)

type showCmd struct {
	Bucket string `arg:"" help:"Bucket URL, e.g. file://. or s3://my-bucket"`
	Key    string `arg:"" help:"Archive key within the bucket, e.g. tiles.pmtiles"`
	JSON   bool   `help:"Print the header as JSON instead of a human-readable report."`
}

func (c *showCmd) Run(ctx context.Context) error {
	ranger, err := pmtiles.OpenRangeReader(ctx, c.Bucket, c.Key)
	if err != nil {
		return fmt.Errorf("opening %s %s: %w", c.Bucket, c.Key, err)
	}
	defer ranger.Close()

	reader, err := pmtiles.NewReader(ctx, ranger)
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	defer reader.Close()

	if c.JSON {
		return pmtiles.WriteHeaderJSON(os.Stdout, reader.Header())
	}
	if err := pmtiles.WriteHeaderReport(os.Stdout, reader.Header()); err != nil {
		return err
	}
	return pmtiles.WriteMetadataReport(ctx, os.Stdout, reader)
}

type tileCmd struct {
	Bucket string `arg:"" help:"Bucket URL, e.g. file://. or s3://my-bucket"`
	Key    string `arg:"" help:"Archive key within the bucket, e.g. tiles.pmtiles"`
	Z      uint8  `arg:"" help:"Zoom level."`
	X      uint32 `arg:"" help:"Tile column."`
	Y      uint32 `arg:"" help:"Tile row."`
}

func (c *tileCmd) Run(ctx context.Context) error {
	ranger, err := pmtiles.OpenRangeReader(ctx, c.Bucket, c.Key)
	if err != nil {
		return fmt.Errorf("opening %s %s: %w", c.Bucket, c.Key, err)
	}
	defer ranger.Close()

	reader, err := pmtiles.NewReader(ctx, ranger)
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	defer reader.Close()

	return pmtiles.WriteTile(ctx, os.Stdout, reader, c.Z, c.X, c.Y)
}

type convertCmd struct {
	Input    string `arg:"" help:"Path to a GeoJSON FeatureCollection."`
	Output   string `arg:"" help:"Path to write the resulting PMTiles archive."`
	Layer    string `default:"default" help:"Name of the single MVT layer generated."`
	MinZoom  uint8  `default:"0" help:"Minimum zoom level to generate."`
	MaxZoom  uint8  `default:"14" help:"Maximum zoom level to generate."`
	Extent   uint32 `default:"4096" help:"MVT tile extent."`
	NoGzip   bool   `help:"Store tile payloads uncompressed."`
}

func (c *convertCmd) Run(ctx context.Context) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Input, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing GeoJSON: %w", err)
	}

	out, err := os.OpenFile(c.Output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.Output, err)
	}
	defer out.Close()

	compression := pmtiles.Gzip
	if c.NoGzip {
		compression = pmtiles.NoCompression
	}

	tiles, minLon, minLat, maxLon, maxLat := groupFeaturesByTile(fc.Features, c.MinZoom, c.MaxZoom)

	writer := pmtiles.NewWriter(out,
		pmtiles.WithTileType(pmtiles.Mvt),
		pmtiles.WithTileCompression(compression),
		pmtiles.WithZoomRange(c.MinZoom, c.MaxZoom),
		pmtiles.WithBounds(minLon, minLat, maxLon, maxLat),
		pmtiles.WithExpectedTileCount(uint64(len(tiles))),
		pmtiles.WithProgressObserver(pmtiles.NewBarProgressObserver(int64(len(tiles)), "converting")),
	)

	for _, zxy := range sortedKeys(tiles) {
		vt := &mvt.Tile{Layers: []mvt.Layer{{
			Name:    c.Layer,
			Version: 2,
			Extent:  c.Extent,
			Features: tileFeatures(tiles[zxy], zxy, c.Extent),
		}}}
		payload, err := vt.Encode()
		if err != nil {
			return fmt.Errorf("encoding tile %s: %w", zxy, err)
		}
		if compression == pmtiles.Gzip {
			payload, err = gzipBytes(payload)
			if err != nil {
				return fmt.Errorf("compressing tile %s: %w", zxy, err)
			}
		}
		if err := writer.AddTile(zxy, payload); err != nil {
			return fmt.Errorf("adding tile %s: %w", zxy, err)
		}
	}

	header, err := writer.Complete(ctx)
	if err != nil {
		return fmt.Errorf("completing archive: %w", err)
	}
	log.Printf("wrote %s: %d tile entries, %d distinct contents", c.Output, header.TileEntriesCount, header.TileContentsCount)
	return nil
}

var cli struct {
	Show    showCmd    `cmd:"" help:"Print an archive's header and metadata."`
	Tile    tileCmd    `cmd:"" help:"Extract a single tile from an archive."`
	Convert convertCmd `cmd:"" help:"Convert a GeoJSON FeatureCollection into a PMTiles archive."`
}

func main() {
	parser := kong.Parse(&cli,
		kong.Name("pmtiles"),
		kong.Description("Inspect, extract from, and build PMTiles v3 archives."),
		kong.UsageOnError(),
	)
	err := parser.Run(context.Background())
	parser.FatalIfErrorf(err)
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
