package mvt

import (
	"github.com/paulmach/orb"

	"github.com/cartonauts/pmtiles/pmtiles"
)

// EncodeOption configures Encode/EncodeTo.
type EncodeOption func(*encodeConfig)

type encodeConfig struct{}

// Encode serializes t into a growable buffer.
func (t *Tile) Encode(opts ...EncodeOption) ([]byte, error) {
	config := encodeConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	w := newWireWriter()
	if err := encodeTile(w, t, &config); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// EncodeTo serializes t into dst, returning the number of bytes written.
// If the encoded message does not fit dst, it returns a BufferTooSmall
// error carrying the required size so the caller can retry with a
// correctly sized buffer.
func (t *Tile) EncodeTo(dst []byte, opts ...EncodeOption) (int, error) {
	config := encodeConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	w := newBoundedWireWriter(len(dst))
	if err := encodeTile(w, t, &config); err != nil {
		return 0, err
	}
	if w.overflowed() {
		return 0, pmtiles.NewBufferTooSmallError(len(w.buf))
	}
	n := copy(dst, w.buf)
	return n, nil
}

func encodeTile(w *wireWriter, t *Tile, config *encodeConfig) error {
	for _, layer := range t.Layers {
		payload, err := encodeLayer(layer, config)
		if err != nil {
			return err
		}
		w.putBytesField(tileFieldLayers, payload)
	}
	return nil
}

func encodeLayer(layer Layer, config *encodeConfig) ([]byte, error) {
	keyIndex := map[string]int{}
	var keys []string
	valueIndex := map[string]int{}
	var values []Value

	internKey := func(k string) int {
		if idx, ok := keyIndex[k]; ok {
			return idx
		}
		idx := len(keys)
		keyIndex[k] = idx
		keys = append(keys, k)
		return idx
	}
	internValue := func(v Value) int {
		key := valueCacheKey(v)
		if idx, ok := valueIndex[key]; ok {
			return idx
		}
		idx := len(values)
		valueIndex[key] = idx
		values = append(values, v)
		return idx
	}

	encodedFeatures := make([][]byte, len(layer.Features))
	for i, f := range layer.Features {
		b, err := encodeFeature(f, internKey, internValue)
		if err != nil {
			return nil, err
		}
		encodedFeatures[i] = b
	}

	w := newWireWriter()
	w.putUvarintField(layerFieldVersion, uint64(orDefault(layer.Version, 1)))
	w.putBytesField(layerFieldName, []byte(layer.Name))
	for _, f := range encodedFeatures {
		w.putBytesField(layerFieldFeatures, f)
	}
	for _, k := range keys {
		w.putBytesField(layerFieldKeys, []byte(k))
	}
	for _, v := range values {
		w.putBytesField(layerFieldValues, encodeValue(v))
	}
	w.putUvarintField(layerFieldExtent, uint64(orDefault(layer.Extent, defaultExtent)))
	return w.buf, nil
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

// valueCacheKey gives interning a stable identity for a Value: its kind
// tag plus its encoded bytes, so e.g. the int64 4 and the uint64 4 intern
// to distinct table entries.
func valueCacheKey(v Value) string {
	return string([]byte{byte(v.Kind)}) + string(encodeValue(v))
}

func encodeFeature(f Feature, internKey func(string) int, internValue func(Value) int) ([]byte, error) {
	w := newWireWriter()
	if f.HasID {
		w.putUvarintField(featureFieldID, f.ID)
	}

	if len(f.Tags) > 0 {
		tagIDs := make([]uint64, 0, len(f.Tags)*2)
		for k, v := range f.Tags {
			tagIDs = append(tagIDs, uint64(internKey(k)), uint64(internValue(v)))
		}
		w.putPackedUvarints(featureFieldTags, tagIDs)
	}

	w.putUvarintField(featureFieldType, uint64(f.Type))

	commands, err := encodeGeometry(f.Type, f.Geometry)
	if err != nil {
		return nil, err
	}
	w.putPackedUvarints(featureFieldGeometry, commands)
	return w.buf, nil
}

// encodeGeometry is decodeParts' mirror. It currently supports only
// geometries built by the default orb-based GeometryFactory: a custom
// factory's Geometry is an opaque any with no symmetric decomposition
// interface, so round-tripping a custom representation through encode is
// out of scope (documented in DESIGN.md).
func encodeGeometry(t GeomType, geom any) ([]uint64, error) {
	switch t {
	case PointGeometry:
		return encodePointCommands(flattenOrbPoints(geom)), nil
	case LineStringGeometry:
		lines, err := flattenOrbLines(geom)
		if err != nil {
			return nil, err
		}
		return encodeLineCommands(lines), nil
	case PolygonGeometry:
		rings, err := flattenOrbPolygonRings(geom)
		if err != nil {
			return nil, err
		}
		return encodePolygonCommands(rings), nil
	default:
		return nil, pmtiles.NewError(pmtiles.InvalidArgument, "unsupported geometry type for MVT encode")
	}
}

func flattenOrbPoints(geom any) []orb.Point {
	switch g := geom.(type) {
	case orb.Point:
		return []orb.Point{g}
	case orb.MultiPoint:
		return []orb.Point(g)
	default:
		return nil
	}
}

func flattenOrbLines(geom any) ([]orb.LineString, error) {
	switch g := geom.(type) {
	case orb.LineString:
		return []orb.LineString{g}, nil
	case orb.MultiLineString:
		return []orb.LineString(g), nil
	default:
		return nil, pmtiles.NewError(pmtiles.InvalidArgument, "geometry does not match declared LineString type")
	}
}

// flattenOrbPolygonRings returns one []orb.Ring per polygon, preserving the
// exterior-then-holes grouping so each polygon's rings can be reoriented
// together.
func flattenOrbPolygonRings(geom any) ([][]orb.Ring, error) {
	switch g := geom.(type) {
	case orb.Polygon:
		return [][]orb.Ring{[]orb.Ring(g)}, nil
	case orb.MultiPolygon:
		out := make([][]orb.Ring, len(g))
		for i, poly := range g {
			out[i] = []orb.Ring(poly)
		}
		return out, nil
	default:
		return nil, pmtiles.NewError(pmtiles.InvalidArgument, "geometry does not match declared Polygon type")
	}
}

// commandCursor accumulates zig-zag deltas relative to a running (x, y)
// position, matching decodeParts' cursor semantics exactly so a decode of
// these commands reproduces the original deltas.
type commandCursor struct {
	x, y int32
}

func (c *commandCursor) delta(x, y float64) (dx, dy int32) {
	nx, ny := int32(x), int32(y)
	dx, dy = nx-c.x, ny-c.y
	c.x, c.y = nx, ny
	return dx, dy
}

func encodePointCommands(points []orb.Point) []uint64 {
	if len(points) == 0 {
		return nil
	}
	commands := make([]uint64, 0, 1+2*len(points))
	commands = append(commands, uint64(packCommand(cmdMoveTo, uint32(len(points)))))
	var cursor commandCursor
	for _, p := range points {
		dx, dy := cursor.delta(p[0], p[1])
		commands = append(commands, zigzagEncode32(dx), zigzagEncode32(dy))
	}
	return commands
}

func encodeLineCommands(lines []orb.LineString) []uint64 {
	var commands []uint64
	var cursor commandCursor
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		commands = append(commands, uint64(packCommand(cmdMoveTo, 1)))
		dx, dy := cursor.delta(line[0][0], line[0][1])
		commands = append(commands, zigzagEncode32(dx), zigzagEncode32(dy))

		if len(line) > 1 {
			commands = append(commands, uint64(packCommand(cmdLineTo, uint32(len(line)-1))))
			for _, p := range line[1:] {
				dx, dy := cursor.delta(p[0], p[1])
				commands = append(commands, zigzagEncode32(dx), zigzagEncode32(dy))
			}
		}
	}
	return commands
}

// encodePolygonCommands reorients each polygon's rings (exterior clockwise,
// holes counter-clockwise) and emits MoveTo/LineTo/ClosePath for each,
// dropping a trailing point that duplicates the ring's start.
func encodePolygonCommands(polygons [][]orb.Ring) []uint64 {
	var commands []uint64
	var cursor commandCursor
	for _, rings := range polygons {
		for i, r := range rings {
			pts := ringVertices(r)
			if len(pts) < 3 {
				continue
			}
			wantClockwise := i == 0
			if signedRingArea(pts) > 0 != wantClockwise {
				reverseRing(pts)
			}

			commands = append(commands, uint64(packCommand(cmdMoveTo, 1)))
			dx, dy := cursor.delta(pts[0][0], pts[0][1])
			commands = append(commands, zigzagEncode32(dx), zigzagEncode32(dy))

			if len(pts) > 1 {
				commands = append(commands, uint64(packCommand(cmdLineTo, uint32(len(pts)-1))))
				for _, p := range pts[1:] {
					dx, dy := cursor.delta(p[0], p[1])
					commands = append(commands, zigzagEncode32(dx), zigzagEncode32(dy))
				}
			}
			commands = append(commands, uint64(packCommand(cmdClosePath, 1)))
		}
	}
	return commands
}

// ringVertices drops a ring's trailing point when it duplicates the first,
// the convention decodeParts produces via ClosePath.
func ringVertices(r orb.Ring) []orb.Point {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return []orb.Point(r[:len(r)-1])
	}
	return []orb.Point(r)
}

func signedRingArea(pts []orb.Point) float64 {
	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return sum / 2
}

func reverseRing(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
