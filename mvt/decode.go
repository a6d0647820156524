package mvt

import "github.com/cartonauts/pmtiles/pmtiles"

// CoordTransform is applied to every decoded point immediately after its
// extent-space (x, y) is computed, satisfying the "user transformation
// hook" requirement (e.g. mapping tile-local integers into a CRS).
type CoordTransform func(x, y float64) (x2, y2 float64)

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	factory   GeometryFactory
	transform CoordTransform
}

// WithGeometryFactory substitutes the coordinate-sequence representation
// Decode builds geometries with. The default builds github.com/paulmach/orb
// types.
func WithGeometryFactory(f GeometryFactory) DecodeOption {
	return func(c *decodeConfig) { c.factory = f }
}

// WithCoordTransform attaches a post-decode hook applied to every point as
// it is built.
func WithCoordTransform(t CoordTransform) DecodeOption {
	return func(c *decodeConfig) { c.transform = t }
}

// Decode parses a Mapbox Vector Tile protobuf message into a Tile.
func Decode(data []byte, opts ...DecodeOption) (*Tile, error) {
	config := decodeConfig{factory: orbFactory{}}
	for _, opt := range opts {
		opt(&config)
	}

	r := newWireReader(data)
	var tile Tile
	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return nil, err
		}
		if field != tileFieldLayers {
			if err := r.skip(wt); err != nil {
				return nil, err
			}
			continue
		}
		payload, err := r.bytesField()
		if err != nil {
			return nil, err
		}
		layer, err := decodeLayer(payload, &config)
		if err != nil {
			return nil, err
		}
		tile.Layers = append(tile.Layers, layer)
	}
	return &tile, nil
}

func decodeLayer(data []byte, config *decodeConfig) (Layer, error) {
	r := newWireReader(data)
	layer := Layer{Extent: defaultExtent, Version: 1}

	var keys []string
	var values []Value
	var known []bool // parallel to values; false for an unrecognized alternative
	type rawFeature struct {
		payload []byte
	}
	var rawFeatures []rawFeature

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return Layer{}, err
		}
		switch field {
		case layerFieldName:
			b, err := r.bytesField()
			if err != nil {
				return Layer{}, err
			}
			layer.Name = string(b)
		case layerFieldExtent:
			v, err := r.uvarint()
			if err != nil {
				return Layer{}, err
			}
			layer.Extent = uint32(v)
		case layerFieldVersion:
			v, err := r.uvarint()
			if err != nil {
				return Layer{}, err
			}
			layer.Version = uint32(v)
		case layerFieldKeys:
			b, err := r.bytesField()
			if err != nil {
				return Layer{}, err
			}
			keys = append(keys, string(b))
		case layerFieldValues:
			b, err := r.bytesField()
			if err != nil {
				return Layer{}, err
			}
			v, ok, err := decodeValue(b)
			if err != nil {
				return Layer{}, err
			}
			values = append(values, v)
			known = append(known, ok)
		case layerFieldFeatures:
			b, err := r.bytesField()
			if err != nil {
				return Layer{}, err
			}
			rawFeatures = append(rawFeatures, rawFeature{payload: b})
		default:
			if err := r.skip(wt); err != nil {
				return Layer{}, err
			}
		}
	}

	layer.Features = make([]Feature, 0, len(rawFeatures))
	for i, rf := range rawFeatures {
		f, err := decodeFeature(rf.payload, uint64(i), keys, values, known, config)
		if err != nil {
			return Layer{}, err
		}
		layer.Features = append(layer.Features, f)
	}
	return layer, nil
}

// decodeFeature parses one Tile.Feature message. position is the feature's
// index within its layer, used as Feature.ID when the wire omits an
// explicit id tag, per the format's "id defaults to layer position" rule.
// A tag whose value is an unrecognized alternative (known[i] false) is
// left out of Feature.Tags.
func decodeFeature(data []byte, position uint64, keys []string, values []Value, known []bool, config *decodeConfig) (Feature, error) {
	r := newWireReader(data)
	feature := Feature{ID: position}
	var tagIDs []uint64
	var commands []uint64

	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return Feature{}, err
		}
		switch field {
		case featureFieldID:
			v, err := r.uvarint()
			if err != nil {
				return Feature{}, err
			}
			feature.ID = v
			feature.HasID = true
		case featureFieldType:
			v, err := r.uvarint()
			if err != nil {
				return Feature{}, err
			}
			feature.Type = GeomType(v)
		case featureFieldTags:
			tagIDs, err = r.packedUvarints()
			if err != nil {
				return Feature{}, err
			}
		case featureFieldGeometry:
			commands, err = r.packedUvarints()
			if err != nil {
				return Feature{}, err
			}
		default:
			if err := r.skip(wt); err != nil {
				return Feature{}, err
			}
		}
	}

	if len(tagIDs)%2 != 0 {
		return Feature{}, pmtiles.NewError(pmtiles.InvalidFormat, "feature tags array has odd length")
	}
	if len(tagIDs) > 0 {
		feature.Tags = make(map[string]Value, len(tagIDs)/2)
		for i := 0; i < len(tagIDs); i += 2 {
			keyIdx, valIdx := tagIDs[i], tagIDs[i+1]
			if keyIdx >= uint64(len(keys)) || valIdx >= uint64(len(values)) {
				return Feature{}, pmtiles.NewError(pmtiles.InvalidFormat, "feature tag references out-of-range key or value")
			}
			if !known[valIdx] {
				continue
			}
			feature.Tags[keys[keyIdx]] = values[valIdx]
		}
	}

	rings, err := decodeParts(commands, config.transform, config.factory)
	if err != nil {
		return Feature{}, err
	}
	feature.Geometry = assembleGeometry(feature.Type, rings, config.factory)
	return feature, nil
}

// assembleGeometry turns decoded parts into the single- or multi-geometry
// value appropriate for the feature's declared type.
func assembleGeometry(t GeomType, rings []ring, factory GeometryFactory) any {
	switch t {
	case PointGeometry:
		var points []any
		for _, r := range rings {
			points = append(points, r.points...)
		}
		if len(points) == 1 {
			return points[0]
		}
		return factory.MultiPoint(points)
	case LineStringGeometry:
		if len(rings) == 1 {
			return factory.LineString(rings[0].points)
		}
		lines := make([]any, len(rings))
		for i, r := range rings {
			lines[i] = factory.LineString(r.points)
		}
		return factory.MultiLineString(lines)
	case PolygonGeometry:
		polygons := assemblePolygons(rings, factory)
		if len(polygons) == 1 {
			return factory.Polygon(polygons[0])
		}
		return factory.MultiPolygon(polygons)
	default:
		return nil
	}
}
