package main

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/cartonauts/pmtiles/internal/webmercator"
	"github.com/cartonauts/pmtiles/mvt"
	"github.com/cartonauts/pmtiles/pmtiles"
)

// groupFeaturesByTile assigns each feature to every tile its bounding box
// overlaps across [minZoom, maxZoom], mirroring the bounds-intersection
// approach gotiler.go uses for GitHub-Actions-side tiling, generalized to
// an arbitrary zoom range.
func groupFeaturesByTile(features []*geojson.Feature, minZoom, maxZoom uint8) (map[pmtiles.Zxy][]*geojson.Feature, float64, float64, float64, float64) {
	tiles := make(map[pmtiles.Zxy][]*geojson.Feature)
	overallMinLon, overallMinLat := math.Inf(1), math.Inf(1)
	overallMaxLon, overallMaxLat := math.Inf(-1), math.Inf(-1)

	for _, f := range features {
		bound := f.Geometry.Bound()
		minLon, minLat := bound.Min[0], bound.Min[1]
		maxLon, maxLat := bound.Max[0], bound.Max[1]
		overallMinLon = math.Min(overallMinLon, minLon)
		overallMinLat = math.Min(overallMinLat, minLat)
		overallMaxLon = math.Max(overallMaxLon, maxLon)
		overallMaxLat = math.Max(overallMaxLat, maxLat)

		for z := int(minZoom); z <= int(maxZoom); z++ {
			zoom := uint8(z)
			x0, y0 := webmercator.LonLatToTile(minLon, maxLat, zoom)
			x1, y1 := webmercator.LonLatToTile(maxLon, minLat, zoom)
			for x := x0; x <= x1; x++ {
				for y := y0; y <= y1; y++ {
					zxy, err := pmtiles.NewZxy(zoom, x, y)
					if err != nil {
						continue
					}
					tiles[zxy] = append(tiles[zxy], f)
				}
			}
		}
	}
	if math.IsInf(overallMinLon, 1) {
		overallMinLon, overallMinLat, overallMaxLon, overallMaxLat = -180, -85, 180, 85
	}
	return tiles, overallMinLon, overallMinLat, overallMaxLon, overallMaxLat
}

// sortedKeys orders a tile set by ascending tile ID, the order AddTile
// requires.
func sortedKeys(tiles map[pmtiles.Zxy][]*geojson.Feature) []pmtiles.Zxy {
	keys := make([]pmtiles.Zxy, 0, len(tiles))
	for k := range tiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return pmtiles.ZxyToID(keys[i].Z, keys[i].X, keys[i].Y) < pmtiles.ZxyToID(keys[j].Z, keys[j].X, keys[j].Y)
	})
	return keys
}

// tileFeatures projects each GeoJSON feature assigned to zxy into the
// tile's local extent coordinate space and carries its properties over as
// MVT tag values.
func tileFeatures(features []*geojson.Feature, zxy pmtiles.Zxy, extent uint32) []mvt.Feature {
	minLon, minLat, maxLon, maxLat := webmercator.TileBounds(zxy.Z, zxy.X, zxy.Y)
	project := func(lon, lat float64) [2]float64 {
		ex := (lon - minLon) / (maxLon - minLon) * float64(extent)
		ey := (maxLat - lat) / (maxLat - minLat) * float64(extent)
		return [2]float64{ex, ey}
	}

	out := make([]mvt.Feature, 0, len(features))
	for _, f := range features {
		geom, geomType, ok := projectGeometry(f.Geometry, project)
		if !ok {
			continue
		}
		out = append(out, mvt.Feature{
			Type:     geomType,
			Tags:     tagsFromProperties(f.Properties),
			Geometry: geom,
		})
	}
	return out
}

func projectGeometry(g orb.Geometry, project func(lon, lat float64) [2]float64) (any, mvt.GeomType, bool) {
	switch v := g.(type) {
	case orb.Point:
		p := project(v[0], v[1])
		return orb.Point{p[0], p[1]}, mvt.PointGeometry, true
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(v))
		for i, pt := range v {
			p := project(pt[0], pt[1])
			out[i] = orb.Point{p[0], p[1]}
		}
		return out, mvt.PointGeometry, true
	case orb.LineString:
		return projectRing(v, project), mvt.LineStringGeometry, true
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			out[i] = projectRing(ls, project)
		}
		return out, mvt.LineStringGeometry, true
	case orb.Polygon:
		return projectPolygon(v, project), mvt.PolygonGeometry, true
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, poly := range v {
			out[i] = projectPolygon(poly, project)
		}
		return out, mvt.PolygonGeometry, true
	default:
		return nil, mvt.UnknownGeometry, false
	}
}

func projectPolygon(poly orb.Polygon, project func(lon, lat float64) [2]float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = orb.Ring(projectRing(orb.LineString(ring), project))
	}
	return out
}

func projectRing(ls orb.LineString, project func(lon, lat float64) [2]float64) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, pt := range ls {
		p := project(pt[0], pt[1])
		out[i] = orb.Point{p[0], p[1]}
	}
	return out
}

func tagsFromProperties(props geojson.Properties) map[string]mvt.Value {
	if len(props) == 0 {
		return nil
	}
	tags := make(map[string]mvt.Value, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			tags[k] = mvt.NewStringValue(val)
		case bool:
			tags[k] = mvt.NewBoolValue(val)
		case float64:
			tags[k] = mvt.NewDoubleValue(val)
		case nil:
			continue
		default:
			tags[k] = mvt.NewStringValue(props.MustString(k, ""))
		}
	}
	return tags
}
