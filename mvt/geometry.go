package mvt

import (
	"github.com/paulmach/orb"

	"github.com/cartonauts/pmtiles/pmtiles"
)

// Command ids packed into the low 3 bits of each command integer.
const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

func packCommand(id, count uint32) uint32 {
	return (count << 3) | id
}

func unpackCommand(v uint32) (id, count uint32) {
	return v & 0x7, v >> 3
}

// GeometryFactory builds the decoder's output geometry representation from
// a flat, pluggable coordinate sequence. The default factory (orbFactory)
// produces github.com/paulmach/orb types; callers needing a different
// in-memory representation can substitute their own via DecodeOption.
type GeometryFactory interface {
	Point(x, y float64) any
	MultiPoint(points []any) any
	LineString(points []any) any
	MultiLineString(lines []any) any
	Polygon(rings [][]any) any
	MultiPolygon(polygons [][][]any) any
}

// orbFactory is the default GeometryFactory, building github.com/paulmach/orb
// geometry values.
type orbFactory struct{}

func (orbFactory) Point(x, y float64) any {
	return orb.Point{x, y}
}

func (orbFactory) MultiPoint(points []any) any {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.(orb.Point)
	}
	return mp
}

func (orbFactory) LineString(points []any) any {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.(orb.Point)
	}
	return ls
}

func (orbFactory) MultiLineString(lines []any) any {
	mls := make(orb.MultiLineString, len(lines))
	for i, l := range lines {
		mls[i] = l.(orb.LineString)
	}
	return mls
}

func (orbFactory) Polygon(rings [][]any) any {
	poly := make(orb.Polygon, len(rings))
	for i, ring := range rings {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = p.(orb.Point)
		}
		poly[i] = r
	}
	return poly
}

func (orbFactory) MultiPolygon(polygons [][][]any) any {
	mp := make(orb.MultiPolygon, len(polygons))
	for i, rings := range polygons {
		poly := make(orb.Polygon, len(rings))
		for j, ring := range rings {
			r := make(orb.Ring, len(ring))
			for k, p := range ring {
				r[k] = p.(orb.Point)
			}
			poly[j] = r
		}
		mp[i] = poly
	}
	return mp
}

// ring is one decoded, not-yet-classified part: its points plus the signed
// shoelace area used to classify it as exterior or hole.
type ring struct {
	points []any
	coords [][2]float64 // parallel to points, kept for area/orientation math
}

func (r *ring) area() float64 {
	if len(r.coords) < 3 {
		return 0
	}
	var sum float64
	n := len(r.coords)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += r.coords[i][0]*r.coords[j][1] - r.coords[j][0]*r.coords[i][1]
	}
	return sum / 2
}

// decodeParts walks a feature's packed geometry command stream, producing
// a flat sequence of parts (one per MoveTo). The exact coordinate count is
// pre-computed so the flat backing slice is allocated once.
func decodeParts(commands []uint64, transform CoordTransform, factory GeometryFactory) ([]ring, error) {
	total := 0
	i := 0
	for i < len(commands) {
		id, count := unpackCommand(uint32(commands[i]))
		i++
		switch id {
		case cmdMoveTo, cmdLineTo:
			total += int(count)
			i += int(count) * 2
		case cmdClosePath:
			total++
		default:
			return nil, pmtiles.NewError(pmtiles.InvalidFormat, "unknown MVT geometry command")
		}
	}
	if i != len(commands) {
		return nil, pmtiles.NewError(pmtiles.InvalidFormat, "truncated MVT geometry command stream")
	}

	backing := make([][2]float64, 0, total)
	var parts []ring
	var cur *ring
	var cx, cy int32
	var startX, startY float64

	i = 0
	for i < len(commands) {
		id, count := unpackCommand(uint32(commands[i]))
		i++
		switch id {
		case cmdMoveTo:
			for k := uint32(0); k < count; k++ {
				dx := zigzagDecode32(commands[i])
				dy := zigzagDecode32(commands[i+1])
				i += 2
				cx += dx
				cy += dy
				x, y := applyTransform(transform, float64(cx), float64(cy))
				if k == 0 {
					parts = append(parts, ring{})
					cur = &parts[len(parts)-1]
					startX, startY = x, y
				}
				backing = append(backing, [2]float64{x, y})
				cur.coords = append(cur.coords, backing[len(backing)-1])
				cur.points = append(cur.points, factory.Point(x, y))
			}
		case cmdLineTo:
			for k := uint32(0); k < count; k++ {
				dx := zigzagDecode32(commands[i])
				dy := zigzagDecode32(commands[i+1])
				i += 2
				cx += dx
				cy += dy
				x, y := applyTransform(transform, float64(cx), float64(cy))
				backing = append(backing, [2]float64{x, y})
				cur.coords = append(cur.coords, backing[len(backing)-1])
				cur.points = append(cur.points, factory.Point(x, y))
			}
		case cmdClosePath:
			backing = append(backing, [2]float64{startX, startY})
			cur.coords = append(cur.coords, backing[len(backing)-1])
			cur.points = append(cur.points, factory.Point(startX, startY))
		}
	}
	return parts, nil
}

func applyTransform(t CoordTransform, x, y float64) (float64, float64) {
	if t == nil {
		return x, y
	}
	return t(x, y)
}

// assemblePolygons groups decoded rings into polygons per the MVT spec's
// winding-order rule: the first non-degenerate ring's orientation is
// exterior; a ring sharing that orientation starts a new polygon, a ring
// of the opposite orientation is a hole of the current polygon. Degenerate
// (zero-area) rings are dropped.
func assemblePolygons(rings []ring, factory GeometryFactory) [][][]any {
	var polygons [][][]any
	var exteriorSign float64
	haveExterior := false

	for _, r := range rings {
		area := r.area()
		if area == 0 {
			continue
		}
		if !haveExterior {
			exteriorSign = area
			haveExterior = true
		}
		if sameSign(area, exteriorSign) {
			polygons = append(polygons, [][]any{r.points})
			continue
		}
		last := len(polygons) - 1
		polygons[last] = append(polygons[last], r.points)
	}
	return polygons
}

func sameSign(a, b float64) bool {
	return (a < 0) == (b < 0)
}
