package pmtiles

import "fmt"

// MaxZoom is the highest zoom level representable by a Hilbert tile ID.
const MaxZoom = 26

// Zxy is a tile coordinate: zoom level plus the tile's column and row
// within that level's 2^z by 2^z grid.
type Zxy struct {
	Z uint8
	X uint32
	Y uint32
}

func (z Zxy) String() string {
	return fmt.Sprintf("%d/%d/%d", z.Z, z.X, z.Y)
}

// NewZxy validates a tile coordinate and returns it, or an InvalidArgument
// error when z exceeds MaxZoom or x/y fall outside the 2^z grid for z.
func NewZxy(z uint8, x, y uint32) (Zxy, error) {
	if z > MaxZoom {
		return Zxy{}, newError(InvalidArgument, fmt.Sprintf("zoom %d exceeds maximum %d", z, MaxZoom), nil)
	}
	dim := uint32(1) << z
	if x >= dim || y >= dim {
		return Zxy{}, newError(InvalidArgument, fmt.Sprintf("tile coordinates %d/%d out of bounds for zoom %d", x, y, z), nil)
	}
	return Zxy{Z: z, X: x, Y: y}, nil
}

func rotate(n uint64, x *uint64, y *uint64, rx uint64, ry uint64) {
	if ry == 0 {
		if rx == 1 {
			*x = n - 1 - *x
			*y = n - 1 - *y
		}
		*x, *y = *y, *x
	}
}

func tOnLevel(z uint8, pos uint64) (uint8, uint32, uint32) {
	var n uint64 = 1 << z
	rx, ry, t := pos, pos, pos
	var tx uint64
	var ty uint64
	var s uint64
	for s = 1; s < n; s *= 2 {
		rx = 1 & (t / 2)
		ry = 1 & (t ^ rx)
		rotate(s, &tx, &ty, rx, ry)
		tx += s * rx
		ty += s * ry
		t /= 4
	}
	return z, uint32(tx), uint32(ty)
}

// ZxyToID converts (Z,X,Y) tile coordinates to a Hilbert-curve tile ID
// using the canonical PMTiles layout: a per-zoom prefix sum plus the
// standard recursive quadrant-rotation Hilbert construction.
func ZxyToID(z uint8, x uint32, y uint32) uint64 {
	var acc uint64
	var tz uint8
	for ; tz < z; tz++ {
		acc += (uint64(1) << tz) * (uint64(1) << tz)
	}
	var n uint64 = 1 << z
	var rx, ry, d uint64
	tx := uint64(x)
	ty := uint64(y)
	for s := n / 2; s > 0; s /= 2 {
		if tx&s > 0 {
			rx = 1
		} else {
			rx = 0
		}
		if ty&s > 0 {
			ry = 1
		} else {
			ry = 0
		}
		d += s * s * ((3 * rx) ^ ry)
		rotate(s, &tx, &ty, rx, ry)
	}
	return acc + d
}

// IDToZxy inverts ZxyToID, recovering the zoom level by walking the
// per-zoom prefix-sum table before inverting the Hilbert curve itself.
func IDToZxy(id uint64) (uint8, uint32, uint32) {
	var acc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			return tOnLevel(z, id-acc)
		}
		acc += numTiles
		z++
	}
}

// ParentID finds the Hilbert ID of a tile's parent (at zoom-1) without
// round-tripping through (z,x,y).
func ParentID(id uint64) uint64 {
	var acc uint64
	var lastAcc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			return lastAcc + (id-acc)/4
		}
		lastAcc = acc
		acc += numTiles
		z++
	}
}

// zoomOf returns the zoom level a Hilbert ID belongs to.
func zoomOf(id uint64) uint8 {
	var acc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			return z
		}
		acc += numTiles
		z++
	}
}

// firstIDAtZoom returns the smallest Hilbert ID addressable at the given zoom.
func firstIDAtZoom(z uint8) uint64 {
	var acc uint64
	var tz uint8
	for ; tz < z; tz++ {
		acc += (uint64(1) << tz) * (uint64(1) << tz)
	}
	return acc
}
