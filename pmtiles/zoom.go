package pmtiles

import (
	"iter"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// TileSet is a compressed set of addressed Hilbert tile IDs, enumerated per
// zoom by AtZoom and used by the zoom-coverage helpers (GeneralizeOr,
// GeneralizeAnd) to propagate presence between zoom levels. Writer and
// Reader do not use it.
type TileSet struct {
	bitmap *roaring64.Bitmap
}

// NewTileSet returns an empty TileSet.
func NewTileSet() *TileSet {
	return &TileSet{bitmap: roaring64.New()}
}

// Add marks id as present.
func (ts *TileSet) Add(id uint64) {
	ts.bitmap.Add(id)
}

// AddRange marks every id in [start, end) as present.
func (ts *TileSet) AddRange(start, end uint64) {
	ts.bitmap.AddRange(start, end)
}

// Contains reports whether id is present.
func (ts *TileSet) Contains(id uint64) bool {
	return ts.bitmap.Contains(id)
}

// Cardinality returns the number of tile IDs present.
func (ts *TileSet) Cardinality() uint64 {
	return ts.bitmap.GetCardinality()
}

// AtZoom lazily enumerates every tile ID in the set belonging to the given
// zoom level, using ZxyToID's per-zoom contiguous ID range so the walk
// never has to decode every ID's (z,x,y) to filter by zoom.
func (ts *TileSet) AtZoom(zoom uint8) iter.Seq[uint64] {
	first := firstIDAtZoom(zoom)
	last := firstIDAtZoom(zoom + 1)
	return func(yield func(uint64) bool) {
		iterator := ts.bitmap.Iterator()
		iterator.AdvanceIfNeeded(first)
		for iterator.HasNext() {
			id := iterator.PeekNext()
			if id >= last {
				return
			}
			if !yield(iterator.Next()) {
				return
			}
		}
	}
}

// GeneralizeOr propagates presence upward: for every tile present at zoom
// z, its ancestor at every zoom down to minZoom is added to the set. This
// produces a coarse "where is there any data" coverage mask, grounded on
// the teacher's generalizeOr (bitmap.go), which built the same mask for
// polygon boundary/interior tiles before writing them to an archive.
func GeneralizeOr(ts *TileSet, minZoom uint8) {
	r := ts.bitmap
	if r.GetCardinality() == 0 {
		return
	}
	maxZ := zoomOf(r.ReverseIterator().Next())

	toIterate := r
	for currentZ := int(maxZ); currentZ > int(minZoom); currentZ-- {
		temp := roaring64.New()
		iter := toIterate.Iterator()
		for iter.HasNext() {
			temp.Add(ParentID(iter.Next()))
		}
		toIterate = temp
		r.Or(temp)
	}
}

// GeneralizeAnd propagates presence upward only where all four children of
// a tile are present, producing a "fully covered" mask rather than a
// "covered anywhere" one. Grounded on the teacher's generalizeAnd.
func GeneralizeAnd(ts *TileSet) {
	r := ts.bitmap
	if r.GetCardinality() == 0 {
		return
	}
	maxZ := zoomOf(r.ReverseIterator().Next())

	toIterate := r
	for currentZ := int(maxZ); currentZ > 0; currentZ-- {
		temp := roaring64.New()
		iter := toIterate.Iterator()
		filled := 0
		var current uint64
		haveCurrent := false
		for iter.HasNext() {
			id := iter.Next()
			parentID := ParentID(id)
			if haveCurrent && parentID == current {
				filled++
			} else {
				current = parentID
				filled = 1
				haveCurrent = true
			}
			if filled == 4 {
				temp.Add(parentID)
			}
		}
		toIterate = temp
		r.Or(temp)
	}
}
