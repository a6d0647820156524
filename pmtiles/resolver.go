package pmtiles

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// offsetLen is the (offset, length) of a tile's compressed bytes already
// written to the archive, keyed by content hash so identical tiles are
// stored once.
type offsetLen struct {
	Offset uint64
	Length uint32
}

// resolver deduplicates tile content by hash and fuses consecutive
// identical tiles into a single run-length entry, grounded on the
// teacher's Resolver (convert.go). The teacher hashes with fnv128a; this
// module uses xxhash per its domain dependency stack, which is also
// faster and has no meaningfully higher collision risk at archive scale.
type resolver struct {
	entries        []EntryV3
	offset         uint64
	offsetMap      map[uint64]offsetLen
	addressedTiles uint64
	tileContents   uint64
}

func newResolver() *resolver {
	return &resolver{
		offsetMap: make(map[uint64]offsetLen),
	}
}

// addTile resolves one tile's content, in strictly increasing tileID
// order. It returns the bytes the caller must append to the tile-data
// section (empty when the tile deduplicates against one already written),
// and an error if the tile IDs are not in increasing order or a run length
// would overflow.
func (r *resolver) addTile(tileID uint64, compressed []byte) ([]byte, error) {
	if len(r.entries) > 0 {
		last := r.entries[len(r.entries)-1]
		if tileID < last.TileID+uint64(last.RunLength) {
			return nil, newError(InvalidArgument, "tiles must be added in increasing tile ID order", nil)
		}
	}

	r.addressedTiles++
	sum := xxhash.Sum64(compressed)

	if found, ok := r.offsetMap[sum]; ok {
		last := r.entries[len(r.entries)-1]
		if tileID == last.TileID+uint64(last.RunLength) && last.Offset == found.Offset {
			if uint64(last.RunLength)+1 > math.MaxUint32 {
				return nil, newError(InvalidArgument, "maximum 32-bit run length exceeded", nil)
			}
			r.entries[len(r.entries)-1].RunLength++
		} else {
			r.entries = append(r.entries, EntryV3{TileID: tileID, Offset: found.Offset, Length: found.Length, RunLength: 1})
		}
		return nil, nil
	}

	r.tileContents++
	r.offsetMap[sum] = offsetLen{Offset: r.offset, Length: uint32(len(compressed))}
	r.entries = append(r.entries, EntryV3{TileID: tileID, Offset: r.offset, Length: uint32(len(compressed)), RunLength: 1})
	r.offset += uint64(len(compressed))
	return compressed, nil
}
