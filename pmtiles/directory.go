package pmtiles

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
)

// EntryV3 is one entry in a PMTiles spec version 3 directory.
//
// RunLength == 0 marks a leaf-directory pointer: Offset/Length address bytes
// in the leaf-directory section. RunLength == 1 addresses a single tile.
// RunLength > 1 means the payload at Offset/Length is valid for every tile
// ID in [TileID, TileID+RunLength).
type EntryV3 struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

func (e EntryV3) isLeaf() bool {
	return e.RunLength == 0
}

// serializeEntries packs entries into the four-column varint layout
// (count, delta-coded IDs, run-lengths, lengths, back-reference-coded
// offsets) and compresses the result with the given internal codec.
func serializeEntries(entries []EntryV3, compression Compression) ([]byte, error) {
	var raw bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)

	n := binary.PutUvarint(tmp, uint64(len(entries)))
	raw.Write(tmp[:n])

	var lastID uint64
	for _, e := range entries {
		n = binary.PutUvarint(tmp, e.TileID-lastID)
		raw.Write(tmp[:n])
		lastID = e.TileID
	}
	for _, e := range entries {
		n = binary.PutUvarint(tmp, uint64(e.RunLength))
		raw.Write(tmp[:n])
	}
	for _, e := range entries {
		n = binary.PutUvarint(tmp, uint64(e.Length))
		raw.Write(tmp[:n])
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			n = binary.PutUvarint(tmp, 0)
		} else {
			n = binary.PutUvarint(tmp, e.Offset+1) // +1 so 0 stays reserved for back-reference
		}
		raw.Write(tmp[:n])
	}

	return compressBytes(raw.Bytes(), compression)
}

// deserializeEntries reverses serializeEntries: decompress, then walk the
// four varint columns in order, reconstructing the back-referenced offsets.
func deserializeEntries(data []byte, compression Compression) ([]EntryV3, error) {
	decompressed, err := decompressBytes(data, compression)
	if err != nil {
		return nil, newError(InvalidFormat, "decompressing directory", err)
	}
	br := bufio.NewReader(bytes.NewReader(decompressed))

	numEntries, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, newError(InvalidFormat, "reading directory entry count", err)
	}

	entries := make([]EntryV3, numEntries)

	var lastID uint64
	for i := range entries {
		delta, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, newError(InvalidFormat, fmt.Sprintf("reading tile ID delta at %d", i), err)
		}
		lastID += delta
		entries[i].TileID = lastID
	}
	for i := range entries {
		rl, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, newError(InvalidFormat, fmt.Sprintf("reading run length at %d", i), err)
		}
		entries[i].RunLength = uint32(rl)
	}
	for i := range entries {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, newError(InvalidFormat, fmt.Sprintf("reading length at %d", i), err)
		}
		entries[i].Length = uint32(l)
	}
	for i := range entries {
		o, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, newError(InvalidFormat, fmt.Sprintf("reading offset at %d", i), err)
		}
		if o == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = o - 1
		}
	}

	return entries, nil
}

// findTile implements the lookup algorithm of spec §4.3 step 2 for a single
// directory: binary search for an exact match, then fall back to the entry
// immediately before the insertion point, which may be a leaf (always worth
// recursing into) or a run-length entry that may cover the ID.
func findTile(entries []EntryV3, tileID uint64) (EntryV3, bool) {
	m, n := 0, len(entries)-1
	for m <= n {
		k := (m + n) >> 1
		switch {
		case entries[k].TileID < tileID:
			m = k + 1
		case entries[k].TileID > tileID:
			n = k - 1
		default:
			return entries[k], true
		}
	}
	// m > n now; n is the index of the last entry with TileID < tileID.
	if n >= 0 {
		e := entries[n]
		if e.isLeaf() {
			return e, true
		}
		if tileID-e.TileID < uint64(e.RunLength) {
			return e, true
		}
	}
	return EntryV3{}, false
}

// buildRootAndLeaves packs entries into fixed-size chunks, serializes each
// chunk as a leaf directory, and builds a root directory of leaf pointers.
func buildRootAndLeaves(entries []EntryV3, leafSize int, compression Compression) ([]byte, []byte, int, error) {
	rootEntries := make([]EntryV3, 0, (len(entries)+leafSize-1)/leafSize)
	var leaves bytes.Buffer
	numLeaves := 0

	for idx := 0; idx < len(entries); idx += leafSize {
		numLeaves++
		end := idx + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized, err := serializeEntries(entries[idx:end], compression)
		if err != nil {
			return nil, nil, 0, err
		}
		rootEntries = append(rootEntries, EntryV3{
			TileID: entries[idx].TileID,
			Offset: uint64(leaves.Len()),
			Length: uint32(len(serialized)),
		})
		leaves.Write(serialized)
	}

	root, err := serializeEntries(rootEntries, compression)
	if err != nil {
		return nil, nil, 0, err
	}
	return root, leaves.Bytes(), numLeaves, nil
}

// optimizeDirectories implements spec §4.4's directory partitioning:
// try the whole directory as a flat root first, then widen the leaf chunk
// size exponentially until the root (one leaf pointer per chunk) fits the
// target byte budget. The search always halts: leafSize only grows, and
// a single chunk containing every entry always yields a root of one entry.
func optimizeDirectories(entries []EntryV3, targetRootLen int, compression Compression) ([]byte, []byte, int, error) {
	if len(entries) < 16384 {
		root, err := serializeEntries(entries, compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(root) <= targetRootLen {
			return root, nil, 0, nil
		}
	}

	leafSize := float64(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}

	for {
		root, leaves, numLeaves, err := buildRootAndLeaves(entries, int(leafSize), compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(root) <= targetRootLen {
			return root, leaves, numLeaves, nil
		}
		leafSize *= 1.2
	}
}

// walkEntries recurses through a directory tree (root, then any leaves),
// invoking operation on every non-leaf entry. fetch resolves a leaf
// directory's offset/length (relative to the leaf-directory section) to its
// raw, still-compressed bytes.
func walkEntries(rootDir []byte, compression Compression, fetch func(offset, length uint64) ([]byte, error), operation func(EntryV3) error) error {
	entries, err := deserializeEntries(rootDir, compression)
	if err != nil {
		return err
	}
	return walkEntrySlice(entries, compression, fetch, operation)
}

func walkEntrySlice(entries []EntryV3, compression Compression, fetch func(offset, length uint64) ([]byte, error), operation func(EntryV3) error) error {
	for _, e := range entries {
		if e.isLeaf() {
			data, err := fetch(e.Offset, uint64(e.Length))
			if err != nil {
				return err
			}
			leafEntries, err := deserializeEntries(data, compression)
			if err != nil {
				return err
			}
			if err := walkEntrySlice(leafEntries, compression, fetch, operation); err != nil {
				return err
			}
		} else if err := operation(e); err != nil {
			return err
		}
	}
	return nil
}
