// Package mvt decodes and encodes Mapbox Vector Tile protobuf payloads.
package mvt

import (
	"encoding/binary"
	"math"

	"github.com/cartonauts/pmtiles/pmtiles"
)

// wireType mirrors the four wire types the Tile schema actually uses
// (varint, 64-bit, length-delimited, 32-bit); protobuf's deprecated group
// types never appear in an MVT message.
type wireType int

const (
	wireVarint  wireType = 0
	wireFixed64 wireType = 1
	wireBytes   wireType = 2
	wireFixed   wireType = 5
)

// wireReader walks a protobuf byte string one field at a time, matching the
// varint-column style of the archive directory decoder: read forward only,
// no backtracking, errors wrapped with pmtiles' shared error kinds so mvt
// and pmtiles callers share one taxonomy.
type wireReader struct {
	buf []byte
	pos int
}

func newWireReader(buf []byte) *wireReader {
	return &wireReader{buf: buf}
}

func (r *wireReader) done() bool {
	return r.pos >= len(r.buf)
}

func (r *wireReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, pmtiles.NewError(pmtiles.InvalidFormat, "truncated varint in MVT message")
	}
	r.pos += n
	return v, nil
}

// tag reads a field tag and returns the field number and wire type.
func (r *wireReader) tag() (int, wireType, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), wireType(v & 0x7), nil
}

// bytesField reads a length-delimited field's payload.
func (r *wireReader) bytesField() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	end := r.pos + int(n)
	if n > uint64(len(r.buf)) || end > len(r.buf) || end < r.pos {
		return nil, pmtiles.NewError(pmtiles.InvalidFormat, "length-delimited field overruns message")
	}
	out := r.buf[r.pos:end]
	r.pos = end
	return out, nil
}

func (r *wireReader) fixed64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, pmtiles.NewError(pmtiles.InvalidFormat, "truncated fixed64 in MVT message")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *wireReader) fixed32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, pmtiles.NewError(pmtiles.InvalidFormat, "truncated fixed32 in MVT message")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// skip discards a field's payload when its number is not recognized by the
// caller, per protobuf's forward-compatibility contract.
func (r *wireReader) skip(wt wireType) error {
	switch wt {
	case wireVarint:
		_, err := r.uvarint()
		return err
	case wireBytes:
		_, err := r.bytesField()
		return err
	case wireFixed:
		_, err := r.fixed32()
		return err
	case wireFixed64:
		_, err := r.fixed64()
		return err
	default:
		return pmtiles.NewError(pmtiles.InvalidFormat, "unsupported wire type in MVT message")
	}
}

// packedUvarints reads a length-delimited field as a packed stream of
// varints, the representation every repeated scalar field in the Tile
// schema uses (geometry, tags).
func (r *wireReader) packedUvarints() ([]uint64, error) {
	payload, err := r.bytesField()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(payload))
	pos := 0
	for pos < len(payload) {
		v, n := binary.Uvarint(payload[pos:])
		if n <= 0 {
			return nil, pmtiles.NewError(pmtiles.InvalidFormat, "truncated packed varint in MVT message")
		}
		out = append(out, v)
		pos += n
	}
	return out, nil
}

// wireWriter accumulates an encoded protobuf message into a growable
// buffer, mirroring serializeEntries' bytes.Buffer-plus-scratch-varint
// style.
type wireWriter struct {
	buf   []byte
	tmp   [binary.MaxVarintLen64]byte
	limit int // -1 means unbounded
}

func newWireWriter() *wireWriter {
	return &wireWriter{limit: -1}
}

func newBoundedWireWriter(limit int) *wireWriter {
	return &wireWriter{limit: limit}
}

func (w *wireWriter) overflowed() bool {
	return w.limit >= 0 && len(w.buf) > w.limit
}

func (w *wireWriter) putUvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf = append(w.buf, w.tmp[:n]...)
}

func (w *wireWriter) putTag(field int, wt wireType) {
	w.putUvarint(uint64(field)<<3 | uint64(wt))
}

func (w *wireWriter) putBytesField(field int, payload []byte) {
	w.putTag(field, wireBytes)
	w.putUvarint(uint64(len(payload)))
	w.buf = append(w.buf, payload...)
}

func (w *wireWriter) putUvarintField(field int, v uint64) {
	w.putTag(field, wireVarint)
	w.putUvarint(v)
}

func (w *wireWriter) putPackedUvarints(field int, values []uint64) {
	inner := wireWriter{limit: -1}
	for _, v := range values {
		inner.putUvarint(v)
	}
	w.putBytesField(field, inner.buf)
}

func (w *wireWriter) putFixed64Field(field int, v uint64) {
	w.putTag(field, wireFixed64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) putFixed32Field(field int, v uint32) {
	w.putTag(field, wireFixed)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// zigzagEncode32 maps a signed 32-bit delta to its zig-zag varint encoding.
func zigzagEncode32(n int32) uint64 {
	return uint64(uint32((n << 1) ^ (n >> 31)))
}

// zigzagDecode32 reverses zigzagEncode32.
func zigzagDecode32(v uint64) int32 {
	u := uint32(v)
	return int32(u>>1) ^ -int32(u&1)
}

// zigzagEncode64/zigzagDecode64 are the Value message's sint64 encoding.
func zigzagEncode64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func zigzagDecode64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }
func float32Bits(f float32) uint32     { return math.Float32bits(f) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }
func float64Bits(f float64) uint64     { return math.Float64bits(f) }
