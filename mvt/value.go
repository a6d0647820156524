package mvt

// ValueKind tags which alternative of the Value union is populated.
type ValueKind int

const (
	StringValue ValueKind = iota
	FloatValue
	DoubleValue
	Int64Value
	Uint64Value
	SIntValue
	BoolValue
)

// Value is a decoded attribute value, mirroring the Tile.Value protobuf
// union field-for-field: exactly one of its accessors is meaningful,
// selected by Kind.
type Value struct {
	Kind   ValueKind
	String string
	Float  float32
	Double float64
	Int64  int64
	Uint64 uint64
	SInt64 int64
	Bool   bool
}

func NewStringValue(s string) Value  { return Value{Kind: StringValue, String: s} }
func NewFloatValue(f float32) Value  { return Value{Kind: FloatValue, Float: f} }
func NewDoubleValue(f float64) Value { return Value{Kind: DoubleValue, Double: f} }
func NewInt64Value(i int64) Value    { return Value{Kind: Int64Value, Int64: i} }
func NewUint64Value(u uint64) Value  { return Value{Kind: Uint64Value, Uint64: u} }
func NewSIntValue(i int64) Value     { return Value{Kind: SIntValue, SInt64: i} }
func NewBoolValue(b bool) Value      { return Value{Kind: BoolValue, Bool: b} }

// Native returns the value unwrapped into its natural Go type: string,
// float32, float64, int64, uint64, or bool.
func (v Value) Native() any {
	switch v.Kind {
	case StringValue:
		return v.String
	case FloatValue:
		return v.Float
	case DoubleValue:
		return v.Double
	case Int64Value:
		return v.Int64
	case Uint64Value:
		return v.Uint64
	case SIntValue:
		return v.SInt64
	case BoolValue:
		return v.Bool
	default:
		return nil
	}
}

// Value message field numbers, per the MVT protobuf schema.
const (
	valueFieldString = 1
	valueFieldFloat  = 2
	valueFieldDouble = 3
	valueFieldInt64  = 4
	valueFieldUint64 = 5
	valueFieldSint64 = 6
	valueFieldBool   = 7
)

// decodeValue parses one Tile.Value message. A value with none of the
// recognized fields set (an unknown future alternative) decodes to the
// zero Value and ok=false; decodeFeature then leaves any tag referencing it
// out of Feature.Tags rather than faulting.
func decodeValue(payload []byte) (Value, bool, error) {
	r := newWireReader(payload)
	var v Value
	found := false
	for !r.done() {
		field, wt, err := r.tag()
		if err != nil {
			return Value{}, false, err
		}
		switch field {
		case valueFieldString:
			b, err := r.bytesField()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: StringValue, String: string(b)}, true
		case valueFieldFloat:
			b, err := r.fixed32()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: FloatValue, Float: float32FromBits(b)}, true
		case valueFieldDouble:
			b, err := r.fixed64()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: DoubleValue, Double: float64FromBits(b)}, true
		case valueFieldInt64:
			n, err := r.uvarint()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: Int64Value, Int64: int64(n)}, true
		case valueFieldUint64:
			n, err := r.uvarint()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: Uint64Value, Uint64: n}, true
		case valueFieldSint64:
			n, err := r.uvarint()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: SIntValue, SInt64: zigzagDecode64(n)}, true
		case valueFieldBool:
			n, err := r.uvarint()
			if err != nil {
				return Value{}, false, err
			}
			v, found = Value{Kind: BoolValue, Bool: n != 0}, true
		default:
			if err := r.skip(wt); err != nil {
				return Value{}, false, err
			}
		}
	}
	return v, found, nil
}

func encodeValue(v Value) []byte {
	w := newWireWriter()
	switch v.Kind {
	case StringValue:
		w.putBytesField(valueFieldString, []byte(v.String))
	case FloatValue:
		w.putFixed32Field(valueFieldFloat, float32Bits(v.Float))
	case DoubleValue:
		w.putFixed64Field(valueFieldDouble, float64Bits(v.Double))
	case Int64Value:
		w.putUvarintField(valueFieldInt64, uint64(v.Int64))
	case Uint64Value:
		w.putUvarintField(valueFieldUint64, v.Uint64)
	case SIntValue:
		w.putUvarintField(valueFieldSint64, zigzagEncode64(v.SInt64))
	case BoolValue:
		b := uint64(0)
		if v.Bool {
			b = 1
		}
		w.putUvarintField(valueFieldBool, b)
	}
	return w.buf
}

// valuesEqual reports whether two decoded Values are the same tagged
// alternative with the same payload, used by round-trip tests. Interning
// during encode keys on valueCacheKey instead.
func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case StringValue:
		return a.String == b.String
	case FloatValue:
		return a.Float == b.Float
	case DoubleValue:
		return a.Double == b.Double
	case Int64Value:
		return a.Int64 == b.Int64
	case Uint64Value:
		return a.Uint64 == b.Uint64
	case SIntValue:
		return a.SInt64 == b.SInt64
	case BoolValue:
		return a.Bool == b.Bool
	default:
		return true
	}
}
