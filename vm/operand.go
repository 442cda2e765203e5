package vm

import "math"

// Tag is the single byte that selects an operand's width, signedness, and
// whether its 4-byte field is a value (immediate) or a memory offset
// (indirect).
type Tag byte

const (
	TagU Tag = 'U' // immediate unsigned 32
	TagI Tag = 'I' // immediate signed 32
	TagF Tag = 'F' // immediate float32

	Tagu Tag = 'u' // indirect unsigned 32
	Tagi Tag = 'i' // indirect signed 32
	Tagf Tag = 'f' // indirect float32

	Tagz Tag = 'z' // indirect unsigned 64
	Tagl Tag = 'l' // indirect signed 64
	Tagd Tag = 'd' // indirect float64

	Tagh Tag = 'h' // indirect unsigned 16
	Tags Tag = 's' // indirect signed 16

	Tagc Tag = 'c' // indirect unsigned 8
	Tagb Tag = 'b' // indirect signed 8
)

var tagWidths = map[Tag]uint32{
	TagU: 4, TagI: 4, TagF: 4,
	Tagu: 4, Tagi: 4, Tagf: 4,
	Tagz: 8, Tagl: 8, Tagd: 8,
	Tagh: 2, Tags: 2,
	Tagc: 1, Tagb: 1,
}

var tagIsImmediate = map[Tag]bool{
	TagU: true, TagI: true, TagF: true,
}

var tagIsFloat = map[Tag]bool{
	TagF: true, Tagf: true, Tagd: true,
}

// Valid reports whether t is one of the thirteen recognized type tags.
func (t Tag) Valid() bool {
	_, ok := tagWidths[t]
	return ok
}

// Immediate reports whether t's 4-byte field carries a value directly
// (uppercase tags) rather than a memory offset (lowercase tags).
func (t Tag) Immediate() bool { return tagIsImmediate[t] }

// Float reports whether t denotes a floating-point cell.
func (t Tag) Float() bool { return tagIsFloat[t] }

// Width returns the cell width in bytes for t: {1, 2, 4, 8}.
func (t Tag) Width() uint32 { return tagWidths[t] }

// Operand is one decoded (tag, raw32) pair together with the address of
// its own 4-byte field within the currently-executing instruction. The
// FieldAddr is what AddressOf returns for immediate tags, making the
// "immediate destination aliases the instruction's own operand slot" rule
// explicit rather than implicit.
type Operand struct {
	Tag       Tag
	Raw       uint32
	FieldAddr uint32
}

// AddressOf returns the memory address this operand designates: for
// indirect tags that's Raw itself; for immediate tags it's the address of
// the operand's own field inside the in-flight instruction, so that a
// subsequent store mutates the instruction being decoded.
func (op Operand) AddressOf() uint32 {
	if op.Tag.Immediate() {
		return op.FieldAddr
	}
	return op.Raw
}

// loadNative reads op's value in its own tag's native Go type: for
// immediates that's a reinterpretation of Raw, for indirects it's a typed
// load at Raw. The returned value's concrete type always matches the tag
// (uint32 for 'U'/'u', int16 for 's', float64 for 'd', etc.) so that
// convert can apply Go's native numeric-cast rules uniformly.
func loadNative(m *Memory, op Operand) (any, error) {
	switch op.Tag {
	case TagU:
		return op.Raw, nil
	case TagI:
		return int32(op.Raw), nil
	case TagF:
		return math.Float32frombits(op.Raw), nil
	case Tagu:
		return m.LoadU32(op.Raw)
	case Tagi:
		v, err := m.LoadU32(op.Raw)
		return int32(v), err
	case Tagf:
		return m.LoadF32(op.Raw)
	case Tagz:
		return m.LoadU64(op.Raw)
	case Tagl:
		v, err := m.LoadU64(op.Raw)
		return int64(v), err
	case Tagd:
		return m.LoadF64(op.Raw)
	case Tagh:
		return m.LoadU16(op.Raw)
	case Tags:
		v, err := m.LoadU16(op.Raw)
		return int16(v), err
	case Tagc:
		return m.LoadU8(op.Raw)
	case Tagb:
		v, err := m.LoadU8(op.Raw)
		return int8(v), err
	default:
		return nil, fatalf(InvalidType, op.FieldAddr, "unknown type tag %q", byte(op.Tag))
	}
}

// storeNative writes v (whose concrete type determines the width/kind of
// the store) at addr.
func storeNative(m *Memory, addr uint32, v any) error {
	switch x := v.(type) {
	case uint32:
		return m.StoreU32(addr, x)
	case int32:
		return m.StoreU32(addr, uint32(x))
	case float32:
		return m.StoreF32(addr, x)
	case uint64:
		return m.StoreU64(addr, x)
	case int64:
		return m.StoreU64(addr, uint64(x))
	case float64:
		return m.StoreF64(addr, x)
	case uint16:
		return m.StoreU16(addr, x)
	case int16:
		return m.StoreU16(addr, uint16(x))
	case uint8:
		return m.StoreU8(addr, x)
	case int8:
		return m.StoreU8(addr, uint8(x))
	default:
		return fatalf(InvalidType, addr, "unsupported store value type %T", v)
	}
}

// numeric is the full set of concrete Go types a destination type tag can
// select: the full 1/2/4/8-byte x unsigned/signed/float cross product the
// machine supports.
type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// integer is numeric minus the floating kinds, used to constrain the
// bitwise/shift operators the validator already forbids on float
// destinations.
type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// convert applies Go's native numeric-cast rules (truncation,
// sign-extension, float-to-int conversion) to reinterpret a
// natively-typed operand value as T.
func convert[T numeric](v any) T {
	switch x := v.(type) {
	case uint8:
		return T(x)
	case int8:
		return T(x)
	case uint16:
		return T(x)
	case int16:
		return T(x)
	case uint32:
		return T(x)
	case int32:
		return T(x)
	case uint64:
		return T(x)
	case int64:
		return T(x)
	case float32:
		return T(x)
	case float64:
		return T(x)
	default:
		panic("vm: convert called with non-numeric operand value")
	}
}
