package vm

import "math"

// Execute advances the instruction pointer past instr (writing the new IP
// to memory cell 0 before the operator runs, so that an operator which
// itself targets cell 0 effects a jump that only takes effect on the next
// fetch), then performs instr's operator.
//
// A returned *FatalError with Kind ProgramHalted means '#' ran cleanly and
// the caller should stop; any other error is fatal. Integer division or
// remainder by zero panics (Go's native behavior) rather than returning an
// error here — RunProgram's recovery wrapper turns that panic into a
// DivisionByZero FatalError.
func Execute(m *Memory, instr Instruction) error {
	if err := m.StoreU32(0, instr.Addr+InstructionSize); err != nil {
		return err
	}

	switch instr.Op {
	case OpNop:
		return nil
	case OpHalt:
		return fatalf(ProgramHalted, instr.Addr, "program halted")
	case OpAssign:
		return dispatchUnary(m, instr, identityOpSet)
	case OpBlockCopy:
		return execBlockCopy(m, instr)
	case OpNegate:
		return dispatchUnary(m, instr, negateOpSet)
	case OpNot:
		return dispatchBitwiseUnary(m, instr, notOpSet)
	case OpAnd:
		return dispatchBitwiseBinary(m, instr, andOpSet)
	case OpOr:
		return dispatchBitwiseBinary(m, instr, orOpSet)
	case OpXor:
		return dispatchBitwiseBinary(m, instr, xorOpSet)
	case OpShiftLeft:
		return dispatchBitwiseBinary(m, instr, shiftLeftOpSet)
	case OpShiftRight:
		return dispatchBitwiseBinary(m, instr, shiftRightOpSet)
	case OpAdd:
		return dispatchBinary(m, instr, addOpSet)
	case OpSub:
		return dispatchBinary(m, instr, subOpSet)
	case OpMul:
		return dispatchBinary(m, instr, mulOpSet)
	case OpDiv:
		return dispatchBinary(m, instr, divOpSet)
	case OpRem:
		return dispatchRem(m, instr)
	default:
		return fatalf(InvalidOp, instr.Addr, "unknown opcode %q", byte(instr.Op))
	}
}

// --- generic operand plumbing -------------------------------------------

func evalUnary[T numeric](m *Memory, instr Instruction, op func(T) T) error {
	a, err := loadNative(m, instr.Src1)
	if err != nil {
		return err
	}
	result := op(convert[T](a))
	return storeNative(m, instr.Dst.AddressOf(), result)
}

func evalBinary[T numeric](m *Memory, instr Instruction, op func(a, b T) T) error {
	a, err := loadNative(m, instr.Src1)
	if err != nil {
		return err
	}
	b, err := loadNative(m, instr.Src2)
	if err != nil {
		return err
	}
	result := op(convert[T](a), convert[T](b))
	return storeNative(m, instr.Dst.AddressOf(), result)
}

func identityOp[T numeric](x T) T { return x }
func negateOp[T numeric](x T) T   { return -x }
func notOp[T integer](x T) T      { return ^x }

func andOp[T integer](a, b T) T        { return a & b }
func orOp[T integer](a, b T) T         { return a | b }
func xorOp[T integer](a, b T) T        { return a ^ b }
func shiftLeftOp[T integer](a, b T) T  { return a << b }
func shiftRightOp[T integer](a, b T) T { return a >> b }

func addOp[T numeric](a, b T) T { return a + b }
func subOp[T numeric](a, b T) T { return a - b }
func mulOp[T numeric](a, b T) T { return a * b }
func divOp[T numeric](a, b T) T { return a / b }

// unaryOpSet/binaryOpSet/bitwise*OpSet bundle one instantiation of a
// generic operator per concrete width/signedness, built once per opcode
// and then routed by dispatch* to whichever instantiation matches the
// instruction's destination tag: two-level dispatch (opcode, then
// destination tag) instead of writing out all ten width/signedness cases
// by hand for every operator.
type unaryOpSet struct {
	u32 func(uint32) uint32
	i32 func(int32) int32
	f32 func(float32) float32
	u64 func(uint64) uint64
	i64 func(int64) int64
	f64 func(float64) float64
	u16 func(uint16) uint16
	i16 func(int16) int16
	u8  func(uint8) uint8
	i8  func(int8) int8
}

type binaryOpSet struct {
	u32 func(uint32, uint32) uint32
	i32 func(int32, int32) int32
	f32 func(float32, float32) float32
	u64 func(uint64, uint64) uint64
	i64 func(int64, int64) int64
	f64 func(float64, float64) float64
	u16 func(uint16, uint16) uint16
	i16 func(int16, int16) int16
	u8  func(uint8, uint8) uint8
	i8  func(int8, int8) int8
}

type bitwiseUnaryOpSet struct {
	u32 func(uint32) uint32
	i32 func(int32) int32
	u64 func(uint64) uint64
	i64 func(int64) int64
	u16 func(uint16) uint16
	i16 func(int16) int16
	u8  func(uint8) uint8
	i8  func(int8) int8
}

type bitwiseBinaryOpSet struct {
	u32 func(uint32, uint32) uint32
	i32 func(int32, int32) int32
	u64 func(uint64, uint64) uint64
	i64 func(int64, int64) int64
	u16 func(uint16, uint16) uint16
	i16 func(int16, int16) int16
	u8  func(uint8, uint8) uint8
	i8  func(int8, int8) int8
}

var identityOpSet = unaryOpSet{
	u32: identityOp[uint32], i32: identityOp[int32], f32: identityOp[float32],
	u64: identityOp[uint64], i64: identityOp[int64], f64: identityOp[float64],
	u16: identityOp[uint16], i16: identityOp[int16],
	u8: identityOp[uint8], i8: identityOp[int8],
}

var negateOpSet = unaryOpSet{
	u32: negateOp[uint32], i32: negateOp[int32], f32: negateOp[float32],
	u64: negateOp[uint64], i64: negateOp[int64], f64: negateOp[float64],
	u16: negateOp[uint16], i16: negateOp[int16],
	u8: negateOp[uint8], i8: negateOp[int8],
}

var notOpSet = bitwiseUnaryOpSet{
	u32: notOp[uint32], i32: notOp[int32],
	u64: notOp[uint64], i64: notOp[int64],
	u16: notOp[uint16], i16: notOp[int16],
	u8: notOp[uint8], i8: notOp[int8],
}

var andOpSet = bitwiseBinaryOpSet{
	u32: andOp[uint32], i32: andOp[int32],
	u64: andOp[uint64], i64: andOp[int64],
	u16: andOp[uint16], i16: andOp[int16],
	u8: andOp[uint8], i8: andOp[int8],
}

var orOpSet = bitwiseBinaryOpSet{
	u32: orOp[uint32], i32: orOp[int32],
	u64: orOp[uint64], i64: orOp[int64],
	u16: orOp[uint16], i16: orOp[int16],
	u8: orOp[uint8], i8: orOp[int8],
}

var xorOpSet = bitwiseBinaryOpSet{
	u32: xorOp[uint32], i32: xorOp[int32],
	u64: xorOp[uint64], i64: xorOp[int64],
	u16: xorOp[uint16], i16: xorOp[int16],
	u8: xorOp[uint8], i8: xorOp[int8],
}

var shiftLeftOpSet = bitwiseBinaryOpSet{
	u32: shiftLeftOp[uint32], i32: shiftLeftOp[int32],
	u64: shiftLeftOp[uint64], i64: shiftLeftOp[int64],
	u16: shiftLeftOp[uint16], i16: shiftLeftOp[int16],
	u8: shiftLeftOp[uint8], i8: shiftLeftOp[int8],
}

var shiftRightOpSet = bitwiseBinaryOpSet{
	u32: shiftRightOp[uint32], i32: shiftRightOp[int32],
	u64: shiftRightOp[uint64], i64: shiftRightOp[int64],
	u16: shiftRightOp[uint16], i16: shiftRightOp[int16],
	u8: shiftRightOp[uint8], i8: shiftRightOp[int8],
}

var addOpSet = binaryOpSet{
	u32: addOp[uint32], i32: addOp[int32], f32: addOp[float32],
	u64: addOp[uint64], i64: addOp[int64], f64: addOp[float64],
	u16: addOp[uint16], i16: addOp[int16],
	u8: addOp[uint8], i8: addOp[int8],
}

var subOpSet = binaryOpSet{
	u32: subOp[uint32], i32: subOp[int32], f32: subOp[float32],
	u64: subOp[uint64], i64: subOp[int64], f64: subOp[float64],
	u16: subOp[uint16], i16: subOp[int16],
	u8: subOp[uint8], i8: subOp[int8],
}

var mulOpSet = binaryOpSet{
	u32: mulOp[uint32], i32: mulOp[int32], f32: mulOp[float32],
	u64: mulOp[uint64], i64: mulOp[int64], f64: mulOp[float64],
	u16: mulOp[uint16], i16: mulOp[int16],
	u8: mulOp[uint8], i8: mulOp[int8],
}

var divOpSet = binaryOpSet{
	u32: divOp[uint32], i32: divOp[int32], f32: divOp[float32],
	u64: divOp[uint64], i64: divOp[int64], f64: divOp[float64],
	u16: divOp[uint16], i16: divOp[int16],
	u8: divOp[uint8], i8: divOp[int8],
}

func dispatchUnary(m *Memory, instr Instruction, op unaryOpSet) error {
	switch instr.Dst.Tag {
	case TagU, Tagu:
		return evalUnary(m, instr, op.u32)
	case TagI, Tagi:
		return evalUnary(m, instr, op.i32)
	case TagF, Tagf:
		return evalUnary(m, instr, op.f32)
	case Tagz:
		return evalUnary(m, instr, op.u64)
	case Tagl:
		return evalUnary(m, instr, op.i64)
	case Tagd:
		return evalUnary(m, instr, op.f64)
	case Tagh:
		return evalUnary(m, instr, op.u16)
	case Tags:
		return evalUnary(m, instr, op.i16)
	case Tagc:
		return evalUnary(m, instr, op.u8)
	case Tagb:
		return evalUnary(m, instr, op.i8)
	default:
		return fatalf(InvalidType, instr.Dst.FieldAddr, "unknown destination type %q", byte(instr.Dst.Tag))
	}
}

func dispatchBinary(m *Memory, instr Instruction, op binaryOpSet) error {
	switch instr.Dst.Tag {
	case TagU, Tagu:
		return evalBinary(m, instr, op.u32)
	case TagI, Tagi:
		return evalBinary(m, instr, op.i32)
	case TagF, Tagf:
		return evalBinary(m, instr, op.f32)
	case Tagz:
		return evalBinary(m, instr, op.u64)
	case Tagl:
		return evalBinary(m, instr, op.i64)
	case Tagd:
		return evalBinary(m, instr, op.f64)
	case Tagh:
		return evalBinary(m, instr, op.u16)
	case Tags:
		return evalBinary(m, instr, op.i16)
	case Tagc:
		return evalBinary(m, instr, op.u8)
	case Tagb:
		return evalBinary(m, instr, op.i8)
	default:
		return fatalf(InvalidType, instr.Dst.FieldAddr, "unknown destination type %q", byte(instr.Dst.Tag))
	}
}

// dispatchBitwiseUnary/dispatchBitwiseBinary omit the three floating tags:
// Validate already rejects a bitwise op with a floating destination before
// Execute ever sees one, so these never need a float case.
func dispatchBitwiseUnary(m *Memory, instr Instruction, op bitwiseUnaryOpSet) error {
	switch instr.Dst.Tag {
	case TagU, Tagu:
		return evalUnary(m, instr, op.u32)
	case TagI, Tagi:
		return evalUnary(m, instr, op.i32)
	case Tagz:
		return evalUnary(m, instr, op.u64)
	case Tagl:
		return evalUnary(m, instr, op.i64)
	case Tagh:
		return evalUnary(m, instr, op.u16)
	case Tags:
		return evalUnary(m, instr, op.i16)
	case Tagc:
		return evalUnary(m, instr, op.u8)
	case Tagb:
		return evalUnary(m, instr, op.i8)
	default:
		return fatalf(InvalidType, instr.Dst.FieldAddr, "unknown destination type %q", byte(instr.Dst.Tag))
	}
}

func dispatchBitwiseBinary(m *Memory, instr Instruction, op bitwiseBinaryOpSet) error {
	switch instr.Dst.Tag {
	case TagU, Tagu:
		return evalBinary(m, instr, op.u32)
	case TagI, Tagi:
		return evalBinary(m, instr, op.i32)
	case Tagz:
		return evalBinary(m, instr, op.u64)
	case Tagl:
		return evalBinary(m, instr, op.i64)
	case Tagh:
		return evalBinary(m, instr, op.u16)
	case Tags:
		return evalBinary(m, instr, op.i16)
	case Tagc:
		return evalBinary(m, instr, op.u8)
	case Tagb:
		return evalBinary(m, instr, op.i8)
	default:
		return fatalf(InvalidType, instr.Dst.FieldAddr, "unknown destination type %q", byte(instr.Dst.Tag))
	}
}

// --- remainder: integer modulo, or fmod-style floating remainder --------

// dispatchRem implements '%': integer destinations get Go's truncating
// integer %; float destinations get a round-to-zero-quotient remainder via
// math.Mod, C's fmodf/fmod semantics.
func dispatchRem(m *Memory, instr Instruction) error {
	switch instr.Dst.Tag {
	case TagF, Tagf:
		return evalBinary(m, instr, remF32)
	case Tagd:
		return evalBinary(m, instr, remF64)
	case TagU, Tagu:
		return evalBinary(m, instr, remInt[uint32])
	case TagI, Tagi:
		return evalBinary(m, instr, remInt[int32])
	case Tagz:
		return evalBinary(m, instr, remInt[uint64])
	case Tagl:
		return evalBinary(m, instr, remInt[int64])
	case Tagh:
		return evalBinary(m, instr, remInt[uint16])
	case Tags:
		return evalBinary(m, instr, remInt[int16])
	case Tagc:
		return evalBinary(m, instr, remInt[uint8])
	case Tagb:
		return evalBinary(m, instr, remInt[int8])
	default:
		return fatalf(InvalidType, instr.Dst.FieldAddr, "unknown destination type %q", byte(instr.Dst.Tag))
	}
}

func remInt[T integer](a, b T) T { return a % b }

func remF32(a, b float32) float32 { return float32(math.Mod(float64(a), float64(b))) }
func remF64(a, b float64) float64 { return math.Mod(a, b) }

// --- block transfer ------------------------------------------------------

// execBlockCopy implements '@': copy width(dst_tag) * src2 bytes from
// address_of(src1) to address_of(dst), overlap safe. Bounds were already
// grown and checked by Validate.
func execBlockCopy(m *Memory, instr Instruction) error {
	count, err := blockCopyCount(m, instr)
	if err != nil {
		return err
	}
	n := instr.Dst.Tag.Width() * count
	return m.Copy(instr.Dst.AddressOf(), instr.Src1.AddressOf(), n)
}
