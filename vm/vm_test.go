package vm

import (
	"encoding/binary"
	"math"
	"testing"
)

// encodeInstr builds the 16-byte wire form of one instruction: opcode,
// three type tags, then the three 4-byte operand words.
func encodeInstr(op Opcode, dstTag, src1Tag, src2Tag Tag, dstRaw, src1Raw, src2Raw uint32) []byte {
	b := make([]byte, InstructionSize)
	b[opcodeOffset] = byte(op)
	b[dstTagOffset] = byte(dstTag)
	b[src1TagOffset] = byte(src1Tag)
	b[src2TagOffset] = byte(src2Tag)
	binary.LittleEndian.PutUint32(b[dstOpOffset:], dstRaw)
	binary.LittleEndian.PutUint32(b[src1OpOffset:], src1Raw)
	binary.LittleEndian.PutUint32(b[src2OpOffset:], src2Raw)
	return b
}

// loadProgram writes ip (4 bytes) followed by the concatenation of instrs
// starting at address 4, and leaves the IP at 4 so the first fetch lands
// on the first instruction.
func loadProgram(t *testing.T, m *Memory, instrs ...[]byte) {
	t.Helper()
	total := uint32(4)
	for _, instr := range instrs {
		total += uint32(len(instr))
	}
	assert(t, m.Ensure(total) == nil, "Ensure(%d) failed", total)
	assert(t, m.StoreU32(0, 4) == nil, "seeding IP failed")

	addr := uint32(4)
	for _, instr := range instrs {
		for i, b := range instr {
			assert(t, m.StoreU8(addr+uint32(i), b) == nil, "writing instruction byte failed")
		}
		addr += uint32(len(instr))
	}
}

func runToCompletion(t *testing.T, m *Memory) error {
	t.Helper()
	machine := &Machine{Mem: m}
	return RunProgram(machine)
}

func TestHaltAtStart(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	loadProgram(t, m, encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0))

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt, got %v", err)
}

func TestImmediateAdd(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	// dst is indirect unsigned 32 at address 100: result := 7 + 5
	assert(t, m.Ensure(104) == nil, "Ensure failed")
	loadProgram(t, m,
		encodeInstr(OpAdd, Tagu, TagU, TagU, 100, 7, 5),
		encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0),
	)

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt, got %v", err)

	result, loadErr := m.LoadU32(100)
	assert(t, loadErr == nil, "LoadU32(100) failed: %v", loadErr)
	assert(t, result == 12, "expected 7+5=12, got %d", result)
}

func TestIndirectMultiplyWithWidening(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	// src1 is an 8-bit unsigned cell at 200 holding 6; src2 is a 16-bit
	// unsigned cell at 204 holding 7; dst is a 64-bit cell at 208. The
	// destination tag selects uint64, so both sources widen on load.
	assert(t, m.Ensure(216) == nil, "Ensure failed")
	assert(t, m.StoreU8(200, 6) == nil, "seed src1 failed")
	assert(t, m.StoreU16(204, 7) == nil, "seed src2 failed")

	loadProgram(t, m,
		encodeInstr(OpMul, Tagz, Tagc, Tagh, 208, 200, 204),
		encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0),
	)

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt, got %v", err)

	result, loadErr := m.LoadU64(208)
	assert(t, loadErr == nil, "LoadU64(208) failed: %v", loadErr)
	assert(t, result == 42, "expected 6*7=42, got %d", result)
}

func TestBlockCopyWithOverlap(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	// Four uint32 cells starting at 300: [10, 20, 30, 40]. Copy 3 elements
	// from 300 to 304 (an overlapping forward shift by one element).
	base := uint32(300)
	assert(t, m.Ensure(base+16) == nil, "Ensure failed")
	for i, v := range []uint32{10, 20, 30, 40} {
		assert(t, m.StoreU32(base+uint32(i)*4, v) == nil, "seed failed")
	}

	loadProgram(t, m,
		encodeInstr(OpBlockCopy, Tagu, Tagu, TagU, base+4, base, 3),
		encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0),
	)

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt, got %v", err)

	want := []uint32{10, 10, 20, 30}
	for i, w := range want {
		got, loadErr := m.LoadU32(base + uint32(i)*4)
		assert(t, loadErr == nil, "LoadU32 failed: %v", loadErr)
		assert(t, got == w, "cell %d: want %d got %d", i, w, got)
	}
}

func TestSelfModifyingJump(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	// The instruction at address 4 assigns an immediate jump target into
	// memory cell 0 (the IP) directly, via an indirect destination of
	// address 0. Execute first advances the IP to 4+16=20 (the fallthrough
	// address of an ordinary nop), then the '=' operator itself overwrites
	// that same cell with 40, so the next fetch lands on the halt at 40
	// instead of falling through to the nop at 20.
	haltAddr := uint32(40)
	assert(t, m.Ensure(haltAddr+InstructionSize) == nil, "Ensure failed")
	loadProgram(t, m,
		encodeInstr(OpAssign, Tagu, TagU, TagU, 0, haltAddr, 0), // dst: memory cell 0, src1: immediate 40
		encodeInstr(OpNop, TagU, TagU, TagU, 0, 0, 0),           // would run if the jump didn't take
	)
	halt := encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0)
	for i, b := range halt {
		assert(t, m.StoreU8(haltAddr+uint32(i), b) == nil, "writing halt failed")
	}

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt via self-modified jump, got %v", err)

	ip, ipErr := m.LoadU32(0)
	assert(t, ipErr == nil, "LoadU32(0) failed: %v", ipErr)
	assert(t, ip == haltAddr+InstructionSize, "expected ip to land past the patched halt, got %d", ip)
}

func TestBitwiseOnFloatDestinationRejected(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	loadProgram(t, m, encodeInstr(OpAnd, TagF, TagU, TagU, 0, 1, 1))

	err := runToCompletion(t, m)
	assert(t, err != nil, "expected a fatal error")
	fe, ok := err.(*FatalError)
	assert(t, ok, "expected *FatalError, got %T", err)
	assert(t, fe.Kind == InvalidTypeForOp, "expected InvalidTypeForOp, got %s", fe.Kind)
}

func TestUnknownOpcodeIsFatal(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	loadProgram(t, m, encodeInstr(Opcode('?'), TagU, TagU, TagU, 0, 0, 0))

	err := runToCompletion(t, m)
	assert(t, err != nil, "expected a fatal error")
	fe, ok := err.(*FatalError)
	assert(t, ok, "expected *FatalError, got %T", err)
	assert(t, fe.Kind == InvalidOp, "expected InvalidOp, got %s", fe.Kind)
}

func TestDivisionByZeroReportedDistinctly(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	loadProgram(t, m, encodeInstr(OpDiv, Tagu, TagU, TagU, 100, 10, 0))
	assert(t, m.Ensure(104) == nil, "Ensure failed")

	err := runToCompletion(t, m)
	assert(t, err != nil, "expected a fatal error")
	fe, ok := err.(*FatalError)
	assert(t, ok, "expected *FatalError, got %T", err)
	assert(t, fe.Kind == DivisionByZero, "expected DivisionByZero, got %s", fe.Kind)
}

func TestFloatRemainderMatchesFmod(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	assert(t, m.Ensure(112) == nil, "Ensure failed")
	assert(t, m.StoreF32(100, 5.5) == nil, "seed failed")
	assert(t, m.StoreF32(104, 2.0) == nil, "seed failed")

	loadProgram(t, m,
		encodeInstr(OpRem, Tagf, Tagf, Tagf, 108, 100, 104),
		encodeInstr(OpHalt, TagU, TagU, TagU, 0, 0, 0),
	)

	err := runToCompletion(t, m)
	assert(t, err == nil, "expected clean halt, got %v", err)

	got, loadErr := m.LoadF32(108)
	assert(t, loadErr == nil, "LoadF32 failed: %v", loadErr)
	want := float32(math.Mod(5.5, 2.0))
	assert(t, got == want, "expected fmod(5.5, 2.0)=%v, got %v", want, got)
}
