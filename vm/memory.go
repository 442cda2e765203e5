package vm

import (
	"encoding/binary"
	"math"
)

// DefaultCeiling is the memory ceiling used when nothing else overrides
// it: 4 MiB, enough for small programs without an explicit config or flag.
const DefaultCeiling uint32 = 4 * 1024 * 1024

// Memory is the machine's single resizable byte buffer. Offset 0 always
// holds the 4-byte instruction pointer; everything past it is free for
// program and data. Memory grows on demand up to ceiling and never shrinks.
type Memory struct {
	buf     []byte
	brk     uint32
	ceiling uint32
}

// NewMemory creates an empty Memory with the given ceiling. A ceiling of 0
// falls back to DefaultCeiling.
func NewMemory(ceiling uint32) *Memory {
	if ceiling == 0 {
		ceiling = DefaultCeiling
	}
	return &Memory{ceiling: ceiling}
}

// Break returns the current high-water mark: the smallest offset not yet
// addressable.
func (m *Memory) Break() uint32 { return m.brk }

// Ceiling returns the configured upper bound on Break.
func (m *Memory) Ceiling() uint32 { return m.ceiling }

// Ensure grows memory so that addr is addressable (addr <= Break), if it
// isn't already. Growth is to exactly addr bytes, never to a rounded-up
// capacity, so that Break stays bit-exact with what programs observe.
func (m *Memory) Ensure(addr uint32) error {
	if addr <= m.brk {
		return nil
	}
	if addr > m.ceiling {
		return fatalf(OutOfMemory, addr, "required offset %d exceeds ceiling %d", addr, m.ceiling)
	}
	if uint32(cap(m.buf)) >= addr {
		m.buf = m.buf[:addr]
	} else {
		grown := make([]byte, addr)
		copy(grown, m.buf)
		m.buf = grown
	}
	m.brk = addr
	return nil
}

// checkBounds re-checks, on every typed access, the precondition the
// validator normally establishes first (addr+width <= Break), and reports
// InvalidAddress when it does not hold.
func (m *Memory) checkBounds(addr uint32, width uint32) error {
	if addr+width < addr || addr+width > m.brk {
		return fatalf(InvalidAddress, addr, "access of width %d exceeds break %d", width, m.brk)
	}
	return nil
}

func (m *Memory) LoadU8(addr uint32) (uint8, error) {
	if err := m.checkBounds(addr, 1); err != nil {
		return 0, err
	}
	return m.buf[addr], nil
}

func (m *Memory) StoreU8(addr uint32, v uint8) error {
	if err := m.checkBounds(addr, 1); err != nil {
		return err
	}
	m.buf[addr] = v
	return nil
}

func (m *Memory) LoadU16(addr uint32) (uint16, error) {
	if err := m.checkBounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[addr:]), nil
}

func (m *Memory) StoreU16(addr uint32, v uint16) error {
	if err := m.checkBounds(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[addr:], v)
	return nil
}

func (m *Memory) LoadU32(addr uint32) (uint32, error) {
	if err := m.checkBounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[addr:]), nil
}

func (m *Memory) StoreU32(addr uint32, v uint32) error {
	if err := m.checkBounds(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[addr:], v)
	return nil
}

func (m *Memory) LoadU64(addr uint32) (uint64, error) {
	if err := m.checkBounds(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[addr:]), nil
}

func (m *Memory) StoreU64(addr uint32, v uint64) error {
	if err := m.checkBounds(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[addr:], v)
	return nil
}

func (m *Memory) LoadF32(addr uint32) (float32, error) {
	bits, err := m.LoadU32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (m *Memory) StoreF32(addr uint32, v float32) error {
	return m.StoreU32(addr, math.Float32bits(v))
}

func (m *Memory) LoadF64(addr uint32) (float64, error) {
	bits, err := m.LoadU64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (m *Memory) StoreF64(addr uint32, v float64) error {
	return m.StoreU64(addr, math.Float64bits(v))
}

// Copy moves n bytes from src to dst, overlap safe (as if through a
// temporary), as the block-transfer operator requires.
func (m *Memory) Copy(dst, src, n uint32) error {
	if err := m.checkBounds(dst, n); err != nil {
		return err
	}
	if err := m.checkBounds(src, n); err != nil {
		return err
	}
	tmp := make([]byte, n)
	copy(tmp, m.buf[src:src+n])
	copy(m.buf[dst:dst+n], tmp)
	return nil
}

// RawSlice returns a view of up to n bytes at addr, sharing the underlying
// buffer. The range is clamped to Break instead of being reported as an
// error: a range that starts past Break yields nil.
func (m *Memory) RawSlice(addr, n uint32) []byte {
	end := addr + n
	if end > m.brk {
		end = m.brk
	}
	if addr > end {
		return nil
	}
	return m.buf[addr:end]
}

// Snapshot returns a copy of the live [0, Break) image, letting a caller
// save/restore the machine's entire state in one shot: the IP lives at
// offset 0, so this image is the whole state.
func (m *Memory) Snapshot() []byte {
	out := make([]byte, m.brk)
	copy(out, m.buf[:m.brk])
	return out
}

// Restore writes a previously captured Snapshot over [0, len(image)),
// growing memory first if needed. Memory never shrinks, so if Break has
// grown past len(image) since the Snapshot, Break stays where it is and
// the bytes past the image are left unchanged.
func (m *Memory) Restore(image []byte) error {
	if err := m.Ensure(uint32(len(image))); err != nil {
		return err
	}
	copy(m.buf[:len(image)], image)
	return nil
}
