package vm

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestMemoryEnsureGrowsExactly(t *testing.T) {
	m := NewMemory(1024)
	assert(t, m.Break() == 0, "fresh memory should start at break 0, got %d", m.Break())

	assert(t, m.Ensure(10) == nil, "Ensure(10) should succeed")
	assert(t, m.Break() == 10, "break should be exactly 10, got %d", m.Break())

	// Ensure with a smaller address is a no-op.
	assert(t, m.Ensure(4) == nil, "Ensure(4) should be a no-op")
	assert(t, m.Break() == 10, "break should remain 10, got %d", m.Break())
}

func TestMemoryEnsureOutOfMemory(t *testing.T) {
	m := NewMemory(16)
	err := m.Ensure(17)
	assert(t, err != nil, "Ensure past ceiling should fail")
	fe, ok := err.(*FatalError)
	assert(t, ok, "expected *FatalError, got %T", err)
	assert(t, fe.Kind == OutOfMemory, "expected OutOfMemory, got %s", fe.Kind)
}

func TestMemoryTypedRoundTrip(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	assert(t, m.Ensure(32) == nil, "Ensure(32) failed")

	assert(t, m.StoreU64(0, 0x0102030405060708) == nil, "StoreU64 failed")
	v, err := m.LoadU64(0)
	assert(t, err == nil, "LoadU64 failed: %v", err)
	assert(t, v == 0x0102030405060708, "round trip mismatch: got %x", v)

	assert(t, m.StoreF32(8, 3.5) == nil, "StoreF32 failed")
	f, err := m.LoadF32(8)
	assert(t, err == nil, "LoadF32 failed: %v", err)
	assert(t, f == 3.5, "float round trip mismatch: got %v", f)

	assert(t, m.StoreU8(16, 0xFF) == nil, "StoreU8 failed")
	b, err := m.LoadU8(16)
	assert(t, err == nil, "LoadU8 failed: %v", err)
	assert(t, b == 0xFF, "byte round trip mismatch: got %x", b)
}

func TestMemoryLoadOutOfBounds(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	assert(t, m.Ensure(4) == nil, "Ensure(4) failed")

	_, err := m.LoadU32(1) // needs bytes [1,5), break is 4
	assert(t, err != nil, "load past break should fail")
	fe, ok := err.(*FatalError)
	assert(t, ok, "expected *FatalError, got %T", err)
	assert(t, fe.Kind == InvalidAddress, "expected InvalidAddress, got %s", fe.Kind)
}

func TestMemoryCopyOverlapSafe(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	assert(t, m.Ensure(8) == nil, "Ensure(8) failed")
	for i := uint32(0); i < 8; i++ {
		assert(t, m.StoreU8(i, uint8(i)) == nil, "seed store failed")
	}

	// Copy [0,6) to [2,8): an overlapping forward move.
	assert(t, m.Copy(2, 0, 6) == nil, "Copy failed")
	want := []uint8{0, 1, 0, 1, 2, 3, 4, 5}
	for i, w := range want {
		got, err := m.LoadU8(uint32(i))
		assert(t, err == nil, "LoadU8(%d) failed: %v", i, err)
		assert(t, got == w, "byte %d: want %d got %d", i, w, got)
	}
}

func TestMemorySnapshotRestore(t *testing.T) {
	m := NewMemory(DefaultCeiling)
	assert(t, m.Ensure(4) == nil, "Ensure(4) failed")
	assert(t, m.StoreU32(0, 42) == nil, "StoreU32 failed")

	snap := m.Snapshot()
	assert(t, m.StoreU32(0, 99) == nil, "StoreU32 failed")

	assert(t, m.Restore(snap) == nil, "Restore failed")
	v, err := m.LoadU32(0)
	assert(t, err == nil, "LoadU32 failed: %v", err)
	assert(t, v == 42, "restore did not recover snapshot value, got %d", v)
}
