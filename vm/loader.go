package vm

import (
	"errors"
	"io"
	"os"
)

// chunkSize bounds how much of a file is read and grown into memory at
// once: 4096 bytes at a time rather than all at once, so a load failure
// partway through still leaves Memory in a well-defined (if incomplete)
// state.
const chunkSize = 4096

// LoadFile reads filename into mem starting at addr, advancing and
// returning the address one past the last byte written. Growth happens
// chunk by chunk through Memory.Ensure, so a file that would push the
// machine over its ceiling fails with OutOfMemory at the offending
// chunk boundary rather than after a large up-front allocation.
func LoadFile(mem *Memory, addr uint32, filename string) (uint32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return addr, fatalf(LoadError, addr, "could not open %q: %v", filename, err)
	}
	defer f.Close()

	cursor := addr
	buf := make([]byte, chunkSize)
	for {
		if err := mem.Ensure(cursor + chunkSize); err != nil {
			return cursor, err
		}

		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			for i := 0; i < n; i++ {
				if err := mem.StoreU8(cursor+uint32(i), buf[i]); err != nil {
					return cursor, err
				}
			}
			cursor += uint32(n)
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return cursor, nil
		}
		return cursor, fatalf(LoadError, cursor, "could not read %q: %v", filename, readErr)
	}
}
