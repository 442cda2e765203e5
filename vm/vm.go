package vm

import "github.com/sirupsen/logrus"

// Machine ties a Memory to the fetch/validate/execute cycle through four
// cooperating pieces: Memory itself, the operand decoder
// (Fetch/loadNative/storeNative), the validator (Validate), and the
// executor (Execute). Machine is the thing that drives all four every cycle.
type Machine struct {
	Mem   *Memory
	Trace bool
	Log   *logrus.Logger
}

// NewMachine creates a Machine with a fresh, empty Memory. A ceiling of 0
// falls back to DefaultCeiling.
func NewMachine(ceiling uint32) *Machine {
	return &Machine{
		Mem: NewMemory(ceiling),
		Log: logrus.StandardLogger(),
	}
}

// IP returns the instruction pointer currently stored at memory offset 0.
func (vm *Machine) IP() (uint32, error) {
	return vm.Mem.LoadU32(0)
}

// Step fetches, validates, and executes exactly one instruction at the
// current IP. It never caches the decoded instruction across calls:
// self-modifying programs may have rewritten the cell the IP now points
// to since the last cycle.
func (vm *Machine) Step() error {
	ip, err := vm.IP()
	if err != nil {
		return err
	}

	instr, err := Fetch(vm.Mem, ip)
	if err != nil {
		return err
	}

	if err := Validate(vm.Mem, instr); err != nil {
		return err
	}

	if vm.Trace {
		vm.Log.WithFields(logrus.Fields{
			"ip":   instr.Addr,
			"op":   string(rune(instr.Op)),
			"dst":  string(rune(instr.Dst.Tag)),
			"src1": string(rune(instr.Src1.Tag)),
			"src2": string(rune(instr.Src2.Tag)),
			"brk":  vm.Mem.Break(),
		}).Trace("step")
	}

	return Execute(vm.Mem, instr)
}
