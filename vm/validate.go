package vm

// Validate re-checks every precondition an instruction must satisfy before
// the one at instr.Addr may be executed: a known opcode, known type tags,
// in-bounds operands, and any operator-specific constraints (block-copy
// bounds, bitwise-on-float). It is re-run every single cycle — self-modifying
// programs are legal, so nothing here may be cached from a prior fetch.
func Validate(m *Memory, instr Instruction) error {
	if !instr.Op.Valid() {
		return fatalf(InvalidOp, instr.Addr, "unknown opcode %q", byte(instr.Op))
	}

	for _, op := range []Operand{instr.Dst, instr.Src1, instr.Src2} {
		if !op.Tag.Valid() {
			return fatalf(InvalidType, op.FieldAddr, "unknown type tag %q", byte(op.Tag))
		}
	}

	for _, op := range []Operand{instr.Dst, instr.Src1, instr.Src2} {
		if op.Tag.Immediate() {
			continue
		}
		if err := m.Ensure(op.Raw + op.Tag.Width()); err != nil {
			return err
		}
	}

	switch instr.Op {
	case OpBlockCopy:
		count, err := blockCopyCount(m, instr)
		if err != nil {
			return err
		}
		n := instr.Dst.Tag.Width() * count
		if err := m.Ensure(instr.Dst.AddressOf() + n); err != nil {
			return err
		}
		if err := m.Ensure(instr.Src1.AddressOf() + n); err != nil {
			return err
		}
	default:
		if instr.Op.IsBitwise() && instr.Dst.Tag.Float() {
			return fatalf(InvalidTypeForOp, instr.Dst.FieldAddr,
				"bitwise operator %q cannot target floating type %q", byte(instr.Op), byte(instr.Dst.Tag))
		}
	}

	return nil
}

// blockCopyCount loads src2 (the element count operand of '@') and
// converts it to uint32, the unit '@' counts in.
func blockCopyCount(m *Memory, instr Instruction) (uint32, error) {
	native, err := loadNative(m, instr.Src2)
	if err != nil {
		return 0, err
	}
	return convert[uint32](native), nil
}
