package dm

import "github.com/amgspendingspree/pico2-swd-riscv/errs"

// TraceRecord is produced once per stepped instruction (§3): the PC,
// the instruction word at that PC, and optionally a 32-slot GPR
// snapshot.
type TraceRecord struct {
	PC          uint32
	Instruction uint32
	GPRs        *[numGPRs]uint32
}

// TraceFunc is invoked synchronously between steps; it must not call
// back into the same DM instance re-entrantly. Returning false stops
// tracing.
type TraceFunc func(rec TraceRecord) bool

// Trace requires hart to be halted. It loops up to maxInstructions (0 =
// unbounded): read PC, read the instruction at PC via SBA, optionally
// snapshot all GPRs, invoke cb, then single-step. It returns the count of
// instructions traced.
func (d *DM) Trace(hart int, maxInstructions int, captureRegs bool, cb TraceFunc) (int, error) {
	if err := d.requireInit("dm.Trace"); err != nil {
		return 0, err
	}
	h, err := d.hart(hart)
	if err != nil {
		return 0, err
	}
	if !h.haltStateKnown || !h.halted {
		return 0, errs.New(errs.NotHalted, "dm.Trace", "hart %d", hart)
	}

	count := 0
	for maxInstructions == 0 || count < maxInstructions {
		pc, err := d.ReadPC(hart)
		if err != nil {
			return count, err
		}
		insn, err := d.ReadMem32(pc)
		if err != nil {
			return count, err
		}

		rec := TraceRecord{PC: pc, Instruction: insn}
		if captureRegs {
			regs, err := d.ReadAllRegs(hart)
			if err != nil {
				return count, err
			}
			rec.GPRs = &regs
		}

		cont := cb(rec)
		count++
		if !cont {
			break
		}

		if err := d.Step(hart); err != nil {
			return count, err
		}
	}

	if count == 0 {
		return -1, errs.New(errs.InvalidState, "dm.Trace", "zero instructions traced")
	}
	return count, nil
}
