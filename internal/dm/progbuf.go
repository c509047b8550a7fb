package dm

import "github.com/amgspendingspree/pico2-swd-riscv/errs"

// numProgBufWords is the RP2350 DM's physical program-buffer depth
// (progbufsize=2 in ABSTRACTCS): PROGBUF0 and PROGBUF1. The RISC-V
// external debug spec permits up to 16 program-buffer words; a count of
// 0 or > 16 is the spec'd INVALID_PARAM boundary (checked in
// validateProgBufCount below regardless of how many words this
// particular implementation can physically hold), and a count that is
// in range but exceeds what this DM exposes is rejected the same way.
const numProgBufWords = 2

func validateProgBufCount(n int) error {
	if n == 0 || n > 16 {
		return errs.New(errs.InvalidParam, "dm.runProgBuf", "program buffer count %d out of range [1,16]", n)
	}
	if n > numProgBufWords {
		return errs.New(errs.InvalidParam, "dm.runProgBuf", "program buffer count %d exceeds %d physical words", n, numProgBufWords)
	}
	return nil
}

// runProgBuf writes a micro-program (at most numProgBufWords instructions)
// into PROGBUF0/1 and triggers execution via a postexec-only COMMAND
// write, with no register transfer. Per §9, public callers always run in
// postexec mode; a postexec-false variant is intentionally not exposed
// outside this file. Every caller in this package supplies exactly
// numProgBufWords instructions (the micro-program always ends in
// insnEBREAK), but the count is still validated per spec.md's program
// buffer count boundary rather than assumed.
func (d *DM) runProgBuf(hart int, insns ...uint32) error {
	if err := validateProgBufCount(len(insns)); err != nil {
		return err
	}
	if err := d.selectHart(hart, 0); err != nil {
		return errs.Wrap(errs.Of(err), "dm.runProgBuf", err)
	}
	regs := [numProgBufWords]uint32{regPROGBUF0, regPROGBUF1}
	for i, insn := range insns {
		if err := d.writeDM(regs[i], insn); err != nil {
			return errs.Wrap(errs.Of(err), "dm.runProgBuf", err)
		}
	}
	if err := d.writeDM(regCOMMAND, commandPostExec); err != nil {
		return errs.Wrap(errs.Of(err), "dm.runProgBuf", err)
	}
	return d.pollAbstractCS("dm.runProgBuf")
}

// readCSR reads a CSR via the program-buffer mechanism (§4.4): save x8,
// csrr s0,<csr>; ebreak, read x8 back, restore x8.
func (d *DM) readCSR(hart int, csr uint32) (uint32, error) {
	saved, err := d.abstractReadGPR(hart, 8)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.readCSR", err)
	}
	restore := func() error {
		return d.abstractWriteGPR(hart, 8, saved)
	}

	if err := d.runProgBuf(hart, insnCSRR(csr), insnEBREAK); err != nil {
		_ = restore()
		return 0, err
	}
	v, err := d.abstractReadGPR(hart, 8)
	if err != nil {
		_ = restore()
		return 0, errs.Wrap(errs.Of(err), "dm.readCSR", err)
	}
	if err := restore(); err != nil {
		return 0, err
	}
	return v, nil
}

// writeCSR writes a CSR via the program-buffer mechanism: save x8,
// transfer value into x8, csrw <csr>,s0; ebreak, restore x8.
func (d *DM) writeCSR(hart int, csr uint32, value uint32) error {
	saved, err := d.abstractReadGPR(hart, 8)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.writeCSR", err)
	}
	restore := func() error {
		return d.abstractWriteGPR(hart, 8, saved)
	}

	if err := d.abstractWriteGPR(hart, 8, value); err != nil {
		_ = restore()
		return err
	}
	if err := d.runProgBuf(hart, insnCSRW(csr), insnEBREAK); err != nil {
		_ = restore()
		return err
	}
	return restore()
}

// ReadPC reads DPC, the PC a halted hart will resume at.
func (d *DM) ReadPC(hart int) (uint32, error) {
	if err := d.requireInit("dm.ReadPC"); err != nil {
		return 0, err
	}
	h, err := d.hart(hart)
	if err != nil {
		return 0, err
	}
	if !h.haltStateKnown || !h.halted {
		return 0, errs.New(errs.NotHalted, "dm.ReadPC", "hart %d", hart)
	}
	return d.readCSR(hart, csrDPC)
}

// WritePC writes DPC.
func (d *DM) WritePC(hart int, pc uint32) error {
	if err := d.requireInit("dm.WritePC"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}
	if !h.haltStateKnown || !h.halted {
		return errs.New(errs.NotHalted, "dm.WritePC", "hart %d", hart)
	}
	return d.writeCSR(hart, csrDPC, pc)
}
