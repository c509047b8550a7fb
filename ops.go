package rvswd

import "github.com/amgspendingspree/pico2-swd-riscv/internal/dm"

// Halt sets haltreq on hart and waits for it to report halted. If the
// hart was already halted, the soft AlreadyHalted error kind is returned
// rather than a failure; callers typically treat it as success.
func (t *Target) Halt(hart int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Halt"); err != nil {
		return err
	}
	return t.dm.Halt(hart)
}

// Resume clears haltreq and sets resumereq on hart, waiting for it to
// report running.
func (t *Target) Resume(hart int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Resume"); err != nil {
		return err
	}
	return t.dm.Resume(hart)
}

// Step single-steps hart by one instruction. The hart must be halted.
func (t *Target) Step(hart int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Step"); err != nil {
		return err
	}
	return t.dm.Step(hart)
}

// Reset resets hart, optionally halting it as soon as it exits reset.
func (t *Target) Reset(hart int, haltOnReset bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Reset"); err != nil {
		return err
	}
	return t.dm.Reset(hart, haltOnReset)
}

// ReadReg returns GPR n of hart (x0 always reads as zero).
func (t *Target) ReadReg(hart, n int) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadReg"); err != nil {
		return 0, err
	}
	return t.dm.ReadReg(hart, n)
}

// WriteReg writes GPR n of hart. The hart must be halted.
func (t *Target) WriteReg(hart, n int, value uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WriteReg"); err != nil {
		return err
	}
	return t.dm.WriteReg(hart, n, value)
}

// ReadAllRegs eagerly populates and returns all 32 GPRs of hart.
func (t *Target) ReadAllRegs(hart int) ([32]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadAllRegs"); err != nil {
		return [32]uint32{}, err
	}
	return t.dm.ReadAllRegs(hart)
}

// ReadPC returns DPC, the PC a halted hart will resume at.
func (t *Target) ReadPC(hart int) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadPC"); err != nil {
		return 0, err
	}
	return t.dm.ReadPC(hart)
}

// WritePC writes DPC of a halted hart.
func (t *Target) WritePC(hart int, pc uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WritePC"); err != nil {
		return err
	}
	return t.dm.WritePC(hart, pc)
}

// ReadMem32/ReadMem16/ReadMem8 and their Write counterparts access target
// memory through System Bus Access, independent of hart halt state.
func (t *Target) ReadMem32(addr uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadMem32"); err != nil {
		return 0, err
	}
	return t.dm.ReadMem32(addr)
}

func (t *Target) WriteMem32(addr uint32, value uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WriteMem32"); err != nil {
		return err
	}
	return t.dm.WriteMem32(addr, value)
}

func (t *Target) ReadMem16(addr uint32) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadMem16"); err != nil {
		return 0, err
	}
	return t.dm.ReadMem16(addr)
}

func (t *Target) WriteMem16(addr uint32, value uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WriteMem16"); err != nil {
		return err
	}
	return t.dm.WriteMem16(addr, value)
}

func (t *Target) ReadMem8(addr uint32) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadMem8"); err != nil {
		return 0, err
	}
	return t.dm.ReadMem8(addr)
}

func (t *Target) WriteMem8(addr uint32, value uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WriteMem8"); err != nil {
		return err
	}
	return t.dm.WriteMem8(addr, value)
}

// ReadBlock32/WriteBlock32 access count consecutive aligned words.
func (t *Target) ReadBlock32(addr uint32, count int) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ReadBlock32"); err != nil {
		return nil, err
	}
	return t.dm.ReadBlock32(addr, count)
}

func (t *Target) WriteBlock32(addr uint32, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.WriteBlock32"); err != nil {
		return err
	}
	return t.dm.WriteBlock32(addr, words)
}

// Upload writes words to memory starting at addr, verifying each word.
func (t *Target) Upload(addr uint32, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Upload"); err != nil {
		return err
	}
	return t.dm.Upload(addr, words)
}

// ExecuteCode uploads words, halts hart, sets PC to addr, verifies it,
// and resumes.
func (t *Target) ExecuteCode(hart int, addr uint32, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.ExecuteCode"); err != nil {
		return err
	}
	return t.dm.ExecuteCode(hart, addr, words)
}

// EnableCache turns the GPR cache on or off.
func (t *Target) EnableCache(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dm == nil {
		return
	}
	t.dm.EnableCache(on)
}

// TraceRecord and TraceFunc mirror the dm package's tracing types at the
// public API boundary.
type TraceRecord = dm.TraceRecord
type TraceFunc = dm.TraceFunc

// Trace single-steps hart, invoking cb once per instruction, until cb
// returns false or maxInstructions instructions have been traced (0 =
// unbounded). It returns the count traced, or a negative error if zero
// instructions completed.
func (t *Target) Trace(hart int, maxInstructions int, captureRegs bool, cb TraceFunc) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireDMInit("rvswd.Trace"); err != nil {
		return 0, err
	}
	return t.dm.Trace(hart, maxInstructions, captureRegs, cb)
}
