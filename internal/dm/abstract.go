package dm

import (
	"time"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
)

// pollAbstractCS waits for ABSTRACTCS.busy to clear, with a ~100us
// cadence and a ~10ms budget. A non-zero cmderr is cleared in place
// before AbstractCmd error is raised, so the next operation starts from
// a clean slate.
func (d *DM) pollAbstractCS(op string) error {
	for i := 0; i < abstractPollIters; i++ {
		v, err := d.readDM(regABSTRACTCS)
		if err != nil {
			return errs.Wrap(errs.Of(err), op, err)
		}
		if v&abstractcsBusy != 0 {
			time.Sleep(abstractPollEvery)
			continue
		}
		cmderr := (v >> abstractcsCmdErrPos) & abstractcsCmdErrMask
		if cmderr != 0 {
			_ = d.writeDM(regABSTRACTCS, abstractcsClearErr)
			return errs.New(errs.AbstractCmd, op, "cmderr=%d", cmderr)
		}
		return nil
	}
	return errs.New(errs.Timeout, op, "abstractcs busy after %d polls", abstractPollIters)
}

// abstractReadGPR issues an abstract command reading GPR n of the
// currently-selected hart and returns its value via DATA0.
func (d *DM) abstractReadGPR(hart, n int) (uint32, error) {
	if err := d.selectHart(hart, 0); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.abstractReadGPR", err)
	}
	cmd := uint32(regnoGPRBase+n) | commandTransfer | commandAarsize32
	if err := d.writeDM(regCOMMAND, cmd); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.abstractReadGPR", err)
	}
	if err := d.pollAbstractCS("dm.abstractReadGPR"); err != nil {
		return 0, err
	}
	v, err := d.readDM(regDATA0)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.abstractReadGPR", err)
	}
	return v, nil
}

// abstractWriteGPR issues an abstract command writing value into GPR n
// of the currently-selected hart.
func (d *DM) abstractWriteGPR(hart, n int, value uint32) error {
	if err := d.selectHart(hart, 0); err != nil {
		return errs.Wrap(errs.Of(err), "dm.abstractWriteGPR", err)
	}
	if err := d.writeDM(regDATA0, value); err != nil {
		return errs.Wrap(errs.Of(err), "dm.abstractWriteGPR", err)
	}
	cmd := uint32(regnoGPRBase+n) | commandTransfer | commandWrite | commandAarsize32
	if err := d.writeDM(regCOMMAND, cmd); err != nil {
		return errs.Wrap(errs.Of(err), "dm.abstractWriteGPR", err)
	}
	return d.pollAbstractCS("dm.abstractWriteGPR")
}

// ReadReg returns GPR n of hart. x0 is hardwired zero and never reaches
// the hardware. When caching is enabled and the cache is valid, the
// cached slot is returned without a DM round trip.
func (d *DM) ReadReg(hart, n int) (uint32, error) {
	if err := d.requireInit("dm.ReadReg"); err != nil {
		return 0, err
	}
	h, err := d.hart(hart)
	if err != nil {
		return 0, err
	}
	if !validGPR(n) {
		return 0, errs.New(errs.InvalidParam, "dm.ReadReg", "gpr %d out of range", n)
	}
	if n == 0 {
		return 0, nil
	}
	if d.cacheOn && h.cacheValid {
		return h.gprs[n], nil
	}
	v, err := d.abstractReadGPR(hart, n)
	if err != nil {
		return 0, err
	}
	if d.cacheOn {
		h.gprs[n] = v
	}
	return v, nil
}

// WriteReg writes GPR n of hart. Requires the hart to be halted (abstract
// register transfers are undefined on a running hart).
func (d *DM) WriteReg(hart, n int, value uint32) error {
	if err := d.requireInit("dm.WriteReg"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}
	if !validGPR(n) {
		return errs.New(errs.InvalidParam, "dm.WriteReg", "gpr %d out of range", n)
	}
	if !h.haltStateKnown || !h.halted {
		return errs.New(errs.NotHalted, "dm.WriteReg", "hart %d", hart)
	}
	if n == 0 {
		return nil
	}
	if err := d.abstractWriteGPR(hart, n, value); err != nil {
		return err
	}
	if d.cacheOn {
		h.gprs[n] = value
	}
	return nil
}

// ReadAllRegs eagerly populates all 32 GPR cache slots and marks the
// cache valid.
func (d *DM) ReadAllRegs(hart int) ([numGPRs]uint32, error) {
	var out [numGPRs]uint32
	if err := d.requireInit("dm.ReadAllRegs"); err != nil {
		return out, err
	}
	h, err := d.hart(hart)
	if err != nil {
		return out, err
	}
	if !h.haltStateKnown || !h.halted {
		return out, errs.New(errs.NotHalted, "dm.ReadAllRegs", "hart %d", hart)
	}
	out[0] = 0
	for n := 1; n < numGPRs; n++ {
		v, err := d.abstractReadGPR(hart, n)
		if err != nil {
			return out, err
		}
		out[n] = v
	}
	if d.cacheOn {
		h.gprs = out
		h.cacheValid = true
	}
	return out, nil
}
