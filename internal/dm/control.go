package dm

import (
	"time"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
)

// Halt sets haltreq and polls DMSTATUS.allhalted for up to ~100ms. If the
// hart was already known halted, it returns the soft AlreadyHalted kind
// rather than reaching the hardware again.
func (d *DM) Halt(hart int) error {
	if err := d.requireInit("dm.Halt"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}
	if h.haltStateKnown && h.halted {
		return errs.New(errs.AlreadyHalted, "dm.Halt", "hart %d", hart)
	}
	if err := d.selectHart(hart, dmcontrolHALTREQ); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Halt", err)
	}
	if err := d.pollHaltStatus(dmstatusAllHalted); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Halt", err)
	}
	h.setHalted(true)
	h.invalidateCache()
	return nil
}

// Resume clears haltreq, sets resumereq, and polls DMSTATUS.allrunning.
func (d *DM) Resume(hart int) error {
	if err := d.requireInit("dm.Resume"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}
	if err := d.selectHart(hart, dmcontrolRESUMEREQ); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Resume", err)
	}
	if err := d.pollHaltStatus(dmstatusAllRunning); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Resume", err)
	}
	h.setHalted(false)
	h.invalidateCache()
	return nil
}

func (d *DM) pollHaltStatus(wantBit uint32) error {
	for i := 0; i < haltResumeIters; i++ {
		v, err := d.readDM(regDMSTATUS)
		if err != nil {
			return err
		}
		if v&wantBit != 0 {
			return nil
		}
		time.Sleep(halfResumePollEvery)
	}
	return errs.New(errs.Timeout, "dm.pollHaltStatus", "bit %#x not set after %d polls", wantBit, haltResumeIters)
}

// Step requires the hart to be halted. It single-steps one instruction
// by setting DCSR.step, clearing haltreq, setting resumereq, and polling
// for the auto-halt that follows, then restores DCSR.
func (d *DM) Step(hart int) error {
	if err := d.requireInit("dm.Step"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}
	if !h.haltStateKnown || !h.halted {
		return errs.New(errs.NotHalted, "dm.Step", "hart %d", hart)
	}

	dcsr, err := d.readCSR(hart, csrDCSR)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.Step", err)
	}
	if err := d.writeCSR(hart, csrDCSR, dcsr|dcsrStepBit); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Step", err)
	}

	if err := d.selectHart(hart, dmcontrolRESUMEREQ); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Step", err)
	}
	if err := d.pollHaltStatus(dmstatusAllHalted); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Step", err)
	}

	h.setHalted(true)
	h.invalidateCache()

	return d.writeCSR(hart, csrDCSR, dcsr)
}

// Reset resets one hart. If haltOnReset is true, the hart is halted
// immediately after it exits reset.
func (d *DM) Reset(hart int, haltOnReset bool) error {
	if err := d.requireInit("dm.Reset"); err != nil {
		return err
	}
	h, err := d.hart(hart)
	if err != nil {
		return err
	}

	extra := uint32(dmcontrolNDMRESET)
	if haltOnReset {
		extra |= dmcontrolHALTREQ
	}
	if err := d.selectHart(hart, extra); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Reset", err)
	}
	time.Sleep(resetHoldDuration)

	clearExtra := uint32(0)
	if haltOnReset {
		clearExtra = dmcontrolHALTREQ
	}
	if err := d.selectHart(hart, clearExtra); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Reset", err)
	}
	time.Sleep(resetSettleDuration)

	h.haltStateKnown = false
	h.invalidateCache()

	if haltOnReset {
		if err := d.pollHaltStatus(dmstatusAllHalted); err != nil {
			return errs.Wrap(errs.Of(err), "dm.Reset", err)
		}
		h.setHalted(true)
	}
	return nil
}
