package dm

import (
	"time"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
)

// Activate runs the DM activation handshake once after connect +
// power-up (§4.4). The three CSW magic values, the bank toggles, and the
// expected 0x04010001 readback are an RP2350 requirement and are the
// activation protocol, not configurable behavior.
func (d *DM) Activate() error {
	if err := d.AP.SelectBank(riscvAPSEL, 0, false); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}
	if err := d.AP.WriteCSW(riscvAPSEL, cswMemAccess); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}
	if err := d.writeDM(regDMCONTROL, dmcontrolDMACTIVE); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}

	if err := d.AP.SelectBank(riscvAPSEL, 1, false); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}

	steps := []uint32{cswActivationStep0, cswActivationStep1, cswActivationStep2}
	for _, csw := range steps {
		if err := d.AP.WriteCSW(riscvAPSEL, csw); err != nil {
			return errs.Wrap(errs.Of(err), "dm.Activate", err)
		}
		if err := d.AP.Flush(); err != nil {
			return errs.Wrap(errs.Of(err), "dm.Activate", err)
		}
		time.Sleep(activationSettle)
	}

	got, err := d.AP.ReadCSW(riscvAPSEL)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}
	if got != cswActivationWant {
		return errs.New(errs.InvalidState, "dm.Activate", "csw readback %#08x, want %#08x", got, cswActivationWant)
	}

	if err := d.AP.SelectBank(riscvAPSEL, 0, false); err != nil {
		return errs.Wrap(errs.Of(err), "dm.Activate", err)
	}

	d.initialized = true
	if err := d.initSBA(); err != nil {
		return err
	}
	return nil
}
