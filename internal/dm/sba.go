package dm

import "github.com/amgspendingspree/pico2-swd-riscv/errs"

// SBCS fields.
const (
	sbcsSBASIZEPos  = 5
	sbcsSBASIZEMask = 0x7F // bits 11:5
	sbcsSBERRORPos  = 12
	sbcsSBERRORMask = 0x7 // bits 14:12
	sbcsSBACCESS32  = 2 << 17
	sbcsSBREADONADDR = 1 << 20
)

// initSBA is run once after DM activation: verify sbasize is non-zero,
// clear any sticky sberror bits, then configure 32-bit access with
// read-on-address-write so SBA operates independently of hart halt
// state.
func (d *DM) initSBA() error {
	v, err := d.readDM(regSBCS)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.initSBA", err)
	}
	sbasize := (v >> sbcsSBASIZEPos) & sbcsSBASIZEMask
	if sbasize == 0 {
		return errs.New(errs.InvalidState, "dm.initSBA", "sbasize is zero")
	}
	clearErr := v | (sbcsSBERRORMask << sbcsSBERRORPos)
	if err := d.writeDM(regSBCS, clearErr); err != nil {
		return errs.Wrap(errs.Of(err), "dm.initSBA", err)
	}
	if err := d.writeDM(regSBCS, sbcsSBACCESS32|sbcsSBREADONADDR); err != nil {
		return errs.Wrap(errs.Of(err), "dm.initSBA", err)
	}
	d.sbaReady = true
	return nil
}

func (d *DM) requireSBA(op string) error {
	if err := d.requireInit(op); err != nil {
		return err
	}
	if !d.sbaReady {
		return errs.New(errs.NotInitialized, op, "system bus access not initialized")
	}
	return nil
}

// sbaReadWord reads one 32-bit word from target memory via SBA: writing
// SBADDRESS0 triggers the read, then SBDATA0 is read.
func (d *DM) sbaReadWord(addr uint32) (uint32, error) {
	if err := d.writeDM(regSBADDRESS0, addr); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.sbaReadWord", err)
	}
	v, err := d.readDM(regSBDATA0)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dm.sbaReadWord", err)
	}
	return v, nil
}

// sbaWriteWord writes one 32-bit word to target memory via SBA.
func (d *DM) sbaWriteWord(addr uint32, value uint32) error {
	if err := d.writeDM(regSBADDRESS0, addr); err != nil {
		return errs.Wrap(errs.Of(err), "dm.sbaWriteWord", err)
	}
	return d.writeDM(regSBDATA0, value)
}

// ReadMem32 reads one aligned 32-bit word from target memory via SBA.
func (d *DM) ReadMem32(addr uint32) (uint32, error) {
	if err := d.requireSBA("dm.ReadMem32"); err != nil {
		return 0, err
	}
	if addr%4 != 0 {
		return 0, errs.New(errs.Alignment, "dm.ReadMem32", "addr=%#x", addr)
	}
	return d.sbaReadWord(addr)
}

// WriteMem32 writes one aligned 32-bit word to target memory via SBA.
func (d *DM) WriteMem32(addr uint32, value uint32) error {
	if err := d.requireSBA("dm.WriteMem32"); err != nil {
		return err
	}
	if addr%4 != 0 {
		return errs.New(errs.Alignment, "dm.WriteMem32", "addr=%#x", addr)
	}
	return d.sbaWriteWord(addr, value)
}
