package dm

import (
	"github.com/amgspendingspree/pico2-swd-riscv/errs"
)

// mem is the narrow slice of *dap.DAP this package needs: 32-bit memory
// access through the RISC-V APB-AP. Defined as an interface so tests can
// substitute a software model without constructing a full DAP.
type mem interface {
	ReadMem32(apsel uint8, addr uint32) (uint32, error)
	WriteMem32(apsel uint8, addr uint32, value uint32) error
	WriteCSW(apsel uint8, value uint32) error
	ReadCSW(apsel uint8) (uint32, error)
	SelectBank(apsel, bank uint8, ctrlsel bool) error
	Flush() error
}

// DM drives the RP2350 Debug Module over a DAP connection.
type DM struct {
	AP          mem
	initialized bool
	sbaReady    bool
	cacheOn     bool
	harts       [numHarts]HartState
}

func New(ap mem) *DM {
	return &DM{AP: ap, cacheOn: true}
}

func (d *DM) requireInit(op string) error {
	if !d.initialized {
		return errs.New(errs.NotInitialized, op, "debug module not activated")
	}
	return nil
}

func (d *DM) readDM(reg uint32) (uint32, error) {
	return d.AP.ReadMem32(riscvAPSEL, reg)
}

func (d *DM) writeDM(reg uint32, value uint32) error {
	return d.AP.WriteMem32(riscvAPSEL, reg, value)
}

// EnableCache turns the GPR cache on or off. Per the round-trip
// invariant, enable_cache(false) followed by enable_cache(true) leaves
// caches invalid rather than stale.
func (d *DM) EnableCache(on bool) {
	d.cacheOn = on
	for i := range d.harts {
		d.harts[i].invalidateCache()
	}
}

func (d *DM) hart(hart int) (*HartState, error) {
	if !validHart(hart) {
		return nil, errs.New(errs.InvalidParam, "dm.hart", "hart id %d out of range", hart)
	}
	return &d.harts[hart], nil
}

// selectHart writes DMCONTROL with dmactive set and the given hart
// selected via hartsello, preserving the caller-supplied extra bits
// (haltreq/resumereq/ndmreset).
func (d *DM) selectHart(hart int, extra uint32) error {
	v := uint32(dmcontrolDMACTIVE) | extra
	v |= uint32(hart&1) << dmcontrolHARTSELLO
	return d.writeDM(regDMCONTROL, v)
}
