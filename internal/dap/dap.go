// Package dap implements the Debug Access Port layer: DP/AP register
// transactions, AP bank-select caching, pipelined reads through RDBUFF,
// posted-write flushing, the power-up handshake, and the MEM-AP memory
// path used to reach the RP2350 Debug Module registers.
package dap

import (
	"time"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/swd"
)

// DP register addresses (A[3:2] field of the request header).
const (
	DP_IDCODE   = 0x0 // R
	DP_CTRLSTAT = 0x4 // R/W
	DP_SELECT   = 0x8 // W
	DP_RDBUFF   = 0xC // R
)

// AP register addresses within a bank; the upper nibble of a 0x00-0xFC
// offset selects the bank (reg>>4).
const (
	AP_CSW = 0x00
	AP_TAR = 0x04
	AP_DRW = 0x0C
	AP_IDR = 0xFC
)

// CTRL/STAT bits used by the power-up handshake.
const (
	ctrlStatCDBGPWRUPREQ  = 1 << 28
	ctrlStatCSYSPWRUPREQ  = 1 << 30
	ctrlStatCDBGPWRUPACK  = 1 << 29
	ctrlStatCSYSPWRUPACK  = 1 << 31
	ctrlStatSTICKYORUN    = 1 << 1
	ctrlStatSTICKYCMP     = 1 << 4
	ctrlStatSTICKYERR     = 1 << 5
	ctrlStatWDATAERR      = 1 << 7
	powerPollInterval     = 20 * time.Millisecond
	powerPollIterations   = 10 // ~200ms
)

// rp2350SelectBankConst is the RP2350-specific 0xD nibble placed in bits
// [11:8] of DP_SELECT; this is a target-specific requirement documented
// in §4.3/§6, not part of the public ARM ADIv5 specification.
const rp2350SelectBankConst = 0xD

// State is the mutable DAP state record (§3): the currently selected
// APSEL/bank, a cached DP_SELECT value, and the power handshake flag.
// The last ACK observed is not recorded; the WAIT-retry count is held by
// swd.Engine rather than here.
type State struct {
	apsel     uint8
	bank      uint8
	ctrlsel   bool
	selectSet bool
	selected  uint32
	powered   bool
}

// DAP drives DP/AP transactions over one swd.Engine.
type DAP struct {
	E     *swd.Engine
	state State
}

func New(e *swd.Engine) *DAP {
	return &DAP{E: e}
}

// ReadIDCODE reads the DP IDCODE register, valid immediately after the
// wire wake-up sequence.
func (d *DAP) ReadIDCODE() (uint32, error) {
	v, err := d.E.ReadReg(false, DP_IDCODE)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadIDCODE", err)
	}
	return v, nil
}

func (d *DAP) readDP(addr uint8) (uint32, error) {
	v, err := d.E.ReadReg(false, addr)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.readDP", err)
	}
	return v, nil
}

func (d *DAP) writeDP(addr uint8, value uint32) error {
	if err := d.E.WriteReg(false, addr, value); err != nil {
		if addr == DP_SELECT {
			// A failed SELECT write invalidates the cache: the
			// hardware may or may not have latched it.
			d.state.selectSet = false
		}
		return errs.Wrap(errs.Of(err), "dap.writeDP", err)
	}
	return nil
}

// selectBank writes DP_SELECT for the given APSEL/bank if it differs
// from the cached value, per the bank-select caching invariant.
func (d *DAP) selectBank(apsel, bank uint8, ctrlsel bool) error {
	want := rp2350Select(apsel, bank, ctrlsel)
	if d.state.selectSet && d.state.selected == want {
		return nil
	}
	if err := d.writeDP(DP_SELECT, want); err != nil {
		return err
	}
	d.state.apsel = apsel
	d.state.bank = bank
	d.state.ctrlsel = ctrlsel
	d.state.selected = want
	d.state.selectSet = true
	return nil
}

// rp2350Select builds the RP2350-specific DP_SELECT encoding:
// (APSEL[3:0]<<12) | (0xD<<8) | (bank[3:0]<<4) | ctrlsel.
func rp2350Select(apsel, bank uint8, ctrlsel bool) uint32 {
	v := uint32(apsel&0xF)<<12 | uint32(rp2350SelectBankConst)<<8 | uint32(bank&0xF)<<4
	if ctrlsel {
		v |= 1
	}
	return v
}

// ReadAP performs one AP register read. Because AP reads are pipelined,
// the AP read's own returned value is discarded and the live value is
// retrieved with a follow-up DP_RDBUFF read.
func (d *DAP) ReadAP(apsel uint8, reg uint8) (uint32, error) {
	bank := reg >> 4
	if err := d.selectBank(apsel, bank, false); err != nil {
		return 0, err
	}
	if _, err := d.E.ReadReg(true, reg&0xF); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadAP", err)
	}
	v, err := d.readDP(DP_RDBUFF)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadAP", err)
	}
	return v, nil
}

// WriteAP posts one AP register write. Writes are posted; call Flush (a
// DP_RDBUFF read) to force completion and capture any deferred fault.
func (d *DAP) WriteAP(apsel uint8, reg uint8, value uint32) error {
	bank := reg >> 4
	if err := d.selectBank(apsel, bank, false); err != nil {
		return err
	}
	if err := d.E.WriteReg(true, reg&0xF, value); err != nil {
		return errs.Wrap(errs.Of(err), "dap.WriteAP", err)
	}
	return nil
}

// Flush forces completion of posted AP writes and captures any deferred
// fault by reading DP_RDBUFF as a barrier.
func (d *DAP) Flush() error {
	_, err := d.readDP(DP_RDBUFF)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dap.Flush", err)
	}
	return nil
}

// PowerUp runs the CTRL/STAT power handshake: clear CTRL/STAT, request
// both debug and system power-up, then poll for both ACK bits for up to
// ~200ms.
func (d *DAP) PowerUp() error {
	if err := d.writeDP(DP_CTRLSTAT, 0); err != nil {
		return err
	}
	if err := d.writeDP(DP_CTRLSTAT, ctrlStatCDBGPWRUPREQ|ctrlStatCSYSPWRUPREQ); err != nil {
		return err
	}
	const wantBits = ctrlStatCDBGPWRUPACK | ctrlStatCSYSPWRUPACK
	for i := 0; i < powerPollIterations; i++ {
		v, err := d.readDP(DP_CTRLSTAT)
		if err != nil {
			return err
		}
		if v&wantBits == wantBits {
			d.state.powered = true
			return nil
		}
		time.Sleep(powerPollInterval)
	}
	return errs.New(errs.Timeout, "dap.PowerUp", "ctrl/stat ack bits not set after %d polls", powerPollIterations)
}

// Powered reports whether PowerUp has succeeded.
func (d *DAP) Powered() bool {
	return d.state.powered
}

// ClearStickyErrors clears STICKYORUN, STICKYCMP, STICKYERR, and
// WDATAERR so the next operation starts from a clean slate.
func (d *DAP) ClearStickyErrors() error {
	bits := uint32(ctrlStatSTICKYORUN | ctrlStatSTICKYCMP | ctrlStatSTICKYERR | ctrlStatWDATAERR)
	return d.writeDP(DP_CTRLSTAT, bits)
}

// ReadMem32 reads one 32-bit word through the MEM-AP TAR/DRW path: write
// address to TAR, read DRW, dereference via RDBUFF.
func (d *DAP) ReadMem32(apsel uint8, addr uint32) (uint32, error) {
	if err := d.WriteAP(apsel, AP_TAR, addr); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadMem32", err)
	}
	v, err := d.ReadAP(apsel, AP_DRW)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadMem32", err)
	}
	return v, nil
}

// WriteMem32 writes one 32-bit word through the MEM-AP TAR/DRW path and
// flushes with RDBUFF to capture any deferred fault.
func (d *DAP) WriteMem32(apsel uint8, addr uint32, value uint32) error {
	if err := d.WriteAP(apsel, AP_TAR, addr); err != nil {
		return errs.Wrap(errs.Of(err), "dap.WriteMem32", err)
	}
	if err := d.WriteAP(apsel, AP_DRW, value); err != nil {
		return errs.Wrap(errs.Of(err), "dap.WriteMem32", err)
	}
	return d.Flush()
}

// WriteCSW writes the AP CSW register at whatever DP_SELECT bank is
// currently active, without deriving or re-selecting a bank from the
// register offset. CSW always sits at AP offset 0x00 regardless of
// bank, so the DM activation handshake — which depends on the *same*
// offset behaving differently under different banks (§4.4) — selects
// its bank explicitly via SelectBank before calling this.
func (d *DAP) WriteCSW(apsel uint8, value uint32) error {
	if err := d.E.WriteReg(true, AP_CSW, value); err != nil {
		return errs.Wrap(errs.Of(err), "dap.WriteCSW", err)
	}
	return nil
}

// ReadCSW reads the AP CSW register via the RDBUFF pipeline at whatever
// DP_SELECT bank is currently active; see WriteCSW.
func (d *DAP) ReadCSW(apsel uint8) (uint32, error) {
	if _, err := d.E.ReadReg(true, AP_CSW); err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadCSW", err)
	}
	v, err := d.readDP(DP_RDBUFF)
	if err != nil {
		return 0, errs.Wrap(errs.Of(err), "dap.ReadCSW", err)
	}
	return v, nil
}

// SelectBank forces a particular DP_SELECT bank/ctrlsel combination. This
// is exposed for the DM activation handshake, which toggles banks
// directly as part of its protocol rather than through a register
// access.
func (d *DAP) SelectBank(apsel, bank uint8, ctrlsel bool) error {
	return d.selectBank(apsel, bank, ctrlsel)
}
