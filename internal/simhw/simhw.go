// Package simhw is a software model of an RP2350 link: it implements
// wire.Transport by decoding the exact bit-shift call sequence the swd
// and dap packages issue, then answers as a real DP/AP/Debug Module
// would, including a small RV32 interpreter so resumed harts make
// forward progress. It exists so the property-based tests in this
// module can drive the full public API without real hardware.
//
// It is test infrastructure, not a shipped backend: a real Transport
// talks to actual SWDIO/SWCLK pins (PIO, DMA, bit-banged GPIO, ...).
package simhw

import (
	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
)

const (
	dpIDCODE   = 0x0
	dpCTRLSTAT = 0x4
	dpSELECT   = 0x8
	dpRDBUFF   = 0xC

	apCSW = 0x00
	apTAR = 0x04
	apDRW = 0x0C
	apIDR = 0xFC

	ctrlStatPWRUPREQ = (1 << 28) | (1 << 30)
	ctrlStatPWRUPACK = (1 << 29) | (1 << 31)
)

// DM register offsets, mirroring internal/dm/registers.go.
const (
	regDATA0      = 0x10
	regDMCONTROL  = 0x40
	regDMSTATUS   = 0x44
	regABSTRACTCS = 0x58
	regCOMMAND    = 0x5C
	regPROGBUF0   = 0x80
	regPROGBUF1   = 0x84
	regSBCS       = 0xE0
	regSBADDRESS0 = 0xE4
	regSBDATA0    = 0xF0
)

const (
	dmcontrolDMACTIVE  = 1 << 0
	dmcontrolNDMRESET  = 1 << 1
	dmcontrolHARTSEL   = 1 << 16
	dmcontrolRESUMEREQ = 1 << 30
	dmcontrolHALTREQ   = 1 << 31
)

const (
	dmstatusAllHalted  = 1 << 9
	dmstatusAllRunning = 1 << 11
)

const (
	cmdRegnoMask     = 0xFFFF
	cmdWrite         = 1 << 16
	cmdTransfer      = 1 << 17
	cmdPostExec      = 1 << 18
	cmdRegnoGPRBase  = 0x1000
)

const sbcsSBREADONADDR = 1 << 20

const dcsrStepBit = 1 << 2

// activationWant is the exact readback the RP2350 DM activation
// handshake expects after the three bank-1 CSW writes (§4.4).
const activationWant = 0x04010001

type phase int

const (
	phaseIdle phase = iota
	phaseAckGiven
)

// Device is a simulated RP2350 link.
type Device struct {
	cfg wire.Config

	// decoder state
	ph        phase
	wantApndp bool
	wantRnw   bool
	wantAddr  uint8
	dataOut   uint32 // value staged for the next read data phase

	// DP/AP state
	ctrlStat      uint32
	apsel         uint8
	bank          uint8
	csw           uint32
	tar           uint32
	rdbuff        uint32
	activationCSW uint32
	activated     bool

	// IDCODE returned on DP read.
	IDCODE uint32

	// Debug Module register file not folded into a hart.
	selectedHart int
	data0        uint32
	progbuf0     uint32
	progbuf1     uint32
	sbcs         uint32
	sbaddress0   uint32
	sbdata0      uint32

	// Simulated target memory, word-addressed (key is 4-byte aligned).
	mem map[uint32]uint32

	harts [2]hartModel

	// InjectWait makes the next N request/ack cycles answer WAIT
	// instead of OK; used by retry-policy tests.
	InjectWait int

	// MaxRunSteps bounds how many instructions a single Resume drives
	// before giving up on reaching ebreak/self-loop; guards against a
	// test program that never terminates.
	MaxRunSteps int
}

type hartModel struct {
	halted  bool
	running bool
	inReset bool
	dcsr    uint32
	dpc     uint32
	gprs    [32]uint32
}

// New returns a Device with sane IDCODE/SBCS defaults.
func New() *Device {
	d := &Device{
		IDCODE:      0x0BC12477,
		mem:         make(map[uint32]uint32),
		sbcs:        1 << 5, // sbasize = 1, non-zero
		MaxRunSteps: 10000,
	}
	return d
}

func (d *Device) Init(cfg wire.Config) error {
	d.cfg = cfg
	return nil
}

func (d *Device) SetFrequency(khz uint) error {
	d.cfg.FreqKHz = khz
	return nil
}

func (d *Device) EnterWriteMode() error { return nil }
func (d *Device) EnterReadMode() error  { return nil }
func (d *Device) Turnaround(int) error  { return nil }
func (d *Device) Close() error          { return nil }

// LoadProgram stores words into simulated memory starting at addr, as a
// shortcut for tests that want to seed memory without going through the
// SBA path (e.g. to preload something the program under test reads).
func (d *Device) LoadProgram(addr uint32, words []uint32) {
	for i, w := range words {
		d.mem[addr+uint32(i*4)] = w
	}
}

// Mem returns the word at addr (0 if unset), for test assertions.
func (d *Device) Mem(addr uint32) uint32 {
	return d.mem[addr&^uint32(3)]
}

// GPR returns GPR n of hart, for test assertions that bypass the driver.
func (d *Device) GPR(hart, n int) uint32 {
	return d.harts[hart].gprs[n]
}

// SetGPR pokes GPR n of hart directly, bypassing the abstract-command
// path entirely. Tests use this to corrupt the underlying register file
// out from under the driver's GPR cache, so a read that still returns
// the pre-corruption value proves it was served from cache rather than
// from hardware.
func (d *Device) SetGPR(hart, n int, value uint32) {
	d.harts[hart].gprs[n] = value
}

func (d *Device) Shift(dir wire.Direction, n int, bits uint32) (uint32, error) {
	switch {
	case dir == wire.DirWrite && n == 8:
		// Every 8-bit write is decoded as a request header, whatever the
		// phase: wake-up and idle bytes decode to headers that the next
		// real request header replaces before any ACK is read.
		d.decodeRequest(uint8(bits))
		return 0, nil
	case dir == wire.DirRead && n == 3:
		return uint32(d.ack()), nil
	case dir == wire.DirRead && n == 32 && d.ph == phaseAckGiven:
		v := d.performRead()
		d.dataOut = v
		return v, nil
	case dir == wire.DirRead && n == 1 && d.ph == phaseAckGiven:
		d.ph = phaseIdle
		return parity(d.dataOut), nil
	case dir == wire.DirWrite && n == 32 && d.ph == phaseAckGiven:
		d.dataOut = bits
		return 0, nil
	case dir == wire.DirWrite && n == 1 && d.ph == phaseAckGiven:
		d.performWrite(d.dataOut)
		d.ph = phaseIdle
		return 0, nil
	default:
		// Remaining wake-up/line-reset traffic: writes of other widths
		// with no protocol meaning.
		return 0, nil
	}
}

func (d *Device) decodeRequest(req uint8) {
	apndp := (req>>1)&1 == 1
	rnw := (req>>2)&1 == 1
	a2 := (req >> 3) & 1
	a3 := (req >> 4) & 1
	addr := uint8(a2<<2 | a3<<3)
	d.wantApndp = apndp
	d.wantRnw = rnw
	d.wantAddr = addr
	d.ph = phaseAckGiven
}

func (d *Device) ack() int {
	if d.InjectWait > 0 {
		d.InjectWait--
		d.ph = phaseIdle
		return 0b010
	}
	return 0b001
}

func (d *Device) performRead() uint32 {
	if !d.wantApndp {
		switch d.wantAddr {
		case dpIDCODE:
			return d.IDCODE
		case dpCTRLSTAT:
			return d.ctrlStat
		case dpRDBUFF:
			return d.rdbuff
		}
		return 0
	}
	v := d.readAP(d.wantAddr)
	d.rdbuff = v
	return v
}

func (d *Device) performWrite(value uint32) {
	if !d.wantApndp {
		switch d.wantAddr {
		case dpSELECT:
			d.apsel = uint8(value>>12) & 0xF
			d.bank = uint8(value>>4) & 0xF
		case dpCTRLSTAT:
			d.ctrlStat = value
			if value&ctrlStatPWRUPREQ == ctrlStatPWRUPREQ {
				d.ctrlStat |= ctrlStatPWRUPACK
			}
		}
		return
	}
	d.writeAP(d.wantAddr, value)
}

func (d *Device) readAP(reg uint8) uint32 {
	switch reg {
	case apCSW:
		if d.bank == 1 {
			if d.activated {
				return activationWant
			}
			return d.activationCSW
		}
		return d.csw
	case apTAR:
		return d.tar
	case apDRW:
		return d.dmRead(d.tar)
	case apIDR:
		return 0x04770041
	}
	return 0
}

func (d *Device) writeAP(reg uint8, value uint32) {
	switch reg {
	case apCSW:
		if d.bank == 1 {
			d.activationCSW = value
			if value == 0x07FFFFC1 {
				d.activated = true
			}
			return
		}
		d.csw = value
	case apTAR:
		d.tar = value
	case apDRW:
		d.dmWrite(d.tar, value)
	}
}

// dmRead answers a read against the Debug Module register file, as seen
// through the RISC-V APB-AP's TAR/DRW window.
func (d *Device) dmRead(reg uint32) uint32 {
	switch reg {
	case regDMSTATUS:
		h := &d.harts[d.selectedHart]
		var v uint32
		if h.halted {
			v |= dmstatusAllHalted
		}
		if h.running {
			v |= dmstatusAllRunning
		}
		return v
	case regABSTRACTCS:
		return 0 // busy clear, cmderr clear: the sim never stalls
	case regDATA0:
		return d.data0
	case regPROGBUF0:
		return d.progbuf0
	case regPROGBUF1:
		return d.progbuf1
	case regSBCS:
		return d.sbcs
	case regSBADDRESS0:
		return d.sbaddress0
	case regSBDATA0:
		return d.sbdata0
	}
	return 0
}

// dmWrite answers a write against the Debug Module register file.
func (d *Device) dmWrite(reg uint32, value uint32) {
	switch reg {
	case regDMCONTROL:
		d.writeDMCONTROL(value)
	case regABSTRACTCS:
		// cmderr-clear write: no-op, the sim never reports cmderr.
	case regCOMMAND:
		d.writeCOMMAND(value)
	case regDATA0:
		d.data0 = value
	case regPROGBUF0:
		d.progbuf0 = value
	case regPROGBUF1:
		d.progbuf1 = value
	case regSBCS:
		d.sbcs = value
	case regSBADDRESS0:
		d.sbaddress0 = value
		if d.sbcs&sbcsSBREADONADDR != 0 {
			d.sbdata0 = d.mem[value&^uint32(3)]
		}
	case regSBDATA0:
		d.sbdata0 = value
		d.mem[d.sbaddress0&^uint32(3)] = value
	}
}

func (d *Device) writeDMCONTROL(value uint32) {
	d.selectedHart = int((value >> 16) & 1)
	h := &d.harts[d.selectedHart]

	if value&dmcontrolNDMRESET != 0 {
		h.halted = false
		h.running = false
		h.inReset = true
		h.dcsr = 0
		h.dpc = 0
		h.gprs = [32]uint32{}
		return
	}
	if h.inReset {
		h.inReset = false
		if value&dmcontrolHALTREQ != 0 {
			h.halted = true
			h.running = false
		} else {
			h.halted = false
			h.running = true
		}
		return
	}
	if value&dmcontrolHALTREQ != 0 {
		h.halted = true
		h.running = false
		return
	}
	if value&dmcontrolRESUMEREQ != 0 {
		if h.dcsr&dcsrStepBit != 0 {
			d.execOne(h)
			h.halted = true
			h.running = false
			return
		}
		h.halted = false
		h.running = true
		d.runToHalt(h)
	}
}

func (d *Device) writeCOMMAND(value uint32) {
	h := &d.harts[d.selectedHart]
	if value&cmdPostExec != 0 && value&cmdTransfer == 0 {
		d.runProgBuf(h)
		return
	}
	if value&cmdTransfer != 0 {
		n := int((value & cmdRegnoMask) - cmdRegnoGPRBase)
		if n < 0 || n > 31 {
			return
		}
		if value&cmdWrite != 0 {
			if n != 0 {
				h.gprs[n] = d.data0
			}
		} else {
			d.data0 = h.gprs[n]
		}
	}
}

// runProgBuf executes the two-instruction program buffer against the
// selected hart: the driver only ever issues a csrr/csrw of DCSR or DPC
// into/from x8 followed by ebreak (internal/dm/progbuf.go), so the
// interpreter only needs to understand that shape.
func (d *Device) runProgBuf(h *hartModel) {
	if csr, isWrite, ok := decodeCSRInsn(d.progbuf0); ok {
		switch csr {
		case 0x7B0: // dcsr
			if isWrite {
				h.dcsr = h.gprs[8]
			} else {
				h.gprs[8] = h.dcsr
			}
		case 0x7B1: // dpc
			if isWrite {
				h.dpc = h.gprs[8]
			} else {
				h.gprs[8] = h.dpc
			}
		}
	}
	// progbuf1 is always ebreak in this driver; nothing to simulate.
}

// decodeCSRInsn recognizes the two CSR instruction encodings the DM
// driver's program-buffer micro-programs use: csrrs rd=x8,csr,x0 (read)
// and csrrw x0,csr,rs1=x8 (write). Any other encoding is unrecognized.
func decodeCSRInsn(insn uint32) (csr uint32, isWrite bool, ok bool) {
	if insn&0x7F != 0x73 {
		return 0, false, false
	}
	funct3 := (insn >> 12) & 0x7
	csr = insn >> 20
	switch funct3 {
	case 0x2:
		return csr, false, true
	case 0x1:
		return csr, true, true
	}
	return 0, false, false
}

// execOne executes exactly one RV32 instruction at h.dpc and advances
// dpc, used for DCSR.step-driven single-stepping.
func (d *Device) execOne(h *hartModel) {
	insn := d.mem[h.dpc&^uint32(3)]
	d.interpret(h, insn)
}

// runToHalt fast-forwards a resumed hart: real hardware executes at full
// speed between polls, so the sim runs the program to its natural
// stopping point synchronously rather than instruction-by-instruction
// across Shift calls. An EBREAK ends the program (the hart halts); a
// JAL that jumps to itself is the idiom these test programs use to mark
// "done, spin here" without halting, so the interpreter stops advancing
// but leaves the hart reporting running. MaxRunSteps bounds runaway
// programs that do neither.
func (d *Device) runToHalt(h *hartModel) {
	for i := 0; i < d.MaxRunSteps; i++ {
		insn := d.mem[h.dpc&^uint32(3)]
		if insn == insnEBREAK {
			h.halted = true
			h.running = false
			return
		}
		if isSelfJAL(insn) {
			return // still running, spinning in place
		}
		d.interpret(h, insn)
	}
}

const insnEBREAK = 0x00100073

func isSelfJAL(insn uint32) bool {
	if insn&0x7F != 0x6F {
		return false
	}
	return jalOffset(insn) == 0
}

func jalOffset(insn uint32) int32 {
	imm20 := (insn >> 31) & 0x1
	imm10_1 := (insn >> 21) & 0x3FF
	imm11 := (insn >> 20) & 0x1
	imm19_12 := (insn >> 12) & 0xFF
	v := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	if imm20 == 1 {
		v |= 0xFFE00000
	}
	return int32(v)
}

// interpret executes one RV32I instruction against h and the simulated
// memory map, advancing dpc. Only the subset the test programs need is
// implemented: ADDI, ADD, LUI, SW, and JAL (non-self).
func (d *Device) interpret(h *hartModel, insn uint32) {
	opcode := insn & 0x7F
	rd := (insn >> 7) & 0x1F
	funct3 := (insn >> 12) & 0x7
	rs1 := (insn >> 15) & 0x1F
	rs2 := (insn >> 20) & 0x1F
	funct7 := (insn >> 25) & 0x7F

	reg := func(n uint32) uint32 {
		if n == 0 {
			return 0
		}
		return h.gprs[n]
	}
	setReg := func(n uint32, v uint32) {
		if n != 0 {
			h.gprs[n] = v
		}
	}

	next := h.dpc + 4
	switch opcode {
	case 0x13: // OP-IMM
		if funct3 == 0x0 { // ADDI
			imm := signExtend(insn>>20, 12)
			setReg(rd, reg(rs1)+uint32(imm))
		}
	case 0x33: // OP
		if funct3 == 0x0 && funct7 == 0x00 { // ADD
			setReg(rd, reg(rs1)+reg(rs2))
		}
	case 0x37: // LUI
		setReg(rd, insn&0xFFFFF000)
	case 0x23: // STORE
		if funct3 == 0x2 { // SW
			immHi := (insn >> 25) & 0x7F
			immLo := (insn >> 7) & 0x1F
			imm := signExtend((immHi<<5)|immLo, 12)
			addr := reg(rs1) + uint32(imm)
			d.mem[addr&^uint32(3)] = reg(rs2)
		}
	case 0x6F: // JAL
		off := jalOffset(insn)
		setReg(rd, next)
		next = uint32(int32(h.dpc) + off)
	}
	h.dpc = next
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func parity(v uint32) uint32 {
	p := v
	p ^= p >> 16
	p ^= p >> 8
	p ^= p >> 4
	p ^= p >> 2
	p ^= p >> 1
	return p & 1
}
