// Package swd builds SWD request headers and drives the ACK/data phases
// of a single DP or AP register transaction, including the WAIT-retry
// policy (§4.2).
package swd

import (
	"time"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
)

// Ack is the 3-bit acknowledge code returned after a request header.
type Ack int

const (
	AckOK      Ack = 0b001
	AckWait    Ack = 0b010
	AckFault   Ack = 0b100
	waitRetryInterval = 100 * time.Microsecond
)

// Request builds the 8-bit request header: start=1, APnDP, RnW, A2, A3,
// parity (XOR of APnDP/RnW/A2/A3), stop=0, park=1. The header is returned
// ready to clock onto the wire LSB-first.
func Request(apndp, rnw bool, addr uint8) uint8 {
	a2 := (addr >> 2) & 1
	a3 := (addr >> 3) & 1
	var b uint8
	b |= 1 << 0 // start
	if apndp {
		b |= 1 << 1
	}
	if rnw {
		b |= 1 << 2
	}
	b |= a2 << 3
	b |= a3 << 4
	par := parityBit(b, 1, 4)
	b |= par << 5
	// bit 6 = stop = 0
	b |= 1 << 7 // park
	return b
}

// parityBit computes the XOR of bits [lo..hi] of v.
func parityBit(v uint8, lo, hi int) uint8 {
	var p uint8
	for i := lo; i <= hi; i++ {
		p ^= (v >> i) & 1
	}
	return p
}

func parity32(v uint32) uint32 {
	p := v
	p ^= p >> 16
	p ^= p >> 8
	p ^= p >> 4
	p ^= p >> 2
	p ^= p >> 1
	return p & 1
}

// Engine drives one Engine-backed transport through full SWD transactions.
type Engine struct {
	W          *wire.Engine
	RetryCount int
}

func New(w *wire.Engine, retryCount int) *Engine {
	return &Engine{W: w, RetryCount: retryCount}
}

// transact issues one request header and returns the ACK observed.
// ReadReg and WriteReg follow an AckOK with readData or writeData.
func (e *Engine) transact(apndp, rnw bool, addr uint8) (Ack, error) {
	req := Request(apndp, rnw, addr)
	if err := e.W.ShiftWrite(8, uint32(req)); err != nil {
		return 0, errs.Wrap(errs.Protocol, "swd.transact", err)
	}
	bits, err := e.W.ShiftRead(3)
	if err != nil {
		return 0, errs.Wrap(errs.Protocol, "swd.transact", err)
	}
	ack := Ack(bits & 0x7)
	switch ack {
	case AckOK, AckWait, AckFault:
		return ack, nil
	default:
		// Malformed ACK: line corruption. Drain 33 extra bits then
		// reset the line so the next transaction starts clean.
		_, _ = e.W.ShiftRead(32)
		_, _ = e.W.ShiftRead(1)
		if err := e.W.WakeUp(); err != nil {
			return 0, errs.Wrap(errs.Protocol, "swd.transact.reset", err)
		}
		return 0, errs.New(errs.Protocol, "swd.transact", "malformed ack %#03b", uint(ack))
	}
}

// ReadReg performs one SWD read transaction (DP or AP register) with the
// WAIT-retry policy applied. On success it returns the 32-bit value.
func (e *Engine) ReadReg(apndp bool, addr uint8) (uint32, error) {
	ack := AckWait
	var err error
	retries := e.RetryCount
	for {
		ack, err = e.transact(apndp, true, addr)
		if err != nil {
			return 0, err
		}
		switch ack {
		case AckOK:
			return e.readData()
		case AckFault:
			return 0, errs.New(errs.Fault, "swd.readReg", "addr=%#x apndp=%v", addr, apndp)
		case AckWait:
			if retries <= 0 {
				return 0, errs.New(errs.Wait, "swd.readReg", "addr=%#x apndp=%v", addr, apndp)
			}
			retries--
			time.Sleep(waitRetryInterval)
			continue
		}
	}
}

// WriteReg performs one SWD write transaction with the WAIT-retry policy
// applied.
func (e *Engine) WriteReg(apndp bool, addr uint8, value uint32) error {
	retries := e.RetryCount
	for {
		ack, err := e.transact(apndp, false, addr)
		if err != nil {
			return err
		}
		switch ack {
		case AckOK:
			return e.writeData(value)
		case AckFault:
			return errs.New(errs.Fault, "swd.writeReg", "addr=%#x apndp=%v value=%#x", addr, apndp, value)
		case AckWait:
			if retries <= 0 {
				return errs.New(errs.Wait, "swd.writeReg", "addr=%#x apndp=%v", addr, apndp)
			}
			retries--
			time.Sleep(waitRetryInterval)
			continue
		}
	}
}

// readData clocks 32 data bits then 1 parity bit after an AckOK read
// response, verifying parity. The turnaround back to write direction is
// performed by the wire engine before the next write.
func (e *Engine) readData() (uint32, error) {
	data, err := e.W.ShiftRead(32)
	if err != nil {
		return 0, errs.Wrap(errs.Protocol, "swd.readData", err)
	}
	par, err := e.W.ShiftRead(1)
	if err != nil {
		return 0, errs.Wrap(errs.Protocol, "swd.readData", err)
	}
	if par&1 != parity32(data) {
		return 0, errs.New(errs.Parity, "swd.readData", "data=%#08x", data)
	}
	return data, nil
}

// writeData clocks 32 data bits and 1 parity bit after an AckOK write
// response. The turnaround from the preceding ACK read phase back to
// write direction is handled automatically by the wire engine.
func (e *Engine) writeData(value uint32) error {
	if err := e.W.ShiftWrite(32, value); err != nil {
		return errs.Wrap(errs.Protocol, "swd.writeData", err)
	}
	return e.W.ShiftWrite(1, parity32(value))
}
