package swd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
)

func TestRequestHeaderFields(t *testing.T) {
	req := Request(true, false, 0x4) // AP write, A[3:2] = 01
	assert.Equal(t, uint8(1), req&1, "start bit")
	assert.Equal(t, uint8(1), (req>>1)&1, "APnDP")
	assert.Equal(t, uint8(0), (req>>2)&1, "RnW")
	assert.Equal(t, uint8(0), (req>>6)&1, "stop")
	assert.Equal(t, uint8(1), (req>>7)&1, "park")
}

func TestRequestParityIsXORofAPnDPRnWA2A3(t *testing.T) {
	for addr := uint8(0); addr < 16; addr += 4 {
		for _, apndp := range []bool{false, true} {
			for _, rnw := range []bool{false, true} {
				req := Request(apndp, rnw, addr)
				par := (req >> 5) & 1
				a2 := (req >> 3) & 1
				a3 := (req >> 4) & 1
				rnwBit := (req >> 2) & 1
				apndpBit := (req >> 1) & 1
				want := apndpBit ^ rnwBit ^ a2 ^ a3
				assert.Equal(t, want, par, "apndp=%v rnw=%v addr=%#x", apndp, rnw, addr)
			}
		}
	}
}

// fakeWire is a minimal wire.Transport double that answers a scripted
// sequence of ACK/data responses, used to drive swd.Engine without a full
// simhw.Device.
type fakeWire struct {
	acks    []Ack
	data    []uint32
	ackIdx  int
	dataIdx int
	ph      int // 0 = expect request byte, 1 = expect ack read, 2 = data phase
}

func (f *fakeWire) Init(cfg wire.Config) error      { return nil }
func (f *fakeWire) SetFrequency(khz uint) error     { return nil }
func (f *fakeWire) EnterWriteMode() error           { return nil }
func (f *fakeWire) EnterReadMode() error             { return nil }
func (f *fakeWire) Turnaround(int) error             { return nil }
func (f *fakeWire) Close() error                     { return nil }

func (f *fakeWire) Shift(dir wire.Direction, n int, bits uint32) (uint32, error) {
	switch {
	case dir == wire.DirWrite && n == 8:
		return 0, nil
	case dir == wire.DirRead && n == 3:
		a := f.acks[f.ackIdx]
		f.ackIdx++
		return uint32(a), nil
	case dir == wire.DirRead && n == 32:
		if f.dataIdx >= len(f.data) {
			return 0, nil
		}
		return f.data[f.dataIdx], nil
	case dir == wire.DirRead && n == 1:
		var v uint32
		if f.dataIdx < len(f.data) {
			v = f.data[f.dataIdx]
		}
		f.dataIdx++
		return parity32(v), nil
	case dir == wire.DirWrite && n == 32:
		return 0, nil
	case dir == wire.DirWrite && n == 1:
		return 0, nil
	}
	return 0, nil
}

func TestReadRegSucceedsOnFirstOK(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckOK}, data: []uint32{0xDEADBEEF}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 4)

	v, err := e.ReadReg(false, 0x0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)
}

func TestReadRegRetriesThroughWait(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckWait, AckWait, AckOK}, data: []uint32{0x12345678}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 4)

	v, err := e.ReadReg(true, 0xC)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
}

func TestReadRegWaitExhaustionSurfacesWaitKind(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckWait, AckWait, AckWait}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 2)

	_, err := e.ReadReg(false, 0x0)
	require.Error(t, err)
	assert.Equal(t, errs.Wait, errs.Of(err))
}

func TestReadRegZeroRetryCountFailsImmediatelyOnWait(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckWait}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 0)

	_, err := e.ReadReg(false, 0x0)
	require.Error(t, err)
	assert.Equal(t, errs.Wait, errs.Of(err))
}

func TestReadRegFaultSurfacesFaultKind(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckFault}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 4)

	_, err := e.ReadReg(false, 0x0)
	require.Error(t, err)
	assert.Equal(t, errs.Fault, errs.Of(err))
}

func TestWriteRegSucceedsOnFirstOK(t *testing.T) {
	fw := &fakeWire{acks: []Ack{AckOK}, data: []uint32{0}}
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 4)

	err := e.WriteReg(true, 0x4, 0xCAFEBABE)
	require.NoError(t, err)
}

func TestMalformedAckResetsLineAndReturnsProtocolError(t *testing.T) {
	fw := &fakeWire{acks: []Ack{0b011}} // not OK/WAIT/FAULT
	we := wire.NewEngine(fw, wire.DefaultConfig())
	e := New(we, 4)

	_, err := e.ReadReg(false, 0x0)
	require.Error(t, err)
	assert.Equal(t, errs.Protocol, errs.Of(err))
}
