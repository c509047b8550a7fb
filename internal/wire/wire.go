// Package wire defines the pluggable SWD wire-transport contract and the
// ARM-specified bit sequences every backend must reproduce exactly. The
// transport's job is only to shift bits in a direction and perform
// turnaround cycles; it has no notion of SWD framing, registers, or the
// debug module above it. A concrete backend may use DMA, an FPGA, bit
// banging, or a programmable I/O block — this package is agnostic.
package wire

// Direction is the current half-duplex direction of the SWDIO line.
type Direction int

const (
	DirWrite Direction = iota
	DirRead
)

// Config is the immutable-after-create wire configuration: pin
// assignments, requested clock, and timing knobs. Frequency may be
// re-applied after create via Transport.SetFrequency.
type Config struct {
	ClockPin      uint
	DataPin       uint
	FreqKHz       uint
	RetryCount    int
	IdleCycles    int
	TurnaroundLen int // SWCLK cycles per turnaround; 1 by convention
}

// DefaultConfig returns the configuration defaults supplied by this
// implementation when a caller does not override them.
func DefaultConfig() Config {
	return Config{
		ClockPin:      2,
		DataPin:       3,
		FreqKHz:       1000,
		RetryCount:    4,
		IdleCycles:    8,
		TurnaroundLen: 1,
	}
}

// Transport is the contract a concrete wire backend implements. All
// methods operate on the calling goroutine; there is no internal
// scheduler. A Transport guarantees that after EnterWriteMode the next
// read-direction Shift is preceded by a Turnaround, and vice versa — that
// guarantee is enforced by this package's Engine wrapper, not by the raw
// Transport implementations themselves.
type Transport interface {
	// Init configures pins, applies the clock divider for cfg.FreqKHz,
	// and leaves the bus idle. It does not perform the dormant/SWD
	// wake sequence; callers use Engine.WakeUp for that.
	Init(cfg Config) error

	// SetFrequency reconfigures the clock divider for a new SWCLK
	// frequency, clamped to the backend's representable range.
	SetFrequency(khz uint) error

	// EnterWriteMode drives SWDIO as output.
	EnterWriteMode() error

	// EnterReadMode releases SWDIO (host-side tri-state).
	EnterReadMode() error

	// Shift clocks n bits (1..32) LSB-first in the current direction.
	// For DirWrite, bits is the value to transmit; for DirRead, the
	// return value holds the bits received.
	Shift(dir Direction, n int, bits uint32) (uint32, error)

	// Turnaround clocks k cycles with the bus tri-stated. k defaults
	// to cfg.TurnaroundLen when called with 0.
	Turnaround(k int) error

	// Close releases any backend resources (pins, state machines,
	// program slots) acquired by Init.
	Close() error
}

// Engine wraps a Transport and enforces the write/read turnaround
// discipline required by §4.1: every direction change is preceded by
// exactly one Turnaround call, regardless of what the backend does
// internally.
type Engine struct {
	T         Transport
	cfg       Config
	direction Direction
	known     bool
}

func NewEngine(t Transport, cfg Config) *Engine {
	return &Engine{T: t, cfg: cfg}
}

func (e *Engine) Init() error {
	if err := e.T.Init(e.cfg); err != nil {
		return err
	}
	e.known = false
	return e.WakeUp()
}

// WakeUp reproduces the JTAG->Dormant and Dormant->SWD sequences, a line
// reset, and the configured idle cycles. These byte sequences are
// ARM-specified and must be reproduced exactly.
func (e *Engine) WakeUp() error {
	if err := e.toWrite(); err != nil {
		return err
	}
	if err := e.shiftBytesMSBFirstPerByteLSBFirst(JTAGToDormant); err != nil {
		return err
	}
	if err := e.shiftBytesMSBFirstPerByteLSBFirst(DormantToSWD); err != nil {
		return err
	}
	if err := e.LineReset(); err != nil {
		return err
	}
	_, err := e.T.Shift(DirWrite, clampBits(e.cfg.IdleCycles), 0)
	return err
}

// LineReset drives >=50 consecutive ones on SWDIO followed by >=2 idle
// cycles; this implementation emits 56 ones and 8 idle per §6 defaults.
func (e *Engine) LineReset() error {
	if err := e.toWrite(); err != nil {
		return err
	}
	if _, err := e.T.Shift(DirWrite, 32, 0xFFFFFFFF); err != nil {
		return err
	}
	if _, err := e.T.Shift(DirWrite, 24, 0x00FFFFFF); err != nil {
		return err
	}
	_, err := e.T.Shift(DirWrite, 8, 0x00)
	return err
}

// shiftBytesMSBFirstPerByteLSBFirst transmits a byte sequence that is
// documented MSB-ordered by byte (§6) while the wire itself is always
// clocked LSB-first within each byte — callers supply the sequence in
// the documented byte order and this walks it forward, byte by byte.
func (e *Engine) shiftBytesMSBFirstPerByteLSBFirst(seq []byte) error {
	for _, b := range seq {
		if _, err := e.T.Shift(DirWrite, 8, uint32(b)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) toWrite() error {
	if e.known && e.direction == DirWrite {
		return nil
	}
	if e.known {
		if err := e.T.Turnaround(e.cfg.TurnaroundLen); err != nil {
			return err
		}
	}
	if err := e.T.EnterWriteMode(); err != nil {
		return err
	}
	e.direction = DirWrite
	e.known = true
	return nil
}

func (e *Engine) toRead() error {
	if e.known && e.direction == DirRead {
		return nil
	}
	if e.known {
		if err := e.T.Turnaround(e.cfg.TurnaroundLen); err != nil {
			return err
		}
	}
	if err := e.T.EnterReadMode(); err != nil {
		return err
	}
	e.direction = DirRead
	e.known = true
	return nil
}

// ShiftWrite transitions to write mode (turnaround first if needed) then
// shifts n bits out.
func (e *Engine) ShiftWrite(n int, bits uint32) error {
	if err := e.toWrite(); err != nil {
		return err
	}
	_, err := e.T.Shift(DirWrite, n, bits)
	return err
}

// ShiftRead transitions to read mode (turnaround first if needed) then
// shifts n bits in.
func (e *Engine) ShiftRead(n int) (uint32, error) {
	if err := e.toRead(); err != nil {
		return 0, err
	}
	return e.T.Shift(DirRead, n, 0)
}

// Turnaround forces a bus turnaround without changing the tracked
// direction state (used between ACK and data phases within one packet).
func (e *Engine) Turnaround() error {
	return e.T.Turnaround(e.cfg.TurnaroundLen)
}

func (e *Engine) SetFrequency(khz uint) error {
	return e.T.SetFrequency(khz)
}

func (e *Engine) Close() error {
	return e.T.Close()
}

func clampBits(n int) int {
	if n < 1 {
		return 1
	}
	if n > 32 {
		return 32
	}
	return n
}
