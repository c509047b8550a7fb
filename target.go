// Package rvswd drives an SWD link to a dual-hart RISC-V (Hazard3)
// RP2350 target: connect/disconnect, power domain management, hart
// halt/resume/step/reset, GPR/CSR access, memory read/write, program
// buffer execution, code upload-and-run, and instruction tracing.
//
// Basic usage:
//
//	target, err := rvswd.Create(backend, rvswd.DefaultConfig())
//	err = target.Connect()
//	err = target.PowerUp()
//	err = target.DMInit()
//	err = target.Halt(0)
//	pc, err := target.ReadPC(0)
//	err = target.Resume(0)
package rvswd

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/dap"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/dm"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/swd"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
)

// Target is the aggregate root (§3): it owns the wire transport binding,
// DAP state, DM state, and the fixed-size two-hart table. A Target is
// created once per physical link and is not safe for concurrent use from
// multiple goroutines.
type Target struct {
	mu sync.Mutex

	cfg     Config
	backend wire.Transport
	log     *log.Logger

	wireEngine *wire.Engine
	swdEngine  *swd.Engine
	dap        *dap.DAP
	dm         *dm.DM

	connected bool
	idcode    uint32
}

// Create allocates a Target bound to backend but performs no I/O; call
// Connect to bring the link up. backend is the pluggable wire-transport
// implementation (PIO, DMA, bit-banging, ...); this package only
// requires that it satisfy wire.Transport.
func Create(backend wire.Transport, cfg Config) (*Target, error) {
	if backend == nil {
		return nil, errs.New(errs.InvalidParam, "rvswd.Create", "backend is nil")
	}
	t := &Target{
		cfg:     cfg,
		backend: backend,
	}
	registerTarget(t)
	return t, nil
}

// SetLogger attaches a logger to this Target, overriding the process-wide
// default for its operations.
func (t *Target) SetLogger(l *log.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = l
}

func (t *Target) requireConnected(op string) error {
	if !t.connected {
		return errs.New(errs.NotConnected, op, "target not connected")
	}
	return nil
}

func (t *Target) requireDMInit(op string) error {
	if err := t.requireConnected(op); err != nil {
		return err
	}
	if t.dm == nil {
		return errs.New(errs.NotInitialized, op, "debug module not activated")
	}
	return nil
}
