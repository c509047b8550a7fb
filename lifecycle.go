package rvswd

import (
	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/dap"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/dm"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/swd"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
)

// Connect brings up the wire link: pin configuration, clock divider, the
// dormant->SWD wake sequence, and line reset. A second Connect on an
// already-connected handle is a state error.
func (t *Target) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return errs.New(errs.InvalidState, "rvswd.Connect", "already connected")
	}

	we := wire.NewEngine(t.backend, t.cfg.wireConfig())
	if err := we.Init(); err != nil {
		return errs.Wrap(errs.Of(err), "rvswd.Connect", err)
	}

	se := swd.New(we, t.cfg.RetryCount)
	d := dap.New(se)

	idcode, err := d.ReadIDCODE()
	if err != nil {
		_ = we.Close()
		return errs.Wrap(errs.Of(err), "rvswd.Connect", err)
	}

	t.wireEngine = we
	t.swdEngine = se
	t.dap = d
	t.idcode = idcode
	t.connected = true

	t.logger().Debug("connected", "idcode", idcode)
	return nil
}

// IDCODE returns the DP IDCODE value observed at Connect time.
func (t *Target) IDCODE() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected("rvswd.IDCODE"); err != nil {
		return 0, err
	}
	return t.idcode, nil
}

// PowerUp runs the CTRL/STAT power handshake (§4.3).
func (t *Target) PowerUp() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected("rvswd.PowerUp"); err != nil {
		return err
	}
	if err := t.dap.PowerUp(); err != nil {
		return errs.Wrap(errs.Of(err), "rvswd.PowerUp", err)
	}
	t.logger().Debug("power domains up")
	return nil
}

// DMInit runs the RP2350 Debug Module activation handshake (§4.4) and
// initializes System Bus Access. It requires PowerUp to have succeeded.
func (t *Target) DMInit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected("rvswd.DMInit"); err != nil {
		return err
	}
	if !t.dap.Powered() {
		return errs.New(errs.InvalidState, "rvswd.DMInit", "power-up has not completed")
	}
	d := dm.New(t.dap)
	d.EnableCache(t.cfg.CacheEnabled)
	if err := d.Activate(); err != nil {
		return errs.Wrap(errs.Of(err), "rvswd.DMInit", err)
	}
	t.dm = d
	t.logger().Debug("debug module activated")
	return nil
}

// ClearErrors clears sticky DAP faults so the next operation starts from
// a clean slate. No error other than a failed resource acquisition at
// Connect is fatal to the handle; everything else leaves the handle
// usable after this call.
func (t *Target) ClearErrors() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected("rvswd.ClearErrors"); err != nil {
		return err
	}
	return t.dap.ClearStickyErrors()
}

// SetFrequency re-applies the SWCLK frequency after Connect.
func (t *Target) SetFrequency(khz uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected("rvswd.SetFrequency"); err != nil {
		return err
	}
	return t.wireEngine.SetFrequency(khz)
}

// Disconnect releases wire-transport resources. A second Disconnect on
// an already-disconnected handle is a no-op.
func (t *Target) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	err := t.wireEngine.Close()
	t.connected = false
	t.dm = nil
	t.dap = nil
	t.swdEngine = nil
	t.wireEngine = nil
	if err != nil {
		return errs.Wrap(errs.ResourceBusy, "rvswd.Disconnect", err)
	}
	t.logger().Debug("disconnected")
	return nil
}

// Destroy disconnects (if needed) and removes the handle from the
// process-scoped registry.
func (t *Target) Destroy() error {
	err := t.Disconnect()
	deregisterTarget(t)
	return err
}
