package rvswd

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/amgspendingspree/pico2-swd-riscv/errs"
	"github.com/amgspendingspree/pico2-swd-riscv/internal/simhw"
)

func newConnectedTarget(t *testing.T) *Target {
	t.Helper()
	dev := simhw.New()
	target, err := Create(dev, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, target.Connect())
	return target
}

func TestConnectReadsIDCODE(t *testing.T) {
	target := newConnectedTarget(t)
	id, err := target.IDCODE()
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestDoubleConnectIsStateError(t *testing.T) {
	target := newConnectedTarget(t)
	err := target.Connect()
	require.Error(t, err)
	assert.Equal(t, errs.InvalidState, errs.Of(err))
}

func TestCreateRejectsNilBackend(t *testing.T) {
	_, err := Create(nil, DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, errs.InvalidParam, errs.Of(err))
}

func TestFullBringUpAndHaltResume(t *testing.T) {
	target := newConnectedTarget(t)
	require.NoError(t, target.PowerUp())
	require.NoError(t, target.DMInit())

	require.NoError(t, target.Halt(0))
	require.NoError(t, target.WriteReg(0, 10, 42))
	v, err := target.ReadReg(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	require.NoError(t, target.Resume(0))
}

func TestOperationsBeforeConnectFail(t *testing.T) {
	dev := simhw.New()
	target, err := Create(dev, DefaultConfig())
	require.NoError(t, err)

	_, err = target.IDCODE()
	require.Error(t, err)
	assert.Equal(t, errs.NotConnected, errs.Of(err))

	err = target.Halt(0)
	require.Error(t, err)
	assert.Equal(t, errs.NotConnected, errs.Of(err))
}

func TestOperationsBeforeDMInitFail(t *testing.T) {
	target := newConnectedTarget(t)
	err := target.Halt(0)
	require.Error(t, err)
	assert.Equal(t, errs.NotInitialized, errs.Of(err))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	target := newConnectedTarget(t)
	require.NoError(t, target.Disconnect())
	require.NoError(t, target.Disconnect())
}

func TestDestroyRemovesFromRegistry(t *testing.T) {
	target := newConnectedTarget(t)
	key := targetKey(target)

	registry.mu.Lock()
	_, present := registry.handles[key]
	registry.mu.Unlock()
	assert.True(t, present)

	require.NoError(t, target.Destroy())

	registry.mu.Lock()
	_, present = registry.handles[key]
	registry.mu.Unlock()
	assert.False(t, present)
}

func TestLiveTargetsPrunesCollectedEntries(t *testing.T) {
	before := len(LiveTargets())

	var key uintptr
	func() {
		dev := simhw.New()
		target, err := Create(dev, DefaultConfig())
		require.NoError(t, err)
		assert.Len(t, LiveTargets(), before+1)
		key = targetKey(target)
	}()

	runtime.GC()
	runtime.GC()
	_ = LiveTargets() // prunes entries whose Target has been collected

	registry.mu.Lock()
	_, present := registry.handles[key]
	registry.mu.Unlock()
	assert.False(t, present)
}

func TestExecuteCodeThroughPublicAPI(t *testing.T) {
	target := newConnectedTarget(t)
	require.NoError(t, target.PowerUp())
	require.NoError(t, target.DMInit())

	const addr = 0x2000_5000
	prog := []uint32{
		encodeADDI(1, 0, 3),
		encodeADDI(2, 0, 4),
		encodeADD(3, 1, 2),
		selfLoopWord,
	}
	require.NoError(t, target.ExecuteCode(0, addr, prog))
	require.NoError(t, target.Halt(0))
	v, err := target.ReadReg(0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FreqKHz = 2500
	cfg.RetryCount = 9
	cfg.CacheEnabled = false

	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigAppliesDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("freq_khz: 4000\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(4000), cfg.FreqKHz)
	assert.Equal(t, DefaultConfig().RetryCount, cfg.RetryCount)
}

// TestGPRRoundTripIsIdentityAcrossRandomValues expresses the quantified
// GPR round-trip invariant: for every hart and register n in [1,31],
// writing a value and reading it back returns exactly that value.
func TestGPRRoundTripIsIdentityAcrossRandomValues(t *testing.T) {
	target := newConnectedTarget(t)
	require.NoError(t, target.PowerUp())
	require.NoError(t, target.DMInit())
	require.NoError(t, target.Halt(0))

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 31).Draw(rt, "gpr")
		value := rapid.Uint32().Draw(rt, "value")

		require.NoError(rt, target.WriteReg(0, n, value))
		got, err := target.ReadReg(0, n)
		require.NoError(rt, err)
		assert.Equal(rt, value, got)
	})
}

// TestMemoryWordRoundTripIsIdentity expresses the quantified memory
// round-trip invariant over aligned addresses.
func TestMemoryWordRoundTripIsIdentity(t *testing.T) {
	target := newConnectedTarget(t)
	require.NoError(t, target.PowerUp())
	require.NoError(t, target.DMInit())

	rapid.Check(t, func(rt *rapid.T) {
		addr := rapid.Uint32Range(0, 1<<16).Draw(rt, "addr") &^ 3
		value := rapid.Uint32().Draw(rt, "value")

		require.NoError(rt, target.WriteMem32(addr, value))
		got, err := target.ReadMem32(addr)
		require.NoError(rt, err)
		assert.Equal(rt, value, got)
	})
}

const selfLoopWord = 0x0000006F

func encodeADDI(rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | rd<<7 | 0x13
}

func encodeADD(rd, rs1, rs2 uint32) uint32 {
	return rs2<<20 | rs1<<15 | rd<<7 | 0x33
}
