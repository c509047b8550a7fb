package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a minimal Transport fake that records every call it sees,
// so tests can assert on the exact shift sequence the Engine issues.
type recorder struct {
	initCfg    Config
	calls      []call
	turnarounds int
	shiftErr   error
}

type call struct {
	kind string // "shift", "turnaround", "write-mode", "read-mode"
	dir  Direction
	n    int
	bits uint32
}

func (r *recorder) Init(cfg Config) error {
	r.initCfg = cfg
	return nil
}

func (r *recorder) SetFrequency(khz uint) error {
	r.initCfg.FreqKHz = khz
	return nil
}

func (r *recorder) EnterWriteMode() error {
	r.calls = append(r.calls, call{kind: "write-mode"})
	return nil
}

func (r *recorder) EnterReadMode() error {
	r.calls = append(r.calls, call{kind: "read-mode"})
	return nil
}

func (r *recorder) Shift(dir Direction, n int, bits uint32) (uint32, error) {
	r.calls = append(r.calls, call{kind: "shift", dir: dir, n: n, bits: bits})
	if r.shiftErr != nil {
		return 0, r.shiftErr
	}
	return bits, nil
}

func (r *recorder) Turnaround(k int) error {
	r.turnarounds++
	r.calls = append(r.calls, call{kind: "turnaround", n: k})
	return nil
}

func (r *recorder) Close() error { return nil }

func TestLineResetEmitsFiftySixOnesThenIdle(t *testing.T) {
	r := &recorder{}
	e := NewEngine(r, DefaultConfig())

	require.NoError(t, e.LineReset())

	var ones int
	var sawIdle bool
	for _, c := range r.calls {
		if c.kind != "shift" {
			continue
		}
		if c.bits == 0 {
			sawIdle = true
			continue
		}
		for i := 0; i < c.n; i++ {
			if c.bits&(1<<uint(i)) != 0 {
				ones++
			}
		}
	}
	assert.Equal(t, 56, ones, "line reset must emit at least 50 ones; this implementation emits 56")
	assert.True(t, sawIdle, "line reset must end with an idle (zero) shift")
}

func TestWakeUpSequenceOrder(t *testing.T) {
	r := &recorder{}
	e := NewEngine(r, DefaultConfig())

	require.NoError(t, e.WakeUp())

	var bytesSent []byte
	for _, c := range r.calls {
		if c.kind == "shift" && c.n == 8 {
			bytesSent = append(bytesSent, byte(c.bits))
		}
	}
	require.True(t, len(bytesSent) >= len(JTAGToDormant)+len(DormantToSWD))
	assert.Equal(t, JTAGToDormant, bytesSent[:len(JTAGToDormant)])
	assert.Equal(t, DormantToSWD, bytesSent[len(JTAGToDormant):len(JTAGToDormant)+len(DormantToSWD)])
}

func TestToWriteToReadInsertsExactlyOneTurnaround(t *testing.T) {
	r := &recorder{}
	e := NewEngine(r, DefaultConfig())

	require.NoError(t, e.ShiftWrite(8, 0x81))
	before := r.turnarounds
	_, err := e.ShiftRead(3)
	require.NoError(t, err)
	assert.Equal(t, before+1, r.turnarounds, "direction change must insert exactly one turnaround")

	before = r.turnarounds
	_, err = e.ShiftRead(3)
	require.NoError(t, err)
	assert.Equal(t, before, r.turnarounds, "repeating the same direction must not insert a turnaround")
}

func TestClampBits(t *testing.T) {
	assert.Equal(t, 1, clampBits(0))
	assert.Equal(t, 1, clampBits(-5))
	assert.Equal(t, 32, clampBits(32))
	assert.Equal(t, 32, clampBits(64))
	assert.Equal(t, 8, clampBits(8))
}

func TestExplicitTurnaroundDoesNotAffectDirectionTracking(t *testing.T) {
	r := &recorder{}
	e := NewEngine(r, DefaultConfig())

	require.NoError(t, e.ShiftWrite(8, 0x81))
	require.NoError(t, e.Turnaround())
	before := r.turnarounds
	require.NoError(t, e.ShiftWrite(8, 0x81))
	assert.Equal(t, before, r.turnarounds, "same-direction shift after an explicit Turnaround must not add another")
}
