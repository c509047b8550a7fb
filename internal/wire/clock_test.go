package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDividerComputesExactIntegerRatio(t *testing.T) {
	r := DividerRange{SysClockKHz: 125_000, MinDivider: 2, MaxDivider: 0xFFFF}
	assert.Equal(t, uint(1250), r.Divider(100))
}

func TestDividerClampsToMinimum(t *testing.T) {
	r := DividerRange{SysClockKHz: 125_000, MinDivider: 2, MaxDivider: 0xFFFF}
	// A requested frequency above SysClockKHz/MinDivider would compute a
	// divider below MinDivider; it must clamp up instead.
	assert.Equal(t, uint(2), r.Divider(125_000))
}

func TestDividerClampsToMaximum(t *testing.T) {
	r := DividerRange{SysClockKHz: 125_000, MinDivider: 2, MaxDivider: 100}
	assert.Equal(t, uint(100), r.Divider(1))
}

func TestDividerTreatsZeroRequestAsOneKHz(t *testing.T) {
	r := DividerRange{SysClockKHz: 125_000, MinDivider: 2, MaxDivider: 0xFFFF}
	assert.Equal(t, r.Divider(1), r.Divider(0))
}
