package registers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSetRoundTrip(t *testing.T) {
	r := New(8)
	r.Set(3, 17)
	assert.Equal(t, uint32(17), r.Get(3))
	assert.Equal(t, 8, r.Len())
}

func TestArgMinFirstOccurrenceWins(t *testing.T) {
	r := New(5)
	r.Set(0, 4)
	r.Set(1, 2)
	r.Set(2, 2)
	r.Set(3, 9)
	r.Set(4, 2)

	assert.Equal(t, 1, r.ArgMin())
}

func TestArgMinAllZero(t *testing.T) {
	r := New(4)
	assert.Equal(t, 0, r.ArgMin())
}

func TestSum2PowNegative(t *testing.T) {
	r := New(2)
	r.Set(0, 0) // 2^-0 = 1
	r.Set(1, 1) // 2^-1 = 0.5
	assert.InDelta(t, 1.5, r.Sum2PowNegative(), 1e-9)
}
