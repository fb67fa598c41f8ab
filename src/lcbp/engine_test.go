package lcbp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, m int, window, gap int64) *Engine {
	t.Helper()
	e, err := New(Config{
		M:           m,
		Window:      window,
		D:           4,
		WCols:       2048,
		EmissionGap: gap,
		Seed:        2024,
	})
	require.NoError(t, err)
	return e
}

func keyFor(i int) []byte {
	return []byte(strconv.Itoa(i))
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	base := Config{M: 16, Window: 10, D: 2, WCols: 16, EmissionGap: 5, Seed: 1}

	bad := base
	bad.M = 0
	_, err := New(bad)
	require.Error(t, err)

	bad = base
	bad.Window = 0
	_, err = New(bad)
	require.Error(t, err)

	bad = base
	bad.D = 0
	_, err = New(bad)
	require.Error(t, err)

	bad = base
	bad.EmissionGap = bad.Window + 1
	_, err = New(bad)
	require.Error(t, err)
}

func TestScenario3ConstantKeyStaysAtOne(t *testing.T) {
	e := newTestEngine(t, 4096, 1024, 64)

	for i := 0; i < 2048; i++ {
		_, err := e.Observe([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, 1, e.list.Head().Val)
	}

	snap := e.Snapshot()
	assert.InDelta(t, 1.0, snap.Estimate, 0.2)
}

func TestScenario4AlternatingTwoKeys(t *testing.T) {
	e := newTestEngine(t, 4096, 100, 20)

	keys := [][]byte{[]byte("a"), []byte("b")}
	for i := 0; i < 400; i++ {
		_, err := e.Observe(keys[i%2])
		require.NoError(t, err)
	}

	assert.Equal(t, 2, e.list.Head().Val)
	snap := e.Snapshot()
	assert.InDelta(t, 2.0, snap.Estimate, 0.2)
}

func TestScenario2SlidingWindowOfDistinctKeys(t *testing.T) {
	e := newTestEngine(t, 4096, 1024, 1024)

	var lastEstimate *float64
	for i := 1; i <= 1024; i++ {
		est, err := e.Observe(keyFor(i))
		require.NoError(t, err)
		if est != nil {
			lastEstimate = est
		}
	}
	for i := 1025; i <= 2048; i++ {
		est, err := e.Observe(keyFor(i))
		require.NoError(t, err)
		if est != nil {
			lastEstimate = est
		}
	}

	require.NotNil(t, lastEstimate)
	assert.GreaterOrEqual(t, *lastEstimate, 900.0)
	assert.LessOrEqual(t, *lastEstimate, 1150.0)
}

func TestInvariantHeadValMatchesSetBitCount(t *testing.T) {
	e := newTestEngine(t, 256, 500, 50)

	for i := 0; i < 1000; i++ {
		_, err := e.Observe(keyFor(i % 300))
		require.NoError(t, err)

		setBits := 0
		for j := range e.table {
			if e.table[j].Val == 1 {
				setBits++
			}
		}
		assert.Equal(t, e.list.Head().Val, setBits)
	}
}

func TestInvariantEntryInListIffSet(t *testing.T) {
	e := newTestEngine(t, 128, 200, 20)

	for i := 0; i < 400; i++ {
		_, err := e.Observe(keyFor(i % 150))
		require.NoError(t, err)
	}

	linkedCount := 0
	cur := e.list.HeadNext()
	for cur != nil {
		linkedCount++
		assert.Equal(t, 1, cur.Val)
		cur = cur.Next()
	}
	assert.Equal(t, e.list.Head().Val, linkedCount)
}

func TestInvariantGapSumNonNegative(t *testing.T) {
	e := newTestEngine(t, 64, 300, 30)

	for i := 0; i < 900; i++ {
		_, err := e.Observe(keyFor(i % 80))
		require.NoError(t, err)

		var sum int64
		for j := range e.table {
			sum += e.table[j].Gap
		}
		sum += e.list.Head().Gap
		assert.GreaterOrEqual(t, sum, int64(0))
	}
}

func TestInvariantBoundedEvictionSteps(t *testing.T) {
	e := newTestEngine(t, 64, 300, 30)
	for i := 0; i < 300; i++ {
		_, err := e.Observe(keyFor(i))
		require.NoError(t, err)
	}

	extra := int64(50)
	for i := 0; i < int(extra); i++ {
		_, err := e.Observe(keyFor(1000 + i))
		require.NoError(t, err)
	}

	totalEvictions := e.evictionsA.Value() + e.evictionsB.Value()
	assert.LessOrEqual(t, totalEvictions, uint64(extra))
}

func TestSnapshotIdempotentWithNoIntervening(t *testing.T) {
	e := newTestEngine(t, 256, 100, 10)
	for i := 0; i < 150; i++ {
		_, err := e.Observe(keyFor(i))
		require.NoError(t, err)
	}

	first := e.Snapshot()
	second := e.Snapshot()
	assert.Equal(t, first, second)
}

func TestDeterminismAcrossIdenticalSeeds(t *testing.T) {
	cfg := Config{M: 512, Window: 300, D: 4, WCols: 512, EmissionGap: 25, Seed: 777}
	e1, err := New(cfg)
	require.NoError(t, err)
	e2, err := New(cfg)
	require.NoError(t, err)

	var estimates1, estimates2 []float64
	for i := 0; i < 900; i++ {
		k := keyFor(i % 400)
		est1, err := e1.Observe(k)
		require.NoError(t, err)
		est2, err := e2.Observe(k)
		require.NoError(t, err)
		if est1 != nil {
			estimates1 = append(estimates1, *est1)
		}
		if est2 != nil {
			estimates2 = append(estimates2, *est2)
		}
	}

	assert.Equal(t, estimates1, estimates2)
}

func TestSaturationError(t *testing.T) {
	e := newTestEngine(t, 4, 1, 1)
	for i := 0; i < 4; i++ {
		_, err := e.Observe(keyFor(i))
		require.NoError(t, err)
	}
	// With W=1 every observation runs an eviction step, so k stays below
	// m; force every bit set directly to reach head.val == m.
	for j := range e.table {
		e.table[j].Val = 1
	}
	e.list.Head().Val = e.m
	_, err := e.Estimate()
	require.Error(t, err)
}
