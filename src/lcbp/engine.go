// Package lcbp implements the LC+BP engine: a linear-counting bit
// table coupled with a recency list and a Count-Min frequency sketch,
// maintaining a continuously valid sliding-window cardinality estimate
// without storing element identities. See spec.md §4.6 for the
// eviction policy this package implements verbatim.
package lcbp

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardsketch/windowcard/src/frequency"
	"github.com/cardsketch/windowcard/src/hashing"
	"github.com/cardsketch/windowcard/src/metrics"
	"github.com/cardsketch/windowcard/src/recency"
	"github.com/cardsketch/windowcard/src/sketcherrors"
)

// caseBSearchMultiplier bounds the eviction Case B search, per spec.md §9's
// open question: the source's loop can in principle spin forever if
// no column has a point estimate > 1. We bound it at 8*m attempts and
// leave head.gap unchanged for the step if none is found, rather than
// guess at alternative intent.
const caseBSearchMultiplier = 8

// Config holds LC+BP's construction parameters. A single Seed drives
// the LC hash, the frequency sketch's row bias, and the Case-B random
// column pick, each via a distinct derivation so none of the three
// ever correlate (spec.md §9's cross-talk note), while the whole
// engine stays reproducible from one seed (spec.md §5, §9).
type Config struct {
	M           int   // bit-table size
	Window      int64 // W: sliding window size in elements
	D           int   // frequency sketch rows
	WCols       int   // frequency sketch columns
	EmissionGap int64 // S: elements between emitted estimates, S <= W
	Seed        int64
	Reporter    metrics.MetricReporter
}

// Engine is one sliding window's worth of LC+BP state.
type Engine struct {
	m           int
	window      int64
	emissionGap int64

	table    []recency.Entry
	list     *recency.List
	fs       *frequency.Sketch
	lcHasher hashing.Hasher
	caseBRNG *rand.Rand

	cnt          int64
	evictionsA   metrics.Counter
	evictionsB   metrics.Counter
	observations metrics.Counter
	estimateTime metrics.Timer
	cardinal     metrics.Gauge
}

// New constructs an Engine. Returns InvalidParameters if m, window, d,
// or wCols is < 1, or if EmissionGap is < 1 or > Window (spec.md §6:
// "S <= W").
func New(cfg Config) (*Engine, error) {
	if cfg.M < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "m must be >= 1")
	}
	if cfg.Window < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "window must be >= 1")
	}
	if cfg.D < 1 || cfg.WCols < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "d and wCols must be >= 1")
	}
	if cfg.EmissionGap < 1 || cfg.EmissionGap > cfg.Window {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "emission gap must satisfy 1 <= S <= W")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	lcSeed := rng.Uint64()
	fsRowSeed := rng.Uint64()
	biasSeed := rng.Int63()
	caseBSeed := rng.Int63()

	bias, err := hashing.NewRowBias(biasSeed, cfg.D)
	if err != nil {
		return nil, err
	}
	fs, err := frequency.New(cfg.D, cfg.WCols, fsRowSeed, bias)
	if err != nil {
		return nil, err
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = metrics.NopReporter
	}

	table := make([]recency.Entry, cfg.M)
	for i := range table {
		table[i].Idx = i
	}

	return &Engine{
		m:            cfg.M,
		window:       cfg.Window,
		emissionGap:  cfg.EmissionGap,
		table:        table,
		list:         recency.New(),
		fs:           fs,
		lcHasher:     hashing.New(lcSeed),
		caseBRNG:     rand.New(rand.NewSource(caseBSeed)),
		evictionsA:   reporter.NewCounter("lcbp.evictions.case_a"),
		evictionsB:   reporter.NewCounter("lcbp.evictions.case_b"),
		observations: reporter.NewCounter("lcbp.observations"),
		estimateTime: reporter.NewTimer("lcbp.estimate_latency_ms"),
		cardinal:     reporter.NewGauge("lcbp.cardinality"),
	}, nil
}

func indexKey(idx int) []byte {
	return []byte(strconv.Itoa(idx))
}

// Observe ingests one element. It returns a non-nil estimate whenever
// the element lands on an emission boundary (spec.md §4.6 step 7);
// otherwise it returns nil. A non-nil error means the emission-
// boundary estimate failed (currently only Saturation); the engine's
// internal state remains fully consistent either way.
func (e *Engine) Observe(key []byte) (*float64, error) {
	idx := int(e.lcHasher.Hash(key) % uint64(e.m))
	slot := &e.table[idx]

	e.fs.Update(indexKey(idx))

	if slot.Val == 0 {
		slot.Val = 1
		e.list.Head().Val++
		e.list.Append(slot)
	} else {
		if pred := slot.Prev(); pred != nil {
			pred.Gap += slot.Gap + 1
		}
		slot.Gap = 0
		e.list.Touch(slot)
	}

	e.cnt++
	e.observations.Inc()

	// Eviction and emission share a single gate, as in the source's
	// update() loop: the first emission always coincides with the
	// first eviction step, at total element count window+1.
	if e.cnt > e.window {
		e.evictionStep()

		if (e.cnt-e.window-1)%e.emissionGap == 0 {
			v, err := e.Estimate()
			if err != nil {
				return nil, err
			}
			return &v, nil
		}
	}
	return nil, nil
}

// evictionStep performs exactly one bounded-work maintenance
// operation, per spec.md §4.6.
func (e *Engine) evictionStep() {
	head := e.list.Head()

	if head.Gap == 0 {
		e.evictCaseA(head)
		return
	}
	e.evictCaseB(head)
}

// evictCaseA retires the LRU slot if its residual recency (after one
// Count-Min decrement) has fallen to zero or below.
func (e *Engine) evictCaseA(head *recency.Entry) {
	lru := e.list.HeadNext()
	if lru == nil {
		return
	}

	post := frequency.Min(e.fs.Decrement(indexKey(lru.Idx)))
	if post > 0 {
		// Residual recency survived this decrement; leave the slot in
		// place. The decrement itself is the unit of work spent.
		return
	}

	head.Gap = lru.Gap
	lru.Gap = 0
	lru.Val = 0
	if _, err := e.list.PopHead(); err != nil {
		logrus.WithError(err).Error("lcbp: pop_head failed during case A eviction")
		return
	}
	head.Val--
	e.evictionsA.Inc()
}

// evictCaseB consumes one unit of pending dummy recency by decrementing
// a random column whose current point estimate is still > 1.
func (e *Engine) evictCaseB(head *recency.Entry) {
	maxAttempts := caseBSearchMultiplier * e.m
	for attempt := 0; attempt < maxAttempts; attempt++ {
		hpos := e.caseBRNG.Intn(e.m)
		key := indexKey(hpos)
		if frequency.Min(e.fs.Query(key)) > 1 {
			e.fs.Decrement(key)
			head.Gap--
			e.evictionsB.Inc()
			return
		}
	}
	logrus.WithField("attempts", maxAttempts).Debug("lcbp: case B bounded search found no eligible column, leaving head.gap unchanged")
}

// Estimate computes the linear-counting cardinality from the current
// bit-table occupancy: -m * ln((m - k) / m), k = head.val. Returns
// Saturation if k == m (spec.md §4.6, §7); the caller must enlarge m.
func (e *Engine) Estimate() (float64, error) {
	start := time.Now()
	defer func() {
		e.estimateTime.AddValue(float64(time.Since(start)) / float64(time.Millisecond))
	}()

	k := e.list.Head().Val
	if k >= e.m {
		return 0, sketcherrors.New(sketcherrors.Saturation, "head.val has reached m; enlarge m")
	}
	v := -float64(e.m) * math.Log(float64(e.m-k)/float64(e.m))
	e.cardinal.Set(uint64(v))
	return v, nil
}

// Snapshot reports the engine's current estimate alongside how much
// work has been done so far — the data M_RS+BP.py's reference main()
// loop printed at every emission boundary, kept here as a queryable
// value instead of a print statement (SPEC_FULL §6).
type Snapshot struct {
	Estimate        float64
	SetBits         int
	ElementsSeen    int64
	EvictionsCaseA  uint64
	EvictionsCaseB  uint64
	PendingDummyGap int64
}

// Snapshot returns the engine's current state. It does not advance
// any counters; calling it twice with no intervening Observe returns
// an identical value (spec.md §8's idempotence law).
func (e *Engine) Snapshot() Snapshot {
	est, err := e.Estimate()
	if err != nil {
		est = math.NaN()
	}
	head := e.list.Head()
	return Snapshot{
		Estimate:        est,
		SetBits:         head.Val,
		ElementsSeen:    e.cnt,
		EvictionsCaseA:  e.evictionsA.Value(),
		EvictionsCaseB:  e.evictionsB.Value(),
		PendingDummyGap: head.Gap,
	}
}
