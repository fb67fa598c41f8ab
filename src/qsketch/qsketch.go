// Package qsketch implements QS: the quantile-style maximum-of-
// random-variables cardinality sketch. Update consumes exactly one
// window's worth of elements via exponential-jump sampling over a
// permutation of register positions; Estimate roots the sketch's
// maximum-likelihood equation with Newton's method.
package qsketch

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/cardsketch/windowcard/src/hashing"
	"github.com/cardsketch/windowcard/src/metrics"
	"github.com/cardsketch/windowcard/src/registers"
	"github.com/cardsketch/windowcard/src/sketcherrors"
)

const (
	maxNewtonIterations = 100
	newtonTolerance     = 1e-5
	initialGuessFloor   = 0.0
	initialGuessCeiling = 1e6
)

// Config holds QS's construction parameters.
type Config struct {
	M        int   // register count
	R        int   // register bit width, must be in [1,16]
	Window   int   // W: exact element count Update expects per call
	RNGSeed  int64 // drives both per-position hash seeds and the Fisher-Yates shuffle
	Reporter metrics.MetricReporter
}

// Estimate is the result of a QS cardinality query. Value is always
// the final Newton iterate (spec.md §7: never throw on
// non-convergence); Converged reports whether the iteration satisfied
// the tolerance within the iteration budget, and Saturated reports
// whether every register clamped to its maximum (a caller signal to
// consider growing m, not a hard failure).
type Estimate struct {
	Value      float64
	Converged  bool
	Saturated  bool
	Iterations int
}

// QS is one window's worth of sketch state: m registers, a reusable
// permutation buffer, and m per-position seeds fixed at construction.
type QS struct {
	m      int
	r      int
	rMin   uint32
	rMax   uint32
	window int

	registers *registers.Registers
	perm      []int
	posHash   []hashing.Hasher
	shuffle   *rand.Rand

	estimates metrics.Counter
	updates   metrics.Counter
	cardinal  metrics.Gauge
}

// New constructs a QS sketch. Returns InvalidParameters if m < 1, r is
// outside [1,16], or window < 1.
func New(cfg Config) (*QS, error) {
	if cfg.M < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "m must be >= 1")
	}
	if cfg.R < 1 || cfg.R > 16 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "r must be in [1,16]")
	}
	if cfg.Window < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "window must be >= 1")
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = metrics.NopReporter
	}

	posHash := make([]hashing.Hasher, cfg.M)
	rng := rand.New(rand.NewSource(cfg.RNGSeed))
	for i := range posHash {
		posHash[i] = hashing.New(rng.Uint64())
	}

	perm := make([]int, cfg.M)
	for i := range perm {
		perm[i] = i
	}

	return &QS{
		m:         cfg.M,
		r:         cfg.R,
		rMin:      0,
		rMax:      uint32(1)<<uint(cfg.R) - 1,
		window:    cfg.Window,
		registers: registers.New(cfg.M),
		perm:      perm,
		posHash:   posHash,
		shuffle:   rand.New(rand.NewSource(cfg.RNGSeed + 1)),
		estimates: reporter.NewCounter("qsketch.estimates"),
		updates:   reporter.NewCounter("qsketch.updates"),
		cardinal:  reporter.NewGauge("qsketch.cardinality"),
	}, nil
}

// Update processes exactly Window elements from stream. Per spec.md
// §9's open question, this implementation asserts the "exactly W
// elements per call" contract and fails fast rather than silently
// processing a partial window.
func (q *QS) Update(stream [][]byte) error {
	if len(stream) != q.window {
		return sketcherrors.Wrap(sketcherrors.InputExhausted, "stream did not contain exactly window elements", nil)
	}
	for _, x := range stream {
		q.updateOne(x)
	}
	q.updates.Add(uint64(len(stream)))
	return nil
}

// updateOne runs the exponential-jump sampling update for a single
// element, exactly per spec.md §4.5.
func (q *QS) updateOne(x []byte) {
	// Reset the permutation buffer to the identity in place; Fisher-
	// Yates below only ever swaps within it.
	for i := range q.perm {
		q.perm[i] = i
	}

	var r float64
	jMin := q.registers.ArgMin()

	for i := 0; i < q.m; i++ {
		u := q.posHash[i].Normalized(x)
		if u <= 0 {
			// Guard against log(0); a hash collision onto exactly zero
			// is astronomically unlikely but would otherwise produce
			// +Inf and poison r for the rest of this element.
			u = math.SmallestNonzeroFloat64
		}
		r -= math.Log(u) / float64(q.m-i+1)
		y := int(math.Floor(-math.Log2(r)))

		if y <= int(q.registers.Get(jMin)) {
			break
		}

		j := i + q.shuffle.Intn(q.m-i)
		q.perm[i], q.perm[j] = q.perm[j], q.perm[i]

		if y > int(q.registers.Get(q.perm[i])) {
			var clamped uint32
			switch {
			case y < int(q.rMin):
				continue
			case uint32(y) >= q.rMax:
				clamped = q.rMax
			default:
				clamped = uint32(y)
			}
			q.registers.Set(q.perm[i], clamped)
			if q.perm[i] == jMin {
				jMin = q.registers.ArgMin()
			}
		}
	}
}

// Estimate roots the sketch's MLE equation via Newton's method,
// exactly per spec.md §4.5.1.
func (q *QS) Estimate() Estimate {
	sum := q.registers.Sum2PowNegative()
	c0 := float64(q.m-1) / sum
	if !(c0 > initialGuessFloor && c0 < initialGuessCeiling) {
		c0 = 1.0
	}

	var (
		c1         float64
		converged  bool
		iterations int
	)
	c1 = c0 - f(q.registers, q.m, c0)/df(q.registers, q.m, c0)
	for iterations = 0; math.Abs(c1-c0) > newtonTolerance && iterations < maxNewtonIterations; iterations++ {
		c0 = c1
		c1 = c0 - f(q.registers, q.m, c0)/df(q.registers, q.m, c0)
	}
	converged = math.Abs(c1-c0) <= newtonTolerance

	saturated := true
	for i := 0; i < q.m; i++ {
		if q.registers.Get(i) != q.rMax {
			saturated = false
			break
		}
	}

	if !converged {
		logrus.WithFields(logrus.Fields{
			"iterations": iterations,
			"last_delta": math.Abs(c1 - c0),
		}).Warn("qsketch: newton iteration did not converge, returning last iterate")
	}
	if c1 < 0 || c1 > 100*float64(q.m) {
		logrus.WithField("estimate", c1).Warn("qsketch: estimate outside sanity band, flagging numeric instability")
		converged = false
	}

	q.estimates.Inc()
	if c1 >= 0 {
		q.cardinal.Set(uint64(c1))
	}

	return Estimate{Value: c1, Converged: converged, Saturated: saturated, Iterations: iterations}
}

// f is the MLE score function from spec.md §4.5.1:
// f(c) = sum_i x_i (2 - e^(w x_i)) / (e^(w x_i) - 1), x_i = 2^(-registers[i]-1), w = c.
func f(regs *registers.Registers, m int, w float64) float64 {
	var res float64
	for i := 0; i < m; i++ {
		x := math.Exp2(-float64(regs.Get(i)) - 1)
		ex := math.Exp(w * x)
		res += x * (2 - ex) / (ex - 1)
	}
	return res
}

// df is f's derivative, with the numerical hygiene spec.md §4.5.1
// requires: large |w*x| is clamped to avoid overflow, and a
// near-singular denominator falls back to a Taylor approximation.
func df(regs *registers.Registers, m int, w float64) float64 {
	var res float64
	for i := 0; i < m; i++ {
		x := math.Exp2(-float64(regs.Get(i)) - 1)
		exponent := w * x

		var ex float64
		switch {
		case exponent > 500:
			continue
		case exponent < -500:
			ex = 0.0
		default:
			ex = math.Exp(exponent)
		}

		denominator := (ex - 1) * (ex - 1)
		var term float64
		if denominator < 1e-20 {
			term = -x * x * ex / (x*x*w*w + 1e-20)
		} else {
			term = -x * x * ex / denominator
		}
		res += term
	}
	return res
}
