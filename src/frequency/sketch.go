// Package frequency implements a Count-Min sketch with decrement
// support: a d x w matrix of signed counters used by the LC+BP engine
// to decide whether a candidate slot has been seen recently enough to
// justify eviction. Counters are allowed to go negative transiently —
// the decrement result is used as a signal, not clamped at zero.
package frequency

import (
	"github.com/cardsketch/windowcard/src/hashing"
	"github.com/cardsketch/windowcard/src/sketcherrors"
)

// Sketch is a d-row, w-column Count-Min sketch of signed counters.
type Sketch struct {
	d, w       int
	counters   [][]int64
	rowHashers []hashing.Hasher
}

// New constructs a Sketch with d rows and w columns. rowSeed is the
// base seed each row's hasher is derived from via bias; bias must
// carry at least d values (HashBiasMisconfigured otherwise).
func New(d, w int, rowSeed uint64, bias hashing.RowBias) (*Sketch, error) {
	if d < 1 || w < 1 {
		return nil, sketcherrors.New(sketcherrors.InvalidParameters, "d and w must be >= 1")
	}
	if bias.Len() < d {
		return nil, sketcherrors.New(sketcherrors.HashBiasMisconfigured, "bias vector shorter than d")
	}

	counters := make([][]int64, d)
	rowHashers := make([]hashing.Hasher, d)
	for i := 0; i < d; i++ {
		counters[i] = make([]int64, w)
		h, err := bias.RowHasher(rowSeed, i)
		if err != nil {
			return nil, err
		}
		rowHashers[i] = h
	}

	return &Sketch{d: d, w: w, counters: counters, rowHashers: rowHashers}, nil
}

// Depth returns d.
func (s *Sketch) Depth() int { return s.d }

// Width returns w.
func (s *Sketch) Width() int { return s.w }

func (s *Sketch) columns(key []byte) []int {
	cols := make([]int, s.d)
	for i, h := range s.rowHashers {
		cols[i] = int(h.Hash(key) % uint64(s.w))
	}
	return cols
}

// Update increments the counter for key in every row by one.
func (s *Sketch) Update(key []byte) {
	for i, col := range s.columns(key) {
		s.counters[i][col]++
	}
}

// Decrement subtracts one from the counter for key in every row and
// returns the d post-decrement values. Values may go negative; the
// caller (the LC+BP eviction logic) treats a negative minimum as
// "definitely evictable".
func (s *Sketch) Decrement(key []byte) []int64 {
	cols := s.columns(key)
	out := make([]int64, s.d)
	for i, col := range cols {
		s.counters[i][col]--
		out[i] = s.counters[i][col]
	}
	return out
}

// Query returns the d cells' current values for key; the caller takes
// the componentwise min.
func (s *Sketch) Query(key []byte) []int64 {
	cols := s.columns(key)
	out := make([]int64, s.d)
	for i, col := range cols {
		out[i] = s.counters[i][col]
	}
	return out
}

// Min returns the smallest value in vals; used by callers on the
// slices Query/Decrement return.
func Min(vals []int64) int64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Decay multiplies every counter by factor, 0 < factor < 1. This is a
// supplemental maintenance operation (SPEC_FULL §4.4); nothing in this
// module calls it: neither the LC+BP engine nor the stream driver
// decays the sketch.
func (s *Sketch) Decay(factor float64) {
	if factor <= 0 || factor >= 1 {
		return
	}
	for i := range s.counters {
		row := s.counters[i]
		for j := range row {
			row[j] = int64(float64(row[j]) * factor)
		}
	}
}

// Reset zeroes every counter.
func (s *Sketch) Reset() {
	for i := range s.counters {
		row := s.counters[i]
		for j := range row {
			row[j] = 0
		}
	}
}
