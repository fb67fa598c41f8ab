// Package hashing implements the seeded-hash contract shared by every
// sketch: a 64-bit digest of a byte key plus a construction-time seed,
// and a [0,1) normalized variant used by the QS sketch's exponential
// sampling. It also owns the per-row bias vector used to derive d
// independent-looking hashes from one primitive (FrequencySketch's
// rows), generated once at construction rather than read from process
// state.
package hashing

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/cardsketch/windowcard/src/sketcherrors"
)

// Hasher is the pluggable contract every sketch hashes keys through.
// Implementations must be deterministic for a given seed and
// well-distributed; callers never rely on anything beyond that.
type Hasher interface {
	// Hash returns a 64-bit digest of key.
	Hash(key []byte) uint64
	// Normalized returns Hash(key) / 2^64, in [0,1).
	Normalized(key []byte) float64
}

// xxhashHasher writes the seed's 8 bytes ahead of the key into a fresh
// xxhash digest, mirroring the construction the teacher's Count-Min
// sketch uses to derive a seeded hash from an unseeded primitive.
type xxhashHasher struct {
	seed uint64
}

// New returns a Hasher bound to seed. Two Hashers built with the same
// seed hash every key identically.
func New(seed uint64) Hasher {
	return xxhashHasher{seed: seed}
}

func (h xxhashHasher) Hash(key []byte) uint64 {
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], h.seed)

	d := xxhash.New()
	d.Write(seedBytes[:])
	d.Write(key)
	return d.Sum64()
}

func (h xxhashHasher) Normalized(key []byte) float64 {
	const twoPow64 = 1.8446744073709552e19 // 2^64
	return float64(h.Hash(key)) / twoPow64
}

// RowBias is an immutable, per-sketch bias vector: d random 64-bit
// values added to a base seed to derive d independent-looking row
// hashers from a single base Hasher. Replaces the source's
// module-level `bias` global (spec.md §9) with a value owned by the
// sketch that needs it and passed in at construction.
type RowBias struct {
	values []uint64
}

// NewRowBias builds a RowBias of length rows, deterministic for a
// given rngSeed. rows must be >= 1.
func NewRowBias(rngSeed int64, rows int) (RowBias, error) {
	if rows < 1 {
		return RowBias{}, sketcherrors.New(sketcherrors.HashBiasMisconfigured, "rows must be >= 1")
	}
	rng := rand.New(rand.NewSource(rngSeed))
	values := make([]uint64, rows)
	for i := range values {
		values[i] = rng.Uint64()
	}
	return RowBias{values: values}, nil
}

// Len returns the number of rows this bias vector supports.
func (b RowBias) Len() int {
	return len(b.values)
}

// RowHasher returns a Hasher for row i, derived from baseSeed and
// bias[i]. Returns HashBiasMisconfigured if i is out of range or the
// vector was never initialized.
func (b RowBias) RowHasher(baseSeed uint64, i int) (Hasher, error) {
	if i < 0 || i >= len(b.values) {
		return nil, sketcherrors.New(sketcherrors.HashBiasMisconfigured, "row index out of range for bias vector")
	}
	return New(baseSeed + b.values[i]), nil
}
