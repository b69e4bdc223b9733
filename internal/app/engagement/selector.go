package engagement

import (
	"fmt"
	"hash/fnv"
	"unicode/utf16"
)

// SeedAlgorithm selects how (userID, weekID) becomes a PRNG seed.
//
// Changing the algorithm, the PRNG or the draw order changes every user's
// weekly picks. Clients already in the field use SeedCharSum with Mulberry32,
// so that pairing is the default and must stay bit-exact.
type SeedAlgorithm string

const (
	// SeedCharSum sums the UTF-16 code units of userID+weekID (v1).
	SeedCharSum SeedAlgorithm = "charsum"
	// SeedFNV1a is FNV-1a/32 over the UTF-8 bytes of userID+weekID (v2).
	// Unlike v1 it is order-sensitive, so anagram user ids do not collide.
	SeedFNV1a SeedAlgorithm = "fnv1a"
)

// ParseSeedAlgorithm validates a configured algorithm name. Empty means
// SeedCharSum.
func ParseSeedAlgorithm(s string) (SeedAlgorithm, error) {
	switch SeedAlgorithm(s) {
	case "", SeedCharSum:
		return SeedCharSum, nil
	case SeedFNV1a:
		return SeedFNV1a, nil
	}
	return "", fmt.Errorf("unknown seed algorithm %q", s)
}

// Seed derives the 32-bit seed for a user's week.
func (a SeedAlgorithm) Seed(userID, weekID string) uint32 {
	key := userID + weekID
	if a == SeedFNV1a {
		h := fnv.New32a()
		h.Write([]byte(key))
		return h.Sum32()
	}

	var sum uint32
	for _, u := range utf16.Encode([]rune(key)) {
		sum += uint32(u)
	}
	return sum
}

// Mulberry32 is the public-domain 32-bit PRNG by Tommy Ettinger, bit-exact
// with the JavaScript reference:
//
//	t = a += 0x6D2B79F5
//	t = Math.imul(t ^ t >>> 15, t | 1)
//	t ^= t + Math.imul(t ^ t >>> 7, t | 61)
//	return ((t ^ t >>> 14) >>> 0) / 4294967296
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 seeds a generator.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 advances the generator and returns the next raw output.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns the next value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296
}

// RandomSource is the draw interface used by PickWithoutReplacement.
type RandomSource interface {
	Float64() float64
}

// PickWithoutReplacement draws up to n elements from pool. Each draw takes a
// uniform index into the remaining elements and removes it, so the result is
// in draw order. pool is not modified.
func PickWithoutReplacement[T any](pool []T, n int, rng RandomSource) []T {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	rest := make([]T, len(pool))
	copy(rest, pool)

	out := make([]T, 0, min(n, len(pool)))
	for len(out) < n && len(rest) > 0 {
		idx := int(rng.Float64() * float64(len(rest)))
		out = append(out, rest[idx])
		rest = append(rest[:idx], rest[idx+1:]...)
	}
	return out
}
