package engagement_test

import (
	"slices"
	"testing"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
)

// ═══════════════════════════════════════════════════════════════════════════
// Deterministic Selector Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestMulberry32_ReferenceVectors(t *testing.T) {
	tests := []struct {
		seed uint32
		want []uint32
	}{
		{0, []uint32{1144304738, 1416247, 958946056}},
		{1, []uint32{2693262067, 11749833, 2265367787}},
		{42, []uint32{2581720956, 1925393290, 3661312704}},
	}

	for _, tt := range tests {
		rng := engagement.NewMulberry32(tt.seed)
		for i, want := range tt.want {
			if got := rng.Uint32(); got != want {
				t.Errorf("seed %d draw %d = %d, want %d", tt.seed, i, got, want)
			}
		}
	}
}

func TestMulberry32_Float64Range(t *testing.T) {
	rng := engagement.NewMulberry32(7)
	for i := 0; i < 10000; i++ {
		f := rng.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("draw %d = %v, outside [0, 1)", i, f)
		}
	}
}

func TestSeed_CharSum(t *testing.T) {
	if got := engagement.SeedCharSum.Seed("alice", "2025-W10"); got != 940 {
		t.Errorf("charsum(alice2025-W10) = %d, want 940", got)
	}
	if got := engagement.SeedCharSum.Seed("bob", "2025-W10"); got != 737 {
		t.Errorf("charsum(bob2025-W10) = %d, want 737", got)
	}
	// Order-insensitive by construction.
	if engagement.SeedCharSum.Seed("ab", "W1") != engagement.SeedCharSum.Seed("ba", "W1") {
		t.Error("charsum should not depend on character order")
	}
}

func TestSeed_FNV1a(t *testing.T) {
	a := engagement.SeedFNV1a.Seed("ab", "W1")
	b := engagement.SeedFNV1a.Seed("ba", "W1")
	if a == b {
		t.Error("fnv1a should separate anagram user ids")
	}
	if a != engagement.SeedFNV1a.Seed("ab", "W1") {
		t.Error("fnv1a not stable")
	}
}

func TestParseSeedAlgorithm(t *testing.T) {
	for in, want := range map[string]engagement.SeedAlgorithm{
		"":        engagement.SeedCharSum,
		"charsum": engagement.SeedCharSum,
		"fnv1a":   engagement.SeedFNV1a,
	} {
		got, err := engagement.ParseSeedAlgorithm(in)
		if err != nil || got != want {
			t.Errorf("ParseSeedAlgorithm(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := engagement.ParseSeedAlgorithm("sha1"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

// fixedSource returns the same draw forever.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestPickWithoutReplacement(t *testing.T) {
	pool := []string{"a", "b", "c", "d"}

	if got := engagement.PickWithoutReplacement(pool, 3, fixedSource(0)); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("low draws = %v", got)
	}
	if got := engagement.PickWithoutReplacement(pool, 3, fixedSource(0.999)); !slices.Equal(got, []string{"d", "c", "b"}) {
		t.Errorf("high draws = %v", got)
	}
	if !slices.Equal(pool, []string{"a", "b", "c", "d"}) {
		t.Errorf("pool modified: %v", pool)
	}
}

func TestPickWithoutReplacement_Bounds(t *testing.T) {
	pool := []int{1, 2, 3}
	rng := engagement.NewMulberry32(1)

	if got := engagement.PickWithoutReplacement(pool, 0, rng); got != nil {
		t.Errorf("n=0 gave %v", got)
	}
	if got := engagement.PickWithoutReplacement([]int(nil), 2, rng); got != nil {
		t.Errorf("empty pool gave %v", got)
	}

	got := engagement.PickWithoutReplacement(pool, 10, rng)
	if len(got) != 3 {
		t.Fatalf("n > len(pool) gave %d items", len(got))
	}
	slices.Sort(got)
	if !slices.Equal(got, pool) {
		t.Errorf("not a permutation: %v", got)
	}
}
