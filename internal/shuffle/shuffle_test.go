package shuffle

import (
	"reflect"
	"testing"
)

func TestShuffleDeterministic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	seeds := []int64{1, 42, -7, 123456789, zeroSeedFallback}
	for _, seed := range seeds {
		a := Shuffle(items, seed)
		b := Shuffle(items, seed)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("seed %d: two invocations differ: %v vs %v", seed, a, b)
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	out := Shuffle(items, 99)

	if len(out) != len(items) {
		t.Fatalf("length changed: got %d, want %d", len(out), len(items))
	}
	seen := make(map[string]int)
	for _, v := range out {
		seen[v]++
	}
	for _, v := range items {
		if seen[v] != 1 {
			t.Errorf("item %q appears %d times after shuffle", v, seen[v])
		}
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	orig := []int{1, 2, 3, 4, 5}

	Shuffle(items, 7)
	if !reflect.DeepEqual(items, orig) {
		t.Errorf("input mutated: %v", items)
	}
}

func TestShuffleDifferentSeedsUsuallyDiffer(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	a := Shuffle(items, 1)
	b := Shuffle(items, 2)
	if reflect.DeepEqual(a, b) {
		t.Error("seeds 1 and 2 produced identical permutations of 20 items")
	}
}

func TestShuffleEdgeSizes(t *testing.T) {
	if got := Shuffle([]int{}, 5); len(got) != 0 {
		t.Errorf("empty slice: got %v", got)
	}
	if got := Shuffle([]int{42}, 5); len(got) != 1 || got[0] != 42 {
		t.Errorf("single element: got %v", got)
	}
}

func TestSessionSeedNeverZero(t *testing.T) {
	cases := []struct {
		quizID, studentID int64
	}{
		{0, 0},
		{17, -31}, // 17*31 + (-31)*17 = 0 before the remap
		{1, 1},
		{-5, 3},
	}
	for _, tc := range cases {
		if seed := SessionSeed(tc.quizID, tc.studentID); seed == 0 {
			t.Errorf("SessionSeed(%d, %d) = 0", tc.quizID, tc.studentID)
		}
	}

	if SessionSeed(0, 0) != zeroSeedFallback {
		t.Errorf("SessionSeed(0, 0) = %d, want fallback %d", SessionSeed(0, 0), int64(zeroSeedFallback))
	}
}

func TestOptionSeedIndependentPerQuestion(t *testing.T) {
	base := SessionSeed(12, 34)
	seen := make(map[int64]bool)
	for i := 0; i < 10; i++ {
		s := OptionSeed(base, i)
		if seen[s] {
			t.Fatalf("duplicate option seed %d at index %d", s, i)
		}
		seen[s] = true
	}
	if OptionSeed(base, 0) != base+1 {
		t.Errorf("OptionSeed offset: got %d, want %d", OptionSeed(base, 0), base+1)
	}
}
