// Package shuffle provides the deterministic per-student randomization used to
// reorder quiz questions and answer options. The same seed always produces the
// same permutation, so a reloaded session reproduces its original ordering.
package shuffle

const (
	// Seed mixing multipliers. Chosen odd so quiz and student ids never
	// cancel each other out for small values.
	quizSeedFactor    = 31
	studentSeedFactor = 17

	// zeroSeedFallback replaces a derived seed of exactly zero. A zero seed
	// is a fixed point of the LCG below and would leave every list unshuffled.
	zeroSeedFallback = 0x9E3779B9

	// Numerical Recipes LCG constants, modulus 2^32.
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
	lcgModulus    = 1 << 32
)

// SessionSeed derives the shuffle seed for a (quiz, student) pair.
// The result is guaranteed nonzero.
func SessionSeed(quizID, studentID int64) int64 {
	seed := quizID*quizSeedFactor + studentID*studentSeedFactor
	if seed == 0 {
		return zeroSeedFallback
	}
	return seed
}

// OptionSeed derives the seed for shuffling the options of the question at
// questionIndex within the quiz's original order. Offsetting by the index
// keeps every question's option order independent of the others while still
// being reproducible for the same student.
func OptionSeed(sessionSeed int64, questionIndex int) int64 {
	return sessionSeed + int64(questionIndex) + 1
}

// lcg is a linear congruential generator. Deterministic across platforms:
// all arithmetic is done modulo 2^32 on non-negative values.
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	return &lcg{state: s}
}

// intn returns a uniform value in [0, n). n must be positive.
func (g *lcg) intn(n int) int {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return int(g.state % int64(n))
}

// Shuffle returns a new slice containing items permuted by a Fisher–Yates
// shuffle driven by the seeded generator. The input slice is not modified.
func Shuffle[T any](items []T, seed int64) []T {
	out := make([]T, len(items))
	copy(out, items)

	g := newLCG(seed)
	for i := len(out) - 1; i >= 1; i-- {
		j := g.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
