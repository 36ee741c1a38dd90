package shuffle

import "math/rand/v2"

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// ShufflerFunc adapts a function to the Shuffler interface.
type ShufflerFunc func(n int, swap func(i, j int))

// Shuffle calls f(n, swap).
func (f ShufflerFunc) Shuffle(n int, swap func(i, j int)) {
	f(n, swap)
}

// DefaultShuffler draws uniform Fisher-Yates permutations from the runtime's
// randomly seeded source.
var DefaultShuffler Shuffler = ShufflerFunc(rand.Shuffle)

// NewSeededShuffler returns a reproducible Shuffler for the given seed.
func NewSeededShuffler(seed uint64) Shuffler {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
