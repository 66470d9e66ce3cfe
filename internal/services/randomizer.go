package services

import (
	"math/rand"
	"sync"
	"time"
)

// Randomizer is the engine's single randomness dependency. It wraps a
// *rand.Rand behind a mutex because rand.Rand is not safe for concurrent
// use, and sessions start concurrently. Tests inject a fixed seed.
type Randomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer seeds from the current time.
func NewRandomizer() *Randomizer {
	return NewSeededRandomizer(time.Now().UnixNano())
}

// NewSeededRandomizer creates a deterministic source for tests.
func NewSeededRandomizer(seed int64) *Randomizer {
	return &Randomizer{rng: rand.New(rand.NewSource(seed))}
}

// Intn returns a uniform value in [0, n).
func (r *Randomizer) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// Perm returns a uniformly random permutation of [0, n).
func (r *Randomizer) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Perm(n)
}

// ShuffleIDs permutes the given ids in place and returns them.
func (r *Randomizer) ShuffleIDs(ids []uint) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

// PermuteIDs returns a new slice holding a uniformly random ordering of ids,
// leaving the input untouched. Session creation uses this so the exam's
// authored question order is never mutated in place.
func (r *Randomizer) PermuteIDs(ids []uint) []uint {
	out := make([]uint, len(ids))
	for i, p := range r.Perm(len(ids)) {
		out[i] = ids[p]
	}
	return out
}
