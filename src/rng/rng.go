// Package rng provides the single seeded randomness source a node owns,
// used by the peer table's Sample for gossip fanout selection, hybrid-pull
// peer selection and discovery targets (peer-table replacement is
// deterministic and draws nothing from it). Seeding from config.seed is what
// makes an entire run reproducible: given the same seed and the same arrival
// order of datagrams, every Shuffle call below produces the same sequence.
package rng

import "math/rand"

// Source is a seeded uniform sampler. It is not safe for concurrent use;
// the node runtime's single-threaded cooperative model is what makes that
// acceptable (see the concurrency notes in the node package).
type Source struct {
	r *rand.Rand
}

// New returns a Source seeded deterministically from seed.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// SampleWithoutReplacement draws up to k distinct elements from items,
// uniformly, without replacement, and returns them in the order drawn. If
// k >= len(items), a shuffled copy of items is returned.
func SampleWithoutReplacement[T any](s *Source, items []T, k int) []T {
	n := len(items)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	pool := make([]T, n)
	copy(pool, items)
	s.r.Shuffle(n, func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	return pool[:k]
}

// Intn returns a uniform pseudo-random int in [0, n).
func (s *Source) Intn(n int) int {
	return s.r.Intn(n)
}
