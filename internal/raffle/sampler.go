package raffle

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Sampler draws uniform random subsets.  It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler with a fixed seed.  Two samplers built
// from the same seed produce the same sequence of picks.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSampler returns a Sampler seeded from crypto/rand.
func NewRandomSampler() *Sampler {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return NewSampler(binary.LittleEndian.Uint64(b[:]))
}

// Pick returns k distinct indexes in [0, n) in draw order.  Every
// k-subset is equally likely: the first k slots of a Fisher-Yates
// shuffle are filled and the rest of the permutation is never computed.
// k is clamped to [0, n].
func (s *Sampler) Pick(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	s.mu.Unlock()
	return idx[:k:k]
}
