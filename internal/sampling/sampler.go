package sampling

// Sampler draws distinct indices without replacement
type Sampler struct {
	rand *Rand
}

// NewSampler creates a sampler backed by r
func NewSampler(r *Rand) *Sampler {
	if r == nil {
		r = NewTimeSeededRand()
	}
	return &Sampler{rand: r}
}

// Indices returns min(m, k) distinct indices in [0, m).
// When m <= k every index is returned in order. Otherwise a partial
// Fisher-Yates shuffle picks k of them, so the cost is O(m) regardless of k/m.
func (s *Sampler) Indices(m, k int) []int {
	if m <= 0 || k <= 0 {
		return []int{}
	}

	pool := make([]int, m)
	for i := range pool {
		pool[i] = i
	}
	if m <= k {
		return pool
	}

	for i := 0; i < k; i++ {
		j := i + s.rand.Intn(m-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k:k]
}

// Pick returns up to k distinct items of items chosen uniformly at random
func Pick[T any](s *Sampler, items []T, k int) []T {
	idx := s.Indices(len(items), k)
	out := make([]T, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}
