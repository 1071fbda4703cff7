package sampling

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a math/rand source that is safe for concurrent use
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a Rand seeded with seed
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededRand returns a Rand seeded from the wall clock
func NewTimeSeededRand() *Rand {
	return NewRand(time.Now().UnixNano())
}

// Intn returns a uniform int in [0, n). It panics if n <= 0.
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}
