package pool

import "sync"

// ConcurrencyLimiter bounds the number of simultaneously active runs per
// user via an atomic check-and-increment.
type ConcurrencyLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

func NewConcurrencyLimiter(maxConcurrent int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		max:    maxConcurrent,
		counts: make(map[string]int),
	}
}

// Acquire takes a slot for the user. At capacity it returns false with no
// side effect.
func (c *ConcurrencyLimiter) Acquire(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[userID] >= c.max {
		return false
	}
	c.counts[userID]++
	return true
}

// Release frees a slot. A release on a zero counter is a no-op; the count
// never goes negative.
func (c *ConcurrencyLimiter) Release(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[userID] > 0 {
		c.counts[userID]--
	}
}

// ActiveCount returns the active run count for one user.
func (c *ConcurrencyLimiter) ActiveCount(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID]
}

// TotalActive sums active runs across all users.
func (c *ConcurrencyLimiter) TotalActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}
