package pool

import (
	"sync"
	"testing"
)

func TestConcurrencyLimiter(t *testing.T) {
	c := NewConcurrencyLimiter(2)

	if !c.Acquire("alice") || !c.Acquire("alice") {
		t.Fatal("first two acquires should succeed")
	}
	if c.Acquire("alice") {
		t.Error("third acquire at max=2 should fail")
	}
	if c.ActiveCount("alice") != 2 {
		t.Errorf("ActiveCount = %d, want 2", c.ActiveCount("alice"))
	}

	// Other users have their own budget.
	if !c.Acquire("bob") {
		t.Error("other user's acquire should succeed")
	}
	if c.TotalActive() != 3 {
		t.Errorf("TotalActive = %d, want 3", c.TotalActive())
	}

	c.Release("alice")
	if !c.Acquire("alice") {
		t.Error("acquire after release should succeed")
	}
}

func TestConcurrencyLimiterReleaseNeverGoesNegative(t *testing.T) {
	c := NewConcurrencyLimiter(1)
	c.Release("ghost")
	c.Release("ghost")
	if got := c.ActiveCount("ghost"); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0", got)
	}
	// The spurious releases must not have created extra capacity.
	if !c.Acquire("ghost") {
		t.Fatal("first acquire should succeed")
	}
	if c.Acquire("ghost") {
		t.Error("second acquire at max=1 should fail")
	}
}

func TestConcurrencyLimiterRace(t *testing.T) {
	c := NewConcurrencyLimiter(5)
	var wg sync.WaitGroup
	acquired := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- c.Acquire("user")
		}()
	}
	wg.Wait()
	close(acquired)

	got := 0
	for ok := range acquired {
		if ok {
			got++
		}
	}
	if got != 5 {
		t.Errorf("acquired %d slots concurrently, want exactly 5", got)
	}
}
