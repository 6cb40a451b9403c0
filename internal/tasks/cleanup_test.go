package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	mu       sync.Mutex
	sessions int
	ledger   int
	cutoffs  []time.Time
}

func (c *countingSweeper) DeleteExpired(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions++
	return 2, nil
}

func (c *countingSweeper) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger++
	c.cutoffs = append(c.cutoffs, cutoff)
	return 1, nil
}

func (c *countingSweeper) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions, c.ledger
}

func TestCleanupSweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	cs := &countingSweeper{}
	task := &Cleanup{
		Sessions:  cs,
		Ledger:    cs,
		Interval:  time.Hour,
		Retention: 7 * 24 * time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(done)
	}()

	// The first sweep runs before the first tick.
	assert.Eventually(t, func() bool {
		s, l := cs.counts()
		return s >= 1 && l >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup task did not stop on cancel")
	}

	assert.NotEmpty(t, cs.cutoffs)
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), cs.cutoffs[0], time.Minute)
}
