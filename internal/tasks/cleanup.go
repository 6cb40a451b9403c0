package tasks

import (
	"context"
	"log"
	"time"
)

// SessionSweeper removes rows that no longer influence any decision.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// LedgerSweeper trims revocation entries older than the refresh window.
// Anything past the window cannot belong to a live token, so keeping it
// only grows the table.
type LedgerSweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleanup periodically purges expired sessions and stale revocation entries.
type Cleanup struct {
	Sessions  SessionSweeper
	Ledger    LedgerSweeper
	Interval  time.Duration
	Retention time.Duration
}

// Run blocks until ctx is cancelled. One sweep fires immediately so a
// restart does not delay overdue housekeeping by a full interval.
func (t *Cleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Cleanup) sweep(ctx context.Context) {
	if n, err := t.Sessions.DeleteExpired(ctx); err != nil {
		log.Printf("cleanup: expired sessions: %v", err)
	} else if n > 0 {
		log.Printf("cleanup: removed %d expired sessions", n)
	}

	cutoff := time.Now().Add(-t.Retention)
	if n, err := t.Ledger.DeleteOlderThan(ctx, cutoff); err != nil {
		log.Printf("cleanup: revoked tokens: %v", err)
	} else if n > 0 {
		log.Printf("cleanup: removed %d stale revocation entries", n)
	}
}
