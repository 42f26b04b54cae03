// Package sweeper runs the background job that returns expired
// reservation holds to the shared pool. Availability math already
// treats an expired hold as free, so sweeping is bookkeeping: it
// keeps the reservations table from accumulating stale active rows.
package sweeper

import (
	"context"
	"log"
	"time"
)

// Store is the slice of the reservation repository the sweeper needs.
type Store interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper flips expired active holds to released on a fixed interval.
type Sweeper struct {
	store    Store
	interval time.Duration
}

// New returns a sweeper over the given store. Interval is typically a
// few minutes; the underlying update is idempotent, so overlapping or
// duplicated runs are harmless.
func New(store Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Run blocks, sweeping once per interval until the context is
// cancelled. Errors are logged and the loop keeps going; a transient
// database failure just delays the cleanup one tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.SweepExpired(ctx)
			if err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: released %d expired holds", n)
			}
		}
	}
}
