// Package sweeper expires stale pending questions on a fixed interval.
//
// The sweep is the only producer of the EXPIRED status. It is an optional
// background task; deployments that want purely advisory timeouts leave it
// disabled.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/xiaot623/hitl-relay/store"
)

// Sweeper periodically expires WAITING_USER sessions whose pending question
// outlived its timeout.
type Sweeper struct {
	store      store.Store
	interval   time.Duration
	defaultTTL time.Duration
}

// New creates a sweeper. defaultTTL applies to questions without their own
// timeout_sec; when zero, such questions never expire.
func New(s store.Store, interval, defaultTTL time.Duration) *Sweeper {
	return &Sweeper{store: s, interval: interval, defaultTTL: defaultTTL}
}

// Run sweeps until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.store.ExpireStale(ctx, time.Now(), w.defaultTTL)
			if err != nil {
				log.Printf("ERROR: expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("INFO: expired %d stale sessions", n)
			}
		}
	}
}
