package cleanup

import (
	"context"
	"log"
	"time"
)

type Ledger interface {
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type Blacklist interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Scheduler purges expired ledger rows and blacklist entries on a fixed
// interval. Both stores already treat expired rows as invalid, so this is
// storage hygiene, not a correctness mechanism: a failed run is logged and
// the next tick retries.
type Scheduler struct {
	ledger    Ledger
	blacklist Blacklist
	interval  time.Duration
	retention time.Duration
}

func NewScheduler(ledger Ledger, blacklist Blacklist, interval, retention time.Duration) *Scheduler {
	return &Scheduler{
		ledger:    ledger,
		blacklist: blacklist,
		interval:  interval,
		retention: retention,
	}
}

// Run blocks until ctx is cancelled. One pass runs immediately on start.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("token cleanup: started (interval=%s retention=%s)", s.interval, s.retention)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("token cleanup: stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge pass. Errors never propagate; the stores
// are unchanged by a failed delete and the entries stay harmless.
func (s *Scheduler) RunOnce(ctx context.Context) {
	refreshCount, err := s.ledger.DeleteExpired(ctx, s.retention)
	if err != nil {
		log.Printf("token cleanup: refresh token purge failed: %v", err)
	}

	blacklistCount, err := s.blacklist.DeleteExpired(ctx)
	if err != nil {
		log.Printf("token cleanup: blacklist purge failed: %v", err)
	}

	log.Printf("token cleanup: purged refresh_tokens=%d blacklist_entries=%d", refreshCount, blacklistCount)
}
