package scheduler

import (
	"context"
	"time"

	"hotornot/config"
	"hotornot/service"

	log "github.com/sirupsen/logrus"
)

// ResolveWorker periodically polls post-owner nodes for the outcomes of
// outbound bets still awaiting a result. It is the safety net behind the
// fire-and-forget earnings notifications: a lost notification only delays a
// payout until the next sweep.
type ResolveWorker struct {
	betting service.BettingService
	cfg     *config.Config
}

// NewResolveWorker creates a new resolve worker
func NewResolveWorker(betting service.BettingService, cfg *config.Config) *ResolveWorker {
	return &ResolveWorker{
		betting: betting,
		cfg:     cfg,
	}
}

// Start begins the resolve worker. Returns a cleanup function.
func (w *ResolveWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.Info("Pending bet resolve worker started")
		ticker := time.NewTicker(w.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Resolve worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Resolve worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				resolved, err := w.betting.ResolvePendingBets(ctx)
				if err != nil {
					log.WithError(err).Error("Pending bet resolution sweep failed")
					continue
				}
				if resolved > 0 {
					log.WithFields(log.Fields{
						"resolved": resolved,
					}).Info("Resolved pending bets")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}
