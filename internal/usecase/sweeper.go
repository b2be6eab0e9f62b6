package usecase

import (
	"context"
	"time"

	"event-ticket/internal/data/repository"
	"event-ticket/internal/live"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepEventTimeout = 10 * time.Second

// Sweeper returns expired holds to available on a fixed interval. Each event
// is handled in its own transaction, so at most one event lock is held.
type Sweeper struct {
	repo     *repository.Repository
	feed     LiveFeed
	cache    cache.SeatMapCache
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(repo *repository.Repository, deps Deps, interval time.Duration, log *zap.Logger) *Sweeper {
	deps = deps.withDefaults()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{
		repo:     repo,
		feed:     deps.Feed,
		cache:    deps.Cache,
		clock:    deps.Clock,
		interval: interval,
		log:      log.With(zap.String("service", "sweeper")),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of seats released.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.repo.Event.ListIDsWithActiveHolds(ctx)
	if err != nil {
		s.log.Error("Failed to list events with active holds", zap.Error(err))
		return 0
	}

	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		released, err := s.sweepEvent(ctx, id)
		if err != nil {
			s.log.Error("Failed to sweep event", zap.Error(err), zap.String("event_id", id.String()))
			continue
		}
		total += len(released)
	}

	if total > 0 {
		s.log.Info("Expired holds released", zap.Int("seats", total), zap.Int("events", len(ids)))
	}
	return total
}

func (s *Sweeper) sweepEvent(ctx context.Context, id uuid.UUID) ([]string, error) {
	// an event already started is finished even if shutdown begins
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepEventTimeout)
	defer cancel()

	var released []string
	err := s.repo.Tx.WithTx(txCtx, func(txCtx context.Context) error {
		ev, err := s.repo.Event.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		released = ev.ReleaseExpired(now)
		if len(released) == 0 {
			return nil
		}

		ev.UpdatedAt = now
		return s.repo.Event.SaveSeatMap(txCtx, ev)
	})
	if err != nil {
		return nil, err
	}
	if len(released) == 0 {
		return nil, nil
	}

	key := id.String()
	if err := s.cache.Invalidate(txCtx, key); err != nil {
		s.log.Warn("Failed to invalidate seat map cache", zap.Error(err), zap.String("event_id", key))
	}
	s.feed.Publish(key, live.Message{Type: live.TypeReleased, Seats: released})
	return released, nil
}
