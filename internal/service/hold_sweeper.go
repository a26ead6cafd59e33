package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/dto"
)

type holdPurger interface {
	PurgeExpiredHolds(ctx context.Context) (*dto.PurgeHoldsResponse, error)
}

// HoldSweeper periodically removes expired holds. Expired holds already stop
// counting against capacity, so sweeping only keeps the table small.
type HoldSweeper struct {
	purger   holdPurger
	interval time.Duration
	logger   *zap.Logger
}

// NewHoldSweeper constructs a sweeper; an interval <= 0 disables it.
func NewHoldSweeper(purger holdPurger, interval time.Duration, logger *zap.Logger) *HoldSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HoldSweeper{purger: purger, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (s *HoldSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("hold sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("hold sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HoldSweeper) sweep(ctx context.Context) {
	resp, err := s.purger.PurgeExpiredHolds(ctx)
	if err != nil {
		s.logger.Warn("hold sweep failed", zap.Error(err))
		return
	}
	if resp.Deleted > 0 {
		s.logger.Info("expired holds purged", zap.Int64("deleted", resp.Deleted))
	}
}
