package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

const (
	DefaultWarmInterval = 5 * time.Minute
	DefaultWarmTopN     = 50
)

// TopSource ranks qrIds by successful redirects.
type TopSource interface {
	Top(ctx context.Context, n int) ([]domain.QrCount, error)
}

// Warmer refreshes the cached resolution of one qrId.
type Warmer interface {
	Warm(ctx context.Context, qrID string) error
}

// CacheWarmer keeps the resolution cache hot for the most redirected ids.
type CacheWarmer struct {
	top           TopSource
	warmer        Warmer
	logger        logger.Logger
	interval      time.Duration
	topN          int
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewCacheWarmer creates a cache warmer. manualTrigger may be nil.
func NewCacheWarmer(
	top TopSource,
	warmer Warmer,
	log logger.Logger,
	interval time.Duration,
	topN int,
	manualTrigger chan struct{},
) *CacheWarmer {
	if interval <= 0 {
		interval = DefaultWarmInterval
	}
	if topN <= 0 {
		topN = DefaultWarmTopN
	}

	return &CacheWarmer{
		top:           top,
		warmer:        warmer,
		logger:        log,
		interval:      interval,
		topN:          topN,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start warms once, then on every tick or manual trigger.
func (cw *CacheWarmer) Start(ctx context.Context) error {
	if _, err := cw.Warm(ctx); err != nil {
		cw.logger.Warn("initial cache warm failed", logger.Error(err))
	}

	ticker := time.NewTicker(cw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cw.run(ctx)
			case <-cw.manualTrigger:
				cw.logger.Info("manual cache warm triggered")
				cw.run(ctx)
			case <-cw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the warmer
func (cw *CacheWarmer) Stop() {
	close(cw.stopCh)
}

func (cw *CacheWarmer) run(ctx context.Context) {
	if _, err := cw.Warm(ctx); err != nil {
		cw.logger.Error("cache warm failed", logger.Error(err))
	}
}

// Warm re-resolves the top ids and returns how many were refreshed.
// A failure on one id is logged and does not stop the pass.
func (cw *CacheWarmer) Warm(ctx context.Context) (int, error) {
	top, err := cw.top.Top(ctx, cw.topN)
	if err != nil {
		return 0, err
	}

	warmed := 0
	for _, qc := range top {
		if ctx.Err() != nil {
			return warmed, ctx.Err()
		}
		if err := cw.warmer.Warm(ctx, qc.QrID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				cw.logger.Warn("failed to warm qr id",
					logger.String("qr_id", qc.QrID),
					logger.Error(err))
			}
			continue
		}
		warmed++
	}

	if warmed > 0 {
		cw.logger.Debug("cache warmed",
			logger.Int("warmed", warmed),
			logger.Int("candidates", len(top)))
	}
	return warmed, nil
}
