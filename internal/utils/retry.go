package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// Backoff controls WaitUntilReady.
type Backoff struct {
	Initial       time.Duration // first wait between attempts, doubled each time
	Max           time.Duration // cap on a single wait
	Total         time.Duration // overall budget
	PerAttempt    time.Duration // timeout handed to each probe
	WarnThreshold int           // attempts logged at warn before escalating to error
}

func (b Backoff) validate() error {
	switch {
	case b.Total <= 0:
		return fmt.Errorf("Total must be > 0, got %v", b.Total)
	case b.Initial <= 0:
		return fmt.Errorf("Initial must be > 0, got %v", b.Initial)
	case b.Max <= 0:
		return fmt.Errorf("Max must be > 0, got %v", b.Max)
	case b.PerAttempt <= 0:
		return fmt.Errorf("PerAttempt must be > 0, got %v", b.PerAttempt)
	case b.WarnThreshold < 0:
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", b.WarnThreshold)
	}
	return nil
}

// WaitUntilReady calls probe until it succeeds, the budget runs out or ctx is cancelled.
// It returns the number of attempts made.
func WaitUntilReady(ctx context.Context, name string, b Backoff, log logger.Logger, probe func(context.Context) error) (int, error) {
	if err := b.validate(); err != nil {
		return 0, fmt.Errorf("invalid %s backoff: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.Total)
	defer cancel()

	start := time.Now()
	log.Info("waiting for "+name, logger.Duration("timeout", b.Total))

	wait := b.Initial
	for attempt := 1; ; attempt++ {
		probeCtx, probeCancel := context.WithTimeout(ctx, b.PerAttempt)
		err := probe(probeCtx)
		probeCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn(name+" ready after retry",
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(start)))
			} else {
				log.Info("✅ " + name + " ready")
			}
			return attempt, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error(name+" unavailable",
				logger.Int("attempts", attempt),
				logger.Duration("timeout", b.Total),
				logger.Error(err))
			return attempt, fmt.Errorf("%s unavailable after %d attempts (timeout: %v): %w", name, attempt, b.Total, err)
		case <-timer.C:
		}

		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if attempt <= b.WarnThreshold {
			log.Warn(name+" not ready, retrying", fields...)
		} else {
			log.Error(name+" still unavailable, retrying", fields...)
		}

		wait *= 2
		if wait > b.Max {
			wait = b.Max
		}
	}
}
