package worker

// finalize_cron.go
// Background goroutine that periodically finalizes open lots whose auction's
// final stage has ended. Mirrors what an operator clicking "finalize" would
// do, lot by lot, through the same service path (same locks, same events).

import (
	"context"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/rs/zerolog/log"
)

// FinalizeCronConfig holds the dependencies for the finalization goroutine.
type FinalizeCronConfig struct {
	Lots      service.LotService
	Interval  time.Duration
	BatchSize int
}

// StartFinalizeCron launches a background goroutine that ticks on the
// configured interval and finalizes due lots in batches. It respects the
// context for graceful shutdown.
func StartFinalizeCron(ctx context.Context, cfg FinalizeCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("finalize_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("finalize_cron: shutting down")
				return
			case <-ticker.C:
				n, err := cfg.Lots.FinalizeDue(ctx, cfg.BatchSize)
				if err != nil {
					log.Error().Err(err).Msg("finalize_cron: batch failed")
					continue
				}
				if n > 0 {
					log.Info().Int("count", n).Msg("finalize_cron: lots finalized")
				}
			}
		}
	}()
}
