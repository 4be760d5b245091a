package workers

import (
	"context"
	"time"

	"vitrine/metrics"
	"vitrine/store"

	"github.com/rs/zerolog/log"
)

// StartGrantStatsCollector refreshes the active-grants gauge every interval until ctx is done.
// interval <= 0 disables the worker.
func StartGrantStatsCollector(ctx context.Context, grants store.GrantStore, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("grant stats worker disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		collectGrantStats(ctx, grants)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collectGrantStats(ctx, grants)
			}
		}
	}()
}

func collectGrantStats(ctx context.Context, grants store.GrantStore) {
	counts, err := grants.CountActiveByPlan(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("grant stats worker: count failed")
		return
	}

	// planos que zeraram somem do gauge
	metrics.ActiveGrants.Reset()
	for plan, n := range counts {
		metrics.ActiveGrants.WithLabelValues(plan).Set(float64(n))
	}
	log.Debug().Int("plans", len(counts)).Msg("grant stats refreshed")
}
