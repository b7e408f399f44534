package main

import (
	"context"
	"time"
)

// reconcileRatingsEvery rebuilds every place rating on a ticker. Ratings are
// kept exact by every moderation transaction; this only repairs drift from
// writes made outside the service, such as manual SQL or restored backups.
func (app *application) reconcileRatingsEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				done, err := app.engine.RecomputeAll(ctx)
				if err != nil {
					app.logger.Errorw("rating reconciliation finished with errors", "places", done, "error", err)
					continue
				}
				app.logger.Infow("rating reconciliation finished", "places", done, "took", time.Since(start).String())
			}
		}
	}()
}
