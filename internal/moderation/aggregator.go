package moderation

import (
	"context"
	"errors"
	"fmt"

	"gidrec/internal/domain/places"
	"gidrec/internal/domain/storage"
)

// RoundRating returns sum/count rounded half-up to one decimal, or 0 when
// there is nothing to average. It works in integer tenths so ties such as
// 4.45 (89/20) always round up to 4.5 instead of depending on binary
// floating point.
func RoundRating(sum int64, count int) float64 {
	if count <= 0 {
		return 0
	}
	n := int64(count)
	tenths := (20*sum + n) / (2 * n)
	return float64(tenths) / 10
}

// Recompute is the only writer of a place's rating and rating_count. It must
// run inside the transaction that changed the approved set: the place row is
// locked first so concurrent recomputations of the same place serialize, and
// the approved set is read after the lock so the last committer always sees
// every earlier decision.
func Recompute(ctx context.Context, tx *storage.ReviewTx, placeID int64) (places.Rating, error) {
	if err := tx.Places.LockForUpdate(ctx, placeID); err != nil {
		if errors.Is(err, places.ErrNotFound) {
			return places.Rating{}, fmt.Errorf("%w: place %d", ErrNotFound, placeID)
		}
		return places.Rating{}, aggregationFailed(placeID, err)
	}

	stats, err := tx.Reviews.ApprovedStats(ctx, placeID)
	if err != nil {
		return places.Rating{}, aggregationFailed(placeID, err)
	}

	rating := places.Rating{
		PlaceID:     placeID,
		Rating:      RoundRating(stats.Sum, stats.Count),
		RatingCount: stats.Count,
	}
	if err := tx.Places.SetRating(ctx, rating); err != nil {
		return places.Rating{}, aggregationFailed(placeID, err)
	}

	recomputations.WithLabelValues("ok").Inc()
	return rating, nil
}

func aggregationFailed(placeID int64, err error) error {
	recomputations.WithLabelValues("failed").Inc()
	return fmt.Errorf("%w: place %d: %v", ErrAggregationFailed, placeID, err)
}
