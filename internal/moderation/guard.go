package moderation

import (
	"context"
	"errors"
	"fmt"

	"gidrec/internal/domain/reviews"
)

// checkNoActiveReview is the cheap early check done before the classifier is
// called. It is advisory only: the partial unique index on reviews is what
// actually keeps two concurrent submissions from both succeeding.
func checkNoActiveReview(ctx context.Context, store reviews.Store, authorID, placeID int64) error {
	existing, err := store.FindActive(ctx, authorID, placeID)
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking active review: %w", err)
	}
	return &DuplicateActiveReviewError{ReviewID: existing.ID, Status: existing.Status}
}

// duplicateFromConflict builds the error for an insert that lost the race to
// a concurrent submission. The winner may already be rejected again by the
// time we look, in which case only the sentinel is returned.
func duplicateFromConflict(ctx context.Context, store reviews.Store, authorID, placeID int64) error {
	err := checkNoActiveReview(ctx, store, authorID, placeID)
	if err == nil {
		return fmt.Errorf("%w: concurrent submission for place %d", ErrDuplicateActiveReview, placeID)
	}
	return err
}
