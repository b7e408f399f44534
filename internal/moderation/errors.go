package moderation

import (
	"errors"
	"fmt"

	"gidrec/internal/domain/reviews"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("resource not found")
	ErrForbidden  = errors.New("insufficient privileges")
	// ErrAlreadyInState matches every *AlreadyInStateError.
	ErrAlreadyInState = errors.New("review already in requested state")
	// ErrAggregationFailed means the place rating could not be persisted; the
	// transition that triggered it was rolled back.
	ErrAggregationFailed = errors.New("rating aggregation failed")
	// ErrClassifierUnavailable never reaches callers of Submit: screening is
	// deferred to a moderator instead.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrDuplicateActiveReview matches every *DuplicateActiveReviewError.
	ErrDuplicateActiveReview = errors.New("duplicate active review")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateActiveReviewError carries the review that blocks a new submission
// so the caller can tell "still pending" from "already published".
type DuplicateActiveReviewError struct {
	ReviewID int64
	Status   reviews.Status
}

func (e *DuplicateActiveReviewError) Error() string {
	return fmt.Sprintf("author already has an active review %d (%s) for this place", e.ReviewID, e.Status)
}

func (e *DuplicateActiveReviewError) Is(target error) bool {
	return target == ErrDuplicateActiveReview
}

type AlreadyInStateError struct {
	ReviewID int64
	Status   reviews.Status
}

func (e *AlreadyInStateError) Error() string {
	return fmt.Sprintf("review %d is already %s", e.ReviewID, e.Status)
}

func (e *AlreadyInStateError) Is(target error) bool {
	return target == ErrAlreadyInState
}
