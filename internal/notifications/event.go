package notifications

import (
	"context"
	"errors"

	"gidrec/internal/domain/reviews"

	"github.com/google/uuid"
)

// ModerationResult is emitted after a review's status was decided and the
// decision committed. Delivery is best effort.
type ModerationResult struct {
	EventID        uuid.UUID      `json:"event_id"`
	ReviewID       int64          `json:"review_id"`
	AuthorID       int64          `json:"author_id"`
	PlaceID        int64          `json:"place_id"`
	Status         reviews.Status `json:"status"`
	PreviousStatus reviews.Status `json:"previous_status,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	// Rereview is set when an already published review was taken down.
	Rereview bool `json:"rereview,omitempty"`
}

func NewModerationResult(rv *reviews.Review, previous reviews.Status, reason string) ModerationResult {
	ev := ModerationResult{
		EventID:        uuid.New(),
		ReviewID:       rv.ID,
		AuthorID:       rv.AuthorID,
		PlaceID:        rv.PlaceID,
		Status:         rv.Status,
		PreviousStatus: previous,
		Reason:         reason,
		Rereview:       previous == reviews.StatusApproved && rv.Status == reviews.StatusRejected,
	}
	if rv.Summary != nil {
		ev.Summary = *rv.Summary
	}
	return ev
}

// Notifier delivers one event synchronously.
type Notifier interface {
	Notify(ctx context.Context, ev ModerationResult) error
}

// Publisher hands an event off without waiting for delivery.
type Publisher interface {
	Publish(ev ModerationResult)
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev ModerationResult) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(ModerationResult) {}
