package reviews

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("review not found")
	// ErrActiveReviewExists is returned by Create when the author already holds
	// a non-rejected review on the place.
	ErrActiveReviewExists = errors.New("active review already exists for author and place")
	QueryTimeoutDuration  = time.Second * 5
)

// ActiveReviewConstraint is the partial unique index that enforces one
// non-rejected review per (author, place).
const ActiveReviewConstraint = "uniq_active_review_per_author_place"

type Status string

const (
	StatusPending  Status = "pending"
	StatusFlagged  Status = "flagged"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFlagged, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Active reports whether a review in this status blocks a new submission by
// the same author on the same place.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusFlagged || s == StatusApproved
}

// AwaitingModeration reports whether the review belongs in the moderation queue.
func (s Status) AwaitingModeration() bool {
	return s == StatusPending || s == StatusFlagged
}

// Verdict is the last content-safety result recorded for a review.
type Verdict struct {
	Appropriate bool     `json:"appropriate"`
	Confidence  float64  `json:"confidence"`
	Reasons     []string `json:"reasons"`
}

type Review struct {
	ID              int64      `json:"id"`
	AuthorID        int64      `json:"author_id"`
	PlaceID         int64      `json:"place_id"`
	Rating          int        `json:"rating"` // 1-5
	Text            string     `json:"text"`
	Verdict         *Verdict   `json:"classifier_verdict,omitempty"`
	Summary         *string    `json:"summary,omitempty"`
	Status          Status     `json:"moderation_status"`
	ModeratedBy     *int64     `json:"moderated_by,omitempty"`
	ModerationNotes *string    `json:"moderation_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ModeratedAt     *time.Time `json:"moderated_at,omitempty"`
}

// ApprovedStats is the raw input of a place rating: how many approved reviews
// exist and the sum of their ratings.
type ApprovedStats struct {
	Count int
	Sum   int64
}

// QueueCursor marks the last review of a queue page. Pages continue strictly
// after (CreatedAt, ID).
type QueueCursor struct {
	CreatedAt time.Time
	ID        int64
}

type QueueFilter struct {
	Limit int
	After *QueueCursor
}
