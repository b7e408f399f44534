package moderation

import (
	"fmt"

	"gidrec/internal/domain/reviews"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Outcome is the result of applying an event to a review status. Recompute is
// set exactly when the review enters or leaves the approved set.
type Outcome struct {
	From      reviews.Status
	To        reviews.Status
	Recompute bool
}

func outcome(from, to reviews.Status) Outcome {
	return Outcome{
		From:      from,
		To:        to,
		Recompute: (from == reviews.StatusApproved) != (to == reviews.StatusApproved),
	}
}

// Screen decides the initial status of a new review. A nil verdict means the
// classifier could not be reached; such reviews wait for a human and are
// never published automatically.
func Screen(v *reviews.Verdict) Outcome {
	switch {
	case v == nil:
		return outcome("", reviews.StatusPending)
	case v.Appropriate:
		return outcome("", reviews.StatusApproved)
	default:
		return outcome("", reviews.StatusFlagged)
	}
}

// Decide applies a moderator decision to a review currently in status from.
//
// Only queue states (pending, flagged) accept decisions. The one exception is
// a deliberate re-review that rejects an approved review. Everything else is
// a no-op reported as *AlreadyInStateError, which is also what the losing side
// of two concurrent decisions on the same review receives.
func Decide(reviewID int64, from reviews.Status, d Decision, rereview bool) (Outcome, error) {
	if !d.Valid() {
		return Outcome{}, &ValidationError{Field: "decision", Message: fmt.Sprintf("unknown decision %q", d)}
	}

	switch from {
	case reviews.StatusPending, reviews.StatusFlagged:
		if d == DecisionApprove {
			return outcome(from, reviews.StatusApproved), nil
		}
		return outcome(from, reviews.StatusRejected), nil
	case reviews.StatusApproved:
		if d == DecisionReject && rereview {
			return outcome(from, reviews.StatusRejected), nil
		}
	case reviews.StatusRejected:
	default:
		return Outcome{}, fmt.Errorf("review %d has unknown status %q", reviewID, from)
	}
	return Outcome{}, &AlreadyInStateError{ReviewID: reviewID, Status: from}
}
