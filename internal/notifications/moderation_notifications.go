package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gidrec/internal/domain/pushtokens"
	"gidrec/internal/domain/reviews"

	"github.com/9ssi7/exponent"
)

var ErrNoPushTokens = errors.New("no push tokens")

// PushNotifier tells the review author about the outcome on their devices.
type PushNotifier struct {
	push   PushSender
	tokens pushtokens.Store
}

func NewPushNotifier(push PushSender, tokens pushtokens.Store) *PushNotifier {
	return &PushNotifier{push: push, tokens: tokens}
}

func (p *PushNotifier) Notify(ctx context.Context, ev ModerationResult) error {
	title, body, ok := moderationText(ev)
	if !ok {
		return nil
	}

	tokensMap, err := p.tokens.GetTokensByUserIDs(ctx, []int64{ev.AuthorID})
	if err != nil {
		return err
	}
	tokens := dedupe(tokensMap[ev.AuthorID])
	if len(tokens) == 0 {
		return ErrNoPushTokens
	}

	reviewID := strconv.FormatInt(ev.ReviewID, 10)
	msgs := make([]*exponent.Message, 0, len(tokens))
	for _, t := range tokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":      "review_moderation",
				"review_id": reviewID,
				"status":    string(ev.Status),
				"screen":    fmt.Sprintf("places/%d/reviews", ev.PlaceID),
			},
		})
	}
	_, err = p.push.Publish(ctx, msgs)
	return err
}

// moderationText picks the message for the author. A review taken down after
// it was published gets its own wording so the author knows it used to be
// visible. Pending reviews produce no push.
func moderationText(ev ModerationResult) (title, body string, ok bool) {
	switch {
	case ev.Status == reviews.StatusApproved:
		return "Review published", "Thanks! Your review passed moderation and is now visible.", true
	case ev.Status == reviews.StatusFlagged:
		return "Review under moderation", "Your review was sent to a moderator. We will let you know once it is checked.", true
	case ev.Status == reviews.StatusRejected && ev.Rereview:
		return "Review removed", withReason("Your published review was re-checked and removed.", ev.Reason), true
	case ev.Status == reviews.StatusRejected:
		return "Review rejected", withReason("Your review did not pass moderation. You can submit a new one.", ev.Reason), true
	}
	return "", "", false
}

func withReason(body, reason string) string {
	if reason == "" {
		return body
	}
	return body + " Reason: " + reason
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
