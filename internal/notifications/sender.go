package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender abstracts the Expo push API so tests can capture messages.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
}
