package moderation

import (
	"context"
	"fmt"
	"time"

	"gidrec/internal/domain/reviews"
)

const (
	DefaultQueueLimit = 20
	MaxQueueLimit     = 100
)

type QueuePage struct {
	Items []reviews.Review `json:"items"`
	// NextCursor is empty on the last page.
	NextCursor string `json:"next_cursor,omitempty"`
}

// ListPending returns reviews awaiting a moderator, oldest first. Cursors are
// keyset positions, so reviews settled between two page fetches never shift
// the remaining items.
func (e *Engine) ListPending(ctx context.Context, limit int, cursor string) (*QueuePage, error) {
	limit = clampLimit(limit)

	filter := reviews.QueueFilter{Limit: limit + 1}
	if cursor != "" {
		after, err := e.decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		filter.After = after
	}

	items, err := e.reviews.ListQueue(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &QueuePage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor, err = e.cursors.Encode(last.CreatedAt.UnixMicro(), last.ID)
		if err != nil {
			return nil, fmt.Errorf("encoding queue cursor: %w", err)
		}
	}
	if page.Items == nil {
		page.Items = []reviews.Review{}
	}
	return page, nil
}

func (e *Engine) decodeCursor(cursor string) (*reviews.QueueCursor, error) {
	values, err := e.cursors.Decode(cursor, 2)
	if err != nil {
		return nil, &ValidationError{Field: "cursor", Message: "invalid cursor"}
	}
	return &reviews.QueueCursor{
		CreatedAt: time.UnixMicro(values[0]).UTC(),
		ID:        values[1],
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueueLimit
	case limit > MaxQueueLimit:
		return MaxQueueLimit
	}
	return limit
}
