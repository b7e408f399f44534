package params

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// URL: /moderation/queue?limit=20&cursor=Xk9aPq2L
// → ParseCursor() → Cursor{Limit:20, After:"Xk9aPq2L"}
// → engine returns the page plus next_cursor, empty on the last page
type Cursor struct {
	Limit int    `json:"limit"`
	After string `json:"cursor,omitempty"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ParseCursor parses ?limit=...&cursor=... Bad or missing limits fall back
// to the default; the cursor itself is validated by whoever decodes it.
func ParseCursor(q url.Values) Cursor {
	return Cursor{
		Limit: ParseLimit(q),
		After: strings.TrimSpace(q.Get("cursor")),
	}
}

func ParseLimit(q url.Values) int {
	limitStr := strings.TrimSpace(q.Get("limit"))
	if limitStr == "" {
		return DefaultLimit
	}
	limit, err := strconv.Atoi(limitStr)
	switch {
	case err != nil, limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ParseBool reads a boolean flag, returning def when the key is absent or
// not a boolean.
func ParseBool(q url.Values, key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return def
	}
	return v
}

var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive numeric path id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
