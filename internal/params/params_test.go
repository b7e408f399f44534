package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCursor(t *testing.T) {
	tests := []struct {
		query string
		want  Cursor
	}{
		{"", Cursor{Limit: DefaultLimit}},
		{"limit=5&cursor=abc", Cursor{Limit: 5, After: "abc"}},
		{"limit=0", Cursor{Limit: DefaultLimit}},
		{"limit=-1", Cursor{Limit: DefaultLimit}},
		{"limit=many", Cursor{Limit: DefaultLimit}},
		{"limit=5000", Cursor{Limit: MaxLimit}},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, ParseCursor(q), tt.query)
	}
}

func TestParseBoolAndID(t *testing.T) {
	q := url.Values{"only_approved": {"false"}, "x": {"maybe"}}
	assert.False(t, ParseBool(q, "only_approved", true))
	assert.True(t, ParseBool(q, "x", true))
	assert.True(t, ParseBool(q, "missing", true))

	id, err := ParseID("42")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID(raw)
		assert.ErrorIs(t, err, ErrInvalidID, raw)
	}
}
