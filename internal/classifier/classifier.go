// Package classifier talks to the external content-safety model that screens
// review text and writes short summaries of it.
package classifier

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable wraps every failure of the external classifier: transport
// errors, timeouts, non-200 answers, an open circuit and replies that cannot
// be read as a verdict.
var ErrUnavailable = errors.New("classifier unavailable")

type Verdict struct {
	Appropriate bool
	// Confidence is informational; it never changes the routing decision.
	Confidence float64
	Reasons    []string
}

// Gateway is the outbound contract the moderation engine depends on.
type Gateway interface {
	Check(ctx context.Context, text string) (Verdict, error)
	Summarize(ctx context.Context, text string, rating int) (string, error)
}

const (
	fallbackSummaryWords = 20
	minSummaryLen        = 10
)

// FallbackSummary is used when the summarizer fails or answers with
// something too short to be useful: the first twenty words of the text.
func FallbackSummary(text string) string {
	words := strings.Fields(text)
	if len(words) > fallbackSummaryWords {
		return strings.Join(words[:fallbackSummaryWords], " ") + "..."
	}
	return strings.Join(words, " ")
}

// UsableSummary reports whether a model summary is worth keeping.
func UsableSummary(s string) bool {
	return len([]rune(strings.TrimSpace(s))) > minSummaryLen
}
