package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL string
	Model   string
	APIKey  string

	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPTimeout bounds a single attempt chain. Callers should still pass a
	// context with their own deadline.
	HTTPTimeout time.Duration
}

// OllamaClient screens and summarizes reviews through an Ollama-compatible
// /api/chat endpoint. Calls go through a circuit breaker so a dead upstream
// fails fast instead of stalling every submission until its timeout.
type OllamaClient struct {
	baseURL string
	model   string
	apiKey  string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewOllamaClient(cfg Config, logger *zap.SugaredLogger) *OllamaClient {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = 200 * time.Millisecond
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = 2 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		http: newHTTPClient(logger, httpOptions{
			maxRetries:   cfg.MaxRetries,
			retryWaitMin: cfg.RetryWaitMin,
			retryWaitMax: cfg.RetryWaitMax,
			timeout:      cfg.HTTPTimeout,
		}),
		breaker: breaker,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

const checkPrompt = `You are a strict moderator of user reviews about places.
Decide whether the review violates any of these rules:
1. Profanity in any form
2. Insults, direct or indirect, aimed at people
3. Threats of harm
4. Spam or advertising, including links
5. Flooding: meaningless or repeated content
6. Discrimination by race, gender or any other trait

Review: %q

Answer with JSON only, no other words or formatting:
{"is_appropriate": true|false, "reason": "short reason", "confidence": 0.0-1.0, "found_issues": ["..."], "suggested_action": "approve"|"reject"}`

const summaryPrompt = `Write an objective one or two sentence summary of this review of a place.
Keep the key point, state the overall tone and name concrete pros and cons if any.
Do not copy the text.

Rating: %d/5
Review: %q

Summary (text only):`

func (c *OllamaClient) Check(ctx context.Context, text string) (Verdict, error) {
	reply, err := c.chat(ctx, "check", fmt.Sprintf(checkPrompt, text), 0.1, 300)
	if err != nil {
		return Verdict{}, err
	}
	v, err := parseVerdict(reply)
	if err != nil {
		apiCount.WithLabelValues("check", "unparseable").Inc()
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

func (c *OllamaClient) Summarize(ctx context.Context, text string, rating int) (string, error) {
	reply, err := c.chat(ctx, "summarize", fmt.Sprintf(summaryPrompt, rating, text), 0.2, 150)
	if err != nil {
		return "", err
	}
	return cleanSummary(reply), nil
}

func (c *OllamaClient) chat(ctx context.Context, op, prompt string, temperature float64, maxTokens int) (string, error) {
	start := time.Now()
	defer func() {
		apiDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, prompt, temperature, maxTokens)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "circuit_open"
		}
		apiCount.WithLabelValues(op, result).Inc()
		c.logger.Warnw("classifier call failed", "op", op, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	apiCount.WithLabelValues(op, "ok").Inc()
	return out.(string), nil
}

func (c *OllamaClient) post(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  chatOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("classifier API status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding classifier response: %w", err)
	}
	return strings.TrimSpace(parsed.Message.Content), nil
}

// verdictJSON is the shape the model is asked to produce. IsAppropriate is a
// pointer so a reply that omits it is rejected rather than read as false.
type verdictJSON struct {
	IsAppropriate *bool    `json:"is_appropriate"`
	Reason        string   `json:"reason"`
	Confidence    *float64 `json:"confidence"`
	FoundIssues   []string `json:"found_issues"`
}

// parseVerdict decodes the first JSON object in a model reply that carries a
// verdict. Prose around it, braces included, is ignored.
func parseVerdict(reply string) (Verdict, error) {
	err := errors.New("no JSON object in classifier reply")
	for i := strings.IndexByte(reply, '{'); i >= 0; i = nextBrace(reply, i) {
		var vj verdictJSON
		if derr := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&vj); derr != nil {
			err = fmt.Errorf("invalid classifier JSON: %w", derr)
			continue
		}
		if vj.IsAppropriate == nil {
			err = errors.New("classifier reply has no is_appropriate field")
			continue
		}
		return toVerdict(vj), nil
	}
	return Verdict{}, err
}

func nextBrace(s string, from int) int {
	j := strings.IndexByte(s[from+1:], '{')
	if j < 0 {
		return -1
	}
	return from + 1 + j
}

func toVerdict(vj verdictJSON) Verdict {
	v := Verdict{Appropriate: *vj.IsAppropriate}
	if vj.Confidence != nil {
		v.Confidence = clamp01(*vj.Confidence)
	}

	seen := make(map[string]struct{})
	for _, r := range append([]string{vj.Reason}, vj.FoundIssues...) {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		v.Reasons = append(v.Reasons, r)
	}
	return v
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `"`, "")
	return strings.Trim(s, "'")
}
