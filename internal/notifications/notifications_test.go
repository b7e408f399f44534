package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gidrec/internal/domain/reviews"

	"github.com/9ssi7/exponent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSender struct {
	msgs []*exponent.Message
	err  error
}

func (c *captureSender) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	c.msgs = append(c.msgs, msgs...)
	return nil, c.err
}

type staticTokens map[int64][]string

func (s staticTokens) GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range userIDs {
		out[id] = s[id]
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []ModerationResult
	err    error
}

func (r *recorder) Notify(ctx context.Context, ev ModerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, ev := range r.events {
		ids = append(ids, ev.ReviewID)
	}
	return ids
}

func TestNewModerationResultMarksRereview(t *testing.T) {
	summary := "Nice terrace, slow service."
	rv := &reviews.Review{ID: 3, AuthorID: 7, PlaceID: 9, Status: reviews.StatusRejected, Summary: &summary}

	ev := NewModerationResult(rv, reviews.StatusApproved, "spam")
	assert.True(t, ev.Rereview)
	assert.Equal(t, summary, ev.Summary)
	assert.NotEqual(t, ev.EventID.String(), NewModerationResult(rv, reviews.StatusApproved, "").EventID.String())

	ev = NewModerationResult(rv, reviews.StatusFlagged, "spam")
	assert.False(t, ev.Rereview)
}

func TestPushNotifierMessages(t *testing.T) {
	tests := []struct {
		name      string
		ev        ModerationResult
		wantTitle string
		wantPush  bool
	}{
		{"approved", ModerationResult{Status: reviews.StatusApproved}, "Review published", true},
		{"flagged", ModerationResult{Status: reviews.StatusFlagged}, "Review under moderation", true},
		{"rejected", ModerationResult{Status: reviews.StatusRejected, Reason: "insults"}, "Review rejected", true},
		{"taken down", ModerationResult{Status: reviews.StatusRejected, Rereview: true}, "Review removed", true},
		{"pending", ModerationResult{Status: reviews.StatusPending}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &captureSender{}
			tt.ev.ReviewID, tt.ev.AuthorID, tt.ev.PlaceID = 1, 7, 9
			n := NewPushNotifier(sender, staticTokens{7: {"ExponentPushToken[a]", "ExponentPushToken[a]", "ExponentPushToken[b]"}})

			require.NoError(t, n.Notify(context.Background(), tt.ev))
			if !tt.wantPush {
				assert.Empty(t, sender.msgs)
				return
			}
			require.Len(t, sender.msgs, 2)
			assert.Equal(t, tt.wantTitle, sender.msgs[0].Title)
			assert.Equal(t, "1", sender.msgs[0].Data["review_id"])
			if tt.ev.Reason != "" {
				assert.Contains(t, sender.msgs[0].Body, tt.ev.Reason)
			}
		})
	}
}

func TestPushNotifierWithoutTokens(t *testing.T) {
	n := NewPushNotifier(&captureSender{}, staticTokens{})
	err := n.Notify(context.Background(), ModerationResult{AuthorID: 7, Status: reviews.StatusApproved})
	assert.ErrorIs(t, err, ErrNoPushTokens)
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok, failing := &recorder{}, &recorder{err: boom}

	err := Multi{failing, ok}.Notify(context.Background(), ModerationResult{ReviewID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int64{1}, ok.ids())
	assert.Equal(t, []int64{1}, failing.ids())
}

type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
	rec     recorder
}

func (b *blockingNotifier) Notify(ctx context.Context, ev ModerationResult) error {
	if ev.ReviewID == 1 {
		close(b.started)
		<-b.release
	}
	return b.rec.Notify(ctx, ev)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	n := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(n, zap.NewNop().Sugar(), DispatcherConfig{Workers: 1, Buffer: 1})

	d.Publish(ModerationResult{ReviewID: 1})
	<-n.started
	d.Publish(ModerationResult{ReviewID: 2})
	d.Publish(ModerationResult{ReviewID: 3})
	close(n.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, []int64{1, 2}, n.rec.ids())

	d.Publish(ModerationResult{ReviewID: 4})
	assert.Equal(t, []int64{1, 2}, n.rec.ids())
}

func TestDispatcherSurvivesNotifierErrors(t *testing.T) {
	rec := &recorder{err: errors.New("expo down")}
	d := NewDispatcher(rec, zap.NewNop().Sugar(), DispatcherConfig{Workers: 2})

	for i := int64(1); i <= 5; i++ {
		d.Publish(ModerationResult{ReviewID: i})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, rec.ids())
}
