package moderation

import (
	"context"
	"testing"

	"gidrec/internal/domain/reviews"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPendingPagesOldestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var want []int64
	for i := int64(1); i <= 5; i++ {
		verdict := toxic
		if i%2 == 0 {
			verdict = nil
		}
		want = append(want, h.submit(t, i, 3, verdict).ID)
	}
	h.submit(t, 6, 5, clean)

	var got []int64
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := h.engine.ListPending(ctx, 2, cursor)
		require.NoError(t, err)
		for _, rv := range page.Items {
			assert.True(t, rv.Status.AwaitingModeration())
			got = append(got, rv.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, want, got)
}

func TestListPendingSkipsSettledReviews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	a := h.submit(t, 1, 3, toxic)
	b := h.submit(t, 2, 3, toxic)
	c := h.submit(t, 3, 3, toxic)

	page, err := h.engine.ListPending(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)

	_, err = h.engine.Moderate(ctx, ModerateInput{ReviewID: b.ID, ModeratorID: moderatorID, Decision: DecisionApprove})
	require.NoError(t, err)

	page, err = h.engine.ListPending(ctx, 1, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.ID, page.Items[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestListPendingEmptyAndInvalidCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	page, err := h.engine.ListPending(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, []reviews.Review{}, page.Items)
	assert.Empty(t, page.NextCursor)

	_, err = h.engine.ListPending(ctx, 10, "not-a-cursor")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cursor", verr.Field)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultQueueLimit, clampLimit(0))
	assert.Equal(t, DefaultQueueLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxQueueLimit, clampLimit(1000))
}

func TestListPendingWithDefaultCodec(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.submit(t, 1, 3, toxic)
	second := h.submit(t, 2, 3, toxic)

	engine := NewEngine(Deps{
		UoW:        h.mem,
		Reviews:    h.mem.Reviews,
		Places:     h.mem.Places,
		Roles:      h.roles,
		Classifier: h.cls,
	}, Config{})

	page, err := engine.ListPending(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = engine.ListPending(ctx, 1, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Empty(t, page.NextCursor)
}
