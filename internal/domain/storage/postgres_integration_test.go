//go:build integration

package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gidrec/internal/classifier"
	"gidrec/internal/domain/reviews"
	"gidrec/internal/domain/storage"
	"gidrec/internal/idcodec"
	"gidrec/internal/moderation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/domain/storage/
const (
	itPlace     int64 = 1
	itModerator int64 = 100
)

// newTestDB migrates a throwaway schema and returns a pool bound to it.
func newTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	addr := os.Getenv("TEST_DATABASE_URL")
	if addr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgxpool.New(ctx, addr)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(addr)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 8
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	up, err := os.ReadFile("../../../migrations/000001_reviews.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(up))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO places (id, name) VALUES ($1, 'Test cafe')`, itPlace)
	require.NoError(t, err)
	for id := int64(1); id <= 20; id++ {
		_, err = pool.Exec(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)`, id, fmt.Sprintf("user%d", id))
		require.NoError(t, err)
	}
	_, err = pool.Exec(ctx, `INSERT INTO users (id, username) VALUES ($1, 'mod')`, itModerator)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
        INSERT INTO user_roles (user_id, role_id)
        SELECT $1, id FROM roles WHERE name = 'moderator'
    `, itModerator)
	require.NoError(t, err)
	return pool
}

func newReview(author int64, status reviews.Status) *reviews.Review {
	return &reviews.Review{
		AuthorID: author,
		PlaceID:  itPlace,
		Rating:   int(author%5) + 1,
		Text:     "Lovely place, would return.",
		Verdict:  &reviews.Verdict{Appropriate: true, Confidence: 0.7, Reasons: []string{"ok"}},
		Status:   status,
	}
}

func TestPostgresActiveReviewIndex(t *testing.T) {
	ctx := context.Background()
	c := storage.NewContainer(newTestDB(t))

	first := newReview(1, reviews.StatusApproved)
	require.NoError(t, c.Reviews.Create(ctx, first))
	assert.ErrorIs(t, c.Reviews.Create(ctx, newReview(1, reviews.StatusPending)), reviews.ErrActiveReviewExists)

	found, err := c.Reviews.FindActive(ctx, 1, itPlace)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	require.NotNil(t, found.Verdict)
	assert.Equal(t, []string{"ok"}, found.Verdict.Reasons)

	first.Status = reviews.StatusRejected
	require.NoError(t, c.Reviews.UpdateModeration(ctx, first))
	require.NoError(t, c.Reviews.Create(ctx, newReview(1, reviews.StatusFlagged)))

	_, err = c.Reviews.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, reviews.ErrNotFound)
}

func TestPostgresQueueKeyset(t *testing.T) {
	ctx := context.Background()
	c := storage.NewContainer(newTestDB(t))

	statuses := []reviews.Status{
		reviews.StatusPending,
		reviews.StatusApproved,
		reviews.StatusFlagged,
		reviews.StatusPending,
		reviews.StatusRejected,
	}
	var ids []int64
	for i, st := range statuses {
		rv := newReview(int64(i+1), st)
		require.NoError(t, c.Reviews.Create(ctx, rv))
		ids = append(ids, rv.ID)
	}

	page, err := c.Reviews.ListQueue(ctx, reviews.QueueFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	page, err = c.Reviews.ListQueue(ctx, reviews.QueueFilter{
		Limit: 2,
		After: &reviews.QueueCursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[3], page[0].ID)
}

func TestPostgresCreatedAtFollowsInsertOrder(t *testing.T) {
	ctx := context.Background()
	c := storage.NewContainer(newTestDB(t))

	var a, b *reviews.Review
	err := c.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		a = newReview(1, reviews.StatusPending)
		if err := tx.Reviews.Create(ctx, a); err != nil {
			return err
		}
		b = newReview(2, reviews.StatusPending)
		return tx.Reviews.Create(ctx, b)
	})
	require.NoError(t, err)
	assert.True(t, b.CreatedAt.After(a.CreatedAt), "%v !> %v", b.CreatedAt, a.CreatedAt)
}

func TestPostgresTxRollback(t *testing.T) {
	ctx := context.Background()
	c := storage.NewContainer(newTestDB(t))

	boom := errors.New("boom")
	err := c.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		if err := tx.Reviews.Create(ctx, newReview(1, reviews.StatusApproved)); err != nil {
			return err
		}
		if _, err := moderation.Recompute(ctx, tx, itPlace); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stats, err := c.Reviews.ApprovedStats(ctx, itPlace)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)

	rating, err := c.Places.GetRating(ctx, itPlace)
	require.NoError(t, err)
	assert.Zero(t, rating.RatingCount)
}

type unavailableClassifier struct{}

func (unavailableClassifier) Check(ctx context.Context, text string) (classifier.Verdict, error) {
	return classifier.Verdict{}, classifier.ErrUnavailable
}

func (unavailableClassifier) Summarize(ctx context.Context, text string, rating int) (string, error) {
	return "A short neutral summary.", nil
}

// Parallel approvals on one place must serialize on the row locks and leave
// the aggregate equal to the approved set.
func TestPostgresParallelApprovals(t *testing.T) {
	ctx := context.Background()
	c := storage.NewContainer(newTestDB(t))

	cursors, err := idcodec.New("integration", 8)
	require.NoError(t, err)
	engine := moderation.NewEngine(moderation.Deps{
		UoW:        c,
		Reviews:    c.Reviews,
		Places:     c.Places,
		Roles:      c.AccessControl,
		Classifier: unavailableClassifier{},
		Cursors:    cursors,
		Logger:     zap.NewNop().Sugar(),
	}, moderation.Config{ClassifierTimeout: time.Second})

	var (
		pending []int64
		sum     int64
	)
	for author := int64(1); author <= 12; author++ {
		rv, err := engine.Submit(ctx, moderation.SubmitInput{
			AuthorID: author, PlaceID: itPlace, Rating: int(author%5) + 1, Text: "Lovely place, would return.",
		})
		require.NoError(t, err)
		require.Equal(t, reviews.StatusPending, rv.Status)
		pending = append(pending, rv.ID)
		sum += int64(rv.Rating)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(pending))
	for _, id := range pending {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := engine.Moderate(ctx, moderation.ModerateInput{
				ReviewID: id, ModeratorID: itModerator, Decision: moderation.DecisionApprove,
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rating, err := c.Places.GetRating(ctx, itPlace)
	require.NoError(t, err)
	assert.Equal(t, len(pending), rating.RatingCount)
	assert.Equal(t, moderation.RoundRating(sum, len(pending)), rating.Rating)
}
