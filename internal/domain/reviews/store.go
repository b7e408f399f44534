package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gidrec/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Store interface {
	Create(ctx context.Context, review *Review) error
	GetByID(ctx context.Context, id int64) (*Review, error)
	// GetByIDForUpdate locks the review row until the enclosing transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*Review, error)
	FindActive(ctx context.Context, authorID, placeID int64) (*Review, error)
	UpdateModeration(ctx context.Context, review *Review) error
	Delete(ctx context.Context, id int64) error
	ApprovedStats(ctx context.Context, placeID int64) (ApprovedStats, error)
	ListQueue(ctx context.Context, filter QueueFilter) ([]Review, error)
	ListByPlace(ctx context.Context, placeID int64, onlyApproved bool, limit int) ([]Review, error)
	ListByAuthorPlace(ctx context.Context, authorID, placeID int64) ([]Review, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) Store {
	return &Repository{db: q}
}

const reviewColumns = `
	id, author_id, place_id, rating, text, classifier_verdict, summary,
	moderation_status, moderated_by, moderation_notes, created_at, moderated_at`

func (r *Repository) Create(ctx context.Context, review *Review) error {
	verdict, err := encodeVerdict(review.Verdict)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO reviews (author_id, place_id, rating, text, classifier_verdict, summary, moderation_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	err = r.db.QueryRow(ctx, query,
		review.AuthorID,
		review.PlaceID,
		review.Rating,
		review.Text,
		verdict,
		review.Summary,
		review.Status,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, ActiveReviewConstraint) {
			return ErrActiveReviewExists
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	return scanReview(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1 FOR UPDATE`
	return scanReview(r.db.QueryRow(ctx, query, id))
}

// FindActive returns the author's pending, flagged or approved review on the
// place. The partial unique index guarantees there is at most one.
func (r *Repository) FindActive(ctx context.Context, authorID, placeID int64) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + reviewColumns + `
        FROM reviews
        WHERE author_id = $1 AND place_id = $2 AND moderation_status <> 'rejected'
        LIMIT 1
    `
	return scanReview(r.db.QueryRow(ctx, query, authorID, placeID))
}

func (r *Repository) UpdateModeration(ctx context.Context, review *Review) error {
	query := `
        UPDATE reviews
        SET moderation_status = $2,
            moderated_by = $3,
            moderation_notes = $4,
            moderated_at = $5
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		review.ID,
		review.Status,
		review.ModeratedBy,
		review.ModerationNotes,
		review.ModeratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update review moderation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ApprovedStats(ctx context.Context, placeID int64) (ApprovedStats, error) {
	query := `
        SELECT
            COUNT(id) AS approved_count,
            COALESCE(SUM(rating), 0) AS rating_sum
        FROM reviews
        WHERE place_id = $1 AND moderation_status = 'approved'
    `
	var stats ApprovedStats
	err := r.db.QueryRow(ctx, query, placeID).Scan(&stats.Count, &stats.Sum)
	return stats, err
}

// ListQueue returns reviews awaiting moderation, oldest first.
func (r *Repository) ListQueue(ctx context.Context, filter QueueFilter) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if filter.After == nil {
		query := `SELECT ` + reviewColumns + `
            FROM reviews
            WHERE moderation_status IN ('pending', 'flagged')
            ORDER BY created_at ASC, id ASC
            LIMIT $1
        `
		rows, err = r.db.Query(ctx, query, filter.Limit)
	} else {
		query := `SELECT ` + reviewColumns + `
            FROM reviews
            WHERE moderation_status IN ('pending', 'flagged')
              AND (created_at, id) > ($2, $3)
            ORDER BY created_at ASC, id ASC
            LIMIT $1
        `
		rows, err = r.db.Query(ctx, query, filter.Limit, filter.After.CreatedAt, filter.After.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation queue: %w", err)
	}
	return collectReviews(rows)
}

func (r *Repository) ListByPlace(ctx context.Context, placeID int64, onlyApproved bool, limit int) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + reviewColumns + `
        FROM reviews
        WHERE place_id = $1 AND ($2 = false OR moderation_status = 'approved')
        ORDER BY created_at DESC, id DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, placeID, onlyApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query place reviews: %w", err)
	}
	return collectReviews(rows)
}

func (r *Repository) ListByAuthorPlace(ctx context.Context, authorID, placeID int64) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + reviewColumns + `
        FROM reviews
        WHERE author_id = $1 AND place_id = $2
        ORDER BY created_at DESC, id DESC
    `
	rows, err := r.db.Query(ctx, query, authorID, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query author reviews: %w", err)
	}
	return collectReviews(rows)
}

func scanReview(row pgx.Row) (*Review, error) {
	var (
		review  Review
		verdict []byte
	)
	err := row.Scan(
		&review.ID,
		&review.AuthorID,
		&review.PlaceID,
		&review.Rating,
		&review.Text,
		&verdict,
		&review.Summary,
		&review.Status,
		&review.ModeratedBy,
		&review.ModerationNotes,
		&review.CreatedAt,
		&review.ModeratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if review.Verdict, err = decodeVerdict(verdict); err != nil {
		return nil, err
	}
	return &review, nil
}

func collectReviews(rows pgx.Rows) ([]Review, error) {
	defer rows.Close()

	var out []Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		out = append(out, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeVerdict(v *Verdict) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeVerdict(raw []byte) (*Verdict, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid classifier_verdict: %w", err)
	}
	return &v, nil
}
