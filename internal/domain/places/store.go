package places

import (
	"context"
	"errors"
	"fmt"

	"gidrec/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Store interface {
	IsActive(ctx context.Context, placeID int64) (bool, error)
	// LockForUpdate row-locks the place until the enclosing transaction ends,
	// serializing rating recomputations for the same place.
	LockForUpdate(ctx context.Context, placeID int64) error
	GetRating(ctx context.Context, placeID int64) (Rating, error)
	SetRating(ctx context.Context, rating Rating) error
	ListIDs(ctx context.Context) ([]int64, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) Store {
	return &Repository{db: q}
}

func (r *Repository) IsActive(ctx context.Context, placeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM places WHERE id = $1 AND is_active = true)`
	err := r.db.QueryRow(ctx, query, placeID).Scan(&exists)
	return exists, err
}

func (r *Repository) LockForUpdate(ctx context.Context, placeID int64) error {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM places WHERE id = $1 FOR UPDATE`, placeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) GetRating(ctx context.Context, placeID int64) (Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rating := Rating{PlaceID: placeID}
	err := r.db.QueryRow(ctx,
		`SELECT rating, rating_count FROM places WHERE id = $1`, placeID,
	).Scan(&rating.Rating, &rating.RatingCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, ErrNotFound
	}
	return rating, err
}

// SetRating writes rating and rating_count and nothing else.
func (r *Repository) SetRating(ctx context.Context, rating Rating) error {
	query := `
        UPDATE places
        SET rating = $2, rating_count = $3
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, rating.PlaceID, rating.Rating, rating.RatingCount)
	if err != nil {
		return fmt.Errorf("failed to update place rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM places ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
