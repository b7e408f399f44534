package storage

import (
	"context"
	"fmt"

	"gidrec/internal/domain/accesscontrol"
	"gidrec/internal/domain/places"
	"gidrec/internal/domain/pushtokens"
	"gidrec/internal/domain/reviews"
	"gidrec/internal/domain/users"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool          *pgxpool.Pool // required by WithReviewTx
	Users         users.Store
	Reviews       reviews.Store
	Places        places.Store
	AccessControl accesscontrol.Store
	PushTokens    pushtokens.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:          db,
		Users:         users.NewRepository(db),
		Reviews:       reviews.NewRepository(db),
		Places:        places.NewRepository(db),
		AccessControl: accesscontrol.NewRepository(db),
		PushTokens:    pushtokens.NewRepository(db),
	}
}

// ReviewTx is a tx-scoped set of repos for one moderation unit of work: a
// review status change together with the rating recomputation it triggers.
type ReviewTx struct {
	Reviews reviews.Store
	Places  places.Store
}

// UnitOfWork runs fn atomically. fn must only touch storage through tx.
type UnitOfWork interface {
	WithReviewTx(ctx context.Context, fn func(tx *ReviewTx) error) error
}

// WithReviewTx runs fn in a READ COMMITTED transaction. Callers take row locks
// (reviews FOR UPDATE, then places FOR UPDATE) to serialize conflicting work.
func (c *Container) WithReviewTx(ctx context.Context, fn func(tx *ReviewTx) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil (did you forget to set pool in NewContainer?)")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &ReviewTx{
		Reviews: reviews.NewRepository(tx),
		Places:  places.NewRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
