// Package moderation owns the lifecycle of a review: submission screening,
// moderator decisions, deletion, and the place rating that must always match
// the set of approved reviews.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gidrec/internal/classifier"
	"gidrec/internal/domain/accesscontrol"
	"gidrec/internal/domain/places"
	"gidrec/internal/domain/reviews"
	"gidrec/internal/domain/storage"
	"gidrec/internal/idcodec"
	"gidrec/internal/notifications"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MinRating     = 1
	MaxRating     = 5
	MinTextLen    = 10
	MaxNotesLen   = 1000
	DefaultMaxLen = 2000
)

type Config struct {
	MaxTextLen int
	// ClassifierTimeout bounds screening and summarizing together.
	ClassifierTimeout time.Duration
}

type Deps struct {
	UoW        storage.UnitOfWork
	Reviews    reviews.Store
	Places     places.Store
	Roles      accesscontrol.Store
	Classifier classifier.Gateway
	Events     notifications.Publisher
	Cursors    *idcodec.Codec
	Logger     *zap.SugaredLogger
	Now        func() time.Time
}

type Engine struct {
	uow        storage.UnitOfWork
	reviews    reviews.Store
	places     places.Store
	roles      accesscontrol.Store
	classifier classifier.Gateway
	events     notifications.Publisher
	cursors    *idcodec.Codec
	logger     *zap.SugaredLogger
	now        func() time.Time
	cfg        Config
}

func NewEngine(d Deps, cfg Config) *Engine {
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = DefaultMaxLen
	}
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = 15 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Events == nil {
		d.Events = notifications.Discard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Cursors == nil {
		d.Cursors = defaultCursors()
	}
	return &Engine{
		uow:        d.UoW,
		reviews:    d.Reviews,
		places:     d.Places,
		roles:      d.Roles,
		classifier: d.Classifier,
		events:     d.Events,
		cursors:    d.Cursors,
		logger:     d.Logger,
		now:        d.Now,
		cfg:        cfg,
	}
}

// defaultCursors builds an unsalted codec. Deployments set REVIEW_CURSOR_SALT
// so cursors from other installations do not decode.
func defaultCursors() *idcodec.Codec {
	c, err := idcodec.New("", 8)
	if err != nil {
		panic(fmt.Sprintf("moderation: default cursor codec: %v", err))
	}
	return c
}

type SubmitInput struct {
	AuthorID int64
	PlaceID  int64
	Rating   int
	Text     string
}

// Submit validates, screens and stores a new review. A classifier failure is
// not an error for the caller: the review is stored as pending instead.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*reviews.Review, error) {
	text := strings.TrimSpace(in.Text)
	if err := e.validateSubmission(in.Rating, text); err != nil {
		return nil, err
	}

	active, err := e.places.IsActive(ctx, in.PlaceID)
	if err != nil {
		return nil, fmt.Errorf("checking place: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: place %d", ErrNotFound, in.PlaceID)
	}

	if err := checkNoActiveReview(ctx, e.reviews, in.AuthorID, in.PlaceID); err != nil {
		return nil, err
	}

	// No storage lock is held while the classifier runs.
	verdict, summary := e.screen(ctx, text, in.Rating)
	out := Screen(verdict)

	review := &reviews.Review{
		AuthorID: in.AuthorID,
		PlaceID:  in.PlaceID,
		Rating:   in.Rating,
		Text:     text,
		Verdict:  verdict,
		Summary:  &summary,
		Status:   out.To,
	}

	err = e.uow.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		if err := tx.Reviews.Create(ctx, review); err != nil {
			return err
		}
		if out.Recompute {
			if _, err := Recompute(ctx, tx, review.PlaceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, reviews.ErrActiveReviewExists) {
			return nil, duplicateFromConflict(ctx, e.reviews, in.AuthorID, in.PlaceID)
		}
		return nil, err
	}

	submissions.WithLabelValues(string(review.Status)).Inc()
	e.logger.Infow("review submitted",
		"review_id", review.ID, "author_id", review.AuthorID, "place_id", review.PlaceID, "status", review.Status)

	if review.Status != reviews.StatusPending {
		e.events.Publish(notifications.NewModerationResult(review, "", verdictReason(verdict)))
	}
	return review, nil
}

func (e *Engine) validateSubmission(rating int, text string) error {
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{Field: "rating", Message: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
	}
	n := utf8.RuneCountInString(text)
	if n < MinTextLen {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("must be at least %d characters", MinTextLen)}
	}
	if n > e.cfg.MaxTextLen {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("must be at most %d characters", e.cfg.MaxTextLen)}
	}
	return nil
}

// screen runs the safety check and the summary concurrently. A nil verdict
// means the check failed and the review must wait for a moderator.
func (e *Engine) screen(ctx context.Context, text string, rating int) (*reviews.Verdict, string) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ClassifierTimeout)
	defer cancel()

	var (
		verdict *reviews.Verdict
		summary string
		g       errgroup.Group
	)
	g.Go(func() error {
		v, err := e.classifier.Check(ctx, text)
		if err != nil {
			screenings.WithLabelValues("unavailable").Inc()
			e.logger.Warnw("classifier check failed, deferring to moderator",
				"error", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err))
			return nil
		}
		verdict = &reviews.Verdict{Appropriate: v.Appropriate, Confidence: v.Confidence, Reasons: v.Reasons}
		if v.Appropriate {
			screenings.WithLabelValues("appropriate").Inc()
		} else {
			screenings.WithLabelValues("inappropriate").Inc()
		}
		return nil
	})
	g.Go(func() error {
		s, err := e.classifier.Summarize(ctx, text, rating)
		if err != nil || !classifier.UsableSummary(s) {
			if err != nil {
				e.logger.Warnw("summary failed, using fallback", "error", err)
			}
			s = classifier.FallbackSummary(text)
		}
		summary = strings.TrimSpace(s)
		return nil
	})
	_ = g.Wait()
	return verdict, summary
}

func verdictReason(v *reviews.Verdict) string {
	if v == nil || v.Appropriate || len(v.Reasons) == 0 {
		return ""
	}
	return strings.Join(v.Reasons, ", ")
}

type ModerateInput struct {
	ReviewID    int64
	ModeratorID int64
	Decision    Decision
	Notes       string
	// Rereview allows rejecting a review that is already approved.
	Rereview bool
}

// Moderate applies a moderator decision. The review row is locked for the
// duration of the transaction, so of two concurrent decisions the second one
// observes the first one's result and gets *AlreadyInStateError.
func (e *Engine) Moderate(ctx context.Context, in ModerateInput) (*reviews.Review, error) {
	if !in.Decision.Valid() {
		return nil, &ValidationError{Field: "decision", Message: fmt.Sprintf("unknown decision %q", in.Decision)}
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLen {
		return nil, &ValidationError{Field: "notes", Message: fmt.Sprintf("must be at most %d characters", MaxNotesLen)}
	}
	if err := e.requireModerator(ctx, in.ModeratorID); err != nil {
		return nil, err
	}

	var (
		updated *reviews.Review
		out     Outcome
	)
	err := e.uow.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		review, err := tx.Reviews.GetByIDForUpdate(ctx, in.ReviewID)
		if err != nil {
			if errors.Is(err, reviews.ErrNotFound) {
				return fmt.Errorf("%w: review %d", ErrNotFound, in.ReviewID)
			}
			return err
		}

		out, err = Decide(review.ID, review.Status, in.Decision, in.Rereview)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		moderator := in.ModeratorID
		review.Status = out.To
		review.ModeratedBy = &moderator
		review.ModeratedAt = &now
		review.ModerationNotes = nil
		if notes != "" {
			review.ModerationNotes = &notes
		}
		if err := tx.Reviews.UpdateModeration(ctx, review); err != nil {
			return err
		}

		if out.Recompute {
			if _, err := Recompute(ctx, tx, review.PlaceID); err != nil {
				return err
			}
		}
		updated = review
		return nil
	})
	if err != nil {
		var already *AlreadyInStateError
		if errors.As(err, &already) {
			noops.WithLabelValues(string(already.Status)).Inc()
		}
		return nil, err
	}

	transitions.WithLabelValues(string(out.From), string(out.To)).Inc()
	e.logger.Infow("review moderated",
		"review_id", updated.ID, "moderator_id", in.ModeratorID, "from", out.From, "to", out.To)

	e.events.Publish(notifications.NewModerationResult(updated, out.From, notes))
	return updated, nil
}

// Delete removes a review. Authors may delete their own reviews; anyone else
// needs moderation rights. Deleting an approved review updates the rating in
// the same transaction.
func (e *Engine) Delete(ctx context.Context, reviewID, actorID int64) error {
	// Authorship is immutable, so the role check runs outside the transaction.
	current, err := e.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if current.AuthorID != actorID {
		if err := e.requireModerator(ctx, actorID); err != nil {
			return err
		}
	}

	var deleted *reviews.Review
	err = e.uow.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		review, err := tx.Reviews.GetByIDForUpdate(ctx, reviewID)
		if err != nil {
			if errors.Is(err, reviews.ErrNotFound) {
				return fmt.Errorf("%w: review %d", ErrNotFound, reviewID)
			}
			return err
		}

		if err := tx.Reviews.Delete(ctx, review.ID); err != nil {
			return err
		}
		if review.Status == reviews.StatusApproved {
			if _, err := Recompute(ctx, tx, review.PlaceID); err != nil {
				return err
			}
		}
		deleted = review
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Infow("review deleted",
		"review_id", deleted.ID, "actor_id", actorID, "place_id", deleted.PlaceID, "status", deleted.Status)
	return nil
}

func (e *Engine) GetReview(ctx context.Context, reviewID int64) (*reviews.Review, error) {
	review, err := e.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			return nil, fmt.Errorf("%w: review %d", ErrNotFound, reviewID)
		}
		return nil, err
	}
	return review, nil
}

// ListPlaceReviews returns a place's reviews, newest first.
func (e *Engine) ListPlaceReviews(ctx context.Context, placeID int64, onlyApproved bool, limit int) ([]reviews.Review, error) {
	list, err := e.reviews.ListByPlace(ctx, placeID, onlyApproved, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []reviews.Review{}
	}
	return list, nil
}

type History struct {
	Reviews []reviews.Review `json:"reviews"`
	// Active is the review currently blocking a new submission, if any.
	Active *reviews.Review `json:"active,omitempty"`
}

// AuthorHistory lists every review the author left on the place, newest
// first, so a client can show why a new submission is or is not possible.
func (e *Engine) AuthorHistory(ctx context.Context, authorID, placeID int64) (*History, error) {
	list, err := e.reviews.ListByAuthorPlace(ctx, authorID, placeID)
	if err != nil {
		return nil, err
	}
	h := &History{Reviews: list}
	if h.Reviews == nil {
		h.Reviews = []reviews.Review{}
	}
	for i := range h.Reviews {
		if h.Reviews[i].Status.Active() {
			h.Active = &h.Reviews[i]
			break
		}
	}
	return h, nil
}

func (e *Engine) PlaceRating(ctx context.Context, placeID int64) (places.Rating, error) {
	rating, err := e.places.GetRating(ctx, placeID)
	if err != nil {
		if errors.Is(err, places.ErrNotFound) {
			return places.Rating{}, fmt.Errorf("%w: place %d", ErrNotFound, placeID)
		}
		return places.Rating{}, err
	}
	return rating, nil
}

// RecomputePlace rebuilds one place's rating from its approved reviews.
// Running it on a consistent place is a no-op.
func (e *Engine) RecomputePlace(ctx context.Context, placeID int64) (places.Rating, error) {
	var rating places.Rating
	err := e.uow.WithReviewTx(ctx, func(tx *storage.ReviewTx) error {
		var err error
		rating, err = Recompute(ctx, tx, placeID)
		return err
	})
	return rating, err
}

// RecomputeAll repairs every place, one transaction each, and reports how
// many were processed successfully. Failures are collected, not fatal.
func (e *Engine) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := e.places.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing places: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := e.RecomputePlace(ctx, id); err != nil {
			e.logger.Errorw("place rating recompute failed", "place_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (e *Engine) requireModerator(ctx context.Context, userID int64) error {
	ok, err := e.isModerator(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (e *Engine) isModerator(ctx context.Context, userID int64) (bool, error) {
	ok, err := e.roles.UserHasAnyRole(ctx, userID, accesscontrol.ModerationRoles...)
	if err != nil {
		return false, fmt.Errorf("checking roles: %w", err)
	}
	return ok, nil
}
