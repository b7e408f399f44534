package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"gidrec/internal/domain/places"
	"gidrec/internal/domain/reviews"
)

// Memory is an in-process implementation of the review and place stores with
// the same atomicity and uniqueness guarantees as the Postgres container:
// transactions run one at a time against a copy of the state that is only
// published on success, and Create enforces one non-rejected review per
// (author, place).
type Memory struct {
	mu       sync.RWMutex
	state    *memState
	nextID   int64
	lastTime time.Time
	failSet  error

	Now     func() time.Time
	Reviews reviews.Store
	Places  places.Store
}

type memState struct {
	reviews map[int64]reviews.Review
	places  map[int64]memPlace
}

type memPlace struct {
	active bool
	rating places.Rating
}

func NewMemory() *Memory {
	m := &Memory{
		state: &memState{
			reviews: make(map[int64]reviews.Review),
			places:  make(map[int64]memPlace),
		},
		Now: time.Now,
	}
	m.Reviews = &memReviews{m: m}
	m.Places = &memPlaces{m: m}
	return m
}

// AddPlace registers an active place with an empty rating.
func (m *Memory) AddPlace(placeID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.places[placeID] = memPlace{active: true, rating: places.Rating{PlaceID: placeID}}
}

// DeactivatePlace keeps the place row but hides it from submissions.
func (m *Memory) DeactivatePlace(placeID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.places[placeID]
	p.active = false
	m.state.places[placeID] = p
}

// FailRatingWrites makes every subsequent SetRating return err. Pass nil to
// restore normal behaviour.
func (m *Memory) FailRatingWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = err
}

func (m *Memory) WithReviewTx(ctx context.Context, fn func(tx *ReviewTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	tx := &ReviewTx{
		Reviews: &memReviews{m: m, st: work},
		Places:  &memPlaces{m: m, st: work},
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s *memState) clone() *memState {
	out := &memState{
		reviews: make(map[int64]reviews.Review, len(s.reviews)),
		places:  make(map[int64]memPlace, len(s.places)),
	}
	for k, v := range s.reviews {
		out.reviews[k] = v
	}
	for k, v := range s.places {
		out.places[k] = v
	}
	return out
}

// createdAt hands out strictly increasing timestamps so FIFO order is total.
// Callers hold m.mu.
func (m *Memory) createdAt() time.Time {
	now := m.Now().UTC().Truncate(time.Microsecond)
	if !now.After(m.lastTime) {
		now = m.lastTime.Add(time.Microsecond)
	}
	m.lastTime = now
	return now
}

// view runs fn against the tx state, or the shared state under a read lock.
func (m *Memory) view(st *memState, fn func(*memState) error) error {
	if st != nil {
		return fn(st)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.state)
}

func (m *Memory) update(st *memState, fn func(*memState) error) error {
	if st != nil {
		return fn(st)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

type memReviews struct {
	m  *Memory
	st *memState
}

func (r *memReviews) Create(ctx context.Context, review *reviews.Review) error {
	return r.m.update(r.st, func(st *memState) error {
		for _, existing := range st.reviews {
			if existing.AuthorID == review.AuthorID && existing.PlaceID == review.PlaceID && existing.Status.Active() {
				return reviews.ErrActiveReviewExists
			}
		}
		r.m.nextID++
		review.ID = r.m.nextID
		review.CreatedAt = r.m.createdAt()
		st.reviews[review.ID] = *review
		return nil
	})
}

func (r *memReviews) GetByID(ctx context.Context, id int64) (*reviews.Review, error) {
	var out *reviews.Review
	err := r.m.view(r.st, func(st *memState) error {
		rv, ok := st.reviews[id]
		if !ok {
			return reviews.ErrNotFound
		}
		out = &rv
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: transactions are already exclusive.
func (r *memReviews) GetByIDForUpdate(ctx context.Context, id int64) (*reviews.Review, error) {
	return r.GetByID(ctx, id)
}

func (r *memReviews) FindActive(ctx context.Context, authorID, placeID int64) (*reviews.Review, error) {
	var out *reviews.Review
	err := r.m.view(r.st, func(st *memState) error {
		for _, rv := range st.reviews {
			if rv.AuthorID == authorID && rv.PlaceID == placeID && rv.Status.Active() {
				rv := rv
				out = &rv
				return nil
			}
		}
		return reviews.ErrNotFound
	})
	return out, err
}

func (r *memReviews) UpdateModeration(ctx context.Context, review *reviews.Review) error {
	return r.m.update(r.st, func(st *memState) error {
		existing, ok := st.reviews[review.ID]
		if !ok {
			return reviews.ErrNotFound
		}
		existing.Status = review.Status
		existing.ModeratedBy = review.ModeratedBy
		existing.ModerationNotes = review.ModerationNotes
		existing.ModeratedAt = review.ModeratedAt
		st.reviews[review.ID] = existing
		return nil
	})
}

func (r *memReviews) Delete(ctx context.Context, id int64) error {
	return r.m.update(r.st, func(st *memState) error {
		if _, ok := st.reviews[id]; !ok {
			return reviews.ErrNotFound
		}
		delete(st.reviews, id)
		return nil
	})
}

func (r *memReviews) ApprovedStats(ctx context.Context, placeID int64) (reviews.ApprovedStats, error) {
	var stats reviews.ApprovedStats
	err := r.m.view(r.st, func(st *memState) error {
		for _, rv := range st.reviews {
			if rv.PlaceID == placeID && rv.Status == reviews.StatusApproved {
				stats.Count++
				stats.Sum += int64(rv.Rating)
			}
		}
		return nil
	})
	return stats, err
}

func (r *memReviews) ListQueue(ctx context.Context, filter reviews.QueueFilter) ([]reviews.Review, error) {
	var out []reviews.Review
	err := r.m.view(r.st, func(st *memState) error {
		for _, rv := range st.reviews {
			if !rv.Status.AwaitingModeration() {
				continue
			}
			if filter.After != nil && !after(rv, *filter.After) {
				continue
			}
			out = append(out, rv)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return oldestFirst(out[i], out[j]) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

func (r *memReviews) ListByPlace(ctx context.Context, placeID int64, onlyApproved bool, limit int) ([]reviews.Review, error) {
	var out []reviews.Review
	err := r.m.view(r.st, func(st *memState) error {
		for _, rv := range st.reviews {
			if rv.PlaceID != placeID || (onlyApproved && rv.Status != reviews.StatusApproved) {
				continue
			}
			out = append(out, rv)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return oldestFirst(out[j], out[i]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memReviews) ListByAuthorPlace(ctx context.Context, authorID, placeID int64) ([]reviews.Review, error) {
	var out []reviews.Review
	err := r.m.view(r.st, func(st *memState) error {
		for _, rv := range st.reviews {
			if rv.AuthorID == authorID && rv.PlaceID == placeID {
				out = append(out, rv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return oldestFirst(out[j], out[i]) })
	return out, err
}

func oldestFirst(a, b reviews.Review) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func after(rv reviews.Review, c reviews.QueueCursor) bool {
	if rv.CreatedAt.Equal(c.CreatedAt) {
		return rv.ID > c.ID
	}
	return rv.CreatedAt.After(c.CreatedAt)
}

type memPlaces struct {
	m  *Memory
	st *memState
}

func (p *memPlaces) IsActive(ctx context.Context, placeID int64) (bool, error) {
	var active bool
	err := p.m.view(p.st, func(st *memState) error {
		active = st.places[placeID].active
		return nil
	})
	return active, err
}

func (p *memPlaces) LockForUpdate(ctx context.Context, placeID int64) error {
	return p.m.view(p.st, func(st *memState) error {
		if _, ok := st.places[placeID]; !ok {
			return places.ErrNotFound
		}
		return nil
	})
}

func (p *memPlaces) GetRating(ctx context.Context, placeID int64) (places.Rating, error) {
	var out places.Rating
	err := p.m.view(p.st, func(st *memState) error {
		pl, ok := st.places[placeID]
		if !ok {
			return places.ErrNotFound
		}
		out = pl.rating
		return nil
	})
	return out, err
}

func (p *memPlaces) SetRating(ctx context.Context, rating places.Rating) error {
	return p.m.update(p.st, func(st *memState) error {
		if p.m.failSet != nil {
			return p.m.failSet
		}
		pl, ok := st.places[rating.PlaceID]
		if !ok {
			return places.ErrNotFound
		}
		pl.rating = rating
		st.places[rating.PlaceID] = pl
		return nil
	})
}

func (p *memPlaces) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := p.m.view(p.st, func(st *memState) error {
		for id := range st.places {
			ids = append(ids, id)
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}
