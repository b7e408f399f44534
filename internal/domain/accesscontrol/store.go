package accesscontrol

import (
	"context"
	"sync"

	"gidrec/internal/infra/dbx"
)

type Store interface {
	UserHasAnyRole(ctx context.Context, userID int64, roleNames ...RoleName) (bool, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(db dbx.Querier) Store {
	return &Repository{db: db}
}

func (r *Repository) UserHasAnyRole(ctx context.Context, userID int64, roleNames ...RoleName) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	names := make([]string, 0, len(roleNames))
	for _, n := range roleNames {
		names = append(names, string(n))
	}

	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM user_roles ur
            JOIN roles r ON ur.role_id = r.id
            WHERE ur.user_id = $1 AND r.name = ANY($2)
        )
    `
	err := r.db.QueryRow(ctx, query, userID, names).Scan(&exists)
	return exists, err
}

// StaticRoles is an in-memory Store keyed by user id. Used for local runs
// without a roles table and in tests.
type StaticRoles struct {
	mu    sync.RWMutex
	roles map[int64][]RoleName
}

func NewStaticRoles(roles map[int64][]RoleName) *StaticRoles {
	s := &StaticRoles{roles: make(map[int64][]RoleName, len(roles))}
	for id, names := range roles {
		s.roles[id] = append([]RoleName(nil), names...)
	}
	return s
}

func (s *StaticRoles) Assign(userID int64, role RoleName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = append(s.roles[userID], role)
}

func (s *StaticRoles) UserHasAnyRole(ctx context.Context, userID int64, roleNames ...RoleName) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, have := range s.roles[userID] {
		for _, want := range roleNames {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}
