package main

import (
	"net/http"

	"gidrec/internal/domain/users"
)

type userKey string

const userCtx userKey = "user"

// getUserFromContext returns the caller set by AuthTokenMiddleware. It must
// only be used on routes behind that middleware.
func getUserFromContext(r *http.Request) *users.User {
	user, _ := r.Context().Value(userCtx).(*users.User)
	return user
}
