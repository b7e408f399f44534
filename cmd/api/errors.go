package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gidrec/internal/moderation"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+strconv.Itoa(seconds)+"s")
}

// duplicateReviewResponse tells the author which review blocks them and in
// which state it is, so the client can say "still pending" or "already
// published".
func (app *application) duplicateReviewResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("duplicate active review", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	type envelope struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Status   int    `json:"status"`
		ReviewID int64  `json:"review_id,omitempty"`
		State    string `json:"review_status,omitempty"`
	}
	out := envelope{Message: "you already have an active review for this place", Status: http.StatusConflict}

	var dup *moderation.DuplicateActiveReviewError
	if errors.As(err, &dup) {
		out.ReviewID = dup.ReviewID
		out.State = string(dup.Status)
	}
	writeJSON(w, http.StatusConflict, &out)
}

// moderationErrorResponse maps engine errors onto the JSON error envelope.
func (app *application) moderationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, moderation.ErrValidation):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, moderation.ErrDuplicateActiveReview):
		app.duplicateReviewResponse(w, r, err)
	case errors.Is(err, moderation.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, moderation.ErrForbidden):
		app.forbiddenResponse(w, r)
	case errors.Is(err, moderation.ErrAlreadyInState):
		app.conflictResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
