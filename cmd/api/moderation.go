package main

import (
	"errors"
	"io"
	"net/http"

	"gidrec/internal/moderation"
	"gidrec/internal/params"

	"github.com/go-chi/chi/v5"
)

type moderationPayload struct {
	Notes string `json:"notes" validate:"max=1000"`
	// Rereview must be set to take down a review that is already published.
	Rereview bool `json:"rereview"`
}

// moderationQueueHandler godoc
//
//	@Summary		List reviews awaiting moderation
//	@Description	Pending and flagged reviews, oldest first. Pass next_cursor from the previous page to continue.
//	@Tags			moderation
//	@Produce		json
//	@Param			limit	query		int		false	"At most 100, default 20"
//	@Param			cursor	query		string	false	"Cursor from the previous page"
//	@Success		200		{object}	moderation.QueuePage
//	@Failure		400		{object}	error	"Invalid cursor"
//	@Failure		403		{object}	error	"Not a moderator"
//	@Security		ApiKeyAuth
//	@Router			/moderation/queue [get]
func (app *application) moderationQueueHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParseCursor(r.URL.Query())

	page, err := app.engine.ListPending(r.Context(), p.Limit, p.After)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, page); err != nil {
		app.internalServerError(w, r, err)
	}
}

// approveReviewHandler godoc
//
//	@Summary		Approve a review
//	@Tags			moderation
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		int					true	"Review ID"
//	@Param			payload		body		moderationPayload	false	"Optional notes"
//	@Success		200			{object}	reviews.Review
//	@Failure		404			{object}	error	"Review not found"
//	@Failure		409			{object}	error	"Review already settled"
//	@Security		ApiKeyAuth
//	@Router			/moderation/reviews/{reviewID}/approve [post]
func (app *application) approveReviewHandler(w http.ResponseWriter, r *http.Request) {
	app.moderate(w, r, moderation.DecisionApprove)
}

// rejectReviewHandler godoc
//
//	@Summary		Reject a review
//	@Description	Rejects a pending or flagged review. Set rereview to take down a published one.
//	@Tags			moderation
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		int					true	"Review ID"
//	@Param			payload		body		moderationPayload	false	"Reason and rereview flag"
//	@Success		200			{object}	reviews.Review
//	@Failure		404			{object}	error	"Review not found"
//	@Failure		409			{object}	error	"Review already settled"
//	@Security		ApiKeyAuth
//	@Router			/moderation/reviews/{reviewID}/reject [post]
func (app *application) rejectReviewHandler(w http.ResponseWriter, r *http.Request) {
	app.moderate(w, r, moderation.DecisionReject)
}

func (app *application) moderate(w http.ResponseWriter, r *http.Request, decision moderation.Decision) {
	user := getUserFromContext(r)

	reviewID, err := params.ParseID(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	// the body is optional
	var payload moderationPayload
	if err := readJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review, err := app.engine.Moderate(r.Context(), moderation.ModerateInput{
		ReviewID:    reviewID,
		ModeratorID: user.ID,
		Decision:    decision,
		Notes:       payload.Notes,
		Rereview:    payload.Rereview,
	})
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// moderationPlaceReviewsHandler godoc
//
//	@Summary		List reviews of a place in every status
//	@Tags			moderation
//	@Produce		json
//	@Param			placeID			path		int		true	"Place ID"
//	@Param			only_approved	query		bool	false	"Only published reviews, default false"
//	@Param			limit			query		int		false	"At most 100, default 20"
//	@Success		200		{array}		reviews.Review
//	@Security		ApiKeyAuth
//	@Router			/moderation/places/{placeID}/reviews [get]
func (app *application) moderationPlaceReviewsHandler(w http.ResponseWriter, r *http.Request) {
	app.listPlaceReviews(w, r, params.ParseBool(r.URL.Query(), "only_approved", false))
}

// recomputePlaceHandler godoc
//
//	@Summary		Rebuild a place rating
//	@Tags			moderation
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	places.Rating
//	@Failure		404		{object}	error	"Place not found"
//	@Security		ApiKeyAuth
//	@Router			/moderation/places/{placeID}/recompute [post]
func (app *application) recomputePlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := params.ParseID(chi.URLParam(r, "placeID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	rating, err := app.engine.RecomputePlace(r.Context(), placeID)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// recomputeAllHandler godoc
//
//	@Summary		Rebuild every place rating
//	@Tags			moderation
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Security		ApiKeyAuth
//	@Router			/moderation/places/recompute [post]
func (app *application) recomputeAllHandler(w http.ResponseWriter, r *http.Request) {
	done, err := app.engine.RecomputeAll(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]int{"places_recomputed": done})
}
