package main

import (
	"errors"
	"net/http"

	"gidrec/internal/domain/reviews"
	"gidrec/internal/moderation"
	"gidrec/internal/params"

	"github.com/go-chi/chi/v5"
)

type createReviewPayload struct {
	PlaceID int64  `json:"place_id" validate:"required,gt=0"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Text    string `json:"text" validate:"required,notblank"`
}

// createReviewHandler godoc
//
//	@Summary		Submit a review
//	@Description	Submits a rating and text for a place. The review is screened automatically and is either published, sent to moderators, or left pending when screening is unavailable.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		createReviewPayload	true	"Review payload"
//	@Success		201		{object}	reviews.Review
//	@Failure		400		{object}	error	"Invalid rating or text"
//	@Failure		404		{object}	error	"Place not found"
//	@Failure		409		{object}	error	"An active review already exists"
//	@Failure		429		{object}	error	"Rate limit exceeded"
//	@Security		ApiKeyAuth
//	@Router			/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload createReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review, err := app.engine.Submit(r.Context(), moderation.SubmitInput{
		AuthorID: user.ID,
		PlaceID:  payload.PlaceID,
		Rating:   payload.Rating,
		Text:     payload.Text,
	})
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getReviewHandler godoc
//
//	@Summary		Get a published review
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{object}	reviews.Review
//	@Failure		404			{object}	error	"Review not found"
//	@Router			/reviews/{reviewID} [get]
func (app *application) getReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := params.ParseID(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	review, err := app.engine.GetReview(r.Context(), reviewID)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}
	// Only published reviews are public. Authors see their own through
	// /places/{placeID}/reviews/mine and moderators through the queue.
	if review.Status != reviews.StatusApproved {
		app.notFoundResponse(w, r, errors.New("review is not published"))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteReviewHandler godoc
//
//	@Summary		Delete a review
//	@Description	Authors can delete their own reviews, moderators any review. Deleting a published review updates the place rating.
//	@Tags			reviews
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{object}	map[string]string
//	@Failure		403			{object}	error	"Not the author"
//	@Failure		404			{object}	error	"Review not found"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	reviewID, err := params.ParseID(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	if err := app.engine.Delete(r.Context(), reviewID, user.ID); err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "review deleted"})
}

// listPlaceReviewsHandler godoc
//
//	@Summary		List published reviews of a place
//	@Tags			places
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Param			limit	query		int	false	"At most 100, default 20"
//	@Success		200		{array}		reviews.Review
//	@Router			/places/{placeID}/reviews [get]
func (app *application) listPlaceReviewsHandler(w http.ResponseWriter, r *http.Request) {
	app.listPlaceReviews(w, r, true)
}

func (app *application) listPlaceReviews(w http.ResponseWriter, r *http.Request, onlyApproved bool) {
	placeID, err := params.ParseID(chi.URLParam(r, "placeID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	list, err := app.engine.ListPlaceReviews(r.Context(), placeID, onlyApproved, params.ParseLimit(r.URL.Query()))
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPlaceRatingHandler godoc
//
//	@Summary		Get the aggregate rating of a place
//	@Tags			places
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	places.Rating
//	@Failure		404		{object}	error	"Place not found"
//	@Router			/places/{placeID}/rating [get]
func (app *application) getPlaceRatingHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := params.ParseID(chi.URLParam(r, "placeID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	rating, err := app.engine.PlaceRating(r.Context(), placeID)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// myPlaceReviewsHandler godoc
//
//	@Summary		List the caller's reviews of a place
//	@Description	Returns every review the caller left on the place, newest first, and the one currently blocking a new submission if any.
//	@Tags			places
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	moderation.History
//	@Security		ApiKeyAuth
//	@Router			/places/{placeID}/reviews/mine [get]
func (app *application) myPlaceReviewsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	placeID, err := params.ParseID(chi.URLParam(r, "placeID"))
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	history, err := app.engine.AuthorHistory(r.Context(), user.ID, placeID)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, history); err != nil {
		app.internalServerError(w, r, err)
	}
}
