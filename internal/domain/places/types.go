package places

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("place not found")
	QueryTimeoutDuration = time.Second * 5
)

// Rating holds the only place fields this service writes. Everything else
// about a place belongs to the catalog.
type Rating struct {
	PlaceID     int64   `json:"place_id"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"rating_count"`
}
