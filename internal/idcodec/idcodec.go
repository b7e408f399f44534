// Package idcodec turns tuples of non-negative integers into short opaque
// strings, used for pagination cursors that clients must not construct.
package idcodec

import (
	"errors"
	"fmt"

	hashids "github.com/speps/go-hashids/v2"
)

var ErrMalformed = errors.New("malformed token")

type Codec struct {
	h *hashids.HashID
}

func New(salt string, minLength int) (*Codec, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("idcodec: %w", err)
	}
	return &Codec{h: h}, nil
}

// Encode packs values into a token. Every value must be non-negative.
func (c *Codec) Encode(values ...int64) (string, error) {
	for _, v := range values {
		if v < 0 {
			return "", fmt.Errorf("idcodec: negative value %d", v)
		}
	}
	return c.h.EncodeInt64(values)
}

// Decode unpacks a token produced by Encode and checks it carries exactly n
// values. Tokens are re-encoded and compared so that foreign strings made of
// the alphabet do not decode to garbage.
func (c *Codec) Decode(token string, n int) ([]int64, error) {
	if token == "" {
		return nil, ErrMalformed
	}
	values, err := c.h.DecodeInt64WithError(token)
	if err != nil || len(values) != n {
		return nil, ErrMalformed
	}
	again, err := c.h.EncodeInt64(values)
	if err != nil || again != token {
		return nil, ErrMalformed
	}
	return values, nil
}
