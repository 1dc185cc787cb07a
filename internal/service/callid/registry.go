// Package callid hands out call identifiers that are unique among active calls.
package callid

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
)

// DefaultMaxAttempts bounds regeneration after collisions
const DefaultMaxAttempts = 16

// ErrIdentifierSpaceExhausted means every attempt produced an identifier already in use.
// Only a broken generator or a misconfigured store can cause it.
var ErrIdentifierSpaceExhausted = apperrors.NewWithStatus(
	apperrors.ErrCodeInternal,
	"call identifier space exhausted",
	http.StatusInternalServerError,
)

// Registry issues identifiers and forgets them once a call is over
type Registry interface {
	Generate(ctx context.Context) (string, error)
	Release(ctx context.Context, id string) error
}

// IDFunc produces a candidate identifier
type IDFunc func() string

func defaultIDFunc(fn IDFunc) IDFunc {
	if fn == nil {
		return uuid.NewString
	}
	return fn
}
