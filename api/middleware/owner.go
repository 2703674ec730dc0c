package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/marketloop/cartengine/api/responses"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/types"
)

const (
	userIDHeader    = "X-User-Id"
	sessionIDHeader = "X-Session-Id"
)

type ownerCtxKey struct{}

// Owner resolves the request's cart owner from the identity headers set by
// the edge gateway: X-User-Id for authenticated users, X-Session-Id for
// anonymous sessions. Exactly one must be present.
func Owner(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := ownerFromHeaders(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ownerCtxKey{}, owner)
			if logg != nil {
				ctx = logg.WithOwner(ctx, owner.Key())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext returns the owner resolved by the Owner middleware.
func OwnerFromContext(ctx context.Context) (types.OwnerRef, bool) {
	owner, ok := ctx.Value(ownerCtxKey{}).(types.OwnerRef)
	return owner, ok
}

func ownerFromHeaders(r *http.Request) (types.OwnerRef, error) {
	rawUser := strings.TrimSpace(r.Header.Get(userIDHeader))
	rawSession := strings.TrimSpace(r.Header.Get(sessionIDHeader))

	if rawUser != "" && rawSession != "" {
		return types.OwnerRef{}, pkgerrors.New(pkgerrors.CodeValidation, "provide either a user or a session identity, not both")
	}
	if rawUser != "" {
		userID, err := uuid.Parse(rawUser)
		if err != nil {
			return types.OwnerRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id header")
		}
		return types.UserOwner(userID), nil
	}
	if rawSession != "" {
		return types.SessionOwner(rawSession), nil
	}
	return types.OwnerRef{}, pkgerrors.New(pkgerrors.CodeValidation, "missing identity header")
}
