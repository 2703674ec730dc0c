package middleware

import (
	"net/http"

	"github.com/marketloop/cartengine/api/responses"
	"github.com/marketloop/cartengine/internal/guard"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
)

// Restriction rejects owners the abuse monitor has flagged. It runs after
// Owner so the identity is already resolved.
func Restriction(abuse *guard.AbuseMonitor, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, ok := OwnerFromContext(r.Context())
			if ok && abuse != nil && abuse.IsRestricted(r.Context(), owner) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "account temporarily restricted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
