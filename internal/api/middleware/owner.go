package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
)

// OwnerHeader carries the opaque id of the current user. Authenticating that
// id is the job of whatever sits in front of this service.
const OwnerHeader = "X-User-ID"

const maxOwnerLength = 128

type ownerKey struct{}

// RequireOwner rejects requests without a usable current user id and stores
// the id in the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			response.RespondError(w, http.StatusUnauthorized, apperrors.ErrMissingOwner.Error(), "missing "+OwnerHeader+" header")
			return
		}
		if len(owner) > maxOwnerLength || strings.IndexFunc(owner, unicode.IsControl) >= 0 {
			response.RespondError(w, http.StatusBadRequest, "invalid user id", "")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner returns a copy of ctx carrying the current user id.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the current user id stored by RequireOwner.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}
