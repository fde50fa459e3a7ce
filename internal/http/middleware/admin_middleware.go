package middleware

import (
	"net/http"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

// RequireAdmin must run after AppTokenAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			observability.RecordMiddlewareValidationEvent(r.Context(), "admin_guard", "missing_claims")
			response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgUnauthorized), nil)
			return
		}
		if !claims.IsAdmin {
			observability.RecordMiddlewareValidationEvent(r.Context(), "admin_guard", "forbidden")
			observability.Audit(r, "admin.access_denied", "card_id", claims.Subject)
			response.Error(w, r, http.StatusForbidden, "forbidden", response.Msg(i18n.MsgForbidden), nil)
			return
		}
		observability.RecordMiddlewareValidationEvent(r.Context(), "admin_guard", "pass")
		next.ServeHTTP(w, r)
	})
}
