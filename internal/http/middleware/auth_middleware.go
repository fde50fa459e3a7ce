package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

type AppTokenParser interface {
	ParseAppToken(raw string) (*security.Claims, error)
}

type CardLookup interface {
	FindByID(ctx context.Context, id string) (*domain.Card, error)
}

// AppTokenAuth accepts an app token from the auth-token header or a bearer
// Authorization header. The card behind the token must still exist and be
// verified; a deactivated card loses access before its token expires.
func AppTokenAuth(tokens AppTokenParser, cards CardLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := appTokenFromRequest(r)
			if raw == "" {
				observability.RecordAppTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgUnauthorized), nil)
				return
			}
			claims, err := tokens.ParseAppToken(raw)
			if err != nil {
				observability.RecordAppTokenValidation(r.Context(), "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgUnauthorized), nil)
				return
			}
			card, err := cards.FindByID(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, repository.ErrCardNotFound) {
					observability.RecordAppTokenValidation(r.Context(), "card_missing", source)
					response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgCardNotFound), nil)
					return
				}
				observability.RecordAppTokenValidation(r.Context(), "lookup_error", source)
				response.Error(w, r, http.StatusInternalServerError, "internal", response.Msg(i18n.MsgInternalError), nil)
				return
			}
			if !card.IsVerified {
				observability.RecordAppTokenValidation(r.Context(), "card_invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "unauthorized", response.Msg(i18n.MsgCardInvalid), nil)
				return
			}
			// Admin rights follow the stored card, not the token snapshot.
			claims.IsAdmin = card.IsAdmin
			observability.RecordAppTokenValidation(r.Context(), "ok", source)
			annotateCard(r.Context(), card.ID)
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func appTokenFromRequest(r *http.Request) (string, string) {
	if raw := strings.TrimSpace(r.Header.Get(response.TokenHeader)); raw != "" {
		return raw, "header"
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:]), "bearer"
	}
	return "", "none"
}
