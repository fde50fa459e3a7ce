package middleware

import (
	"net/http"

	"github.com/whitecard/whitecard-backend/internal/i18n"
)

// Locale picks the response language from Accept-Language and sets
// Content-Language to match.
func Locale(catalog *i18n.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := catalog.MatchLanguage(r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(catalog.WithLocale(r.Context(), tag)))
		})
	}
}
