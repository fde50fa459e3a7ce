package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/security"
)

type envelope struct {
	Success         bool            `json:"success"`
	ResponseCode    int             `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage"`
	Data            json.RawMessage `json:"data"`
	Error           *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	if env.ResponseCode != rr.Code {
		t.Fatalf("responseCode %d does not mirror status %d", env.ResponseCode, rr.Code)
	}
	return env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v raw=%s", err, string(env.Data))
	}
}

// englishRequest builds a request localized to English so assertions can
// match message text.
func englishRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	catalog, err := i18n.NewCatalog("en")
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(catalog.WithLocale(req.Context(), catalog.MatchLanguage("en")))
}

func withCardClaims(r *http.Request, cardID string, admin bool) *http.Request {
	claims := &security.Claims{IsAdmin: admin, IsVerified: true}
	claims.Subject = cardID
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
}

func withURLParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
