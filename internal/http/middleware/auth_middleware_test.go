package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

type stubCards struct {
	cards map[string]*domain.Card
	err   error
}

func (s stubCards) FindByID(_ context.Context, id string) (*domain.Card, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.cards[id]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	return c, nil
}

func newJWTForTest() *security.JWTManager {
	return security.NewJWTManager("whitecard-test", "scan-secret", "app-secret", "reset-secret", time.Hour, 5*time.Minute)
}

func appTokenFor(t *testing.T, jwtMgr *security.JWTManager, card *domain.Card) string {
	t.Helper()
	token, err := jwtMgr.SignAppToken(security.TokenSubject{CardID: card.ID, CardNumber: card.CardNumber, IsVerified: card.IsVerified, IsAdmin: card.IsAdmin})
	if err != nil {
		t.Fatalf("sign app token: %v", err)
	}
	return token
}

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sub": claims.Subject, "admin": claims.IsAdmin})
	})
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env
}

func TestAppTokenAuthAcceptsHeaderAndBearer(t *testing.T) {
	jwtMgr := newJWTForTest()
	card := &domain.Card{ID: "card-1", CardNumber: "4000000000000001", IsVerified: true}
	h := AppTokenAuth(jwtMgr, stubCards{cards: map[string]*domain.Card{card.ID: card}})(claimsEcho())
	token := appTokenFor(t, jwtMgr, card)

	for name, set := range map[string]func(*http.Request){
		"auth-token header": func(r *http.Request) { r.Header.Set(response.TokenHeader, token) },
		"bearer":            func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/redemptions/otp", nil)
			set(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
			}
			var body map[string]any
			_ = json.Unmarshal(rr.Body.Bytes(), &body)
			if body["sub"] != "card-1" {
				t.Fatalf("expected claims for card-1, got %v", body)
			}
		})
	}
}

func TestAppTokenAuthRejections(t *testing.T) {
	jwtMgr := newJWTForTest()
	verified := &domain.Card{ID: "card-1", IsVerified: true}
	deactivated := &domain.Card{ID: "card-2", IsVerified: false}
	cards := stubCards{cards: map[string]*domain.Card{verified.ID: verified, deactivated.ID: deactivated}}
	scanToken, err := jwtMgr.SignScanToken(security.TokenSubject{CardID: verified.ID, IsVerified: true})
	if err != nil {
		t.Fatalf("sign scan token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		cards stubCards
		want  int
	}{
		{name: "missing", token: "", cards: cards, want: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-jwt", cards: cards, want: http.StatusUnauthorized},
		{name: "scan token is not an app token", token: scanToken, cards: cards, want: http.StatusUnauthorized},
		{name: "card removed", token: appTokenFor(t, jwtMgr, &domain.Card{ID: "gone", IsVerified: true}), cards: cards, want: http.StatusUnauthorized},
		{name: "card deactivated", token: appTokenFor(t, jwtMgr, &domain.Card{ID: deactivated.ID, IsVerified: true}), cards: cards, want: http.StatusUnauthorized},
		{name: "lookup failure", token: appTokenFor(t, jwtMgr, verified), cards: stubCards{err: errors.New("db down")}, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := AppTokenAuth(jwtMgr, tc.cards)(claimsEcho())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/redemptions/otp", nil)
			if tc.token != "" {
				req.Header.Set(response.TokenHeader, tc.token)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if env := decodeEnvelope(t, rr); env.Success || env.ResponseCode != tc.want {
				t.Fatalf("unexpected envelope: %+v", env)
			}
		})
	}
}

func TestRequireAdminUsesStoredCardFlag(t *testing.T) {
	jwtMgr := newJWTForTest()
	admin := &domain.Card{ID: "admin", IsVerified: true, IsAdmin: true}
	demoted := &domain.Card{ID: "demoted", IsVerified: true, IsAdmin: false}
	cards := stubCards{cards: map[string]*domain.Card{admin.ID: admin, demoted.ID: demoted}}
	h := AppTokenAuth(jwtMgr, cards)(RequireAdmin(claimsEcho()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/qr-codes", nil)
	req.Header.Set(response.TokenHeader, appTokenFor(t, jwtMgr, admin))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected admin to pass, got %d", rr.Code)
	}

	// Token minted while the card was admin; the stored flag has since changed.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/qr-codes", nil)
	req.Header.Set(response.TokenHeader, appTokenFor(t, jwtMgr, &domain.Card{ID: demoted.ID, IsVerified: true, IsAdmin: true}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireAdminWithoutClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireAdmin(claimsEcho()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/qr-codes", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLocaleMiddlewareLocalizesEnvelope(t *testing.T) {
	catalog, err := i18n.NewCatalog("ar")
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	h := Locale(catalog)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "not_found", response.Msg(i18n.MsgCardNotFound), nil)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/scan", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Content-Language") != "en" {
		t.Fatalf("expected en, got %q", rr.Header().Get("Content-Language"))
	}
	if env := decodeEnvelope(t, rr); env.ResponseMessage != "Card not found" {
		t.Fatalf("expected english message, got %q", env.ResponseMessage)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cards/scan", nil))
	if rr.Header().Get("Content-Language") != "ar" {
		t.Fatalf("expected default ar, got %q", rr.Header().Get("Content-Language"))
	}
	if env := decodeEnvelope(t, rr); env.ResponseMessage == "Card not found" || env.ResponseMessage == i18n.MsgCardNotFound {
		t.Fatalf("expected arabic message, got %q", env.ResponseMessage)
	}
}
