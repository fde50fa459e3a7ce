package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/whitecard/whitecard-backend/internal/health"
	"github.com/whitecard/whitecard-backend/internal/http/handler"
	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
)

type Dependencies struct {
	CardHandler       *handler.CardHandler
	RedemptionHandler *handler.RedemptionHandler
	AdminHandler      *handler.AdminHandler
	AppTokens         middleware.AppTokenParser
	Cards             middleware.CardLookup
	Catalog           *i18n.Catalog
	CORSOrigins       []string
	APIRateLimitRPM   int
	CardRateLimitRPM  int
	GlobalRateLimiter GlobalRateLimiterFunc
	CardRateLimiter   CardRateLimiterFunc
	RedemptionLimiter RedemptionRateLimiterFunc
	Idempotency       IdempotencyMiddlewareFactory
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type CardRateLimiterFunc func(http.Handler) http.Handler
type RedemptionRateLimiterFunc func(http.Handler) http.Handler
type IdempotencyMiddlewareFactory func(scope string) func(http.Handler) http.Handler

const (
	IdempotencyScopeCreateCard = "admin.cards.create"
	IdempotencyScopeRemoveCard = "admin.cards.delete"
)

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	if dep.Catalog != nil {
		r.Use(middleware.Locale(dep.Catalog))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	var cardLimiter func(http.Handler) http.Handler = dep.CardRateLimiter
	if cardLimiter == nil {
		cardLimiter = middleware.NewRateLimiter(dep.CardRateLimitRPM, time.Minute, "card").Middleware()
	}
	var redemptionLimiter func(http.Handler) http.Handler = dep.RedemptionLimiter
	if redemptionLimiter == nil {
		redemptionLimiter = middleware.NewRateLimiter(dep.CardRateLimitRPM, time.Minute, "redemption").
			WithKeyFunc(middleware.CardKey).
			Middleware()
	}
	idempotent := func(scope string) []func(http.Handler) http.Handler {
		if dep.Idempotency == nil {
			return nil
		}
		return []func(http.Handler) http.Handler{dep.Idempotency(scope)}
	}
	appAuth := middleware.AppTokenAuth(dep.AppTokens, dep.Cards)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "not_found", response.Msg(i18n.MsgRouteNotFound), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "method_not_allowed", response.Msg(i18n.MsgMethodNotAllowed), nil)
	})

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgOK), map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgOK), map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, response.Msg(i18n.MsgOK), map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "dependency_unready", response.Msg(i18n.MsgServiceUnready), map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cards", func(r chi.Router) {
			r.Use(cardLimiter)
			r.Get("/scan", dep.CardHandler.Scan)
			r.Post("/first-login", dep.CardHandler.FirstLogin)
			r.Post("/verify-pin", dep.CardHandler.VerifyPIN)
			r.Post("/pin-reset/request", dep.CardHandler.RequestPINReset)
			r.Post("/pin-reset/verify", dep.CardHandler.VerifyPINReset)
			r.Post("/pin-reset", dep.CardHandler.ResetPIN)
		})

		r.Route("/redemptions", func(r chi.Router) {
			r.Use(appAuth)
			r.Use(redemptionLimiter)
			r.Post("/otp", dep.RedemptionHandler.RequestOTP)
			r.Post("/otp/verify", dep.RedemptionHandler.VerifyOTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(appAuth)
			r.Use(middleware.RequireAdmin)
			r.With(idempotent(IdempotencyScopeCreateCard)...).Post("/cards", dep.AdminHandler.CreateCard)
			r.Post("/cards/activate", dep.AdminHandler.ActivateCard)
			r.Patch("/cards/deactivate", dep.AdminHandler.DeactivateCard)
			r.With(idempotent(IdempotencyScopeRemoveCard)...).Delete("/cards/{id}", dep.AdminHandler.RemoveCard)
			r.Get("/qr-codes", dep.AdminHandler.ListQRCodes)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
