package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/whitecard/whitecard-backend/internal/app"
	"github.com/whitecard/whitecard-backend/internal/config"
	"github.com/whitecard/whitecard-backend/internal/database"
	"github.com/whitecard/whitecard-backend/internal/health"
	"github.com/whitecard/whitecard-backend/internal/http/handler"
	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/http/router"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/otpstore"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
	"github.com/whitecard/whitecard-backend/internal/service"
)

const (
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idem"
	qrListCachePrefix = "qrlist"
	qrImageSize       = 512
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideQRStorage,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewCardRepository,
	repository.NewQRCodeRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	providePINHasher,
	provideQREncoder,
	wire.Bind(new(service.TokenIssuer), new(*security.JWTManager)),
	wire.Bind(new(middleware.AppTokenParser), new(*security.JWTManager)),
)

var ServiceSet = wire.NewSet(
	provideOTPStore,
	provideOTPNotifier,
	provideListCache,
	provideRedemptionService,
	provideCardService,
	provideCardAdminService,
	wire.Bind(new(service.CardServiceInterface), new(*service.CardService)),
	wire.Bind(new(service.RedemptionServiceInterface), new(*service.RedemptionService)),
	wire.Bind(new(service.CardAdminServiceInterface), new(*service.CardAdminService)),
)

var HTTPSet = wire.NewSet(
	handler.NewCardHandler,
	handler.NewRedemptionHandler,
	handler.NewAdminHandler,
	provideCatalog,
	provideGlobalRateLimiter,
	provideCardRateLimiter,
	provideRedemptionRateLimiter,
	provideIdempotencyFactory,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}

func (m *MigrationRunner) DB() *gorm.DB { return m.db }

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// provideRedisClient always returns a client: OTP records live in redis
// regardless of the rate limiter backend.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger,
		observability.RedisKeyspace{Name: "otp", Prefix: cfg.OTPRedisPrefix + ":"},
		observability.RedisKeyspace{Name: "rate_limit", Prefix: cfg.RateLimitRedisPrefix + ":"},
		observability.RedisKeyspace{Name: "idempotency", Prefix: idempotencyPrefix + ":"},
		observability.RedisKeyspace{Name: "qr_list_cache", Prefix: qrListCachePrefix + ":"},
	)
	return client
}

func provideQRStorage(cfg *config.Config) (service.QRStorage, error) {
	if !cfg.QRStorageEnabled {
		return service.NoopQRStorage{}, nil
	}
	storage, err := service.NewMinIOQRStorage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
	if err != nil {
		return nil, fmt.Errorf("init qr storage: %w", err)
	}
	return storage, nil
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.ScanJWTSecret, cfg.AppJWTSecret, cfg.ResetJWTSecret, cfg.AppTokenTTL, cfg.ResetTokenTTL)
}

func providePINHasher(cfg *config.Config) security.PINHasher {
	return security.NewBcryptPINHasher(cfg.PINHashCost)
}

func provideQREncoder() security.QREncoder {
	return security.NewPNGQREncoder(qrImageSize)
}

func provideOTPStore(cfg *config.Config, client redis.UniversalClient) otpstore.Store {
	return otpstore.NewRedisStore(client, cfg.OTPRedisPrefix, otpstore.TTLs{
		Recovery:   cfg.RecoveryOTPTTL,
		Redemption: cfg.RedemptionOTPTTL,
	})
}

// provideOTPNotifier logs codes in local environments. Elsewhere only the
// masked destination is logged until an SMS gateway is configured.
func provideOTPNotifier(cfg *config.Config, logger *slog.Logger) service.OTPNotifier {
	if cfg.IsLocal() {
		return service.NewDevOTPNotifier(logger)
	}
	return service.NewLogOnlyOTPNotifier(logger)
}

func provideListCache(cfg *config.Config, client redis.UniversalClient) service.ListCacheStore {
	if !cfg.QRListCacheEnabled || client == nil {
		return service.NoopListCacheStore{}
	}
	return service.NewRedisListCacheStore(client, qrListCachePrefix)
}

func provideRedemptionService(cfg *config.Config, cards repository.CardRepository, store otpstore.Store, tokens service.TokenIssuer, notifier service.OTPNotifier) *service.RedemptionService {
	return service.NewRedemptionService(cards, store, tokens, notifier, service.RedemptionServiceOptions{
		MaxCodeAttempts: cfg.OTPMaxGenerationAttempts,
		RedemptionTTL:   cfg.RedemptionOTPTTL,
	})
}

func provideCardService(
	cfg *config.Config,
	cards repository.CardRepository,
	store otpstore.Store,
	hasher security.PINHasher,
	tokens service.TokenIssuer,
	notifier service.OTPNotifier,
	redemptions *service.RedemptionService,
) *service.CardService {
	return service.NewCardService(cards, store, hasher, tokens, notifier, redemptions, service.CardServiceOptions{
		MaxCodeAttempts: cfg.OTPMaxGenerationAttempts,
		RecoveryTTL:     cfg.RecoveryOTPTTL,
	})
}

func provideCardAdminService(
	cfg *config.Config,
	cards repository.CardRepository,
	qrCodes repository.QRCodeRepository,
	tokens service.TokenIssuer,
	encoder security.QREncoder,
	storage service.QRStorage,
	listCache service.ListCacheStore,
	logger *slog.Logger,
) *service.CardAdminService {
	return service.NewCardAdminService(cards, qrCodes, tokens, encoder, storage, cfg.ScanURL, logger, service.CardAdminOptions{
		MaxCardNumberAttempts: cfg.CardNumberMaxAttempts,
		ListCache:             listCache,
		ListCacheTTL:          cfg.QRListCacheTTL,
	})
}

func provideCatalog(cfg *config.Config) (*i18n.Catalog, error) {
	return i18n.NewCatalog(cfg.DefaultLocale)
}

func newLimiter(cfg *config.Config, redisClient redis.UniversalClient, limit int, mode middleware.FailureMode, scope string) *middleware.RateLimiter {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix)
		return middleware.NewDistributedRateLimiter(redisLimiter, limit, time.Minute, mode, scope)
	}
	return middleware.NewRateLimiter(limit, time.Minute, scope)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	return newLimiter(cfg, redisClient, cfg.APIRateLimitPerMin, middleware.FailOpen, "api").Middleware()
}

func provideCardRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.CardRateLimiterFunc {
	return newLimiter(cfg, redisClient, cfg.CardRateLimitPerMin, middleware.FailClosed, "card").Middleware()
}

func provideRedemptionRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.RedemptionRateLimiterFunc {
	return newLimiter(cfg, redisClient, cfg.CardRateLimitPerMin, middleware.FailClosed, "redemption").
		WithKeyFunc(middleware.CardKey).
		Middleware()
}

func provideIdempotencyFactory(redisClient redis.UniversalClient) router.IdempotencyMiddlewareFactory {
	if redisClient == nil {
		return nil
	}
	store := service.NewRedisIdempotencyStore(redisClient, idempotencyPrefix)
	return middleware.NewIdempotencyMiddleware(store, idempotencyTTL).Middleware
}

func provideRouterDependencies(
	cardHandler *handler.CardHandler,
	redemptionHandler *handler.RedemptionHandler,
	adminHandler *handler.AdminHandler,
	tokens middleware.AppTokenParser,
	cards repository.CardRepository,
	catalog *i18n.Catalog,
	globalRateLimiter router.GlobalRateLimiterFunc,
	cardRateLimiter router.CardRateLimiterFunc,
	redemptionRateLimiter router.RedemptionRateLimiterFunc,
	idempotency router.IdempotencyMiddlewareFactory,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		CardHandler:       cardHandler,
		RedemptionHandler: redemptionHandler,
		AdminHandler:      adminHandler,
		AppTokens:         tokens,
		Cards:             cards,
		Catalog:           catalog,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		CardRateLimitRPM:  cfg.CardRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		CardRateLimiter:   cardRateLimiter,
		RedemptionLimiter: redemptionRateLimiter,
		Idempotency:       idempotency,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, storage service.QRStorage) *health.ProbeRunner {
	checkers := []health.Checker{
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
	}
	if cfg.QRStorageEnabled {
		checkers = append(checkers, health.NewStorageChecker("qr_storage", storage))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}

// CardIssuer bundles what the card CLI needs to issue cards without the
// HTTP stack.
type CardIssuer struct {
	Config *config.Config
	Admin  *service.CardAdminService
	db     *gorm.DB
	redis  redis.UniversalClient
}

func NewCardIssuer(cfg *config.Config, admin *service.CardAdminService, db *gorm.DB, redisClient redis.UniversalClient) *CardIssuer {
	return &CardIssuer{Config: cfg, Admin: admin, db: db, redis: redisClient}
}

func (c *CardIssuer) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func provideToolLogger(cfg *config.Config) *slog.Logger {
	return observability.NewBootstrapLogger(cfg)
}
