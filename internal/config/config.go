package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OTPRedisPrefix string

	JWTIssuer      string
	ScanJWTSecret  string
	AppJWTSecret   string
	ResetJWTSecret string
	AppTokenTTL    time.Duration
	ResetTokenTTL  time.Duration
	PINHashCost    int

	RecoveryOTPTTL           time.Duration
	RedemptionOTPTTL         time.Duration
	OTPMaxGenerationAttempts int
	CardNumberMaxAttempts    int

	PublicBaseURL    string
	QRStorageEnabled bool
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOBucket      string
	MinIOUseSSL      bool

	QRListCacheEnabled bool
	QRListCacheTTL     time.Duration

	DefaultLocale      string
	CORSAllowedOrigins []string

	CardRateLimitPerMin   int
	APIRateLimitPerMin    int
	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string

	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	localLike := isLocalLikeEnv(env)

	cfg := &Config{
		Env:                      env,
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		OTPRedisPrefix:           getEnv("OTP_REDIS_PREFIX", "otp"),
		JWTIssuer:                getEnv("JWT_ISSUER", "whitecard-backend"),
		ScanJWTSecret:            os.Getenv("SCAN_JWT_SECRET"),
		AppJWTSecret:             os.Getenv("APP_JWT_SECRET"),
		ResetJWTSecret:           os.Getenv("RESET_JWT_SECRET"),
		PINHashCost:              getEnvInt("PIN_HASH_COST", 10),
		OTPMaxGenerationAttempts: getEnvInt("OTP_MAX_GENERATION_ATTEMPTS", 20),
		CardNumberMaxAttempts:    getEnvInt("CARD_NUMBER_MAX_ATTEMPTS", 10),
		PublicBaseURL:            strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		QRStorageEnabled:         getEnvBool("QR_STORAGE_ENABLED", false),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:           os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:           os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:              getEnv("MINIO_BUCKET", "card-qr-codes"),
		MinIOUseSSL:              getEnvBool("MINIO_USE_SSL", !localLike),
		QRListCacheEnabled:       getEnvBool("QR_LIST_CACHE_ENABLED", true),
		DefaultLocale:            strings.ToLower(getEnv("DEFAULT_LOCALE", "ar")),
		CORSAllowedOrigins:       splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		CardRateLimitPerMin:      getEnvInt("CARD_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:       getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		RateLimitRedisEnabled:    getEnvBool("RATE_LIMIT_REDIS_ENABLED", !localLike),
		RateLimitRedisPrefix:     getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "whitecard-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", !localLike),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", !localLike),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"APP_TOKEN_TTL", "1h", &cfg.AppTokenTTL},
		{"RESET_TOKEN_TTL", "5m", &cfg.ResetTokenTTL},
		{"RECOVERY_OTP_TTL", "300s", &cfg.RecoveryOTPTTL},
		{"REDEMPTION_OTP_TTL", "1800s", &cfg.RedemptionOTPTTL},
		{"QR_LIST_CACHE_TTL", "30s", &cfg.QRListCacheTTL},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required")
	}
	if len(c.ScanJWTSecret) < 32 {
		errs = append(errs, "SCAN_JWT_SECRET must be at least 32 chars")
	}
	if len(c.AppJWTSecret) < 32 {
		errs = append(errs, "APP_JWT_SECRET must be at least 32 chars")
	}
	if len(c.ResetJWTSecret) < 32 {
		errs = append(errs, "RESET_JWT_SECRET must be at least 32 chars")
	}
	if c.ScanJWTSecret != "" && (c.ScanJWTSecret == c.AppJWTSecret || c.ScanJWTSecret == c.ResetJWTSecret) {
		errs = append(errs, "SCAN_JWT_SECRET must differ from APP_JWT_SECRET and RESET_JWT_SECRET")
	}
	if c.AppJWTSecret != "" && c.AppJWTSecret == c.ResetJWTSecret {
		errs = append(errs, "APP_JWT_SECRET and RESET_JWT_SECRET must differ")
	}
	if c.AppTokenTTL <= 0 || c.AppTokenTTL > 24*time.Hour {
		errs = append(errs, "APP_TOKEN_TTL must be between 1s and 24h")
	}
	if c.ResetTokenTTL <= 0 || c.ResetTokenTTL > time.Hour {
		errs = append(errs, "RESET_TOKEN_TTL must be between 1s and 1h")
	}
	if c.PINHashCost < 4 || c.PINHashCost > 31 {
		errs = append(errs, "PIN_HASH_COST must be between 4 and 31")
	}
	if c.RecoveryOTPTTL <= 0 {
		errs = append(errs, "RECOVERY_OTP_TTL must be > 0")
	}
	if c.RedemptionOTPTTL <= 0 {
		errs = append(errs, "REDEMPTION_OTP_TTL must be > 0")
	}
	if c.OTPMaxGenerationAttempts <= 0 {
		errs = append(errs, "OTP_MAX_GENERATION_ATTEMPTS must be > 0")
	}
	if c.CardNumberMaxAttempts <= 0 {
		errs = append(errs, "CARD_NUMBER_MAX_ATTEMPTS must be > 0")
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, "PUBLIC_BASE_URL is required")
	}
	if c.QRStorageEnabled {
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			errs = append(errs, "MINIO_ENDPOINT and MINIO_BUCKET are required when QR_STORAGE_ENABLED=true")
		}
		if c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			errs = append(errs, "MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when QR_STORAGE_ENABLED=true")
		}
	}
	if c.QRListCacheEnabled && (c.QRListCacheTTL <= 0 || c.QRListCacheTTL > 5*time.Minute) {
		errs = append(errs, "QR_LIST_CACHE_TTL must be between 1s and 5m when QR_LIST_CACHE_ENABLED=true")
	}
	if !isSupportedLocale(c.DefaultLocale) {
		errs = append(errs, "DEFAULT_LOCALE must be one of ar, en")
	}
	if c.CardRateLimitPerMin <= 0 {
		errs = append(errs, "CARD_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RateLimitRedisEnabled && c.RateLimitRedisPrefix == "" {
		errs = append(errs, "RATE_LIMIT_REDIS_PREFIX is required when RATE_LIMIT_REDIS_ENABLED=true")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ServerStartGracePeriod < 0 {
		errs = append(errs, "SERVER_START_GRACE_PERIOD must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if !isLocalLikeEnv(c.Env) {
		if !strings.HasPrefix(c.PublicBaseURL, "https://") {
			errs = append(errs, "PUBLIC_BASE_URL must use https outside local environments")
		}
		if !c.RateLimitRedisEnabled {
			errs = append(errs, "RATE_LIMIT_REDIS_ENABLED must be true outside local environments")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ScanURL is the address encoded into a card's QR image.
func (c *Config) ScanURL(cardID string) string {
	return c.PublicBaseURL + "/api/v1/cards/scan?card=" + cardID
}

// IsLocal reports whether the environment is a developer or test setup.
func (c *Config) IsLocal() bool { return isLocalLikeEnv(c.Env) }

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isSupportedLocale(v string) bool {
	switch v {
	case "ar", "en":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
