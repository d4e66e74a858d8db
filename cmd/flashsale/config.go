package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type config struct {
	listenAddr string
	apiPrefix  string
	corsOrigin []string

	tokenTTL          time.Duration
	seedAdmissions    int
	releaseRPS        float64
	releaseBurst      int
	avgProcessingTime time.Duration
	queueMax          int
	requireSale       bool
	maxQuantity       int
	sweepEvery        time.Duration
	nodeID            int64
	catalogCacheTTL   time.Duration

	rateEnabled        bool
	rateRPS            float64
	rateBurst          int
	trustXFF           bool
	retryAfter         time.Duration
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	redisAddr          string
	redisPassword      string
	redisDB            int
	salePrefix         string
	statsPrefix        string
	statsTTL           time.Duration
	statsTrackSessions bool

	logLevel  string
	logFormat string
}

// readConfig lê flags; o default de cada flag vem da variável de ambiente
// correspondente, então as duas formas funcionam.
func readConfig(args []string) (config, error) {
	cfg := config{}
	fs := pflag.NewFlagSet("flashsale", pflag.ContinueOnError)

	fs.StringVar(&cfg.listenAddr, "listen", getenvDefault("LISTEN_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.apiPrefix, "api-prefix", getenvDefault("API_PREFIX", "/api"), "route prefix for the API")
	fs.StringSliceVar(&cfg.corsOrigin, "cors-origins", getenvList("CORS_ORIGINS"), "allowed CORS origins (empty = *)")

	fs.DurationVar(&cfg.tokenTTL, "token-ttl", getenvDurationDefault("QUEUE_TOKEN_TTL", 5*time.Minute), "queue token lifetime")
	fs.IntVar(&cfg.seedAdmissions, "seed", getenvIntDefault("ADMISSION_SEED", 10), "places released when a window opens")
	fs.Float64Var(&cfg.releaseRPS, "release-rps", getenvFloatDefault("ADMISSION_RELEASE_RPS", 2), "background admissions per second per product")
	fs.IntVar(&cfg.releaseBurst, "release-burst", getenvIntDefault("ADMISSION_RELEASE_BURST", 1), "background admission burst")
	fs.DurationVar(&cfg.avgProcessingTime, "avg-processing", getenvDurationDefault("AVG_PROCESSING_TIME", 100*time.Millisecond), "wait estimate per position")
	fs.IntVar(&cfg.queueMax, "queue-max", getenvIntDefault("QUEUE_MAX", 10000), "max unconsumed entries per product (0 = unlimited)")
	fs.BoolVar(&cfg.requireSale, "require-sale", getenvBoolDefault("REQUIRE_SALE", true), "admit only while the sale is active")
	fs.IntVar(&cfg.maxQuantity, "max-quantity", getenvIntDefault("MAX_QUANTITY", 5), "max units per purchase")
	fs.DurationVar(&cfg.sweepEvery, "sweep-every", getenvDurationDefault("SWEEP_EVERY", 5*time.Second), "expired token sweep interval")
	fs.Int64Var(&cfg.nodeID, "node-id", int64(getenvIntDefault("NODE_ID", 1)), "snowflake node id for order ids")
	fs.DurationVar(&cfg.catalogCacheTTL, "catalog-cache-ttl", getenvDurationDefault("CATALOG_CACHE_TTL", 30*time.Second), "priced product view cache TTL")

	fs.BoolVar(&cfg.rateEnabled, "rate-enabled", getenvBoolDefault("RATE_ENABLED", true), "per-client throttling")
	fs.Float64Var(&cfg.rateRPS, "rate-rps", getenvFloatDefault("RATE_RPS", 10), "requests per second per client IP")
	fs.BoolVar(&cfg.trustXFF, "trust-xff", getenvBoolDefault("TRUST_XFF", false), "key the throttle by the first X-Forwarded-For address")
	fs.DurationVar(&cfg.retryAfter, "retry-after", getenvDurationDefault("RETRY_AFTER", 1*time.Second), "Retry-After sent when throttled")
	fs.BoolVar(&cfg.addHeaders, "ratelimit-headers", getenvBoolDefault("ADD_RATELIMIT_HEADERS", false), "send X-RateLimit-* headers")
	fs.IntVar(&cfg.concurrencyMax, "concurrency-max", getenvIntDefault("CONCURRENCY_MAX", 100), "concurrent purchases (0 = unlimited)")
	fs.DurationVar(&cfg.concurrencyTimeout, "concurrency-timeout", getenvDurationDefault("CONCURRENCY_TIMEOUT", 2*time.Second), "wait for a purchase slot")

	fs.StringVar(&cfg.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address; empty keeps sale state and stats in memory")
	fs.StringVar(&cfg.redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	fs.IntVar(&cfg.redisDB, "redis-db", getenvIntDefault("REDIS_DB", 0), "Redis database")
	fs.StringVar(&cfg.salePrefix, "sale-prefix", getenvDefault("SALE_PREFIX", "flashsale:sale"), "Redis key prefix for the sale flag")
	fs.StringVar(&cfg.statsPrefix, "stats-prefix", getenvDefault("STATS_PREFIX", "waitingroom:stats"), "Redis key prefix for stats")
	fs.DurationVar(&cfg.statsTTL, "stats-ttl", getenvDurationDefault("STATS_TTL", 24*time.Hour), "TTL of per-minute and per-session stats")
	fs.BoolVar(&cfg.statsTrackSessions, "stats-track-sessions", getenvBoolDefault("STATS_TRACK_SESSIONS", false), "keep per-session counters")

	fs.StringVar(&cfg.logLevel, "log-level", getenvDefault("LOG_LEVEL", "info"), "debug, info, warn, error")
	fs.StringVar(&cfg.logFormat, "log-format", getenvDefault("LOG_FORMAT", "json"), "json or console")

	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 pode dar a impressão de que
	// o limiter não está funcionando, porque as primeiras ~20 passam.
	burst, burstSet := getenvInt("RATE_BURST")
	fs.IntVar(&cfg.rateBurst, "rate-burst", burst, "throttle burst per client IP")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if !burstSet && !fs.Changed("rate-burst") {
		cfg.rateBurst = 20
		if cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.apiPrefix = "/" + strings.Trim(cfg.apiPrefix, "/")

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (cfg config) validate() error {
	switch {
	case cfg.tokenTTL <= 0:
		return errors.New("QUEUE_TOKEN_TTL must be > 0")
	case cfg.seedAdmissions < 0:
		return errors.New("ADMISSION_SEED must be >= 0")
	case cfg.releaseRPS < 0:
		return errors.New("ADMISSION_RELEASE_RPS must be >= 0")
	case cfg.releaseRPS > 0 && cfg.releaseBurst <= 0:
		return errors.New("ADMISSION_RELEASE_BURST must be > 0")
	case cfg.avgProcessingTime < 0:
		return errors.New("AVG_PROCESSING_TIME must be >= 0")
	case cfg.queueMax < 0:
		return errors.New("QUEUE_MAX must be >= 0")
	case cfg.maxQuantity <= 0:
		return errors.New("MAX_QUANTITY must be > 0")
	case cfg.nodeID < 0 || cfg.nodeID > 1023:
		return errors.New("NODE_ID must be between 0 and 1023")
	case cfg.rateEnabled && cfg.rateRPS <= 0:
		return errors.New("RATE_RPS must be > 0")
	case cfg.rateEnabled && cfg.rateBurst <= 0:
		return errors.New("RATE_BURST must be > 0")
	case cfg.concurrencyMax < 0:
		return errors.New("CONCURRENCY_MAX must be >= 0")
	case cfg.redisDB < 0:
		return errors.New("REDIS_DB must be >= 0")
	case cfg.logFormat != "json" && cfg.logFormat != "console":
		return errors.New("LOG_FORMAT must be json or console")
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvList(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvIntDefault(k string, def int) int {
	if i, ok := getenvInt(k); ok {
		return i
	}
	return def
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
