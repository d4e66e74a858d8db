package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flashsale-gateway/waitingroom"
	"flashsale-gateway/waitingroom/application"
	"flashsale-gateway/waitingroom/domain"
	"flashsale-gateway/waitingroom/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("flashsale stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("flashsale stopped")
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promStats, err := infra.NewPrometheusStats(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	stats := infra.MultiStats{promStats}

	// Sem Redis os contadores ficam em memória e saem no log ao encerrar.
	var memStats *infra.MemoryStatsStore
	var saleStore domain.SaleStore = infra.NewMemorySaleStore()
	if cfg.redisAddr == "" {
		memStats = infra.NewMemoryStatsStore(infra.WithTrackSessions(cfg.statsTrackSessions))
		stats = append(stats, memStats)
	} else {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		saleStore = infra.NewRedisSaleStore(rdb, infra.WithSalePrefix(cfg.salePrefix))
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsTrackSessions(cfg.statsTrackSessions),
		))
	}

	products := infra.SeedProducts()
	catalog, err := infra.NewMemoryCatalog(products)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	ids, err := infra.NewSnowflakeIDs(cfg.nodeID)
	if err != nil {
		return err
	}

	inv := application.NewInventory(products)
	sale := application.NewSaleService(saleStore, application.WithSaleLogger(log.Named("sale")))

	ctrlOpts := []application.AdmissionOption{
		application.WithStats(stats),
		application.WithLogger(log.Named("admission")),
	}
	var release *infra.Store
	if cfg.releaseRPS > 0 {
		release = infra.NewStore(cfg.releaseRPS, cfg.releaseBurst)
		ctrlOpts = append(ctrlOpts, application.WithReleaseLimiters(release))
	}
	ctrl := application.NewAdmissionController(application.AdmissionConfig{
		SeedAdmissions:    cfg.seedAdmissions,
		AvgProcessingTime: cfg.avgProcessingTime,
		MaxQueueSize:      cfg.queueMax,
		RequireSale:       cfg.requireSale,
	}, infra.NewMemoryTokenStore(infra.WithTokenTTL(cfg.tokenTTL)), inv, sale, ctrlOpts...)

	ledger := application.NewPurchaseLedger(
		application.LedgerConfig{MaxQuantity: cfg.maxQuantity},
		catalog, inv, ctrl, sale, ids,
		application.WithLedgerStats(stats),
		application.WithLedgerLogger(log.Named("ledger")),
	)

	cache := infra.NewViewCache(cfg.catalogCacheTTL)
	catalogSvc := application.NewCatalogService(catalog, inv, sale, cache, log.Named("catalog"))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "waitingroom",
		Name:      "catalog_cache_entries",
		Help:      "Priced product views currently cached.",
	}, func() float64 { return float64(cache.Len()) }))

	sale.Subscribe(ctrl, catalogSvc)
	for _, p := range products {
		ctrl.Register(p.ID)
	}
	reg.MustRegister(infra.NewWindowCollector(ctrl))

	var pool domain.SlotPool
	if cfg.concurrencyMax > 0 {
		pool = infra.NewChanPool(cfg.concurrencyMax)
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "waitingroom",
			Name:      "purchase_slots_in_use",
			Help:      "Purchases currently holding a concurrency slot.",
		}, func() float64 { return float64(infra.InUse(pool)) }))
	}

	var throttleStore *infra.Store
	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.rateEnabled {
		throttleStore = infra.NewStore(cfg.rateRPS, cfg.rateBurst)
		throttle = waitingroom.ThrottleMiddleware(waitingroom.ThrottleOptions{
			Store:               throttleStore,
			Stats:               stats,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})
	}

	handler := waitingroom.NewHandler(waitingroom.Options{
		Prefix:    cfg.apiPrefix,
		Queue:     ctrl,
		Purchases: ledger,
		Sale:      sale,
		Products:  catalogSvc,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:    log.Named("http"),
		Throttle:  throttle,
		PurchaseGuard: waitingroom.ConcurrencyMiddleware(waitingroom.ConcurrencyOptions{
			Pool:           pool,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		}),
		AllowedOrigins: cfg.corsOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	log.Info("flashsale listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("prefix", cfg.apiPrefix),
		zap.Int("products", len(products)),
		zap.Bool("redis", cfg.redisAddr != ""),
	)
	log.Info("admission",
		zap.Duration("token_ttl", cfg.tokenTTL),
		zap.Int("seed", cfg.seedAdmissions),
		zap.Float64("release_rps", cfg.releaseRPS),
		zap.Int("release_burst", cfg.releaseBurst),
		zap.Int("queue_max", cfg.queueMax),
		zap.Bool("require_sale", cfg.requireSale),
	)
	log.Info("traffic",
		zap.Bool("rate_enabled", cfg.rateEnabled),
		zap.Float64("rate_rps", cfg.rateRPS),
		zap.Int("rate_burst", cfg.rateBurst),
		zap.Int("concurrency_max", cfg.concurrencyMax),
		zap.Duration("concurrency_timeout", cfg.concurrencyTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ctrl.Run(gctx, cfg.sweepEvery) })
	if release != nil {
		g.Go(func() error { return release.Run(gctx) })
	}
	if throttleStore != nil {
		g.Go(func() error { return throttleStore.Run(gctx) })
	}
	g.Go(func() error {
		cache.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cache.Stop()
		return nil
	})
	err = g.Wait()
	if memStats != nil {
		logTotals(log, memStats)
	}
	return err
}

func logTotals(log *zap.Logger, s *infra.MemoryStatsStore) {
	total := s.Total()
	log.Info("waiting room totals",
		zap.Int64("entered", total.Entered),
		zap.Int64("admitted", total.Admitted),
		zap.Int64("purchased", total.Purchased),
		zap.Int64("units", total.Units),
		zap.Int64("rejected", total.Rejected),
		zap.Int64("expired", total.Expired),
		zap.Int64("throttled", total.Throttled),
		zap.Any("rejections", s.ByReason()),
	)
	for id, c := range s.ByProduct() {
		log.Debug("product totals",
			zap.Int64("product_id", int64(id)),
			zap.Int64("entered", c.Entered),
			zap.Int64("purchased", c.Purchased),
			zap.Int64("units", c.Units),
		)
	}
}
