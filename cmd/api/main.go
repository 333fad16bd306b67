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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/sitelead-ai/cmd/mainconfig"
	"github.com/wolfman30/sitelead-ai/internal/api/router"
	"github.com/wolfman30/sitelead-ai/internal/app/bootstrap"
	"github.com/wolfman30/sitelead-ai/internal/business"
	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/internal/digest"
	"github.com/wolfman30/sitelead-ai/internal/dispatch"
	"github.com/wolfman30/sitelead-ai/internal/events"
	httpmiddleware "github.com/wolfman30/sitelead-ai/internal/http/middleware"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/internal/support"
	"github.com/wolfman30/sitelead-ai/internal/webchat"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const (
	shutdownTimeout = 30 * time.Second
	rateLimitWindow = time.Second
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sitelead API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	app, err := buildApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.shutdown(ctx)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application is everything main owns besides the HTTP server.
type application struct {
	handler    http.Handler
	dispatcher *dispatch.Dispatcher
	cancel     context.CancelFunc
	closers    []func()
	logger     *logging.Logger
}

// shutdown drains queued side effects, stops the workers and the digest
// scheduler, then releases connections.
func (a *application) shutdown(ctx context.Context) {
	if err := a.dispatcher.Drain(ctx); err != nil {
		a.logger.Warn("dispatch queue not drained before shutdown", "pending", a.dispatcher.Pending(), "error", err)
	}
	a.cancel()
	a.dispatcher.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	metricsHandler, chatMetrics := setupMetrics()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	app := &application{logger: logger}
	ok := false
	defer func() {
		if !ok {
			for i := len(app.closers) - 1; i >= 0; i-- {
				app.closers[i]()
			}
		}
	}()

	db, err := bootstrap.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, db.Close)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	var businesses business.Provider = business.StaticProvider{}
	businessStore := bootstrap.BuildBusinessStore(redisClient)
	if businessStore != nil {
		businesses = businessStore
	}

	leadsRepo := bootstrap.BuildLeadsRepository(db)
	supportSvc := support.NewService(bootstrap.BuildSupportStore(db), logger)
	history := bootstrap.BuildConversationStore(db, logger)
	notifier := bootstrap.BuildNotifier(cfg, awsCfg, chatMetrics, logger)

	publisher, closePublisher, err := bootstrap.BuildPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closePublisher)

	queue, err := bootstrap.BuildDispatchQueue(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := setupDispatcher(cfg, queue, dispatch.Deps{
		Leads:      leadsRepo,
		Support:    supportSvc,
		Notifier:   notifier,
		Businesses: businesses,
		Publisher:  publisher,
		History:    history,
		Logger:     logger,
	}, db, chatMetrics, logger)

	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	engine, err := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		Sessions:   bootstrap.BuildSessionStore(cfg, redisClient, chatMetrics, logger),
		Businesses: businesses,
		LLM:        llmClient,
		Effects:    dispatcher,
		Metrics:    chatMetrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.dispatcher = dispatcher
	dispatcher.Start(workerCtx)
	startDigest(workerCtx, cfg, businesses, businessStore, leadsRepo, supportSvc, notifier, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(engine, history, logger),
		WebChatHandler: webchat.NewHandler(engine, logger,
			webchat.WithAllowedOrigins(cfg.CORSAllowedOrigins),
			webchat.WithHistory(history),
		),
		LeadsHandler:       leads.NewHandler(leadsRepo, logger, leads.WithCreatedHook(dispatcher.LeadStored)),
		SupportHandler:     support.NewHandler(supportSvc, logger),
		MetricsHandler:     metricsHandler,
		ReadinessChecks:    readinessChecks(db, redisClient),
		DefaultBusinessID:  cfg.DefaultBusinessID,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        setupRateLimiter(workerCtx, cfg, redisClient),
	}
	if businessStore != nil {
		routerCfg.BusinessHandler = business.NewHandler(businessStore, logger)
	}
	app.handler = router.New(routerCfg)

	ok = true
	return app, nil
}

// setupMetrics builds a private registry so tests can build more than one.
func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewChatMetrics(registry)
}

func setupDispatcher(cfg *appconfig.Config, queue dispatch.Queue, deps dispatch.Deps, db *bootstrap.Database, m *metrics.ChatMetrics, logger *logging.Logger) *dispatch.Dispatcher {
	opts := []dispatch.Option{
		dispatch.WithWorkerCount(cfg.DispatchWorkers),
		dispatch.WithMetrics(m),
		dispatch.WithLogger(logger),
	}
	if db.Enabled() {
		opts = append(opts, dispatch.WithJobLedger(events.NewJobLedger(db.Pool)))
	}
	return dispatch.New(queue, dispatch.NewHandler(deps), opts...)
}

func startDigest(ctx context.Context, cfg *appconfig.Config, businesses business.Provider, store *business.Store, repo leads.Repository, svc *support.Service, notifier digest.Sender, logger *logging.Logger) {
	opts := []digest.Option{
		digest.WithBusinessIDs(cfg.DefaultBusinessID),
		digest.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, digest.WithLister(store))
	}
	runner := digest.NewRunner(businesses, repo, svc, notifier, opts...)
	scheduler := digest.NewScheduler(runner, cfg.DigestSchedule, logger)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("digest scheduler stopped", "error", err)
		}
	}()
}

// setupRateLimiter shares counters across replicas when Redis is available.
func setupRateLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client) httpmiddleware.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	if redisClient != nil {
		limit := int(cfg.RateLimitRPS)
		if cfg.RateLimitBurst > limit {
			limit = cfg.RateLimitBurst
		}
		return httpmiddleware.NewRedisRateLimiter(redisClient, limit, rateLimitWindow)
	}
	return httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
}

func readinessChecks(db *bootstrap.Database, redisClient *redis.Client) map[string]router.Check {
	checks := map[string]router.Check{}
	if db.Enabled() {
		checks["postgres"] = db.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
