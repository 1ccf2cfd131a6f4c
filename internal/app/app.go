package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/marketplace/internal/auth"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/notify"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/idempotency"
	"github.com/vladislavdragonenkov/marketplace/internal/service/orders"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

const readHeaderTimeout = 10 * time.Second

// application: собранные компоненты одного экземпляра сервиса.
type application struct {
	cfg    Config
	logger *log.Entry

	deps   runtimeDependencies
	hub    *notify.Hub
	api    http.Handler
	health *healthcheck.Handler

	producer *kafka.Producer
	relay    *kafka.Consumer
	outbox   *outbox.Worker
	cleanup  *idempotency.CleanupWorker
}

// newApplication собирает зависимости по конфигурации.
// При ошибке уже открытые ресурсы закрываются.
func newApplication(ctx context.Context, cfg Config, logger *log.Entry) (_ *application, err error) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	logger = logger.WithField("instance_id", cfg.InstanceID)

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &application{cfg: cfg, logger: logger, deps: deps}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	hubMetrics := metrics.NewHubMetrics()
	a.hub = notify.NewHub(logger.WithField("component", "notify-hub"), hubMetrics)

	// Без Kafka outbox некому разбирать, поэтому сообщения в него не пишутся.
	a.producer, _ = initKafkaProducer(cfg.brokers(), logger)

	engineOptions := []orders.Option{
		orders.WithNotifier(a.hub),
		orders.WithTimeline(deps.timelineRepo),
		orders.WithLogger(logger.WithField("component", "order-engine")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithPricePolicy(cfg.PricePolicy),
		orders.WithTransitionPolicy(cfg.TransitionPolicy),
		orders.WithInstanceID(cfg.InstanceID),
	}
	if a.producer != nil {
		engineOptions = append(engineOptions, orders.WithOutbox(deps.outboxRepo))
		a.outbox = outbox.NewWorker(
			deps.outboxRepo,
			kafka.NewOutboxPublisher(a.producer, kafka.TopicOrderEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(a.producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
	}
	engine, err := orders.NewEngine(deps.orders, deps.catalog, engineOptions...)
	if err != nil {
		return nil, fmt.Errorf("create order engine: %w", err)
	}

	relay := notify.NewRelay(a.hub, cfg.InstanceID, logger.WithField("component", "notify-relay"), hubMetrics)
	a.relay, _ = initRelayConsumer(cfg, a.hub, relay, logger)

	authOptions := []auth.Option{auth.WithLogger(logger.WithField("component", "auth"))}
	if !cfg.LegacyTokensUntil.IsZero() {
		authOptions = append(authOptions, auth.WithLegacyTokensUntil(cfg.LegacyTokensUntil))
	}
	authenticator, err := auth.NewAuthenticator([]byte(cfg.JWTSecret), deps.users, authOptions...)
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}

	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("component", "idempotency-guard"))
	a.cleanup = idempotency.NewCleanupWorker(
		deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithSchedule(cfg.IdempotencyCleanupSchedule),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	server, err := httpapi.NewServer(httpapi.Dependencies{
		Orders:  engine,
		Catalog: catalog.NewService(deps.catalog, logger.WithField("component", "catalog")),
		Auth:    authenticator,
		Hub:     a.hub,
		Guard:   guard,
		Metrics: metrics.NewHTTPMetrics(),
		Logger:  logger.WithField("layer", "http"),
	}, httpapi.Limits{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
	if err != nil {
		return nil, fmt.Errorf("create http api: %w", err)
	}
	a.api = server.Handler()

	a.health = healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		a.health.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", deps.storageChecker))
	}
	if a.outbox != nil {
		a.health.RegisterChecker("outbox", healthcheck.NewOptionalChecker("outbox", a.outboxBacklogCheck))
	}

	return a, nil
}

// outboxBacklogCheck сообщает о деградации, когда backlog превысил порог.
func (a *application) outboxBacklogCheck(ctx context.Context) error {
	stats, err := a.deps.outboxRepo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("outbox stats: %w", err)
	}
	if a.cfg.OutboxMaxPending > 0 && stats.PendingCount > a.cfg.OutboxMaxPending {
		return fmt.Errorf("outbox backlog %d exceeds %d", stats.PendingCount, a.cfg.OutboxMaxPending)
	}
	return nil
}

// close освобождает ресурсы, которые не привязаны к ctx.
func (a *application) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	stopConsumer(a.relay, a.logger)
	closeKafka(a.producer, a.logger)
	if err := a.deps.close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}
}

// Run собирает приложение и обслуживает запросы до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

func (a *application) run(ctx context.Context) error {
	logger := a.logger

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcLis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		a.close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	apiLis, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		a.close()
		return fmt.Errorf("listen http: %w", err)
	}

	metricsSrv := startMetricsServer(ctx, a.cfg.MetricsAddr, logger, a.health)
	apiSrv := &http.Server{Handler: a.api, ReadHeaderTimeout: readHeaderTimeout}

	// Фоновые воркеры живут до отмены workersCtx.
	workersCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	var workers sync.WaitGroup
	if a.outbox != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			a.outbox.Run(workersCtx)
		}()
	}
	workers.Add(1)
	go func() {
		defer workers.Done()
		a.cleanup.Run(workersCtx)
	}()
	if a.relay != nil {
		if err := a.relay.Start(workersCtx); err != nil {
			logger.WithError(err).Warn("failed to start kafka relay")
		}
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopGRPC(grpcServer, a.cfg.ShutdownTimeout, logger)
	shutdownHTTP(apiSrv, a.cfg.ShutdownTimeout, logger)
	shutdownHTTP(metricsSrv, a.cfg.ShutdownTimeout, logger)

	stopWorkers()
	workers.Wait()
	a.close()

	return runErr
}

// stopGRPC дожидается GracefulStop не дольше timeout.
func stopGRPC(srv *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает /metrics и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
