package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orders/internal/service/order"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/service/rest"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

// Run собирает зависимости и запускает HTTP API, сервер метрик и фоновые
// воркеры. Блокируется до отмены ctx или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опциональна: без брокеров события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var engine *order.Engine
	engineLogger := logger.WithField("layer", "engine")
	if kafkaProducer != nil {
		engine = order.NewEngineWithKafka(
			deps.customers, deps.products, deps.repo, deps.uow,
			deps.outboxRepo, deps.timelineRepo, kafkaProducer, engineLogger,
		)
	} else {
		engine = order.NewEngine(
			deps.customers, deps.products, deps.repo, deps.uow,
			deps.outboxRepo, deps.timelineRepo, engineLogger,
		)
	}
	query := order.NewQuery(deps.repo, deps.timelineRepo, logger.WithField("layer", "query"))
	api := rest.NewAPI(engine, query, deps.idempotencyRepo, logger.WithField("layer", "rest"))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", deps.storageCheck))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	// Фоновые воркеры живут до конца graceful shutdown, не до отмены ctx:
	// им нужно успеть дообработать хвост.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicOrderEvents)
		dlq := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(deps.outboxRepo, publisher,
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithDLQPublisher(dlq),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(workerCtx)
		}()
	}

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanupWorker.Run(workerCtx)
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		stopWorkers()
		workers.Wait()
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		stopWorkers()
		workers.Wait()
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health-проверки.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
