package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/gateway/mercadopago"
	healthcheck "github.com/vizinhos/orders/internal/health"
	"github.com/vizinhos/orders/internal/httpapi"
	"github.com/vizinhos/orders/internal/service/idempotency"
	"github.com/vizinhos/orders/internal/service/order"
	"github.com/vizinhos/orders/internal/version"
)

// Run собирает зависимости и запускает HTTP API, фоновую сверку статусов и
// очистку idempotency ключей. Блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	gateway := mercadopago.NewClient(cfg.GatewayBaseURL, logger.WithField("component", "mercadopago"))

	// Kafka опциональна: без брокеров события просто не публикуются.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	manager := createManager(deps, gateway, producer)

	reconciler := order.NewReconciler(
		manager,
		deps.Orders,
		logger.WithField("component", "reconciler"),
		order.WithReconcileInterval(cfg.ReconcileInterval),
		order.WithReconcileBatchSize(cfg.ReconcileBatchSize),
	)

	cleanupWorker := idempotency.NewCleanupWorker(
		deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	serviceVersion, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(serviceVersion)
	if deps.Store != nil {
		healthHandler.Register("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		})
	}
	healthHandler.Register("mercadopago", gatewayReachabilityCheck(cfg.GatewayBaseURL))

	opsSrv := startOpsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiServer := httpapi.NewServer(manager, deps.Idempotency, logger.WithField("layer", "http"))
	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go cleanupWorker.Run(workerCtx)
	go func() {
		if err := reconciler.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Warn("reconciler stopped with error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		stopWorkers()
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		closeKafka(producer, logger)
		return ctx.Err()
	case err := <-errCh:
		stopWorkers()
		shutdownHTTP(opsSrv, logger)
		closeKafka(producer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// gatewayReachabilityCheck проверяет сетевую доступность платёжного
// провайдера. Любой HTTP-ответ считается успехом: без платёжного токена
// провайдер отвечает 4xx, но соединение при этом живое.
func gatewayReachabilityCheck(baseURL string) healthcheck.CheckFunc {
	client := &http.Client{Timeout: 2 * time.Second}
	return func() error {
		req, err := http.NewRequest(http.MethodHead, baseURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// newOpsMux собирает служебные маршруты: метрики и health-пробы.
func newOpsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startOpsServer запускает служебный HTTP-листенер.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newOpsMux(healthHandler)}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
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
