package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/app"
	"github.com/vizinhos/orders/internal/gateway/mercadopago"
	"github.com/vizinhos/orders/internal/service/order"
)

// Одноразовый прогон сверки статусов для запуска из cron. Флаг -loop
// переключает в режим постоянной работы по расписанию.
func main() {
	var (
		loop    bool
		timeout time.Duration
	)
	flag.BoolVar(&loop, "loop", false, "run reconciliation on a schedule instead of once")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "timeout for a single reconciliation run")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "reconcile-cli")

	cfg := app.LoadConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}
	defer deps.Close()

	gateway := mercadopago.NewClient(cfg.GatewayBaseURL, logger.WithField("component", "mercadopago"))
	manager := order.NewManager(
		deps.Orders,
		deps.Stores,
		deps.Users,
		deps.Timeline,
		deps.Catalog,
		gateway,
		logger.WithField("layer", "service"),
	)
	reconciler := order.NewReconciler(
		manager,
		deps.Orders,
		logger.WithField("component", "reconciler"),
		order.WithReconcileInterval(cfg.ReconcileInterval),
		order.WithReconcileBatchSize(cfg.ReconcileBatchSize),
	)

	if loop {
		logger.WithField("interval", cfg.ReconcileInterval).Info("запускаем периодическую сверку")
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Fatal("reconciliation loop failed")
		}
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stats, err := reconciler.RunOnce(runCtx)
	if err != nil {
		logger.WithError(err).Fatal("reconciliation run failed")
	}
	logger.WithFields(log.Fields{
		"checked": stats.Checked,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	}).Info("сверка завершена")
}
