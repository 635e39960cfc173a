package order

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vizinhos/orders/internal/domain"
)

// Reconciler периодически сверяет статусы нетерминальных заказов с провайдером.
// Локальное состояние, разошедшееся с провайдером (например, после сбоя
// сохранения при отмене или возврате), догоняется именно здесь.
type Reconciler struct {
	manager *Manager
	orders  domain.OrderRepository
	logger  *log.Entry

	// Конфигурация прогона
	batchSize      int
	maxParallelOps int
	interval       time.Duration
}

// ReconcileStats — итог одного прогона сверки.
type ReconcileStats struct {
	Checked int
	Updated int
	Failed  int
}

// ReconcilerOption настраивает Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcileInterval задаёт период между прогонами сверки.
func WithReconcileInterval(interval time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithReconcileBatchSize задаёт максимум заказов за один прогон.
func WithReconcileBatchSize(batchSize int) ReconcilerOption {
	return func(r *Reconciler) {
		if batchSize > 0 {
			r.batchSize = batchSize
		}
	}
}

// NewReconciler создаёт сверщик статусов.
func NewReconciler(manager *Manager, orders domain.OrderRepository, logger *log.Entry, options ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "reconciler")
	}
	r := &Reconciler{
		manager:        manager,
		orders:         orders,
		logger:         logger,
		batchSize:      100,
		maxParallelOps: 8,
		interval:       time.Minute,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// RunOnce выполняет один прогон: читает нетерминальные заказы и сверяет каждый
// с провайдером, не более maxParallelOps одновременно. Ошибка отдельного
// заказа не прерывает прогон.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	orders, err := r.orders.ListActive(r.batchSize)
	if err != nil {
		return ReconcileStats{}, err
	}

	if r.manager.metrics != nil {
		r.manager.metrics.SetActiveOrders(len(orders))
	}
	if len(orders) == 0 {
		return ReconcileStats{}, nil
	}

	results := make([]int, len(orders)) // 0 — без изменений, 1 — обновлён, 2 — ошибка

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallelOps)

	for idx, ord := range orders {
		idx, ord := idx, ord
		g.Go(func() error {
			before := ord.Status
			refreshed, err := r.manager.RefreshStatus(gctx, ord.ID)
			if err != nil {
				r.logger.WithError(err).WithField("order_id", ord.ID).Warn("reconcile failed for order")
				results[idx] = 2
				return nil // ошибки отдельных заказов не прерывают прогон
			}
			if refreshed.Status != before {
				results[idx] = 1
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ReconcileStats{}, err
	}

	stats := ReconcileStats{Checked: len(orders)}
	for _, res := range results {
		switch res {
		case 1:
			stats.Updated++
		case 2:
			stats.Failed++
		}
	}

	r.logger.WithFields(log.Fields{
		"checked": stats.Checked,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	}).Info("reconcile run completed")

	return stats, nil
}

// Run выполняет сверку по расписанию до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.WithError(err).Error("reconcile run failed")
			}
		}
	}
}
