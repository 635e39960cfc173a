package order

import (
	"context"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vizinhos/orders/internal/domain"
)

func newReconciler(f *fixture) *Reconciler {
	return NewReconciler(f.manager, f.orders, log.New().WithField("component", "reconciler-test"))
}

func TestReconciler_RunOnce_UpdatesDivergedOrders(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, domain.OrderStatusAwaitingPayment)

	var mu sync.Mutex
	statuses := map[int64]domain.PaymentGatewayStatus{
		555: domain.PaymentStatusApproved,
	}
	f.gateway.getFn = func(ctx context.Context, token string, paymentID int64) (domain.PaymentInfo, error) {
		mu.Lock()
		defer mu.Unlock()
		return domain.PaymentInfo{PaymentID: paymentID, Status: statuses[paymentID], TransactionID: "auth-1"}, nil
	}

	stats, err := newReconciler(f).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Checked != 1 || stats.Updated != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	stored, _ := f.orders.Get("order-1")
	if stored.Status != domain.OrderStatusPaid {
		t.Errorf("expected order reconciled to %q, got %q", domain.OrderStatusPaid, stored.Status)
	}
}

func TestReconciler_RunOnce_SkipsTerminalOrders(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, domain.OrderStatusCancelled)

	called := false
	f.gateway.getFn = func(ctx context.Context, token string, paymentID int64) (domain.PaymentInfo, error) {
		called = true
		return domain.PaymentInfo{PaymentID: paymentID, Status: domain.PaymentStatusCancelled}, nil
	}

	stats, err := newReconciler(f).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Checked != 0 {
		t.Errorf("terminal orders must not be checked, stats: %+v", stats)
	}
	if called {
		t.Error("gateway must not be queried for terminal orders")
	}
}

func TestReconciler_RunOnce_SingleFailureDoesNotAbortRun(t *testing.T) {
	f := newFixture(t)

	// Two active orders against distinct payments.
	first := f.seedOrder(t, domain.OrderStatusAwaitingPayment)
	second := first
	second.ID = "order-2"
	second.PaymentID = 556
	if err := f.orders.Create(second); err != nil {
		t.Fatalf("seed second order: %v", err)
	}

	f.gateway.getFn = func(ctx context.Context, token string, paymentID int64) (domain.PaymentInfo, error) {
		if paymentID == 555 {
			return domain.PaymentInfo{}, domain.NewGatewayError(503, "falha de conexão")
		}
		return domain.PaymentInfo{PaymentID: paymentID, Status: domain.PaymentStatusApproved, TransactionID: "auth-2"}, nil
	}

	stats, err := newReconciler(f).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("a single order failure must not abort the run: %v", err)
	}
	if stats.Checked != 2 || stats.Updated != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	stored, _ := f.orders.Get("order-2")
	if stored.Status != domain.OrderStatusPaid {
		t.Errorf("healthy order must still be reconciled, got %q", stored.Status)
	}
}

func TestReconciler_RunOnce_EmptyStore(t *testing.T) {
	f := newFixture(t)

	stats, err := newReconciler(f).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Checked != 0 || stats.Updated != 0 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
