package memory_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/storage/memory"
)

func newOrder(id string, status domain.OrderStatus) domain.Order {
	now := domain.Now()
	return domain.Order{
		ID:           id,
		CustomerCPF:  "48812172830",
		StoreID:      "store-1",
		Amount:       decimal.RequireFromString("100.50"),
		DeliveryType: "Entrega Rápida",
		Status:       status,
		Items: []domain.OrderItem{
			{LotID: "lot-1", Quantity: 2, UnitPrice: decimal.RequireFromString("50.25")},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", domain.OrderStatusAwaitingPayment)

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}
	if len(stored.Items) != 1 {
		t.Fatalf("expected items to be stored, got %d", len(stored.Items))
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := memory.NewOrderRepository()

	_, err := repo.Get("ghost")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOrderRepository_CreateDuplicate(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", domain.OrderStatusAwaitingPayment)

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(order); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", domain.OrderStatusAwaitingPayment)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Status = domain.OrderStatusPaid
	if err := repo.Save(order); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Second save with the stale version must conflict.
	if err := repo.Save(order); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ListActive(t *testing.T) {
	repo := memory.NewOrderRepository()
	for _, tc := range []struct {
		id     string
		status domain.OrderStatus
	}{
		{"order-1", domain.OrderStatusAwaitingPayment},
		{"order-2", domain.OrderStatusPaid},
		{"order-3", domain.OrderStatusCancelled},
		{"order-4", domain.OrderStatusRefunded},
	} {
		if err := repo.Create(newOrder(tc.id, tc.status)); err != nil {
			t.Fatalf("create %s failed: %v", tc.id, err)
		}
	}

	active, err := repo.ListActive(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active orders, got %d", len(active))
	}
	for _, order := range active {
		if order.Status.Terminal() {
			t.Errorf("terminal order %s returned as active", order.ID)
		}
	}

	limited, err := repo.ListActive(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
