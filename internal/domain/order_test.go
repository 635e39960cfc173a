package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validOrder() Order {
	now := Now()
	return Order{
		ID:           "order-1",
		CustomerCPF:  "48812172830",
		StoreID:      "store-1",
		Amount:       decimal.RequireFromString("180.0"),
		DeliveryType: "Entrega Rápida",
		Status:       OrderStatusAwaitingPayment,
		Items: []OrderItem{
			{LotID: "lot-1", Quantity: 2, UnitPrice: decimal.RequireFromString("40.0")},
			{LotID: "lot-2", Quantity: 2, UnitPrice: decimal.RequireFromString("50.0")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_OK(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_AmountMismatch(t *testing.T) {
	order := validOrder()
	order.Amount = decimal.RequireFromString("170.0")

	errs := order.ValidateInvariants()
	if len(errs) == 0 {
		t.Fatal("expected amount mismatch error")
	}
	if !IsValidation(errs[0]) {
		t.Fatalf("expected ValidationError, got %T", errs[0])
	}
}

func TestOrderValidateInvariants_MissingFields(t *testing.T) {
	order := Order{}
	errs := order.ValidateInvariants()
	if len(errs) < 3 {
		t.Fatalf("expected errors for empty order, got %v", errs)
	}
}

func TestOrderValidateInvariants_BadItem(t *testing.T) {
	order := validOrder()
	order.Items[0].Quantity = 0

	errs := order.ValidateInvariants()
	if len(errs) == 0 {
		t.Fatal("expected error for zero quantity")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusCancelled, OrderStatusRefunded, OrderStatusChargedBack}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	open := []OrderStatus{OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusAuthorized, OrderStatusUnderReview, OrderStatusDisputed, OrderStatusRejected, OrderStatusUnknown}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestNormalizeCPF(t *testing.T) {
	got, err := NormalizeCPF("488.121.728-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "48812172830" {
		t.Fatalf("expected normalized cpf, got %s", got)
	}

	if _, err := NormalizeCPF("123"); err == nil {
		t.Fatal("expected error for short cpf")
	}
	if _, err := NormalizeCPF(""); err == nil {
		t.Fatal("expected error for empty cpf")
	}
}
