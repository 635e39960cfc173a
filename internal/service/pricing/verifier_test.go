package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vizinhos/orders/internal/domain"
	"github.com/vizinhos/orders/internal/service/pricing"
	"github.com/vizinhos/orders/internal/storage/memory"
)

func seedCatalog(t *testing.T) *memory.CatalogRepository {
	t.Helper()
	catalog := memory.NewCatalogRepository()
	catalog.PutProduct(domain.Product{
		ID: "prod-1", StoreID: "store-1", Name: "Pão francês",
		Description: "Pacote com 10", Price: decimal.RequireFromString("40.0"),
	})
	catalog.PutProduct(domain.Product{
		ID: "prod-2", StoreID: "store-1", Name: "Bolo de fubá",
		Description: "Inteiro", Price: decimal.RequireFromString("50.0"),
	})
	catalog.PutLot(domain.InventoryLot{ID: "lot-1", ProductID: "prod-1", Quantity: 10})
	catalog.PutLot(domain.InventoryLot{ID: "lot-2", ProductID: "prod-2", Quantity: 5})
	return catalog
}

func items() []domain.OrderItem {
	return []domain.OrderItem{
		{LotID: "lot-1", Quantity: 2, UnitPrice: decimal.RequireFromString("40.0")},
		{LotID: "lot-2", Quantity: 2, UnitPrice: decimal.RequireFromString("50.0")},
	}
}

func TestVerify_TotalMatches(t *testing.T) {
	v := pricing.NewVerifier(seedCatalog(t), nil)

	lineItems, err := v.Verify(items(), decimal.RequireFromString("180.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(lineItems))
	}
	if lineItems[0].Title != "Pão francês" {
		t.Errorf("expected annotated product name, got %q", lineItems[0].Title)
	}
	if !lineItems[1].UnitPrice.Equal(decimal.RequireFromString("50.0")) {
		t.Errorf("expected submitted unit price snapshot, got %s", lineItems[1].UnitPrice)
	}
}

func TestVerify_TotalMismatch(t *testing.T) {
	v := pricing.NewVerifier(seedCatalog(t), nil)

	_, err := v.Verify(items(), decimal.RequireFromString("170.0"))
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestVerify_TamperedClientPrice(t *testing.T) {
	// Client lowers the unit price and the declared total accordingly.
	// Catalog prices win: the recomputed total will not match.
	v := pricing.NewVerifier(seedCatalog(t), nil)

	tampered := []domain.OrderItem{
		{LotID: "lot-1", Quantity: 2, UnitPrice: decimal.RequireFromString("1.0")},
	}
	_, err := v.Verify(tampered, decimal.RequireFromString("2.0"))
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestVerify_UnknownLot(t *testing.T) {
	v := pricing.NewVerifier(seedCatalog(t), nil)

	_, err := v.Verify([]domain.OrderItem{{LotID: "missing", Quantity: 1, UnitPrice: decimal.New(1, 0)}}, decimal.New(1, 0))
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestVerify_UnknownProduct(t *testing.T) {
	catalog := memory.NewCatalogRepository()
	catalog.PutLot(domain.InventoryLot{ID: "lot-x", ProductID: "ghost", Quantity: 1})
	v := pricing.NewVerifier(catalog, nil)

	_, err := v.Verify([]domain.OrderItem{{LotID: "lot-x", Quantity: 1, UnitPrice: decimal.New(1, 0)}}, decimal.New(1, 0))
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestVerify_ExactDecimalArithmetic(t *testing.T) {
	catalog := memory.NewCatalogRepository()
	catalog.PutProduct(domain.Product{ID: "p", Name: "Café", Price: decimal.RequireFromString("0.1")})
	catalog.PutLot(domain.InventoryLot{ID: "l", ProductID: "p", Quantity: 10})
	v := pricing.NewVerifier(catalog, nil)

	// 0.1 * 3 must equal exactly 0.3 (would fail with binary floats).
	items := []domain.OrderItem{{LotID: "l", Quantity: 3, UnitPrice: decimal.RequireFromString("0.1")}}
	if _, err := v.Verify(items, decimal.RequireFromString("0.3")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
