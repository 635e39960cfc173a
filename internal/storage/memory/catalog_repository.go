package memory

import (
	"sync"

	"github.com/vizinhos/orders/internal/domain"
)

// CatalogRepository — in-memory справочник лотов и товаров. Экспортируемый
// тип: тесты наполняют его напрямую через PutLot/PutProduct.
type CatalogRepository struct {
	mu       sync.RWMutex
	lots     map[string]domain.InventoryLot
	products map[string]domain.Product
}

// NewCatalogRepository создаёт пустой справочник каталога.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		lots:     make(map[string]domain.InventoryLot),
		products: make(map[string]domain.Product),
	}
}

// PutLot добавляет или заменяет лот.
func (r *CatalogRepository) PutLot(lot domain.InventoryLot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = lot
}

// PutProduct добавляет или заменяет товар.
func (r *CatalogRepository) PutProduct(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
}

// GetLot возвращает лот или NotFoundError.
func (r *CatalogRepository) GetLot(id string) (domain.InventoryLot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lot, ok := r.lots[id]
	if !ok {
		return domain.InventoryLot{}, domain.NewNotFoundError("Lote", id)
	}
	return lot, nil
}

// GetProduct возвращает товар или NotFoundError.
func (r *CatalogRepository) GetProduct(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("Produto", id)
	}
	return product, nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
