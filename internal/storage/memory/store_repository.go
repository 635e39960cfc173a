package memory

import (
	"sync"

	"github.com/vizinhos/orders/internal/domain"
)

// StoreRepository — in-memory справочник магазинов.
type StoreRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Store
}

// NewStoreRepository создаёт пустой справочник магазинов.
func NewStoreRepository() *StoreRepository {
	return &StoreRepository{items: make(map[string]domain.Store)}
}

// Put добавляет или заменяет магазин.
func (r *StoreRepository) Put(store domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[store.ID] = store
}

// Get возвращает магазин или NotFoundError.
func (r *StoreRepository) Get(id string) (domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.items[id]
	if !ok {
		return domain.Store{}, domain.NewNotFoundError("Loja", id)
	}
	return store, nil
}

var _ domain.StoreRepository = (*StoreRepository)(nil)
