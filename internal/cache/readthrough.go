// Пакет cache предоставляет явный read-through кэш для справочных данных
// (пользователи, магазины). Кэш — только оптимизация чтения: он никогда не
// используется там, где требуется свежее состояние провайдера перед
// изменяющим действием.
package cache

import "sync"

// FetchFunc загружает значение при промахе кэша.
type FetchFunc[K comparable, V any] func(K) (V, error)

// ReadThrough — кэш без вытеснения с контрактом "miss → fetch → store → return".
// Ошибки загрузки не кэшируются. Допустимая степень устаревания — время жизни
// процесса: записи не инвалидируются.
type ReadThrough[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
	fetch FetchFunc[K, V]
}

// NewReadThrough создаёт кэш поверх функции загрузки.
func NewReadThrough[K comparable, V any](fetch FetchFunc[K, V]) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{
		items: make(map[K]V),
		fetch: fetch,
	}
}

// Get возвращает значение из кэша, при промахе загружает и сохраняет его.
func (c *ReadThrough[K, V]) Get(key K) (V, error) {
	c.mu.RLock()
	value, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err := c.fetch(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.items[key] = value
	c.mu.Unlock()
	return value, nil
}

// Len возвращает количество закэшированных записей.
func (c *ReadThrough[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
