package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями. Возвращает ошибку,
	// если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или NotFoundError, если его нет.
	Get(id string) (Order, error)
	// ListActive возвращает заказы в нетерминальных статусах (для реконсиляции).
	ListActive(limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// CatalogRepository даёт доступ к справочным данным каталога: лоты и товары.
type CatalogRepository interface {
	// GetLot возвращает партию товара или NotFoundError.
	GetLot(id string) (InventoryLot, error)
	// GetProduct возвращает товар или NotFoundError.
	GetProduct(id string) (Product, error)
}

// StoreRepository даёт доступ к данным магазинов (включая access token провайдера).
type StoreRepository interface {
	Get(id string) (Store, error)
}

// UserRepository даёт доступ к данным покупателей по CPF.
type UserRepository interface {
	Get(cpf string) (User, error)
}
