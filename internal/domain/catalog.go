package domain

import "github.com/shopspring/decimal"

// Product — товар каталога. Для рабочего процесса заказа это справочные
// данные: workflow читает актуальную цену, но никогда их не изменяет.
type Product struct {
	ID          string
	StoreID     string
	Name        string
	Description string
	// Price — актуальная цена продажи. Именно она используется при проверке
	// суммы заказа, а не цена, присланная клиентом.
	Price decimal.Decimal
}

// InventoryLot — партия товара со своим сроком годности и остатком.
// Позиции заказа ссылаются на конкретный лот.
type InventoryLot struct {
	ID        string
	ProductID string
	Quantity  int32
	ExpiresAt string
}

// Store — магазин-продавец. Хранит учётные данные платёжного провайдера:
// каждый магазин владеет собственным access token.
type Store struct {
	ID          string
	Name        string
	AccessToken string
}

// User — покупатель, идентифицируется по CPF.
type User struct {
	CPF   string
	Name  string
	Email string
}
