package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vizinhos/orders/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) GetLot(id string) (domain.InventoryLot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var lot domain.InventoryLot
	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, quantity, to_char(expires_at, 'YYYY-MM-DD')
		FROM inventory_lots
		WHERE id = $1
	`, id).Scan(&lot.ID, &lot.ProductID, &lot.Quantity, &lot.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryLot{}, domain.NewNotFoundError("Lote", id)
		}
		return domain.InventoryLot{}, fmt.Errorf("select lot: %w", err)
	}

	return lot, nil
}

func (r *catalogRepository) GetProduct(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, description, price
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.StoreID, &product.Name, &product.Description, &product.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NewNotFoundError("Produto", id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
