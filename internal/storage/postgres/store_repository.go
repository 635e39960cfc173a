package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vizinhos/orders/internal/domain"
)

type storeRepository struct {
	db *sql.DB
}

// NewStoreRepository создаёт PostgreSQL-реализацию StoreRepository.
// Access token провайдера читается из базы при каждом обращении,
// чтобы ротация учётных данных магазина применялась немедленно.
func NewStoreRepository(store *Store) domain.StoreRepository {
	return &storeRepository{db: store.DB()}
}

func (r *storeRepository) Get(id string) (domain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var s domain.Store
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, access_token
		FROM stores
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.AccessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Store{}, domain.NewNotFoundError("Loja", id)
		}
		return domain.Store{}, fmt.Errorf("select store: %w", err)
	}

	return s, nil
}

var _ domain.StoreRepository = (*storeRepository)(nil)
