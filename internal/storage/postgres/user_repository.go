package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vizinhos/orders/internal/domain"
)

type userRepository struct {
	db *sql.DB
}

// NewUserRepository создаёт PostgreSQL-реализацию UserRepository.
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepository{db: store.DB()}
}

func (r *userRepository) Get(cpf string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT cpf, name, email
		FROM users
		WHERE cpf = $1
	`, cpf).Scan(&u.CPF, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.NewNotFoundError("Usuário", cpf)
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}

	return u, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
