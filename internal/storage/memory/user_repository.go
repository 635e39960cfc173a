package memory

import (
	"sync"

	"github.com/vizinhos/orders/internal/domain"
)

// UserRepository — in-memory справочник покупателей, ключ — CPF.
type UserRepository struct {
	mu    sync.RWMutex
	items map[string]domain.User
}

// NewUserRepository создаёт пустой справочник покупателей.
func NewUserRepository() *UserRepository {
	return &UserRepository{items: make(map[string]domain.User)}
}

// Put добавляет или заменяет пользователя.
func (r *UserRepository) Put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[user.CPF] = user
}

// Get возвращает пользователя или NotFoundError.
func (r *UserRepository) Get(cpf string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.items[cpf]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("Usuário", cpf)
	}
	return user, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
