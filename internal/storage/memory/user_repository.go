package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type userRepositoryInMemory struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	byEmail    map[string]string
	byUsername map[string]string
}

// NewUserRepository создаёт in-memory каталог пользователей.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{
		users:      make(map[string]domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *userRepositoryInMemory) Create(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return domain.ErrDuplicateKey
	}
	if _, ok := r.byEmail[email]; ok {
		return domain.ErrDuplicateKey
	}
	if user.Username != "" {
		if _, ok := r.byUsername[user.Username]; ok {
			return domain.ErrDuplicateKey
		}
		r.byUsername[user.Username] = user.ID
	}
	r.users[user.ID] = user
	r.byEmail[email] = user.ID
	return nil
}

func (r *userRepositoryInMemory) Get(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepositoryInMemory) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.lookup(ctx, r.byEmail, strings.ToLower(email))
}

func (r *userRepositoryInMemory) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.lookup(ctx, r.byUsername, username)
}

func (r *userRepositoryInMemory) lookup(ctx context.Context, index map[string]string, key string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.users[id], nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
