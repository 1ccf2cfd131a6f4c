package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const userColumns = `id, email, username, role, active, created_at`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository создаёт PostgreSQL-реализацию UserRepository.
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepository{db: store.DB()}
}

func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	var username sql.NullString
	if user.Username != "" {
		username = sql.NullString{String: user.Username, Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Email, username, string(user.Role), user.Active, user.CreatedAt); err != nil {
		return mapWriteErr("insert user", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepository) getOne(ctx context.Context, query, arg string) (domain.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var (
		user     domain.User
		username sql.NullString
		role     string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &username, &role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	user.Username = username.String
	user.Role = domain.Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
