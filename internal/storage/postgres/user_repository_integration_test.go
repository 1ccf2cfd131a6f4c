package postgres

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestUserRepository_PostgresLookups(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewUserRepository(store)
	ctx := context.Background()

	user := domain.User{
		ID:       gofakeit.UUID(),
		Email:    "Mixed.Case@Example.com",
		Username: gofakeit.Username(),
		Role:     domain.RoleCustomer,
		Active:   true,
	}
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, byID.Email)
	require.Equal(t, domain.RoleCustomer, byID.Role)
	require.False(t, byID.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "mixed.case@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	byUsername, err := repo.GetByUsername(ctx, user.Username)
	require.NoError(t, err)
	require.Equal(t, user.ID, byUsername.ID)

	// Пользователь без username: колонка остаётся NULL и не мешает уникальности.
	noUsername := domain.User{ID: gofakeit.UUID(), Email: gofakeit.Email(), Role: domain.RolePartner}
	require.NoError(t, repo.Create(ctx, noUsername))
	second := domain.User{ID: gofakeit.UUID(), Email: gofakeit.Email(), Role: domain.RolePartner}
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.Get(ctx, noUsername.ID)
	require.NoError(t, err)
	require.Empty(t, got.Username)
	require.False(t, got.Active)

	err = repo.Create(ctx, domain.User{ID: gofakeit.UUID(), Email: user.Email, Role: domain.RoleCustomer})
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
