package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func fakePartner(id, userID string) domain.Partner {
	return domain.Partner{
		ID:        id,
		UserID:    userID,
		Name:      gofakeit.Company(),
		Address:   gofakeit.Street(),
		Phone:     gofakeit.Phone(),
		Latitude:  gofakeit.Latitude(),
		Longitude: gofakeit.Longitude(),
	}
}

func fakeProduct(id, partnerID string, available bool) domain.Product {
	return domain.Product{
		ID:        id,
		PartnerID: partnerID,
		Name:      gofakeit.ProductName(),
		Price:     decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		Available: available,
	}
}

func TestCatalogRepository_Partners(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCatalogRepository()

	require.NoError(t, repo.CreatePartner(ctx, fakePartner("partner-1", "user-1")))
	require.ErrorIs(t, repo.CreatePartner(ctx, fakePartner("partner-2", "user-1")), domain.ErrConflict)

	byUser, err := repo.GetPartnerByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "partner-1", byUser.ID)

	_, err = repo.GetPartner(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrPartnerNotFound)

	partners, err := repo.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
}

func TestCatalogRepository_Products(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCatalogRepository()
	require.NoError(t, repo.CreatePartner(ctx, fakePartner("partner-1", "user-1")))

	require.ErrorIs(t, repo.CreateProduct(ctx, fakeProduct("p-x", "ghost", true)), domain.ErrPartnerNotFound)
	require.NoError(t, repo.CreateProduct(ctx, fakeProduct("p-1", "partner-1", true)))
	require.NoError(t, repo.CreateProduct(ctx, fakeProduct("p-2", "partner-1", false)))

	all, err := repo.ListProducts(ctx, "partner-1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	available, err := repo.ListProducts(ctx, "partner-1", true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, "p-1", available[0].ID)

	updated := fakeProduct("p-2", "someone-else", true)
	require.NoError(t, repo.UpdateProduct(ctx, updated))
	got, err := repo.GetProduct(ctx, "p-2")
	require.NoError(t, err)
	require.Equal(t, "partner-1", got.PartnerID, "owner must not change on update")
	require.True(t, got.Available)

	count, err := repo.CountProducts(ctx, "partner-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, repo.DeleteProduct(ctx, "p-1"))
	require.ErrorIs(t, repo.DeleteProduct(ctx, "p-1"), domain.ErrProductNotFound)
}

func TestCatalogRepository_UpdatePartnerKeepsOwner(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCatalogRepository()
	require.NoError(t, repo.CreatePartner(ctx, fakePartner("partner-1", "user-1")))

	patch := fakePartner("partner-1", "user-2")
	patch.Name = "Пекарня на углу"
	require.NoError(t, repo.UpdatePartner(ctx, patch))

	got, err := repo.GetPartnerByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Пекарня на углу", got.Name)
	require.Equal(t, "user-1", got.UserID)

	require.ErrorIs(t, repo.UpdatePartner(ctx, fakePartner("ghost", "user-3")), domain.ErrPartnerNotFound)
}

func TestCatalogRepository_Promotions(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCatalogRepository()
	require.NoError(t, repo.CreatePartner(ctx, fakePartner("partner-1", "user-1")))
	require.NoError(t, repo.CreatePartner(ctx, fakePartner("partner-2", "user-2")))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	discount := decimal.RequireFromString("15")

	promos := []domain.Promotion{
		{ID: "promo-live", PartnerID: "partner-1", Title: "Кофе -15%", DiscountPercent: &discount, Active: true, ExpiresAt: &future, CreatedAt: now.Add(-3 * time.Minute)},
		{ID: "promo-forever", PartnerID: "partner-1", Title: "Круассан в подарок", Active: true, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "promo-expired", PartnerID: "partner-1", Title: "Вчерашняя", Active: true, ExpiresAt: &past, CreatedAt: now.Add(-time.Minute)},
		{ID: "promo-off", PartnerID: "partner-1", Title: "Выключена", Active: false, CreatedAt: now},
		{ID: "promo-other", PartnerID: "partner-2", Title: "Чужая", Active: true, CreatedAt: now},
	}
	for _, p := range promos {
		require.NoError(t, repo.CreatePromotion(ctx, p))
	}
	require.ErrorIs(t, repo.CreatePromotion(ctx, promos[0]), domain.ErrDuplicateKey)
	require.ErrorIs(t, repo.CreatePromotion(ctx, domain.Promotion{ID: "x", PartnerID: "ghost", Title: "x"}), domain.ErrPartnerNotFound)

	all, err := repo.ListPromotions(ctx, "partner-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "promo-off", all[0].ID, "newest first")

	live, err := repo.ListPromotions(ctx, "partner-1", now)
	require.NoError(t, err)
	require.Len(t, live, 2)
	require.Equal(t, []string{"promo-forever", "promo-live"}, []string{live[0].ID, live[1].ID})

	everyone, err := repo.ListPromotions(ctx, "", now)
	require.NoError(t, err)
	require.Len(t, everyone, 3)

	count, err := repo.CountLivePromotions(ctx, "partner-1", now)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	update := promos[3]
	update.Active = true
	update.PartnerID = "partner-2"
	require.NoError(t, repo.UpdatePromotion(ctx, update))
	got, err := repo.GetPromotion(ctx, "promo-off")
	require.NoError(t, err)
	require.True(t, got.Active)
	require.Equal(t, "partner-1", got.PartnerID, "owner must not change on update")

	require.NoError(t, repo.DeletePromotion(ctx, "promo-off"))
	require.ErrorIs(t, repo.DeletePromotion(ctx, "promo-off"), domain.ErrPromotionNotFound)
	_, err = repo.GetPromotion(ctx, "promo-off")
	require.ErrorIs(t, err, domain.ErrPromotionNotFound)
	require.ErrorIs(t, repo.UpdatePromotion(ctx, update), domain.ErrPromotionNotFound)
}
