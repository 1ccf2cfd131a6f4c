package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func setup(t *testing.T) (*Service, domain.Identity, domain.Identity) {
	t.Helper()

	repo := memory.NewCatalogRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreatePartner(ctx, domain.Partner{ID: "p1", UserID: "owner-1", Name: "Bakery", CreatedAt: time.Now()}))
	require.NoError(t, repo.CreatePartner(ctx, domain.Partner{ID: "p2", UserID: "owner-2", Name: "Cafe", CreatedAt: time.Now()}))

	return NewService(repo, nil),
		domain.Identity{UserID: "owner-1", Role: domain.RolePartner},
		domain.Identity{UserID: "owner-2", Role: domain.RolePartner}
}

func TestService_ProductLifecycle(t *testing.T) {
	t.Parallel()

	svc, owner, _ := setup(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, owner, ProductInput{
		Name:      "  Croissant ",
		Price:     decimal.RequireFromString("3.50"),
		Available: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Croissant", product.Name)
	require.Equal(t, "p1", product.PartnerID)

	available, err := svc.ListAvailableProducts(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, available, 1)

	updated, err := svc.UpdateProduct(ctx, owner, product.ID, ProductInput{
		Name:  "Croissant",
		Price: decimal.RequireFromString("4.00"),
	})
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(decimal.RequireFromString("4")))

	available, err = svc.ListAvailableProducts(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, available)

	own, err := svc.ListOwnProducts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, own, 1)

	require.NoError(t, svc.DeleteProduct(ctx, owner, product.ID))
	require.ErrorIs(t, svc.DeleteProduct(ctx, owner, product.ID), domain.ErrProductNotFound)
}

func TestService_OwnershipAndRoles(t *testing.T) {
	t.Parallel()

	svc, owner, stranger := setup(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, owner, ProductInput{Name: "Bagel", Price: decimal.NewFromInt(2), Available: true})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, stranger, product.ID, ProductInput{Name: "Stolen", Price: decimal.Zero})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, svc.DeleteProduct(ctx, stranger, product.ID), domain.ErrNotFound)

	customer := domain.Identity{UserID: "c1", Role: domain.RoleCustomer}
	_, err = svc.CreateProduct(ctx, customer, ProductInput{Name: "x"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Profile(ctx, domain.Identity{UserID: "no-profile", Role: domain.RolePartner})
	require.ErrorIs(t, err, domain.ErrPartnerNotFound)
}

func TestService_CreateProductValidation(t *testing.T) {
	t.Parallel()

	svc, owner, _ := setup(t)

	_, err := svc.CreateProduct(context.Background(), owner, ProductInput{Name: " ", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrProductNameRequired)

	_, err = svc.CreateProduct(context.Background(), owner, ProductInput{Name: "Tea", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, domain.ErrItemPriceInvalid)

	_, err = svc.CreateProduct(context.Background(), owner, ProductInput{Name: "Tea", Price: decimal.RequireFromString("1.999")})
	require.ErrorIs(t, err, domain.ErrAmountPrecision)
}

func TestService_Partners(t *testing.T) {
	t.Parallel()

	svc, owner, _ := setup(t)
	ctx := context.Background()

	partners, err := svc.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 2)
	require.Equal(t, "Bakery", partners[0].Name)

	partner, err := svc.GetPartner(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, "Cafe", partner.Name)

	profile, err := svc.Profile(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "p1", profile.ID)
}

func TestService_UpdateProfile(t *testing.T) {
	t.Parallel()

	svc, owner, _ := setup(t)
	ctx := context.Background()

	name := "  Bakery & Co "
	phone := "+7 900 000-00-00"
	partner, err := svc.UpdateProfile(ctx, owner, ProfileInput{Name: &name, Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, "Bakery & Co", partner.Name)

	stored, err := svc.Profile(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "Bakery & Co", stored.Name)
	require.Equal(t, phone, stored.Phone)
	require.Equal(t, "owner-1", stored.UserID)

	blank := "   "
	_, err = svc.UpdateProfile(ctx, owner, ProfileInput{Name: &blank})
	require.ErrorIs(t, err, domain.ErrPartnerNameRequired)

	_, err = svc.UpdateProfile(ctx, domain.Identity{UserID: "c", Role: domain.RoleCustomer}, ProfileInput{})
	require.ErrorIs(t, err, domain.ErrRoleRequired)
}

func TestService_PromotionLifecycle(t *testing.T) {
	t.Parallel()

	svc, owner, stranger := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	discount := decimal.RequireFromString("10")
	expires := now.Add(2 * time.Hour)
	promo, err := svc.CreatePromotion(ctx, owner, PromotionInput{
		Title:           " Утренний кофе ",
		DiscountPercent: &discount,
		Active:          true,
		ExpiresAt:       &expires,
	})
	require.NoError(t, err)
	require.Equal(t, "Утренний кофе", promo.Title)
	require.Equal(t, "p1", promo.PartnerID)

	_, err = svc.CreatePromotion(ctx, owner, PromotionInput{Title: "Черновик"})
	require.NoError(t, err)

	live, err := svc.ListLivePromotions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, promo.ID, live[0].ID)

	own, err := svc.ListOwnPromotions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, own, 2)

	_, err = svc.UpdatePromotion(ctx, stranger, promo.ID, PromotionInput{Title: "hijack"})
	require.ErrorIs(t, err, domain.ErrPromotionNotFound)
	require.ErrorIs(t, svc.DeletePromotion(ctx, stranger, promo.ID), domain.ErrPromotionNotFound)

	// после истечения акция пропадает из витрины
	now = now.Add(3 * time.Hour)
	live, err = svc.ListLivePromotions(ctx, "")
	require.NoError(t, err)
	require.Empty(t, live)

	updated, err := svc.UpdatePromotion(ctx, owner, promo.ID, PromotionInput{Title: "Кофе весь день", Active: true})
	require.NoError(t, err)
	require.Nil(t, updated.ExpiresAt)
	live, err = svc.ListLivePromotions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, live, 1)

	require.NoError(t, svc.DeletePromotion(ctx, owner, promo.ID))
	_, err = svc.UpdatePromotion(ctx, owner, promo.ID, PromotionInput{Title: "x"})
	require.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

func TestService_PromotionValidation(t *testing.T) {
	t.Parallel()

	svc, owner, _ := setup(t)
	ctx := context.Background()

	over := decimal.RequireFromString("100.01")
	fine := decimal.RequireFromString("12.345")
	negative := decimal.RequireFromString("-1")

	cases := []struct {
		name string
		in   PromotionInput
		want error
	}{
		{"blank title", PromotionInput{Title: "  "}, domain.ErrPromotionTitleRequired},
		{"over hundred", PromotionInput{Title: "x", DiscountPercent: &over}, domain.ErrDiscountInvalid},
		{"sub-hundredth", PromotionInput{Title: "x", DiscountPercent: &fine}, domain.ErrDiscountInvalid},
		{"negative", PromotionInput{Title: "x", DiscountPercent: &negative}, domain.ErrDiscountInvalid},
	}
	for _, tc := range cases {
		_, err := svc.CreatePromotion(ctx, owner, tc.in)
		require.ErrorIs(t, err, tc.want, tc.name)
		require.ErrorIs(t, err, domain.ErrInvalidRequest, tc.name)
	}
}
