package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// seedFile: начальные данные для пустого хранилища.
type seedFile struct {
	Users []struct {
		ID       string      `json:"id"`
		Email    string      `json:"email"`
		Username string      `json:"username"`
		Role     domain.Role `json:"role"`
		Active   *bool       `json:"active"`
	} `json:"users"`
	Partners []struct {
		ID          string  `json:"id"`
		UserID      string  `json:"user_id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Address     string  `json:"address"`
		Phone       string  `json:"phone"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
	} `json:"partners"`
	Products []struct {
		ID          string          `json:"id"`
		PartnerID   string          `json:"partner_id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Available   *bool           `json:"available"`
	} `json:"products"`
	Promotions []struct {
		ID              string           `json:"id"`
		PartnerID       string           `json:"partner_id"`
		Title           string           `json:"title"`
		Description     string           `json:"description"`
		ImageURL        string           `json:"image_url"`
		DiscountPercent *decimal.Decimal `json:"discount_percent"`
		Active          *bool            `json:"is_active"`
		ExpiresAt       *time.Time       `json:"expires_at"`
	} `json:"promotions"`
}

// loadSeed загружает seed-файл. Уже существующие записи пропускаются,
// поэтому повторный старт с тем же файлом безопасен.
func loadSeed(ctx context.Context, path string, users domain.UserRepository, catalog domain.CatalogRepository, logger *log.Entry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	now := time.Now().UTC()
	created := 0
	skipDuplicate := func(what, id string, err error) error {
		if err == nil {
			created++
			return nil
		}
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return fmt.Errorf("seed %s %q: %w", what, id, err)
	}

	for _, u := range seed.Users {
		if !u.Role.Valid() {
			return fmt.Errorf("seed user %q: %w: unknown role %q", u.ID, domain.ErrInvalidRequest, u.Role)
		}
		user := domain.User{
			ID:        u.ID,
			Email:     u.Email,
			Username:  u.Username,
			Role:      u.Role,
			Active:    u.Active == nil || *u.Active,
			CreatedAt: now,
		}
		if err := skipDuplicate("user", u.ID, users.Create(ctx, user)); err != nil {
			return err
		}
	}
	for _, p := range seed.Partners {
		partner := domain.Partner{
			ID:          p.ID,
			UserID:      p.UserID,
			Name:        p.Name,
			Description: p.Description,
			Address:     p.Address,
			Phone:       p.Phone,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			CreatedAt:   now,
		}
		if err := skipDuplicate("partner", p.ID, catalog.CreatePartner(ctx, partner)); err != nil {
			return err
		}
	}
	for _, p := range seed.Products {
		product := domain.Product{
			ID:          p.ID,
			PartnerID:   p.PartnerID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Available:   p.Available == nil || *p.Available,
			CreatedAt:   now,
		}
		if err := product.Validate(); err != nil {
			return fmt.Errorf("seed product %q: %w", p.ID, err)
		}
		if err := skipDuplicate("product", p.ID, catalog.CreateProduct(ctx, product)); err != nil {
			return err
		}
	}

	for _, p := range seed.Promotions {
		promotion := domain.Promotion{
			ID:              p.ID,
			PartnerID:       p.PartnerID,
			Title:           p.Title,
			Description:     p.Description,
			ImageURL:        p.ImageURL,
			DiscountPercent: p.DiscountPercent,
			Active:          p.Active == nil || *p.Active,
			ExpiresAt:       p.ExpiresAt,
			CreatedAt:       now,
		}
		if err := promotion.Validate(); err != nil {
			return fmt.Errorf("seed promotion %q: %w", p.ID, err)
		}
		if err := skipDuplicate("promotion", p.ID, catalog.CreatePromotion(ctx, promotion)); err != nil {
			return err
		}
	}

	logger.WithFields(log.Fields{
		"path":    path,
		"created": created,
	}).Info("seed data loaded")
	return nil
}
