package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Partner — профиль продавца. У каждого партнёра ровно один пользователь-владелец.
type Partner struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Address     string
	Phone       string
	Latitude    float64
	Longitude   float64
	CreatedAt   time.Time
}

// Product — позиция каталога партнёра.
type Product struct {
	ID          string
	PartnerID   string
	Name        string
	Description string
	Price       decimal.Decimal
	Available   bool
	CreatedAt   time.Time
}

// Validate проверяет поля товара перед записью.
func (p Product) Validate() error {
	if strings.TrimSpace(p.PartnerID) == "" {
		return ErrPartnerRequired
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductNameRequired
	}
	return ValidateAmount(p.Price)
}

// Promotion — акция партнёра. Без ExpiresAt действует, пока не выключена.
type Promotion struct {
	ID              string
	PartnerID       string
	Title           string
	Description     string
	ImageURL        string
	DiscountPercent *decimal.Decimal
	Active          bool
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

var hundred = decimal.NewFromInt(100)

// Validate проверяет поля акции перед записью.
func (p Promotion) Validate() error {
	if strings.TrimSpace(p.PartnerID) == "" {
		return ErrPartnerRequired
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrPromotionTitleRequired
	}
	if d := p.DiscountPercent; d != nil {
		if d.IsNegative() || d.GreaterThan(hundred) || !d.Equal(d.Round(MoneyScale)) {
			return ErrDiscountInvalid
		}
	}
	return nil
}

// LiveAt сообщает, видна ли акция покупателям в момент at.
func (p Promotion) LiveAt(at time.Time) bool {
	return p.Active && (p.ExpiresAt == nil || p.ExpiresAt.After(at))
}
