package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе с позициями.
	// При нарушении уникальности (id, токен выдачи) возвращает ErrDuplicateKey.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми; limit<=0 снимает ограничение.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// ListByPartner возвращает заказы партнёра, новые первыми.
	ListByPartner(ctx context.Context, partnerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// Delete удаляет заказ вместе с позициями, если версия совпадает.
	Delete(ctx context.Context, id string, version int64) error
	// PartnerStats считает показатели заказов партнёра.
	PartnerStats(ctx context.Context, partnerID string) (OrderStats, error)
}

// CatalogRepository хранит партнёров и их товары.
type CatalogRepository interface {
	CreatePartner(ctx context.Context, partner Partner) error
	GetPartner(ctx context.Context, id string) (Partner, error)
	GetPartnerByUserID(ctx context.Context, userID string) (Partner, error)
	ListPartners(ctx context.Context) ([]Partner, error)

	CreateProduct(ctx context.Context, product Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	// ListProducts возвращает товары партнёра; onlyAvailable скрывает снятые с продажи.
	ListProducts(ctx context.Context, partnerID string, onlyAvailable bool) ([]Product, error)
	UpdateProduct(ctx context.Context, product Product) error
	DeleteProduct(ctx context.Context, id string) error
	CountProducts(ctx context.Context, partnerID string) (int, error)

	// UpdatePartner меняет описательные поля профиля, владелец и id не меняются.
	UpdatePartner(ctx context.Context, partner Partner) error

	CreatePromotion(ctx context.Context, promotion Promotion) error
	GetPromotion(ctx context.Context, id string) (Promotion, error)
	// ListPromotions возвращает акции партнёра (пустой partnerID: всех партнёров).
	// Ненулевой liveAt оставляет только включённые и не истёкшие к этому моменту.
	ListPromotions(ctx context.Context, partnerID string, liveAt time.Time) ([]Promotion, error)
	UpdatePromotion(ctx context.Context, promotion Promotion) error
	DeletePromotion(ctx context.Context, id string) error
	CountLivePromotions(ctx context.Context, partnerID string, at time.Time) (int, error)
}

// UserRepository — каталог учётных записей для разрешения личности по токену.
type UserRepository interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
}
