// Package catalog обслуживает витрину партнёров, управление товарами и акциями.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// ProductInput: поля товара, которые задаёт партнёр.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Available   bool
}

// ProfileInput: изменяемые поля профиля. nil оставляет поле как есть.
type ProfileInput struct {
	Name        *string
	Description *string
	Address     *string
	Phone       *string
}

// PromotionInput: поля акции, которые задаёт партнёр.
type PromotionInput struct {
	Title           string
	Description     string
	ImageURL        string
	DiscountPercent *decimal.Decimal
	Active          bool
	ExpiresAt       *time.Time
}

// Service: операции каталога с проверкой роли и владения.
type Service struct {
	repo   domain.CatalogRepository
	now    func() time.Time
	newID  func() string
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(repo domain.CatalogRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: logger,
	}
}

// ListPartners возвращает всех партнёров.
func (s *Service) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	return s.repo.ListPartners(ctx)
}

// GetPartner возвращает партнёра по идентификатору.
func (s *Service) GetPartner(ctx context.Context, id string) (domain.Partner, error) {
	return s.repo.GetPartner(ctx, id)
}

// ListAvailableProducts возвращает товары в продаже; пустой partnerID: по всем партнёрам.
func (s *Service) ListAvailableProducts(ctx context.Context, partnerID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, partnerID, true)
}

// Profile возвращает профиль партнёра вызывающего.
func (s *Service) Profile(ctx context.Context, caller domain.Identity) (domain.Partner, error) {
	if caller.Role != domain.RolePartner {
		return domain.Partner{}, domain.ErrRoleRequired
	}
	return s.repo.GetPartnerByUserID(ctx, caller.UserID)
}

// UpdateProfile частично обновляет профиль партнёра вызывающего.
func (s *Service) UpdateProfile(ctx context.Context, caller domain.Identity, in ProfileInput) (domain.Partner, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return domain.Partner{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Partner{}, domain.ErrPartnerNameRequired
		}
		partner.Name = name
	}
	if in.Description != nil {
		partner.Description = *in.Description
	}
	if in.Address != nil {
		partner.Address = *in.Address
	}
	if in.Phone != nil {
		partner.Phone = *in.Phone
	}
	if err := s.repo.UpdatePartner(ctx, partner); err != nil {
		return domain.Partner{}, fmt.Errorf("update partner: %w", err)
	}

	s.logger.WithField("partner_id", partner.ID).Info("partner profile updated")
	return partner, nil
}

// ListOwnProducts возвращает все товары партнёра, включая снятые с продажи.
func (s *Service) ListOwnProducts(ctx context.Context, caller domain.Identity) ([]domain.Product, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, partner.ID, false)
}

// CreateProduct добавляет товар в каталог партнёра.
func (s *Service) CreateProduct(ctx context.Context, caller domain.Identity, in ProductInput) (domain.Product, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:          s.newID(),
		PartnerID:   partner.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Available:   in.Available,
		CreatedAt:   s.now(),
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.WithFields(log.Fields{"product_id": product.ID, "partner_id": partner.ID}).Info("product created")
	return product, nil
}

// UpdateProduct меняет товар партнёра. Цена уже оформленных заказов не меняется.
func (s *Service) UpdateProduct(ctx context.Context, caller domain.Identity, productID string, in ProductInput) (domain.Product, error) {
	product, err := s.ownProduct(ctx, caller, productID)
	if err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(in.Name)
	product.Description = in.Description
	product.Price = in.Price
	product.Available = in.Available
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// DeleteProduct удаляет товар партнёра.
func (s *Service) DeleteProduct(ctx context.Context, caller domain.Identity, productID string) error {
	product, err := s.ownProduct(ctx, caller, productID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ownProduct возвращает товар, только если он принадлежит партнёру вызывающего.
func (s *Service) ownProduct(ctx context.Context, caller domain.Identity, productID string) (domain.Product, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if product.PartnerID != partner.ID {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// ListLivePromotions возвращает включённые и не истёкшие акции; пустой partnerID: всех партнёров.
func (s *Service) ListLivePromotions(ctx context.Context, partnerID string) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx, partnerID, s.now())
}

// ListOwnPromotions возвращает все акции партнёра, включая выключенные и истёкшие.
func (s *Service) ListOwnPromotions(ctx context.Context, caller domain.Identity) ([]domain.Promotion, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPromotions(ctx, partner.ID, time.Time{})
}

func (s *Service) CreatePromotion(ctx context.Context, caller domain.Identity, in PromotionInput) (domain.Promotion, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return domain.Promotion{}, err
	}

	promotion := domain.Promotion{
		ID:        s.newID(),
		PartnerID: partner.ID,
		CreatedAt: s.now(),
	}
	applyPromotion(&promotion, in)
	if err := promotion.Validate(); err != nil {
		return domain.Promotion{}, err
	}
	if err := s.repo.CreatePromotion(ctx, promotion); err != nil {
		return domain.Promotion{}, fmt.Errorf("create promotion: %w", err)
	}

	s.logger.WithFields(log.Fields{"promotion_id": promotion.ID, "partner_id": partner.ID}).Info("promotion created")
	return promotion, nil
}

func (s *Service) UpdatePromotion(ctx context.Context, caller domain.Identity, promotionID string, in PromotionInput) (domain.Promotion, error) {
	promotion, err := s.ownPromotion(ctx, caller, promotionID)
	if err != nil {
		return domain.Promotion{}, err
	}

	applyPromotion(&promotion, in)
	if err := promotion.Validate(); err != nil {
		return domain.Promotion{}, err
	}
	if err := s.repo.UpdatePromotion(ctx, promotion); err != nil {
		return domain.Promotion{}, fmt.Errorf("update promotion: %w", err)
	}
	return promotion, nil
}

func (s *Service) DeletePromotion(ctx context.Context, caller domain.Identity, promotionID string) error {
	promotion, err := s.ownPromotion(ctx, caller, promotionID)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePromotion(ctx, promotion.ID); err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return nil
}

// ownPromotion прячет чужие акции за ErrPromotionNotFound.
func (s *Service) ownPromotion(ctx context.Context, caller domain.Identity, promotionID string) (domain.Promotion, error) {
	partner, err := s.Profile(ctx, caller)
	if err != nil {
		return domain.Promotion{}, err
	}
	promotion, err := s.repo.GetPromotion(ctx, promotionID)
	if err != nil {
		return domain.Promotion{}, err
	}
	if promotion.PartnerID != partner.ID {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return promotion, nil
}

func applyPromotion(p *domain.Promotion, in PromotionInput) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.ImageURL = in.ImageURL
	p.DiscountPercent = in.DiscountPercent
	p.Active = in.Active
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		p.ExpiresAt = &t
	} else {
		p.ExpiresAt = nil
	}
}
