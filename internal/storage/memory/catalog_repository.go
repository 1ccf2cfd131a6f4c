package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type catalogRepositoryInMemory struct {
	mu       sync.RWMutex
	partners map[string]domain.Partner
	byUser   map[string]string // user id -> partner id
	products map[string]domain.Product
	promos   map[string]domain.Promotion
}

// NewCatalogRepository создаёт in-memory каталог партнёров, товаров и акций.
func NewCatalogRepository() domain.CatalogRepository {
	return &catalogRepositoryInMemory{
		partners: make(map[string]domain.Partner),
		byUser:   make(map[string]string),
		products: make(map[string]domain.Product),
		promos:   make(map[string]domain.Promotion),
	}
}

func (r *catalogRepositoryInMemory) CreatePartner(ctx context.Context, partner domain.Partner) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.partners[partner.ID]; exists {
		return domain.ErrDuplicateKey
	}
	if _, exists := r.byUser[partner.UserID]; exists {
		return domain.ErrDuplicateKey
	}
	r.partners[partner.ID] = partner
	r.byUser[partner.UserID] = partner.ID
	return nil
}

func (r *catalogRepositoryInMemory) GetPartner(ctx context.Context, id string) (domain.Partner, error) {
	if err := ctx.Err(); err != nil {
		return domain.Partner{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	partner, ok := r.partners[id]
	if !ok {
		return domain.Partner{}, domain.ErrPartnerNotFound
	}
	return partner, nil
}

func (r *catalogRepositoryInMemory) GetPartnerByUserID(ctx context.Context, userID string) (domain.Partner, error) {
	if err := ctx.Err(); err != nil {
		return domain.Partner{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[userID]
	if !ok {
		return domain.Partner{}, domain.ErrPartnerNotFound
	}
	return r.partners[id], nil
}

func (r *catalogRepositoryInMemory) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.Values(r.partners)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) UpdatePartner(ctx context.Context, partner domain.Partner) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.partners[partner.ID]
	if !ok {
		return domain.ErrPartnerNotFound
	}
	current.Name = partner.Name
	current.Description = partner.Description
	current.Address = partner.Address
	current.Phone = partner.Phone
	r.partners[partner.ID] = current
	return nil
}

func (r *catalogRepositoryInMemory) CreateProduct(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.partners[product.PartnerID]; !ok {
		return domain.ErrPartnerNotFound
	}
	if _, exists := r.products[product.ID]; exists {
		return domain.ErrDuplicateKey
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	r.products[product.ID] = product
	return nil
}

func (r *catalogRepositoryInMemory) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *catalogRepositoryInMemory) ListProducts(ctx context.Context, partnerID string, onlyAvailable bool) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.Filter(lo.Values(r.products), func(p domain.Product, _ int) bool {
		if partnerID != "" && p.PartnerID != partnerID {
			return false
		}
		return !onlyAvailable || p.Available
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) UpdateProduct(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.PartnerID = current.PartnerID
	product.CreatedAt = current.CreatedAt
	r.products[product.ID] = product
	return nil
}

func (r *catalogRepositoryInMemory) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *catalogRepositoryInMemory) CountProducts(ctx context.Context, partnerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.CountBy(lo.Values(r.products), func(p domain.Product) bool {
		return p.PartnerID == partnerID
	}), nil
}

func (r *catalogRepositoryInMemory) CreatePromotion(ctx context.Context, promotion domain.Promotion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.partners[promotion.PartnerID]; !ok {
		return domain.ErrPartnerNotFound
	}
	if _, exists := r.promos[promotion.ID]; exists {
		return domain.ErrDuplicateKey
	}
	if promotion.CreatedAt.IsZero() {
		promotion.CreatedAt = time.Now().UTC()
	}
	r.promos[promotion.ID] = promotion
	return nil
}

func (r *catalogRepositoryInMemory) GetPromotion(ctx context.Context, id string) (domain.Promotion, error) {
	if err := ctx.Err(); err != nil {
		return domain.Promotion{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	promotion, ok := r.promos[id]
	if !ok {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return promotion, nil
}

func (r *catalogRepositoryInMemory) ListPromotions(ctx context.Context, partnerID string, liveAt time.Time) ([]domain.Promotion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := lo.Filter(lo.Values(r.promos), func(p domain.Promotion, _ int) bool {
		if partnerID != "" && p.PartnerID != partnerID {
			return false
		}
		return liveAt.IsZero() || p.LiveAt(liveAt)
	})
	// новые первыми
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) UpdatePromotion(ctx context.Context, promotion domain.Promotion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.promos[promotion.ID]
	if !ok {
		return domain.ErrPromotionNotFound
	}
	promotion.PartnerID = current.PartnerID
	promotion.CreatedAt = current.CreatedAt
	r.promos[promotion.ID] = promotion
	return nil
}

func (r *catalogRepositoryInMemory) DeletePromotion(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.promos[id]; !ok {
		return domain.ErrPromotionNotFound
	}
	delete(r.promos, id)
	return nil
}

func (r *catalogRepositoryInMemory) CountLivePromotions(ctx context.Context, partnerID string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.CountBy(lo.Values(r.promos), func(p domain.Promotion) bool {
		return p.PartnerID == partnerID && p.LiveAt(at)
	}), nil
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
