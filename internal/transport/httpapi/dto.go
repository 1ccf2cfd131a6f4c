package httpapi

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/orders"
)

// Денежные поля сериализуются строкой ("25.5"), чтобы не терять точность.

type partnerResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPartnerResponse(p domain.Partner) partnerResponse {
	return partnerResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		Address:     p.Address,
		Phone:       p.Phone,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		CreatedAt:   p.CreatedAt,
	}
}

type productResponse struct {
	ID          string          `json:"id"`
	PartnerID   string          `json:"partner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		PartnerID:   p.PartnerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
	}
}

type promotionResponse struct {
	ID              string           `json:"id"`
	PartnerID       string           `json:"partner_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	ImageURL        string           `json:"image_url"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	Active          bool             `json:"is_active"`
	ExpiresAt       *time.Time       `json:"expires_at"`
	CreatedAt       time.Time        `json:"created_at"`
}

func newPromotionResponse(p domain.Promotion) promotionResponse {
	return promotionResponse{
		ID:              p.ID,
		PartnerID:       p.PartnerID,
		Title:           p.Title,
		Description:     p.Description,
		ImageURL:        p.ImageURL,
		DiscountPercent: p.DiscountPercent,
		Active:          p.Active,
		ExpiresAt:       p.ExpiresAt,
		CreatedAt:       p.CreatedAt,
	}
}

func newPromotionListResponse(list []domain.Promotion) []promotionResponse {
	return lo.Map(list, func(p domain.Promotion, _ int) promotionResponse { return newPromotionResponse(p) })
}

type orderItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customer_id"`
	PartnerID       string              `json:"partner_id"`
	Status          domain.OrderStatus  `json:"status"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	RedemptionToken string              `json:"redemption_token"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       *time.Time          `json:"updated_at"`
	Version         int64               `json:"version"`
	Items           []orderItemResponse `json:"items"`
	Partner         *partnerResponse    `json:"partner,omitempty"`
}

func newOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		PartnerID:       o.PartnerID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		RedemptionToken: o.RedemptionToken,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Version:         o.Version,
		Items: lo.Map(o.Items, func(item domain.OrderItem, _ int) orderItemResponse {
			return orderItemResponse{
				ID:        item.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Price,
			}
		}),
	}
}

func newOrderViewResponse(v orders.OrderView) orderResponse {
	resp := newOrderResponse(v.Order)
	partner := newPartnerResponse(v.Partner)
	resp.Partner = &partner
	return resp
}

func newOrderListResponse(list []domain.Order) []orderResponse {
	return lo.Map(list, func(o domain.Order, _ int) orderResponse { return newOrderResponse(o) })
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

type statisticsResponse struct {
	TotalOrders      int             `json:"total_orders"`
	CompletedOrders  int             `json:"completed_orders"`
	Revenue          decimal.Decimal `json:"revenue"`
	TotalProducts    int             `json:"total_products"`
	ActivePromotions int             `json:"active_promotions"`
}

type createOrderRequest struct {
	PartnerID string `json:"partner_id"`
	Items     []struct {
		ProductID string          `json:"product_id"`
		Quantity  int32           `json:"quantity"`
		Price     decimal.Decimal `json:"price"`
	} `json:"items"`
}

func (req createOrderRequest) input() orders.CreateInput {
	in := orders.CreateInput{PartnerID: req.PartnerID, Items: make([]orders.ItemInput, 0, len(req.Items))}
	for _, item := range req.Items {
		in.Items = append(in.Items, orders.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return in
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
}

type profileRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
}

type promotionRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	ImageURL        string           `json:"image_url"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	Active          *bool            `json:"is_active"`
	ExpiresAt       *time.Time       `json:"expires_at"`
}
