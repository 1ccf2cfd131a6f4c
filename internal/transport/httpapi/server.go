// Package httpapi: HTTP и websocket интерфейс маркетплейса поверх chi.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/notify"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/idempotency"
	"github.com/vladislavdragonenkov/marketplace/internal/service/orders"
)

const maxBodyBytes = 1 << 20

// Orders: операции движка заказов, доступные через API.
type Orders interface {
	Create(ctx context.Context, caller domain.Identity, in orders.CreateInput) (orders.OrderView, error)
	Get(ctx context.Context, caller domain.Identity, orderID string) (orders.OrderView, error)
	ListForCustomer(ctx context.Context, caller domain.Identity, limit int) ([]domain.Order, error)
	ListForPartner(ctx context.Context, caller domain.Identity, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, caller domain.Identity, orderID, rawStatus string) (domain.Order, error)
	Delete(ctx context.Context, caller domain.Identity, orderID string) error
	Statistics(ctx context.Context, caller domain.Identity) (orders.Statistics, error)
	Timeline(ctx context.Context, caller domain.Identity, orderID string) ([]domain.TimelineEvent, error)
}

// Catalog: витрина и управление товарами.
type Catalog interface {
	ListPartners(ctx context.Context) ([]domain.Partner, error)
	GetPartner(ctx context.Context, id string) (domain.Partner, error)
	ListAvailableProducts(ctx context.Context, partnerID string) ([]domain.Product, error)
	Profile(ctx context.Context, caller domain.Identity) (domain.Partner, error)
	ListOwnProducts(ctx context.Context, caller domain.Identity) ([]domain.Product, error)
	CreateProduct(ctx context.Context, caller domain.Identity, in catalog.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, caller domain.Identity, productID string, in catalog.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, caller domain.Identity, productID string) error
	UpdateProfile(ctx context.Context, caller domain.Identity, in catalog.ProfileInput) (domain.Partner, error)
	ListLivePromotions(ctx context.Context, partnerID string) ([]domain.Promotion, error)
	ListOwnPromotions(ctx context.Context, caller domain.Identity) ([]domain.Promotion, error)
	CreatePromotion(ctx context.Context, caller domain.Identity, in catalog.PromotionInput) (domain.Promotion, error)
	UpdatePromotion(ctx context.Context, caller domain.Identity, promotionID string, in catalog.PromotionInput) (domain.Promotion, error)
	DeletePromotion(ctx context.Context, caller domain.Identity, promotionID string) error
}

// Authenticator разрешает токен в личность вызывающего.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (domain.Identity, error)
}

// Dependencies: всё, что нужно серверу.
type Dependencies struct {
	Orders  Orders
	Catalog Catalog
	Auth    Authenticator
	Hub     *notify.Hub
	// Guard включает Idempotency-Key для создания заказа; nil отключает.
	Guard   *idempotency.Guard
	Metrics *metrics.HTTPMetrics
	Logger  *log.Entry
}

// Limits: ограничение частоты запросов с одного адреса. RPS<=0 отключает лимит.
type Limits struct {
	RPS   float64
	Burst int
}

// Server обслуживает REST API и живые соединения.
type Server struct {
	orders     Orders
	catalog    Catalog
	auth       Authenticator
	hub        *notify.Hub
	guard      *idempotency.Guard
	metrics    *metrics.HTTPMetrics
	limiter    *ipLimiter
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *log.Entry
}

// NewServer проверяет зависимости и собирает сервер.
func NewServer(deps Dependencies, limits Limits) (*Server, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("httpapi: orders engine is required")
	case deps.Catalog == nil:
		return nil, errors.New("httpapi: catalog is required")
	case deps.Auth == nil:
		return nil, errors.New("httpapi: authenticator is required")
	case deps.Hub == nil:
		return nil, errors.New("httpapi: notification hub is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "http-api")
	}

	s := &Server{
		orders:  deps.Orders,
		catalog: deps.Catalog,
		auth:    deps.Auth,
		hub:     deps.Hub,
		guard:   deps.Guard,
		metrics: deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Доступ определяется токеном, а не origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: notify.DefaultSendBuffer,
		logger:     deps.Logger,
	}
	if limits.RPS > 0 {
		s.limiter = newIPLimiter(limits.RPS, limits.Burst)
	}
	return s, nil
}

// Handler возвращает роутер со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, domain.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			Code:    http.StatusMethodNotAllowed,
			Kind:    string(domain.KindInvalidRequest),
			Message: "method not allowed",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Websocket сам проверяет учётные данные после upgrade.
		r.Get("/ws/orders/{userID}", s.handleOrderSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Route("/customer", s.customerRoutes)
			r.Route("/partner", s.partnerRoutes)
		})
	})

	return r
}

func (s *Server) customerRoutes(r chi.Router) {
	r.Get("/partners", s.handleListPartners)
	r.Get("/partners/{partnerID}", s.handleGetPartner)
	r.Get("/products", s.handleListAvailableProducts)
	r.Get("/promotions", s.handleListLivePromotions)

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleCustomer))
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders", s.handleListCustomerOrders)
		r.Get("/orders/{orderID}", s.handleGetOrder)
	})
}

func (s *Server) partnerRoutes(r chi.Router) {
	r.Use(s.requireRole(domain.RolePartner))
	r.Get("/profile", s.handleProfile)
	r.Put("/profile", s.handleUpdateProfile)
	r.Get("/statistics", s.handleStatistics)

	r.Get("/orders", s.handleListPartnerOrders)
	r.Get("/orders/{orderID}", s.handleGetOrder)
	r.Put("/orders/{orderID}", s.handleUpdateStatus)
	r.Delete("/orders/{orderID}", s.handleDeleteOrder)
	r.Get("/orders/{orderID}/timeline", s.handleTimeline)

	r.Get("/products", s.handleListOwnProducts)
	r.Post("/products", s.handleCreateProduct)
	r.Put("/products/{productID}", s.handleUpdateProduct)
	r.Delete("/products/{productID}", s.handleDeleteProduct)

	r.Get("/promotions", s.handleListOwnPromotions)
	r.Post("/promotions", s.handleCreatePromotion)
	r.Put("/promotions/{promotionID}", s.handleUpdatePromotion)
	r.Delete("/promotions/{promotionID}", s.handleDeletePromotion)
}
