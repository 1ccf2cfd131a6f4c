// Package orders реализует жизненный цикл заказа маркетплейса: создание,
// смену статуса, удаление и чтение с проверкой ролей и владения.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultListLimit   = 100
	maxListLimit       = 500
)

// Имена операций для логов и метрик.
const (
	opCreate       = "create"
	opUpdateStatus = "update_status"
	opDelete       = "delete"
	opGet          = "get"
	opList         = "list"
	opStatistics   = "statistics"
	opTimeline     = "timeline"
)

// Notifier доставляет уведомление об изменении заказа живым соединениям.
type Notifier interface {
	PublishOrderChanged(ctx context.Context, order domain.Order, partnerUserID string)
}

// EngineOptions задаёт параметры движка.
type EngineOptions struct {
	Notifier         Notifier
	Outbox           domain.OutboxRepository
	Timeline         domain.TimelineRepository
	Logger           *log.Entry
	Metrics          *metrics.OrderMetrics
	PricePolicy      domain.PricePolicy
	TransitionPolicy domain.TransitionPolicy
	Clock            func() time.Time
	IDGenerator      func() string
	MaxAttempts      int
	InstanceID       string
}

// Option настраивает Engine.
type Option func(*EngineOptions)

// WithNotifier подключает рассылку уведомлений.
func WithNotifier(notifier Notifier) Option {
	return func(opts *EngineOptions) { opts.Notifier = notifier }
}

// WithOutbox подключает outbox для событий заказа. Событие ставится в очередь
// отдельной записью после коммита заказа: сбой между ними теряет событие, но не заказ.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *EngineOptions) { opts.Outbox = outbox }
}

// WithTimeline подключает историю статусов.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *EngineOptions) { opts.Timeline = timeline }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *EngineOptions) { opts.Logger = logger }
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *EngineOptions) { opts.Metrics = m }
}

// WithPricePolicy задаёт политику цены позиции.
func WithPricePolicy(policy domain.PricePolicy) Option {
	return func(opts *EngineOptions) { opts.PricePolicy = policy }
}

// WithTransitionPolicy задаёт политику смены статусов.
func WithTransitionPolicy(policy domain.TransitionPolicy) Option {
	return func(opts *EngineOptions) { opts.TransitionPolicy = policy }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *EngineOptions) { opts.Clock = now }
}

// WithIDGenerator подменяет генератор идентификаторов и токенов выдачи.
func WithIDGenerator(newID func() string) Option {
	return func(opts *EngineOptions) { opts.IDGenerator = newID }
}

// WithMaxAttempts задаёт число попыток записи при конфликте.
func WithMaxAttempts(attempts int) Option {
	return func(opts *EngineOptions) { opts.MaxAttempts = attempts }
}

// WithInstanceID помечает события этого инстанса для реле между репликами.
func WithInstanceID(id string) Option {
	return func(opts *EngineOptions) { opts.InstanceID = id }
}

// Engine: движок жизненного цикла заказа.
type Engine struct {
	orders      domain.OrderRepository
	catalog     domain.CatalogRepository
	notifier    Notifier
	outbox      domain.OutboxRepository
	timeline    domain.TimelineRepository
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
	prices      domain.PricePolicy
	transitions domain.TransitionPolicy
	now         func() time.Time
	newID       func() string
	maxAttempts int
	instanceID  string
}

// NewEngine создаёт движок. Хранилища заказов и каталога обязательны.
func NewEngine(orders domain.OrderRepository, catalog domain.CatalogRepository, options ...Option) (*Engine, error) {
	if orders == nil {
		return nil, errors.New("orders: order repository is required")
	}
	if catalog == nil {
		return nil, errors.New("orders: catalog repository is required")
	}

	opts := EngineOptions{
		PricePolicy:      domain.PriceCatalog,
		TransitionPolicy: domain.TransitionStrict,
		MaxAttempts:      defaultMaxAttempts,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-engine")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.NewString
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	return &Engine{
		orders:      orders,
		catalog:     catalog,
		notifier:    opts.Notifier,
		outbox:      opts.Outbox,
		timeline:    opts.Timeline,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		prices:      opts.PricePolicy,
		transitions: opts.TransitionPolicy,
		now:         func() time.Time { return opts.Clock().UTC() },
		newID:       opts.IDGenerator,
		maxAttempts: opts.MaxAttempts,
		instanceID:  opts.InstanceID,
	}, nil
}

// observe пишет метрику операции; вызывается через defer с указателем на именованную ошибку.
func (e *Engine) observe(operation string, started time.Time, err *error) {
	result := metrics.ResultOK
	if *err != nil {
		result = string(domain.KindOf(*err))
	}
	e.metrics.RecordOperation(operation, result, time.Since(started))
}

func requireRole(caller domain.Identity, role domain.Role) error {
	if caller.Role != role {
		return domain.ErrRoleRequired
	}
	return nil
}

// partnerOf возвращает профиль партнёра вызывающего.
func (e *Engine) partnerOf(ctx context.Context, caller domain.Identity) (domain.Partner, error) {
	if err := requireRole(caller, domain.RolePartner); err != nil {
		return domain.Partner{}, err
	}
	return e.catalog.GetPartnerByUserID(ctx, caller.UserID)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
