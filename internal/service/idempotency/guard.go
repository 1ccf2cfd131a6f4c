package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// DefaultTTL: время жизни ключа идемпотентности.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress: запрос с тем же ключом ещё обрабатывается.
var ErrRequestInProgress = fmt.Errorf("%w: request with the same idempotency key is already processing", domain.ErrConflict)

// Replay: сохранённый ответ на уже выполненный запрос.
type Replay struct {
	HTTPStatus int
	Body       []byte
}

// Guard реализует протокол Idempotency-Key поверх IdempotencyRepository.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard. ttl<=0 заменяется DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Begin резервирует ключ. Возвращает Replay, если запрос уже выполнен;
// ErrRequestInProgress, если он ещё идёт; ErrIdempotencyHashMismatch,
// если ключ использован с другим телом.
func (g *Guard) Begin(ctx context.Context, key, fingerprint string) (*Replay, error) {
	record, err := g.repo.CreateProcessing(ctx, key, fingerprint, g.now().Add(g.ttl))
	if err == nil {
		return nil, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			return &Replay{HTTPStatus: record.HTTPStatus, Body: record.ResponseBody}, nil
		case domain.IdempotencyStatusProcessing:
			return nil, ErrRequestInProgress
		default:
			return nil, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		return nil, fmt.Errorf("create idempotency record: %w", err)
	}
}

// Complete сохраняет ответ: 2xx как done, 4xx как failed. После 5xx ключ
// освобождается, повтор с ним выполнит запрос заново. Запись идёт вне отмены
// ctx: клиент мог уже отключиться, а заказ при этом создан.
// Ошибка сохранения только логируется, ответ клиенту уже сформирован.
func (g *Guard) Complete(ctx context.Context, key string, httpStatus int, body []byte) {
	ctx = context.WithoutCancel(ctx)

	var err error
	switch {
	case httpStatus >= 200 && httpStatus < 300:
		err = g.repo.MarkDone(ctx, key, body, httpStatus)
	case httpStatus >= 500:
		err = g.repo.Release(ctx, key)
	default:
		err = g.repo.MarkFailed(ctx, key, body, httpStatus)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}
