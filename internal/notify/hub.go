// Package notify рассылает события заказов по живым соединениям пользователей.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const shardCount = 32

// Типы сообщений, которые получает клиент.
const (
	MessageTypeOrderUpdate = "order_update"
	MessageTypePing        = "ping"
)

// ErrHubClosed возвращается при регистрации в закрытом hub.
var ErrHubClosed = errors.New("notification hub is closed")

// Message: конверт, уходящий в соединение.
type Message struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Conn: живое соединение пользователя.
type Conn interface {
	// Send ставит сообщение в очередь соединения и не блокируется на медленном клиенте.
	Send(payload []byte) error
	// Close закрывает соединение с указанным кодом.
	Close(code int, reason string) error
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

// Hub: реестр identity -> соединения, разбитый на shardCount шардов.
type Hub struct {
	shards  [shardCount]*shard
	closed  atomic.Bool
	logger  *log.Entry
	metrics *metrics.HubMetrics
}

// NewHub создаёт пустой реестр. metrics может быть nil.
func NewHub(logger *log.Entry, m *metrics.HubMetrics) *Hub {
	if logger == nil {
		logger = log.WithField("component", "notify-hub")
	}
	h := &Hub{logger: logger, metrics: m}
	for i := range h.shards {
		h.shards[i] = &shard{conns: make(map[string]map[Conn]struct{})}
	}
	return h
}

func (h *Hub) shardFor(identity string) *shard {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(identity))
	return h.shards[hasher.Sum32()%shardCount]
}

// Register добавляет соединение пользователя. Число соединений не ограничено.
func (h *Hub) Register(identity string, conn Conn) error {
	if identity == "" || conn == nil {
		return fmt.Errorf("register: identity and connection are required")
	}

	s := h.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка под локом шарда: Close забирает соединения под тем же локом.
	if h.closed.Load() {
		return ErrHubClosed
	}

	set, ok := s.conns[identity]
	if !ok {
		set = make(map[Conn]struct{})
		s.conns[identity] = set
	}
	if _, dup := set[conn]; dup {
		return nil
	}
	set[conn] = struct{}{}
	h.metrics.ConnectionRegistered(!ok)
	return nil
}

// Deregister убирает соединение; пустая запись пользователя удаляется.
func (h *Hub) Deregister(identity string, conn Conn) {
	s := h.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[identity]
	if !ok {
		return
	}
	if _, registered := set[conn]; !registered {
		return
	}
	delete(set, conn)
	gone := len(set) == 0
	if gone {
		delete(s.conns, identity)
	}
	h.metrics.ConnectionDeregistered(gone)
}

// Publish доставляет сообщение во все текущие соединения каждого адресата.
// Ошибки доставки логируются по одной на соединение и наружу не возвращаются.
func (h *Hub) Publish(ctx context.Context, msg Message, targets ...string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).WithField("type", msg.Type).Error("failed to encode notification")
		return
	}

	for _, identity := range lo.Uniq(lo.Compact(targets)) {
		if ctx.Err() != nil {
			return
		}
		for _, conn := range h.snapshot(identity) {
			err := conn.Send(payload)
			h.metrics.RecordDelivery(err)
			if err != nil {
				h.logger.WithError(err).WithField("user_id", identity).Warn("failed to deliver notification")
			}
		}
	}
}

// PublishOrderChanged уведомляет клиента заказа и владельца партнёра.
func (h *Hub) PublishOrderChanged(ctx context.Context, order domain.Order, partnerUserID string) {
	h.Publish(ctx, Message{
		Type: MessageTypeOrderUpdate,
		Data: domain.NewOrderChanged(order),
	}, order.CustomerID, partnerUserID)
}

func (h *Hub) snapshot(identity string) []Conn {
	s := h.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Keys(s.conns[identity])
}

// Close закрывает все соединения кодом going away и очищает реестр.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}

	var conns []Conn
	for _, s := range h.shards {
		s.mu.Lock()
		for _, set := range s.conns {
			conns = append(conns, lo.Keys(set)...)
		}
		s.conns = make(map[string]map[Conn]struct{})
		s.mu.Unlock()
	}

	for _, conn := range conns {
		if err := conn.Close(websocket.CloseGoingAway, "server shutdown"); err != nil {
			h.logger.WithError(err).Debug("failed to close connection")
		}
	}
	h.metrics.Reset()
	h.logger.WithField("connections", len(conns)).Info("notification hub closed")
}

// Identities возвращает число пользователей с хотя бы одним соединением.
func (h *Hub) Identities() int {
	total := 0
	for _, s := range h.shards {
		s.mu.RLock()
		total += len(s.conns)
		s.mu.RUnlock()
	}
	return total
}

// Connections возвращает число соединений пользователя.
func (h *Hub) Connections(identity string) int {
	s := h.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[identity])
}
