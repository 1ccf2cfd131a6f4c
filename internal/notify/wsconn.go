package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 10

	// DefaultSendBuffer: сколько сообщений может ждать отправки в одном соединении.
	DefaultSendBuffer = 32
)

var (
	// ErrSendBufferFull: клиент не успевает читать, сообщение отброшено.
	ErrSendBufferFull = errors.New("connection send buffer is full")
	// ErrConnClosed: соединение уже закрыто.
	ErrConnClosed = errors.New("connection is closed")
)

var pingReply = mustJSON(Message{Type: MessageTypePing, Message: "connected"})

// WSConn адаптирует *websocket.Conn к Conn: единственный писатель
// вычитывает буфер, читатель отвечает на входящие кадры.
type WSConn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *log.Entry

	closeOnce   sync.Once
	closeCode   int
	closeReason string
	writerDone  chan struct{}
}

// NewWSConn запускает писателя поверх уже принятого websocket-соединения.
func NewWSConn(ws *websocket.Conn, bufferSize int, logger *log.Entry) *WSConn {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	if logger == nil {
		logger = log.WithField("component", "ws-conn")
	}

	c := &WSConn{
		ws:         ws,
		send:       make(chan []byte, bufferSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		logger:     logger,
		closeCode:  websocket.CloseNormalClosure,
	}
	go c.writePump()
	return c
}

// Send ставит сообщение в очередь, не дожидаясь записи в сеть.
func (c *WSConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close просит писателя отправить close-кадр и закрыть соединение.
// Повторные вызовы ничего не делают.
func (c *WSConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
	return nil
}

// Serve регистрирует соединение в hub и обслуживает его до отключения клиента,
// отмены ctx или закрытия hub. Соединение снимается с регистрации сразу после выхода.
func (c *WSConn) Serve(ctx context.Context, hub *Hub, identity string) error {
	if err := hub.Register(identity, c); err != nil {
		_ = c.Close(websocket.CloseGoingAway, "server shutdown")
		<-c.writerDone
		return err
	}
	defer func() {
		hub.Deregister(identity, c)
		_ = c.Close(websocket.CloseNormalClosure, "")
		<-c.writerDone
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = c.Close(websocket.CloseGoingAway, "server shutdown")
	})
	defer stop()

	return c.readLoop()
}

func (c *WSConn) readLoop() error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, _, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := c.Send(pingReply); err != nil {
			c.logger.WithError(err).Debug("failed to queue ping reply")
		}
	}
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.WithError(err).Debug("write failed, closing connection")
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.writeClose(c.closeCode, c.closeReason)
			return
		}
	}
}

func (c *WSConn) writeClose(code int, reason string) {
	if code == websocket.CloseAbnormalClosure {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// RejectPolicyViolation закрывает принятое соединение кодом 1008 до отправки каких-либо сообщений.
func RejectPolicyViolation(ws *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
