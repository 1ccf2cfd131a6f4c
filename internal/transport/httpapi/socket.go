package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/notify"
)

// handleOrderSocket принимает живое соединение пользователя {userID}.
// Учётные данные проверяются после upgrade: при отказе клиент получает
// close 1008 до первого сообщения, анонимного режима нет.
func (s *Server) handleOrderSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже ответил клиенту.
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	logger := s.logger.WithField("user_id", userID)

	raw := credential(r)
	if raw == "" {
		logger.Warn("websocket rejected: missing credential")
		notify.RejectPolicyViolation(ws, "missing credential")
		return
	}
	identity, err := s.auth.Authenticate(r.Context(), raw)
	if err != nil {
		logger.WithError(err).Warn("websocket rejected: invalid credential")
		notify.RejectPolicyViolation(ws, "invalid credential")
		return
	}
	if identity.UserID != userID {
		logger.WithField("identity", identity.UserID).Warn("websocket rejected: identity mismatch")
		notify.RejectPolicyViolation(ws, "identity mismatch")
		return
	}

	conn := notify.NewWSConn(ws, s.sendBuffer, logger.WithField("component", "ws-conn"))
	logger.Info("websocket connected")
	if err := conn.Serve(r.Context(), s.hub, identity.UserID); err != nil && !errors.Is(err, notify.ErrConnClosed) {
		logger.WithError(err).Debug("websocket closed")
	}
	logger.WithFields(log.Fields{"identities": s.hub.Identities()}).Info("websocket disconnected")
}
