package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// kindRateLimited не входит в доменную таксономию: лимит срабатывает до бизнес-логики.
const kindRateLimited = "rate_limited"

// errorResponse: тело любого ответа с ошибкой.
type errorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusOf сопоставляет ошибку HTTP-коду. Единственное место такого сопоставления.
func statusOf(err error) (int, domain.ErrorKind) {
	kind := domain.KindOf(err)
	if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		return http.StatusUnprocessableEntity, kind
	}
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized, kind
	case domain.KindForbidden:
		return http.StatusForbidden, kind
	case domain.KindNotFound:
		return http.StatusNotFound, kind
	case domain.KindInvalidRequest:
		return http.StatusBadRequest, kind
	case domain.KindConflict:
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, domain.KindInternal
	}
}

// errorBody строит ответ на ошибку. Внутренние ошибки логируются и наружу не попадают.
func errorBody(r *http.Request, logger *log.Entry, err error) (int, errorResponse) {
	status, kind := statusOf(err)
	message := err.Error()
	if kind == domain.KindInternal {
		logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		message = http.StatusText(http.StatusInternalServerError)
	}
	return status, errorResponse{Code: status, Kind: string(kind), Message: message}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(r, s.logger, err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"code":500,"kind":"internal","message":"Internal Server Error"}`)
	}
	writeRaw(w, status, raw)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
