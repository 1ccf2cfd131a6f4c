package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

func (s *Server) handleListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := s.catalog.ListPartners(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(partners, func(p domain.Partner, _ int) partnerResponse {
		return newPartnerResponse(p)
	}))
}

func (s *Server) handleGetPartner(w http.ResponseWriter, r *http.Request) {
	partner, err := s.catalog.GetPartner(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPartnerResponse(partner))
}

// handleListAvailableProducts отдаёт товары в продаже; partner_id сужает выборку до одного партнёра.
func (s *Server) handleListAvailableProducts(w http.ResponseWriter, r *http.Request) {
	partnerID := strings.TrimSpace(r.URL.Query().Get("partner_id"))
	products, err := s.catalog.ListAvailableProducts(r.Context(), partnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(products, func(p domain.Product, _ int) productResponse {
		return newProductResponse(p)
	}))
}

// handleListLivePromotions отдаёт действующие акции; partner_id сужает выборку.
func (s *Server) handleListLivePromotions(w http.ResponseWriter, r *http.Request) {
	partnerID := strings.TrimSpace(r.URL.Query().Get("partner_id"))
	promotions, err := s.catalog.ListLivePromotions(r.Context(), partnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromotionListResponse(promotions))
}

// handleCreateOrder создаёт заказ. С заголовком Idempotency-Key повтор того же
// запроса получает сохранённый ответ, а не второй заказ.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.guard == nil {
		status, raw := s.createOrder(r, body)
		writeRaw(w, status, raw)
		return
	}

	scope := domain.IdempotencyScope(caller(r).UserID, key)
	replay, err := s.guard.Begin(r.Context(), scope, domain.RequestFingerprint(r.Method, r.URL.Path, body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if replay != nil {
		w.Header().Set("Idempotent-Replayed", "true")
		writeRaw(w, replay.HTTPStatus, replay.Body)
		return
	}

	status, raw := s.createOrder(r, body)
	s.guard.Complete(r.Context(), scope, status, raw)
	writeRaw(w, status, raw)
}

// createOrder возвращает готовый ответ, чтобы его можно было сохранить для повтора.
func (s *Server) createOrder(r *http.Request, body []byte) (int, []byte) {
	var req createOrderRequest
	if err := decodeValidated(createOrderLoader, body, &req); err != nil {
		return s.encodeError(r, err)
	}

	view, err := s.orders.Create(r.Context(), caller(r), req.input())
	if err != nil {
		return s.encodeError(r, err)
	}
	raw, err := json.Marshal(newOrderViewResponse(view))
	if err != nil {
		return s.encodeError(r, fmt.Errorf("encode order: %w", err))
	}
	return http.StatusCreated, raw
}

func (s *Server) encodeError(r *http.Request, err error) (int, []byte) {
	status, body := errorBody(r, s.logger, err)
	raw, _ := json.Marshal(body)
	return status, raw
}

func (s *Server) handleListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.orders.ListForCustomer(r.Context(), caller(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderListResponse(list))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := s.orders.Get(r.Context(), caller(r), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderViewResponse(view))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrInvalidRequest, err)
	}
	return body, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest)
	}
	return limit, nil
}
