package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	partner, err := s.catalog.Profile(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPartnerResponse(partner))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req profileRequest
	if err := decodeValidated(profileLoader, body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	partner, err := s.catalog.UpdateProfile(r.Context(), caller(r), catalog.ProfileInput{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPartnerResponse(partner))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orders.Statistics(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{
		TotalOrders:      stats.TotalOrders,
		CompletedOrders:  stats.CompletedOrders,
		Revenue:          stats.Revenue,
		TotalProducts:    stats.TotalProducts,
		ActivePromotions: stats.ActivePromotions,
	})
}

func (s *Server) handleListPartnerOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.orders.ListForPartner(r.Context(), caller(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderListResponse(list))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := decodeValidated(updateStatusLoader, body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.orders.UpdateStatus(r.Context(), caller(r), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.Delete(r.Context(), caller(r), chi.URLParam(r, "orderID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.orders.Timeline(r.Context(), caller(r), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(events, func(e domain.TimelineEvent, _ int) timelineEventResponse {
		return timelineEventResponse{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred}
	}))
}

func (s *Server) handleListOwnProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListOwnProducts(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(products, func(p domain.Product, _ int) productResponse {
		return newProductResponse(p)
	}))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := s.productInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	product, err := s.catalog.CreateProduct(r.Context(), caller(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductResponse(product))
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := s.productInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	product, err := s.catalog.UpdateProduct(r.Context(), caller(r), chi.URLParam(r, "productID"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductResponse(product))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteProduct(r.Context(), caller(r), chi.URLParam(r, "productID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// productInput читает товар из тела. Без поля available товар считается доступным.
func (s *Server) productInput(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, error) {
	body, err := readBody(w, r)
	if err != nil {
		return catalog.ProductInput{}, err
	}
	var req productRequest
	if err := decodeValidated(productLoader, body, &req); err != nil {
		return catalog.ProductInput{}, err
	}
	return catalog.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   lo.FromPtrOr(req.Available, true),
	}, nil
}

func (s *Server) handleListOwnPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := s.catalog.ListOwnPromotions(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromotionListResponse(promotions))
}

func (s *Server) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	in, err := s.promotionInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	promotion, err := s.catalog.CreatePromotion(r.Context(), caller(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPromotionResponse(promotion))
}

func (s *Server) handleUpdatePromotion(w http.ResponseWriter, r *http.Request) {
	in, err := s.promotionInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	promotion, err := s.catalog.UpdatePromotion(r.Context(), caller(r), chi.URLParam(r, "promotionID"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromotionResponse(promotion))
}

func (s *Server) handleDeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeletePromotion(r.Context(), caller(r), chi.URLParam(r, "promotionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promotionInput читает акцию из тела. Без is_active акция считается включённой.
func (s *Server) promotionInput(w http.ResponseWriter, r *http.Request) (catalog.PromotionInput, error) {
	body, err := readBody(w, r)
	if err != nil {
		return catalog.PromotionInput{}, err
	}
	var req promotionRequest
	if err := decodeValidated(promotionLoader, body, &req); err != nil {
		return catalog.PromotionInput{}, err
	}
	return catalog.PromotionInput{
		Title:           req.Title,
		Description:     req.Description,
		ImageURL:        req.ImageURL,
		DiscountPercent: req.DiscountPercent,
		Active:          lo.FromPtrOr(req.Active, true),
		ExpiresAt:       req.ExpiresAt,
	}, nil
}
