package handlers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
	"github.com/yuya-sudo/yuya-api/internal/platform/requestctx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the session-scoped cart endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers over the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Get("/pricing", h.priceCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{kind}/{id}", h.removeItem)
	r.Put("/items/{kind}/{id}/seasons", h.updateSeasons)
	r.Put("/items/{kind}/{id}/payment-method", h.updatePaymentMethod)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeCartCacheHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

// Cart state is per session and mutates often; mark it uncacheable but still
// expose validators so clients can cheaply detect cross-tab changes.
func writeCartCacheHeaders(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	digest := fnv.New64a()
	_, _ = digest.Write([]byte(cart.ID))
	_, _ = fmt.Fprintf(digest, "|%d|%d", cart.UpdatedAt.UnixNano(), len(cart.Items))
	w.Header().Set("ETag", fmt.Sprintf("W/%q", strconv.FormatUint(digest.Sum64(), 16)))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, sessionID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) priceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	pricing, err := h.carts.PriceCart(ctx, sessionID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pricingResponse{Pricing: buildPricingPayload(pricing)})
}

type addItemRequest struct {
	Kind            string `json:"kind"`
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	PosterPath      string `json:"poster_path,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	SelectedSeasons []int  `json:"selected_seasons,omitempty"`
	ChapterCount    int    `json:"chapter_count,omitempty"`
	Country         string `json:"country,omitempty"`
	Genre           string `json:"genre,omitempty"`
	Status          string `json:"status,omitempty"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	var req addItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.AddCartItemCommand{
		SessionID:       sessionID,
		Key:             domain.ItemKey{Kind: domain.MediaKind(strings.TrimSpace(req.Kind)), ID: req.ID},
		Title:           req.Title,
		PosterPath:      req.PosterPath,
		SelectedSeasons: req.SelectedSeasons,
		ChapterCount:    req.ChapterCount,
		Country:         req.Country,
		Genre:           req.Genre,
		Status:          domain.NovelaStatus(strings.TrimSpace(req.Status)),
	}
	if method := strings.TrimSpace(req.PaymentMethod); method != "" {
		pm := domain.PaymentMethod(method)
		cmd.PaymentMethod = &pm
	}

	result, err := h.carts.AddItem(ctx, cmd)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	// A duplicate add leaves the cart untouched, so report 200 instead of 201.
	status := http.StatusCreated
	if !result.Added {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, cartResponse{Cart: buildCartPayload(result.Cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	key, err := itemKeyFromURL(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{SessionID: sessionID, Key: key})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type updateSeasonsRequest struct {
	Seasons []int `json:"seasons"`
}

func (h *CartHandlers) updateSeasons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	key, err := itemKeyFromURL(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req updateSeasonsRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cart, err := h.carts.UpdateSeasons(ctx, services.UpdateSeasonsCommand{
		SessionID: sessionID,
		Key:       key,
		Seasons:   req.Seasons,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type updatePaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *CartHandlers) updatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.requireSession(ctx, w)
	if !ok {
		return
	}

	key, err := itemKeyFromURL(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req updatePaymentMethodRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cart, err := h.carts.UpdatePaymentMethod(ctx, services.UpdatePaymentMethodCommand{
		SessionID: sessionID,
		Key:       key,
		Method:    domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) requireSession(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	sessionID := strings.TrimSpace(requestctx.SessionID(ctx))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "session identifier is required", http.StatusBadRequest))
		return "", false
	}
	return sessionID, true
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cart_state", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// Payload shapes -------------------------------------------------------------

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	ItemsCount int               `json:"items_count"`
	Items      []cartItemPayload `json:"items"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	Kind            string `json:"kind"`
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	PosterPath      string `json:"poster_path,omitempty"`
	PaymentMethod   string `json:"payment_method"`
	SelectedSeasons []int  `json:"selected_seasons,omitempty"`
	ChapterCount    int    `json:"chapter_count,omitempty"`
	Country         string `json:"country,omitempty"`
	Genre           string `json:"genre,omitempty"`
	Status          string `json:"status,omitempty"`
	AddedAt         string `json:"added_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

type pricingResponse struct {
	Pricing pricingPayload `json:"pricing"`
}

type pricingPayload struct {
	CashTotal     int64                `json:"cash_total"`
	TransferTotal int64                `json:"transfer_total"`
	Total         int64                `json:"total"`
	Items         []itemPricingPayload `json:"items"`
}

type itemPricingPayload struct {
	Kind          string `json:"kind"`
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	PaymentMethod string `json:"payment_method"`
	BasePrice     int64  `json:"base_price"`
	FinalPrice    int64  `json:"final_price"`
	SeasonCount   int    `json:"season_count,omitempty"`
	ChapterCount  int    `json:"chapter_count,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:         cart.ID,
		SessionID:  cart.SessionID,
		ItemsCount: len(cart.Items),
		Items:      buildCartItems(cart.Items),
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartItems(items []services.CartItem) []cartItemPayload {
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		entry := cartItemPayload{
			Kind:            string(item.Key.Kind),
			ID:              item.Key.ID,
			Title:           item.Title,
			PosterPath:      item.PosterPath,
			PaymentMethod:   string(item.PaymentMethod),
			SelectedSeasons: item.SelectedSeasons,
			ChapterCount:    item.ChapterCount,
			Country:         item.Country,
			Genre:           item.Genre,
			Status:          string(item.Status),
			AddedAt:         formatTime(item.AddedAt),
		}
		if item.UpdatedAt != nil {
			entry.UpdatedAt = formatTime(*item.UpdatedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

func buildPricingPayload(pricing services.CartPricing) pricingPayload {
	items := make([]itemPricingPayload, 0, len(pricing.Items))
	for _, item := range pricing.Items {
		items = append(items, itemPricingPayload{
			Kind:          string(item.Key.Kind),
			ID:            item.Key.ID,
			Title:         item.Title,
			PaymentMethod: string(item.PaymentMethod),
			BasePrice:     item.BasePrice,
			FinalPrice:    item.FinalPrice,
			SeasonCount:   item.SeasonCount,
			ChapterCount:  item.ChapterCount,
		})
	}
	return pricingPayload{
		CashTotal:     pricing.CashTotal,
		TransferTotal: pricing.TransferTotal,
		Total:         pricing.Total,
		Items:         items,
	}
}
