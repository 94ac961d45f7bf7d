package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
	"github.com/yuya-sudo/yuya-api/internal/platform/requestctx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

const (
	maxCheckoutBodySize  = 16 * 1024
	composeRateLimit     = 5
	composeRateWindow    = time.Minute
	errorSessionRequired = "session_required"
)

// CheckoutHandlers exposes customer validation and order composition.
type CheckoutHandlers struct {
	checkout    services.CheckoutService
	limiter     rateLimiter
	idempotency func(http.Handler) http.Handler
}

// CheckoutOption customises checkout handler construction.
type CheckoutOption func(*CheckoutHandlers)

// WithComposeIdempotency guards order composition with the given idempotency
// middleware so a retried submit replays the stored order instead of
// composing a duplicate.
func WithComposeIdempotency(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.idempotency = mw
	}
}

// NewCheckoutHandlers constructs handlers over the checkout service. Order
// composition is rate limited per session to keep a misbehaving client from
// flooding the order archive.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		checkout: checkout,
		limiter:  newSimpleRateLimiter(composeRateLimit, composeRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validateCustomer)
	if h.idempotency != nil {
		r.With(h.idempotency).Post("/orders", h.composeOrder)
	} else {
		r.Post("/orders", h.composeOrder)
	}
	r.Get("/orders/{orderID}", h.getOrder)
}

type customerRequest struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	DeliveryMode string `json:"delivery_mode"`
	Zone         string `json:"zone,omitempty"`
}

func (req customerRequest) toDomain() domain.CustomerInfo {
	return domain.CustomerInfo{
		FullName:     req.FullName,
		Phone:        req.Phone,
		Address:      req.Address,
		DeliveryMode: domain.DeliveryMode(strings.TrimSpace(req.DeliveryMode)),
		Zone:         req.Zone,
	}
}

func (h *CheckoutHandlers) validateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req customerRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.checkout.ValidateCustomer(ctx, req.toDomain()); err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"valid": true})
}

type composeOrderRequest struct {
	Customer  customerRequest `json:"customer"`
	ClearCart bool            `json:"clear_cart"`
}

func (h *CheckoutHandlers) composeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := strings.TrimSpace(requestctx.SessionID(ctx))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError(errorSessionRequired, "session identifier is required", http.StatusBadRequest))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many orders; try again shortly", http.StatusTooManyRequests))
		return
	}

	var req composeOrderRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.checkout.ComposeOrder(ctx, services.ComposeOrderCommand{
		SessionID: sessionID,
		Customer:  req.Customer.toDomain(),
		ClearCart: req.ClearCart,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResultPayload{
		Order:       buildOrderPayload(result.Order),
		Message:     result.Message,
		WhatsAppURL: result.WhatsAppURL,
	})
}

func (h *CheckoutHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.checkout.GetOrder(ctx, orderID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var fields services.FieldErrors
	switch {
	case errors.As(err, &fields):
		details := make(map[string]any, len(fields))
		for field, message := range fields {
			details[field] = message
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "customer details are invalid", http.StatusUnprocessableEntity).WithDetails(details))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cannot compose an order from an empty cart", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout operation failed", http.StatusInternalServerError))
	}
}

// Payload shapes -------------------------------------------------------------

type checkoutResultPayload struct {
	Order       orderPayload `json:"order"`
	Message     string       `json:"message"`
	WhatsAppURL string       `json:"whatsapp_url"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID           string            `json:"id"`
	Customer     customerPayload   `json:"customer"`
	Items        []cartItemPayload `json:"items"`
	Pricing      pricingPayload    `json:"pricing"`
	DeliveryCost int64             `json:"delivery_cost"`
	GrandTotal   int64             `json:"grand_total"`
	CreatedAt    string            `json:"created_at"`
}

type customerPayload struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	DeliveryMode string `json:"delivery_mode"`
	Zone         string `json:"zone,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	return orderPayload{
		ID: order.ID,
		Customer: customerPayload{
			FullName:     order.Customer.FullName,
			Phone:        order.Customer.Phone,
			Address:      order.Customer.Address,
			DeliveryMode: string(order.Customer.DeliveryMode),
			Zone:         order.Customer.Zone,
		},
		Items:        buildCartItems(order.Items),
		Pricing:      buildPricingPayload(order.Pricing),
		DeliveryCost: order.DeliveryCost,
		GrandTotal:   order.GrandTotal,
		CreatedAt:    formatTime(order.CreatedAt),
	}
}
