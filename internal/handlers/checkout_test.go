package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/requestctx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

type stubCheckoutService struct {
	validateFunc func(ctx context.Context, customer services.CustomerInfo) error
	composeFunc  func(ctx context.Context, cmd services.ComposeOrderCommand) (services.CheckoutResult, error)
	getOrderFunc func(ctx context.Context, orderID string) (services.Order, error)
}

func (s *stubCheckoutService) ValidateCustomer(ctx context.Context, customer services.CustomerInfo) error {
	if s.validateFunc == nil {
		return nil
	}
	return s.validateFunc(ctx, customer)
}

func (s *stubCheckoutService) ComposeOrder(ctx context.Context, cmd services.ComposeOrderCommand) (services.CheckoutResult, error) {
	if s.composeFunc == nil {
		return services.CheckoutResult{}, nil
	}
	return s.composeFunc(ctx, cmd)
}

func (s *stubCheckoutService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getOrderFunc == nil {
		return services.Order{}, nil
	}
	return s.getOrderFunc(ctx, orderID)
}

func newCheckoutRouter(service services.CheckoutService) (*CheckoutHandlers, chi.Router) {
	handler := NewCheckoutHandlers(service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)
	return handler, router
}

func newCheckoutRequest(method, target, body, sessionID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if sessionID != "" {
		req = req.WithContext(requestctx.WithSessionID(req.Context(), sessionID))
	}
	return req
}

func TestCheckoutHandlersValidateCustomerSuccess(t *testing.T) {
	var captured services.CustomerInfo
	service := &stubCheckoutService{
		validateFunc: func(ctx context.Context, customer services.CustomerInfo) error {
			captured = customer
			return nil
		},
	}
	_, router := newCheckoutRouter(service)

	body := `{"full_name":"Ana López","phone":"+53 51234567","delivery_mode":"home","address":"Calle 23 #456","zone":"Playa"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/validate", body, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.DeliveryMode != domain.DeliveryModeHome || captured.Zone != "Playa" {
		t.Fatalf("unexpected customer: %+v", captured)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["valid"] != true {
		t.Fatalf("expected valid true, got %v", resp["valid"])
	}
}

func TestCheckoutHandlersValidateCustomerFieldErrors(t *testing.T) {
	service := &stubCheckoutService{
		validateFunc: func(ctx context.Context, customer services.CustomerInfo) error {
			return services.FieldErrors{
				"phone": "phone must be a valid Cuban number",
				"zone":  "unknown delivery zone",
			}
		},
	}
	_, router := newCheckoutRouter(service)

	body := `{"full_name":"Ana","phone":"123","delivery_mode":"home","zone":"Atlantis"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/validate", body, ""))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}

	var respBody map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &respBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if respBody["error"] != "validation_failed" {
		t.Fatalf("expected validation_failed, got %v", respBody["error"])
	}
	if respBody["phone"] != "phone must be a valid Cuban number" {
		t.Fatalf("expected field detail for phone, got %v", respBody["phone"])
	}
}

func TestCheckoutHandlersComposeOrderSuccess(t *testing.T) {
	created := time.Date(2024, 11, 5, 15, 30, 0, 0, time.UTC)
	var captured services.ComposeOrderCommand
	service := &stubCheckoutService{
		composeFunc: func(ctx context.Context, cmd services.ComposeOrderCommand) (services.CheckoutResult, error) {
			captured = cmd
			return services.CheckoutResult{
				Order: services.Order{
					ID: "PED-1730820600000",
					Customer: services.CustomerInfo{
						FullName:     cmd.Customer.FullName,
						Phone:        cmd.Customer.Phone,
						DeliveryMode: cmd.Customer.DeliveryMode,
					},
					Pricing:    services.CartPricing{Total: 410},
					GrandTotal: 410,
					CreatedAt:  created,
				},
				Message:     "Pedido PED-1730820600000",
				WhatsAppURL: "https://wa.me/5355555555?text=Pedido",
			}, nil
		},
	}
	_, router := newCheckoutRouter(service)

	body := `{"customer":{"full_name":"Ana López","phone":"51234567","delivery_mode":"pickup"},"clear_cart":true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, "sess-42"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.SessionID != "sess-42" || !captured.ClearCart {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var resp checkoutResultPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "PED-1730820600000" {
		t.Fatalf("unexpected order id %q", resp.Order.ID)
	}
	if !strings.HasPrefix(resp.WhatsAppURL, "https://wa.me/") {
		t.Fatalf("unexpected whatsapp url %q", resp.WhatsAppURL)
	}
	if resp.Order.GrandTotal != 410 {
		t.Fatalf("unexpected grand total %d", resp.Order.GrandTotal)
	}
}

func TestCheckoutHandlersComposeOrderRequiresSession(t *testing.T) {
	_, router := newCheckoutRouter(&stubCheckoutService{})

	body := `{"customer":{"full_name":"Ana","phone":"51234567","delivery_mode":"pickup"}}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var respBody map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &respBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if respBody["error"] != "session_required" {
		t.Fatalf("expected session_required, got %v", respBody["error"])
	}
}

func TestCheckoutHandlersComposeOrderEmptyCart(t *testing.T) {
	service := &stubCheckoutService{
		composeFunc: func(ctx context.Context, cmd services.ComposeOrderCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, services.ErrCheckoutEmptyCart
		},
	}
	_, router := newCheckoutRouter(service)

	body := `{"customer":{"full_name":"Ana","phone":"51234567","delivery_mode":"pickup"}}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, "sess-42"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestCheckoutHandlersComposeOrderRateLimited(t *testing.T) {
	service := &stubCheckoutService{
		composeFunc: func(ctx context.Context, cmd services.ComposeOrderCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{Order: services.Order{ID: "PED-1"}}, nil
		},
	}
	handler, router := newCheckoutRouter(service)
	handler.limiter = newSimpleRateLimiter(1, time.Minute, nil)

	body := `{"customer":{"full_name":"Ana","phone":"51234567","delivery_mode":"pickup"}}`

	first := httptest.NewRecorder()
	router.ServeHTTP(first, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, "sess-42"))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, "sess-42"))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}

	// A different session keeps its own budget.
	other := httptest.NewRecorder()
	router.ServeHTTP(other, newCheckoutRequest(http.MethodPost, "/checkout/orders", body, "sess-43"))
	if other.Code != http.StatusCreated {
		t.Fatalf("expected other session to pass, got %d", other.Code)
	}
}

func TestCheckoutHandlersGetOrder(t *testing.T) {
	service := &stubCheckoutService{
		getOrderFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "PED-1730820600000" {
				return services.Order{}, fmt.Errorf("%w: %s", services.ErrCheckoutOrderNotFound, orderID)
			}
			return services.Order{ID: orderID, GrandTotal: 510}, nil
		},
	}
	_, router := newCheckoutRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newCheckoutRequest(http.MethodGet, "/checkout/orders/PED-1730820600000", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "PED-1730820600000" || resp.Order.GrandTotal != 510 {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, newCheckoutRequest(http.MethodGet, "/checkout/orders/PED-0", "", ""))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
}

func TestCheckoutComposeIdempotencyScope(t *testing.T) {
	var guarded []string
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guarded = append(guarded, r.Method+" "+r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	handler := NewCheckoutHandlers(&stubCheckoutService{}, WithComposeIdempotency(guard))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	router.ServeHTTP(httptest.NewRecorder(), newCheckoutRequest(http.MethodPost, "/checkout/validate", `{}`, "sess-1"))
	router.ServeHTTP(httptest.NewRecorder(), newCheckoutRequest(http.MethodPost, "/checkout/orders", `{}`, "sess-1"))

	if len(guarded) != 1 || guarded[0] != "POST /checkout/orders" {
		t.Fatalf("expected only order composition to pass through the guard, got %v", guarded)
	}
}
