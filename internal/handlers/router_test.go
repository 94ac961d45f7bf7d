package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yuya-sudo/yuya-api/internal/services"
)

func TestNewRouterServesHealthProbes(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for /healthz, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for /readyz, got %d", rr.Code)
	}
}

func TestNewRouterUnregisteredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, target := range []string{
		"/api/v1/catalog/movie",
		"/api/v1/config",
		"/api/v1/cart",
		"/api/v1/checkout/orders",
		"/api/v1/admin/config",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501 for %s, got %d", target, rr.Code)
		}
	}
}

func TestNewRouterUnknownRouteReturnsCanonicalError(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found, got %v", body["error"])
	}
}

func TestNewRouterAppliesSessionMiddlewareToCartAndCheckout(t *testing.T) {
	service := &stubCartService{
		getCartFunc: func(ctx context.Context, sessionID string) (services.Cart, error) {
			return services.Cart{ID: "cart-" + sessionID, SessionID: sessionID}, nil
		},
	}
	cart := NewCartHandlers(service)

	router := NewRouter(
		WithCartRoutes(cart.Routes),
		WithSessionMiddlewares(SessionMiddleware("", func() string { return "generated-9" })),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(DefaultSessionHeader); got != "generated-9" {
		t.Fatalf("expected minted session echoed, got %q", got)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.SessionID != "generated-9" {
		t.Fatalf("expected session to flow into the handler, got %q", resp.Cart.SessionID)
	}
}

func TestNewRouterAdminMiddlewareGuardsGroup(t *testing.T) {
	admin := NewAdminConfigHandlers(&stubConfigService{})

	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithAdminRoutes(admin.Routes),
		WithAdminMiddlewares(guard),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/config", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without credentials, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/config", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 with credentials, got %d", rr.Code)
	}
}
