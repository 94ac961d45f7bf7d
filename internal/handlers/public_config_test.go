package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

func TestPublicConfigHandlersHideInactiveZones(t *testing.T) {
	service := &stubConfigService{
		getConfigFunc: func(ctx context.Context) (services.StoreConfig, error) {
			return services.StoreConfig{
				Pricing: domain.DefaultStoreConfig().Pricing,
				Zones: []services.DeliveryZone{
					{Name: "Playa", Cost: 200, Active: true},
					{Name: "Regla", Cost: 300, Active: false},
				},
				Novelas: []services.Novela{{ID: 7, Title: "La Usurpadora", ChapterCount: 102}},
			}, nil
		},
	}

	handler := NewPublicConfigHandlers(service)
	router := chi.NewRouter()
	router.Route("/config", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp storeConfigResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Config.Zones) != 1 || resp.Config.Zones[0].Name != "Playa" {
		t.Fatalf("expected only active zones, got %+v", resp.Config.Zones)
	}
	if len(resp.Config.Novelas) != 1 {
		t.Fatalf("expected novelas in public config, got %+v", resp.Config.Novelas)
	}
	if resp.Config.Pricing.MoviePrice != 80 {
		t.Fatalf("unexpected pricing: %+v", resp.Config.Pricing)
	}
}

func TestPublicConfigHandlersServiceError(t *testing.T) {
	service := &stubConfigService{
		getConfigFunc: func(ctx context.Context) (services.StoreConfig, error) {
			return services.StoreConfig{}, services.ErrConfigUnavailable
		},
	}

	handler := NewPublicConfigHandlers(service)
	router := chi.NewRouter()
	router.Route("/config", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/config", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
