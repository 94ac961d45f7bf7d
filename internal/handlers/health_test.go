package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

type stubSystemService struct {
	reportFunc func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFunc == nil {
		return services.SystemHealthReport{}, nil
	}
	return s.reportFunc(ctx)
}

func TestHealthHandlersHealthz(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp")
	}
}

func TestHealthHandlersReadyzWithoutSystemService(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzReportsChecks(t *testing.T) {
	generated := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore":     {Status: domain.HealthStatusOK, Latency: 42 * time.Millisecond},
					"secretManager": {Status: domain.HealthStatusDegraded, Error: "deadline exceeded"},
				},
				GeneratedAt: generated,
			}, nil
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// Degraded still serves traffic.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp healthReportPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded, got %q", resp.Status)
	}
	if resp.Checks["firestore"].LatencyMS != 42 {
		t.Fatalf("unexpected latency: %+v", resp.Checks["firestore"])
	}
	if resp.Checks["secretManager"].Error == "" {
		t.Fatalf("expected check error to be surfaced")
	}
}

func TestHealthHandlersReadyzErrorStatus(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzProbeFailure(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{}, errors.New("probe runner crashed")
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
