package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

type stubCatalogService struct {
	browseFunc      func(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error)
	searchFunc      func(ctx context.Context, cmd services.SearchCatalogCommand) (services.CatalogPage, error)
	detailsFunc     func(ctx context.Context, kind services.MediaKind, id int64) (services.CatalogItem, error)
	listNovelasFunc func(ctx context.Context) ([]services.Novela, error)
}

func (s *stubCatalogService) Browse(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error) {
	if s.browseFunc == nil {
		return services.CatalogPage{}, nil
	}
	return s.browseFunc(ctx, cmd)
}

func (s *stubCatalogService) Search(ctx context.Context, cmd services.SearchCatalogCommand) (services.CatalogPage, error) {
	if s.searchFunc == nil {
		return services.CatalogPage{}, nil
	}
	return s.searchFunc(ctx, cmd)
}

func (s *stubCatalogService) GetDetails(ctx context.Context, kind services.MediaKind, id int64) (services.CatalogItem, error) {
	if s.detailsFunc == nil {
		return services.CatalogItem{}, nil
	}
	return s.detailsFunc(ctx, kind, id)
}

func (s *stubCatalogService) ListNovelas(ctx context.Context) ([]services.Novela, error) {
	if s.listNovelasFunc == nil {
		return nil, nil
	}
	return s.listNovelasFunc(ctx)
}

func serveCatalog(t *testing.T, service services.CatalogService, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewCatalogHandlers(service)
	router := chi.NewRouter()
	router.Route("/catalog", handler.Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestCatalogHandlersBrowse(t *testing.T) {
	service := &stubCatalogService{
		browseFunc: func(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error) {
			if cmd.Kind != domain.MediaKindMovie {
				t.Fatalf("unexpected kind %q", cmd.Kind)
			}
			if cmd.Page != 3 {
				t.Fatalf("unexpected page %d", cmd.Page)
			}
			return services.CatalogPage{
				Page:       3,
				TotalPages: 20,
				Items: []services.CatalogItem{
					{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 603}, Title: "Matrix", VoteAverage: 8.2},
				},
			}, nil
		},
	}

	rr := serveCatalog(t, service, "/catalog/movie?page=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp catalogPagePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Page != 3 || resp.TotalPages != 20 || len(resp.Items) != 1 {
		t.Fatalf("unexpected page payload: %+v", resp)
	}
	if resp.Items[0].Kind != "movie" || resp.Items[0].ID != 603 {
		t.Fatalf("unexpected item payload: %+v", resp.Items[0])
	}
}

func TestCatalogHandlersBrowseDefaultsPage(t *testing.T) {
	service := &stubCatalogService{
		browseFunc: func(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error) {
			if cmd.Page != 1 {
				t.Fatalf("expected default page 1, got %d", cmd.Page)
			}
			return services.CatalogPage{Page: 1}, nil
		},
	}

	rr := serveCatalog(t, service, "/catalog/series?page=bogus")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestCatalogHandlersBrowseUnknownKind(t *testing.T) {
	service := &stubCatalogService{
		browseFunc: func(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error) {
			return services.CatalogPage{}, fmt.Errorf("%w: unknown media kind %q", services.ErrCatalogInvalidInput, cmd.Kind)
		},
	}

	rr := serveCatalog(t, service, "/catalog/podcast")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCatalogHandlersSearchPassesQuery(t *testing.T) {
	service := &stubCatalogService{
		searchFunc: func(ctx context.Context, cmd services.SearchCatalogCommand) (services.CatalogPage, error) {
			if cmd.Query != "dune" {
				t.Fatalf("unexpected query %q", cmd.Query)
			}
			if cmd.Kind != domain.MediaKindMovie {
				t.Fatalf("unexpected kind %q", cmd.Kind)
			}
			return services.CatalogPage{Page: 1, Items: []services.CatalogItem{
				{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 438631}, Title: "Dune"},
			}}, nil
		},
	}

	rr := serveCatalog(t, service, "/catalog/movie/search?q=dune")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp catalogPagePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Dune" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestCatalogHandlersDetails(t *testing.T) {
	service := &stubCatalogService{
		detailsFunc: func(ctx context.Context, kind services.MediaKind, id int64) (services.CatalogItem, error) {
			if kind != domain.MediaKindSeries || id != 1399 {
				t.Fatalf("unexpected lookup %s/%d", kind, id)
			}
			return services.CatalogItem{
				Key:         domain.ItemKey{Kind: kind, ID: id},
				Title:       "Juego de Tronos",
				SeasonCount: 8,
			}, nil
		},
	}

	rr := serveCatalog(t, service, "/catalog/series/1399")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp catalogItemResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Item.SeasonCount != 8 || resp.Item.Title != "Juego de Tronos" {
		t.Fatalf("unexpected item payload: %+v", resp.Item)
	}
}

func TestCatalogHandlersDetailsRejectsNonNumericID(t *testing.T) {
	service := &stubCatalogService{
		detailsFunc: func(ctx context.Context, kind services.MediaKind, id int64) (services.CatalogItem, error) {
			t.Fatalf("service should not be called")
			return services.CatalogItem{}, nil
		},
	}

	rr := serveCatalog(t, service, "/catalog/movie/not-a-number")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCatalogHandlersDetailsNotFound(t *testing.T) {
	service := &stubCatalogService{
		detailsFunc: func(ctx context.Context, kind services.MediaKind, id int64) (services.CatalogItem, error) {
			return services.CatalogItem{}, services.ErrCatalogNotFound
		},
	}

	rr := serveCatalog(t, service, "/catalog/movie/404404")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersUpstreamUnavailable(t *testing.T) {
	service := &stubCatalogService{
		browseFunc: func(ctx context.Context, cmd services.BrowseCatalogCommand) (services.CatalogPage, error) {
			return services.CatalogPage{}, fmt.Errorf("%w: status 503", services.ErrCatalogUnavailable)
		},
	}

	rr := serveCatalog(t, service, "/catalog/movie")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["error"] != "catalog_service_unavailable" {
		t.Fatalf("expected catalog_service_unavailable, got %v", body["error"])
	}
}
