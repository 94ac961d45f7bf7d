package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

// CatalogHandlers exposes public browse and search endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs handlers over the catalog service.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{kind}", h.browse)
	r.Get("/{kind}/search", h.search)
	r.Get("/{kind}/{id}", h.details)
}

func (h *CatalogHandlers) browse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.catalog.Browse(ctx, services.BrowseCatalogCommand{
		Kind:    domain.MediaKind(strings.TrimSpace(chi.URLParam(r, "kind"))),
		Page:    queryPage(r),
		GenreID: queryGenre(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCatalogPagePayload(page))
}

func (h *CatalogHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.catalog.Search(ctx, services.SearchCatalogCommand{
		Kind:  domain.MediaKind(strings.TrimSpace(chi.URLParam(r, "kind"))),
		Query: r.URL.Query().Get("q"),
		Page:  queryPage(r),
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCatalogPagePayload(page))
}

func (h *CatalogHandlers) details(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	kind := domain.MediaKind(strings.TrimSpace(chi.URLParam(r, "kind")))
	rawID := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id must be an integer", http.StatusBadRequest))
		return
	}

	item, err := h.catalog.GetDetails(ctx, kind, id)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, catalogItemResponse{Item: buildCatalogItemPayload(item)})
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "the catalog provider is unavailable", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

// Payload shapes -------------------------------------------------------------

type catalogPagePayload struct {
	Page       int                  `json:"page"`
	TotalPages int                  `json:"total_pages"`
	Items      []catalogItemPayload `json:"items"`
}

type catalogItemResponse struct {
	Item catalogItemPayload `json:"item"`
}

type catalogItemPayload struct {
	Kind        string  `json:"kind"`
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	GenreIDs    []int64 `json:"genre_ids,omitempty"`
	SeasonCount int     `json:"season_count,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
}

func buildCatalogPagePayload(page services.CatalogPage) catalogPagePayload {
	items := make([]catalogItemPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildCatalogItemPayload(item))
	}
	return catalogPagePayload{Page: page.Page, TotalPages: page.TotalPages, Items: items}
}

func buildCatalogItemPayload(item services.CatalogItem) catalogItemPayload {
	return catalogItemPayload{
		Kind:        string(item.Key.Kind),
		ID:          item.Key.ID,
		Title:       item.Title,
		Overview:    item.Overview,
		PosterPath:  item.PosterPath,
		ReleaseDate: item.ReleaseDate,
		GenreIDs:    item.GenreIDs,
		SeasonCount: item.SeasonCount,
		VoteAverage: item.VoteAverage,
	}
}
