package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

const (
	maxAdminBodySize = 32 * 1024
	adminOrigin      = "admin-api"
)

// AdminConfigHandlers exposes the store configuration mutations behind the
// admin token middleware.
type AdminConfigHandlers struct {
	config services.ConfigService
}

// NewAdminConfigHandlers constructs handlers over the config service.
func NewAdminConfigHandlers(config services.ConfigService) *AdminConfigHandlers {
	return &AdminConfigHandlers{config: config}
}

// Routes wires the /admin/config endpoints onto the provided router.
func (h *AdminConfigHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/config", h.getConfig)
	r.Patch("/config/pricing", h.updatePricing)
	r.Put("/config/zones", h.upsertZone)
	r.Delete("/config/zones/{name}", h.deleteZone)
	r.Put("/config/novelas", h.upsertNovela)
	r.Delete("/config/novelas/{id}", h.deleteNovela)
}

func (h *AdminConfigHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}
	cfg, err := h.config.GetConfig(ctx)
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

type updatePricingRequest struct {
	MoviePrice            *int64   `json:"movie_price,omitempty"`
	SeriesPricePerSeason  *int64   `json:"series_price_per_season,omitempty"`
	NovelaPricePerChapter *int64   `json:"novela_price_per_chapter,omitempty"`
	TransferSurchargePct  *float64 `json:"transfer_surcharge_pct,omitempty"`
}

func (h *AdminConfigHandlers) updatePricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}

	var req updatePricingRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cfg, err := h.config.UpdatePricing(ctx, services.UpdatePricingCommand{
		MoviePrice:            req.MoviePrice,
		SeriesPricePerSeason:  req.SeriesPricePerSeason,
		NovelaPricePerChapter: req.NovelaPricePerChapter,
		TransferSurchargePct:  req.TransferSurchargePct,
		Origin:                adminOrigin,
	})
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

type upsertZoneRequest struct {
	Name   string `json:"name"`
	Cost   int64  `json:"cost"`
	Active *bool  `json:"active,omitempty"`
}

func (h *AdminConfigHandlers) upsertZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}

	var req upsertZoneRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	zone := domain.DeliveryZone{Name: req.Name, Cost: req.Cost, Active: true}
	if req.Active != nil {
		zone.Active = *req.Active
	}

	cfg, err := h.config.UpsertZone(ctx, services.UpsertZoneCommand{Zone: zone, Origin: adminOrigin})
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

func (h *AdminConfigHandlers) deleteZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}

	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "zone name is required", http.StatusBadRequest))
		return
	}

	cfg, err := h.config.DeleteZone(ctx, services.DeleteZoneCommand{Name: name, Origin: adminOrigin})
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

type upsertNovelaRequest struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ChapterCount int    `json:"chapter_count"`
	Country      string `json:"country,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Status       string `json:"status,omitempty"`
	PosterPath   string `json:"poster_path,omitempty"`
}

func (h *AdminConfigHandlers) upsertNovela(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}

	var req upsertNovelaRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cfg, err := h.config.UpsertNovela(ctx, services.UpsertNovelaCommand{
		Novela: domain.Novela{
			ID:           req.ID,
			Title:        req.Title,
			ChapterCount: req.ChapterCount,
			Country:      req.Country,
			Genre:        req.Genre,
			Status:       domain.NovelaStatus(strings.TrimSpace(req.Status)),
			PosterPath:   req.PosterPath,
		},
		Origin: adminOrigin,
	})
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

func (h *AdminConfigHandlers) deleteNovela(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		h.writeUnavailable(ctx, w)
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "novela id must be a positive integer", http.StatusBadRequest))
		return
	}

	cfg, err := h.config.DeleteNovela(ctx, services.DeleteNovelaCommand{ID: id, Origin: adminOrigin})
	if err != nil {
		h.writeConfigError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}

func (h *AdminConfigHandlers) writeUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
}

func (h *AdminConfigHandlers) writeConfigError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrConfigInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrConfigNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("config_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrConfigUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("config_error", "config operation failed", http.StatusInternalServerError))
	}
}

// Payload shapes -------------------------------------------------------------

type storeConfigResponse struct {
	Config storeConfigPayload `json:"config"`
}

type storeConfigPayload struct {
	Pricing   pricingConfigPayload `json:"pricing"`
	Zones     []zonePayload        `json:"zones"`
	Novelas   []novelaPayload      `json:"novelas"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

type pricingConfigPayload struct {
	MoviePrice            int64   `json:"movie_price"`
	SeriesPricePerSeason  int64   `json:"series_price_per_season"`
	NovelaPricePerChapter int64   `json:"novela_price_per_chapter"`
	TransferSurchargePct  float64 `json:"transfer_surcharge_pct"`
}

type zonePayload struct {
	Name   string `json:"name"`
	Cost   int64  `json:"cost"`
	Active bool   `json:"active"`
}

type novelaPayload struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ChapterCount int    `json:"chapter_count"`
	Country      string `json:"country,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Status       string `json:"status,omitempty"`
	PosterPath   string `json:"poster_path,omitempty"`
}

func buildStoreConfigPayload(cfg services.StoreConfig) storeConfigPayload {
	zones := make([]zonePayload, 0, len(cfg.Zones))
	for _, zone := range cfg.Zones {
		zones = append(zones, zonePayload{Name: zone.Name, Cost: zone.Cost, Active: zone.Active})
	}
	novelas := make([]novelaPayload, 0, len(cfg.Novelas))
	for _, novela := range cfg.Novelas {
		novelas = append(novelas, novelaPayload{
			ID:           novela.ID,
			Title:        novela.Title,
			ChapterCount: novela.ChapterCount,
			Country:      novela.Country,
			Genre:        novela.Genre,
			Status:       string(novela.Status),
			PosterPath:   novela.PosterPath,
		})
	}
	return storeConfigPayload{
		Pricing: pricingConfigPayload{
			MoviePrice:            cfg.Pricing.MoviePrice,
			SeriesPricePerSeason:  cfg.Pricing.SeriesPricePerSeason,
			NovelaPricePerChapter: cfg.Pricing.NovelaPricePerChapter,
			TransferSurchargePct:  cfg.Pricing.TransferSurchargePct,
		},
		Zones:     zones,
		Novelas:   novelas,
		UpdatedAt: formatTime(cfg.UpdatedAt),
	}
}
