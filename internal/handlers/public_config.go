package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yuya-sudo/yuya-api/internal/platform/httpx"
	"github.com/yuya-sudo/yuya-api/internal/services"
)

// PublicConfigHandlers serves the read-only store configuration that clients
// need to render prices, delivery zones, and the novela catalog.
type PublicConfigHandlers struct {
	config services.ConfigService
}

// NewPublicConfigHandlers constructs handlers over the config service.
func NewPublicConfigHandlers(config services.ConfigService) *PublicConfigHandlers {
	return &PublicConfigHandlers{config: config}
}

// Routes wires the public /config endpoint onto the provided router.
func (h *PublicConfigHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getConfig)
}

func (h *PublicConfigHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cfg, err := h.config.GetConfig(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
		return
	}

	// Inactive zones stay admin-only.
	active := cfg.Zones[:0:0]
	for _, zone := range cfg.Zones {
		if zone.Active {
			active = append(active, zone)
		}
	}
	cfg.Zones = active

	writeJSONResponse(w, http.StatusOK, storeConfigResponse{Config: buildStoreConfigPayload(cfg)})
}
