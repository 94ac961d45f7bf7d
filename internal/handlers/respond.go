package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, out any) error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// itemKeyFromURL reads the {kind}/{id} pair that addresses a cart item.
func itemKeyFromURL(r *http.Request) (domain.ItemKey, error) {
	kind := domain.MediaKind(strings.TrimSpace(chi.URLParam(r, "kind")))
	if !kind.IsValid() {
		return domain.ItemKey{}, fmt.Errorf("unknown media kind %q", kind)
	}
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return domain.ItemKey{}, fmt.Errorf("id %q must be a positive integer", raw)
	}
	return domain.ItemKey{Kind: kind, ID: id}, nil
}

func queryGenre(r *http.Request) int64 {
	raw := strings.TrimSpace(r.URL.Query().Get("genre"))
	if raw == "" {
		return 0
	}
	genre, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || genre < 1 {
		return 0
	}
	return genre
}

func queryPage(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
