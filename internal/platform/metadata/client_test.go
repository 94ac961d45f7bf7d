package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yuya-sudo/yuya-api/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientDeps{
		BaseURL:      srv.URL,
		ImageBaseURL: "https://img.example.com/w500",
		APIKey:       "test-key",
		Language:     "es-ES",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestPopularMoviesMapsResults(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/popular" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Fatal("expected api key query parameter")
		}
		if r.URL.Query().Get("language") != "es-ES" {
			t.Fatal("expected language query parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"page": 2,
			"total_pages": 40,
			"results": [
				{"id": 603, "title": "Matrix", "overview": "neo", "poster_path": "/m.jpg", "release_date": "1999-03-31", "genre_ids": [28], "vote_average": 8.2}
			]
		}`))
	}))

	page, err := client.Popular(context.Background(), domain.MediaKindMovie, 2)
	if err != nil {
		t.Fatalf("Popular returned error: %v", err)
	}
	if page.Page != 2 || page.TotalPages != 40 {
		t.Fatalf("unexpected paging %d/%d", page.Page, page.TotalPages)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	item := page.Items[0]
	if item.Key != (domain.ItemKey{Kind: domain.MediaKindMovie, ID: 603}) {
		t.Fatalf("unexpected key %+v", item.Key)
	}
	if item.Title != "Matrix" {
		t.Fatalf("unexpected title %q", item.Title)
	}
	if item.PosterPath != "https://img.example.com/w500/m.jpg" {
		t.Fatalf("unexpected poster %q", item.PosterPath)
	}
}

func TestPopularAnimeUsesDiscoverWithAnimationGenre(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/tv" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("with_genres") != "16" {
			t.Fatalf("expected animation genre filter, got %q", r.URL.Query().Get("with_genres"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"total_pages":1,"results":[{"id":5,"name":"Show","first_air_date":"2020-01-01"}]}`))
	}))

	page, err := client.Popular(context.Background(), domain.MediaKindAnime, 1)
	if err != nil {
		t.Fatalf("Popular returned error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	if page.Items[0].Title != "Show" {
		t.Fatalf("expected name fallback for tv titles, got %q", page.Items[0].Title)
	}
	if page.Items[0].ReleaseDate != "2020-01-01" {
		t.Fatalf("expected first air date fallback, got %q", page.Items[0].ReleaseDate)
	}
}

func TestSearchEmptyQueryShortCircuits(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected for empty query")
	}))

	page, err := client.Search(context.Background(), domain.MediaKindMovie, "   ", 1)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(page.Items))
	}
}

func TestDetailsIncludesSeasonCount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1399,"name":"Thrones","number_of_seasons":8,"genres":[{"id":18}]}`))
	}))

	item, err := client.Details(context.Background(), domain.MediaKindSeries, 1399)
	if err != nil {
		t.Fatalf("Details returned error: %v", err)
	}
	if item.SeasonCount != 8 {
		t.Fatalf("expected 8 seasons, got %d", item.SeasonCount)
	}
	if len(item.GenreIDs) != 1 || item.GenreIDs[0] != 18 {
		t.Fatalf("expected genre ids from detail payload, got %v", item.GenreIDs)
	}
}

func TestDetailsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Details(context.Background(), domain.MediaKindMovie, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpstreamErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Popular(context.Background(), domain.MediaKindMovie, 1)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !upstream.IsUnavailable() {
		t.Fatal("expected 503 to be classified unavailable")
	}
}
