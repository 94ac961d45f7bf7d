package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuya-sudo/yuya-api/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second

	// Upstream genre identifier for animation, used to narrow TV listings
	// down to anime.
	animationGenreID = 16
)

// ErrNotFound indicates the upstream provider has no entry for the identifier.
var ErrNotFound = errors.New("metadata: not found")

// UpstreamError wraps non-2xx responses from the metadata provider.
type UpstreamError struct {
	StatusCode int
	Endpoint   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("metadata: upstream returned %d for %s", e.StatusCode, e.Endpoint)
}

// IsUnavailable reports whether the failure is a transient upstream problem.
func (e *UpstreamError) IsUnavailable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client queries the movie metadata provider over HTTP.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	imageBaseURL string
	apiKey       string
	language     string
}

// ClientDeps bundles the dependencies required to construct a Client.
type ClientDeps struct {
	HTTPClient   *http.Client
	BaseURL      string
	ImageBaseURL string
	APIKey       string
	Language     string
	Timeout      time.Duration
}

// NewClient validates dependencies and builds a metadata client.
func NewClient(deps ClientDeps) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("metadata client: base url is required")
	}
	if strings.TrimSpace(deps.APIKey) == "" {
		return nil, errors.New("metadata client: api key is required")
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	language := strings.TrimSpace(deps.Language)
	if language == "" {
		language = "es-ES"
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		imageBaseURL: strings.TrimRight(strings.TrimSpace(deps.ImageBaseURL), "/"),
		apiKey:       strings.TrimSpace(deps.APIKey),
		language:     language,
	}, nil
}

// Popular lists popular entries for the kind, one page at a time.
func (c *Client) Popular(ctx context.Context, kind domain.MediaKind, page int) (domain.CatalogPage, error) {
	params := url.Values{}
	switch kind {
	case domain.MediaKindMovie:
		return c.listPage(ctx, "/movie/popular", kind, page, params)
	case domain.MediaKindSeries:
		return c.listPage(ctx, "/tv/popular", kind, page, params)
	case domain.MediaKindAnime:
		params.Set("with_genres", strconv.Itoa(animationGenreID))
		params.Set("sort_by", "popularity.desc")
		return c.listPage(ctx, "/discover/tv", kind, page, params)
	default:
		return domain.CatalogPage{}, fmt.Errorf("metadata: unsupported kind %q", kind)
	}
}

// Search finds entries matching the free-text query.
func (c *Client) Search(ctx context.Context, kind domain.MediaKind, query string, page int) (domain.CatalogPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.CatalogPage{Page: 1, TotalPages: 1}, nil
	}

	params := url.Values{}
	params.Set("query", query)

	switch kind {
	case domain.MediaKindMovie:
		return c.listPage(ctx, "/search/movie", kind, page, params)
	case domain.MediaKindSeries, domain.MediaKindAnime:
		return c.listPage(ctx, "/search/tv", kind, page, params)
	default:
		return domain.CatalogPage{}, fmt.Errorf("metadata: unsupported kind %q", kind)
	}
}

// DiscoverByGenre lists entries of the kind filtered by upstream genre.
func (c *Client) DiscoverByGenre(ctx context.Context, kind domain.MediaKind, genreID int64, page int) (domain.CatalogPage, error) {
	params := url.Values{}
	params.Set("with_genres", strconv.FormatInt(genreID, 10))
	params.Set("sort_by", "popularity.desc")

	switch kind {
	case domain.MediaKindMovie:
		return c.listPage(ctx, "/discover/movie", kind, page, params)
	case domain.MediaKindSeries, domain.MediaKindAnime:
		if kind == domain.MediaKindAnime && genreID != animationGenreID {
			params.Set("with_genres", fmt.Sprintf("%d,%d", animationGenreID, genreID))
		}
		return c.listPage(ctx, "/discover/tv", kind, page, params)
	default:
		return domain.CatalogPage{}, fmt.Errorf("metadata: unsupported kind %q", kind)
	}
}

// Details fetches a single entry, including the season count for shows.
func (c *Client) Details(ctx context.Context, kind domain.MediaKind, id int64) (domain.CatalogItem, error) {
	var endpoint string
	switch kind {
	case domain.MediaKindMovie:
		endpoint = fmt.Sprintf("/movie/%d", id)
	case domain.MediaKindSeries, domain.MediaKindAnime:
		endpoint = fmt.Sprintf("/tv/%d", id)
	default:
		return domain.CatalogItem{}, fmt.Errorf("metadata: unsupported kind %q", kind)
	}

	var payload detailPayload
	if err := c.get(ctx, endpoint, url.Values{}, &payload); err != nil {
		return domain.CatalogItem{}, err
	}
	return payload.toDomain(kind, c.imageBaseURL), nil
}

func (c *Client) listPage(ctx context.Context, endpoint string, kind domain.MediaKind, page int, params url.Values) (domain.CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	var payload listPayload
	if err := c.get(ctx, endpoint, params, &payload); err != nil {
		return domain.CatalogPage{}, err
	}

	items := make([]domain.CatalogItem, 0, len(payload.Results))
	for _, result := range payload.Results {
		items = append(items, result.toDomain(kind, c.imageBaseURL))
	}

	totalPages := payload.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	return domain.CatalogPage{
		Page:       payload.Page,
		TotalPages: totalPages,
		Items:      items,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)

	requestURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &UpstreamError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("metadata: decode %s: %w", endpoint, err)
	}
	return nil
}

type listPayload struct {
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Results    []resultPayload `json:"results"`
}

type resultPayload struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	GenreIDs     []int64 `json:"genre_ids"`
	VoteAverage  float64 `json:"vote_average"`
}

func (p resultPayload) toDomain(kind domain.MediaKind, imageBase string) domain.CatalogItem {
	title := p.Title
	if title == "" {
		title = p.Name
	}
	release := p.ReleaseDate
	if release == "" {
		release = p.FirstAirDate
	}
	return domain.CatalogItem{
		Key:         domain.ItemKey{Kind: kind, ID: p.ID},
		Title:       title,
		Overview:    p.Overview,
		PosterPath:  posterURL(imageBase, p.PosterPath),
		ReleaseDate: release,
		GenreIDs:    p.GenreIDs,
		VoteAverage: p.VoteAverage,
	}
}

type detailPayload struct {
	resultPayload
	NumberOfSeasons int          `json:"number_of_seasons"`
	Genres          []genreEntry `json:"genres"`
}

type genreEntry struct {
	ID int64 `json:"id"`
}

func (p detailPayload) toDomain(kind domain.MediaKind, imageBase string) domain.CatalogItem {
	item := p.resultPayload.toDomain(kind, imageBase)
	item.SeasonCount = p.NumberOfSeasons
	if len(item.GenreIDs) == 0 && len(p.Genres) > 0 {
		ids := make([]int64, 0, len(p.Genres))
		for _, genre := range p.Genres {
			ids = append(ids, genre.ID)
		}
		item.GenreIDs = ids
	}
	return item
}

func posterURL(imageBase, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if imageBase == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return imageBase + path
}
