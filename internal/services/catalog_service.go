package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/metadata"
)

const defaultCatalogCacheTTL = 5 * time.Minute

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogUnavailable indicates the upstream metadata provider cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
	// ErrCatalogNotFound indicates the requested entry does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
)

// metadataProvider is the slice of the metadata client the catalog needs.
type metadataProvider interface {
	Popular(ctx context.Context, kind domain.MediaKind, page int) (domain.CatalogPage, error)
	Search(ctx context.Context, kind domain.MediaKind, query string, page int) (domain.CatalogPage, error)
	DiscoverByGenre(ctx context.Context, kind domain.MediaKind, genreID int64, page int) (domain.CatalogPage, error)
	Details(ctx context.Context, kind domain.MediaKind, id int64) (domain.CatalogItem, error)
}

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Metadata metadataProvider
	Config   storeConfigSource
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
	CacheTTL time.Duration
}

type catalogCacheKey struct {
	kind  domain.MediaKind
	page  int
	genre int64
}

type catalogCacheEntry struct {
	page      domain.CatalogPage
	gen       uint64
	fetchedAt time.Time
}

type catalogService struct {
	metadata  metadataProvider
	config    storeConfigSource
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
	ttl       time.Duration

	mu      sync.Mutex
	nextGen map[catalogCacheKey]uint64
	cache   map[catalogCacheKey]catalogCacheEntry
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Metadata == nil {
		return nil, errors.New("catalog service: metadata provider is required")
	}
	if deps.Config == nil {
		return nil, errors.New("catalog service: config source is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	return &catalogService{
		metadata:  deps.Metadata,
		config:    deps.Config,
		sanitizer: bluemonday.StrictPolicy(),
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
		ttl:       ttl,
		nextGen:   make(map[catalogCacheKey]uint64),
		cache:     make(map[catalogCacheKey]catalogCacheEntry),
	}, nil
}

// Browse lists a page of the catalog for the kind. Upstream-backed kinds are
// cached per page; novelas come from the admin-managed store and are never
// cached.
func (s *catalogService) Browse(ctx context.Context, cmd BrowseCatalogCommand) (CatalogPage, error) {
	if !cmd.Kind.IsValid() {
		return CatalogPage{}, fmt.Errorf("%w: unknown media kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}
	page := cmd.Page
	if page < 1 {
		page = 1
	}

	if cmd.Kind == domain.MediaKindNovela {
		novelas, err := s.ListNovelas(ctx)
		if err != nil {
			return CatalogPage{}, err
		}
		return novelaPage(novelas), nil
	}

	key := catalogCacheKey{kind: cmd.Kind, page: page, genre: cmd.GenreID}

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && s.clock().Sub(entry.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return entry.page, nil
	}
	// Each fetch carries a generation so that a slow response which was
	// superseded by a newer request cannot overwrite the fresher page.
	s.nextGen[key]++
	gen := s.nextGen[key]
	s.mu.Unlock()

	var fetched domain.CatalogPage
	var err error
	if cmd.GenreID > 0 {
		fetched, err = s.metadata.DiscoverByGenre(ctx, cmd.Kind, cmd.GenreID, page)
	} else {
		fetched, err = s.metadata.Popular(ctx, cmd.Kind, page)
	}
	if err != nil {
		return CatalogPage{}, s.translateUpstreamError(ctx, err)
	}
	fetched = s.sanitizePage(fetched)

	s.mu.Lock()
	if current, ok := s.cache[key]; !ok || current.gen < gen {
		s.cache[key] = catalogCacheEntry{page: fetched, gen: gen, fetchedAt: s.clock()}
	}
	s.mu.Unlock()

	return fetched, nil
}

// Search queries the upstream provider, or filters the novela store by title
// for the novela kind.
func (s *catalogService) Search(ctx context.Context, cmd SearchCatalogCommand) (CatalogPage, error) {
	if !cmd.Kind.IsValid() {
		return CatalogPage{}, fmt.Errorf("%w: unknown media kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}
	query := strings.TrimSpace(cmd.Query)
	if query == "" {
		return CatalogPage{}, fmt.Errorf("%w: query is required", ErrCatalogInvalidInput)
	}
	page := cmd.Page
	if page < 1 {
		page = 1
	}

	if cmd.Kind == domain.MediaKindNovela {
		novelas, err := s.ListNovelas(ctx)
		if err != nil {
			return CatalogPage{}, err
		}
		needle := strings.ToLower(query)
		matched := make([]domain.Novela, 0, len(novelas))
		for _, novela := range novelas {
			if strings.Contains(strings.ToLower(novela.Title), needle) {
				matched = append(matched, novela)
			}
		}
		return novelaPage(matched), nil
	}

	found, err := s.metadata.Search(ctx, cmd.Kind, query, page)
	if err != nil {
		return CatalogPage{}, s.translateUpstreamError(ctx, err)
	}
	return s.sanitizePage(found), nil
}

// GetDetails fetches a single catalog entry by kind and upstream id.
func (s *catalogService) GetDetails(ctx context.Context, kind MediaKind, id int64) (CatalogItem, error) {
	if !kind.IsValid() {
		return CatalogItem{}, fmt.Errorf("%w: unknown media kind %q", ErrCatalogInvalidInput, kind)
	}
	if id <= 0 {
		return CatalogItem{}, fmt.Errorf("%w: id must be positive", ErrCatalogInvalidInput)
	}

	if kind == domain.MediaKindNovela {
		novelas, err := s.ListNovelas(ctx)
		if err != nil {
			return CatalogItem{}, err
		}
		for _, novela := range novelas {
			if novela.ID == id {
				return novelaToCatalogItem(novela), nil
			}
		}
		return CatalogItem{}, ErrCatalogNotFound
	}

	item, err := s.metadata.Details(ctx, kind, id)
	if err != nil {
		return CatalogItem{}, s.translateUpstreamError(ctx, err)
	}
	return s.sanitizeItem(item), nil
}

// ListNovelas returns the admin-curated novela catalog sorted by title.
func (s *catalogService) ListNovelas(ctx context.Context) ([]Novela, error) {
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		s.logger(ctx, "catalog.config_lookup_failed", map[string]any{"error": err.Error()})
		return nil, ErrCatalogUnavailable
	}
	novelas := make([]domain.Novela, len(cfg.Novelas))
	copy(novelas, cfg.Novelas)
	sort.Slice(novelas, func(i, j int) bool { return novelas[i].Title < novelas[j].Title })
	return novelas, nil
}

func (s *catalogService) sanitizePage(page domain.CatalogPage) domain.CatalogPage {
	items := make([]domain.CatalogItem, len(page.Items))
	for i, item := range page.Items {
		items[i] = s.sanitizeItem(item)
	}
	page.Items = items
	return page
}

// Upstream text is rendered into client UIs verbatim, so strip any markup.
func (s *catalogService) sanitizeItem(item domain.CatalogItem) domain.CatalogItem {
	item.Title = strings.TrimSpace(s.sanitizer.Sanitize(item.Title))
	item.Overview = strings.TrimSpace(s.sanitizer.Sanitize(item.Overview))
	return item
}

func (s *catalogService) translateUpstreamError(ctx context.Context, err error) error {
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrCatalogNotFound
	}
	var upstream *metadata.UpstreamError
	if errors.As(err, &upstream) {
		s.logger(ctx, "catalog.upstream_error", map[string]any{
			"status":   upstream.StatusCode,
			"endpoint": upstream.Endpoint,
		})
	}
	return fmt.Errorf("%w: %s", ErrCatalogUnavailable, err.Error())
}

func novelaPage(novelas []domain.Novela) domain.CatalogPage {
	items := make([]domain.CatalogItem, 0, len(novelas))
	for _, novela := range novelas {
		items = append(items, novelaToCatalogItem(novela))
	}
	return domain.CatalogPage{Page: 1, TotalPages: 1, Items: items}
}

func novelaToCatalogItem(novela domain.Novela) domain.CatalogItem {
	return domain.CatalogItem{
		Key:        domain.ItemKey{Kind: domain.MediaKindNovela, ID: novela.ID},
		Title:      novela.Title,
		PosterPath: novela.PosterPath,
		Overview: fmt.Sprintf("%d capítulos, %s, %s (%s)",
			novela.ChapterCount, novela.Country, novela.Genre, novela.Status),
	}
}
