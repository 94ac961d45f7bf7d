package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/platform/changefeed"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

const (
	// ConfigSectionPricing tags pricing mutations on the change feed.
	ConfigSectionPricing = "pricing"
	// ConfigSectionZones tags delivery-zone mutations on the change feed.
	ConfigSectionZones = "zones"
	// ConfigSectionNovelas tags novela-catalog mutations on the change feed.
	ConfigSectionNovelas = "novelas"
)

const watcherBuffer = 4

// ErrConfigInvalidInput indicates the caller supplied invalid input.
var ErrConfigInvalidInput = errors.New("config service: invalid input")

// ErrConfigUnavailable indicates the configuration backend rejected an update.
var ErrConfigUnavailable = errors.New("config service: unavailable")

// ErrConfigNotFound indicates the referenced zone or novela does not exist.
var ErrConfigNotFound = errors.New("config service: not found")

// ConfigServiceDeps wires persistence and change propagation for the store configuration.
type ConfigServiceDeps struct {
	Repository   repositories.ConfigRepository
	Publisher    changefeed.Publisher
	Feed         *changefeed.MemoryFeed
	Clock        func() time.Time
	Logger       func(context.Context, string, map[string]any)
	PollInterval time.Duration
}

type configService struct {
	repo         repositories.ConfigRepository
	publisher    changefeed.Publisher
	events       <-chan changefeed.Event
	cancelFeed   func()
	now          func() time.Time
	logger       func(context.Context, string, map[string]any)
	pollInterval time.Duration

	mu       sync.Mutex
	lastSeen time.Time
	watchers map[int]chan StoreConfig
	nextID   int
}

// NewConfigService constructs a ConfigService enforcing dependency validation.
func NewConfigService(deps ConfigServiceDeps) (ConfigService, error) {
	if deps.Repository == nil {
		return nil, errors.New("config service: repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("config service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	interval := deps.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	service := &configService{
		repo:         deps.Repository,
		publisher:    deps.Publisher,
		cancelFeed:   func() {},
		now:          func() time.Time { return deps.Clock().UTC() },
		logger:       logger,
		pollInterval: interval,
		watchers:     make(map[int]chan StoreConfig),
	}
	// Subscribe now rather than in Run so events published before the run
	// loop starts are buffered instead of dropped.
	if deps.Feed != nil {
		service.events, service.cancelFeed = deps.Feed.Subscribe()
	}
	return service, nil
}

// GetConfig returns the current snapshot. Read failures fall back to the
// default configuration so pricing never blocks on the backend.
func (s *configService) GetConfig(ctx context.Context) (StoreConfig, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		if !isRepoNotFound(err) {
			s.logger(ctx, "config.read_failed", map[string]any{"error": err.Error()})
		}
		return domain.DefaultStoreConfig(), nil
	}
	return patchConfig(cfg), nil
}

// patchConfig substitutes defaults for sections missing from an older
// snapshot. This is a presence check, not a migration system.
func patchConfig(cfg StoreConfig) StoreConfig {
	if cfg.Pricing == (domain.PricingConfig{}) {
		cfg.Pricing = domain.DefaultStoreConfig().Pricing
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = domain.DefaultDeliveryZones()
	}
	return cfg
}

func (s *configService) UpdatePricing(ctx context.Context, cmd UpdatePricingCommand) (StoreConfig, error) {
	if cmd.MoviePrice == nil && cmd.SeriesPricePerSeason == nil && cmd.NovelaPricePerChapter == nil && cmd.TransferSurchargePct == nil {
		return StoreConfig{}, fmt.Errorf("%w: no pricing fields supplied", ErrConfigInvalidInput)
	}

	current, err := s.GetConfig(ctx)
	if err != nil {
		return StoreConfig{}, err
	}

	pricing := current.Pricing
	if cmd.MoviePrice != nil {
		pricing.MoviePrice = *cmd.MoviePrice
	}
	if cmd.SeriesPricePerSeason != nil {
		pricing.SeriesPricePerSeason = *cmd.SeriesPricePerSeason
	}
	if cmd.NovelaPricePerChapter != nil {
		pricing.NovelaPricePerChapter = *cmd.NovelaPricePerChapter
	}
	if cmd.TransferSurchargePct != nil {
		pricing.TransferSurchargePct = *cmd.TransferSurchargePct
	}
	if pricing.MoviePrice < 0 || pricing.SeriesPricePerSeason < 0 || pricing.NovelaPricePerChapter < 0 {
		return StoreConfig{}, fmt.Errorf("%w: prices cannot be negative", ErrConfigInvalidInput)
	}
	if pricing.TransferSurchargePct < 0 || pricing.TransferSurchargePct > 100 {
		return StoreConfig{}, fmt.Errorf("%w: transfer surcharge must be between 0 and 100", ErrConfigInvalidInput)
	}

	saved, err := s.repo.SavePricing(ctx, pricing, s.now())
	if err != nil {
		return StoreConfig{}, s.translateRepoError(err)
	}
	s.announce(ctx, ConfigSectionPricing, cmd.Origin, saved)
	return patchConfig(saved), nil
}

func (s *configService) UpsertZone(ctx context.Context, cmd UpsertZoneCommand) (StoreConfig, error) {
	zone := cmd.Zone
	zone.Name = strings.TrimSpace(zone.Name)
	if zone.Name == "" {
		return StoreConfig{}, fmt.Errorf("%w: zone name is required", ErrConfigInvalidInput)
	}
	if zone.Cost < 0 {
		return StoreConfig{}, fmt.Errorf("%w: zone cost cannot be negative", ErrConfigInvalidInput)
	}

	saved, err := s.repo.SaveZone(ctx, zone, s.now())
	if err != nil {
		return StoreConfig{}, s.translateRepoError(err)
	}
	s.announce(ctx, ConfigSectionZones, cmd.Origin, saved)
	return patchConfig(saved), nil
}

func (s *configService) DeleteZone(ctx context.Context, cmd DeleteZoneCommand) (StoreConfig, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return StoreConfig{}, fmt.Errorf("%w: zone name is required", ErrConfigInvalidInput)
	}

	current, err := s.GetConfig(ctx)
	if err != nil {
		return StoreConfig{}, err
	}
	if !zoneExists(current.Zones, name) {
		return StoreConfig{}, ErrConfigNotFound
	}

	saved, err := s.repo.DeleteZone(ctx, name, s.now())
	if err != nil {
		return StoreConfig{}, s.translateRepoError(err)
	}
	s.announce(ctx, ConfigSectionZones, cmd.Origin, saved)
	return patchConfig(saved), nil
}

func (s *configService) UpsertNovela(ctx context.Context, cmd UpsertNovelaCommand) (StoreConfig, error) {
	novela := cmd.Novela
	novela.Title = strings.TrimSpace(novela.Title)
	if novela.ID <= 0 {
		return StoreConfig{}, fmt.Errorf("%w: novela id must be positive", ErrConfigInvalidInput)
	}
	if novela.Title == "" {
		return StoreConfig{}, fmt.Errorf("%w: novela title is required", ErrConfigInvalidInput)
	}
	if novela.ChapterCount <= 0 {
		return StoreConfig{}, fmt.Errorf("%w: chapter count must be positive", ErrConfigInvalidInput)
	}
	if novela.Status == "" {
		novela.Status = domain.NovelaStatusAiring
	}

	saved, err := s.repo.SaveNovela(ctx, novela, s.now())
	if err != nil {
		return StoreConfig{}, s.translateRepoError(err)
	}
	s.announce(ctx, ConfigSectionNovelas, cmd.Origin, saved)
	return patchConfig(saved), nil
}

func (s *configService) DeleteNovela(ctx context.Context, cmd DeleteNovelaCommand) (StoreConfig, error) {
	if cmd.ID <= 0 {
		return StoreConfig{}, fmt.Errorf("%w: novela id must be positive", ErrConfigInvalidInput)
	}

	current, err := s.GetConfig(ctx)
	if err != nil {
		return StoreConfig{}, err
	}
	found := false
	for _, novela := range current.Novelas {
		if novela.ID == cmd.ID {
			found = true
			break
		}
	}
	if !found {
		return StoreConfig{}, ErrConfigNotFound
	}

	saved, err := s.repo.DeleteNovela(ctx, cmd.ID, s.now())
	if err != nil {
		return StoreConfig{}, s.translateRepoError(err)
	}
	s.announce(ctx, ConfigSectionNovelas, cmd.Origin, saved)
	return patchConfig(saved), nil
}

// Watch registers an interest in configuration snapshots. Every broadcast
// after a mutation or a poll-detected change is delivered on the returned
// channel; slow consumers drop snapshots.
func (s *configService) Watch(ctx context.Context) (<-chan StoreConfig, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan StoreConfig, watcherBuffer)
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Run drives change propagation until ctx is cancelled. It re-reads the
// snapshot on every change-feed event and on a fixed poll interval; polling
// covers events lost to slow subscribers or missing feed wiring.
func (s *configService) Run(ctx context.Context) error {
	events := s.events
	defer s.cancelFeed()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.refresh(ctx)
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh re-reads the snapshot and broadcasts it when it advanced past the
// last seen revision. Concurrent admin writes are last-write-wins; the newest
// UpdatedAt is authoritative.
func (s *configService) refresh(ctx context.Context) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return
	}

	s.mu.Lock()
	stale := !cfg.UpdatedAt.After(s.lastSeen)
	if !stale {
		s.lastSeen = cfg.UpdatedAt
	}
	s.mu.Unlock()

	if !stale {
		s.broadcast(cfg)
	}
}

func (s *configService) announce(ctx context.Context, section, origin string, cfg StoreConfig) {
	s.mu.Lock()
	if cfg.UpdatedAt.After(s.lastSeen) {
		s.lastSeen = cfg.UpdatedAt
	}
	s.mu.Unlock()

	s.broadcast(patchConfig(cfg))

	if s.publisher == nil {
		return
	}
	event := changefeed.Event{
		Section:   section,
		Origin:    strings.TrimSpace(origin),
		UpdatedAt: cfg.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger(ctx, "config.publish_failed", map[string]any{
			"section": section,
			"error":   err.Error(),
		})
	}
}

func (s *configService) broadcast(cfg StoreConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- cfg:
		default:
		}
	}
}

func (s *configService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrConfigNotFound
	}
	return ErrConfigUnavailable
}

func zoneExists(zones []domain.DeliveryZone, name string) bool {
	for _, zone := range zones {
		if zone.Name == name {
			return true
		}
	}
	return false
}
