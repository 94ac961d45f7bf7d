package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartPricerRequired     = errors.New("cart service: pricer is required")
	errCartConfigRequired     = errors.New("cart service: config source is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

const maxSelectedSeasons = 60

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or cart item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

type storeConfigSource interface {
	GetConfig(ctx context.Context) (StoreConfig, error)
}

// CartServiceDeps wires the repository, pricing, and configuration dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Pricer      CartPricer
	Config      storeConfigSource
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo   repositories.CartRepository
	pricer CartPricer
	config storeConfigSource
	newID  func() string
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Pricer == nil {
		return nil, errCartPricerRequired
	}
	if deps.Config == nil {
		return nil, errCartConfigRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	service := &cartService{
		repo:   deps.Repository,
		pricer: deps.Pricer,
		config: deps.Config,
		newID:  idGen,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}
	return service, nil
}

// GetCart loads the cart for the session, creating an empty one when absent.
func (s *cartService) GetCart(ctx context.Context, sessionID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, sid)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		saved, err := s.repo.UpsertCart(ctx, s.newCart(sid))
		if err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		cart = saved
	}

	return s.normaliseCart(cart, sid), nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (AddCartItemResult, error) {
	if s == nil || s.repo == nil {
		return AddCartItemResult{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return AddCartItemResult{}, ErrCartInvalidInput
	}
	if !cmd.Key.Kind.IsValid() {
		return AddCartItemResult{}, fmt.Errorf("%w: unknown media kind %q", ErrCartInvalidInput, cmd.Key.Kind)
	}
	if cmd.Key.ID <= 0 {
		return AddCartItemResult{}, fmt.Errorf("%w: item id must be positive", ErrCartInvalidInput)
	}

	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return AddCartItemResult{}, fmt.Errorf("%w: title is required", ErrCartInvalidInput)
	}

	method := domain.PaymentCash
	if cmd.PaymentMethod != nil {
		if !cmd.PaymentMethod.IsValid() {
			return AddCartItemResult{}, fmt.Errorf("%w: unknown payment method %q", ErrCartInvalidInput, *cmd.PaymentMethod)
		}
		method = *cmd.PaymentMethod
	}

	item := domain.CartItem{
		Key:           cmd.Key,
		Title:         title,
		PosterPath:    strings.TrimSpace(cmd.PosterPath),
		PaymentMethod: method,
	}

	if cmd.Key.Kind.PricesAsSeries() {
		seasons, err := normaliseSeasons(cmd.SelectedSeasons)
		if err != nil {
			return AddCartItemResult{}, err
		}
		if len(seasons) == 0 {
			seasons = []int{1}
		}
		item.SelectedSeasons = seasons
	}

	if cmd.Key.Kind == domain.MediaKindNovela {
		if cmd.ChapterCount <= 0 {
			return AddCartItemResult{}, fmt.Errorf("%w: chapter count must be positive", ErrCartInvalidInput)
		}
		item.ChapterCount = cmd.ChapterCount
		item.Country = strings.TrimSpace(cmd.Country)
		item.Genre = strings.TrimSpace(cmd.Genre)
		item.Status = cmd.Status
	}

	cart, err := s.loadOrCreateCart(ctx, sid)
	if err != nil {
		return AddCartItemResult{}, err
	}

	// Adding an item already in the cart is a no-op rather than an error so
	// that retried requests do not duplicate entries.
	if idx := cart.FindItem(cmd.Key); idx >= 0 {
		return AddCartItemResult{Cart: cart}, nil
	}

	item.AddedAt = s.now()
	items := append(cloneCartItems(cart.Items), item)

	saved, err := s.repo.ReplaceItems(ctx, sid, items)
	if err != nil {
		return AddCartItemResult{}, s.translateRepoError(err)
	}
	return AddCartItemResult{Cart: s.normaliseCart(saved, sid), Added: true}, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, sid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, sid)

	idx := cart.FindItem(cmd.Key)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}

	items := cloneCartItems(cart.Items)
	items = append(items[:idx], items[idx+1:]...)

	saved, err := s.repo.ReplaceItems(ctx, sid, items)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, sid), nil
}

func (s *cartService) UpdateSeasons(ctx context.Context, cmd UpdateSeasonsCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if !cmd.Key.Kind.PricesAsSeries() {
		return Cart{}, fmt.Errorf("%w: %s items do not have seasons", ErrCartInvalidInput, cmd.Key.Kind)
	}

	seasons, err := normaliseSeasons(cmd.Seasons)
	if err != nil {
		return Cart{}, err
	}
	if len(seasons) == 0 {
		return Cart{}, fmt.Errorf("%w: at least one season must remain selected", ErrCartInvalidInput)
	}

	return s.mutateItem(ctx, sid, cmd.Key, func(item *domain.CartItem) {
		item.SelectedSeasons = seasons
	})
}

func (s *cartService) UpdatePaymentMethod(ctx context.Context, cmd UpdatePaymentMethodCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if !cmd.Method.IsValid() {
		return Cart{}, fmt.Errorf("%w: unknown payment method %q", ErrCartInvalidInput, cmd.Method)
	}

	return s.mutateItem(ctx, sid, cmd.Key, func(item *domain.CartItem) {
		item.PaymentMethod = cmd.Method
	})
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return ErrCartInvalidInput
	}

	if err := s.repo.DeleteCart(ctx, sid); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// PriceCart prices the session cart against the current store configuration.
func (s *cartService) PriceCart(ctx context.Context, sessionID string) (CartPricing, error) {
	if s == nil || s.repo == nil || s.pricer == nil {
		return CartPricing{}, ErrCartUnavailable
	}

	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return CartPricing{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, sid)
	if err != nil {
		if isRepoNotFound(err) {
			return CartPricing{Items: []ItemPricing{}}, nil
		}
		return CartPricing{}, s.translateRepoError(err)
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		s.logger(ctx, "cart.config_lookup_failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		return CartPricing{}, ErrCartUnavailable
	}

	result, err := s.pricer.Calculate(ctx, PriceCartCommand{Items: cart.Items, Pricing: cfg.Pricing})
	if err != nil {
		s.logger(ctx, "cart.pricing_failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		return CartPricing{}, translatePricingError(err)
	}
	return result.Pricing, nil
}

// PurgeExpired removes carts idle for longer than olderThan. It returns the
// number of carts deleted.
func (s *cartService) PurgeExpired(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if s == nil || s.repo == nil {
		return 0, ErrCartUnavailable
	}
	if olderThan <= 0 || limit <= 0 {
		return 0, ErrCartInvalidInput
	}

	cutoff := s.now().Add(-olderThan)
	deleted, err := s.repo.DeleteExpired(ctx, cutoff, limit)
	if err != nil {
		return 0, s.translateRepoError(err)
	}
	if deleted > 0 {
		s.logger(ctx, "cart.purged_expired", map[string]any{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
	}
	return deleted, nil
}

func (s *cartService) mutateItem(ctx context.Context, sessionID string, key domain.ItemKey, mutate func(*domain.CartItem)) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, sessionID)

	idx := cart.FindItem(key)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}

	items := cloneCartItems(cart.Items)
	mutate(&items[idx])
	ts := s.now()
	items[idx].UpdatedAt = &ts

	saved, err := s.repo.ReplaceItems(ctx, sessionID, items)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, sessionID), nil
}

func (s *cartService) loadOrCreateCart(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, sessionID)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		cart = s.newCart(sessionID)
	}
	return s.normaliseCart(cart, sessionID), nil
}

func (s *cartService) newCart(sessionID string) domain.Cart {
	return domain.Cart{
		ID:        s.newID(),
		SessionID: sessionID,
		Items:     []domain.CartItem{},
		UpdatedAt: s.now(),
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, sessionID string) domain.Cart {
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = s.newID()
	}
	if strings.TrimSpace(cart.SessionID) == "" {
		cart.SessionID = sessionID
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	for i := range cart.Items {
		if !cart.Items[i].PaymentMethod.IsValid() {
			cart.Items[i].PaymentMethod = domain.PaymentCash
		}
		if cart.Items[i].Key.Kind.PricesAsSeries() && len(cart.Items[i].SelectedSeasons) == 0 {
			cart.Items[i].SelectedSeasons = []int{1}
		}
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = s.now()
	}
	return cart
}

func normaliseSeasons(seasons []int) ([]int, error) {
	if len(seasons) == 0 {
		return nil, nil
	}
	if len(seasons) > maxSelectedSeasons {
		return nil, fmt.Errorf("%w: too many seasons selected", ErrCartInvalidInput)
	}

	seen := make(map[int]struct{}, len(seasons))
	out := make([]int, 0, len(seasons))
	for _, season := range seasons {
		if season <= 0 {
			return nil, fmt.Errorf("%w: season numbers must be positive", ErrCartInvalidInput)
		}
		if _, dup := seen[season]; dup {
			continue
		}
		seen[season] = struct{}{}
		out = append(out, season)
	}
	sort.Ints(out)
	return out, nil
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	for i := range dup {
		if len(dup[i].SelectedSeasons) > 0 {
			seasons := make([]int, len(dup[i].SelectedSeasons))
			copy(seasons, dup[i].SelectedSeasons)
			dup[i].SelectedSeasons = seasons
		}
		if dup[i].UpdatedAt != nil {
			ts := dup[i].UpdatedAt.UTC()
			dup[i].UpdatedAt = &ts
		}
	}
	return dup
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrCartNotFound
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func translatePricingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCartPricingInvalidInput) {
		return ErrCartInvalidInput
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
