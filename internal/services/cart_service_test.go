package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
)

func newTestCartService(t *testing.T, repo *stubCartRepository, opts ...func(*CartServiceDeps)) CartService {
	t.Helper()

	deps := CartServiceDeps{
		Repository: repo,
		Pricer:     &stubCartPricer{},
		Config: &stubConfigSource{
			config: domain.StoreConfig{Pricing: testPricing},
		},
		Clock: func() time.Time { return time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	service, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return service
}

func TestCartServiceGetCartCreatesWhenMissing(t *testing.T) {
	var upserted *domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
			upserted = &cart
			return cart, nil
		},
	}

	service := newTestCartService(t, repo)

	cart, err := service.GetCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted == nil {
		t.Fatalf("expected empty cart to be persisted")
	}
	if cart.SessionID != "sess-1" {
		t.Fatalf("expected session sess-1, got %q", cart.SessionID)
	}
	if cart.ID == "" {
		t.Fatalf("expected generated cart id")
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
}

func TestCartServiceAddItemDefaults(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", SessionID: sessionID, Items: items}, nil
		},
	}

	service := newTestCartService(t, repo)

	result, err := service.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindSeries, ID: 1399},
		Title:     "Game of Thrones",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Added {
		t.Fatalf("expected item to be reported as added")
	}

	cart := result.Cart
	if len(cart.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(cart.Items))
	}
	item := cart.Items[0]
	if item.PaymentMethod != domain.PaymentCash {
		t.Fatalf("expected default payment method cash, got %s", item.PaymentMethod)
	}
	if len(item.SelectedSeasons) != 1 || item.SelectedSeasons[0] != 1 {
		t.Fatalf("expected default season selection {1}, got %v", item.SelectedSeasons)
	}
	if item.AddedAt.IsZero() {
		t.Fatalf("expected AddedAt to be stamped")
	}
}

func TestCartServiceAddItemCreatesCartForFreshSession(t *testing.T) {
	// Mirrors the repository contract: reads report a missing cart until the
	// first write creates the document.
	var stored *domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			if stored == nil {
				return domain.Cart{}, &repositoryErrorStub{notFound: true}
			}
			return *stored, nil
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			cart := domain.Cart{ID: sessionID, SessionID: sessionID, Items: items, UpdatedAt: time.Now()}
			stored = &cart
			return cart, nil
		},
	}

	service := newTestCartService(t, repo)

	result, err := service.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-fresh",
		Key:       ItemKey{Kind: domain.MediaKindMovie, ID: 550},
		Title:     "Fight Club",
	})
	if err != nil {
		t.Fatalf("expected first add on a fresh session to create the cart, got %v", err)
	}
	if !result.Added {
		t.Fatalf("expected item to be reported as added")
	}
	if len(result.Cart.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Cart.Items))
	}
	if stored == nil || len(stored.Items) != 1 {
		t.Fatalf("expected the new cart to be persisted")
	}

	loaded, err := service.GetCart(context.Background(), "sess-fresh")
	if err != nil {
		t.Fatalf("unexpected error reloading cart: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].Key.ID != 550 {
		t.Fatalf("expected persisted item to survive reload, got %+v", loaded.Items)
	}
}

func TestCartServiceAddItemIdempotentPerKey(t *testing.T) {
	existing := domain.Cart{
		ID:        "cart-1",
		SessionID: "sess-1",
		Items: []domain.CartItem{
			{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 550}, Title: "Fight Club", PaymentMethod: domain.PaymentCash},
		},
		UpdatedAt: time.Now(),
	}
	replaced := false
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = true
			return existing, nil
		},
	}

	service := newTestCartService(t, repo)

	result, err := service.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindMovie, ID: 550},
		Title:     "Fight Club",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replaced {
		t.Fatalf("expected duplicate add to skip persistence")
	}
	if result.Added {
		t.Fatalf("expected duplicate add to be reported as a no-op")
	}
	if len(result.Cart.Items) != 1 {
		t.Fatalf("expected cart unchanged, got %d items", len(result.Cart.Items))
	}
}

func TestCartServiceAddItemDistinguishesKinds(t *testing.T) {
	existing := domain.Cart{
		ID:        "cart-1",
		SessionID: "sess-1",
		Items: []domain.CartItem{
			{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 100}, Title: "Movie 100", PaymentMethod: domain.PaymentCash},
		},
		UpdatedAt: time.Now(),
	}
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", SessionID: sessionID, Items: items}, nil
		},
	}

	service := newTestCartService(t, repo)

	// A series sharing the numeric id of a movie is a different item.
	result, err := service.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindSeries, ID: 100},
		Title:     "Series 100",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Added {
		t.Fatalf("expected item to be reported as added")
	}
	if len(result.Cart.Items) != 2 {
		t.Fatalf("expected both items to coexist, got %d", len(result.Cart.Items))
	}
}

func TestCartServiceAddItemNovelaRequiresChapters(t *testing.T) {
	service := newTestCartService(t, &stubCartRepository{})

	_, err := service.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindNovela, ID: 9},
		Title:     "La Usurpadora",
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceRemoveItemMissing(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", SessionID: sessionID, UpdatedAt: time.Now()}, nil
		},
	}

	service := newTestCartService(t, repo)

	_, err := service.RemoveItem(context.Background(), RemoveCartItemCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindMovie, ID: 550},
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceUpdateSeasons(t *testing.T) {
	existing := domain.Cart{
		ID:        "cart-1",
		SessionID: "sess-1",
		Items: []domain.CartItem{
			{
				Key:             domain.ItemKey{Kind: domain.MediaKindSeries, ID: 1399},
				Title:           "Game of Thrones",
				PaymentMethod:   domain.PaymentCash,
				SelectedSeasons: []int{1},
			},
		},
		UpdatedAt: time.Now(),
	}
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", SessionID: sessionID, Items: items}, nil
		},
	}

	service := newTestCartService(t, repo)

	cart, err := service.UpdateSeasons(context.Background(), UpdateSeasonsCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindSeries, ID: 1399},
		Seasons:   []int{3, 1, 3, 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := cart.Items[0].SelectedSeasons
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected deduplicated sorted seasons, got %v", got)
	}
	if cart.Items[0].UpdatedAt == nil {
		t.Fatalf("expected item UpdatedAt to be stamped")
	}
}

func TestCartServiceUpdateSeasonsRejectsEmpty(t *testing.T) {
	service := newTestCartService(t, &stubCartRepository{})

	_, err := service.UpdateSeasons(context.Background(), UpdateSeasonsCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindSeries, ID: 1399},
		Seasons:   nil,
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpdatePaymentMethod(t *testing.T) {
	existing := domain.Cart{
		ID:        "cart-1",
		SessionID: "sess-1",
		Items: []domain.CartItem{
			{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 550}, Title: "Fight Club", PaymentMethod: domain.PaymentCash},
		},
		UpdatedAt: time.Now(),
	}
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
			return domain.Cart{ID: "cart-1", SessionID: sessionID, Items: items}, nil
		},
	}

	service := newTestCartService(t, repo)

	cart, err := service.UpdatePaymentMethod(context.Background(), UpdatePaymentMethodCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindMovie, ID: 550},
		Method:    domain.PaymentTransfer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Items[0].PaymentMethod != domain.PaymentTransfer {
		t.Fatalf("expected transfer, got %s", cart.Items[0].PaymentMethod)
	}

	_, err = service.UpdatePaymentMethod(context.Background(), UpdatePaymentMethodCommand{
		SessionID: "sess-1",
		Key:       ItemKey{Kind: domain.MediaKindMovie, ID: 550},
		Method:    PaymentMethod("check"),
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for unknown method, got %v", err)
	}
}

func TestCartServicePriceCartUsesCurrentConfig(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{
				ID:        "cart-1",
				SessionID: sessionID,
				Items: []domain.CartItem{
					{Key: domain.ItemKey{Kind: domain.MediaKindMovie, ID: 550}, PaymentMethod: domain.PaymentCash},
				},
				UpdatedAt: time.Now(),
			}, nil
		},
	}

	var seen PricingConfig
	pricer := &stubCartPricer{
		calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
			seen = cmd.Pricing
			return PriceCartResult{Pricing: CartPricing{CashTotal: 80, Total: 80}}, nil
		},
	}

	service := newTestCartService(t, repo, func(deps *CartServiceDeps) {
		deps.Pricer = pricer
	})

	pricing, err := service.PriceCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pricing.Total != 80 {
		t.Fatalf("expected total 80, got %d", pricing.Total)
	}
	if seen != testPricing {
		t.Fatalf("expected current pricing config to be forwarded, got %+v", seen)
	}
}

func TestCartServicePriceCartMissingCart(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCartService(t, repo)

	pricing, err := service.PriceCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pricing.Total != 0 || len(pricing.Items) != 0 {
		t.Fatalf("expected zero pricing for missing cart, got %+v", pricing)
	}
}

func TestCartServiceClearCartToleratesMissing(t *testing.T) {
	repo := &stubCartRepository{
		deleteFunc: func(ctx context.Context, sessionID string) error {
			return &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCartService(t, repo)

	if err := service.ClearCart(context.Background(), "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCartServicePurgeExpired(t *testing.T) {
	now := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	var gotCutoff time.Time
	repo := &stubCartRepository{
		deleteExpiredFunc: func(ctx context.Context, cutoff time.Time, limit int) (int, error) {
			gotCutoff = cutoff
			if limit != 100 {
				t.Fatalf("expected limit 100, got %d", limit)
			}
			return 3, nil
		},
	}

	service := newTestCartService(t, repo)

	deleted, err := service.PurgeExpired(context.Background(), 72*time.Hour, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
	if want := now.Add(-72 * time.Hour); !gotCutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, gotCutoff)
	}
}

func TestCartServiceTranslatesRepositoryFailures(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, sessionID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{unavailable: true}
		},
	}

	service := newTestCartService(t, repo)

	_, err := service.GetCart(context.Background(), "sess-1")
	if !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}
}

type stubCartRepository struct {
	getFunc           func(ctx context.Context, sessionID string) (domain.Cart, error)
	upsertFunc        func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	replaceFunc       func(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error)
	deleteFunc        func(ctx context.Context, sessionID string) error
	deleteExpiredFunc func(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

func (s *stubCartRepository) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, sessionID)
	}
	return domain.Cart{}, errors.New("not implemented")
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cart)
	}
	return cart, nil
}

func (s *stubCartRepository) ReplaceItems(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
	if s.replaceFunc != nil {
		return s.replaceFunc(ctx, sessionID, items)
	}
	return domain.Cart{}, errors.New("not implemented")
}

func (s *stubCartRepository) DeleteCart(ctx context.Context, sessionID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, sessionID)
	}
	return nil
}

func (s *stubCartRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if s.deleteExpiredFunc != nil {
		return s.deleteExpiredFunc(ctx, cutoff, limit)
	}
	return 0, nil
}

type stubCartPricer struct {
	calculateFunc func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error)
}

func (s *stubCartPricer) Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
	if s.calculateFunc != nil {
		return s.calculateFunc(ctx, cmd)
	}
	return PriceCartResult{}, nil
}

type stubConfigSource struct {
	config domain.StoreConfig
	err    error
}

func (s *stubConfigSource) GetConfig(ctx context.Context) (domain.StoreConfig, error) {
	if s.err != nil {
		return domain.StoreConfig{}, s.err
	}
	return s.config, nil
}

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	return "repository error"
}

func (e *repositoryErrorStub) IsNotFound() bool {
	return e.notFound
}

func (e *repositoryErrorStub) IsConflict() bool {
	return e.conflict
}

func (e *repositoryErrorStub) IsUnavailable() bool {
	return e.unavailable
}
