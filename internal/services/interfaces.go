package services

import (
	"context"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	MediaKind          = domain.MediaKind
	PaymentMethod      = domain.PaymentMethod
	ItemKey            = domain.ItemKey
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	CartPricing        = domain.CartPricing
	ItemPricing        = domain.ItemPricing
	PricingConfig      = domain.PricingConfig
	DeliveryZone       = domain.DeliveryZone
	Novela             = domain.Novela
	NovelaStatus       = domain.NovelaStatus
	StoreConfig        = domain.StoreConfig
	DeliveryMode       = domain.DeliveryMode
	CustomerInfo       = domain.CustomerInfo
	Order              = domain.Order
	CatalogItem        = domain.CatalogItem
	CatalogPage        = domain.CatalogPage
	SystemHealthReport = domain.SystemHealthReport
)

// CartService manages session-scoped cart state and pricing.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (AddCartItemResult, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	UpdateSeasons(ctx context.Context, cmd UpdateSeasonsCommand) (Cart, error)
	UpdatePaymentMethod(ctx context.Context, cmd UpdatePaymentMethodCommand) (Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
	PriceCart(ctx context.Context, sessionID string) (CartPricing, error)
	PurgeExpired(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// CheckoutService validates customer details and composes orders from priced carts.
type CheckoutService interface {
	ValidateCustomer(ctx context.Context, customer CustomerInfo) error
	ComposeOrder(ctx context.Context, cmd ComposeOrderCommand) (CheckoutResult, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// ConfigService exposes the store configuration with admin mutations and change propagation.
type ConfigService interface {
	GetConfig(ctx context.Context) (StoreConfig, error)
	UpdatePricing(ctx context.Context, cmd UpdatePricingCommand) (StoreConfig, error)
	UpsertZone(ctx context.Context, cmd UpsertZoneCommand) (StoreConfig, error)
	DeleteZone(ctx context.Context, cmd DeleteZoneCommand) (StoreConfig, error)
	UpsertNovela(ctx context.Context, cmd UpsertNovelaCommand) (StoreConfig, error)
	DeleteNovela(ctx context.Context, cmd DeleteNovelaCommand) (StoreConfig, error)
	Watch(ctx context.Context) (<-chan StoreConfig, func())
	Run(ctx context.Context) error
}

// CatalogService serves browsable media listings backed by the upstream metadata provider.
type CatalogService interface {
	Browse(ctx context.Context, cmd BrowseCatalogCommand) (CatalogPage, error)
	Search(ctx context.Context, cmd SearchCatalogCommand) (CatalogPage, error)
	GetDetails(ctx context.Context, kind MediaKind, id int64) (CatalogItem, error)
	ListNovelas(ctx context.Context) ([]Novela, error)
}

// SystemService aggregates utility endpoints (health checks, readiness probes).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

type AddCartItemCommand struct {
	SessionID       string
	Key             ItemKey
	Title           string
	PosterPath      string
	PaymentMethod   *PaymentMethod
	SelectedSeasons []int
	ChapterCount    int
	Country         string
	Genre           string
	Status          NovelaStatus
}

// AddCartItemResult reports the cart after an add. Added is false when the
// item was already present and the request was a no-op.
type AddCartItemResult struct {
	Cart  Cart
	Added bool
}

type RemoveCartItemCommand struct {
	SessionID string
	Key       ItemKey
}

type UpdateSeasonsCommand struct {
	SessionID string
	Key       ItemKey
	Seasons   []int
}

type UpdatePaymentMethodCommand struct {
	SessionID string
	Key       ItemKey
	Method    PaymentMethod
}

type ComposeOrderCommand struct {
	SessionID string
	Customer  CustomerInfo
	ClearCart bool
}

// CheckoutResult bundles the archived order with its rendered confirmation message.
type CheckoutResult struct {
	Order       Order
	Message     string
	WhatsAppURL string
}

type UpdatePricingCommand struct {
	MoviePrice            *int64
	SeriesPricePerSeason  *int64
	NovelaPricePerChapter *int64
	TransferSurchargePct  *float64
	Origin                string
}

type UpsertZoneCommand struct {
	Zone   DeliveryZone
	Origin string
}

type DeleteZoneCommand struct {
	Name   string
	Origin string
}

type UpsertNovelaCommand struct {
	Novela Novela
	Origin string
}

type DeleteNovelaCommand struct {
	ID     int64
	Origin string
}

type BrowseCatalogCommand struct {
	Kind    MediaKind
	Page    int
	GenreID int64
}

type SearchCatalogCommand struct {
	Kind  MediaKind
	Query string
	Page  int
}
