package repositories

import (
	"context"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns cart persistence keyed by browsing session.
// ReplaceItems creates the cart document when none exists yet; only reads
// report a missing cart.
type CartRepository interface {
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	GetCart(ctx context.Context, sessionID string) (domain.Cart, error)
	ReplaceItems(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error)
	DeleteCart(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ConfigRepository persists the admin-managed store configuration.
// Writes are last-write-wins; readers always see a complete snapshot.
type ConfigRepository interface {
	GetConfig(ctx context.Context) (domain.StoreConfig, error)
	SavePricing(ctx context.Context, pricing domain.PricingConfig, now time.Time) (domain.StoreConfig, error)
	SaveZone(ctx context.Context, zone domain.DeliveryZone, now time.Time) (domain.StoreConfig, error)
	DeleteZone(ctx context.Context, name string, now time.Time) (domain.StoreConfig, error)
	SaveNovela(ctx context.Context, novela domain.Novela, now time.Time) (domain.StoreConfig, error)
	DeleteNovela(ctx context.Context, id int64, now time.Time) (domain.StoreConfig, error)
}

// OrderRepository archives composed orders for later reference.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
}

// HealthRepository aggregates dependency probes used by readiness endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
