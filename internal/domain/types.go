package domain

import (
	"fmt"
	"time"
)

// MediaKind enumerates the catalog content categories sold by the store.
type MediaKind string

const (
	// MediaKindMovie represents a single feature film.
	MediaKindMovie MediaKind = "movie"
	// MediaKindSeries represents an episodic show sold per season.
	MediaKindSeries MediaKind = "series"
	// MediaKindAnime represents animated shows, priced like series.
	MediaKindAnime MediaKind = "anime"
	// MediaKindNovela represents a telenovela sold by chapter count.
	MediaKindNovela MediaKind = "novela"
)

// IsValid reports whether the kind is one of the supported catalog categories.
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaKindMovie, MediaKindSeries, MediaKindAnime, MediaKindNovela:
		return true
	}
	return false
}

// PricesAsSeries reports whether the kind is billed per selected season.
func (k MediaKind) PricesAsSeries() bool {
	return k == MediaKindSeries || k == MediaKindAnime
}

// PaymentMethod identifies how a cart item will be paid for.
type PaymentMethod string

const (
	// PaymentCash is the default payment method with no surcharge.
	PaymentCash PaymentMethod = "cash"
	// PaymentTransfer applies the configured percentage surcharge per item.
	PaymentTransfer PaymentMethod = "transfer"
)

// IsValid reports whether the payment method is supported.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentCash || m == PaymentTransfer
}

// NovelaStatus describes the transmission state of a novela.
type NovelaStatus string

const (
	// NovelaStatusEnded marks a finished novela.
	NovelaStatusEnded NovelaStatus = "finalizada"
	// NovelaStatusAiring marks a novela still in transmission.
	NovelaStatusAiring NovelaStatus = "en transmisión"
)

// ItemKey identifies a cart item by content kind and catalog identifier.
// Identifiers from different catalog sources may collide numerically, so the
// kind always participates in equality.
type ItemKey struct {
	Kind MediaKind
	ID   int64
}

// String renders the key as "kind-id" for logs and document identifiers.
func (k ItemKey) String() string {
	return fmt.Sprintf("%s-%d", k.Kind, k.ID)
}

// CartItem stores a single catalog entry within a cart. Series and anime
// items carry the set of selected seasons; novela items carry the chapter
// count captured when the item was added.
type CartItem struct {
	Key             ItemKey
	Title           string
	PosterPath      string
	PaymentMethod   PaymentMethod
	SelectedSeasons []int
	ChapterCount    int
	Country         string
	Genre           string
	Status          NovelaStatus
	AddedAt         time.Time
	UpdatedAt       *time.Time
}

// Cart aggregates the mutable shopping cart state for a browsing session.
type Cart struct {
	ID        string
	SessionID string
	Items     []CartItem
	UpdatedAt time.Time
}

// FindItem returns the index of the item matching key, or -1.
func (c *Cart) FindItem(key ItemKey) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

// PricingConfig holds the store-wide price points in whole CUP.
type PricingConfig struct {
	MoviePrice            int64
	SeriesPricePerSeason  int64
	NovelaPricePerChapter int64
	TransferSurchargePct  float64
}

// DeliveryZone maps a named neighbourhood to its home-delivery fee.
// Inactive zones stay in the admin list but cannot be selected at checkout.
type DeliveryZone struct {
	Name   string
	Cost   int64
	Active bool
}

// Novela is an admin-curated catalog entry outside the upstream metadata
// provider.
type Novela struct {
	ID           int64
	Title        string
	ChapterCount int
	Country      string
	Genre        string
	Status       NovelaStatus
	PosterPath   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoreConfig is the full admin-managed configuration snapshot.
type StoreConfig struct {
	Pricing   PricingConfig
	Zones     []DeliveryZone
	Novelas   []Novela
	UpdatedAt time.Time
}

// ZoneCost returns the delivery fee for the named zone. Inactive zones are
// reported as absent.
func (c *StoreConfig) ZoneCost(name string) (int64, bool) {
	for _, z := range c.Zones {
		if z.Name == name && z.Active {
			return z.Cost, true
		}
	}
	return 0, false
}

// DeliveryMode distinguishes home delivery from store pickup.
type DeliveryMode string

const (
	// DeliveryModeHome delivers to the customer address for a zone fee.
	DeliveryModeHome DeliveryMode = "home"
	// DeliveryModePickup waives the address requirement and the fee.
	DeliveryModePickup DeliveryMode = "pickup"
)

// CustomerInfo captures the checkout form fields supplied by the customer.
type CustomerInfo struct {
	FullName     string
	Phone        string
	Address      string
	DeliveryMode DeliveryMode
	Zone         string
}

// Order is the composed result of a checkout: the cart snapshot, validated
// customer details, and the final money amounts.
type Order struct {
	ID           string
	Customer     CustomerInfo
	Items        []CartItem
	Pricing      CartPricing
	DeliveryCost int64
	GrandTotal   int64
	CreatedAt    time.Time
}

// CatalogItem is a normalized upstream metadata entry served to clients.
type CatalogItem struct {
	Key         ItemKey
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate string
	GenreIDs    []int64
	SeasonCount int
	VoteAverage float64
}

// CatalogPage is one page of catalog results.
type CatalogPage struct {
	Page       int
	TotalPages int
	Items      []CatalogItem
}
