package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	pfirestore "github.com/yuya-sudo/yuya-api/internal/platform/firestore"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

const (
	configCollection = "config"
	configDocumentID = "store"
)

// ConfigRepository persists the store configuration as a single Firestore
// document. All writes replace the full snapshot so concurrent admin edits
// resolve last-write-wins.
type ConfigRepository struct {
	base     *pfirestore.BaseRepository[storeConfigDocument]
	provider *pfirestore.Provider
}

// NewConfigRepository constructs a Firestore-backed config repository.
func NewConfigRepository(provider *pfirestore.Provider) (*ConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("config repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[storeConfigDocument](provider, configCollection, nil, nil)
	return &ConfigRepository{
		base:     base,
		provider: provider,
	}, nil
}

// GetConfig loads the configuration snapshot.
func (r *ConfigRepository) GetConfig(ctx context.Context) (domain.StoreConfig, error) {
	if r == nil || r.base == nil {
		return domain.StoreConfig{}, errors.New("config repository not initialised")
	}

	doc, err := r.base.Get(ctx, configDocumentID)
	if err != nil {
		return domain.StoreConfig{}, err
	}
	return decodeStoreConfig(doc.Data, doc.UpdateTime), nil
}

// SavePricing replaces the pricing section and persists the full snapshot.
func (r *ConfigRepository) SavePricing(ctx context.Context, pricing domain.PricingConfig, now time.Time) (domain.StoreConfig, error) {
	return r.mutate(ctx, now, func(cfg *domain.StoreConfig) error {
		cfg.Pricing = pricing
		return nil
	})
}

// SaveZone inserts or updates the named delivery zone.
func (r *ConfigRepository) SaveZone(ctx context.Context, zone domain.DeliveryZone, now time.Time) (domain.StoreConfig, error) {
	name := strings.TrimSpace(zone.Name)
	if name == "" {
		return domain.StoreConfig{}, errors.New("config repository: zone name is required")
	}
	zone.Name = name

	return r.mutate(ctx, now, func(cfg *domain.StoreConfig) error {
		for i := range cfg.Zones {
			if cfg.Zones[i].Name == name {
				cfg.Zones[i] = zone
				return nil
			}
		}
		cfg.Zones = append(cfg.Zones, zone)
		sort.Slice(cfg.Zones, func(i, j int) bool { return cfg.Zones[i].Name < cfg.Zones[j].Name })
		return nil
	})
}

// DeleteZone removes the named delivery zone when present.
func (r *ConfigRepository) DeleteZone(ctx context.Context, name string, now time.Time) (domain.StoreConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.StoreConfig{}, errors.New("config repository: zone name is required")
	}

	return r.mutate(ctx, now, func(cfg *domain.StoreConfig) error {
		kept := cfg.Zones[:0]
		for _, zone := range cfg.Zones {
			if zone.Name != name {
				kept = append(kept, zone)
			}
		}
		cfg.Zones = kept
		return nil
	})
}

// SaveNovela inserts or updates a curated novela entry.
func (r *ConfigRepository) SaveNovela(ctx context.Context, novela domain.Novela, now time.Time) (domain.StoreConfig, error) {
	if novela.ID == 0 {
		return domain.StoreConfig{}, errors.New("config repository: novela id is required")
	}

	return r.mutate(ctx, now, func(cfg *domain.StoreConfig) error {
		novela.UpdatedAt = now.UTC()
		for i := range cfg.Novelas {
			if cfg.Novelas[i].ID == novela.ID {
				novela.CreatedAt = cfg.Novelas[i].CreatedAt
				cfg.Novelas[i] = novela
				return nil
			}
		}
		novela.CreatedAt = now.UTC()
		cfg.Novelas = append(cfg.Novelas, novela)
		return nil
	})
}

// DeleteNovela removes a curated novela entry when present.
func (r *ConfigRepository) DeleteNovela(ctx context.Context, id int64, now time.Time) (domain.StoreConfig, error) {
	if id == 0 {
		return domain.StoreConfig{}, errors.New("config repository: novela id is required")
	}

	return r.mutate(ctx, now, func(cfg *domain.StoreConfig) error {
		kept := cfg.Novelas[:0]
		for _, novela := range cfg.Novelas {
			if novela.ID != id {
				kept = append(kept, novela)
			}
		}
		cfg.Novelas = kept
		return nil
	})
}

func (r *ConfigRepository) mutate(ctx context.Context, now time.Time, apply func(cfg *domain.StoreConfig) error) (domain.StoreConfig, error) {
	if r == nil || r.base == nil {
		return domain.StoreConfig{}, errors.New("config repository not initialised")
	}

	current, err := r.GetConfig(ctx)
	if err != nil {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			return domain.StoreConfig{}, err
		}
		current = domain.StoreConfig{}
	}

	if err := apply(&current); err != nil {
		return domain.StoreConfig{}, err
	}
	current.UpdatedAt = now.UTC()

	result, saveErr := r.base.Set(ctx, configDocumentID, encodeStoreConfig(current))
	if saveErr != nil {
		return domain.StoreConfig{}, saveErr
	}
	current.UpdatedAt = result.UpdateTime
	return current, nil
}

func encodeStoreConfig(cfg domain.StoreConfig) storeConfigDocument {
	doc := storeConfigDocument{
		Pricing: pricingDocument{
			MoviePrice:            cfg.Pricing.MoviePrice,
			SeriesPricePerSeason:  cfg.Pricing.SeriesPricePerSeason,
			NovelaPricePerChapter: cfg.Pricing.NovelaPricePerChapter,
			TransferSurchargePct:  cfg.Pricing.TransferSurchargePct,
		},
		UpdatedAt: cfg.UpdatedAt,
	}
	for _, zone := range cfg.Zones {
		doc.Zones = append(doc.Zones, zoneDocument{Name: zone.Name, Cost: zone.Cost, Active: zone.Active})
	}
	for _, novela := range cfg.Novelas {
		doc.Novelas = append(doc.Novelas, novelaDocument{
			ID:           novela.ID,
			Title:        novela.Title,
			ChapterCount: novela.ChapterCount,
			Country:      novela.Country,
			Genre:        novela.Genre,
			Status:       string(novela.Status),
			PosterPath:   novela.PosterPath,
			CreatedAt:    novela.CreatedAt,
			UpdatedAt:    novela.UpdatedAt,
		})
	}
	return doc
}

func decodeStoreConfig(doc storeConfigDocument, updateTime time.Time) domain.StoreConfig {
	cfg := domain.StoreConfig{
		Pricing: domain.PricingConfig{
			MoviePrice:            doc.Pricing.MoviePrice,
			SeriesPricePerSeason:  doc.Pricing.SeriesPricePerSeason,
			NovelaPricePerChapter: doc.Pricing.NovelaPricePerChapter,
			TransferSurchargePct:  doc.Pricing.TransferSurchargePct,
		},
		UpdatedAt: doc.UpdatedAt,
	}
	if !updateTime.IsZero() {
		cfg.UpdatedAt = updateTime
	}
	for _, zone := range doc.Zones {
		cfg.Zones = append(cfg.Zones, domain.DeliveryZone{Name: zone.Name, Cost: zone.Cost, Active: zone.Active})
	}
	for _, novela := range doc.Novelas {
		cfg.Novelas = append(cfg.Novelas, domain.Novela{
			ID:           novela.ID,
			Title:        novela.Title,
			ChapterCount: novela.ChapterCount,
			Country:      novela.Country,
			Genre:        novela.Genre,
			Status:       domain.NovelaStatus(novela.Status),
			PosterPath:   novela.PosterPath,
			CreatedAt:    novela.CreatedAt,
			UpdatedAt:    novela.UpdatedAt,
		})
	}
	return cfg
}

type storeConfigDocument struct {
	Pricing   pricingDocument  `firestore:"pricing"`
	Zones     []zoneDocument   `firestore:"zones,omitempty"`
	Novelas   []novelaDocument `firestore:"novelas,omitempty"`
	UpdatedAt time.Time        `firestore:"updatedAt"`
}

type pricingDocument struct {
	MoviePrice            int64   `firestore:"moviePrice"`
	SeriesPricePerSeason  int64   `firestore:"seriesPricePerSeason"`
	NovelaPricePerChapter int64   `firestore:"novelaPricePerChapter"`
	TransferSurchargePct  float64 `firestore:"transferSurchargePct"`
}

type zoneDocument struct {
	Name   string `firestore:"name"`
	Cost   int64  `firestore:"cost"`
	Active bool   `firestore:"active"`
}

type novelaDocument struct {
	ID           int64     `firestore:"id"`
	Title        string    `firestore:"title"`
	ChapterCount int       `firestore:"chapterCount"`
	Country      string    `firestore:"country,omitempty"`
	Genre        string    `firestore:"genre,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	PosterPath   string    `firestore:"posterPath,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

var _ repositories.ConfigRepository = (*ConfigRepository)(nil)
