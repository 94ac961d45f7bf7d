package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yuya-sudo/yuya-api/internal/domain"
)

var (
	// ErrCartPricingInvalidInput signals bad request data such as an unknown media kind or a non-positive chapter count.
	ErrCartPricingInvalidInput = errors.New("cart pricing: invalid input")
	// ErrCartPricingConfig is returned when the pricing configuration itself is unusable.
	ErrCartPricingConfig = errors.New("cart pricing: invalid configuration")
)

// CartPricer defines the dependency capable of calculating cart totals.
type CartPricer interface {
	Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error)
}

type PriceCartCommand struct {
	Items   []CartItem
	Pricing PricingConfig
}

type PriceCartResult struct {
	Pricing CartPricing
}

// CartPricingEngine computes per-item prices and payment-method totals.
//
// The transfer surcharge is applied and rounded per item, then the rounded
// amounts are summed. Summing raw amounts and rounding once at the end can
// differ by several pesos on large carts, so the order matters.
type CartPricingEngine struct {
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

type CartPricingEngineDeps struct {
	Now    func() time.Time
	Logger func(context.Context, string, map[string]any)
}

func NewCartPricingEngine(deps CartPricingEngineDeps) (*CartPricingEngine, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	engine := &CartPricingEngine{
		now:    func() time.Time { return now().UTC() },
		logger: logger,
	}
	return engine, nil
}

func (e *CartPricingEngine) Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
	if err := validatePricingConfig(cmd.Pricing); err != nil {
		return PriceCartResult{}, err
	}

	pricing := CartPricing{Items: make([]ItemPricing, 0, len(cmd.Items))}

	for _, item := range cmd.Items {
		line, err := priceItem(item, cmd.Pricing)
		if err != nil {
			return PriceCartResult{}, err
		}

		switch line.PaymentMethod {
		case domain.PaymentTransfer:
			if pricing.TransferTotal > math.MaxInt64-line.FinalPrice {
				return PriceCartResult{}, fmt.Errorf("%w: transfer total overflow", ErrCartPricingInvalidInput)
			}
			pricing.TransferTotal += line.FinalPrice
		default:
			if pricing.CashTotal > math.MaxInt64-line.FinalPrice {
				return PriceCartResult{}, fmt.Errorf("%w: cash total overflow", ErrCartPricingInvalidInput)
			}
			pricing.CashTotal += line.FinalPrice
		}

		pricing.Items = append(pricing.Items, line)
	}

	pricing.Total = pricing.CashTotal + pricing.TransferTotal
	return PriceCartResult{Pricing: pricing}, nil
}

func priceItem(item CartItem, cfg PricingConfig) (ItemPricing, error) {
	line := ItemPricing{
		Key:           item.Key,
		Title:         item.Title,
		PaymentMethod: item.PaymentMethod,
	}
	if !line.PaymentMethod.IsValid() {
		line.PaymentMethod = domain.PaymentCash
	}

	switch {
	case item.Key.Kind == domain.MediaKindMovie:
		line.BasePrice = cfg.MoviePrice
	case item.Key.Kind.PricesAsSeries():
		seasons := len(item.SelectedSeasons)
		if seasons == 0 {
			return ItemPricing{}, fmt.Errorf("%w: item %s has no selected seasons", ErrCartPricingInvalidInput, item.Key)
		}
		if cfg.SeriesPricePerSeason > 0 && int64(seasons) > math.MaxInt64/cfg.SeriesPricePerSeason {
			return ItemPricing{}, fmt.Errorf("%w: item %s price overflow", ErrCartPricingInvalidInput, item.Key)
		}
		line.SeasonCount = seasons
		line.BasePrice = int64(seasons) * cfg.SeriesPricePerSeason
	case item.Key.Kind == domain.MediaKindNovela:
		if item.ChapterCount <= 0 {
			return ItemPricing{}, fmt.Errorf("%w: item %s has no chapter count", ErrCartPricingInvalidInput, item.Key)
		}
		if cfg.NovelaPricePerChapter > 0 && int64(item.ChapterCount) > math.MaxInt64/cfg.NovelaPricePerChapter {
			return ItemPricing{}, fmt.Errorf("%w: item %s price overflow", ErrCartPricingInvalidInput, item.Key)
		}
		line.ChapterCount = item.ChapterCount
		line.BasePrice = int64(item.ChapterCount) * cfg.NovelaPricePerChapter
	default:
		return ItemPricing{}, fmt.Errorf("%w: unknown media kind %q", ErrCartPricingInvalidInput, item.Key.Kind)
	}

	line.FinalPrice = line.BasePrice
	if line.PaymentMethod == domain.PaymentTransfer {
		line.FinalPrice = applyTransferSurcharge(line.BasePrice, cfg.TransferSurchargePct)
	}
	return line, nil
}

// applyTransferSurcharge rounds half away from zero to whole pesos.
func applyTransferSurcharge(base int64, pct float64) int64 {
	if pct == 0 {
		return base
	}
	return int64(math.Round(float64(base) * (1 + pct/100)))
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.MoviePrice < 0 || cfg.SeriesPricePerSeason < 0 || cfg.NovelaPricePerChapter < 0 {
		return fmt.Errorf("%w: prices cannot be negative", ErrCartPricingConfig)
	}
	if cfg.TransferSurchargePct < 0 {
		return fmt.Errorf("%w: transfer surcharge cannot be negative", ErrCartPricingConfig)
	}
	return nil
}
