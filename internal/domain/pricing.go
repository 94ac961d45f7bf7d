package domain

// CartPricing captures the aggregated monetary results of pricing a cart.
// All amounts are whole CUP.
type CartPricing struct {
	CashTotal     int64
	TransferTotal int64
	Total         int64
	Items         []ItemPricing
}

// ItemPricing stores the per-item pricing outputs after running the engine.
// BasePrice is the price before any surcharge; FinalPrice includes the
// transfer surcharge when the item pays by transfer, rounded per item.
type ItemPricing struct {
	Key           ItemKey
	Title         string
	PaymentMethod PaymentMethod
	BasePrice     int64
	FinalPrice    int64
	SeasonCount   int
	ChapterCount  int
}

// TotalsByPaymentMethod partitions the final amounts by payment method.
// Every item contributes to exactly one bucket.
func (p CartPricing) TotalsByPaymentMethod() map[PaymentMethod]int64 {
	totals := map[PaymentMethod]int64{
		PaymentCash:     p.CashTotal,
		PaymentTransfer: p.TransferTotal,
	}
	return totals
}
