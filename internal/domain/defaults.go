package domain

// DefaultStoreConfig returns the configuration used when no snapshot has been
// persisted yet, or when a stored snapshot cannot be read.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Pricing: PricingConfig{
			MoviePrice:            80,
			SeriesPricePerSeason:  300,
			NovelaPricePerChapter: 5,
			TransferSurchargePct:  10,
		},
		Zones: DefaultDeliveryZones(),
	}
}

// DefaultDeliveryZones lists the delivery zones offered before an operator
// customises the list.
func DefaultDeliveryZones() []DeliveryZone {
	return []DeliveryZone{
		{Name: "Centro Habana", Cost: 100, Active: true},
		{Name: "Habana Vieja", Cost: 100, Active: true},
		{Name: "Cerro", Cost: 150, Active: true},
		{Name: "Diez de Octubre", Cost: 150, Active: true},
		{Name: "Playa", Cost: 200, Active: true},
		{Name: "Marianao", Cost: 200, Active: true},
		{Name: "Boyeros", Cost: 250, Active: true},
		{Name: "Guanabacoa", Cost: 250, Active: true},
	}
}
