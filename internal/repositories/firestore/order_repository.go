package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	pfirestore "github.com/yuya-sudo/yuya-api/internal/platform/firestore"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

const (
	orderCollection = "orders"
)

// OrderRepository archives composed orders in Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert stores the composed order under its generated identifier.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	if _, err := r.base.Set(ctx, orderID, encodeOrder(order)); err != nil {
		return err
	}
	return nil
}

// FindByID loads an archived order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		Customer: customerDocument{
			FullName:     strings.TrimSpace(order.Customer.FullName),
			Phone:        strings.TrimSpace(order.Customer.Phone),
			Address:      strings.TrimSpace(order.Customer.Address),
			DeliveryMode: string(order.Customer.DeliveryMode),
			Zone:         strings.TrimSpace(order.Customer.Zone),
		},
		Items:         encodeCartItems(order.Items),
		CashTotal:     order.Pricing.CashTotal,
		TransferTotal: order.Pricing.TransferTotal,
		ItemsTotal:    order.Pricing.Total,
		DeliveryCost:  order.DeliveryCost,
		GrandTotal:    order.GrandTotal,
		CreatedAt:     order.CreatedAt.UTC(),
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID: id,
		Customer: domain.CustomerInfo{
			FullName:     doc.Customer.FullName,
			Phone:        doc.Customer.Phone,
			Address:      doc.Customer.Address,
			DeliveryMode: domain.DeliveryMode(doc.Customer.DeliveryMode),
			Zone:         doc.Customer.Zone,
		},
		Items: decodeCartItems(doc.Items),
		Pricing: domain.CartPricing{
			CashTotal:     doc.CashTotal,
			TransferTotal: doc.TransferTotal,
			Total:         doc.ItemsTotal,
		},
		DeliveryCost: doc.DeliveryCost,
		GrandTotal:   doc.GrandTotal,
		CreatedAt:    doc.CreatedAt,
	}
}

type orderDocument struct {
	Customer      customerDocument   `firestore:"customer"`
	Items         []cartItemDocument `firestore:"items"`
	CashTotal     int64              `firestore:"cashTotal"`
	TransferTotal int64              `firestore:"transferTotal"`
	ItemsTotal    int64              `firestore:"itemsTotal"`
	DeliveryCost  int64              `firestore:"deliveryCost"`
	GrandTotal    int64              `firestore:"grandTotal"`
	CreatedAt     time.Time          `firestore:"createdAt"`
}

type customerDocument struct {
	FullName     string `firestore:"fullName"`
	Phone        string `firestore:"phone,omitempty"`
	Address      string `firestore:"address,omitempty"`
	DeliveryMode string `firestore:"deliveryMode"`
	Zone         string `firestore:"zone,omitempty"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
