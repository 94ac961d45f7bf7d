package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	pfirestore "github.com/yuya-sudo/yuya-api/internal/platform/firestore"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

const (
	cartCollection = "carts"
)

// CartRepository persists session carts within Firestore. Items live inline
// on the cart document since carts stay small.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// UpsertCart persists the cart using the session ID as document identifier.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	sessionID := strings.TrimSpace(cartSessionID(cart))
	if sessionID == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}

	doc := cartDocument{
		Items:     encodeCartItems(cart.Items),
		UpdatedAt: now,
	}

	result, err := r.base.Set(ctx, sessionID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cloneCart(cart)
	saved.ID = sessionID
	saved.SessionID = sessionID
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// GetCart loads the cart for the given session ID.
func (r *CartRepository) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}

	doc, err := r.base.Get(ctx, sid)
	if err != nil {
		return domain.Cart{}, err
	}

	cart := domain.Cart{
		ID:        doc.ID,
		SessionID: doc.ID,
		Items:     decodeCartItems(doc.Data.Items),
		UpdatedAt: func() time.Time {
			if !doc.UpdateTime.IsZero() {
				return doc.UpdateTime
			}
			return doc.Data.UpdatedAt
		}(),
	}

	return cart, nil
}

// ReplaceItems swaps the full item list. The write sets the whole document,
// so the first mutation of a fresh session creates the cart rather than
// failing on a missing document.
func (r *CartRepository) ReplaceItems(ctx context.Context, sessionID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}

	doc := cartDocument{
		Items:     encodeCartItems(items),
		UpdatedAt: time.Now().UTC(),
	}

	result, err := r.base.Set(ctx, sid, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := make([]domain.CartItem, len(items))
	copy(saved, items)

	return domain.Cart{
		ID:        sid,
		SessionID: sid,
		Items:     saved,
		UpdatedAt: result.UpdateTime,
	}, nil
}

// DeleteCart removes the cart document for the session.
func (r *CartRepository) DeleteCart(ctx context.Context, sessionID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return errors.New("cart repository: session id is required")
	}

	ref, err := r.base.DocumentRef(ctx, sid)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

// DeleteExpired removes carts not touched since the cutoff, up to limit
// documents per invocation. It returns the number of carts removed.
func (r *CartRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("cart repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("updatedAt", "<", cutoff.UTC()).Limit(limit)
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, doc := range docs {
		ref, refErr := r.base.DocumentRef(ctx, doc.ID)
		if refErr != nil {
			return deleted, refErr
		}
		if _, delErr := ref.Delete(ctx); delErr != nil {
			return deleted, pfirestore.WrapError("carts.delete", delErr)
		}
		deleted++
	}
	return deleted, nil
}

func cartSessionID(cart domain.Cart) string {
	if strings.TrimSpace(cart.SessionID) != "" {
		return strings.TrimSpace(cart.SessionID)
	}
	return strings.TrimSpace(cart.ID)
}

func cloneCart(cart domain.Cart) domain.Cart {
	dup := cart
	if cart.Items != nil {
		dup.Items = make([]domain.CartItem, len(cart.Items))
		copy(dup.Items, cart.Items)
	}
	return dup
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	out := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		doc := cartItemDocument{
			Kind:          string(item.Key.Kind),
			ItemID:        item.Key.ID,
			Title:         strings.TrimSpace(item.Title),
			PosterPath:    strings.TrimSpace(item.PosterPath),
			PaymentMethod: string(item.PaymentMethod),
			ChapterCount:  item.ChapterCount,
			Country:       strings.TrimSpace(item.Country),
			Genre:         strings.TrimSpace(item.Genre),
			Status:        string(item.Status),
			AddedAt:       item.AddedAt.UTC(),
		}
		if len(item.SelectedSeasons) > 0 {
			doc.SelectedSeasons = make([]int, len(item.SelectedSeasons))
			copy(doc.SelectedSeasons, item.SelectedSeasons)
		}
		if item.UpdatedAt != nil {
			updated := item.UpdatedAt.UTC()
			doc.UpdatedAt = &updated
		}
		out = append(out, doc)
	}
	return out
}

func decodeCartItems(docs []cartItemDocument) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		item := domain.CartItem{
			Key: domain.ItemKey{
				Kind: domain.MediaKind(doc.Kind),
				ID:   doc.ItemID,
			},
			Title:         doc.Title,
			PosterPath:    doc.PosterPath,
			PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
			ChapterCount:  doc.ChapterCount,
			Country:       doc.Country,
			Genre:         doc.Genre,
			Status:        domain.NovelaStatus(doc.Status),
			AddedAt:       doc.AddedAt,
			UpdatedAt:     doc.UpdatedAt,
		}
		if len(doc.SelectedSeasons) > 0 {
			item.SelectedSeasons = make([]int, len(doc.SelectedSeasons))
			copy(item.SelectedSeasons, doc.SelectedSeasons)
		}
		out = append(out, item)
	}
	return out
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	Kind            string     `firestore:"kind"`
	ItemID          int64      `firestore:"itemId"`
	Title           string     `firestore:"title"`
	PosterPath      string     `firestore:"posterPath,omitempty"`
	PaymentMethod   string     `firestore:"paymentMethod"`
	SelectedSeasons []int      `firestore:"selectedSeasons,omitempty"`
	ChapterCount    int        `firestore:"chapterCount,omitempty"`
	Country         string     `firestore:"country,omitempty"`
	Genre           string     `firestore:"genre,omitempty"`
	Status          string     `firestore:"status,omitempty"`
	AddedAt         time.Time  `firestore:"addedAt"`
	UpdatedAt       *time.Time `firestore:"updatedAt,omitempty"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
