package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCart       = errors.New("cannot create an order from an empty cart")
	ErrInvalidQuantity = errors.New("item quantity must be at least one")
	ErrOutOfStock      = errors.New("requested quantity exceeds current stock")
	ErrPriceMismatch   = errors.New("client-supplied totals diverge from the authoritative prices")
	ErrAlreadyPaid     = errors.New("order has already been paid with a different confirmation")
	ErrNotPaid         = errors.New("order has not been paid")
	ErrOptimisticLock  = errors.New("order has been modified by another transaction")
)

// OrderItem is a line of the order's price snapshot, captured from the catalog
// at creation time and never re-derived from live catalog data.
type OrderItem struct {
	ProductID      uuid.UUID
	Name           string
	UnitPriceCents int64
	Quantity       int
	Image          string
}

// PaymentResult records the normalized external capture that paid the order.
// ExternalID is unique across all orders: a replayed confirmation must never
// credit two of them.
type PaymentResult struct {
	ExternalID   string
	Status       string
	SettledAt    time.Time
	PayerContact string
}

type Order struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	Items              []OrderItem
	ShippingAddress    string
	PaymentMethod      string
	ItemsPriceCents    int64
	ShippingPriceCents int64
	TaxPriceCents      int64
	TotalPriceCents    int64
	IsPaid             bool
	PaidAt             *time.Time
	PaymentResult      *PaymentResult
	IsDelivered        bool
	DeliveredAt        *time.Time
	CreatedAt          time.Time
	Version            int
}

// CartLine is a client-submitted cart entry. Only the product reference and
// quantity are taken from it; prices come from the catalog.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// ClaimedTotals are the totals the client believes it is paying. They are
// checked against the computed ones and rejected on divergence, never stored.
type ClaimedTotals struct {
	ItemsCents    int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
}

type DailySales struct {
	Date       string // YYYY-MM-DD, order creation date
	TotalCents int64
}

// CatalogProduct is the read-side view of a product needed at checkout.
type CatalogProduct struct {
	ID           uuid.UUID
	Name         string
	Image        string
	PriceCents   int64
	CountInStock int
}

// ProductCatalog is the external catalog boundary. The order core only reads
// current price and stock through it; it never writes.
type ProductCatalog interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*CatalogProduct, error)
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, order *Order) error
	Find(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByPaymentExternalID returns the order credited with the given
	// external confirmation id, or ErrOrderNotFound.
	FindByPaymentExternalID(ctx context.Context, externalID string) (*Order, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Order, error)
	FindAll(ctx context.Context) ([]*Order, error)
	// Update persists a transition. The write must compare the stored version
	// against order.Version-1 and return ErrOptimisticLock on mismatch.
	Update(ctx context.Context, order *Order) error
}
