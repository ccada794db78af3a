package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/common/domain"
	"storefront/pkg/order/domain/model"
	"storefront/pkg/payment"
	"storefront/pkg/pricing"
)

// OrderService owns the order lifecycle: Created → Paid → Delivered.
// Transitions on one order are totally ordered by its version; a stale write
// surfaces model.ErrOptimisticLock and the caller retries from a fresh read.
type OrderService interface {
	Create(ctx context.Context, ownerID uuid.UUID, lines []model.CartLine, shippingAddress, paymentMethod string, claimed *model.ClaimedTotals) (*model.Order, error)
	Pay(ctx context.Context, orderID uuid.UUID, rawConfirmation []byte) (*model.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Order, error)
	ListAll(ctx context.Context) ([]*model.Order, error)
	CountOrders(ctx context.Context) (int, error)
	TotalSales(ctx context.Context) (int64, error)
	TotalSalesByDate(ctx context.Context) ([]model.DailySales, error)
}

func NewOrderService(
	repo model.OrderRepository,
	catalog model.ProductCatalog,
	gateway payment.Gateway,
	policy pricing.Policy,
	dispatcher domain.EventDispatcher,
) OrderService {
	return &orderService{
		repo:       repo,
		catalog:    catalog,
		gateway:    gateway,
		policy:     policy,
		dispatcher: dispatcher,
	}
}

type orderService struct {
	repo       model.OrderRepository
	catalog    model.ProductCatalog
	gateway    payment.Gateway
	policy     pricing.Policy
	dispatcher domain.EventDispatcher
}

func (s *orderService) Create(ctx context.Context, ownerID uuid.UUID, lines []model.CartLine, shippingAddress, paymentMethod string, claimed *model.ClaimedTotals) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, model.ErrEmptyCart
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, model.ErrInvalidQuantity
		}
		product, err := s.catalog.FindProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if line.Quantity > product.CountInStock {
			return nil, model.ErrOutOfStock
		}
		items = append(items, model.OrderItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       line.Quantity,
			Image:          product.Image,
		})
	}

	amounts := s.policy.Quote(priceItems(items))
	if claimed != nil {
		if claimed.ItemsCents != amounts.ItemsCents ||
			claimed.ShippingCents != amounts.ShippingCents ||
			claimed.TaxCents != amounts.TaxCents ||
			claimed.TotalCents != amounts.TotalCents {
			return nil, model.ErrPriceMismatch
		}
	}

	orderID, err := s.repo.NextID()
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:                 orderID,
		OwnerID:            ownerID,
		Items:              items,
		ShippingAddress:    shippingAddress,
		PaymentMethod:      paymentMethod,
		ItemsPriceCents:    amounts.ItemsCents,
		ShippingPriceCents: amounts.ShippingCents,
		TaxPriceCents:      amounts.TaxCents,
		TotalPriceCents:    amounts.TotalCents,
		CreatedAt:          time.Now().UTC(),
		Version:            1,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	_ = s.dispatcher.Dispatch(model.OrderCreated{OrderID: orderID, OwnerID: ownerID, TotalCents: order.TotalPriceCents})
	return order, nil
}

func (s *orderService) Pay(ctx context.Context, orderID uuid.UUID, rawConfirmation []byte) (*model.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}

	submitted, err := payment.Normalize(rawConfirmation)
	if err != nil {
		return nil, err
	}

	if order.IsPaid {
		if order.PaymentResult != nil && order.PaymentResult.ExternalID == submitted.ExternalID {
			// Idempotent retry of the same confirmation.
			return order, nil
		}
		return nil, model.ErrAlreadyPaid
	}

	// A confirmation id already credited to another order must not pay this one.
	if other, err := s.repo.FindByPaymentExternalID(ctx, submitted.ExternalID); err == nil && other.ID != order.ID {
		return nil, model.ErrAlreadyPaid
	} else if err != nil && !errors.Is(err, model.ErrOrderNotFound) {
		return nil, err
	}

	confirmed, err := s.gateway.Confirm(ctx, submitted)
	if err != nil {
		return nil, err
	}
	if err := payment.Verify(confirmed, order.TotalPriceCents); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = &model.PaymentResult{
		ExternalID:   confirmed.ExternalID,
		Status:       confirmed.Status,
		SettledAt:    confirmed.SettledAt,
		PayerContact: confirmed.PayerContact,
	}

	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	_ = s.dispatcher.Dispatch(model.OrderPaid{OrderID: order.ID, ExternalID: confirmed.ExternalID, TotalCents: order.TotalPriceCents})
	return order, nil
}

func (s *orderService) Deliver(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid {
		return nil, model.ErrNotPaid
	}
	if order.IsDelivered {
		return order, nil
	}

	now := time.Now().UTC()
	order.IsDelivered = true
	order.DeliveredAt = &now

	if err := s.updateOrder(ctx, order); err != nil {
		return nil, err
	}

	_ = s.dispatcher.Dispatch(model.OrderDelivered{OrderID: order.ID})
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	return s.repo.Find(ctx, orderID)
}

func (s *orderService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Order, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

func (s *orderService) ListAll(ctx context.Context) ([]*model.Order, error) {
	return s.repo.FindAll(ctx)
}

func (s *orderService) CountOrders(ctx context.Context) (int, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(orders), nil
}

func (s *orderService) TotalSales(ctx context.Context) (int64, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, order := range orders {
		if order.IsPaid {
			total += order.TotalPriceCents
		}
	}
	return total, nil
}

// TotalSalesByDate buckets paid orders by the day they were placed, matching
// the "orders placed per day" report rather than the day payment settled.
func (s *orderService) TotalSalesByDate(ctx context.Context) ([]model.DailySales, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]int64)
	for _, order := range orders {
		if order.IsPaid {
			byDate[order.CreatedAt.Format("2006-01-02")] += order.TotalPriceCents
		}
	}

	sales := make([]model.DailySales, 0, len(byDate))
	for date, total := range byDate {
		sales = append(sales, model.DailySales{Date: date, TotalCents: total})
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].Date < sales[j].Date })
	return sales, nil
}

func (s *orderService) updateOrder(ctx context.Context, order *model.Order) error {
	order.Version++
	return s.repo.Update(ctx, order)
}

func priceItems(items []model.OrderItem) []pricing.Item {
	priced := make([]pricing.Item, len(items))
	for i, item := range items {
		priced[i] = pricing.Item{UnitPriceCents: item.UnitPriceCents, Quantity: item.Quantity}
	}
	return priced
}
