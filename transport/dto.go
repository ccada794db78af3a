package transport

import (
	"time"

	ordermodel "storefront/pkg/order/domain/model"
	"storefront/pkg/pricing"
)

// Monetary fields cross the wire as 2-decimal dollar amounts; cents are an
// internal representation only.

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image"`
}

type paymentResultResponse struct {
	ExternalID   string    `json:"externalId"`
	Status       string    `json:"status"`
	SettledAt    time.Time `json:"settledAt"`
	PayerContact string    `json:"payerContact"`
}

type orderResponse struct {
	ID              string                 `json:"id"`
	OwnerID         string                 `json:"ownerId"`
	Items           []orderItemResponse    `json:"items"`
	ShippingAddress string                 `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ItemsPrice      float64                `json:"itemsPrice"`
	ShippingPrice   float64                `json:"shippingPrice"`
	TaxPrice        float64                `json:"taxPrice"`
	TotalPrice      float64                `json:"totalPrice"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          *time.Time             `json:"paidAt,omitempty"`
	PaymentResult   *paymentResultResponse `json:"paymentResult,omitempty"`
	IsDelivered     bool                   `json:"isDelivered"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	Version         int                    `json:"version"`
}

func orderResponseFrom(order *ordermodel.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			UnitPrice: pricing.Dollars(item.UnitPriceCents),
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}

	response := orderResponse{
		ID:              order.ID.String(),
		OwnerID:         order.OwnerID.String(),
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		ItemsPrice:      pricing.Dollars(order.ItemsPriceCents),
		ShippingPrice:   pricing.Dollars(order.ShippingPriceCents),
		TaxPrice:        pricing.Dollars(order.TaxPriceCents),
		TotalPrice:      pricing.Dollars(order.TotalPriceCents),
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
		Version:         order.Version,
	}
	if order.PaymentResult != nil {
		response.PaymentResult = &paymentResultResponse{
			ExternalID:   order.PaymentResult.ExternalID,
			Status:       order.PaymentResult.Status,
			SettledAt:    order.PaymentResult.SettledAt,
			PayerContact: order.PaymentResult.PayerContact,
		}
	}
	return response
}

func ordersResponseFrom(orders []*ordermodel.Order) []orderResponse {
	response := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, orderResponseFrom(order))
	}
	return response
}
