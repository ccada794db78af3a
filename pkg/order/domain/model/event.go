package model

import "github.com/google/uuid"

type OrderCreated struct {
	OrderID    uuid.UUID
	OwnerID    uuid.UUID
	TotalCents int64
}

func (e OrderCreated) Type() string { return "OrderCreated" }

type OrderPaid struct {
	OrderID    uuid.UUID
	ExternalID string
	TotalCents int64
}

func (e OrderPaid) Type() string { return "OrderPaid" }

type OrderDelivered struct {
	OrderID uuid.UUID
}

func (e OrderDelivered) Type() string { return "OrderDelivered" }
