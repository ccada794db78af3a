package mysql

import (
	"context"
	"database/sql"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

const mysqlErrDuplicateEntry = 1062

func NewOrderRepository(db *sqlx.DB) model.OrderRepository {
	return &orderRepository{db: db}
}

type orderRepository struct {
	db *sqlx.DB
}

type orderRow struct {
	ID                 string         `db:"id"`
	OwnerID            string         `db:"owner_id"`
	ShippingAddress    string         `db:"shipping_address"`
	PaymentMethod      string         `db:"payment_method"`
	ItemsPriceCents    int64          `db:"items_price_cents"`
	ShippingPriceCents int64          `db:"shipping_price_cents"`
	TaxPriceCents      int64          `db:"tax_price_cents"`
	TotalPriceCents    int64          `db:"total_price_cents"`
	IsPaid             bool           `db:"is_paid"`
	PaidAt             *time.Time     `db:"paid_at"`
	PaymentExternalID  sql.NullString `db:"payment_external_id"`
	PaymentStatus      sql.NullString `db:"payment_status"`
	PaymentSettledAt   *time.Time     `db:"payment_settled_at"`
	PaymentPayer       sql.NullString `db:"payment_payer"`
	IsDelivered        bool           `db:"is_delivered"`
	DeliveredAt        *time.Time     `db:"delivered_at"`
	CreatedAt          time.Time      `db:"created_at"`
	Version            int            `db:"version"`
}

type itemRow struct {
	OrderID        string `db:"order_id"`
	Position       int    `db:"position"`
	ProductID      string `db:"product_id"`
	Name           string `db:"name"`
	UnitPriceCents int64  `db:"unit_price_cents"`
	Quantity       int    `db:"quantity"`
	Image          string `db:"image"`
}

func (r *orderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin create order tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO orders (
			id, owner_id, shipping_address, payment_method,
			items_price_cents, shipping_price_cents, tax_price_cents, total_price_cents,
			is_paid, is_delivered, created_at, version
		) VALUES (
			:id, :owner_id, :shipping_address, :payment_method,
			:items_price_cents, :shipping_price_cents, :tax_price_cents, :total_price_cents,
			:is_paid, :is_delivered, :created_at, :version
		)`, toOrderRow(order))
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	// The snapshot is written once and never updated.
	for i, item := range order.Items {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, unit_price_cents, quantity, image)
			VALUES (:order_id, :position, :product_id, :name, :unit_price_cents, :quantity, :image)`,
			itemRow{
				OrderID:        order.ID.String(),
				Position:       i,
				ProductID:      item.ProductID.String(),
				Name:           item.Name,
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
				Image:          item.Image,
			})
		if err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}

	return errors.Wrap(tx.Commit(), "commit create order tx")
}

func (r *orderRepository) Find(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.findOne(ctx, `SELECT * FROM orders WHERE id = ?`, id.String())
}

func (r *orderRepository) FindByPaymentExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	return r.findOne(ctx, `SELECT * FROM orders WHERE payment_external_id = ?`, externalID)
}

func (r *orderRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "select order")
	}
	return r.hydrate(ctx, &row)
}

func (r *orderRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Order, error) {
	return r.findMany(ctx, `SELECT * FROM orders WHERE owner_id = ? ORDER BY created_at DESC`, ownerID.String())
}

func (r *orderRepository) FindAll(ctx context.Context) ([]*model.Order, error) {
	return r.findMany(ctx, `SELECT * FROM orders ORDER BY created_at DESC`)
}

func (r *orderRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*model.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	orders := make([]*model.Order, 0, len(rows))
	for i := range rows {
		order, err := r.hydrate(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	row := toOrderRow(order)
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE orders SET
			is_paid = :is_paid,
			paid_at = :paid_at,
			payment_external_id = :payment_external_id,
			payment_status = :payment_status,
			payment_settled_at = :payment_settled_at,
			payment_payer = :payment_payer,
			is_delivered = :is_delivered,
			delivered_at = :delivered_at,
			version = :version
		WHERE id = :id AND version = :version - 1`, row)
	if err != nil {
		var mysqlErr *driver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			// Unique index on payment_external_id: this confirmation already
			// credited another order.
			return model.ErrAlreadyPaid
		}
		return errors.Wrap(err, "update order")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update order rows affected")
	}
	if affected == 0 {
		if _, err := r.Find(ctx, order.ID); err != nil {
			return err
		}
		return model.ErrOptimisticLock
	}
	return nil
}

func (r *orderRepository) hydrate(ctx context.Context, row *orderRow) (*model.Order, error) {
	var items []itemRow
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM order_items WHERE order_id = ? ORDER BY position`, row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	return fromRows(row, items)
}

func toOrderRow(order *model.Order) orderRow {
	row := orderRow{
		ID:                 order.ID.String(),
		OwnerID:            order.OwnerID.String(),
		ShippingAddress:    order.ShippingAddress,
		PaymentMethod:      order.PaymentMethod,
		ItemsPriceCents:    order.ItemsPriceCents,
		ShippingPriceCents: order.ShippingPriceCents,
		TaxPriceCents:      order.TaxPriceCents,
		TotalPriceCents:    order.TotalPriceCents,
		IsPaid:             order.IsPaid,
		PaidAt:             order.PaidAt,
		IsDelivered:        order.IsDelivered,
		DeliveredAt:        order.DeliveredAt,
		CreatedAt:          order.CreatedAt,
		Version:            order.Version,
	}
	if order.PaymentResult != nil {
		row.PaymentExternalID = sql.NullString{String: order.PaymentResult.ExternalID, Valid: true}
		row.PaymentStatus = sql.NullString{String: order.PaymentResult.Status, Valid: true}
		settledAt := order.PaymentResult.SettledAt
		row.PaymentSettledAt = &settledAt
		row.PaymentPayer = sql.NullString{String: order.PaymentResult.PayerContact, Valid: true}
	}
	return row
}

func fromRows(row *orderRow, items []itemRow) (*model.Order, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse order id")
	}
	ownerID, err := uuid.Parse(row.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "parse owner id")
	}

	order := &model.Order{
		ID:                 id,
		OwnerID:            ownerID,
		ShippingAddress:    row.ShippingAddress,
		PaymentMethod:      row.PaymentMethod,
		ItemsPriceCents:    row.ItemsPriceCents,
		ShippingPriceCents: row.ShippingPriceCents,
		TaxPriceCents:      row.TaxPriceCents,
		TotalPriceCents:    row.TotalPriceCents,
		IsPaid:             row.IsPaid,
		PaidAt:             row.PaidAt,
		IsDelivered:        row.IsDelivered,
		DeliveredAt:        row.DeliveredAt,
		CreatedAt:          row.CreatedAt,
		Version:            row.Version,
	}
	if row.PaymentExternalID.Valid {
		result := &model.PaymentResult{
			ExternalID:   row.PaymentExternalID.String,
			Status:       row.PaymentStatus.String,
			PayerContact: row.PaymentPayer.String,
		}
		if row.PaymentSettledAt != nil {
			result.SettledAt = *row.PaymentSettledAt
		}
		order.PaymentResult = result
	}

	order.Items = make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "parse item product id")
		}
		order.Items = append(order.Items, model.OrderItem{
			ProductID:      productID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Image:          item.Image,
		})
	}
	return order, nil
}
