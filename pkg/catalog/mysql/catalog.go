package mysql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

// NewProductCatalog returns the read-side catalog view used at checkout.
// Catalog writes belong to the (external) catalog service, not this core.
func NewProductCatalog(db *sqlx.DB) model.ProductCatalog {
	return &productCatalog{db: db}
}

type productCatalog struct {
	db *sqlx.DB
}

type productRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Image        string `db:"image"`
	PriceCents   int64  `db:"price_cents"`
	CountInStock int    `db:"count_in_stock"`
}

func (c *productCatalog) FindProduct(ctx context.Context, id uuid.UUID) (*model.CatalogProduct, error) {
	var row productRow
	err := c.db.GetContext(ctx, &row,
		`SELECT id, name, image, price_cents, count_in_stock FROM products WHERE id = ?`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "select product")
	}

	productID, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse product id")
	}
	return &model.CatalogProduct{
		ID:           productID,
		Name:         row.Name,
		Image:        row.Image,
		PriceCents:   row.PriceCents,
		CountInStock: row.CountInStock,
	}, nil
}
