package mysql

import (
	"context"
	"database/sql"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/review/domain/model"
)

const mysqlErrDuplicateEntry = 1062

func NewRatingRepository(db *sqlx.DB) model.RatingRepository {
	return &ratingRepository{db: db}
}

type ratingRepository struct {
	db *sqlx.DB
}

type aggregateRow struct {
	ProductID  string  `db:"id"`
	Rating     float64 `db:"rating"`
	NumReviews int     `db:"num_reviews"`
	Version    int     `db:"rating_version"`
}

type reviewRow struct {
	ProductID   string    `db:"product_id"`
	ReviewerID  string    `db:"reviewer_id"`
	DisplayName string    `db:"display_name"`
	Rating      int       `db:"rating"`
	Comment     string    `db:"comment"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *ratingRepository) Get(ctx context.Context, productID uuid.UUID) (*model.RatingAggregate, error) {
	var row aggregateRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, rating, num_reviews, rating_version FROM products WHERE id = ?`, productID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "select rating aggregate")
	}

	var reviews []reviewRow
	err = r.db.SelectContext(ctx, &reviews,
		`SELECT product_id, reviewer_id, display_name, rating, comment, created_at
		 FROM product_reviews WHERE product_id = ? ORDER BY created_at, reviewer_id`, productID.String())
	if err != nil {
		return nil, errors.Wrap(err, "select reviews")
	}

	aggregate := &model.RatingAggregate{
		ProductID:  productID,
		Rating:     row.Rating,
		NumReviews: row.NumReviews,
		Version:    row.Version,
		Reviews:    make([]model.Review, 0, len(reviews)),
	}
	for _, review := range reviews {
		reviewerID, err := uuid.Parse(review.ReviewerID)
		if err != nil {
			return nil, errors.Wrap(err, "parse reviewer id")
		}
		aggregate.Reviews = append(aggregate.Reviews, model.Review{
			ReviewerID:  reviewerID,
			DisplayName: review.DisplayName,
			Rating:      review.Rating,
			Comment:     review.Comment,
			CreatedAt:   review.CreatedAt,
		})
	}
	return aggregate, nil
}

func (r *ratingRepository) Update(ctx context.Context, aggregate *model.RatingAggregate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin rating update tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET rating = ?, num_reviews = ?, rating_version = ?
		 WHERE id = ? AND rating_version = ?`,
		aggregate.Rating, aggregate.NumReviews, aggregate.Version,
		aggregate.ProductID.String(), aggregate.Version-1)
	if err != nil {
		return errors.Wrap(err, "update rating aggregate")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update rating rows affected")
	}
	if affected == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT 1 FROM products WHERE id = ?`, aggregate.ProductID.String()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrProductNotFound
			}
			return errors.Wrap(err, "check product exists")
		}
		return model.ErrOptimisticLock
	}

	// The review list is written as a whole: the aggregate boundary is the
	// full collection, matching how the derived fields are recomputed.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM product_reviews WHERE product_id = ?`, aggregate.ProductID.String()); err != nil {
		return errors.Wrap(err, "clear reviews")
	}
	for _, review := range aggregate.Reviews {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO product_reviews (product_id, reviewer_id, display_name, rating, comment, created_at)
			VALUES (:product_id, :reviewer_id, :display_name, :rating, :comment, :created_at)`,
			reviewRow{
				ProductID:   aggregate.ProductID.String(),
				ReviewerID:  review.ReviewerID.String(),
				DisplayName: review.DisplayName,
				Rating:      review.Rating,
				Comment:     review.Comment,
				CreatedAt:   review.CreatedAt,
			})
		if err != nil {
			var mysqlErr *driver.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
				return model.ErrAlreadyReviewed
			}
			return errors.Wrap(err, "insert review")
		}
	}

	return errors.Wrap(tx.Commit(), "commit rating update tx")
}
