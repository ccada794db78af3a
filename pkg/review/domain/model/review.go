package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAlreadyReviewed = errors.New("product already reviewed by this user")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrOptimisticLock  = errors.New("rating aggregate has been modified by another transaction")
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ReviewerID  uuid.UUID
	DisplayName string
	Rating      int
	Comment     string
	CreatedAt   time.Time
}

// RatingAggregate is the product's review collection together with the two
// derived fields. Rating and NumReviews are always recomputed from the full
// collection, never drifted incrementally.
type RatingAggregate struct {
	ProductID  uuid.UUID
	Reviews    []Review
	Rating     float64
	NumReviews int
	Version    int
}

// Recompute derives Rating and NumReviews from the review collection.
func (a *RatingAggregate) Recompute() {
	a.NumReviews = len(a.Reviews)
	if a.NumReviews == 0 {
		a.Rating = 0
		return
	}
	var sum int
	for _, review := range a.Reviews {
		sum += review.Rating
	}
	a.Rating = float64(sum) / float64(a.NumReviews)
}

type RatingRepository interface {
	Get(ctx context.Context, productID uuid.UUID) (*RatingAggregate, error)
	// Update persists the whole aggregate. The write must compare the stored
	// version against aggregate.Version-1 and return ErrOptimisticLock on
	// mismatch.
	Update(ctx context.Context, aggregate *RatingAggregate) error
}
