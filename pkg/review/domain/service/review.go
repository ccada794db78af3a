package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/common/domain"
	"storefront/pkg/review/domain/model"
)

// maxConflictRetries bounds how often a lost race on one product's aggregate
// is replayed from a fresh read before the conflict surfaces to the caller.
const maxConflictRetries = 3

type ReviewService interface {
	AddReview(ctx context.Context, productID, reviewerID uuid.UUID, displayName string, rating int, comment string) (*model.RatingAggregate, error)
	GetRating(ctx context.Context, productID uuid.UUID) (*model.RatingAggregate, error)
}

func NewReviewService(repo model.RatingRepository, dispatcher domain.EventDispatcher) ReviewService {
	return &reviewService{repo: repo, dispatcher: dispatcher}
}

type reviewService struct {
	repo       model.RatingRepository
	dispatcher domain.EventDispatcher
}

func (s *reviewService) AddReview(ctx context.Context, productID, reviewerID uuid.UUID, displayName string, rating int, comment string) (*model.RatingAggregate, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, model.ErrInvalidRating
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		aggregate, err := s.repo.Get(ctx, productID)
		if err != nil {
			return nil, err
		}

		for _, existing := range aggregate.Reviews {
			if existing.ReviewerID == reviewerID {
				return nil, model.ErrAlreadyReviewed
			}
		}

		aggregate.Reviews = append(aggregate.Reviews, model.Review{
			ReviewerID:  reviewerID,
			DisplayName: displayName,
			Rating:      rating,
			Comment:     comment,
			CreatedAt:   time.Now().UTC(),
		})
		aggregate.Recompute()
		aggregate.Version++

		err = s.repo.Update(ctx, aggregate)
		if errors.Is(err, model.ErrOptimisticLock) {
			// Another review landed first; re-read and re-append.
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		_ = s.dispatcher.Dispatch(model.ReviewAdded{
			ProductID:  productID,
			ReviewerID: reviewerID,
			Rating:     rating,
			NewAverage: aggregate.Rating,
			NumReviews: aggregate.NumReviews,
		})
		return aggregate, nil
	}
	return nil, lastErr
}

func (s *reviewService) GetRating(ctx context.Context, productID uuid.UUID) (*model.RatingAggregate, error) {
	return s.repo.Get(ctx, productID)
}
