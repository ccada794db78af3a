package model

import "github.com/google/uuid"

type ReviewAdded struct {
	ProductID  uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	NewAverage float64
	NumReviews int
}

func (e ReviewAdded) Type() string { return "ReviewAdded" }
