package repository

import (
	"context"
	"coupon-system/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerationJobRepository persists background generation progress
type GenerationJobRepository interface {
	// Create stores a new job
	Create(ctx context.Context, job *model.GenerationJob) error

	// FindByID retrieves a job; returns apperrors.ErrJobNotFound when missing
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.GenerationJob, error)

	// AdvanceProgress moves generated from `from` to from+n and marks the job running.
	// Returns apperrors.ErrJobProgressConflict when generated is no longer `from`
	// or the move would pass the job's quantity
	AdvanceProgress(ctx context.Context, id primitive.ObjectID, from, n int, now time.Time) error

	// SetStatus records a terminal or intermediate status
	SetStatus(ctx context.Context, id primitive.ObjectID, status model.JobStatus, errMsg string, now time.Time) error
}
