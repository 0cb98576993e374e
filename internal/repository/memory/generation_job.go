package memory

import (
	"context"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type jobs struct {
	s *Store
}

func (r *jobs) Create(ctx context.Context, job *model.GenerationJob) error {
	defer r.s.lock(ctx)()

	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	r.s.jobs[job.ID] = *job
	return nil
}

func (r *jobs) FindByID(ctx context.Context, id primitive.ObjectID) (*model.GenerationJob, error) {
	defer r.s.lock(ctx)()

	j, ok := r.s.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	return &j, nil
}

func (r *jobs) AdvanceProgress(ctx context.Context, id primitive.ObjectID, from, n int, now time.Time) error {
	defer r.s.lock(ctx)()

	j, ok := r.s.jobs[id]
	if !ok {
		return apperrors.ErrJobNotFound
	}
	if j.Generated != from || from+n > j.Quantity {
		return apperrors.ErrJobProgressConflict
	}
	j.Generated += n
	j.Status = model.JobRunning
	j.UpdatedAt = now
	r.s.jobs[id] = j
	return nil
}

func (r *jobs) SetStatus(ctx context.Context, id primitive.ObjectID, status model.JobStatus, errMsg string, now time.Time) error {
	defer r.s.lock(ctx)()

	j, ok := r.s.jobs[id]
	if !ok {
		return apperrors.ErrJobNotFound
	}
	j.Status = status
	j.Error = errMsg
	j.UpdatedAt = now
	r.s.jobs[id] = j
	return nil
}
