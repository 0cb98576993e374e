package repository

import (
	"context"
	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongodbGenerationJobRepository struct {
	collection *mongo.Collection
}

// NewGenerationJobRepository creates a new MongoDB-based generation job repository
func NewGenerationJobRepository(db *mongo.Database) GenerationJobRepository {
	return &mongodbGenerationJobRepository{
		collection: db.Collection(GenerationJobsCollection),
	}
}

func (r *mongodbGenerationJobRepository) Create(ctx context.Context, job *model.GenerationJob) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, job); err != nil {
		return errors.Wrap(err, "insert generation job")
	}
	return nil
}

func (r *mongodbGenerationJobRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, errors.Wrap(err, "find generation job")
	}
	return &job, nil
}

func (r *mongodbGenerationJobRepository) AdvanceProgress(ctx context.Context, id primitive.ObjectID, from, n int, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "generated": from, "quantity": bson.M{"$gte": from + n}},
		bson.M{
			"$inc": bson.M{"generated": n},
			"$set": bson.M{"status": model.JobRunning, "updated_at": now},
		},
	)
	if err != nil {
		return errors.Wrap(err, "advance generation job")
	}
	if res.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return errors.Wrap(err, "find generation job")
		}
		if count == 0 {
			return apperrors.ErrJobNotFound
		}
		return apperrors.ErrJobProgressConflict
	}
	return nil
}

func (r *mongodbGenerationJobRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status model.JobStatus, errMsg string, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "error": errMsg, "updated_at": now}},
	)
	if err != nil {
		return errors.Wrap(err, "set generation job status")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrJobNotFound
	}
	return nil
}
