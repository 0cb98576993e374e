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

// mongodbCouponBookRepository implements CouponBookRepository using MongoDB
type mongodbCouponBookRepository struct {
	collection *mongo.Collection
}

// NewCouponBookRepository creates a new MongoDB-based coupon book repository
func NewCouponBookRepository(db *mongo.Database) CouponBookRepository {
	return &mongodbCouponBookRepository{
		collection: db.Collection(CouponBooksCollection),
	}
}

// live matches books that have not been soft deleted
func live(filter bson.M) bson.M {
	filter["deleted_at"] = nil
	return filter
}

func (r *mongodbCouponBookRepository) Create(ctx context.Context, book *model.CouponBook) error {
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, book); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrBookAlreadyExists
		}
		return errors.Wrap(err, "insert coupon book")
	}
	return nil
}

func (r *mongodbCouponBookRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.CouponBook, error) {
	var book model.CouponBook
	err := r.collection.FindOne(ctx, live(bson.M{"_id": id})).Decode(&book)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, errors.Wrap(err, "find coupon book")
	}
	return &book, nil
}

// IncrementTotalCodes uses $inc so concurrent batches never lose an update
func (r *mongodbCouponBookRepository) IncrementTotalCodes(ctx context.Context, id primitive.ObjectID, n int64, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		live(bson.M{"_id": id}),
		bson.M{
			"$inc": bson.M{"total_codes": n},
			"$set": bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return errors.Wrap(err, "increment total codes")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

func (r *mongodbCouponBookRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		live(bson.M{"_id": id}),
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return errors.Wrap(err, "soft delete coupon book")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

func (r *mongodbCouponBookRepository) Restore(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$ne": nil}},
		bson.M{
			"$unset": bson.M{"deleted_at": ""},
			"$set":   bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return errors.Wrap(err, "restore coupon book")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}
