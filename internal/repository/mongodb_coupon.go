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
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodbCouponRepository implements CouponRepository using MongoDB
type mongodbCouponRepository struct {
	collection *mongo.Collection
}

// NewCouponRepository creates a new MongoDB-based coupon repository
func NewCouponRepository(db *mongo.Database) CouponRepository {
	return &mongodbCouponRepository{
		collection: db.Collection(CouponsCollection),
	}
}

func (r *mongodbCouponRepository) InsertMany(ctx context.Context, coupons []*model.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	docs := make([]interface{}, len(coupons))
	for i, c := range coupons {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		docs[i] = c
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrDuplicateCode
		}
		return errors.Wrap(err, "insert coupons")
	}
	return nil
}

func (r *mongodbCouponRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Coupon, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByCode retrieves a coupon by its code
func (r *mongodbCouponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongodbCouponRepository) findOne(ctx context.Context, filter bson.M) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.collection.FindOne(ctx, filter).Decode(&coupon)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return &coupon, nil
}

func (r *mongodbCouponRepository) CountUnassigned(ctx context.Context, bookID primitive.ObjectID) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"coupon_book_id": bookID, "is_assigned": false})
	if err != nil {
		return 0, errors.Wrap(err, "count unassigned coupons")
	}
	return n, nil
}

func (r *mongodbCouponRepository) CountByBook(ctx context.Context, bookID primitive.ObjectID) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"coupon_book_id": bookID})
	if err != nil {
		return 0, errors.Wrap(err, "count coupons")
	}
	return n, nil
}

// FindUnassignedAt skips offset unassigned coupons in _id order.
// Served by the (coupon_book_id, is_assigned) index.
func (r *mongodbCouponRepository) FindUnassignedAt(ctx context.Context, bookID primitive.ObjectID, offset int64) (*model.Coupon, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(offset)

	var coupon model.Coupon
	err := r.collection.FindOne(ctx, bson.M{"coupon_book_id": bookID, "is_assigned": false}, opts).Decode(&coupon)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find unassigned coupon")
	}
	return &coupon, nil
}

// MarkAssigned atomically claims the coupon. Only update if still unassigned
func (r *mongodbCouponRepository) MarkAssigned(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "is_assigned": false},
		bson.M{"$set": bson.M{"is_assigned": true, "updated_at": now}},
	)
	if err != nil {
		return false, errors.Wrap(err, "mark coupon assigned")
	}
	return res.MatchedCount == 1, nil
}

func (r *mongodbCouponRepository) SetLockedUntil(ctx context.Context, id primitive.ObjectID, lockedUntil *time.Time, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"locked_until": lockedUntil, "updated_at": now}},
	)
	if err != nil {
		return errors.Wrap(err, "set coupon lock")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrCouponNotFound
	}
	return nil
}

func (r *mongodbCouponRepository) MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"redemption_count": 1},
			"$set": bson.M{"is_redeemed": true, "locked_until": nil, "updated_at": now},
		},
	)
	if err != nil {
		return errors.Wrap(err, "mark coupon redeemed")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrCouponNotFound
	}
	return nil
}
