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

// mongodbUserCouponRepository implements UserCouponRepository using MongoDB
type mongodbUserCouponRepository struct {
	collection *mongo.Collection
}

// NewUserCouponRepository creates a new MongoDB-based user coupon repository
func NewUserCouponRepository(db *mongo.Database) UserCouponRepository {
	return &mongodbUserCouponRepository{
		collection: db.Collection(UserCouponsCollection),
	}
}

// Create creates a new user coupon record
// The unique (code, user_id) index rejects a second binding of the same pair
func (r *mongodbUserCouponRepository) Create(ctx context.Context, userCoupon *model.UserCoupon) error {
	if userCoupon.ID.IsZero() {
		userCoupon.ID = primitive.NewObjectID()
	}
	if userCoupon.Redemptions == nil {
		userCoupon.Redemptions = []model.Redemption{}
	}
	if _, err := r.collection.InsertOne(ctx, userCoupon); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrAlreadyAssignedToUser
		}
		return errors.Wrap(err, "insert user coupon")
	}
	return nil
}

func (r *mongodbUserCouponRepository) CountByUserAndBook(ctx context.Context, userID string, bookID primitive.ObjectID) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID, "coupon_book_id": bookID})
	if err != nil {
		return 0, errors.Wrap(err, "count user coupons")
	}
	return n, nil
}

func (r *mongodbUserCouponRepository) FindByCodeAndUser(ctx context.Context, code, userID string) (*model.UserCoupon, error) {
	var uc model.UserCoupon
	err := r.collection.FindOne(ctx, bson.M{"code": code, "user_id": userID}).Decode(&uc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrUserCouponNotFound
		}
		return nil, errors.Wrap(err, "find user coupon")
	}
	return &uc, nil
}

// FindByUser retrieves all coupons held by a user
func (r *mongodbUserCouponRepository) FindByUser(ctx context.Context, userID string) ([]*model.UserCoupon, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find user coupons")
	}
	defer cursor.Close(ctx)

	var userCoupons []*model.UserCoupon
	if err := cursor.All(ctx, &userCoupons); err != nil {
		return nil, errors.Wrap(err, "decode user coupons")
	}
	return userCoupons, nil
}

func (r *mongodbUserCouponRepository) AppendRedemption(ctx context.Context, id primitive.ObjectID, redemption model.Redemption, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"redemptions": redemption},
			"$set":  bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return errors.Wrap(err, "append redemption")
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserCouponNotFound
	}
	return nil
}
