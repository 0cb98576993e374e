package repository

import (
	"context"
	"coupon-system/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCouponRepository defines the interface for user coupon data operations
type UserCouponRepository interface {
	// Create creates a new user coupon record.
	// Returns apperrors.ErrAlreadyAssignedToUser on a (code, user) duplicate
	Create(ctx context.Context, userCoupon *model.UserCoupon) error

	// CountByUserAndBook counts the coupons a user holds from a book
	CountByUserAndBook(ctx context.Context, userID string, bookID primitive.ObjectID) (int64, error)

	// FindByCodeAndUser retrieves the binding of code to user
	FindByCodeAndUser(ctx context.Context, code, userID string) (*model.UserCoupon, error)

	// FindByUser lists a user's coupons, most recently assigned first
	FindByUser(ctx context.Context, userID string) ([]*model.UserCoupon, error)

	// AppendRedemption pushes a redemption onto the record
	AppendRedemption(ctx context.Context, id primitive.ObjectID, redemption model.Redemption, now time.Time) error
}
