package repository

import (
	"context"
	"coupon-system/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponRepository defines the interface for coupon data operations
type CouponRepository interface {
	// InsertMany inserts coupons in one batch.
	// Returns apperrors.ErrDuplicateCode if any code already exists
	InsertMany(ctx context.Context, coupons []*model.Coupon) error

	// FindByID retrieves a coupon by its identity
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Coupon, error)

	// FindByCode retrieves a coupon by its code
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)

	// CountUnassigned counts coupons of a book that are not yet assigned
	CountUnassigned(ctx context.Context, bookID primitive.ObjectID) (int64, error)

	// FindUnassignedAt returns the unassigned coupon at offset in identity order,
	// or nil when the offset is past the end
	FindUnassignedAt(ctx context.Context, bookID primitive.ObjectID, offset int64) (*model.Coupon, error)

	// CountByBook counts all coupons of a book
	CountByBook(ctx context.Context, bookID primitive.ObjectID) (int64, error)

	// MarkAssigned flips is_assigned only if it is still false.
	// Returns false when another transaction claimed the coupon first
	MarkAssigned(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)

	// SetLockedUntil stamps (or clears, with nil) the advisory lock mirror
	SetLockedUntil(ctx context.Context, id primitive.ObjectID, lockedUntil *time.Time, now time.Time) error

	// MarkRedeemed increments redemption_count, sets is_redeemed and clears locked_until
	MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error
}
