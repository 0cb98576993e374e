package repository

import (
	"context"
	"coupon-system/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponBookRepository defines the interface for coupon book data operations.
// Every read ignores soft-deleted books unless stated otherwise.
type CouponBookRepository interface {
	// Create stores a new coupon book
	Create(ctx context.Context, book *model.CouponBook) error

	// FindByID retrieves a live coupon book.
	// Returns apperrors.ErrBookNotFound when missing or soft deleted
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.CouponBook, error)

	// IncrementTotalCodes atomically adds n to total_codes
	IncrementTotalCodes(ctx context.Context, id primitive.ObjectID, n int64, now time.Time) error

	// SoftDelete marks a live book as deleted
	SoftDelete(ctx context.Context, id primitive.ObjectID, now time.Time) error

	// Restore clears the deleted marker of a soft-deleted book
	Restore(ctx context.Context, id primitive.ObjectID, now time.Time) error
}
