package memory

import (
	"context"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type couponBooks struct {
	s *Store
}

func (r *couponBooks) Create(ctx context.Context, book *model.CouponBook) error {
	defer r.s.lock(ctx)()

	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	if _, exists := r.s.books[book.ID]; exists {
		return apperrors.ErrBookAlreadyExists
	}
	r.s.books[book.ID] = *book
	return nil
}

func (r *couponBooks) FindByID(ctx context.Context, id primitive.ObjectID) (*model.CouponBook, error) {
	defer r.s.lock(ctx)()

	b, ok := r.s.books[id]
	if !ok || b.IsDeleted() {
		return nil, apperrors.ErrBookNotFound
	}
	return &b, nil
}

func (r *couponBooks) IncrementTotalCodes(ctx context.Context, id primitive.ObjectID, n int64, now time.Time) error {
	defer r.s.lock(ctx)()

	b, ok := r.s.books[id]
	if !ok || b.IsDeleted() {
		return apperrors.ErrBookNotFound
	}
	b.TotalCodes += n
	b.UpdatedAt = now
	r.s.books[id] = b
	return nil
}

func (r *couponBooks) SoftDelete(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	defer r.s.lock(ctx)()

	b, ok := r.s.books[id]
	if !ok || b.IsDeleted() {
		return apperrors.ErrBookNotFound
	}
	deletedAt := now
	b.DeletedAt = &deletedAt
	b.UpdatedAt = now
	r.s.books[id] = b
	return nil
}

func (r *couponBooks) Restore(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	defer r.s.lock(ctx)()

	b, ok := r.s.books[id]
	if !ok || !b.IsDeleted() {
		return apperrors.ErrBookNotFound
	}
	b.DeletedAt = nil
	b.UpdatedAt = now
	r.s.books[id] = b
	return nil
}
