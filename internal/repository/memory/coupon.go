package memory

import (
	"context"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type coupons struct {
	s *Store
}

// InsertMany is all-or-nothing, like an ordered insert inside a transaction
func (r *coupons) InsertMany(ctx context.Context, batch []*model.Coupon) error {
	defer r.s.lock(ctx)()

	seen := make(map[string]struct{}, len(batch))
	for _, c := range batch {
		if _, exists := r.s.codes[c.Code]; exists {
			return apperrors.ErrDuplicateCode
		}
		if _, dup := seen[c.Code]; dup {
			return apperrors.ErrDuplicateCode
		}
		seen[c.Code] = struct{}{}
	}

	for _, c := range batch {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		r.s.coupons[c.ID] = *c
		r.s.codes[c.Code] = c.ID
		r.s.couponOrder = append(r.s.couponOrder, c.ID)
	}
	return nil
}

func (r *coupons) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Coupon, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok {
		return nil, apperrors.ErrCouponNotFound
	}
	return &c, nil
}

func (r *coupons) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.codes[code]
	if !ok {
		return nil, apperrors.ErrCouponNotFound
	}
	c := r.s.coupons[id]
	return &c, nil
}

func (r *coupons) CountUnassigned(ctx context.Context, bookID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, id := range r.s.couponOrder {
		if c := r.s.coupons[id]; c.CouponBookID == bookID && !c.IsAssigned {
			n++
		}
	}
	return n, nil
}

func (r *coupons) CountByBook(ctx context.Context, bookID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, id := range r.s.couponOrder {
		if r.s.coupons[id].CouponBookID == bookID {
			n++
		}
	}
	return n, nil
}

func (r *coupons) FindUnassignedAt(ctx context.Context, bookID primitive.ObjectID, offset int64) (*model.Coupon, error) {
	defer r.s.lock(ctx)()

	var i int64
	for _, id := range r.s.couponOrder {
		c := r.s.coupons[id]
		if c.CouponBookID != bookID || c.IsAssigned {
			continue
		}
		if i == offset {
			return &c, nil
		}
		i++
	}
	return nil, nil
}

func (r *coupons) MarkAssigned(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok || c.IsAssigned {
		return false, nil
	}
	c.IsAssigned = true
	c.UpdatedAt = now
	r.s.coupons[id] = c
	return true, nil
}

func (r *coupons) SetLockedUntil(ctx context.Context, id primitive.ObjectID, lockedUntil *time.Time, now time.Time) error {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok {
		return apperrors.ErrCouponNotFound
	}
	if lockedUntil != nil {
		t := *lockedUntil
		lockedUntil = &t
	}
	c.LockedUntil = lockedUntil
	c.UpdatedAt = now
	r.s.coupons[id] = c
	return nil
}

func (r *coupons) MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	defer r.s.lock(ctx)()

	c, ok := r.s.coupons[id]
	if !ok {
		return apperrors.ErrCouponNotFound
	}
	c.RedemptionCount++
	c.IsRedeemed = true
	c.LockedUntil = nil
	c.UpdatedAt = now
	r.s.coupons[id] = c
	return nil
}
