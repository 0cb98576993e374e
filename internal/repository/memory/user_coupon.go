package memory

import (
	"context"
	"sort"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userCoupons struct {
	s *Store
}

func userCodeKey(code, userID string) string {
	return code + "\x00" + userID
}

func (r *userCoupons) Create(ctx context.Context, uc *model.UserCoupon) error {
	defer r.s.lock(ctx)()

	key := userCodeKey(uc.Code, uc.UserID)
	if _, exists := r.s.userCodes[key]; exists {
		return apperrors.ErrAlreadyAssignedToUser
	}
	if uc.ID.IsZero() {
		uc.ID = primitive.NewObjectID()
	}
	if uc.Redemptions == nil {
		uc.Redemptions = []model.Redemption{}
	}
	r.s.userCoupons[uc.ID] = *uc
	r.s.userCodes[key] = uc.ID
	return nil
}

func (r *userCoupons) CountByUserAndBook(ctx context.Context, userID string, bookID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, uc := range r.s.userCoupons {
		if uc.UserID == userID && uc.CouponBookID == bookID {
			n++
		}
	}
	return n, nil
}

func (r *userCoupons) FindByCodeAndUser(ctx context.Context, code, userID string) (*model.UserCoupon, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.userCodes[userCodeKey(code, userID)]
	if !ok {
		return nil, apperrors.ErrUserCouponNotFound
	}
	uc := r.s.userCoupons[id]
	return &uc, nil
}

func (r *userCoupons) FindByUser(ctx context.Context, userID string) ([]*model.UserCoupon, error) {
	defer r.s.lock(ctx)()

	result := make([]*model.UserCoupon, 0)
	for _, uc := range r.s.userCoupons {
		if uc.UserID == userID {
			uc := uc
			result = append(result, &uc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssignedAt.After(result[j].AssignedAt)
	})
	return result, nil
}

func (r *userCoupons) AppendRedemption(ctx context.Context, id primitive.ObjectID, redemption model.Redemption, now time.Time) error {
	defer r.s.lock(ctx)()

	uc, ok := r.s.userCoupons[id]
	if !ok {
		return apperrors.ErrUserCouponNotFound
	}
	redemptions := make([]model.Redemption, 0, len(uc.Redemptions)+1)
	redemptions = append(redemptions, uc.Redemptions...)
	uc.Redemptions = append(redemptions, redemption)
	uc.UpdatedAt = now
	r.s.userCoupons[id] = uc
	return nil
}
