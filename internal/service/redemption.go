package service

import (
	"context"
	"time"

	"coupon-system/internal/metrics"
	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// LockStore holds holder-tagged locks with a TTL
type LockStore interface {
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key, value string) (bool, error)
}

// LockKey is the lock store key guarding redemption of code
func LockKey(code string) string {
	return "coupon:lock:" + code
}

// RedemptionCoordinator runs the lock-then-redeem protocol.
// The lock store decides who may redeem; Coupon.LockedUntil mirrors it in the
// document store. Locks are released only after the store transaction commits.
type RedemptionCoordinator struct {
	stores Stores
	ledger *Ledger
	locks  LockStore
	log    zerolog.Logger
	now    func() time.Time
}

func NewRedemptionCoordinator(stores Stores, ledger *Ledger, locks LockStore, log zerolog.Logger) *RedemptionCoordinator {
	return &RedemptionCoordinator{
		stores: stores,
		ledger: ledger,
		locks:  locks,
		log:    log.With().Str("component", "redemption").Logger(),
		now:    time.Now,
	}
}

// Lock acquires the redemption lock on code for userID for ttl and validates
// that the user may redeem. The lock is released again if anything fails.
func (r *RedemptionCoordinator) Lock(ctx context.Context, code, userID string, ttl time.Duration) (res *model.LockResult, err error) {
	ctx, done := startOp(ctx, "redemption.lock",
		attribute.String("user_id", userID),
		attribute.String("code", code))
	defer func() { done(err) }()

	if ttl <= 0 {
		return nil, apperrors.ErrInvalidLockTTL
	}

	key := LockKey(code)
	acquired, err := r.locks.Acquire(ctx, key, userID, ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		metrics.LockContention.Inc()
		return nil, apperrors.ErrAlreadyLocked
	}

	err = r.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		uc, err := r.stores.UserCoupons.FindByCodeAndUser(ctx, code, userID)
		if err != nil {
			return err
		}
		book, err := r.stores.Books.FindByID(ctx, uc.CouponBookID)
		if err != nil {
			return err
		}
		now := r.now()
		if err := ValidateForRedemption(book, now, len(uc.Redemptions)); err != nil {
			return err
		}

		lockedUntil := now.Add(ttl)
		if err := r.stores.Coupons.SetLockedUntil(ctx, uc.CouponID, &lockedUntil, now); err != nil {
			return err
		}

		tx, err := r.ledger.Record(ctx, &model.Transaction{
			UserID:       userID,
			CouponID:     uc.CouponID,
			CouponBookID: uc.CouponBookID,
			Code:         code,
			Action:       model.ActionLock,
			Status:       model.StatusSuccess,
			Metadata: map[string]interface{}{
				"lockedUntil": lockedUntil,
				"ttlSeconds":  int64(ttl / time.Second),
			},
		})
		if err != nil {
			return err
		}

		res = &model.LockResult{
			Code:          code,
			UserID:        userID,
			LockedUntil:   lockedUntil,
			TransactionID: tx.ID,
		}
		return nil
	})
	if err != nil {
		r.release(ctx, key, userID)
		return nil, err
	}

	r.log.Info().Str("user_id", userID).Str("code", code).Time("locked_until", res.LockedUntil).Msg("coupon locked")
	return res, nil
}

// Redeem consumes one redemption of code for userID. The caller must hold an
// unexpired lock on the code.
func (r *RedemptionCoordinator) Redeem(ctx context.Context, code, userID string) (res *model.RedeemResult, err error) {
	ctx, done := startOp(ctx, "redemption.redeem",
		attribute.String("user_id", userID),
		attribute.String("code", code))
	defer func() { done(err) }()

	key := LockKey(code)
	err = r.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		uc, err := r.stores.UserCoupons.FindByCodeAndUser(ctx, code, userID)
		if err != nil {
			return err
		}
		coupon, err := r.stores.Coupons.FindByID(ctx, uc.CouponID)
		if err != nil {
			return err
		}
		book, err := r.stores.Books.FindByID(ctx, uc.CouponBookID)
		if err != nil {
			return err
		}

		now := r.now()
		if err := ValidateBookForRedemption(book, now); err != nil {
			return err
		}
		if !coupon.IsLocked(now) {
			return apperrors.ErrNotLockedForRedeem
		}
		// the coupon is still marked locked, so a missing key counts as held elsewhere
		holder, held, err := r.locks.Get(ctx, key)
		if err != nil {
			return err
		}
		if !held || holder != userID {
			return apperrors.ErrLockedByAnother
		}
		if err := CheckRedemptionCap(book, len(uc.Redemptions)); err != nil {
			return err
		}

		tx, err := r.ledger.Record(ctx, &model.Transaction{
			UserID:       userID,
			CouponID:     uc.CouponID,
			CouponBookID: uc.CouponBookID,
			Code:         code,
			Action:       model.ActionRedeem,
			Status:       model.StatusSuccess,
		})
		if err != nil {
			return err
		}
		if err := r.stores.Coupons.MarkRedeemed(ctx, coupon.ID, now); err != nil {
			return err
		}
		redemption := model.Redemption{RedeemedAt: now, TransactionID: tx.ID}
		if err := r.stores.UserCoupons.AppendRedemption(ctx, uc.ID, redemption, now); err != nil {
			return err
		}

		res = &model.RedeemResult{
			Code:                 code,
			UserID:               userID,
			RedeemedAt:           now,
			TransactionID:        tx.ID,
			RemainingRedemptions: remainingRedemptions(book, len(uc.Redemptions)+1),
		}
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindInternal {
			// compare-and-delete: a lock held by someone else is left alone
			r.release(ctx, key, userID)
		}
		return nil, err
	}

	r.release(ctx, key, userID)
	r.log.Info().Str("user_id", userID).Str("code", code).Msg("coupon redeemed")
	return res, nil
}

// Unlock gives up a lock early. Only the holder may unlock.
func (r *RedemptionCoordinator) Unlock(ctx context.Context, code, userID string) (res *model.UnlockResult, err error) {
	ctx, done := startOp(ctx, "redemption.unlock",
		attribute.String("user_id", userID),
		attribute.String("code", code))
	defer func() { done(err) }()

	key := LockKey(code)
	holder, held, err := r.locks.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, apperrors.ErrNotLockedForRedeem
	}
	if holder != userID {
		return nil, apperrors.ErrNotLockHolder
	}

	err = r.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		uc, err := r.stores.UserCoupons.FindByCodeAndUser(ctx, code, userID)
		if err != nil {
			return err
		}
		now := r.now()
		if err := r.stores.Coupons.SetLockedUntil(ctx, uc.CouponID, nil, now); err != nil {
			return err
		}
		tx, err := r.ledger.Record(ctx, &model.Transaction{
			UserID:       userID,
			CouponID:     uc.CouponID,
			CouponBookID: uc.CouponBookID,
			Code:         code,
			Action:       model.ActionUnlock,
			Status:       model.StatusSuccess,
		})
		if err != nil {
			return err
		}
		res = &model.UnlockResult{Code: code, UserID: userID, TransactionID: tx.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.release(ctx, key, userID)
	r.log.Info().Str("user_id", userID).Str("code", code).Msg("coupon unlocked")
	return res, nil
}

// release drops the lock if userID still holds it. Failures are logged: the
// TTL removes the key regardless.
func (r *RedemptionCoordinator) release(ctx context.Context, key, userID string) {
	if _, err := r.locks.Release(context.WithoutCancel(ctx), key, userID); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("failed to release lock")
	}
}

// remainingRedemptions is nil when the user may redeem without limit
func remainingRedemptions(book *model.CouponBook, used int) *int {
	switch {
	case book.MaxRedemptionsPerUser > 0:
		n := max(book.MaxRedemptionsPerUser-used, 0)
		return &n
	case book.AllowMultipleRedemptions:
		return nil
	default:
		n := 0
		return &n
	}
}

