package service

import (
	"context"
	"math/rand"
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// AssignmentEngine binds unassigned coupons to users
type AssignmentEngine struct {
	stores Stores
	ledger *Ledger
	log    zerolog.Logger
	now    func() time.Time
	// intn returns a uniform offset in [0, n)
	intn func(n int64) int64
}

func NewAssignmentEngine(stores Stores, ledger *Ledger, log zerolog.Logger) *AssignmentEngine {
	return &AssignmentEngine{
		stores: stores,
		ledger: ledger,
		log:    log.With().Str("component", "assignment").Logger(),
		now:    time.Now,
		intn:   rand.Int63n,
	}
}

// AssignRandom picks a uniformly random unassigned coupon from the book and
// binds it to userID. Two transactions racing for the same coupon are resolved
// by the conditional update; the loser gets a concurrency conflict.
func (e *AssignmentEngine) AssignRandom(ctx context.Context, userID string, bookID primitive.ObjectID) (res *model.AssignmentResult, err error) {
	ctx, done := startOp(ctx, "assignment.random",
		attribute.String("user_id", userID),
		attribute.String("coupon_book_id", bookID.Hex()))
	defer func() { done(err) }()

	err = e.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		held, err := e.stores.UserCoupons.CountByUserAndBook(ctx, userID, bookID)
		if err != nil {
			return err
		}
		book, err := e.stores.Books.FindByID(ctx, bookID)
		if err != nil {
			return err
		}
		now := e.now()
		if err := ValidateForAssignment(book, now, held); err != nil {
			return err
		}

		available, err := e.stores.Coupons.CountUnassigned(ctx, bookID)
		if err != nil {
			return err
		}
		if available == 0 {
			return apperrors.ErrNoCouponsAvailable
		}

		coupon, err := e.stores.Coupons.FindUnassignedAt(ctx, bookID, e.intn(available))
		if err != nil {
			return err
		}
		if coupon == nil {
			return apperrors.ErrConcurrencyConflict
		}

		res, err = e.bind(ctx, userID, coupon, now, "random")
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("user_id", userID).Str("code", res.Code).Msg("coupon assigned")
	return res, nil
}

// AssignSpecific binds the coupon identified by code to userID
func (e *AssignmentEngine) AssignSpecific(ctx context.Context, userID, code string) (res *model.AssignmentResult, err error) {
	ctx, done := startOp(ctx, "assignment.specific",
		attribute.String("user_id", userID),
		attribute.String("code", code))
	defer func() { done(err) }()

	err = e.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		coupon, err := e.stores.Coupons.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if coupon.IsAssigned {
			return apperrors.ErrCouponAlreadyAssigned
		}

		book, err := e.stores.Books.FindByID(ctx, coupon.CouponBookID)
		if err != nil {
			return err
		}
		held, err := e.stores.UserCoupons.CountByUserAndBook(ctx, userID, coupon.CouponBookID)
		if err != nil {
			return err
		}
		now := e.now()
		if err := ValidateForAssignment(book, now, held); err != nil {
			return err
		}

		res, err = e.bind(ctx, userID, coupon, now, "specific")
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("user_id", userID).Str("code", code).Msg("coupon assigned")
	return res, nil
}

// bind flips the coupon to assigned, creates the user coupon and records the
// ledger entry. It must run inside a transaction.
func (e *AssignmentEngine) bind(ctx context.Context, userID string, coupon *model.Coupon, now time.Time, method string) (*model.AssignmentResult, error) {
	claimed, err := e.stores.Coupons.MarkAssigned(ctx, coupon.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperrors.ErrConcurrencyConflict
	}

	uc := &model.UserCoupon{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		CouponID:     coupon.ID,
		CouponBookID: coupon.CouponBookID,
		Code:         coupon.Code,
		AssignedAt:   now,
		Redemptions:  []model.Redemption{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.stores.UserCoupons.Create(ctx, uc); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Record(ctx, &model.Transaction{
		UserID:       userID,
		CouponID:     coupon.ID,
		CouponBookID: coupon.CouponBookID,
		Code:         coupon.Code,
		Action:       model.ActionAssign,
		Status:       model.StatusSuccess,
		Metadata:     map[string]interface{}{"method": method},
	}); err != nil {
		return nil, err
	}

	return &model.AssignmentResult{
		UserID:       userID,
		CouponID:     coupon.ID,
		CouponBookID: coupon.CouponBookID,
		Code:         coupon.Code,
		AssignedAt:   now,
	}, nil
}

// UserCoupons lists a user's coupons, newest assignment first, with book names resolved
func (e *AssignmentEngine) UserCoupons(ctx context.Context, userID string) (views []model.UserCouponView, err error) {
	ctx, done := startOp(ctx, "assignment.user_coupons", attribute.String("user_id", userID))
	defer func() { done(err) }()

	ucs, err := e.stores.UserCoupons.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[primitive.ObjectID]string)
	views = make([]model.UserCouponView, 0, len(ucs))
	for _, uc := range ucs {
		name, ok := names[uc.CouponBookID]
		if !ok {
			book, err := e.stores.Books.FindByID(ctx, uc.CouponBookID)
			switch {
			case err == nil:
				name = book.Name
			case apperrors.KindOf(err) != apperrors.KindNotFound:
				return nil, err
			}
			names[uc.CouponBookID] = name
		}

		views = append(views, model.UserCouponView{
			CouponID:     uc.CouponID,
			CouponBookID: uc.CouponBookID,
			Code:         uc.Code,
			BookName:     name,
			AssignedAt:   uc.AssignedAt,
			IsRedeemed:   len(uc.Redemptions) > 0,
			Redemptions:  uc.Redemptions,
		})
	}
	return views, nil
}
