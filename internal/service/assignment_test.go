package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coupon-system/internal/model"
	"coupon-system/internal/repository"
	"coupon-system/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAssignRandom_ConcurrentExactlyN(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, nil)
	e.upload(t, book, "C1", "C2", "C3", "C4", "C5")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		codes     = map[string]string{}
		succeeded atomic.Int32
		empty     atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			res, err := e.assign.AssignRandom(context.Background(), userID, book.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
				mu.Lock()
				if prev, dup := codes[res.Code]; dup {
					t.Errorf("code %s assigned to both %s and %s", res.Code, prev, userID)
				}
				codes[res.Code] = userID
				mu.Unlock()
			case errors.Is(err, apperrors.ErrNoCouponsAvailable):
				empty.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 5 {
		t.Errorf("expected 5 assignments, got %d", succeeded.Load())
	}
	if empty.Load() != 45 {
		t.Errorf("expected 45 no-coupons failures, got %d", empty.Load())
	}

	txs, err := e.ledger.List(context.Background(), model.TransactionFilter{Action: model.ActionAssign})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txs) != 5 {
		t.Errorf("expected 5 assign ledger entries, got %d", len(txs))
	}
}

func TestAssignRandom_MaxCodesPerUser(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, func(r *model.CreateCouponBookRequest) { r.MaxCodesPerUser = intPtr(1) })
	e.upload(t, book, "A", "B")
	ctx := context.Background()

	if _, err := e.assign.AssignRandom(ctx, "u1", book.ID); err != nil {
		t.Fatalf("first AssignRandom: %v", err)
	}
	_, err := e.assign.AssignRandom(ctx, "u1", book.ID)
	if !errors.Is(err, apperrors.ErrMaxCodesReached) {
		t.Fatalf("expected ErrMaxCodesReached, got %v", err)
	}
	if apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Errorf("expected forbidden kind, got %v", apperrors.KindOf(err))
	}
	if n, _ := e.stores.Coupons.CountUnassigned(ctx, book.ID); n != 1 {
		t.Errorf("expected one coupon left, got %d", n)
	}
}

func TestAssignRandom_UnlimitedCodesPerUser(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, func(r *model.CreateCouponBookRequest) { r.MaxCodesPerUser = intPtr(0) })
	e.upload(t, book, "A", "B", "C")

	for i := 0; i < 3; i++ {
		if _, err := e.assign.AssignRandom(context.Background(), "u1", book.ID); err != nil {
			t.Fatalf("AssignRandom #%d: %v", i, err)
		}
	}
	views, err := e.assign.UserCoupons(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserCoupons: %v", err)
	}
	if len(views) != 3 {
		t.Errorf("expected 3 coupons, got %d", len(views))
	}
}

func TestAssignRandom_UsesDrawnOffset(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, nil)
	e.upload(t, book, "FIRST", "SECOND", "THIRD")

	var drawnFrom int64
	e.assign.intn = func(n int64) int64 {
		drawnFrom = n
		return n - 1
	}

	res, err := e.assign.AssignRandom(context.Background(), "u1", book.ID)
	if err != nil {
		t.Fatalf("AssignRandom: %v", err)
	}
	if drawnFrom != 3 {
		t.Errorf("expected offset drawn from 3 candidates, got %d", drawnFrom)
	}
	if res.Code != "THIRD" {
		t.Errorf("expected the last coupon in identity order, got %s", res.Code)
	}
}

func TestAssignRandom_BookWindow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	future := e.newBook(t, func(r *model.CreateCouponBookRequest) {
		r.StartDate = e.clock.Now().Add(time.Hour)
		r.EndDate = e.clock.Now().Add(2 * time.Hour)
	})
	e.upload(t, future, "F1")
	if _, err := e.assign.AssignRandom(ctx, "u1", future.ID); !errors.Is(err, apperrors.ErrBookNotStarted) {
		t.Errorf("expected ErrBookNotStarted, got %v", err)
	}

	soon := e.newBook(t, nil)
	e.upload(t, soon, "S1")
	e.clock.Advance(25 * time.Hour)
	_, err := e.assign.AssignRandom(ctx, "u1", soon.ID)
	if !errors.Is(err, apperrors.ErrBookExpired) {
		t.Errorf("expected ErrBookExpired, got %v", err)
	}
	if apperrors.HTTPStatus(err) != 410 {
		t.Errorf("expected 410 for an expired book, got %d", apperrors.HTTPStatus(err))
	}

	if _, err := e.assign.AssignRandom(ctx, "u1", primitive.NewObjectID()); !errors.Is(err, apperrors.ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestAssignSpecific(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, nil)
	e.upload(t, book, "PICK", "OTHER")
	ctx := context.Background()

	if _, err := e.assign.AssignSpecific(ctx, "u1", "MISSING"); !errors.Is(err, apperrors.ErrCouponNotFound) {
		t.Errorf("expected ErrCouponNotFound, got %v", err)
	}

	res, err := e.assign.AssignSpecific(ctx, "u1", "PICK")
	if err != nil {
		t.Fatalf("AssignSpecific: %v", err)
	}
	if res.Code != "PICK" || res.UserID != "u1" || res.CouponBookID != book.ID {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := e.assign.AssignSpecific(ctx, "u2", "PICK"); !errors.Is(err, apperrors.ErrCouponAlreadyAssigned) {
		t.Errorf("expected ErrCouponAlreadyAssigned, got %v", err)
	}
	if _, err := e.assign.AssignSpecific(ctx, "u1", "OTHER"); !errors.Is(err, apperrors.ErrMaxCodesReached) {
		t.Errorf("expected ErrMaxCodesReached, got %v", err)
	}

	c, _ := e.stores.Coupons.FindByCode(ctx, "OTHER")
	if c.IsAssigned {
		t.Error("rejected assignment left OTHER assigned")
	}
}

// losingCoupons simulates a concurrent transaction claiming the coupon first
type losingCoupons struct {
	repository.CouponRepository
}

func (losingCoupons) MarkAssigned(context.Context, primitive.ObjectID, time.Time) (bool, error) {
	return false, nil
}

func TestAssign_ConditionalUpdateMissIsConflict(t *testing.T) {
	e := newTestEnv(t)
	book := e.newBook(t, nil)
	e.upload(t, book, "RACE")
	e.assign.stores.Coupons = losingCoupons{CouponRepository: e.stores.Coupons}
	ctx := context.Background()

	_, err := e.assign.AssignRandom(ctx, "u1", book.ID)
	if !errors.Is(err, apperrors.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if n, _ := e.stores.UserCoupons.CountByUserAndBook(ctx, "u1", book.ID); n != 0 {
		t.Errorf("expected no user coupon after conflict, got %d", n)
	}
	if txs, _ := e.ledger.List(ctx, model.TransactionFilter{UserID: "u1"}); len(txs) != 0 {
		t.Errorf("expected no ledger entry after conflict, got %d", len(txs))
	}
}

func TestUserCoupons_ResolvesBookNames(t *testing.T) {
	e := newTestEnv(t)
	first := e.newBook(t, func(r *model.CreateCouponBookRequest) { r.Name = "spring" })
	second := e.newBook(t, func(r *model.CreateCouponBookRequest) { r.Name = "autumn" })

	e.assignCode(t, first, "SP-1", "u1")
	e.clock.Advance(time.Minute)
	e.assignCode(t, second, "AU-1", "u1")

	views, err := e.assign.UserCoupons(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserCoupons: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 coupons, got %d", len(views))
	}
	if views[0].Code != "AU-1" || views[0].BookName != "autumn" {
		t.Errorf("expected newest first with book name, got %+v", views[0])
	}
	if views[1].BookName != "spring" || views[1].IsRedeemed {
		t.Errorf("unexpected second view %+v", views[1])
	}

	none, err := e.assign.UserCoupons(context.Background(), "nobody")
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty list, got %v, %v", none, err)
	}
}
