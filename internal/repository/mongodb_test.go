package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coupon-system/internal/model"
	"coupon-system/internal/repository"
	"coupon-system/pkg/apperrors"
	"coupon-system/pkg/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// setupMongo connects to MONGO_TEST_URI, which must point at a replica set,
// and returns a throwaway database with indexes in place.
func setupMongo(t *testing.T) *database.MongoDB {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("coupon_test_%s", primitive.NewObjectID().Hex())
	mongoDB, err := database.Connect(ctx, uri, dbName)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoDB.Database.Drop(ctx)
		_ = mongoDB.Disconnect(ctx)
	})
	return mongoDB
}

func seedBook(t *testing.T, books repository.CouponBookRepository) *model.CouponBook {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	book := &model.CouponBook{
		ID:        primitive.NewObjectID(),
		Name:      "integration",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := books.Create(context.Background(), book); err != nil {
		t.Fatalf("Create book: %v", err)
	}
	return book
}

func TestMongo_TransactionRollback(t *testing.T) {
	mongoDB := setupMongo(t)
	ctx := context.Background()

	uow := database.NewUnitOfWork(mongoDB.Client)
	books := repository.NewCouponBookRepository(mongoDB.Database)
	coupons := repository.NewCouponRepository(mongoDB.Database)
	book := seedBook(t, books)

	boom := errors.New("boom")
	err := uow.WithTransaction(ctx, func(ctx context.Context) error {
		if err := coupons.InsertMany(ctx, []*model.Coupon{{CouponBookID: book.ID, Code: "ROLLBACK-1"}}); err != nil {
			return err
		}
		if err := books.IncrementTotalCodes(ctx, book.ID, 1, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := coupons.FindByCode(ctx, "ROLLBACK-1"); !errors.Is(err, apperrors.ErrCouponNotFound) {
		t.Errorf("expected the insert to be rolled back, got %v", err)
	}
	got, err := books.FindByID(ctx, book.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.TotalCodes != 0 {
		t.Errorf("expected total_codes 0 after rollback, got %d", got.TotalCodes)
	}
}

func TestMongo_DuplicateCode(t *testing.T) {
	mongoDB := setupMongo(t)
	ctx := context.Background()

	books := repository.NewCouponBookRepository(mongoDB.Database)
	coupons := repository.NewCouponRepository(mongoDB.Database)
	book := seedBook(t, books)

	if err := coupons.InsertMany(ctx, []*model.Coupon{{CouponBookID: book.ID, Code: "DUP"}}); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	err := coupons.InsertMany(ctx, []*model.Coupon{{CouponBookID: book.ID, Code: "DUP"}})
	if !errors.Is(err, apperrors.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestMongo_MarkAssignedSingleWinner(t *testing.T) {
	mongoDB := setupMongo(t)
	ctx := context.Background()

	books := repository.NewCouponBookRepository(mongoDB.Database)
	coupons := repository.NewCouponRepository(mongoDB.Database)
	book := seedBook(t, books)

	coupon := &model.Coupon{CouponBookID: book.ID, Code: "RACE"}
	if err := coupons.InsertMany(ctx, []*model.Coupon{coupon}); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	var (
		wins int64
		wg   sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := coupons.MarkAssigned(ctx, coupon.ID, time.Now())
			if err != nil {
				t.Errorf("MarkAssigned: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMongo_UserCouponsAndLedger(t *testing.T) {
	mongoDB := setupMongo(t)
	ctx := context.Background()

	books := repository.NewCouponBookRepository(mongoDB.Database)
	userCoupons := repository.NewUserCouponRepository(mongoDB.Database)
	txs := repository.NewTransactionRepository(mongoDB.Database)
	book := seedBook(t, books)

	now := time.Now().UTC()
	uc := &model.UserCoupon{
		UserID:       "u1",
		CouponID:     primitive.NewObjectID(),
		CouponBookID: book.ID,
		Code:         "UC-1",
		AssignedAt:   now,
		Redemptions:  []model.Redemption{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := userCoupons.Create(ctx, uc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := *uc
	dup.ID = primitive.NilObjectID
	if err := userCoupons.Create(ctx, &dup); !errors.Is(err, apperrors.ErrAlreadyAssignedToUser) {
		t.Fatalf("expected ErrAlreadyAssignedToUser, got %v", err)
	}

	n, err := userCoupons.CountByUserAndBook(ctx, "u1", book.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountByUserAndBook = %d, %v", n, err)
	}

	for i, action := range []model.Action{model.ActionAssign, model.ActionLock, model.ActionRedeem} {
		entry := &model.Transaction{
			UserID:       "u1",
			CouponBookID: book.ID,
			Code:         "UC-1",
			Action:       action,
			Status:       model.StatusSuccess,
			CreatedAt:    now.Add(time.Duration(i) * time.Second),
		}
		if err := txs.Append(ctx, entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	found, err := txs.Find(ctx, model.TransactionFilter{Code: "UC-1", Limit: 10})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 3 || found[0].Action != model.ActionRedeem {
		t.Errorf("expected 3 entries newest first, got %d", len(found))
	}
}

func TestMongo_AdvanceProgressIsConditional(t *testing.T) {
	mongoDB := setupMongo(t)
	ctx := context.Background()
	jobs := repository.NewGenerationJobRepository(mongoDB.Database)
	now := time.Now().UTC()

	job := &model.GenerationJob{Quantity: 25, BatchSize: 10, Status: model.JobPending, CreatedAt: now, UpdatedAt: now}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := jobs.AdvanceProgress(ctx, job.ID, 0, 10, now); err != nil {
		t.Fatalf("AdvanceProgress: %v", err)
	}
	if err := jobs.AdvanceProgress(ctx, job.ID, 0, 10, now); !errors.Is(err, apperrors.ErrJobProgressConflict) {
		t.Fatalf("expected ErrJobProgressConflict, got %v", err)
	}
	if err := jobs.AdvanceProgress(ctx, primitive.NewObjectID(), 0, 1, now); !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	got, err := jobs.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Generated != 10 {
		t.Errorf("expected generated 10, got %d", got.Generated)
	}
}
