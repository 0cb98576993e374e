package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"coupon-system/internal/model"
	"coupon-system/internal/repository/memory"
	"coupon-system/pkg/lockstore"

	"github.com/rs/zerolog"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

type testEnv struct {
	clock  *testClock
	store  *memory.Store
	stores Stores
	locks  *lockstore.Memory
	pub    *recordingPublisher
	ledger *Ledger
	pool   *PoolManager
	assign *AssignmentEngine
	redeem *RedemptionCoordinator
}

const testTopic = "coupon-service.code-generation"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	repos := store.Repositories()
	stores := Stores{
		Tx:           store,
		Books:        repos.Books,
		Coupons:      repos.Coupons,
		UserCoupons:  repos.UserCoupons,
		Transactions: repos.Transactions,
		Jobs:         repos.Jobs,
	}
	locks := lockstore.NewMemoryWithClock(clock.Now)
	pub := &recordingPublisher{}
	log := zerolog.Nop()

	ledger := NewLedger(stores.Transactions)
	ledger.now = clock.Now

	pool := NewPoolManager(stores, pub, PoolConfig{MaxSyncGenerator: 10, BatchSize: 10, GenerationTopic: testTopic}, log)
	pool.now = clock.Now

	assign := NewAssignmentEngine(stores, ledger, log)
	assign.now = clock.Now

	redeem := NewRedemptionCoordinator(stores, ledger, locks, log)
	redeem.now = clock.Now

	return &testEnv{
		clock:  clock,
		store:  store,
		stores: stores,
		locks:  locks,
		pub:    pub,
		ledger: ledger,
		pool:   pool,
		assign: assign,
		redeem: redeem,
	}
}

// newBook creates a book open from an hour ago until tomorrow
func (e *testEnv) newBook(t *testing.T, mutate func(*model.CreateCouponBookRequest)) *model.CouponBook {
	t.Helper()
	now := e.clock.Now()
	req := &model.CreateCouponBookRequest{
		Name:      "summer-sale",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}
	if mutate != nil {
		mutate(req)
	}
	book, err := e.pool.CreateBook(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return book
}

func (e *testEnv) upload(t *testing.T, book *model.CouponBook, codes ...string) {
	t.Helper()
	if _, err := e.pool.UploadExplicit(context.Background(), book.ID, codes); err != nil {
		t.Fatalf("UploadExplicit: %v", err)
	}
}

// assignCode uploads code into book and assigns it to userID
func (e *testEnv) assignCode(t *testing.T, book *model.CouponBook, code, userID string) {
	t.Helper()
	e.upload(t, book, code)
	if _, err := e.assign.AssignSpecific(context.Background(), userID, code); err != nil {
		t.Fatalf("AssignSpecific: %v", err)
	}
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }
