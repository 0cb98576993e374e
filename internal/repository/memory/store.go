// Package memory provides in-process implementations of the repository
// interfaces. Transactions are serializable: WithTransaction holds the store
// mutex for the whole closure and restores a snapshot when the closure fails.
package memory

import (
	"context"
	"sync"

	"coupon-system/internal/model"
	"coupon-system/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

// Store holds every collection behind a single mutex
type Store struct {
	mu sync.Mutex

	books        map[primitive.ObjectID]model.CouponBook
	coupons      map[primitive.ObjectID]model.Coupon
	couponOrder  []primitive.ObjectID
	codes        map[string]primitive.ObjectID
	userCoupons  map[primitive.ObjectID]model.UserCoupon
	userCodes    map[string]primitive.ObjectID
	transactions []model.Transaction
	jobs         map[primitive.ObjectID]model.GenerationJob
}

func New() *Store {
	return &Store{
		books:       make(map[primitive.ObjectID]model.CouponBook),
		coupons:     make(map[primitive.ObjectID]model.Coupon),
		codes:       make(map[string]primitive.ObjectID),
		userCoupons: make(map[primitive.ObjectID]model.UserCoupon),
		userCodes:   make(map[string]primitive.ObjectID),
		jobs:        make(map[primitive.ObjectID]model.GenerationJob),
	}
}

// lock acquires the store mutex unless ctx already belongs to a transaction
// on this store, in which case the caller is running under the held lock.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	books        map[primitive.ObjectID]model.CouponBook
	coupons      map[primitive.ObjectID]model.Coupon
	couponOrder  []primitive.ObjectID
	codes        map[string]primitive.ObjectID
	userCoupons  map[primitive.ObjectID]model.UserCoupon
	userCodes    map[string]primitive.ObjectID
	transactions []model.Transaction
	jobs         map[primitive.ObjectID]model.GenerationJob
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Stored values are never mutated in place, so copying the containers is enough.
func (s *Store) snapshot() snapshot {
	return snapshot{
		books:        copyMap(s.books),
		coupons:      copyMap(s.coupons),
		couponOrder:  append([]primitive.ObjectID(nil), s.couponOrder...),
		codes:        copyMap(s.codes),
		userCoupons:  copyMap(s.userCoupons),
		userCodes:    copyMap(s.userCodes),
		transactions: append([]model.Transaction(nil), s.transactions...),
		jobs:         copyMap(s.jobs),
	}
}

func (s *Store) restore(snap snapshot) {
	s.books = snap.books
	s.coupons = snap.coupons
	s.couponOrder = snap.couponOrder
	s.codes = snap.codes
	s.userCoupons = snap.userCoupons
	s.userCodes = snap.userCodes
	s.transactions = snap.transactions
	s.jobs = snap.jobs
}

// WithTransaction runs fn with exclusive access to the store.
// Every write made by fn is discarded if it returns an error.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		// nested call joins the outer transaction
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Repositories bundles the repository views over one store
type Repositories struct {
	Books        repository.CouponBookRepository
	Coupons      repository.CouponRepository
	UserCoupons  repository.UserCouponRepository
	Transactions repository.TransactionRepository
	Jobs         repository.GenerationJobRepository
}

func (s *Store) Repositories() Repositories {
	return Repositories{
		Books:        &couponBooks{s: s},
		Coupons:      &coupons{s: s},
		UserCoupons:  &userCoupons{s: s},
		Transactions: &transactions{s: s},
		Jobs:         &jobs{s: s},
	}
}

var _ repository.Transactor = (*Store)(nil)
