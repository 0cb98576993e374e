package service

import (
	"context"
	"time"

	"coupon-system/internal/model"
	"coupon-system/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ledger writes and reads the append-only transaction log.
// Record must be called with the transaction-scoped context of the state
// change it describes, so an abort discards both together.
type Ledger struct {
	repo repository.TransactionRepository
	now  func() time.Time
}

func NewLedger(repo repository.TransactionRepository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Record appends entry and returns it with its identity populated
func (l *Ledger) Record(ctx context.Context, entry *model.Transaction) (*model.Transaction, error) {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.Status == "" {
		entry.Status = model.StatusSuccess
	}
	now := l.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := l.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries matching filter, newest first
func (l *Ledger) List(ctx context.Context, filter model.TransactionFilter) (txs []*model.Transaction, err error) {
	ctx, done := startOp(ctx, "ledger.list")
	defer func() { done(err) }()

	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return l.repo.Find(ctx, filter)
}
