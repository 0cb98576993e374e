package repository

import (
	"context"
	"coupon-system/internal/model"
)

// TransactionRepository is the append-only ledger store.
// It deliberately has no update or delete operations.
type TransactionRepository interface {
	// Append stores a new ledger entry
	Append(ctx context.Context, tx *model.Transaction) error

	// Find lists entries matching filter, newest first
	Find(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error)
}
