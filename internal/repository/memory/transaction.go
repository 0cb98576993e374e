package memory

import (
	"context"

	"coupon-system/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type transactions struct {
	s *Store
}

func (r *transactions) Append(ctx context.Context, tx *model.Transaction) error {
	defer r.s.lock(ctx)()

	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	r.s.transactions = append(r.s.transactions, *tx)
	return nil
}

func (r *transactions) Find(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
	defer r.s.lock(ctx)()

	result := make([]*model.Transaction, 0)
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		tx := r.s.transactions[i]
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.Code != "" && tx.Code != filter.Code {
			continue
		}
		if filter.Action != "" && tx.Action != filter.Action {
			continue
		}
		result = append(result, &tx)
		if filter.Limit > 0 && int64(len(result)) >= filter.Limit {
			break
		}
	}
	return result, nil
}
