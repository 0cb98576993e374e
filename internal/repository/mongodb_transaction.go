package repository

import (
	"context"
	"coupon-system/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodbTransactionRepository implements TransactionRepository using MongoDB
type mongodbTransactionRepository struct {
	collection *mongo.Collection
}

// NewTransactionRepository creates a new MongoDB-based ledger repository
func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &mongodbTransactionRepository{
		collection: db.Collection(TransactionsCollection),
	}
}

func (r *mongodbTransactionRepository) Append(ctx context.Context, tx *model.Transaction) error {
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, tx); err != nil {
		return errors.Wrap(err, "append transaction")
	}
	return nil
}

func (r *mongodbTransactionRepository) Find(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Code != "" {
		query["code"] = filter.Code
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find transactions")
	}
	defer cursor.Close(ctx)

	var txs []*model.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, errors.Wrap(err, "decode transactions")
	}
	return txs, nil
}
