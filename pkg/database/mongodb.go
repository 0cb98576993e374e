package database

import (
	"context"
	"time"

	"coupon-system/internal/repository"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB and ensures indexes exist.
// Multi-document transactions require the server to run as a replica set.
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	mongoDB := &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := mongoDB.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to create indexes")
	}

	return mongoDB, nil
}

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{
			collection: repository.CouponBooksCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "is_active", Value: 1}}, Options: options.Index().SetName("is_active_index")},
				{
					Keys:    bson.D{{Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}},
					Options: options.Index().SetName("validity_window_index"),
				},
			},
		},
		{
			collection: repository.CouponsCollection,
			models: []mongo.IndexModel{
				// A code identifies exactly one coupon across all books
				{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("code_unique")},
				{
					Keys:    bson.D{{Key: "coupon_book_id", Value: 1}, {Key: "is_assigned", Value: 1}},
					Options: options.Index().SetName("book_assigned_index"),
				},
				{
					Keys:    bson.D{{Key: "coupon_book_id", Value: 1}, {Key: "is_redeemed", Value: 1}},
					Options: options.Index().SetName("book_redeemed_index"),
				},
			},
		},
		{
			collection: repository.UserCouponsCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "coupon_book_id", Value: 1}},
					Options: options.Index().SetName("user_book_index"),
				},
				// Prevents the same code from being bound twice to one user
				{
					Keys:    bson.D{{Key: "code", Value: 1}, {Key: "user_id", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("code_user_unique"),
				},
			},
		},
		{
			collection: repository.TransactionsCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "action", Value: 1}},
					Options: options.Index().SetName("user_action_index"),
				},
				{
					Keys:    bson.D{{Key: "code", Value: 1}, {Key: "action", Value: 1}},
					Options: options.Index().SetName("code_action_index"),
				},
				{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_index")},
			},
		},
		{
			collection: repository.GenerationJobsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "coupon_book_id", Value: 1}}, Options: options.Index().SetName("book_index")},
			},
		},
	}
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	for _, ci := range indexPlan() {
		if _, err := m.Database.Collection(ci.collection).Indexes().CreateMany(ctx, ci.models); err != nil {
			return errors.Wrapf(err, "failed to create %s indexes", ci.collection)
		}
	}
	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
