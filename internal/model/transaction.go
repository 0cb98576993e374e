package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is the kind of state transition a ledger entry records
type Action string

const (
	ActionAssign Action = "assign"
	ActionLock   Action = "lock"
	ActionRedeem Action = "redeem"
	ActionUnlock Action = "unlock"
)

// Status is the outcome of a recorded action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Transaction is an immutable ledger entry
type Transaction struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID       string                 `bson:"user_id" json:"userId"`
	CouponID     primitive.ObjectID     `bson:"coupon_id" json:"couponId"`
	CouponBookID primitive.ObjectID     `bson:"coupon_book_id" json:"couponBookId"`
	Code         string                 `bson:"code" json:"code"`
	Action       Action                 `bson:"action" json:"action"`
	Status       Status                 `bson:"status" json:"status"`
	Metadata     map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt    time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time              `bson:"updated_at" json:"updatedAt"`
}

// TransactionFilter selects ledger entries; empty fields match everything
type TransactionFilter struct {
	UserID string
	Code   string
	Action Action
	Limit  int64
}
