package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponBook is a campaign that groups coupons under one validity window and set of per-user limits
type CouponBook struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                     string             `bson:"name" json:"name"`
	Description              string             `bson:"description,omitempty" json:"description,omitempty"`
	StartDate                time.Time          `bson:"start_date" json:"startDate"`
	EndDate                  time.Time          `bson:"end_date" json:"endDate"`
	IsActive                 bool               `bson:"is_active" json:"isActive"`
	MaxRedemptionsPerUser    int                `bson:"max_redemptions_per_user" json:"maxRedemptionsPerUser"` // 0 = unlimited
	MaxCodesPerUser          int                `bson:"max_codes_per_user" json:"maxCodesPerUser"`             // 0 = unlimited
	AllowMultipleRedemptions bool               `bson:"allow_multiple_redemptions" json:"allowMultipleRedemptions"`
	TotalCodes               int64              `bson:"total_codes" json:"totalCodes"`
	CodePattern              string             `bson:"code_pattern,omitempty" json:"codePattern,omitempty"`
	CreatedAt                time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt                time.Time          `bson:"updated_at" json:"updatedAt"`
	DeletedAt                *time.Time         `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the book has been soft deleted
func (b *CouponBook) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Coupon is a single redeemable code belonging to a coupon book
type Coupon struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CouponBookID    primitive.ObjectID `bson:"coupon_book_id" json:"couponBookId"`
	Code            string             `bson:"code" json:"code"` // unique across all books
	IsAssigned      bool               `bson:"is_assigned" json:"isAssigned"`
	IsRedeemed      bool               `bson:"is_redeemed" json:"isRedeemed"`
	RedemptionCount int                `bson:"redemption_count" json:"redemptionCount"`
	LockedUntil     *time.Time         `bson:"locked_until" json:"lockedUntil"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// IsLocked reports whether the advisory lock mirror is still in the future at now.
// The lock store remains the source of truth for who holds the lock.
func (c *Coupon) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

// Redemption is one successful use of an assigned coupon
type Redemption struct {
	RedeemedAt    time.Time          `bson:"redeemed_at" json:"redeemedAt"`
	TransactionID primitive.ObjectID `bson:"transaction_id" json:"transactionId"`
}

// UserCoupon binds a user to an assigned coupon
type UserCoupon struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"userId"`
	CouponID     primitive.ObjectID `bson:"coupon_id" json:"couponId"`
	CouponBookID primitive.ObjectID `bson:"coupon_book_id" json:"couponBookId"`
	Code         string             `bson:"code" json:"code"` // unique together with user_id
	AssignedAt   time.Time          `bson:"assigned_at" json:"assignedAt"`
	Redemptions  []Redemption       `bson:"redemptions" json:"redemptions"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}
