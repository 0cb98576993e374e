package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateCouponBookRequest represents the request to create a coupon book
type CreateCouponBookRequest struct {
	Name                     string    `json:"name" binding:"required"`
	Description              string    `json:"description"`
	StartDate                time.Time `json:"startDate" binding:"required"`
	EndDate                  time.Time `json:"endDate" binding:"required"`
	IsActive                 *bool     `json:"isActive"`
	MaxRedemptionsPerUser    *int      `json:"maxRedemptionsPerUser" binding:"omitempty,min=0"`
	MaxCodesPerUser          *int      `json:"maxCodesPerUser" binding:"omitempty,min=0"`
	AllowMultipleRedemptions bool      `json:"allowMultipleRedemptions"`
	CodePattern              string    `json:"codePattern"`
}

// GenerateCodesRequest represents the request to generate codes for a book
type GenerateCodesRequest struct {
	CouponBookID string `json:"couponBookId" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
}

// UploadCodesRequest represents the request to upload explicit codes for a book
type UploadCodesRequest struct {
	CouponBookID string   `json:"couponBookId" binding:"required"`
	Codes        []string `json:"codes" binding:"required,min=1,dive,required"`
}

// AssignRandomRequest represents the request to assign a random coupon
type AssignRandomRequest struct {
	UserID       string `json:"userId" binding:"required"`
	CouponBookID string `json:"couponBookId" binding:"required"`
}

// UserRequest carries the acting user for code-scoped operations
type UserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// GenerationResult is returned by both generation paths
type GenerationResult struct {
	CouponBookID   primitive.ObjectID  `json:"couponBookId"`
	JobID          *primitive.ObjectID `json:"jobId,omitempty"`
	GeneratedCodes int                 `json:"generatedCodes"`
	TotalCodes     int64               `json:"totalCodes"`
	Status         string              `json:"status"`
	Message        string              `json:"message,omitempty"`
}

// UploadResult is returned after explicit codes are stored
type UploadResult struct {
	CouponBookID  primitive.ObjectID `json:"couponBookId"`
	UploadedCodes int                `json:"uploadedCodes"`
	TotalCodes    int64              `json:"totalCodes"`
	Status        string             `json:"status"`
}

// AssignmentResult describes a coupon bound to a user
type AssignmentResult struct {
	UserID       string             `json:"userId"`
	CouponID     primitive.ObjectID `json:"couponId"`
	CouponBookID primitive.ObjectID `json:"couponBookId"`
	Code         string             `json:"code"`
	AssignedAt   time.Time          `json:"assignedAt"`
}

// LockResult describes an acquired redemption lock
type LockResult struct {
	Code          string             `json:"code"`
	UserID        string             `json:"userId"`
	LockedUntil   time.Time          `json:"lockedUntil"`
	TransactionID primitive.ObjectID `json:"transactionId"`
}

// UnlockResult describes an early lock release
type UnlockResult struct {
	Code          string             `json:"code"`
	UserID        string             `json:"userId"`
	TransactionID primitive.ObjectID `json:"transactionId"`
}

// RedeemResult describes a completed redemption.
// RemainingRedemptions is nil when the user may redeem without limit.
type RedeemResult struct {
	Code                 string             `json:"code"`
	UserID               string             `json:"userId"`
	RedeemedAt           time.Time          `json:"redeemedAt"`
	TransactionID        primitive.ObjectID `json:"transactionId"`
	RemainingRedemptions *int               `json:"remainingRedemptions"`
}

// UserCouponView is one entry of a user's coupon listing
type UserCouponView struct {
	CouponID     primitive.ObjectID `json:"couponId"`
	CouponBookID primitive.ObjectID `json:"couponBookId"`
	Code         string             `json:"code"`
	BookName     string             `json:"bookName"`
	AssignedAt   time.Time          `json:"assignedAt"`
	IsRedeemed   bool               `json:"isRedeemed"`
	Redemptions  []Redemption       `json:"redemptions"`
}
