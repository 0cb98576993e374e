package service

import (
	"time"

	"coupon-system/internal/model"
	"coupon-system/pkg/apperrors"
)

// Book rules are pure functions over a book, the current time and counts the
// caller has already read inside its transaction. The first failing rule wins.

// ValidateForAssignment checks that a code from book may be bound to a user
// who already holds assignedCount codes from it.
func ValidateForAssignment(book *model.CouponBook, now time.Time, assignedCount int64) error {
	if book == nil || book.IsDeleted() {
		return apperrors.ErrBookNotFound
	}
	if !book.IsActive {
		return apperrors.ErrBookInactive
	}
	if now.After(book.EndDate) {
		return apperrors.ErrBookExpired
	}
	if now.Before(book.StartDate) {
		return apperrors.ErrBookNotStarted
	}
	if book.MaxCodesPerUser > 0 && assignedCount >= int64(book.MaxCodesPerUser) {
		return apperrors.ErrMaxCodesReached
	}
	return nil
}

// ValidateBookForRedemption checks existence, activity and the end of the window.
// The start is not checked: an assigned code implies the book was already open.
func ValidateBookForRedemption(book *model.CouponBook, now time.Time) error {
	if book == nil || book.IsDeleted() {
		return apperrors.ErrBookNotFound
	}
	if !book.IsActive {
		return apperrors.ErrBookInactive
	}
	if now.After(book.EndDate) {
		return apperrors.ErrBookExpired
	}
	return nil
}

// CheckRedemptionCap checks the per-user redemption policy against the
// number of redemptions already recorded on the user's coupon.
func CheckRedemptionCap(book *model.CouponBook, redemptionCount int) error {
	if !book.AllowMultipleRedemptions && redemptionCount > 0 {
		return apperrors.ErrAlreadyRedeemed
	}
	if book.MaxRedemptionsPerUser > 0 && redemptionCount >= book.MaxRedemptionsPerUser {
		return apperrors.ErrMaxRedemptionsReached
	}
	return nil
}

func ValidateForRedemption(book *model.CouponBook, now time.Time, redemptionCount int) error {
	if err := ValidateBookForRedemption(book, now); err != nil {
		return err
	}
	return CheckRedemptionCap(book, redemptionCount)
}

// ValidateForGeneration checks that new codes may still be added to book.
// Codes may be prepared before the window opens.
func ValidateForGeneration(book *model.CouponBook, now time.Time) error {
	return ValidateBookForRedemption(book, now)
}
