package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error independently of the store that produced it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindExpired
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindExpired:
		return "expired"
	case KindValidation:
		return "validation_failed"
	default:
		return "internal"
	}
}

// Error is a typed domain error for the coupon system
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a typed error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Domain errors for the coupon system
var (
	ErrBookNotFound       = New(KindNotFound, "coupon book not found")
	ErrCouponNotFound     = New(KindNotFound, "coupon not found")
	ErrUserCouponNotFound = New(KindNotFound, "coupon not found for user")
	ErrJobNotFound        = New(KindNotFound, "generation job not found")
	ErrNoCouponsAvailable = New(KindNotFound, "no coupons available")

	ErrCouponAlreadyAssigned = New(KindConflict, "coupon is already assigned")
	ErrAlreadyAssignedToUser = New(KindConflict, "coupon already assigned to this user")
	ErrConcurrencyConflict   = New(KindConflict, "could not assign a coupon (concurrency issue)")
	ErrAlreadyLocked         = New(KindConflict, "the coupon is already locked by another process")
	ErrLockedByAnother       = New(KindConflict, "the coupon is locked by another process")
	ErrDuplicateCode         = New(KindConflict, "one or more codes already exist")
	ErrBookAlreadyExists     = New(KindConflict, "coupon book already exists")
	ErrJobProgressConflict   = New(KindConflict, "generation job progress was advanced by another consumer")

	ErrBookInactive          = New(KindForbidden, "coupon book is not active")
	ErrBookNotStarted        = New(KindForbidden, "the coupon book is not yet available for assignment")
	ErrMaxCodesReached       = New(KindForbidden, "user has already reached the maximum allowed coupons")
	ErrAlreadyRedeemed       = New(KindForbidden, "the coupon has already been redeemed")
	ErrMaxRedemptionsReached = New(KindForbidden, "the maximum redemptions for this coupon have been reached")
	ErrNotLockedForRedeem    = New(KindForbidden, "the coupon has not been locked for redeem")
	ErrNotLockHolder         = New(KindForbidden, "the coupon is not locked by this user")

	ErrBookExpired = New(KindExpired, "coupon book has expired")

	ErrInvalidQuantity  = New(KindValidation, "quantity must be greater than zero")
	ErrNoCodes          = New(KindValidation, "at least one code is required")
	ErrInvalidDateRange = New(KindValidation, "end date must be after start date")
	ErrInvalidLockTTL   = New(KindValidation, "lock duration must be greater than zero")
	ErrPatternExhausted = New(KindValidation, "code pattern cannot produce enough distinct codes")
	ErrInvalidID        = New(KindValidation, "invalid identifier")
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to a stable status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindExpired:
		return http.StatusGone
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
