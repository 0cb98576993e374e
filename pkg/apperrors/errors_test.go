package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil error", err: nil, want: KindInternal},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "sentinel", err: ErrBookNotFound, want: KindNotFound},
		{name: "fmt wrapped", err: fmt.Errorf("assign: %w", ErrAlreadyLocked), want: KindConflict},
		{name: "pkg/errors wrapped", err: pkgerrors.Wrap(ErrBookExpired, "lock"), want: KindExpired},
		{name: "validation", err: ErrInvalidQuantity, want: KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUserCouponNotFound, http.StatusNotFound},
		{ErrConcurrencyConflict, http.StatusConflict},
		{ErrMaxCodesReached, http.StatusForbidden},
		{ErrBookExpired, http.StatusGone},
		{ErrNoCodes, http.StatusBadRequest},
		{errors.New("driver exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	if errors.Is(ErrAlreadyLocked, ErrLockedByAnother) {
		t.Error("already-locked and locked-by-another must be distinguishable")
	}
	if errors.Is(ErrNotLockedForRedeem, ErrNotLockHolder) {
		t.Error("not-locked and not-holder must be distinguishable")
	}
}
