package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestSpecificErrorsMatchTheirCategory(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrProgressNotFound, ErrNotFound},
		{ErrNotEnrolled, ErrForbidden},
		{ErrWorkoutAlreadyToday, ErrConflict},
		{ErrBookingOverlap, ErrConflict},
		{ErrMalformedCallback, ErrMalformedInput},
		{&PaymentDeclinedError{Code: "24"}, ErrPaymentFailed},
		{&GatedError{}, ErrWorkoutAlreadyToday},
		{&GatedError{}, ErrConflict},
		{fmt.Errorf("wrapped: %w", ErrDayAlreadyCompleted), ErrConflict},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("%v should match %v", tt.err, tt.kind)
		}
	}
	if errors.Is(ErrDayAlreadyCompleted, ErrNotFound) {
		t.Error("conflict error matched not-found")
	}
	if !errors.Is(ErrDayAlreadyCompleted, ErrDayAlreadyCompleted) {
		t.Error("specific error should match itself")
	}
	if errors.Is(ErrDayAlreadyCompleted, ErrWorkoutAlreadyToday) {
		t.Error("distinct specific errors matched")
	}
}

func TestParseID(t *testing.T) {
	if _, err := ParseID("nope"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("ParseID(nope) = %v", err)
	}
	if _, err := ParseID("65f000000000000000000001"); err != nil {
		t.Errorf("ParseID(valid) = %v", err)
	}
}
