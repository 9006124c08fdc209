package service

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error categories. Handlers switch on these with errors.Is; every specific
// error below matches exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrMalformedInput   = errors.New("malformed input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPaymentFailed    = errors.New("payment failed")
)

// kindError is a specific error that also matches its category.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrUserNotFound     = newError(ErrNotFound, "user not found")
	ErrPlanNotFound     = newError(ErrNotFound, "plan not found")
	ErrProgressNotFound = newError(ErrNotFound, "progress not found, start the plan first")
	ErrBookingNotFound  = newError(ErrNotFound, "schedule not found")
	ErrOrderNotFound    = newError(ErrNotFound, "order not found")
	ErrMediaNotFound    = newError(ErrNotFound, "no image has been uploaded")

	ErrAuthenticationFailed = newError(ErrUnauthorized, "authentication failed: invalid email or password")

	ErrNotEnrolled        = newError(ErrForbidden, "student is not enrolled in this plan")
	ErrNotPlanOwner       = newError(ErrForbidden, "plan belongs to another trainer")
	ErrNotBookingOwner    = newError(ErrForbidden, "schedule belongs to another trainer")
	ErrTrainerOnly        = newError(ErrForbidden, "only trainers can manage schedules")
	ErrStudentNotEligible = newError(ErrForbidden, "student does not have an active premium membership")
	ErrNotBookingStudent  = newError(ErrForbidden, "schedule belongs to another student")
	ErrForeignObjectKey   = newError(ErrForbidden, "object key was not issued to this user")

	ErrDayAlreadyCompleted   = newError(ErrConflict, "day already completed")
	ErrWorkoutAlreadyToday   = newError(ErrConflict, "only one workout per day, come back tomorrow")
	ErrConcurrentUpdate      = newError(ErrConflict, "progress was updated concurrently, retry")
	ErrBookingOverlap        = newError(ErrConflict, "time slot overlaps an existing schedule")
	ErrStudentAlreadyBooked  = newError(ErrConflict, "student already has a schedule on this date")
	ErrBookingNotPending     = newError(ErrConflict, "schedule has already been answered")
	ErrOrderAlreadyConfirmed = newError(ErrConflict, "order already confirmed")
	ErrUserAlreadyExists     = newError(ErrConflict, "user with this email already exists")

	ErrInvalidDay          = newError(ErrMalformedInput, "completedDay is outside the plan")
	ErrInvalidDuration     = newError(ErrMalformedInput, "duration must have at least one week and one day per week")
	ErrInvalidTimeRange    = newError(ErrMalformedInput, "invalid time range")
	ErrOutsideWorkingHours = newError(ErrMalformedInput, "time range is outside working hours")
	ErrMalformedCallback   = newError(ErrMalformedInput, "malformed payment callback")
	ErrInvalidAmount       = newError(ErrMalformedInput, "amount does not match the order")
	ErrInvalidMonths       = newError(ErrMalformedInput, "duration in months is out of range")
	ErrInvalidRole         = newError(ErrMalformedInput, "invalid role")
	ErrInvalidStatus       = newError(ErrMalformedInput, "status must be accepted or rejected")
	ErrMissingTitle        = newError(ErrMalformedInput, "plan title cannot be empty")
	ErrInvalidPlanDay      = newError(ErrMalformedInput, "plan day number is outside the plan duration")
	ErrUnsupportedImage    = newError(ErrMalformedInput, "content type must be image/jpeg, image/png, image/webp or image/gif")
	ErrMissingCredentials  = newError(ErrMalformedInput, "name, email and password cannot be empty")
)

// GatedError is ErrWorkoutAlreadyToday with the earliest time the next
// completion is accepted.
type GatedError struct {
	NextWorkoutTime time.Time
}

func (e *GatedError) Error() string { return ErrWorkoutAlreadyToday.Error() }

func (e *GatedError) Is(target error) bool {
	return target == ErrWorkoutAlreadyToday || target == ErrConflict
}

// PaymentDeclinedError carries the gateway response code of a declined payment.
type PaymentDeclinedError struct {
	Code string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined with code %s", e.Code)
}

func (e *PaymentDeclinedError) Is(target error) bool { return target == ErrPaymentFailed }

// ParseID converts a hex id from a path or token into an ObjectID. Failures
// are reported as malformed input.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", ErrMalformedInput, hex)
	}
	return id, nil
}
