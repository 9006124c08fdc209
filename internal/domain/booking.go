package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingStatus type for booking lifecycle
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingRejected BookingStatus = "rejected"
)

// Booking is a trainer-student session. Date is the UTC midnight of the
// session day; StartTime and EndTime are "HH:MM" on that day.
type Booking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID primitive.ObjectID `bson:"ptId" json:"ptId"`
	StudentID primitive.ObjectID `bson:"studentId" json:"studentId"`
	Date      time.Time          `bson:"date" json:"date"`
	StartTime string             `bson:"startTime" json:"startTime"`
	EndTime   string             `bson:"endTime" json:"endTime"`
	Status    BookingStatus      `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TimeSlot is a half-open [Start, End) interval of "HH:MM" strings.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailableSlots is the working window for a day and the booked sub-intervals.
// Free gaps are left for the caller to compute.
type AvailableSlots struct {
	WorkingHours TimeSlot   `json:"workingHours"`
	BookedSlots  []TimeSlot `json:"bookedSlots"`
}
