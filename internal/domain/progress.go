package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompletedWorkout is one entry of the append-only completion log.
type CompletedWorkout struct {
	WeekNumber    int       `bson:"weekNumber" json:"weekNumber"`
	DayNumber     int       `bson:"dayNumber" json:"dayNumber"`
	CompletedDate time.Time `bson:"completedDate" json:"completedDate"`
}

// Progress tracks one subject through one plan. Exactly one record exists
// per (SubjectID, PlanID); Version is bumped on every mutation and used as an
// optimistic-concurrency token.
type Progress struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SubjectID         primitive.ObjectID `bson:"subjectId" json:"subjectId"`
	PlanID            primitive.ObjectID `bson:"planId" json:"planId"`
	PlanKind          PlanKind           `bson:"planKind" json:"planKind"`
	CompletedWorkouts []CompletedWorkout `bson:"completedWorkouts" json:"completedWorkouts"`
	CurrentDay        int                `bson:"currentDay" json:"currentDay"`
	LastUnlockTime    *time.Time         `bson:"lastUnlockTime" json:"lastUnlockTime"`
	StartDate         time.Time          `bson:"startDate" json:"startDate"`
	Version           int64              `bson:"version" json:"-"`
}

// HasCompleted reports whether day already appears in the completion log.
func (p *Progress) HasCompleted(day int) bool {
	for _, w := range p.CompletedWorkouts {
		if w.DayNumber == day {
			return true
		}
	}
	return false
}

// ProgressSummary is returned after a successful completion.
type ProgressSummary struct {
	CompletedWorkouts []CompletedWorkout `json:"completedWorkouts"`
	CurrentDay        int                `json:"currentDay"`
	LastUnlockTime    *time.Time         `json:"lastUnlockTime"`
	IsCompleted       bool               `json:"isCompleted"`
}
