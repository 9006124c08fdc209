package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanKind distinguishes self-serve catalog plans from trainer-authored plans.
type PlanKind string

const (
	PlanKindCatalog PlanKind = "catalog"
	PlanKindTrainer PlanKind = "trainer"
)

// Duration is the fixed shape of a plan. Days are numbered 1..Weeks*DaysPerWeek
// across the whole plan.
type Duration struct {
	Weeks       int `bson:"weeks" json:"weeks"`
	DaysPerWeek int `bson:"daysPerWeek" json:"daysPerWeek"`
}

// TotalDays is the number of addressable days in the plan.
func (d Duration) TotalDays() int {
	return d.Weeks * d.DaysPerWeek
}

// WeekOf returns the week number an absolute day falls in.
func (d Duration) WeekOf(day int) int {
	if d.DaysPerWeek <= 0 || day <= 0 {
		return 0
	}
	return (day + d.DaysPerWeek - 1) / d.DaysPerWeek
}

func (d Duration) Valid() bool {
	return d.Weeks >= 1 && d.DaysPerWeek >= 1
}

// ExerciseRef is an exercise slot inside a plan day.
type ExerciseRef struct {
	ExerciseID *primitive.ObjectID `bson:"exerciseId,omitempty" json:"exerciseId,omitempty"`
	Name       string              `bson:"name" json:"name"`
	Duration   int                 `bson:"duration,omitempty" json:"duration,omitempty"` // Seconds
	Sets       int                 `bson:"sets" json:"sets"`
	Reps       int                 `bson:"reps,omitempty" json:"reps,omitempty"`
	Type       string              `bson:"type,omitempty" json:"type,omitempty"`
	GifURL     string              `bson:"gifUrl,omitempty" json:"gifUrl,omitempty"`
}

type Day struct {
	DayNumber int           `bson:"dayNumber" json:"dayNumber"`
	Exercises []ExerciseRef `bson:"exercises" json:"exercises"`
	Level     string        `bson:"level,omitempty" json:"level,omitempty"`
	TotalTime string        `bson:"totalTime,omitempty" json:"totalTime,omitempty"`
	FocusArea []string      `bson:"focusArea,omitempty" json:"focusArea,omitempty"`
}

type Week struct {
	WeekNumber int   `bson:"weekNumber" json:"weekNumber"`
	Days       []Day `bson:"days" json:"days"`
}

// Plan is either a catalog plan or a trainer plan. Trainer plans carry the
// authoring trainer and the enrolled students.
type Plan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind        PlanKind           `bson:"kind" json:"kind"`
	Title       string             `bson:"title" json:"title"`
	Subtitle    string             `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsPro       bool               `bson:"isPro" json:"isPro"`
	CoverKey    string             `bson:"coverKey,omitempty" json:"-"`
	Duration    Duration           `bson:"duration" json:"duration"`
	Weeks       []Week             `bson:"weeks" json:"weeks"`

	// --- Trainer plans only ---
	TrainerID *primitive.ObjectID  `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
	Students  []primitive.ObjectID `bson:"students,omitempty" json:"students,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasStudent reports whether the student is enrolled in a trainer plan.
func (p *Plan) HasStudent(studentID primitive.ObjectID) bool {
	for _, id := range p.Students {
		if id == studentID {
			return true
		}
	}
	return false
}
