package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// appendAttempts bounds the optimistic retry loop of RecordCompletion.
const appendAttempts = 3

// StudentProgress is one enrolled student's row in a trainer's plan overview.
type StudentProgress struct {
	StudentID         primitive.ObjectID        `json:"studentId"`
	CompletedWorkouts []domain.CompletedWorkout `json:"completedWorkouts"`
	CurrentDay        int                       `json:"currentDay"`
	LastUnlockTime    *time.Time                `json:"lastUnlockTime"`
	IsCompleted       bool                      `json:"isCompleted"`
}

// ProgressService tracks subjects through plans under the one workout per
// calendar day rule. kind selects catalog or trainer plans.
type ProgressService interface {
	StartOrGet(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) (progress *domain.Progress, isNew bool, err error)
	RecordCompletion(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID, completedDay int) (*domain.ProgressSummary, error)
	ResetTimer(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) error
	GetProgress(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) (*domain.Progress, error)
	ListPlanProgress(ctx context.Context, trainerID, planID primitive.ObjectID) ([]StudentProgress, error)
}

type progressService struct {
	progressRepo repository.ProgressRepository
	plans        map[domain.PlanKind]repository.PlanRepository
	clock        timeutil.Clock
	loc          *time.Location
	log          *logger.Logger
}

// NewProgressService creates a progress tracker. loc is the zone in which
// calendar days are compared for gating.
func NewProgressService(
	progressRepo repository.ProgressRepository,
	catalogPlans repository.PlanRepository,
	trainerPlans repository.PlanRepository,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) ProgressService {
	if loc == nil {
		loc = time.UTC
	}
	return &progressService{
		progressRepo: progressRepo,
		plans: map[domain.PlanKind]repository.PlanRepository{
			domain.PlanKindCatalog: catalogPlans,
			domain.PlanKindTrainer: trainerPlans,
		},
		clock: clock,
		loc:   loc,
		log:   log,
	}
}

// loadPlan fetches the plan and, for trainer plans, checks that the subject
// is enrolled.
func (s *progressService) loadPlan(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) (*domain.Plan, error) {
	repo, ok := s.plans[kind]
	if !ok {
		return nil, ErrPlanNotFound
	}
	plan, err := repo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if kind == domain.PlanKindTrainer && !plan.HasStudent(subjectID) {
		return nil, ErrNotEnrolled
	}
	return plan, nil
}

func (s *progressService) getRecord(ctx context.Context, subjectID, planID primitive.ObjectID) (*domain.Progress, error) {
	p, err := s.progressRepo.GetBySubjectAndPlan(ctx, subjectID, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *progressService) StartOrGet(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) (*domain.Progress, bool, error) {
	existing, err := s.getRecord(ctx, subjectID, planID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrProgressNotFound) {
		return nil, false, err
	}
	if _, err := s.loadPlan(ctx, kind, subjectID, planID); err != nil {
		return nil, false, err
	}

	p := &domain.Progress{
		SubjectID:         subjectID,
		PlanID:            planID,
		PlanKind:          kind,
		CompletedWorkouts: []domain.CompletedWorkout{},
		CurrentDay:        1,
		StartDate:         s.clock.Now(),
	}
	if err := s.progressRepo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with a concurrent start; the winner's record is the one.
			existing, err := s.getRecord(ctx, subjectID, planID)
			return existing, false, err
		}
		return nil, false, err
	}
	s.log.WithFields(map[string]interface{}{"subjectId": subjectID.Hex(), "planId": planID.Hex()}).Info("plan started")
	return p, true, nil
}

// checkCompletion applies the completion rules to the current record.
func (s *progressService) checkCompletion(p *domain.Progress, day int, now time.Time) error {
	if p.HasCompleted(day) {
		return ErrDayAlreadyCompleted
	}
	if p.LastUnlockTime != nil && timeutil.SameCalendarDay(*p.LastUnlockTime, now, s.loc) {
		return &GatedError{NextWorkoutTime: timeutil.StartOfNextDay(*p.LastUnlockTime, s.loc)}
	}
	return nil
}

func (s *progressService) RecordCompletion(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID, completedDay int) (*domain.ProgressSummary, error) {
	p, err := s.getRecord(ctx, subjectID, planID)
	if err != nil {
		return nil, err
	}
	plan, err := s.loadPlan(ctx, kind, subjectID, planID)
	if err != nil {
		return nil, err
	}
	total := plan.Duration.TotalDays()
	if completedDay < 1 || completedDay > total {
		metrics.RecordCompletion("invalid")
		return nil, ErrInvalidDay
	}

	for attempt := 1; ; attempt++ {
		now := s.clock.Now()
		if err := s.checkCompletion(p, completedDay, now); err != nil {
			metrics.RecordCompletion(completionResult(err))
			return nil, err
		}

		entry := domain.CompletedWorkout{
			WeekNumber:    plan.Duration.WeekOf(completedDay),
			DayNumber:     completedDay,
			CompletedDate: now,
		}
		err := s.progressRepo.AppendCompletion(ctx, p.ID, p.Version, entry, completedDay+1)
		if err == nil {
			p.CompletedWorkouts = append(p.CompletedWorkouts, entry)
			p.CurrentDay = completedDay + 1
			p.LastUnlockTime = &entry.CompletedDate
			metrics.RecordCompletion("accepted")
			return &domain.ProgressSummary{
				CompletedWorkouts: p.CompletedWorkouts,
				CurrentDay:        p.CurrentDay,
				LastUnlockTime:    p.LastUnlockTime,
				IsCompleted:       len(p.CompletedWorkouts) >= total,
			}, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		if attempt == appendAttempts {
			metrics.RecordCompletion("conflict")
			return nil, ErrConcurrentUpdate
		}
		// Someone else wrote first; re-validate against their result.
		if p, err = s.getRecord(ctx, subjectID, planID); err != nil {
			return nil, err
		}
	}
}

func completionResult(err error) string {
	switch {
	case errors.Is(err, ErrDayAlreadyCompleted):
		return "duplicate"
	case errors.Is(err, ErrWorkoutAlreadyToday):
		return "gated"
	default:
		return "error"
	}
}

func (s *progressService) ResetTimer(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) error {
	if _, err := s.loadPlan(ctx, kind, subjectID, planID); err != nil {
		return err
	}
	if err := s.progressRepo.ResetTimer(ctx, subjectID, planID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgressNotFound
		}
		return err
	}
	s.log.WithFields(map[string]interface{}{"subjectId": subjectID.Hex(), "planId": planID.Hex()}).Info("unlock timer reset")
	return nil
}

func (s *progressService) GetProgress(ctx context.Context, kind domain.PlanKind, subjectID, planID primitive.ObjectID) (*domain.Progress, error) {
	if _, err := s.loadPlan(ctx, kind, subjectID, planID); err != nil {
		return nil, err
	}
	return s.getRecord(ctx, subjectID, planID)
}

// ListPlanProgress reports every enrolled student of a trainer plan. Students
// who have not started are listed with CurrentDay 0.
func (s *progressService) ListPlanProgress(ctx context.Context, trainerID, planID primitive.ObjectID) ([]StudentProgress, error) {
	plan, err := s.plans[domain.PlanKindTrainer].GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.TrainerID == nil || *plan.TrainerID != trainerID {
		return nil, ErrNotPlanOwner
	}

	records, err := s.progressRepo.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	bySubject := make(map[primitive.ObjectID]domain.Progress, len(records))
	for _, r := range records {
		bySubject[r.SubjectID] = r
	}

	total := plan.Duration.TotalDays()
	out := make([]StudentProgress, 0, len(plan.Students))
	for _, studentID := range plan.Students {
		row := StudentProgress{StudentID: studentID, CompletedWorkouts: []domain.CompletedWorkout{}}
		if r, ok := bySubject[studentID]; ok {
			row.CompletedWorkouts = r.CompletedWorkouts
			row.CurrentDay = r.CurrentDay
			row.LastUnlockTime = r.LastUnlockTime
			row.IsCompleted = len(r.CompletedWorkouts) >= total
		}
		out = append(out, row)
	}
	return out, nil
}
