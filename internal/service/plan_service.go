package service

import (
	"context"
	"errors"
	"strings"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanService interface {
	ListCatalog(ctx context.Context) ([]domain.Plan, error)
	GetCatalogPlan(ctx context.Context, planID primitive.ObjectID) (*domain.Plan, error)
	CreateCatalogPlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error)

	CreateTrainerPlan(ctx context.Context, trainerID primitive.ObjectID, plan *domain.Plan) (*domain.Plan, error)
	ListTrainerPlans(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Plan, error)
	GetTrainerPlan(ctx context.Context, trainerID, planID primitive.ObjectID) (*domain.Plan, error)
	UpdateTrainerPlan(ctx context.Context, trainerID primitive.ObjectID, plan *domain.Plan) (*domain.Plan, error)
	DeleteTrainerPlan(ctx context.Context, trainerID, planID primitive.ObjectID) error

	// ListEnrolledPlans returns the trainer plans a student is enrolled in.
	ListEnrolledPlans(ctx context.Context, studentID primitive.ObjectID) ([]domain.Plan, error)
	GetEnrolledPlan(ctx context.Context, studentID, planID primitive.ObjectID) (*domain.Plan, error)
}

type planService struct {
	catalogRepo repository.PlanRepository
	trainerRepo repository.PlanRepository
	userRepo    repository.UserRepository
	log         *logger.Logger
}

func NewPlanService(catalogRepo, trainerRepo repository.PlanRepository, userRepo repository.UserRepository, log *logger.Logger) PlanService {
	return &planService{
		catalogRepo: catalogRepo,
		trainerRepo: trainerRepo,
		userRepo:    userRepo,
		log:         log,
	}
}

// validatePlan checks the duration and that every listed day is addressable.
func validatePlan(plan *domain.Plan) error {
	plan.Title = strings.TrimSpace(plan.Title)
	if plan.Title == "" {
		return ErrMissingTitle
	}
	if !plan.Duration.Valid() {
		return ErrInvalidDuration
	}
	total := plan.Duration.TotalDays()
	for _, w := range plan.Weeks {
		if w.WeekNumber < 1 || w.WeekNumber > plan.Duration.Weeks {
			return ErrInvalidPlanDay
		}
		for _, d := range w.Days {
			if d.DayNumber < 1 || d.DayNumber > total || plan.Duration.WeekOf(d.DayNumber) != w.WeekNumber {
				return ErrInvalidPlanDay
			}
		}
	}
	if plan.Weeks == nil {
		plan.Weeks = []domain.Week{}
	}
	return nil
}

func getPlan(ctx context.Context, repo repository.PlanRepository, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := repo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) ListCatalog(ctx context.Context) ([]domain.Plan, error) {
	return s.catalogRepo.List(ctx, repository.PlanFilter{})
}

func (s *planService) GetCatalogPlan(ctx context.Context, planID primitive.ObjectID) (*domain.Plan, error) {
	return getPlan(ctx, s.catalogRepo, planID)
}

func (s *planService) CreateCatalogPlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	plan.Kind = domain.PlanKindCatalog
	plan.TrainerID = nil
	plan.Students = nil
	id, err := s.catalogRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id
	s.log.With("planId", id.Hex()).Infof("catalog plan %q created", plan.Title)
	return plan, nil
}

// checkStudents verifies every enrolled id names an existing account and
// drops duplicates.
func (s *planService) checkStudents(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *planService) CreateTrainerPlan(ctx context.Context, trainerID primitive.ObjectID, plan *domain.Plan) (*domain.Plan, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	students, err := s.checkStudents(ctx, plan.Students)
	if err != nil {
		return nil, err
	}
	plan.Kind = domain.PlanKindTrainer
	plan.TrainerID = &trainerID
	plan.Students = students

	id, err := s.trainerRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id
	s.log.WithFields(map[string]interface{}{"planId": id.Hex(), "ptId": trainerID.Hex()}).
		Infof("trainer plan %q created with %d students", plan.Title, len(students))
	return plan, nil
}

func (s *planService) ListTrainerPlans(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Plan, error) {
	return s.trainerRepo.List(ctx, repository.PlanFilter{TrainerID: &trainerID})
}

func (s *planService) GetTrainerPlan(ctx context.Context, trainerID, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := getPlan(ctx, s.trainerRepo, planID)
	if err != nil {
		return nil, err
	}
	if plan.TrainerID == nil || *plan.TrainerID != trainerID {
		return nil, ErrNotPlanOwner
	}
	return plan, nil
}

func (s *planService) UpdateTrainerPlan(ctx context.Context, trainerID primitive.ObjectID, plan *domain.Plan) (*domain.Plan, error) {
	current, err := s.GetTrainerPlan(ctx, trainerID, plan.ID)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	students, err := s.checkStudents(ctx, plan.Students)
	if err != nil {
		return nil, err
	}
	plan.Kind = domain.PlanKindTrainer
	plan.TrainerID = &trainerID
	plan.Students = students
	plan.CoverKey = current.CoverKey
	plan.CreatedAt = current.CreatedAt
	if err := s.trainerRepo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) DeleteTrainerPlan(ctx context.Context, trainerID, planID primitive.ObjectID) error {
	if _, err := s.GetTrainerPlan(ctx, trainerID, planID); err != nil {
		return err
	}
	if err := s.trainerRepo.Delete(ctx, planID, trainerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}

func (s *planService) ListEnrolledPlans(ctx context.Context, studentID primitive.ObjectID) ([]domain.Plan, error) {
	return s.trainerRepo.List(ctx, repository.PlanFilter{StudentID: &studentID})
}

func (s *planService) GetEnrolledPlan(ctx context.Context, studentID, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := getPlan(ctx, s.trainerRepo, planID)
	if err != nil {
		return nil, err
	}
	if !plan.HasStudent(studentID) {
		return nil, ErrNotEnrolled
	}
	return plan, nil
}
