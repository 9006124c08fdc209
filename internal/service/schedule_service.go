package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExpirationChecker normalizes premium state before eligibility checks.
type ExpirationChecker interface {
	CheckAndNormalizeExpiration(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
}

// BookingInput is the requested session. Date is any instant on the session
// day; only its UTC calendar date is kept.
type BookingInput struct {
	StudentID primitive.ObjectID
	Date      time.Time
	StartTime string
	EndTime   string
}

type ScheduleService interface {
	CreateBooking(ctx context.Context, trainerID primitive.ObjectID, in BookingInput) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, trainerID, bookingID primitive.ObjectID, in BookingInput) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, trainerID, bookingID primitive.ObjectID) error
	// RespondToBooking lets the booked student accept or reject a pending session.
	RespondToBooking(ctx context.Context, studentID, bookingID primitive.ObjectID, status domain.BookingStatus) (*domain.Booking, error)
	// List returns the caller's sessions between from and to (inclusive
	// dates, nil for unbounded). asTrainer selects the trainer view.
	List(ctx context.Context, userID primitive.ObjectID, asTrainer bool, from, to *time.Time) ([]domain.Booking, error)
	AvailableSlots(ctx context.Context, trainerID primitive.ObjectID, date time.Time) (*domain.AvailableSlots, error)
}

type scheduleService struct {
	bookingRepo repository.BookingRepository
	userRepo    repository.UserRepository
	premium     ExpirationChecker
	cfg         config.ScheduleConfig
	hours       timeutil.Interval
	log         *logger.Logger
}

func NewScheduleService(
	bookingRepo repository.BookingRepository,
	userRepo repository.UserRepository,
	premium ExpirationChecker,
	cfg config.ScheduleConfig,
	log *logger.Logger,
) ScheduleService {
	hours, err := timeutil.ParseInterval(cfg.WorkStart, cfg.WorkEnd)
	if err != nil {
		cfg.WorkStart, cfg.WorkEnd = "09:00", "17:00"
		hours = timeutil.Interval{Start: 9 * 60, End: 17 * 60}
	}
	return &scheduleService{
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		premium:     premium,
		cfg:         cfg,
		hours:       hours,
		log:         log,
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *scheduleService) parseSlot(start, end string) (timeutil.Interval, error) {
	slot, err := timeutil.ParseInterval(start, end)
	if err != nil {
		return timeutil.Interval{}, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	if !slot.Within(s.hours) {
		return timeutil.Interval{}, ErrOutsideWorkingHours
	}
	return slot, nil
}

func (s *scheduleService) requireTrainer(ctx context.Context, trainerID primitive.ObjectID) error {
	trainer, err := s.userRepo.GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTrainerOnly
		}
		return err
	}
	if !trainer.IsTrainer() {
		return ErrTrainerOnly
	}
	return nil
}

func (s *scheduleService) requireEligibleStudent(ctx context.Context, studentID primitive.ObjectID) error {
	student, err := s.premium.CheckAndNormalizeExpiration(ctx, studentID)
	if err != nil {
		return err
	}
	if !student.IsPremium() {
		return ErrStudentNotEligible
	}
	return nil
}

// checkConflicts must run under WithScheduleLock for b's trainer, student and date.
func (s *scheduleService) checkConflicts(ctx context.Context, b *domain.Booking, slot timeutil.Interval, exclude *primitive.ObjectID) error {
	day := b.Date
	if s.cfg.OneBookingPerStudentDay {
		theirs, err := s.bookingRepo.List(ctx, repository.BookingFilter{StudentID: &b.StudentID, From: &day, To: &day, ExcludeID: exclude})
		if err != nil {
			return err
		}
		for _, other := range theirs {
			if other.Status != domain.BookingRejected {
				return ErrStudentAlreadyBooked
			}
		}
	}

	existing, err := s.bookingRepo.List(ctx, repository.BookingFilter{TrainerID: &b.TrainerID, From: &day, To: &day, ExcludeID: exclude})
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Status == domain.BookingRejected {
			continue
		}
		otherSlot, err := timeutil.ParseInterval(other.StartTime, other.EndTime)
		if err != nil {
			s.log.Warnf("schedule %s has an unreadable time range %s-%s", other.ID.Hex(), other.StartTime, other.EndTime)
			continue
		}
		if slot.Overlaps(otherSlot) {
			return ErrBookingOverlap
		}
	}
	return nil
}

func (s *scheduleService) CreateBooking(ctx context.Context, trainerID primitive.ObjectID, in BookingInput) (*domain.Booking, error) {
	if err := s.requireTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	if err := s.requireEligibleStudent(ctx, in.StudentID); err != nil {
		return nil, err
	}
	slot, err := s.parseSlot(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	b := &domain.Booking{
		TrainerID: trainerID,
		StudentID: in.StudentID,
		Date:      dateOnly(in.Date),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Status:    domain.BookingPending,
	}
	err = s.bookingRepo.WithScheduleLock(ctx, trainerID, in.StudentID, b.Date, func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, b, slot, nil); err != nil {
			return err
		}
		_, err := s.bookingRepo.Create(ctx, b)
		return err
	})
	if err != nil {
		metrics.RecordBooking(bookingResult(err))
		return nil, err
	}
	metrics.RecordBooking("created")
	s.log.WithFields(map[string]interface{}{
		"scheduleId": b.ID.Hex(), "ptId": trainerID.Hex(), "studentId": in.StudentID.Hex(),
	}).Infof("schedule created for %s %s-%s", b.Date.Format(timeutil.DateLayout), b.StartTime, b.EndTime)
	return b, nil
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, ErrBookingOverlap):
		return "overlap"
	case errors.Is(err, ErrStudentAlreadyBooked):
		return "student_booked"
	default:
		return "error"
	}
}

func (s *scheduleService) ownedBooking(ctx context.Context, trainerID, bookingID primitive.ObjectID) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if b.TrainerID != trainerID {
		return nil, ErrNotBookingOwner
	}
	return b, nil
}

// UpdateBooking reschedules a session. A changed slot goes back to pending.
func (s *scheduleService) UpdateBooking(ctx context.Context, trainerID, bookingID primitive.ObjectID, in BookingInput) (*domain.Booking, error) {
	b, err := s.ownedBooking(ctx, trainerID, bookingID)
	if err != nil {
		return nil, err
	}
	slot, err := s.parseSlot(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	updated := *b
	if !in.StudentID.IsZero() && in.StudentID != b.StudentID {
		if err := s.requireEligibleStudent(ctx, in.StudentID); err != nil {
			return nil, err
		}
		updated.StudentID = in.StudentID
	}
	updated.Date = dateOnly(in.Date)
	updated.StartTime = in.StartTime
	updated.EndTime = in.EndTime
	if updated.Date != b.Date || updated.StartTime != b.StartTime || updated.EndTime != b.EndTime || updated.StudentID != b.StudentID {
		updated.Status = domain.BookingPending
	}

	err = s.bookingRepo.WithScheduleLock(ctx, trainerID, updated.StudentID, updated.Date, func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, &updated, slot, &b.ID); err != nil {
			return err
		}
		return s.bookingRepo.Update(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *scheduleService) DeleteBooking(ctx context.Context, trainerID, bookingID primitive.ObjectID) error {
	if _, err := s.ownedBooking(ctx, trainerID, bookingID); err != nil {
		return err
	}
	if err := s.bookingRepo.Delete(ctx, bookingID); err != nil {
		if errors.Is(err, repository.ErrDeleteFailed) {
			return ErrBookingNotFound
		}
		return err
	}
	return nil
}

func (s *scheduleService) RespondToBooking(ctx context.Context, studentID, bookingID primitive.ObjectID, status domain.BookingStatus) (*domain.Booking, error) {
	if status != domain.BookingAccepted && status != domain.BookingRejected {
		return nil, ErrInvalidStatus
	}
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if b.StudentID != studentID {
		return nil, ErrNotBookingStudent
	}
	if b.Status != domain.BookingPending {
		return nil, ErrBookingNotPending
	}
	if err := s.bookingRepo.UpdateStatus(ctx, bookingID, status); err != nil {
		return nil, err
	}
	b.Status = status
	return b, nil
}

func (s *scheduleService) List(ctx context.Context, userID primitive.ObjectID, asTrainer bool, from, to *time.Time) ([]domain.Booking, error) {
	f := repository.BookingFilter{}
	if asTrainer {
		f.TrainerID = &userID
	} else {
		f.StudentID = &userID
	}
	if from != nil {
		d := dateOnly(*from)
		f.From = &d
	}
	if to != nil {
		d := dateOnly(*to)
		f.To = &d
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: end date before start date", ErrMalformedInput)
	}
	return s.bookingRepo.List(ctx, f)
}

// AvailableSlots reports the working window and the booked intervals of a
// trainer's day. Computing the free gaps is left to the client.
func (s *scheduleService) AvailableSlots(ctx context.Context, trainerID primitive.ObjectID, date time.Time) (*domain.AvailableSlots, error) {
	day := dateOnly(date)
	bookings, err := s.bookingRepo.List(ctx, repository.BookingFilter{TrainerID: &trainerID, From: &day, To: &day})
	if err != nil {
		return nil, err
	}
	out := &domain.AvailableSlots{
		WorkingHours: domain.TimeSlot{Start: s.cfg.WorkStart, End: s.cfg.WorkEnd},
		BookedSlots:  []domain.TimeSlot{},
	}
	for _, b := range bookings {
		if b.Status == domain.BookingRejected {
			continue
		}
		out.BookedSlots = append(out.BookedSlots, domain.TimeSlot{Start: b.StartTime, End: b.EndTime})
	}
	return out, nil
}
