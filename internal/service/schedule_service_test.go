package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/testutil"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type scheduleFixture struct {
	svc      ScheduleService
	bookings *testutil.MockBookingRepository
	users    *testutil.MockUserRepository
	clock    *testutil.FakeClock
	trainer  primitive.ObjectID
	student  primitive.ObjectID
}

var sessionDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newScheduleFixture(t *testing.T, oneSessionPerDay bool) *scheduleFixture {
	t.Helper()
	pf := newPremiumFixture(t, false)
	f := &scheduleFixture{
		bookings: testutil.NewMockBookingRepository(),
		users:    pf.users,
		clock:    pf.clock,
	}
	expiry := pf.clock.Now().AddDate(0, 1, 0)
	f.trainer = f.users.Add(domain.User{Name: "Coach", Email: "pt@x.io", Role: domain.RoleTrainer})
	f.student = f.users.Add(domain.User{Name: "Lan", Email: "lan@x.io", Role: domain.RolePremium, PremiumExpireDate: &expiry})
	cfg := config.ScheduleConfig{WorkStart: "09:00", WorkEnd: "17:00", OneBookingPerStudentDay: oneSessionPerDay}
	f.svc = NewScheduleService(f.bookings, f.users, pf.svc, cfg, logger.Nop())
	return f
}

func (f *scheduleFixture) book(t *testing.T, start, end string) (*domain.Booking, error) {
	t.Helper()
	return f.svc.CreateBooking(context.Background(), f.trainer, BookingInput{
		StudentID: f.student, Date: sessionDay, StartTime: start, EndTime: end,
	})
}

func TestCreateBooking_Overlap(t *testing.T) {
	f := newScheduleFixture(t, false)
	first, err := f.book(t, "09:00", "10:00")
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if first.Status != domain.BookingPending {
		t.Errorf("status = %q, want pending", first.Status)
	}

	if _, err := f.book(t, "09:30", "10:30"); !errors.Is(err, ErrBookingOverlap) {
		t.Errorf("overlapping booking err = %v, want ErrBookingOverlap", err)
	}
	if !errors.Is(ErrBookingOverlap, ErrConflict) {
		t.Error("overlap must be a conflict")
	}
	if _, err := f.book(t, "10:00", "11:00"); err != nil {
		t.Errorf("adjacent booking should succeed: %v", err)
	}
	if n := len(f.bookings.Bookings); n != 2 {
		t.Errorf("bookings stored = %d, want 2", n)
	}
}

func TestCreateBooking_RejectedSlotIsFree(t *testing.T) {
	f := newScheduleFixture(t, false)
	first, err := f.book(t, "09:00", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RespondToBooking(context.Background(), f.student, first.ID, domain.BookingRejected); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book(t, "09:00", "10:00"); err != nil {
		t.Errorf("rebooking a rejected slot: %v", err)
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newScheduleFixture(t, false)
	ctx := context.Background()
	freeID := f.users.Add(domain.User{Name: "Free", Email: "free@x.io", Role: domain.RoleFree})
	past := f.clock.Now().Add(-time.Hour)
	lapsedID := f.users.Add(domain.User{Name: "Lapsed", Email: "old@x.io", Role: domain.RolePremium, PremiumExpireDate: &past})

	tests := []struct {
		name    string
		caller  primitive.ObjectID
		student primitive.ObjectID
		start   string
		end     string
		want    error
	}{
		{"caller not trainer", f.student, f.student, "09:00", "10:00", ErrTrainerOnly},
		{"unknown caller", primitive.NewObjectID(), f.student, "09:00", "10:00", ErrTrainerOnly},
		{"unknown student", f.trainer, primitive.NewObjectID(), "09:00", "10:00", ErrUserNotFound},
		{"free student", f.trainer, freeID, "09:00", "10:00", ErrStudentNotEligible},
		{"lapsed premium", f.trainer, lapsedID, "09:00", "10:00", ErrStudentNotEligible},
		{"end before start", f.trainer, f.student, "10:00", "09:00", ErrInvalidTimeRange},
		{"bad clock", f.trainer, f.student, "9am", "10:00", ErrInvalidTimeRange},
		{"outside hours", f.trainer, f.student, "16:30", "17:30", ErrOutsideWorkingHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, tt.caller, BookingInput{
				StudentID: tt.student, Date: sessionDay, StartTime: tt.start, EndTime: tt.end,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got := f.users.Get(lapsedID); got.Role != domain.RoleFree {
		t.Errorf("lapsed student role = %q, want free after normalization", got.Role)
	}
}

func TestCreateBooking_OneSessionPerStudentDay(t *testing.T) {
	f := newScheduleFixture(t, true)
	if _, err := f.book(t, "09:00", "10:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book(t, "13:00", "14:00"); !errors.Is(err, ErrStudentAlreadyBooked) {
		t.Errorf("err = %v, want ErrStudentAlreadyBooked", err)
	}

	g := newScheduleFixture(t, false)
	if _, err := g.book(t, "09:00", "10:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.book(t, "13:00", "14:00"); err != nil {
		t.Errorf("second session with rule off: %v", err)
	}
}

func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	f := newScheduleFixture(t, false)
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, "11:00", "12:00")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, ErrBookingOverlap):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
}

func TestUpdateBooking(t *testing.T) {
	f := newScheduleFixture(t, false)
	ctx := context.Background()
	a, err := f.book(t, "09:00", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.book(t, "11:00", "12:00")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RespondToBooking(ctx, f.student, a.ID, domain.BookingAccepted); err != nil {
		t.Fatal(err)
	}

	// Moving within its own slot must not conflict with itself.
	moved, err := f.svc.UpdateBooking(ctx, f.trainer, a.ID, BookingInput{Date: sessionDay, StartTime: "09:30", EndTime: "10:30"})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != domain.BookingPending {
		t.Errorf("rescheduled status = %q, want pending", moved.Status)
	}
	if moved.StudentID != f.student {
		t.Error("student should be kept when not supplied")
	}

	if _, err := f.svc.UpdateBooking(ctx, f.trainer, a.ID, BookingInput{Date: sessionDay, StartTime: "11:30", EndTime: "12:30"}); !errors.Is(err, ErrBookingOverlap) {
		t.Errorf("overlap with %s: err = %v", b.ID.Hex(), err)
	}

	other := f.users.Add(domain.User{Name: "Other", Email: "pt2@x.io", Role: domain.RoleTrainer})
	if _, err := f.svc.UpdateBooking(ctx, other, a.ID, BookingInput{Date: sessionDay, StartTime: "13:00", EndTime: "14:00"}); !errors.Is(err, ErrNotBookingOwner) {
		t.Errorf("foreign trainer: err = %v", err)
	}
	if _, err := f.svc.UpdateBooking(ctx, f.trainer, primitive.NewObjectID(), BookingInput{Date: sessionDay, StartTime: "13:00", EndTime: "14:00"}); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("missing booking: err = %v", err)
	}
}

func TestDeleteBooking(t *testing.T) {
	f := newScheduleFixture(t, false)
	ctx := context.Background()
	a, err := f.book(t, "09:00", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	other := f.users.Add(domain.User{Name: "Other", Email: "pt2@x.io", Role: domain.RoleTrainer})
	if err := f.svc.DeleteBooking(ctx, other, a.ID); !errors.Is(err, ErrNotBookingOwner) {
		t.Errorf("foreign delete err = %v", err)
	}
	if err := f.svc.DeleteBooking(ctx, f.trainer, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteBooking(ctx, f.trainer, a.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestRespondToBooking(t *testing.T) {
	f := newScheduleFixture(t, false)
	ctx := context.Background()
	a, err := f.book(t, "09:00", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RespondToBooking(ctx, f.student, a.ID, domain.BookingPending); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("pending as answer: err = %v", err)
	}
	if _, err := f.svc.RespondToBooking(ctx, f.trainer, a.ID, domain.BookingAccepted); !errors.Is(err, ErrNotBookingStudent) {
		t.Errorf("trainer answering: err = %v", err)
	}
	got, err := f.svc.RespondToBooking(ctx, f.student, a.ID, domain.BookingAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.BookingAccepted {
		t.Errorf("status = %q", got.Status)
	}
	if _, err := f.svc.RespondToBooking(ctx, f.student, a.ID, domain.BookingRejected); !errors.Is(err, ErrBookingNotPending) {
		t.Errorf("second answer: err = %v", err)
	}
}

func TestListAndAvailableSlots(t *testing.T) {
	f := newScheduleFixture(t, false)
	ctx := context.Background()
	for _, slot := range [][2]string{{"13:00", "14:00"}, {"09:00", "10:00"}} {
		if _, err := f.book(t, slot[0], slot[1]); err != nil {
			t.Fatal(err)
		}
	}
	nextDay := sessionDay.AddDate(0, 0, 1)
	if _, err := f.svc.CreateBooking(ctx, f.trainer, BookingInput{StudentID: f.student, Date: nextDay, StartTime: "09:00", EndTime: "10:00"}); err != nil {
		t.Fatal(err)
	}

	all, err := f.svc.List(ctx, f.trainer, true, nil, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("trainer list = %d, %v", len(all), err)
	}
	day := sessionDay.Add(15 * time.Hour)
	onDay, err := f.svc.List(ctx, f.student, false, &day, &day)
	if err != nil || len(onDay) != 2 {
		t.Fatalf("student list for day = %d, %v", len(onDay), err)
	}
	if onDay[0].StartTime != "09:00" {
		t.Errorf("list not ordered by start time: %+v", onDay)
	}
	if _, err := f.svc.List(ctx, f.trainer, true, &nextDay, &sessionDay); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("inverted range err = %v", err)
	}

	slots, err := f.svc.AvailableSlots(ctx, f.trainer, sessionDay)
	if err != nil {
		t.Fatal(err)
	}
	if slots.WorkingHours != (domain.TimeSlot{Start: "09:00", End: "17:00"}) {
		t.Errorf("working hours = %+v", slots.WorkingHours)
	}
	if len(slots.BookedSlots) != 2 || slots.BookedSlots[0].Start != "09:00" {
		t.Errorf("booked = %+v", slots.BookedSlots)
	}

	empty, err := f.svc.AvailableSlots(ctx, f.trainer, sessionDay.AddDate(0, 0, 7))
	if err != nil || empty.BookedSlots == nil || len(empty.BookedSlots) != 0 {
		t.Errorf("empty day = %+v, %v", empty, err)
	}
}
