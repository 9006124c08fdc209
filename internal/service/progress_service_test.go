package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/testutil"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type progressFixture struct {
	svc      ProgressService
	progress *testutil.MockProgressRepository
	catalog  *testutil.MockPlanRepository
	trainer  *testutil.MockPlanRepository
	clock    *testutil.FakeClock
}

func newProgressFixture(t *testing.T, loc *time.Location) *progressFixture {
	t.Helper()
	f := &progressFixture{
		progress: testutil.NewMockProgressRepository(),
		catalog:  testutil.NewMockPlanRepository(domain.PlanKindCatalog),
		trainer:  testutil.NewMockPlanRepository(domain.PlanKindTrainer),
		clock:    testutil.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	}
	f.svc = NewProgressService(f.progress, f.catalog, f.trainer, f.clock, loc, logger.Nop())
	return f
}

func (f *progressFixture) catalogPlan(weeks, daysPerWeek int) primitive.ObjectID {
	return f.catalog.Add(domain.Plan{
		Title:    "Full body",
		Duration: domain.Duration{Weeks: weeks, DaysPerWeek: daysPerWeek},
	})
}

func TestStartOrGet_Idempotent(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(2, 3)

	first, isNew, err := f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)
	if err != nil || !isNew {
		t.Fatalf("first start: isNew=%v err=%v", isNew, err)
	}
	if first.CurrentDay != 1 || first.LastUnlockTime != nil || len(first.CompletedWorkouts) != 0 {
		t.Errorf("fresh record = %+v", first)
	}

	second, isNew, err := f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)
	if err != nil || isNew {
		t.Fatalf("second start: isNew=%v err=%v", isNew, err)
	}
	if second.ID != first.ID {
		t.Errorf("second start returned a different record")
	}
	if f.progress.Count() != 1 {
		t.Errorf("records = %d, want 1", f.progress.Count())
	}
}

func TestStartOrGet_ConcurrentStartsCreateOneRecord(t *testing.T) {
	f := newProgressFixture(t, nil)
	user := primitive.NewObjectID()
	plan := f.catalogPlan(1, 1)

	var wg sync.WaitGroup
	ids := make([]primitive.ObjectID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := f.svc.StartOrGet(context.Background(), domain.PlanKindCatalog, user, plan)
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	if f.progress.Count() != 1 {
		t.Fatalf("records = %d, want 1", f.progress.Count())
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("starts returned different records")
		}
	}
}

func TestStartOrGet_PlanMissing(t *testing.T) {
	f := newProgressFixture(t, nil)
	_, _, err := f.svc.StartOrGet(context.Background(), domain.PlanKindCatalog, primitive.NewObjectID(), primitive.NewObjectID())
	if !errors.Is(err, ErrPlanNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want plan not found", err)
	}
}

func TestRecordCompletion_DailyGatingScenario(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(2, 3)

	if _, _, err := f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan); err != nil {
		t.Fatal(err)
	}

	sum, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1)
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	if sum.CurrentDay != 2 || sum.IsCompleted || len(sum.CompletedWorkouts) != 1 {
		t.Errorf("after day 1: %+v", sum)
	}
	if !sum.LastUnlockTime.Equal(f.clock.Now()) {
		t.Errorf("lastUnlockTime = %v", sum.LastUnlockTime)
	}

	f.clock.Advance(10 * time.Hour) // 18:00 the same day
	_, err = f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 2)
	if !errors.Is(err, ErrWorkoutAlreadyToday) {
		t.Fatalf("same-day day 2: err = %v", err)
	}
	var gated *GatedError
	if !errors.As(err, &gated) || !gated.NextWorkoutTime.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("gated error = %#v, want next workout at 2024-05-02 midnight", err)
	}

	f.clock.Set(time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC))
	sum, err = f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 2)
	if err != nil {
		t.Fatalf("next-day day 2: %v", err)
	}
	if sum.CurrentDay != 3 {
		t.Errorf("currentDay = %d, want 3", sum.CurrentDay)
	}
}

func TestRecordCompletion_GatingIgnoresDayNumber(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(2, 3)
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)

	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 4); err != nil {
		t.Fatal(err)
	}
	for _, day := range []int{1, 2, 3, 5, 6} {
		if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, day); !errors.Is(err, ErrConflict) {
			t.Errorf("day %d on the same calendar day: err = %v", day, err)
		}
	}
}

func TestRecordCompletion_Validation(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(1, 3)

	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("before start: err = %v", err)
	}
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)

	for _, day := range []int{0, -1, 4} {
		if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, day); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("day %d: err = %v, want malformed input", day, err)
		}
	}

	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(24 * time.Hour)
	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1); !errors.Is(err, ErrDayAlreadyCompleted) {
		t.Errorf("repeat day 1: err = %v", err)
	}
}

func TestRecordCompletion_CompletionDetection(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(2, 2)
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)

	wantWeeks := []int{1, 1, 2, 2}
	for day := 1; day <= 4; day++ {
		sum, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, day)
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if got := sum.CompletedWorkouts[day-1].WeekNumber; got != wantWeeks[day-1] {
			t.Errorf("day %d week = %d, want %d", day, got, wantWeeks[day-1])
		}
		if sum.IsCompleted != (day == 4) {
			t.Errorf("day %d isCompleted = %v", day, sum.IsCompleted)
		}
		f.clock.Advance(24 * time.Hour)
	}
}

func TestRecordCompletion_ConcurrentSameDay(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(4, 7)
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for day := 1; day <= 10; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, day)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("day %d: unexpected error %v", day, err)
			}
		}(day)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	p, _ := f.svc.GetProgress(ctx, domain.PlanKindCatalog, user, plan)
	if len(p.CompletedWorkouts) != 1 {
		t.Errorf("completions = %d", len(p.CompletedWorkouts))
	}
}

func TestRecordCompletion_TimezoneDecidesCalendarDay(t *testing.T) {
	hcm, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	f := newProgressFixture(t, hcm)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(1, 7)
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)

	// 16:30 UTC is 23:30 in GMT+7; 17:30 UTC is already the next local day.
	f.clock.Set(time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC))
	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC))
	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 2); err != nil {
		t.Errorf("next local day rejected: %v", err)
	}
}

func TestResetTimer(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	user := primitive.NewObjectID()
	plan := f.catalogPlan(1, 3)

	if err := f.svc.ResetTimer(ctx, domain.PlanKindCatalog, user, plan); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("reset before start: %v", err)
	}
	f.svc.StartOrGet(ctx, domain.PlanKindCatalog, user, plan)
	f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 1)

	if err := f.svc.ResetTimer(ctx, domain.PlanKindCatalog, user, plan); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindCatalog, user, plan, 2); err != nil {
		t.Errorf("completion after reset: %v", err)
	}
}

func TestTrainerPlanRequiresEnrollment(t *testing.T) {
	f := newProgressFixture(t, nil)
	ctx := context.Background()
	trainer := primitive.NewObjectID()
	enrolled := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	plan := f.trainer.Add(domain.Plan{
		Title:     "Coached",
		Duration:  domain.Duration{Weeks: 1, DaysPerWeek: 2},
		TrainerID: &trainer,
		Students:  []primitive.ObjectID{enrolled},
	})

	if _, _, err := f.svc.StartOrGet(ctx, domain.PlanKindTrainer, outsider, plan); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider start: %v", err)
	}
	if _, _, err := f.svc.StartOrGet(ctx, domain.PlanKindTrainer, enrolled, plan); err != nil {
		t.Fatalf("enrolled start: %v", err)
	}
	if _, err := f.svc.RecordCompletion(ctx, domain.PlanKindTrainer, enrolled, plan, 1); err != nil {
		t.Fatalf("enrolled completion: %v", err)
	}
	// The same plan id is unknown to the catalog.
	if _, _, err := f.svc.StartOrGet(ctx, domain.PlanKindCatalog, enrolled, plan); err != nil {
		t.Errorf("existing record should be returned regardless of kind lookup: %v", err)
	}

	rows, err := f.svc.ListPlanProgress(ctx, trainer, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].CurrentDay != 2 || len(rows[0].CompletedWorkouts) != 1 {
		t.Errorf("rows = %+v", rows)
	}
	if _, err := f.svc.ListPlanProgress(ctx, primitive.NewObjectID(), plan); !errors.Is(err, ErrNotPlanOwner) {
		t.Errorf("foreign trainer: %v", err)
	}
}

func TestListPlanProgress_NotStartedStudents(t *testing.T) {
	f := newProgressFixture(t, nil)
	trainer := primitive.NewObjectID()
	student := primitive.NewObjectID()
	plan := f.trainer.Add(domain.Plan{
		Title:     "Coached",
		Duration:  domain.Duration{Weeks: 1, DaysPerWeek: 1},
		TrainerID: &trainer,
		Students:  []primitive.ObjectID{student},
	})

	rows, err := f.svc.ListPlanProgress(context.Background(), trainer, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].CurrentDay != 0 || rows[0].CompletedWorkouts == nil {
		t.Errorf("rows = %+v", rows)
	}
}
