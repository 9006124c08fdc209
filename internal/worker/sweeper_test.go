package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/pkg/logger"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func TestRunOnce(t *testing.T) {
	s := &countingSweeper{}
	w := NewPremiumSweeper(s, "@hourly", logger.Nop())
	n, err := w.RunOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}

	s.err = errors.New("db down")
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected sweep error")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewPremiumSweeper(&countingSweeper{}, "every tuesday", logger.Nop())
	if err := w.Start(); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestStartStop(t *testing.T) {
	s := &countingSweeper{}
	w := NewPremiumSweeper(s, "@every 10ms", logger.Nop())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
	if s.calls.Load() == 0 {
		t.Fatal("sweep never ran")
	}

	after := s.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := s.calls.Load(); got != after {
		t.Errorf("sweeps after Stop: %d -> %d", after, got)
	}
	w.Stop(ctx)
}
