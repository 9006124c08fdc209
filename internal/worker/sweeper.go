package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/fitness-coach/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper is the part of the premium lifecycle the scheduler drives.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// PremiumSweeper periodically downgrades premium users whose expiry passed.
// Lazy normalization on read stays authoritative; the sweep only keeps
// stored roles from going stale for users who never come back.
type PremiumSweeper struct {
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewPremiumSweeper(sweeper Sweeper, schedule string, log *logger.Logger) *PremiumSweeper {
	return &PremiumSweeper{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  time.Minute,
		log:      log,
	}
}

// Start registers the sweep and starts the scheduler.
func (w *PremiumSweeper) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		return errors.New("premium sweeper is already running")
	}

	// SkipIfStillRunning keeps a slow sweep from overlapping the next tick.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { _, _ = w.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.schedule, err)
	}
	c.Start()
	w.scheduler = c
	w.log.Infof("premium sweeper scheduled with %q", w.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep, or until ctx ends.
func (w *PremiumSweeper) Stop(ctx context.Context) {
	w.mu.Lock()
	c := w.scheduler
	w.scheduler = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		w.log.Warnf("premium sweeper did not stop before shutdown deadline")
	}
}

// RunOnce performs a single sweep, bounded by the sweeper's timeout.
func (w *PremiumSweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	n, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		w.log.ErrorWithErr(err, "premium sweep failed")
		return 0, err
	}
	return n, nil
}
