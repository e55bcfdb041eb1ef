package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	jitterbug "github.com/lthibault/jitterbug/v2"
	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/store"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
	"go.uber.org/zap"
)

// ticker abstracts the jittered ticker so tests can drive ticks manually.
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type jitterTicker struct {
	*jitterbug.Ticker
}

func (t jitterTicker) Chan() <-chan time.Time { return t.C }

// newTicker adds a little jitter so several conductor instances pointed at
// the same document store do not tick in lockstep.
func newTicker(interval time.Duration) ticker {
	return jitterTicker{jitterbug.New(interval, &jitterbug.Norm{Stdev: time.Second})}
}

// Scheduler periodically starts an unattended batch over all unfinished
// documents. Config is re-read on every tick, so enabling, disabling or
// changing the interval needs no restart; an interval change takes effect at
// the next tick boundary.
type Scheduler struct {
	settings  store.Settings
	ctrl      *controller.Controller
	newTicker func(time.Duration) ticker

	mu      sync.Mutex
	lastRun *time.Time
}

func New(settings store.Settings, ctrl *controller.Controller) *Scheduler {
	return &Scheduler{
		settings:  settings,
		ctrl:      ctrl,
		newTicker: newTicker,
	}
}

// Run loops until the context is canceled. It owns the ticker; the tick
// period follows the persisted interval.
func (s *Scheduler) Run(ctx context.Context) {
	logger := zap.S().Named("watchdog")

	interval := s.currentInterval(ctx)
	t := s.newTicker(interval)
	defer func() { t.Stop() }()
	logger.Infof("watchdog loop started, interval %s", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watchdog loop stopped")
			return
		case <-t.Chan():
		}

		s.tick(ctx)

		if next := s.currentInterval(ctx); next != interval {
			t.Stop()
			t = s.newTicker(next)
			logger.Infof("watchdog interval changed: %s -> %s", interval, next)
			interval = next
		}
	}
}

// tick runs one scheduling decision. A busy controller or an empty selection
// is a skip, never an error; nothing is queued for later.
func (s *Scheduler) tick(ctx context.Context) {
	logger := zap.S().Named("watchdog")

	cfg, err := s.settings.Watchdog(ctx)
	if err != nil {
		logger.Errorf("reading watchdog config: %v", err)
		return
	}

	if !cfg.Enabled {
		metrics.IncreaseWatchdogTicks(metrics.TickDisabled)
		return
	}

	_, err = s.ctrl.Start(ctx, controller.Selector{Kind: controller.SelectAllUntagged}, true, metrics.TriggerWatchdog)
	switch {
	case err == nil:
		now := time.Now()
		s.mu.Lock()
		s.lastRun = &now
		s.mu.Unlock()
		metrics.IncreaseWatchdogTicks(metrics.TickStarted)
		logger.Info("watchdog started a batch run")
	case errors.Is(err, controller.ErrAlreadyRunning), errors.Is(err, controller.ErrEmptySelection):
		metrics.IncreaseWatchdogTicks(metrics.TickSkipped)
	default:
		logger.Errorf("watchdog could not start a run: %v", err)
	}
}

// currentInterval reads the persisted interval, falling back to the store's
// default config when the read fails.
func (s *Scheduler) currentInterval(ctx context.Context) time.Duration {
	cfg, err := s.settings.Watchdog(ctx)
	if err != nil {
		return 5 * time.Minute
	}
	return time.Duration(cfg.IntervalMinutes) * time.Minute
}

// Status is the watchdog view served to the UI.
type Status struct {
	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastRun         *time.Time `json:"last_run,omitempty"`
}

func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	cfg, err := s.settings.Watchdog(ctx)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	lastRun := s.lastRun
	s.mu.Unlock()

	return Status{
		Enabled:         cfg.Enabled,
		IntervalMinutes: cfg.IntervalMinutes,
		LastRun:         lastRun,
	}, nil
}
