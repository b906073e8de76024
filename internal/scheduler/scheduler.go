// Package scheduler runs the periodic refresh of stale prices and exchange
// rates on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
)

// quotaRetention is how long provider quota windows are kept before pruning.
const quotaRetention = time.Hour

// Refresher refreshes every stale cached price and rate.
type Refresher interface {
	RefreshStale(ctx context.Context) (service.RefreshReport, error)
}

// QuotaPruner deletes provider quota windows older than cutoff.
type QuotaPruner interface {
	Prune(ctx context.Context, cutoff time.Time) error
}

// Scheduler owns the cron runner. A run that is still going when the next
// tick fires is skipped rather than overlapped.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	quota     QuotaPruner
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses schedule and registers the refresh job. timeout bounds a single run.
func New(schedule string, timeout time.Duration, refresher Refresher, quota QuotaPruner, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: logger}

	s := &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)), cron.WithLogger(adapter)),
		refresher: refresher,
		quota:     quota,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running jobs in the background. ctx cancels any in-flight run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	ctx = s.ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop cancels the running job, if any, and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.RunOnce(ctx)
}

// RunOnce refreshes stale data and prunes old quota windows. Failures are
// logged; they never stop the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.refresher.RefreshStale(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("stale refresh failed")
	} else {
		s.logger.Info().
			Int("prices", report.Prices).
			Int("rates", report.Rates).
			Int("failures", report.Failures).
			Dur("duration", report.Duration).
			Msg("stale refresh complete")
	}

	if s.quota != nil {
		if err := s.quota.Prune(ctx, s.now().Add(-quotaRetention)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to prune provider quota")
		}
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
