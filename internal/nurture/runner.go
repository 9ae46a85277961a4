package nurture

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Ticker is the unit of work the runner schedules.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (Report, error)
}

// Runner invokes a Ticker on a cron schedule. Overlapping runs are skipped.
type Runner struct {
	ticker   Ticker
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	timeout  time.Duration
	logger   *logging.Logger
}

// NewRunner validates spec. Schedules are evaluated in loc (UTC when nil).
func NewRunner(t Ticker, spec string, loc *time.Location, logger *logging.Logger) (*Runner, error) {
	if t == nil {
		return nil, fmt.Errorf("nurture: ticker is required")
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("nurture: parse schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{ticker: t, schedule: sched, spec: spec, loc: loc, timeout: 30 * time.Minute, logger: logger}, nil
}

// Next returns the next fire time after from.
func (r *Runner) Next(from time.Time) time.Time {
	return r.schedule.Next(from.In(r.loc))
}

// RunOnce performs a single tick immediately.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	tickCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.ticker.Tick(tickCtx, time.Now())
}

// Start blocks until ctx is cancelled, running a tick at each scheduled time.
func (r *Runner) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(r.spec, func() {
		report, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("nurture tick failed", "error", err)
			return
		}
		r.logger.Debug("nurture tick finished", "suggestions", len(report.Suggestions), "failed_agents", len(report.FailedAgents))
	}); err != nil {
		return fmt.Errorf("nurture: schedule tick: %w", err)
	}

	r.logger.Info("nurture runner started", "schedule", r.spec, "next_run", r.Next(time.Now()))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("nurture runner stopped")
	return nil
}
