package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const defaultPollInterval = 30 * time.Second

type Config struct {
	PollInterval  time.Duration
	DrainInterval time.Duration
	DailyHour     int
	WeeklyWeekday time.Weekday
}

// Jobs are the periodic units of work the runner drives. The runner holds no
// business logic; each job is responsible for its own idempotence.
type Jobs struct {
	Drain  func(ctx context.Context) (int, error)
	Daily  func(ctx context.Context) error
	Weekly func(ctx context.Context) error
}

// Runner fires the notification drain, the daily maintenance jobs and the
// weekly segmentation on fixed cadences. The time source is injected so
// cadence logic is testable without waiting on wall-clock ticks.
type Runner struct {
	cfg  Config
	now  func() time.Time
	jobs Jobs
	log  zerolog.Logger

	stop chan struct{}
	done chan struct{}

	lastDrain time.Time
	lastDay   string
	lastWeek  string
}

func New(cfg Config, now func() time.Time, jobs Jobs, log zerolog.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:  cfg,
		now:  now,
		jobs: jobs,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop blocks until an in-flight tick finishes.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick(ctx, r.now())
		}
	}
}

// tick evaluates cadence due-ness at one instant. Daily and weekly jobs run
// at most once per calendar day / ISO week, from the configured hour on.
func (r *Runner) tick(ctx context.Context, now time.Time) {
	if now.Sub(r.lastDrain) >= r.cfg.DrainInterval {
		r.lastDrain = now
		if r.jobs.Drain != nil {
			processed, err := r.jobs.Drain(ctx)
			if err != nil {
				r.log.Error().Err(err).Msg("notification drain failed")
			} else if processed > 0 {
				r.log.Info().Int("processed", processed).Msg("notification drain")
			}
		}
	}

	day := now.Format("2006-01-02")
	if now.Hour() >= r.cfg.DailyHour && day != r.lastDay {
		r.lastDay = day
		if r.jobs.Daily != nil {
			if err := r.jobs.Daily(ctx); err != nil {
				r.log.Error().Err(err).Msg("daily jobs failed")
			}
		}
	}

	year, week := now.ISOWeek()
	weekKey := fmt.Sprintf("%d-%02d", year, week)
	if now.Weekday() == r.cfg.WeeklyWeekday && now.Hour() >= r.cfg.DailyHour && weekKey != r.lastWeek {
		r.lastWeek = weekKey
		if r.jobs.Weekly != nil {
			if err := r.jobs.Weekly(ctx); err != nil {
				r.log.Error().Err(err).Msg("weekly job failed")
			}
		}
	}
}
