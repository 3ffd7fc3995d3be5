package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// ExpireDue transitions every pending check whose deadline has been reached
// by now to Expired, awarding the sender the configured points per check.
//
// The sweep is level-triggered and idempotent: each transition is a
// conditional write from Pending, so a check resolved concurrently (or by an
// overlapping sweep) is skipped, never double-processed. Returns the ids
// actually expired by this call.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) ([]string, error) {
	due, err := e.store.ListPendingDueBy(ctx, now)
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, c := range due {
		won, err := e.expireOne(ctx, c, now)
		if err != nil {
			// Fatal for this sweep only; the next invocation re-scans.
			return expired, err
		}
		if won == check.StatusExpired {
			expired = append(expired, c.ID)
		}
	}
	return expired, nil
}

// expireOne attempts the Pending->Expired transition for c and returns the
// terminal status the check ended up with, whether or not this call won.
func (e *Engine) expireOne(ctx context.Context, c check.Check, now time.Time) (check.Status, error) {
	awards := check.ScoreDelta{Sender: e.expireAwardSender}
	effects := []store.ScoreEffect{{UserID: c.Sender, Points: awards.Sender}}

	ok, err := e.store.CompareAndSwapCheckStatus(ctx, c.ID, check.StatusExpired, now, effects)
	if err != nil {
		return "", err
	}
	if !ok {
		// A confirm or snooze (or another sweep) got there first.
		fresh, err := e.store.GetCheck(ctx, c.ID)
		if err != nil {
			return "", err
		}
		return fresh.Status, nil
	}

	e.observeDay(ctx, c.Sender, now)

	c.Status = check.StatusExpired
	c.ResolvedAt = now
	e.log.Info("check expired", "check_id", c.ID, "sender", c.Sender, "deadline", c.Deadline)
	e.notify(ctx, check.EventCheckExpired, c, awards, c.Sender, c.Receiver)
	return check.StatusExpired, nil
}

// Sweeper drives ExpireDue on a fixed interval.
//
// One shared scheduler re-evaluates all due checks, rather than one timer
// per outstanding check: authority-side expiry is decoupled from any
// presentation refresh rate. An interval of zero disables the timer
// entirely, leaving expiry to the lazy trigger on commands.
type Sweeper struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
}

// DefaultSweepInterval is the reference sweep cadence.
const DefaultSweepInterval = 5 * time.Second

// NewSweeper builds a sweeper over eng. The clock is shared with the engine
// so tests can step both together. Call Start to begin sweeping.
func NewSweeper(eng *Engine, interval time.Duration, clk clockwork.Clock, logger *slog.Logger) (*Sweeper, error) {
	sw := &Sweeper{log: logger}
	if interval <= 0 {
		// Pure lazy-trigger mode.
		return sw, nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clk))
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx := context.Background()
			expired, err := eng.ExpireDue(ctx, clk.Now())
			if err != nil {
				// Log and resume on the next tick; the sweep never retries
				// within an invocation.
				logger.Error("expiry sweep failed", "error", err)
				return
			}
			if len(expired) > 0 {
				logger.Info("expiry sweep", "expired", len(expired))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sw.scheduler = scheduler
	return sw, nil
}

// Start begins the periodic sweep. No-op in lazy-trigger mode.
func (s *Sweeper) Start() {
	if s.scheduler != nil {
		s.scheduler.Start()
	}
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
