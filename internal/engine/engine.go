// Package engine implements the check lifecycle authority.
//
// The engine owns every state-changing operation on users and checks:
// it validates and executes send, confirm and snooze commands, drives expiry,
// and resolves the score-affecting transition exactly once per check. All
// mutations funnel through conditional writes against the store, so two
// callers racing on the same check commit exactly one transition; the loser
// observes AlreadyResolved and applies no score effects.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/event"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// Reference defaults. All of them are tuning choices, not semantics; deploys
// override via options (see internal/config).
const (
	DefaultDailyLimit          = 3
	DefaultExpiryWindow        = 30 * time.Minute
	DefaultConfirmAward        = 10
	DefaultSnoozeAwardReceiver = 2
	DefaultSnoozeAwardSender   = 1
	DefaultExpireAwardSender   = 1
)

// casRetryLimit bounds the optimistic-concurrency retry loop on user
// updates. Conflicts come only from concurrent awards, so contention is low.
const casRetryLimit = 5

// IDGenerator generates unique check identifiers.
// Implemented by the uuid default (production) and a sequential generator
// in testutil (deterministic traces).
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// Store is the persistence contract the engine consumes.
// Implemented by *store.Store.
type Store interface {
	GetUser(ctx context.Context, id string) (check.User, error)
	CompareAndSwapUser(ctx context.Context, id string, expectedVersion int64, fields store.UserFields) error
	InsertCheckIfAbsentPendingPair(ctx context.Context, c check.Check, sender store.SenderUpdate) (bool, error)
	GetCheck(ctx context.Context, id string) (check.Check, error)
	CompareAndSwapCheckStatus(ctx context.Context, id string, newStatus check.Status, resolvedAt time.Time, effects []store.ScoreEffect) (bool, error)
	ListPendingDueBy(ctx context.Context, ts time.Time) ([]check.Check, error)
}

// Engine executes check lifecycle commands against the store.
//
// Thread-safety model:
//   - All exported methods are safe for concurrent use.
//   - Send serializes per sender (the quota precondition demands it); the
//     pairwise-exclusivity precondition rides on the store's guarded insert.
//   - Confirm/Snooze/ExpireDue rely on the status conditional write alone.
type Engine struct {
	store Store
	sink  event.Sink
	clock clockwork.Clock
	idGen IDGenerator
	log   *slog.Logger
	loc   *time.Location

	dailyLimit          int
	expiryWindow        time.Duration
	confirmAward        int
	snoozeAwardReceiver int
	snoozeAwardSender   int
	expireAwardSender   int

	senders keyedMutex
}

// Option configures engine parameters.
type Option func(*Engine)

// WithDailyLimit sets the per-user daily send quota.
func WithDailyLimit(n int) Option {
	return func(e *Engine) { e.dailyLimit = n }
}

// WithExpiryWindow sets how long a check stays actionable after being sent.
func WithExpiryWindow(d time.Duration) Option {
	return func(e *Engine) { e.expiryWindow = d }
}

// WithConfirmAward sets the receiver's points for confirming.
func WithConfirmAward(points int) Option {
	return func(e *Engine) { e.confirmAward = points }
}

// WithSnoozeAwards sets the receiver's and sender's points for a snooze.
// Snoozing is a weaker commitment than confirming; the sender keeps partial
// credit so that sending checks stays worthwhile.
func WithSnoozeAwards(receiver, sender int) Option {
	return func(e *Engine) {
		e.snoozeAwardReceiver = receiver
		e.snoozeAwardSender = sender
	}
}

// WithExpireAward sets the sender's points when a check expires unanswered.
func WithExpireAward(points int) Option {
	return func(e *Engine) { e.expireAwardSender = points }
}

// WithClock substitutes the wall-clock source. Tests install a fake clock.
func WithClock(clk clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clk }
}

// WithLocation sets the timezone used for calendar-day quota rollover.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithIDGenerator substitutes check id generation. Tests install a
// sequential generator for deterministic traces.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithSink sets the event sink notified after every committed transition.
func WithSink(sink event.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// New creates an Engine over st with the reference defaults.
func New(st Store, opts ...Option) *Engine {
	e := &Engine{
		store:               st,
		sink:                event.Discard,
		clock:               clockwork.NewRealClock(),
		idGen:               IDFunc(check.NewID),
		log:                 slog.Default(),
		loc:                 time.Local,
		dailyLimit:          DefaultDailyLimit,
		expiryWindow:        DefaultExpiryWindow,
		confirmAward:        DefaultConfirmAward,
		snoozeAwardReceiver: DefaultSnoozeAwardReceiver,
		snoozeAwardSender:   DefaultSnoozeAwardSender,
		expireAwardSender:   DefaultExpireAwardSender,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current wall-clock time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// ExpiryWindow returns the configured actionable window.
func (e *Engine) ExpiryWindow() time.Duration { return e.expiryWindow }

// notify publishes an event with fresh score snapshots for the users named
// in ids. Snapshot reads are best-effort: a store hiccup here drops the
// snapshot, never the event, and never the committed transition.
func (e *Engine) notify(ctx context.Context, typ check.EventType, c check.Check, awards check.ScoreDelta, ids ...string) {
	ev := check.Event{Type: typ, Check: c, Awards: awards}
	for _, id := range ids {
		u, err := e.store.GetUser(ctx, id)
		if err != nil {
			e.log.Warn("score snapshot unavailable", "user", id, "error", err)
			continue
		}
		ev.Scores = append(ev.Scores, check.ScoreSnapshot{UserID: u.ID, Score: u.Score})
	}
	e.sink.Notify(ev)
}

// observeDay lazily resets a user's daily counter the first time the engine
// sees them on a new calendar day. Best-effort: a version conflict means
// someone else just mutated the user, and the next observation will settle
// the rollover.
func (e *Engine) observeDay(ctx context.Context, userID string, now time.Time) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return
	}
	today := check.Day(now, e.loc)
	if u.LastResetDate == today {
		return
	}
	err = e.store.CompareAndSwapUser(ctx, u.ID, u.Version, store.UserFields{
		Score:         u.Score,
		SentToday:     0,
		LastResetDate: today,
	})
	if err != nil {
		e.log.Debug("day rollover deferred", "user", userID, "error", err)
	}
}
