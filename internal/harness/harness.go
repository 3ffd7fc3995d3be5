// Package harness runs YAML conformance scenarios against a real engine
// over a fresh in-memory database, with a deterministic clock and check
// ids so every run of a scenario produces an identical trace. Traces are
// pinned by golden files under testdata/golden.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/engine"
	"github.com/fabriziosalmi/checkmate/internal/store"
	"github.com/fabriziosalmi/checkmate/internal/testutil"
)

// Epoch is the fixed scenario start time. Every scenario clock begins here.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Harness executes one scenario.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *clockwork.FakeClock

	// created holds successful check ids in creation order, for the final
	// state snapshot.
	created []string
}

// Run executes a scenario and returns its result. Each scenario runs in a
// fresh in-memory database for isolation.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("create in-memory store: %w", err)
	}
	defer st.Close()

	clk := clockwork.NewFakeClockAt(Epoch)
	opts := []engine.Option{
		engine.WithClock(clk),
		engine.WithLocation(time.UTC),
		engine.WithIDGenerator(testutil.NewSequentialIDs()),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if tuning := scenario.Engine; tuning != nil {
		if tuning.DailyLimit > 0 {
			opts = append(opts, engine.WithDailyLimit(tuning.DailyLimit))
		}
		if tuning.ExpiryWindow != "" {
			window, err := time.ParseDuration(tuning.ExpiryWindow)
			if err != nil {
				return nil, fmt.Errorf("engine.expiry_window: %w", err)
			}
			opts = append(opts, engine.WithExpiryWindow(window))
		}
	}

	h := &Harness{
		store:  st,
		engine: engine.New(st, opts...),
		clock:  clk,
	}

	ctx := context.Background()
	result := NewResult(scenario.Name)

	for _, id := range scenario.Users {
		if _, err := st.InsertUser(ctx, id); err != nil {
			return nil, fmt.Errorf("seed user %q: %w", id, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.snapshotFinalState(ctx, scenario, result); err != nil {
		return nil, err
	}
	h.assertFinalState(scenario, result)
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	switch {
	case step.Send != nil:
		return h.executeSend(ctx, index, step.Send, result)
	case step.Confirm != nil:
		return h.executeResolve(ctx, index, "confirm", step.Confirm, result)
	case step.Snooze != nil:
		return h.executeResolve(ctx, index, "snooze", step.Snooze, result)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
		h.clock.Advance(d)
		result.AddTrace(TraceEvent{
			At:      h.clock.Now().UTC().Format(time.RFC3339),
			Op:      "advance",
			Args:    map[string]string{"by": step.Advance},
			Outcome: "ok",
		})
		return nil
	case step.Sweep != nil:
		return h.executeSweep(ctx, index, step.Sweep, result)
	default:
		return fmt.Errorf("steps[%d]: empty step", index)
	}
}

func (h *Harness) executeSend(ctx context.Context, index int, step *SendStep, result *Result) error {
	ev := TraceEvent{
		At: h.clock.Now().UTC().Format(time.RFC3339),
		Op: "send",
		Args: map[string]string{
			"sender":   step.Sender,
			"receiver": step.Receiver,
		},
	}
	if step.Message != "" {
		ev.Args["message"] = step.Message
	}

	c, err := h.engine.Send(ctx, step.Sender, step.Receiver, step.Message)
	if err == nil {
		ev.Outcome = "ok"
		ev.CheckID = c.ID
		h.created = append(h.created, c.ID)
	} else {
		ev.Outcome = string(check.CodeOf(err))
	}
	result.AddTrace(ev)
	checkExpectation(index, "send", step.Expect, err, result)
	return nil
}

func (h *Harness) executeResolve(ctx context.Context, index int, op string, step *ResolveStep, result *Result) error {
	ev := TraceEvent{
		At: h.clock.Now().UTC().Format(time.RFC3339),
		Op: op,
		Args: map[string]string{
			"actor": step.Actor,
			"check": step.Check,
		},
	}

	var (
		awards check.ScoreDelta
		err    error
	)
	if op == "confirm" {
		awards, err = h.engine.Confirm(ctx, step.Actor, step.Check)
	} else {
		awards, err = h.engine.Snooze(ctx, step.Actor, step.Check)
	}
	if err == nil {
		ev.Outcome = "ok"
		ev.Awards = &awardsView{Sender: awards.Sender, Receiver: awards.Receiver}
	} else {
		ev.Outcome = string(check.CodeOf(err))
	}
	result.AddTrace(ev)
	checkExpectation(index, op, step.Expect, err, result)
	return nil
}

func (h *Harness) executeSweep(ctx context.Context, index int, step *SweepStep, result *Result) error {
	expired, err := h.engine.ExpireDue(ctx, h.clock.Now())
	if err != nil {
		return fmt.Errorf("steps[%d].sweep: %w", index, err)
	}
	if expired == nil {
		expired = []string{}
	}
	result.AddTrace(TraceEvent{
		At:      h.clock.Now().UTC().Format(time.RFC3339),
		Op:      "sweep",
		Outcome: "ok",
		Expired: expired,
	})

	if step.Expired != nil && !equalStrings(step.Expired, expired) {
		result.AddError(fmt.Sprintf("steps[%d].sweep: expired %v, want %v", index, expired, step.Expired))
	}
	return nil
}

// checkExpectation compares a command outcome against its expect clause.
func checkExpectation(index int, op string, expect *Expect, err error, result *Result) {
	if expect == nil || expect.Error == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d].%s: unexpected error %v", index, op, err))
		}
		return
	}
	if err == nil {
		result.AddError(fmt.Sprintf("steps[%d].%s: expected error %s, command succeeded", index, op, expect.Error))
		return
	}
	if got := string(check.CodeOf(err)); got != expect.Error {
		result.AddError(fmt.Sprintf("steps[%d].%s: error code %s, want %s", index, op, got, expect.Error))
	}
}

// snapshotFinalState reads every seeded user and every created check.
func (h *Harness) snapshotFinalState(ctx context.Context, scenario *Scenario, result *Result) error {
	for _, id := range scenario.Users {
		u, err := h.store.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("snapshot user %q: %w", id, err)
		}
		result.Users = append(result.Users, UserState{
			ID:        u.ID,
			Score:     u.Score,
			SentToday: u.SentToday,
		})
	}
	for _, id := range h.created {
		c, err := h.store.GetCheck(ctx, id)
		if err != nil {
			return fmt.Errorf("snapshot check %q: %w", id, err)
		}
		cs := CheckState{
			ID:       c.ID,
			Sender:   c.Sender,
			Receiver: c.Receiver,
			Status:   string(c.Status),
			SentAt:   c.SentAt.UTC().Format(time.RFC3339),
			Deadline: c.Deadline.UTC().Format(time.RFC3339),
		}
		if !c.ResolvedAt.IsZero() {
			cs.ResolvedAt = c.ResolvedAt.UTC().Format(time.RFC3339)
		}
		result.Checks = append(result.Checks, cs)
	}
	return nil
}

// assertFinalState evaluates the scenario's final-state clauses against the
// snapshot. Subset match: only listed records are checked.
func (h *Harness) assertFinalState(scenario *Scenario, result *Result) {
	if scenario.Final == nil {
		return
	}
	users := make(map[string]UserState, len(result.Users))
	for _, u := range result.Users {
		users[u.ID] = u
	}
	for _, want := range scenario.Final.Users {
		got, ok := users[want.ID]
		if !ok {
			result.AddError(fmt.Sprintf("final.users: unknown user %q", want.ID))
			continue
		}
		if got.Score != want.Score {
			result.AddError(fmt.Sprintf("final.users[%s]: score %d, want %d", want.ID, got.Score, want.Score))
		}
		if got.SentToday != want.SentToday {
			result.AddError(fmt.Sprintf("final.users[%s]: sent_today %d, want %d", want.ID, got.SentToday, want.SentToday))
		}
	}

	checks := make(map[string]CheckState, len(result.Checks))
	for _, c := range result.Checks {
		checks[c.ID] = c
	}
	for _, want := range scenario.Final.Checks {
		got, ok := checks[want.ID]
		if !ok {
			result.AddError(fmt.Sprintf("final.checks: unknown check %q", want.ID))
			continue
		}
		if got.Status != want.Status {
			result.AddError(fmt.Sprintf("final.checks[%s]: status %s, want %s", want.ID, got.Status, want.Status))
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
