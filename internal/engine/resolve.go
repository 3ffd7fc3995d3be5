package engine

import (
	"context"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// Confirm resolves a pending check as Confirmed. Only the receiver may
// confirm, and only while the deadline has not passed. The receiver is
// awarded the configured points in the same commit as the status change.
func (e *Engine) Confirm(ctx context.Context, actor, checkID string) (check.ScoreDelta, error) {
	awards := check.ScoreDelta{Receiver: e.confirmAward}
	return e.resolve(ctx, actor, checkID, check.StatusConfirmed, check.EventCheckConfirmed, awards)
}

// Snooze resolves a pending check as Snoozed. Preconditions match Confirm;
// the receiver and the sender split the configured snooze award.
func (e *Engine) Snooze(ctx context.Context, actor, checkID string) (check.ScoreDelta, error) {
	awards := check.ScoreDelta{Receiver: e.snoozeAwardReceiver, Sender: e.snoozeAwardSender}
	return e.resolve(ctx, actor, checkID, check.StatusSnoozed, check.EventCheckSnoozed, awards)
}

// resolve validates a receiver action and attempts the terminal transition.
func (e *Engine) resolve(ctx context.Context, actor, checkID string, target check.Status, evType check.EventType, awards check.ScoreDelta) (check.ScoreDelta, error) {
	c, err := e.store.GetCheck(ctx, checkID)
	if err != nil {
		return check.ScoreDelta{}, err
	}

	if actor != c.Receiver {
		// Covers both outsiders and the sender acting on their own check.
		return check.ScoreDelta{}, check.NotParticipantError(actor, checkID)
	}

	if c.Status.Terminal() {
		return check.ScoreDelta{}, check.AlreadyResolvedError(checkID, c.Status)
	}

	now := e.clock.Now()
	e.observeDay(ctx, actor, now)

	if c.Overdue(now) {
		// The deadline passed before this command: it loses to expiry.
		// Drive the expiry here so the reported terminal status always
		// matches what the sweep has committed or will commit.
		won, err := e.expireOne(ctx, c, now)
		if err != nil {
			return check.ScoreDelta{}, err
		}
		return check.ScoreDelta{}, check.AlreadyResolvedError(checkID, won)
	}

	effects := []store.ScoreEffect{
		{UserID: c.Receiver, Points: awards.Receiver},
		{UserID: c.Sender, Points: awards.Sender},
	}
	ok, err := e.store.CompareAndSwapCheckStatus(ctx, c.ID, target, now, effects)
	if err != nil {
		return check.ScoreDelta{}, err
	}
	if !ok {
		// Lost the race. Report whichever terminal status won.
		return check.ScoreDelta{}, e.lostRace(ctx, checkID)
	}

	c.Status = target
	c.ResolvedAt = now
	e.log.Info("check resolved",
		"check_id", c.ID, "status", string(target), "actor", actor, "awards", awards.String())
	e.notify(ctx, evType, c, awards, c.Receiver, c.Sender)
	return awards, nil
}

// lostRace re-reads a check after a failed transition and reports the
// terminal status that beat us.
func (e *Engine) lostRace(ctx context.Context, checkID string) error {
	c, err := e.store.GetCheck(ctx, checkID)
	if err != nil {
		return err
	}
	if !c.Status.Terminal() {
		// A failed conditional write on a still-pending check cannot happen:
		// the only writers are the three transitions.
		return check.StoreUnavailableError("resolve", nil)
	}
	return check.AlreadyResolvedError(checkID, c.Status)
}
