package engine

import (
	"context"
	"errors"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// Send creates a pending check from sender to receiver.
//
// Preconditions, evaluated under the sender's lock:
//  1. sender and receiver exist and are distinct
//  2. the sender is under the daily quota after lazy date rollover
//  3. no pending check exists between the pair in either direction
//
// The quota bump and the guarded insert commit in one store transaction, so
// two racing sends for the same pair cannot both succeed: the loser gets
// ExchangeBusy, never a silent duplicate.
func (e *Engine) Send(ctx context.Context, sender, receiver, message string) (check.Check, error) {
	if sender == receiver {
		return check.Check{}, &check.Error{
			Code:    check.CodeNotParticipant,
			Message: "sender and receiver must be distinct",
		}
	}

	unlock := e.senders.Lock(sender)
	defer unlock()

	// Receiver existence only needs to hold at send time.
	if _, err := e.store.GetUser(ctx, receiver); err != nil {
		return check.Check{}, err
	}

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		u, err := e.store.GetUser(ctx, sender)
		if err != nil {
			return check.Check{}, err
		}

		now := e.clock.Now()
		today := check.Day(now, e.loc)
		sent := u.SentToday
		if u.LastResetDate != today {
			sent = 0
		}
		if sent >= e.dailyLimit {
			return check.Check{}, check.QuotaExceededError(sender, e.dailyLimit)
		}

		c := check.Check{
			ID:       e.idGen.NewID(),
			Sender:   sender,
			Receiver: receiver,
			Message:  message,
			SentAt:   now,
			Deadline: now.Add(e.expiryWindow),
			Status:   check.StatusPending,
		}

		ok, err := e.store.InsertCheckIfAbsentPendingPair(ctx, c, store.SenderUpdate{
			ExpectedVersion: u.Version,
			Fields: store.UserFields{
				SentToday:     sent + 1,
				LastResetDate: today,
			},
		})
		if errors.Is(err, store.ErrVersionConflict) {
			// A concurrent award moved the sender's version. Re-read and
			// re-evaluate the quota against the fresh record.
			continue
		}
		if err != nil {
			return check.Check{}, err
		}
		if !ok {
			return check.Check{}, check.ExchangeBusyError(sender, receiver)
		}

		e.log.Info("check sent",
			"check_id", c.ID, "sender", sender, "receiver", receiver, "deadline", c.Deadline)
		e.notify(ctx, check.EventCheckCreated, c, check.ScoreDelta{}, sender, receiver)
		return c, nil
	}

	return check.Check{}, check.StoreUnavailableError("send", store.ErrVersionConflict)
}
