package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestInsertCheck_BumpsQuotaAtomically(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	c := pendingCheck("fab", "dome", t0)
	insertPending(t, s, c)

	got, err := s.GetCheck(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, check.StatusPending, got.Status)
	assert.Equal(t, c.Sender, got.Sender)
	assert.Equal(t, c.Receiver, got.Receiver)
	assert.True(t, got.SentAt.Equal(t0))
	assert.True(t, got.Deadline.Equal(t0.Add(30*time.Minute)))
	assert.True(t, got.ResolvedAt.IsZero())

	sender, err := s.GetUser(ctx, "fab")
	require.NoError(t, err)
	assert.Equal(t, 1, sender.SentToday)
	assert.Equal(t, "2025-06-01", sender.LastResetDate)
}

func TestInsertCheck_PendingPairBlocksBothDirections(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	insertPending(t, s, pendingCheck("fab", "dome", t0))

	for _, dir := range []struct{ sender, receiver string }{
		{"fab", "dome"},
		{"dome", "fab"},
	} {
		c := pendingCheck(dir.sender, dir.receiver, t0)
		u, err := s.GetUser(ctx, dir.sender)
		require.NoError(t, err)

		ok, err := s.InsertCheckIfAbsentPendingPair(ctx, c, SenderUpdate{
			ExpectedVersion: u.Version,
			Fields:          UserFields{SentToday: u.SentToday + 1, LastResetDate: "2025-06-01"},
		})
		require.NoError(t, err)
		assert.False(t, ok, "%s->%s should be blocked by the pending pair", dir.sender, dir.receiver)

		// The quota bump rolled back with the rejected insert.
		after, err := s.GetUser(ctx, dir.sender)
		require.NoError(t, err)
		assert.Equal(t, u.SentToday, after.SentToday)
		assert.Equal(t, u.Version, after.Version)
	}
}

func TestInsertCheck_StaleSenderVersion(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	// Move the sender's version past 0.
	require.NoError(t, s.CompareAndSwapUser(ctx, "fab", 0, UserFields{}))

	c := pendingCheck("fab", "dome", t0)
	_, err := s.InsertCheckIfAbsentPendingPair(ctx, c, SenderUpdate{
		ExpectedVersion: 0,
		Fields:          UserFields{SentToday: 1, LastResetDate: "2025-06-01"},
	})
	require.ErrorIs(t, err, ErrVersionConflict)

	// Nothing persisted.
	_, err = s.GetCheck(ctx, c.ID)
	assert.True(t, check.IsNotFound(err))
}

func TestInsertCheck_NewPairAfterResolution(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	c := pendingCheck("fab", "dome", t0)
	insertPending(t, s, c)

	ok, err := s.CompareAndSwapCheckStatus(ctx, c.ID, check.StatusConfirmed, t0.Add(time.Minute), nil)
	require.NoError(t, err)
	require.True(t, ok)

	// The pairwise slot is released the moment the transition commits.
	insertPending(t, s, pendingCheck("dome", "fab", t0.Add(2*time.Minute)))
}

func TestGetCheck_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCheck(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, check.IsNotFound(err))
}

func TestCASCheckStatus_AppliesEffectsAtomically(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	c := pendingCheck("fab", "dome", t0)
	insertPending(t, s, c)

	ok, err := s.CompareAndSwapCheckStatus(ctx, c.ID, check.StatusSnoozed, t0.Add(time.Minute), []ScoreEffect{
		{UserID: "dome", Points: 2},
		{UserID: "fab", Points: 1},
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetCheck(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, check.StatusSnoozed, got.Status)
	assert.True(t, got.ResolvedAt.Equal(t0.Add(time.Minute)))

	dome, err := s.GetUser(ctx, "dome")
	require.NoError(t, err)
	assert.Equal(t, 2, dome.Score)

	fab, err := s.GetUser(ctx, "fab")
	require.NoError(t, err)
	assert.Equal(t, 1, fab.Score)
}

func TestCASCheckStatus_LoserAppliesNothing(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	c := pendingCheck("fab", "dome", t0)
	insertPending(t, s, c)

	ok, err := s.CompareAndSwapCheckStatus(ctx, c.ID, check.StatusConfirmed, t0.Add(time.Minute), []ScoreEffect{
		{UserID: "dome", Points: 10},
	})
	require.NoError(t, err)
	require.True(t, ok)

	// The losing transition affects zero rows and awards no points.
	ok, err = s.CompareAndSwapCheckStatus(ctx, c.ID, check.StatusExpired, t0.Add(2*time.Minute), []ScoreEffect{
		{UserID: "fab", Points: 1},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetCheck(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, check.StatusConfirmed, got.Status)

	fab, err := s.GetUser(ctx, "fab")
	require.NoError(t, err)
	assert.Equal(t, 0, fab.Score)
}

func TestCASCheckStatus_RejectsNonTerminalTarget(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CompareAndSwapCheckStatus(context.Background(), "c1", check.StatusPending, t0, nil)
	require.Error(t, err)
}

func TestListPendingDueBy(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome", "alice", "bob")
	ctx := context.Background()

	early := pendingCheck("fab", "dome", t0)
	late := pendingCheck("alice", "bob", t0.Add(10*time.Minute))
	insertPending(t, s, early)
	insertPending(t, s, late)

	// Only the first deadline has passed.
	due, err := s.ListPendingDueBy(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)

	// Both due; ordered by deadline.
	due, err = s.ListPendingDueBy(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	// Resolved checks never reappear in the due list.
	ok, err := s.CompareAndSwapCheckStatus(ctx, early.ID, check.StatusExpired, t0.Add(31*time.Minute), nil)
	require.NoError(t, err)
	require.True(t, ok)

	due, err = s.ListPendingDueBy(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, late.ID, due[0].ID)
}

func TestListPendingByDirection(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome", "alice")
	ctx := context.Background()

	out := pendingCheck("fab", "dome", t0)
	in := pendingCheck("alice", "fab", t0.Add(time.Minute))
	insertPending(t, s, out)
	insertPending(t, s, in)

	incoming, err := s.ListPendingByReceiver(ctx, "fab")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, in.ID, incoming[0].ID)

	outgoing, err := s.ListPendingBySender(ctx, "fab")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, out.ID, outgoing[0].ID)
}

func TestListByUser_HistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	seedUsers(t, s, "fab", "dome")
	ctx := context.Background()

	first := pendingCheck("fab", "dome", t0)
	insertPending(t, s, first)
	ok, err := s.CompareAndSwapCheckStatus(ctx, first.ID, check.StatusConfirmed, t0.Add(time.Minute), nil)
	require.NoError(t, err)
	require.True(t, ok)

	second := pendingCheck("dome", "fab", t0.Add(5*time.Minute))
	insertPending(t, s, second)

	history, err := s.ListByUser(ctx, "fab", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}
