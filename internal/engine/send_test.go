package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

func TestSend_CreatesPendingCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.engine.Send(ctx, "fab", "dome", "you ok?")
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, check.StatusPending, c.Status)
	assert.Equal(t, "you ok?", c.Message)
	assert.True(t, c.SentAt.Equal(t0))
	assert.True(t, c.Deadline.Equal(t0.Add(DefaultExpiryWindow)))

	stored := f.check(t, c.ID)
	assert.Equal(t, check.StatusPending, stored.Status)

	sender := f.user(t, "fab")
	assert.Equal(t, 1, sender.SentToday)
	assert.Equal(t, "2025-06-01", sender.LastResetDate)
}

func TestSend_EmitsCheckCreated(t *testing.T) {
	f := newFixture(t)

	c := f.send(t, "fab", "dome")

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, check.EventCheckCreated, events[0].Type)
	assert.Equal(t, c.ID, events[0].Check.ID)
	require.Len(t, events[0].Scores, 2)
}

func TestSend_UnknownUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Send(ctx, "ghost", "dome", "")
	assert.True(t, check.IsNotFound(err))

	_, err = f.engine.Send(ctx, "fab", "ghost", "")
	assert.True(t, check.IsNotFound(err))
}

func TestSend_SelfCheckRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Send(context.Background(), "fab", "fab", "")
	require.Error(t, err)
	assert.True(t, check.IsNotParticipant(err))
}

func TestSend_PairwiseExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, "fab", "dome")

	// Same direction.
	_, err := f.engine.Send(ctx, "fab", "dome", "")
	assert.True(t, check.IsExchangeBusy(err))

	// Opposite direction is the same pair.
	_, err = f.engine.Send(ctx, "dome", "fab", "")
	assert.True(t, check.IsExchangeBusy(err))

	// The sender's quota is not consumed by a rejected send.
	assert.Equal(t, 1, f.user(t, "fab").SentToday)
	assert.Equal(t, 0, f.user(t, "dome").SentToday)
}

func TestSend_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Three sends on the same day, each resolved so the pair frees up.
	for i := 0; i < DefaultDailyLimit; i++ {
		c := f.send(t, "fab", "dome")
		_, err := f.engine.Confirm(ctx, "dome", c.ID)
		require.NoError(t, err)
	}

	_, err := f.engine.Send(ctx, "fab", "dome", "one more")
	require.Error(t, err)
	assert.True(t, check.IsQuotaExceeded(err))
	assert.Equal(t, DefaultDailyLimit, f.user(t, "fab").SentToday)
}

func TestSend_QuotaIsPerSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.send(t, "fab", "dome")
	_, err := f.engine.Confirm(ctx, "dome", c.ID)
	require.NoError(t, err)

	// The receiver's own quota is untouched by incoming checks.
	f.send(t, "dome", "fab")
	assert.Equal(t, 1, f.user(t, "dome").SentToday)
	assert.Equal(t, 1, f.user(t, "fab").SentToday)
}

func TestSend_QuotaResetsOnDateRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < DefaultDailyLimit; i++ {
		c := f.send(t, "fab", "dome")
		_, err := f.engine.Confirm(ctx, "dome", c.ID)
		require.NoError(t, err)
	}
	_, err := f.engine.Send(ctx, "fab", "dome", "")
	require.True(t, check.IsQuotaExceeded(err))

	// Next calendar day: counter resets to zero, not carried over.
	f.clock.Advance(24 * time.Hour)
	c, err := f.engine.Send(ctx, "fab", "dome", "")
	require.NoError(t, err)
	assert.Equal(t, check.StatusPending, c.Status)

	u := f.user(t, "fab")
	assert.Equal(t, 1, u.SentToday)
	assert.Equal(t, "2025-06-02", u.LastResetDate)
}

func TestSend_CustomDailyLimit(t *testing.T) {
	f := newFixture(t, WithDailyLimit(1))
	ctx := context.Background()

	c := f.send(t, "fab", "dome")
	_, err := f.engine.Confirm(ctx, "dome", c.ID)
	require.NoError(t, err)

	_, err = f.engine.Send(ctx, "fab", "dome", "")
	assert.True(t, check.IsQuotaExceeded(err))
}

func TestSend_ConcurrentSamePair_OneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, receiver := "fab", "dome"
			if i%2 == 1 {
				sender, receiver = receiver, sender
			}
			_, errs[i] = f.engine.Send(ctx, sender, receiver, "race")
		}(i)
	}
	wg.Wait()

	wins, busy := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case check.IsExchangeBusy(err):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one send may create the pending check")
	assert.Equal(t, callers-1, busy)

	// Only the winner consumed quota.
	assert.Equal(t, 1, f.user(t, "fab").SentToday+f.user(t, "dome").SentToday)
}
