package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/event"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// t0 is a fixed midday instant so tests never straddle a date rollover
// unless they advance the clock on purpose.
var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	store  *store.Store
	clock  *clockwork.FakeClock
	sink   *event.MemorySink
}

// newFixture builds an engine over a fresh in-memory store with a fake
// clock pinned at t0 and users fab and dome provisioned.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, id := range []string{"fab", "dome"} {
		_, err := st.InsertUser(ctx, id)
		require.NoError(t, err)
	}

	clk := clockwork.NewFakeClockAt(t0)
	sink := &event.MemorySink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := []Option{
		WithClock(clk),
		WithSink(sink),
		WithLogger(logger),
		WithLocation(time.UTC),
	}
	eng := New(st, append(base, opts...)...)

	return &fixture{engine: eng, store: st, clock: clk, sink: sink}
}

func (f *fixture) user(t *testing.T, id string) check.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) check(t *testing.T, id string) check.Check {
	t.Helper()
	c, err := f.store.GetCheck(context.Background(), id)
	require.NoError(t, err)
	return c
}

// send is a helper for tests that need an existing pending check.
func (f *fixture) send(t *testing.T, sender, receiver string) check.Check {
	t.Helper()
	c, err := f.engine.Send(context.Background(), sender, receiver, "ping")
	require.NoError(t, err)
	return c
}

// eventTypes extracts the emitted event type sequence.
func (f *fixture) eventTypes() []check.EventType {
	events := f.sink.Events()
	types := make([]check.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
