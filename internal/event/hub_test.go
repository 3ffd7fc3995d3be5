package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

func makeEvent(id string) check.Event {
	return check.Event{
		Type:  check.EventCheckCreated,
		Check: check.Check{ID: id, Sender: "fab", Receiver: "dome", Status: check.StatusPending},
	}
}

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Close()

	s1 := h.Subscribe()
	s2 := h.Subscribe()
	require.NotNil(t, s1)
	require.NotNil(t, s2)
	assert.Equal(t, 2, h.Len())

	h.Notify(makeEvent("c1"))

	e1 := <-s1.Events()
	e2 := <-s2.Events()
	assert.Equal(t, "c1", e1.Check.ID)
	assert.Equal(t, "c1", e2.Check.ID)
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	h := NewHub()
	defer h.Close()

	slow := h.Subscribe()
	require.NotNil(t, slow)

	// Overflow the subscriber's buffer without draining it. Notify must
	// return every time; the slow subscriber gets shed.
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Notify(makeEvent("c"))
	}

	assert.Equal(t, 0, h.Len(), "slow subscriber should be dropped")

	// Its channel drains the buffered events and then closes.
	n := 0
	for range slow.Events() {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestHub_Cancel(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe()
	require.NotNil(t, sub)
	sub.Cancel()
	assert.Equal(t, 0, h.Len())

	// Cancelled channel is closed.
	_, open := <-sub.Events()
	assert.False(t, open)

	// Double cancel is safe.
	sub.Cancel()
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	require.NotNil(t, sub)

	h.Close()
	_, open := <-sub.Events()
	assert.False(t, open)

	assert.Nil(t, h.Subscribe(), "subscribe after close returns nil")
	h.Notify(makeEvent("c1")) // no-op, must not panic
	h.Close()                 // idempotent
}

func TestMemorySink_Records(t *testing.T) {
	var m MemorySink
	m.Notify(makeEvent("c1"))
	m.Notify(makeEvent("c2"))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "c1", events[0].Check.ID)
	assert.Equal(t, "c2", events[1].Check.ID)

	m.Reset()
	assert.Empty(t, m.Events())
}

func TestMulti_FansOut(t *testing.T) {
	var a, b MemorySink
	sink := Multi(&a, &b, Discard)

	sink.Notify(makeEvent("c1"))
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
