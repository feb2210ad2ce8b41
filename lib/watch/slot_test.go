package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotFireWithoutValue(t *testing.T) {
	calls := 0
	slot := NewSlot(func(int) { calls++ }, nil)

	assert.False(t, slot.Fire(0, false))
	assert.Equal(t, 0, calls)
}

func TestSlotFireDeliversOnce(t *testing.T) {
	var got []any
	slot := NewSlot(func(v any) { got = append(got, v) }, nil)

	// falsy but present values are still delivered
	assert.True(t, slot.Fire(nil, true))
	assert.True(t, slot.Fire(false, true))
	assert.True(t, slot.Fire("x", true))

	assert.Equal(t, []any{nil, false, "x"}, got)
}

func TestSlotIsolatesPanics(t *testing.T) {
	var reported []error
	onError := func(err error) { reported = append(reported, err) }

	calls := 0
	failing := NewSlot(func(v int) {
		calls++
		if v < 0 {
			panic("negative")
		}
	}, onError)

	other := 0
	healthy := NewSlot(func(v int) { other = v }, onError)

	require.NotPanics(t, func() {
		assert.False(t, failing.Fire(-1, true))
	})
	require.Len(t, reported, 1)

	var subErr *SubscriberError
	require.ErrorAs(t, reported[0], &subErr)
	assert.Equal(t, "negative", subErr.Recovered)

	// the same slot and other slots keep working
	assert.True(t, failing.Fire(1, true))
	assert.True(t, healthy.Fire(5, true))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 5, other)
}

func TestSubscriberErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &SubscriberError{Recovered: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")

	assert.Nil(t, (&SubscriberError{Recovered: 42}).Unwrap())
}

func TestConnectionDisconnect(t *testing.T) {
	var signals atomic.Int32
	conn, ctx := NewConnection(context.Background(), func() { signals.Add(1) })

	assert.True(t, conn.Connected())
	assert.NotEmpty(t, conn.ID())
	assert.NoError(t, ctx.Err())

	conn.Disconnect()
	assert.False(t, conn.Connected())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done() not closed after Disconnect")
	}

	// second call is a no-op
	conn.Disconnect()
	assert.False(t, conn.Connected())
	assert.Equal(t, int32(1), signals.Load())
}

func TestConnectionOwnerClosure(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	var signals atomic.Int32
	conn, _ := NewConnection(parent, func() { signals.Add(1) })
	require.True(t, conn.Connected())

	cancel()

	require.Eventually(t, func() bool { return !conn.Connected() }, time.Second, time.Millisecond)

	// disconnecting after the owner closed does not signal again
	conn.Disconnect()
	assert.Equal(t, int32(0), signals.Load())
}

func TestConnectionOnClosedParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	conn, ctx := NewConnection(parent, nil)
	assert.False(t, conn.Connected())
	assert.Error(t, ctx.Err())
}
