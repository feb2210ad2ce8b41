package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// fakeReader serves values from a map. Reads can be made to fail or to block.
type fakeReader struct {
	mu      sync.Mutex
	values  map[string]string
	err     error
	gate    chan struct{} // reads wait for it to be closed when set
	started chan struct{} // receives a token when a gated read starts
	reads   atomic.Int64
}

func newFakeReader() *fakeReader {
	return &fakeReader{values: map[string]string{}}
}

func (f *fakeReader) set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeReader) remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
}

func (f *fakeReader) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeReader) block() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 1)
	gate := f.gate
	return f.started, func() {
		f.mu.Lock()
		f.gate = nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeReader) ReadValue(ctx context.Context, key string) (datastore.Entry, error) {
	f.reads.Add(1)

	f.mu.Lock()
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return datastore.Entry{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return datastore.Entry{}, f.err
	}
	v, ok := f.values[key]
	if !ok {
		return datastore.Entry{}, datastore.ErrNotFound
	}
	return datastore.Entry{Key: key, Value: []byte(v), Version: "v"}, nil
}

// fastConfig polls every few milliseconds
func fastConfig() Config {
	return Config{
		MinInterval:       2 * time.Millisecond,
		MaxInterval:       5 * time.Millisecond,
		LatencyMultiplier: 1,
		ReadTimeout:       time.Second,
	}
}

// recorder collects callback values
type recorder struct {
	ch chan any
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan any, 16)}
}

func (r *recorder) callback(v any) {
	r.ch <- v
}

func (r *recorder) expect(t *testing.T, want any) {
	t.Helper()
	select {
	case got := <-r.ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification received, want %v", want)
	}
}

func (r *recorder) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case got := <-r.ch:
		t.Fatalf("unexpected notification %v", got)
	case <-time.After(wait):
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPollerNotifiesOnChange(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	conn := p.OnUpdate("K", rec.callback)
	require.True(t, conn.Connected())

	// the initial value is never reported
	rec.expectNone(t, 30*time.Millisecond)

	reader.set("K", "2")
	rec.expect(t, float64(2))

	// repeated reads of the same value do not fire again
	reader.set("K", "2")
	rec.expectNone(t, 30*time.Millisecond)

	reader.set("K", "3")
	rec.expect(t, float64(3))
}

func TestPollerDeepCompare(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", `{"a":[1,2],"b":"x"}`)

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	p.OnUpdate("K", rec.callback)

	// same structure with a different encoding
	reader.set("K", `{ "b": "x", "a": [1, 2] }`)
	rec.expectNone(t, 30*time.Millisecond)

	reader.set("K", `{"a":[1,2,3],"b":"x"}`)
	rec.expect(t, map[string]any{"a": []any{float64(1), float64(2), float64(3)}, "b": "x"})
}

func TestPollerRemovedKey(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", `"a"`)

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	conn := p.OnUpdate("K", rec.callback)

	// removal is a change to an absent value which is not delivered
	reader.remove("K")
	rec.expectNone(t, 30*time.Millisecond)
	assert.True(t, conn.Connected())

	reader.set("K", `"a"`)
	rec.expect(t, "a")
}

func TestPollerMissingKeyAtSubscribe(t *testing.T) {
	reader := newFakeReader()

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	p.OnUpdate("K", rec.callback)
	rec.expectNone(t, 20*time.Millisecond)

	reader.set("K", "null")
	rec.expect(t, nil)
}

func TestPollerKeepsPollingOnTransportErrors(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	conn := p.OnUpdate("K", rec.callback)

	reader.fail(datastore.WrapError(datastore.RetCTransport, "read", context.DeadlineExceeded))
	before := reader.reads.Load()
	require.Eventually(t, func() bool { return reader.reads.Load() > before+5 }, 2*time.Second, time.Millisecond)

	assert.True(t, conn.Connected())
	assert.Equal(t, 1, p.Subscriptions())

	reader.set("K", "2")
	rec.expectNone(t, 20*time.Millisecond)

	reader.fail(nil)
	rec.expect(t, float64(2))
}

func TestPollerPrimesAfterFailedInitialRead(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")
	reader.fail(datastore.ErrTransport)

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	p.OnUpdate("K", rec.callback)

	// the first successful read primes without firing
	reader.fail(nil)
	rec.expectNone(t, 30*time.Millisecond)

	reader.set("K", "2")
	rec.expect(t, float64(2))
}

func TestPollerDisconnectMidTick(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	rec := newRecorder()
	conn := p.OnUpdate("K", rec.callback)

	started, release := reader.block()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("read did not start")
	}

	// the in-flight read completes with a changed value after the disconnect
	conn.Disconnect()
	reader.set("K", "2")
	release()

	rec.expectNone(t, 30*time.Millisecond)
	assert.False(t, conn.Connected())
	require.Eventually(t, func() bool { return p.Subscriptions() == 0 }, time.Second, time.Millisecond)

	// no further reads for the subscription
	reads := reader.reads.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, reads, reader.reads.Load())
}

func TestPollerIsolatesSubscribers(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	var panics atomic.Int32
	p.OnUpdate("K", func(any) {
		panics.Add(1)
		panic("subscriber failure")
	})
	rec := newRecorder()
	p.OnUpdate("K", rec.callback)

	reader.set("K", "2")
	rec.expect(t, float64(2))
	require.Eventually(t, func() bool { return panics.Load() == 1 }, time.Second, time.Millisecond)

	// the failing subscription is still polling
	reader.set("K", "3")
	rec.expect(t, float64(3))
	require.Eventually(t, func() bool { return panics.Load() == 2 }, time.Second, time.Millisecond)
}

func TestPollerIndependentSubscriptions(t *testing.T) {
	reader := newFakeReader()
	reader.set("A", "1")
	reader.set("B", "1")

	p := NewPoller(reader, fastConfig())
	defer p.Close()

	recA, recB := newRecorder(), newRecorder()
	connA := p.OnUpdate("A", recA.callback)
	p.OnUpdate("B", recB.callback)
	assert.Equal(t, 2, p.Subscriptions())

	connA.Disconnect()
	reader.set("A", "2")
	reader.set("B", "2")

	recB.expect(t, float64(2))
	recA.expectNone(t, 20*time.Millisecond)
}

func TestPollerClose(t *testing.T) {
	reader := newFakeReader()
	reader.set("K", "1")

	p := NewPoller(reader, fastConfig())
	conns := []*Connection{
		p.OnUpdate("K", nil),
		p.OnUpdate("K", nil),
	}

	p.Close()

	assert.Equal(t, 0, p.Subscriptions())
	for _, c := range conns {
		require.Eventually(t, func() bool { return !c.Connected() }, time.Second, time.Millisecond)
	}

	// subscribing on a closed poller returns a disconnected handle
	late := p.OnUpdate("K", nil)
	assert.False(t, late.Connected())
}

func TestConfigInterval(t *testing.T) {
	c := Config{
		MinInterval:       time.Second,
		MaxInterval:       10 * time.Second,
		LatencyMultiplier: 20,
	}.Normalize()

	assert.Equal(t, time.Second, c.Interval(0.01))    // 200ms -> floor
	assert.Equal(t, 4*time.Second, c.Interval(0.2))   // 4s
	assert.Equal(t, 10*time.Second, c.Interval(2))    // 40s -> ceiling
	assert.Equal(t, DefaultReadTimeout, c.ReadTimeout) // default
	assert.Equal(t, DefaultLatencyMultiplier, Config{}.Normalize().LatencyMultiplier)
}

func TestConfigNormalize(t *testing.T) {
	c := Config{MinInterval: time.Minute, MaxInterval: time.Second}.Normalize()
	assert.Equal(t, time.Second, c.MinInterval)
	assert.Equal(t, time.Minute, c.MaxInterval)

	assert.Equal(t, DefaultConfig(), Config{}.Normalize())
}
