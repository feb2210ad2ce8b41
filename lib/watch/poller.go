package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("watch")

var (
	ticksTotal         = metrics.NewCounter(`cloudstore_watch_ticks_total`)
	firesTotal         = metrics.NewCounter(`cloudstore_watch_fires_total`)
	readErrorsTotal    = metrics.NewCounter(`cloudstore_watch_read_errors_total`)
	subscriptionsTotal = metrics.NewCounter(`cloudstore_watch_subscriptions_total`)
	readDuration       = metrics.NewHistogram(`cloudstore_watch_read_duration_seconds`)
)

// IValueReader is what a Poller needs from the store: the current value of a key.
// A missing key is reported with an error matching datastore.ErrNotFound.
type IValueReader interface {
	ReadValue(ctx context.Context, key string) (datastore.Entry, error)
}

// UpdateFunc receives the decoded JSON value of a key after it changed.
type UpdateFunc func(value any)

// subscription is the state of one OnUpdate call.
// It is only touched by the goroutine running its poll loop (and by OnUpdate before that goroutine starts).
type subscription struct {
	key     string
	conn    *Connection
	slot    *Slot[any]
	latency util.RunningAverage

	primed    bool // lastKnown holds a value read from the store
	present   bool // the key existed at the last read
	lastKnown any
}

// readResult is shared between concurrent reads of the same key.
type readResult struct {
	value   any
	present bool
}

// Poller turns repeated reads into change notifications.
//
// Each subscription runs its own loop: read, compare with the last known value,
// fire on change, wait. Subscriptions are independent, concurrent reads of the same
// key by different subscriptions are collapsed into one store request.
type Poller struct {
	reader IValueReader
	config Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subs  *xsync.MapOf[string, *subscription]
	reads singleflight.Group
}

// NewPoller creates a poller reading through reader.
func NewPoller(reader IValueReader, config Config) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		reader: reader,
		config: config.Normalize(),
		ctx:    ctx,
		cancel: cancel,
		subs:   xsync.NewMapOf[string, *subscription](),
	}
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// OnUpdate subscribes callback to changes of key and returns the handle of the subscription.
//
// The current value is read before OnUpdate returns and never reported; the callback
// runs only once a different value is observed. The callback is not called when the
// key is removed. Read failures never end the subscription, only Disconnect
// (or Close of the poller) does.
func (p *Poller) OnUpdate(key string, callback UpdateFunc) *Connection {
	conn, ctx := NewConnection(p.ctx, nil)

	sub := &subscription{
		key:  key,
		conn: conn,
		slot: NewSlot[any](callback, func(err error) {
			Logger.Errorf("subscription %s on key %q: %v", conn.ID(), key, err)
		}),
	}

	if ctx.Err() != nil {
		Logger.Warningf("OnUpdate(%q) called on a closed poller", key)
		return conn
	}

	subscriptionsTotal.Inc()

	// prime the last known value
	start := time.Now()
	if value, present, err := p.read(ctx, key); err != nil {
		Logger.Warningf("initial read of key %q failed, priming on next tick: %v", key, err)
	} else {
		sub.latency.Observe(time.Since(start).Seconds())
		sub.primed = true
		sub.present = present
		sub.lastKnown = value
	}

	p.subs.Store(conn.ID(), sub)
	p.wg.Add(1)
	go p.run(ctx, sub)

	Logger.Debugf("subscription %s on key %q started", conn.ID(), key)
	return conn
}

// Subscriptions returns the number of active subscriptions.
func (p *Poller) Subscriptions() int {
	return p.subs.Size()
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.config
}

// Close disconnects all subscriptions and waits for their loops to exit.
func (p *Poller) Close() {
	p.cancel()
	p.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// run is the poll loop of a single subscription. It exits when ctx is canceled.
func (p *Poller) run(ctx context.Context, sub *subscription) {
	defer p.wg.Done()
	defer p.subs.Delete(sub.conn.ID())

	timer := time.NewTimer(p.nextInterval(sub))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			Logger.Debugf("subscription %s on key %q stopped", sub.conn.ID(), sub.key)
			return
		case <-timer.C:
		}

		p.tick(ctx, sub)
		timer.Reset(p.nextInterval(sub))
	}
}

// tick performs one read-compare-fire cycle.
func (p *Poller) tick(ctx context.Context, sub *subscription) {
	ticksTotal.Inc()

	start := time.Now()
	value, present, err := p.read(ctx, sub.key)

	// the subscription ended while the read was in flight, drop the result
	if ctx.Err() != nil || !sub.conn.Connected() {
		return
	}

	if err != nil {
		readErrorsTotal.Inc()
		Logger.Warningf("reading key %q failed, retrying in %s: %v", sub.key, p.nextInterval(sub), err)
		return
	}

	elapsed := time.Since(start).Seconds()
	readDuration.Update(elapsed)
	sub.latency.Observe(elapsed)

	if !sub.primed {
		sub.primed = true
		sub.present = present
		sub.lastKnown = value
		return
	}

	if present == sub.present && (!present || cmp.Equal(value, sub.lastKnown)) {
		return
	}

	sub.present = present
	sub.lastKnown = value

	if present {
		firesTotal.Inc()
	}
	sub.slot.Fire(value, present)
}

// read returns the decoded value of key. present is false if the key does not exist.
// Concurrent reads of the same key share a single store request which is bound to the
// poller, not to ctx: a canceled subscription stops waiting but the read completes.
func (p *Poller) read(ctx context.Context, key string) (value any, present bool, err error) {
	ch := p.reads.DoChan(key, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(p.ctx, p.config.ReadTimeout)
		defer cancel()

		entry, err := p.reader.ReadValue(readCtx, key)
		if errors.Is(err, datastore.ErrNotFound) {
			return readResult{}, nil
		}
		if err != nil {
			return nil, err
		}
		if entry.Deleted {
			return readResult{}, nil
		}

		decoded, err := entry.Decode()
		if err != nil {
			Logger.Warningf("%v, comparing raw bytes instead", err)
			return readResult{value: string(entry.Value), present: true}, nil
		}
		return readResult{value: decoded, present: true}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(readResult)
		return r.value, r.present, nil
	}
}

// nextInterval derives the wait before the next tick from the smoothed latency.
func (p *Poller) nextInterval(sub *subscription) time.Duration {
	if sub.latency.Count() == 0 {
		return p.config.MinInterval
	}
	return p.config.Interval(sub.latency.Average())
}
