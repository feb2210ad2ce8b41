package watch

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Connection is the cancelable handle of a subscription.
//
// The state moves from connected to disconnected exactly once. Disconnect is the
// caller side of that transition; cancellation of the parent context (the owner
// shutting down) is the other side and is observed through Connected as well.
type Connection struct {
	id           string
	connected    atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	onDisconnect func()
}

// NewConnection creates a connected handle whose lifetime is bound to parent.
// The returned context is canceled on disconnect and is meant to drive the
// subscription's background task. onDisconnect (may be nil) runs once on the
// first call to Disconnect.
func NewConnection(parent context.Context, onDisconnect func()) (*Connection, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c := &Connection{
		id:           uuid.NewString(),
		ctx:          ctx,
		cancel:       cancel,
		onDisconnect: onDisconnect,
	}
	c.connected.Store(true)

	// owner side closure
	context.AfterFunc(ctx, func() {
		c.connected.Store(false)
	})
	if ctx.Err() != nil {
		c.connected.Store(false)
	}

	return c, ctx
}

// ID returns the unique id of the subscription.
func (c *Connection) ID() string {
	return c.id
}

// Connected reports whether the subscription is still active.
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// Disconnect ends the subscription. Calling it more than once is a no-op.
func (c *Connection) Disconnect() {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	c.cancel()
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

// Done is closed once the subscription has ended for any reason.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
