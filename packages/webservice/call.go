package webservice

import (
	"context"
	"sync"
)

// Deliverer runs completion callbacks registered with Call.Then.
type Deliverer interface {
	Deliver(fn func())
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(fn func())

func (f DelivererFunc) Deliver(fn func()) {
	f(fn)
}

// InlineDeliverer runs callbacks on the goroutine that completes the call.
var InlineDeliverer Deliverer = DelivererFunc(func(fn func()) { fn() })

// SerialDeliverer runs callbacks one at a time, in completion order, on a
// single goroutine.
type SerialDeliverer struct {
	mu     sync.Mutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

func NewSerialDeliverer(buffer int) *SerialDeliverer {
	d := &SerialDeliverer{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *SerialDeliverer) loop() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}

// Deliver enqueues fn. After Close, fn runs inline so no result is dropped.
func (d *SerialDeliverer) Deliver(fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		fn()
		return
	}
	d.queue <- fn
	d.mu.Unlock()
}

// Close drains queued callbacks and stops the delivery goroutine.
func (d *SerialDeliverer) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// Call is the pending outcome of one request. It completes exactly once,
// including when the request fails before reaching the transport.
type Call struct {
	ctx       context.Context
	cancel    context.CancelFunc
	deliverer Deliverer
	done      chan struct{}
	once      sync.Once

	mu        sync.Mutex
	completed bool
	result    *Result
	callbacks []func(*Result)
}

func newCall(parent context.Context, deliverer Deliverer) *Call {
	if parent == nil {
		parent = context.Background()
	}
	if deliverer == nil {
		deliverer = InlineDeliverer
	}
	ctx, cancel := context.WithCancel(parent)
	return &Call{
		ctx:       ctx,
		cancel:    cancel,
		deliverer: deliverer,
		done:      make(chan struct{}),
	}
}

// complete stores res and fires callbacks. Only the first call has effect.
func (c *Call) complete(res *Result) bool {
	completed := false
	c.once.Do(func() {
		c.mu.Lock()
		c.result = res
		c.completed = true
		callbacks := c.callbacks
		c.callbacks = nil
		close(c.done)
		c.mu.Unlock()

		c.cancel()
		for _, fn := range callbacks {
			fn(res)
		}
		completed = true
	})
	return completed
}

// onComplete registers fn to run inline on completion, or runs it now.
func (c *Call) onComplete(fn func(*Result)) {
	c.mu.Lock()
	if !c.completed {
		c.callbacks = append(c.callbacks, fn)
		c.mu.Unlock()
		return
	}
	res := c.result
	c.mu.Unlock()
	fn(res)
}

// Done is closed once the result is available.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result blocks until the call completes.
func (c *Call) Result() *Result {
	<-c.done
	return c.result
}

// Wait blocks until the call completes or ctx is done. Giving up on the wait
// does not cancel the call.
func (c *Call) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then registers fn to receive the result through the call's Deliverer.
func (c *Call) Then(fn func(*Result)) *Call {
	d := c.deliverer
	c.onComplete(func(res *Result) {
		d.Deliver(func() { fn(res) })
	})
	return c
}

// Cancel aborts the in-flight exchange. A call that has not completed yet
// completes with a TransportError wrapping context.Canceled.
func (c *Call) Cancel() {
	c.cancel()
}

// Context is cancelled when the call completes or is cancelled.
func (c *Call) Context() context.Context {
	return c.ctx
}
