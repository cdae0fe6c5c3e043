// Package pipeline turns one CommandRequest into a lazy sequence of
// CommandResponses, routing Hget/Hset/... variants to a storage engine
// and Subscribe/Unsubscribe/Publish to the broker, with ordered
// BeforeSend/AfterSend hooks wrapped around dispatch.
package pipeline

import (
	"sync"
	"time"

	"kvmux/internal/broker"
	"kvmux/internal/store"
	"kvmux/internal/wire"
)

// BeforeSend may mutate req in place before dispatch, or short-circuit
// the pipeline by returning a fabricated response (short=true).
type BeforeSend func(req *wire.Request) (resp wire.Response, short bool)

// AfterSend observes a produced response and how long the unit of work
// that produced it took. It must not alter response semantics — its
// return value, if any, is ignored by the pipeline; hooks report
// failures through their own side channel (logging, metrics) rather
// than by vetoing delivery.
type AfterSend func(req wire.Request, resp wire.Response, dur time.Duration)

// Pipeline is a chain of hooks plus the terminal dispatcher. Hooks are
// stateless with respect to each other; any shared state is closed over
// when the hook function is constructed.
type Pipeline struct {
	before []BeforeSend
	after  []AfterSend
	disp   *dispatcher
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithBeforeSend appends a BeforeSend hook, run in registration order.
func WithBeforeSend(h BeforeSend) Option {
	return func(p *Pipeline) { p.before = append(p.before, h) }
}

// WithAfterSend appends an AfterSend hook, run in registration order
// after every response the dispatcher produces (including ones
// fabricated by a BeforeSend short-circuit).
func WithAfterSend(h AfterSend) Option {
	return func(p *Pipeline) { p.after = append(p.after, h) }
}

// New builds a Pipeline backed by engine and broker b, with opts applied
// in order.
func New(engine store.Engine, b *broker.Broker, opts ...Option) *Pipeline {
	p := &Pipeline{disp: &dispatcher{engine: engine, broker: b}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs req through the pipeline and returns a channel of
// responses alongside a cleanup func the caller must invoke exactly
// once (typically via defer) when it is done reading, however it stops
// reading — full completion, an I/O error, or early abandonment.
//
// The channel is never empty: it yields exactly one response for
// ordinary commands, and for Subscribe it stays open, relaying the
// broker's delivery queue, until Unsubscribe or cleanup is called. For
// non-Subscribe requests cleanup is a no-op; for Subscribe it
// unsubscribes from the broker and stops the relay goroutine, so an
// abandoned stream (client crash, dropped connection) can never leave a
// subscription registered forever.
//
// Execute never blocks the caller beyond the first response for
// non-subscribe commands; for Subscribe it returns immediately, and the
// single acknowledgement followed by later messages arrive
// asynchronously on the same channel.
func (p *Pipeline) Execute(req wire.Request) (<-chan wire.Response, func()) {
	out := make(chan wire.Response, 1)
	noop := func() {}

	start := time.Now()
	for _, h := range p.before {
		if resp, short := h(&req); short {
			p.runAfter(req, resp, time.Since(start))
			out <- resp
			close(out)
			return out, noop
		}
	}

	if req.Kind == wire.ReqSubscribe {
		sub := p.disp.subscribe(req)
		p.runAfter(req, sub.Ack, time.Since(start))

		done := make(chan struct{})
		go func() {
			defer close(out)
			select {
			case out <- sub.Ack:
			case <-done:
				return
			}
			for {
				select {
				case msg, ok := <-sub.Messages:
					if !ok {
						return
					}
					msgStart := time.Now()
					select {
					case out <- msg:
					case <-done:
						return
					}
					p.runAfter(req, msg, time.Since(msgStart))
				case <-done:
					return
				}
			}
		}()

		var once sync.Once
		cleanup := func() {
			once.Do(func() {
				sub.Close()
				close(done)
			})
		}
		return out, cleanup
	}

	resp := p.disp.dispatch(req)
	p.runAfter(req, resp, time.Since(start))
	out <- resp
	close(out)
	return out, noop
}

func (p *Pipeline) runAfter(req wire.Request, resp wire.Response, dur time.Duration) {
	for _, h := range p.after {
		h(req, resp, dur)
	}
}
