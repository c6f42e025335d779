// Package pool implements a bounded pool of long-lived connections with an
// acquire/release contract serialised on a single executor goroutine, the
// same goroutine-per-owner idiom pgx's pgxpool and go-redis's connection
// pool use.
package pool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Conn is the minimal view the pool needs of a pooled connection.
// *proto.Conn satisfies this.
type Conn interface {
	IsActive() bool
}

// Factory is the only collaborator that owns transport construction; the
// pool treats connections opaquely otherwise.
type Factory[C Conn] interface {
	Create(ctx context.Context) (C, error)
	Destroy(c C)
}

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 51200 * time.Millisecond
)

type acquireRequest[C Conn] struct {
	ctx      context.Context
	resultCh chan acquireResult[C]
}

type acquireResult[C Conn] struct {
	conn C
	err  error
}

type releaseRequest[C Conn] struct {
	conn C
}

type closeRequest struct {
	ack chan struct{}
}

type connectDone[C Conn] struct {
	conn C
	err  error
}

// Pool is a capacity-N pool of connections created on demand by a Factory.
type Pool[C Conn] struct {
	capacity int
	factory  Factory[C]
	logger   *zap.Logger

	acquireCh chan acquireRequest[C]
	releaseCh chan releaseRequest[C]
	closeCh   chan closeRequest
	connectCh chan connectDone[C]
	doneCh    chan struct{}
}

// New returns a Pool with the given capacity, bound to factory.
func New[C Conn](capacity int, factory Factory[C], logger *zap.Logger) *Pool[C] {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool[C]{
		capacity:  capacity,
		factory:   factory,
		logger:    logger,
		acquireCh: make(chan acquireRequest[C]),
		releaseCh: make(chan releaseRequest[C]),
		closeCh:   make(chan closeRequest),
		connectCh: make(chan connectDone[C], capacity),
		doneCh:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Acquire returns an idle connection if one exists, starts a new one if
// under capacity, or waits in FIFO order for the next release.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	resultCh := make(chan acquireResult[C], 1)
	select {
	case p.acquireCh <- acquireRequest[C]{ctx: ctx, resultCh: resultCh}:
	case <-ctx.Done():
		var zero C
		return zero, ctx.Err()
	case <-p.doneCh:
		var zero C
		return zero, fmt.Errorf("pool: closed")
	}

	select {
	case res := <-resultCh:
		return res.conn, res.err
	case <-ctx.Done():
		// The executor may have already matched this request to a
		// connection (moving it into in-use) before observing the
		// cancellation on resultCh. Drain it in the background and
		// release the connection instead of leaking it in the pool's
		// in-use set.
		go func() {
			if res := <-resultCh; res.err == nil {
				p.Release(res.conn)
			}
		}()
		var zero C
		return zero, ctx.Err()
	}
}

// Release returns conn to the pool. An inactive connection is destroyed
// and, if the pool is under capacity, a replacement is started.
func (p *Pool[C]) Release(conn C) {
	select {
	case p.releaseCh <- releaseRequest[C]{conn: conn}:
	case <-p.doneCh:
	}
}

// Close cancels pending waiters and asynchronously destroys all
// connections. It returns once the executor has processed the request;
// connection teardown continues in the background.
func (p *Pool[C]) Close() {
	req := closeRequest{ack: make(chan struct{})}
	select {
	case p.closeCh <- req:
		<-req.ack
	case <-p.doneCh:
	}
}

type waiter[C Conn] struct {
	ctx      context.Context
	resultCh chan acquireResult[C]
}

func (p *Pool[C]) run() {
	defer close(p.doneCh)

	var idle []C
	inUse := make(map[any]C)
	var waiters []waiter[C]
	total := 0
	connecting := 0
	backoff := time.Duration(0)
	closed := false

	key := func(c C) any { return c }

	startConnect := func() {
		connecting++
		total++
		go func() {
			if backoff > 0 {
				time.Sleep(backoff)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			conn, err := p.factory.Create(ctx)
			select {
			case p.connectCh <- connectDone[C]{conn: conn, err: err}:
			case <-p.doneCh:
			}
		}()
	}

	serveWaiter := func(conn C) bool {
		for len(waiters) > 0 {
			w := waiters[0]
			waiters = waiters[1:]
			if w.ctx.Err() != nil {
				// Cancelled; notify so a caller draining resultCh in the
				// background (see Acquire) doesn't block forever, then
				// move on to the next waiter.
				w.resultCh <- acquireResult[C]{err: w.ctx.Err()}
				continue
			}
			inUse[key(conn)] = conn
			w.resultCh <- acquireResult[C]{conn: conn}
			return true
		}
		return false
	}

	for {
		select {
		case req := <-p.acquireCh:
			if closed {
				req.resultCh <- acquireResult[C]{err: fmt.Errorf("pool: closed")}
				continue
			}

			var served bool
			for len(idle) > 0 && !served {
				conn := idle[len(idle)-1]
				idle = idle[:len(idle)-1]
				if !conn.IsActive() {
					// S9: a connection can go stale while sitting idle;
					// replace it rather than handing it out.
					p.factory.Destroy(conn)
					total--
					continue
				}
				inUse[key(conn)] = conn
				req.resultCh <- acquireResult[C]{conn: conn}
				served = true
			}
			if served {
				continue
			}

			waiters = append(waiters, waiter[C]{ctx: req.ctx, resultCh: req.resultCh})
			if total < p.capacity {
				startConnect()
			}

		case done := <-p.connectCh:
			connecting--
			if done.err != nil {
				total--
				p.logger.Warn("pool: connection factory failed", zap.Error(done.err), zap.Duration("backoff", backoff))
				if backoff == 0 {
					backoff = initialBackoff
				} else {
					backoff *= 2
					if backoff > maxBackoff {
						backoff = maxBackoff
					}
				}
				if len(waiters) > 0 && !closed {
					startConnect()
				}
				continue
			}
			backoff = 0
			if !serveWaiter(done.conn) {
				idle = append(idle, done.conn)
			}

		case req := <-p.releaseCh:
			conn := req.conn
			delete(inUse, key(conn))
			if !conn.IsActive() {
				p.factory.Destroy(conn)
				total--
				if total < p.capacity {
					startConnect()
				}
				continue
			}
			if !serveWaiter(conn) {
				idle = append(idle, conn)
			}

		case req := <-p.closeCh:
			closed = true
			for _, w := range waiters {
				w.resultCh <- acquireResult[C]{err: fmt.Errorf("pool: closed")}
			}
			waiters = nil
			close(req.ack)
			for _, c := range idle {
				p.factory.Destroy(c)
			}
			for _, c := range inUse {
				p.factory.Destroy(c)
			}
			return
		}
	}
}
