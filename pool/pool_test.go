package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     int
	active atomic.Bool
}

func (c *fakeConn) IsActive() bool { return c.active.Load() }

type fakeFactory struct {
	mu       sync.Mutex
	next     int
	created  []*fakeConn
	destroyed []*fakeConn
	failNext bool
}

func (f *fakeFactory) Create(ctx context.Context) (*fakeConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, assert.AnError
	}
	f.next++
	c := &fakeConn{id: f.next}
	c.active.Store(true)
	f.created = append(f.created, c)
	return c, nil
}

func (f *fakeFactory) Destroy(c *fakeConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.active.Store(false)
	f.destroyed = append(f.destroyed, c)
}

// S8: capacity-1 pool forces the second acquire to wait for the first
// caller's release before it is served.
func TestPool_CapacityOneHandsOffOnRelease(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](1, factory, nil)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, c1)

	acquired := make(chan *fakeConn, 1)
	go func() {
		c2, err := p.Acquire(context.Background())
		require.NoError(t, err)
		acquired <- c2
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must block while pool is at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(c1)

	select {
	case c2 := <-acquired:
		assert.Same(t, c1, c2)
	case <-time.After(time.Second):
		t.Fatal("second acquire was never served after release")
	}
}

// S9: a connection that has gone stale while idle is destroyed and
// replaced rather than handed back out.
func TestPool_StaleIdleConnectionIsReplaced(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](2, factory, nil)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c1.active.Store(false)
	p.Release(c1)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.True(t, c2.IsActive())

	factory.mu.Lock()
	destroyed := len(factory.destroyed)
	factory.mu.Unlock()
	assert.Equal(t, 1, destroyed)
}

func TestPool_AcquireCancelledContext(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](1, factory, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	_ = c1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_CloseFailsOutstandingWaiters(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](1, factory, nil)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	_ = c1

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was never unblocked by Close")
	}
}

// A cancelled Acquire must not strand a connection the executor already
// matched to it in the in-use set: whichever side of the cancel/match
// race wins, the connection has to make it back to the pool so it can
// be served again without the factory creating a replacement.
func TestPool_CancelledAcquireDoesNotLeakMatchedConnection(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](1, factory, nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		cctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if conn, err := p.Acquire(cctx); err == nil {
				p.Release(conn)
			}
		}()

		// Give the acquire a chance to become a waiter before racing the
		// cancel against the release that will match it.
		time.Sleep(time.Millisecond)
		cancel()
		p.Release(c1)
		<-done

		c1, err = p.Acquire(context.Background())
		require.NoError(t, err)
	}

	factory.mu.Lock()
	created := len(factory.created)
	factory.mu.Unlock()
	assert.Equal(t, 1, created, "a cancelled acquire must release its matched connection instead of leaking it, so no replacement should ever be created")
}

func TestPool_AcquireAfterCloseFails(t *testing.T) {
	factory := &fakeFactory{}
	p := New[*fakeConn](1, factory, nil)
	p.Close()

	_, err := p.Acquire(context.Background())
	assert.Error(t, err)
}
