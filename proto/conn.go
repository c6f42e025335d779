package proto

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/mhaga/apns-core/metrics"
	"github.com/mhaga/apns-core/wire"
)

// State is a Conn's position in its Connecting -> Ready -> Draining ->
// Closed lifecycle. Any state may transition directly to Closed on a
// transport failure.
type State int

const (
	StateConnecting State = iota
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is what a Write's completion channel delivers exactly once.
type Result struct {
	Response *wire.Response
	Err      error
}

// Config configures a single connection.
type Config struct {
	Dialer      Dialer
	Addr        string
	TLSConfig   *tls.Config
	Logger      *zap.Logger
	Metrics     metrics.Sink
	IdleTimeout time.Duration // default 60s, spec PING_IDLE_TIME
	PingTimeout time.Duration // default 30s, spec PING_TIMEOUT
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Dialer == nil {
		cfg.Dialer = TLSDialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = 30 * time.Second
	}
	return cfg
}

type pendingStream struct {
	decoder  *wire.StreamDecoder
	resultCh chan Result
}

type writeRequest struct {
	req      wire.Request
	resultCh chan Result
}

type closeRequest struct {
	ack      chan struct{}
	deadline time.Duration
}

// Conn is one HTTP/2 connection to APNs (or the mock server). All mutable
// state is owned exclusively by the run loop goroutine; callers interact
// only through channels, so no locks are held across suspension points.
type Conn struct {
	cfg    Config
	netc   net.Conn
	framer *http2.Framer

	hpackBuf *bytes.Buffer
	hpackEnc *hpack.Encoder

	writeCh chan writeRequest
	closeCh chan closeRequest
	doneCh  chan struct{}

	// readyCh closes once the connection reaches Ready (or fails to).
	readyCh  chan struct{}
	dialErr  error

	mu           sync.RWMutex // guards only the published state snapshot below
	state        State
	lastActivity time.Time
}

// Dial establishes a TCP+TLS connection, writes the HTTP/2 client preface,
// and starts the connection's executor goroutine. It returns once the
// preface and initial SETTINGS frame have been written (state Ready);
// it does not wait for the peer's SETTINGS acknowledgement.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	netc, err := cfg.Dialer.DialTLS(ctx, cfg.Addr, cfg.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("proto: dial %s: %w", cfg.Addr, err)
	}

	if _, err := netc.Write([]byte(http2.ClientPreface)); err != nil {
		netc.Close()
		return nil, fmt.Errorf("proto: write preface: %w", err)
	}

	framer := http2.NewFramer(netc, netc)
	framer.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	var hpackBuf bytes.Buffer
	c := &Conn{
		cfg:      cfg,
		netc:     netc,
		framer:   framer,
		hpackBuf: &hpackBuf,
		hpackEnc: hpack.NewEncoder(&hpackBuf),
		writeCh:  make(chan writeRequest),
		closeCh:  make(chan closeRequest),
		doneCh:   make(chan struct{}),
		readyCh:  make(chan struct{}),
		state:    StateConnecting,
	}

	if err := framer.WriteSettings(); err != nil {
		netc.Close()
		return nil, fmt.Errorf("proto: write settings: %w", err)
	}

	c.setState(StateReady)
	cfg.Metrics.ConnectionAdded()
	close(c.readyCh)

	frameCh := make(chan http2.Frame, 16)
	readErrCh := make(chan error, 1)
	go c.readLoop(frameCh, readErrCh)
	go c.run(frameCh, readErrCh)

	return c, nil
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsActive reports whether the connection can still accept writes.
func (c *Conn) IsActive() bool {
	s := c.State()
	return s == StateReady
}

func (c *Conn) setLastActivity(t time.Time) {
	c.mu.Lock()
	c.lastActivity = t
	c.mu.Unlock()
}

// LastActivity returns the time of the most recently received frame.
func (c *Conn) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

func (c *Conn) readLoop(frameCh chan<- http2.Frame, errCh chan<- error) {
	for {
		f, err := c.framer.ReadFrame()
		if err != nil {
			errCh <- err
			return
		}
		select {
		case frameCh <- f:
		case <-c.doneCh:
			return
		}
	}
}

// Write allocates the next stream, writes HEADERS then DATA, and returns a
// channel that receives the eventual Result exactly once. If the
// underlying write fails, the pending map is never touched.
func (c *Conn) Write(req wire.Request) <-chan Result {
	resultCh := make(chan Result, 1)
	select {
	case c.writeCh <- writeRequest{req: req, resultCh: resultCh}:
	case <-c.doneCh:
		resultCh <- Result{Err: fmt.Errorf("proto: connection closed")}
	}
	return resultCh
}

// Close begins a graceful shutdown: no new writes are accepted; once the
// pending map drains the transport is closed. If deadline is non-zero and
// elapses first, the connection is force-closed with any still-pending
// handles failing as unprocessed.
func (c *Conn) Close(deadline time.Duration) {
	req := closeRequest{ack: make(chan struct{}), deadline: deadline}
	select {
	case c.closeCh <- req:
		<-req.ack
	case <-c.doneCh:
	}
	if deadline > 0 {
		select {
		case <-c.doneCh:
		case <-time.After(deadline):
		}
	} else {
		<-c.doneCh
	}
}

// run is the single executor goroutine owning all connection state.
func (c *Conn) run(frameCh <-chan http2.Frame, readErrCh <-chan error) {
	defer func() {
		c.netc.Close()
		c.setState(StateClosed)
		c.cfg.Metrics.ConnectionRemoved()
		close(c.doneCh)
	}()

	pending := make(map[uint32]*pendingStream)
	nextStreamID := uint32(1)
	nextPingID := uint64(0)
	var pingOutstanding bool
	var pingPayload [8]byte
	c.setLastActivity(time.Now())

	idleTimer := time.NewTimer(c.cfg.IdleTimeout)
	defer idleTimer.Stop()
	var pingTimer *time.Timer
	pingTimeoutCh := make(chan struct{}, 1)
	var shutdownDeadlineCh <-chan time.Time

	failAllPending := func(err error) {
		for id, p := range pending {
			p.resultCh <- Result{Err: err}
			delete(pending, id)
		}
	}

	for {
		select {
		case wr := <-c.writeCh:
			if c.State() != StateReady {
				wr.resultCh <- Result{Err: fmt.Errorf("proto: connection not ready")}
				continue
			}
			if nextStreamID >= math.MaxInt32-1 {
				// Stream-id space exhausted: stop accepting new writes,
				// drain, then close; the pool creates a replacement.
				wr.resultCh <- Result{Err: fmt.Errorf("proto: stream-id space exhausted")}
				c.setState(StateDraining)
				continue
			}

			streamID := nextStreamID
			nextStreamID += 2

			if err := c.writeStream(streamID, wr.req); err != nil {
				wr.resultCh <- Result{Err: &writeErr{err}}
				continue
			}
			pending[streamID] = &pendingStream{decoder: wire.NewStreamDecoder(), resultCh: wr.resultCh}

		case f := <-frameCh:
			c.setLastActivity(time.Now())
			idleTimer.Reset(c.cfg.IdleTimeout)

			switch fr := f.(type) {
			case *http2.MetaHeadersFrame:
				p, ok := pending[fr.StreamID]
				if !ok {
					continue
				}
				resp, done, err := p.decoder.OnHeaders(fr.Fields, fr.StreamEnded())
				if err != nil {
					p.resultCh <- Result{Err: err}
					delete(pending, fr.StreamID)
					continue
				}
				if done {
					p.resultCh <- Result{Response: resp}
					delete(pending, fr.StreamID)
					c.recordOutcome(resp)
				}

			case *http2.DataFrame:
				p, ok := pending[fr.StreamID]
				if !ok {
					continue
				}
				resp, done, err := p.decoder.OnData(fr.Data(), fr.StreamEnded())
				if err != nil {
					p.resultCh <- Result{Err: err}
					delete(pending, fr.StreamID)
					continue
				}
				if done {
					p.resultCh <- Result{Response: resp}
					delete(pending, fr.StreamID)
					c.recordOutcome(resp)
				}

			case *http2.PingFrame:
				if fr.IsAck() {
					if pingOutstanding && fr.Data == pingPayload {
						pingOutstanding = false
						if pingTimer != nil {
							pingTimer.Stop()
						}
					}
					continue
				}
				_ = c.framer.WritePing(true, fr.Data)

			case *http2.GoAwayFrame:
				c.cfg.Logger.Warn("proto: received GOAWAY", zap.Uint32("last_stream_id", fr.LastStreamID))
				for id, p := range pending {
					if id > fr.LastStreamID {
						p.resultCh <- Result{Err: fmt.Errorf("apns: unprocessed, retry safe")}
						delete(pending, id)
					}
				}
				c.setState(StateDraining)

			case *http2.SettingsFrame:
				// Nothing to renegotiate beyond accepting defaults; ack if
				// this isn't itself an ack.
				if !fr.IsAck() {
					_ = c.framer.WriteSettingsAck()
				}
			}

			if c.State() == StateDraining && len(pending) == 0 {
				return
			}

		case <-idleTimer.C:
			if pingOutstanding {
				continue
			}
			binary.BigEndian.PutUint64(pingPayload[:], nextPingID)
			nextPingID++
			if err := c.framer.WritePing(false, pingPayload); err != nil {
				failAllPending(&writeErr{err})
				return
			}
			pingOutstanding = true
			pingTimer = time.AfterFunc(c.cfg.PingTimeout, func() {
				select {
				case pingTimeoutCh <- struct{}{}:
				case <-c.doneCh:
				}
			})

		case <-pingTimeoutCh:
			if !pingOutstanding {
				continue
			}
			c.cfg.Logger.Warn("proto: ping-ack timeout, closing connection")
			failAllPending(fmt.Errorf("apns: transport failure: ping-ack timeout"))
			return

		case err := <-readErrCh:
			c.cfg.Logger.Warn("proto: read loop ended", zap.Error(err))
			failAllPending(&writeErr{err})
			return

		case req := <-c.closeCh:
			c.setState(StateDraining)
			if len(pending) == 0 {
				close(req.ack)
				return
			}
			if req.deadline > 0 {
				shutdownDeadlineCh = time.After(req.deadline)
			}
			close(req.ack)

		case <-shutdownDeadlineCh:
			c.cfg.Logger.Warn("proto: graceful-shutdown deadline elapsed, forcing close")
			failAllPending(fmt.Errorf("apns: unprocessed, retry safe"))
			return
		}

		if c.State() == StateDraining && len(pending) == 0 {
			return
		}
	}
}

// writeErr wraps a transport-level write failure.
type writeErr struct{ cause error }

func (e *writeErr) Error() string { return fmt.Sprintf("apns: transport failure: %v", e.cause) }
func (e *writeErr) Unwrap() error { return e.cause }

func (c *Conn) writeStream(streamID uint32, req wire.Request) error {
	c.hpackBuf.Reset()
	for _, f := range req.Headers {
		if err := c.hpackEnc.WriteField(f); err != nil {
			return err
		}
	}
	if err := c.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: c.hpackBuf.Bytes(),
		EndHeaders:    true,
		EndStream:     false,
	}); err != nil {
		return err
	}
	return c.framer.WriteData(streamID, true, req.Body)
}

func (c *Conn) recordOutcome(resp *wire.Response) {
	if resp == nil {
		return
	}
	if resp.Accepted {
		c.cfg.Metrics.NotificationAccepted()
	} else {
		c.cfg.Metrics.NotificationRejected()
	}
}
