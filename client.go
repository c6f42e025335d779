// Package apns provides a client for sending push notifications to the
// Apple Push Notification service (APNs).
// It supports both token-based (.p8) and certificate-based (.p12) authentication.
package apns

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mhaga/apns-core/auth"
	"github.com/mhaga/apns-core/metrics"
	"github.com/mhaga/apns-core/notification"
	"github.com/mhaga/apns-core/pool"
	"github.com/mhaga/apns-core/proto"
	"github.com/mhaga/apns-core/wire"
)

const (
	// ProductionHost is the APNs production server address.
	ProductionHost = "api.push.apple.com:443"
	// DevelopmentHost is the APNs development server address.
	DevelopmentHost = "api.sandbox.push.apple.com:443"

	// defaultCapacity is the number of pooled connections a Client opens
	// on demand when no WithCapacity option is given.
	defaultCapacity = 4

	// MaxTokens bounds PushMulti's per-call batch size.
	MaxTokens = 100
)

// connFactory adapts proto.Dial to pool.Factory[*proto.Conn].
type connFactory struct {
	cfg proto.Config
}

func (f *connFactory) Create(ctx context.Context) (*proto.Conn, error) {
	c, err := proto.Dial(ctx, f.cfg)
	if err != nil {
		f.cfg.Metrics.ConnectionFailed()
		return nil, err
	}
	return c, nil
}

func (f *connFactory) Destroy(c *proto.Conn) {
	c.Close(5 * time.Second)
}

// AuditSink optionally records every rejected notification for operators
// who want a queryable history beyond per-call metrics. Satisfied by
// audit.PostgresSink without this package importing audit.
type AuditSink interface {
	RecordRejection(ctx context.Context, n *Notification, resp *Response, occurredAt time.Time) error
}

// Client sends notifications to APNs over a capacity-bounded pool of
// HTTP/2 connections.
type Client struct {
	pool      *pool.Pool[*proto.Conn]
	issuer    *auth.Issuer // nil in certificate-auth mode
	tokenAuth bool
	logger    *zap.Logger
	metrics   metrics.Sink
	audit     AuditSink
}

// Option configures a Client built by NewClientWithToken or NewClientWithCert.
type Option func(*clientOptions)

type clientOptions struct {
	addr        string
	capacity    int
	logger      *zap.Logger
	metrics     metrics.Sink
	idleTimeout time.Duration
	pingTimeout time.Duration
	rootCAs     *x509.CertPool
	skipVerify  bool
	audit       AuditSink
}

func defaultOptions() clientOptions {
	return clientOptions{addr: ProductionHost, capacity: defaultCapacity}
}

// WithAddr overrides the default production host, e.g. to DevelopmentHost
// or a mock server address.
func WithAddr(addr string) Option { return func(o *clientOptions) { o.addr = addr } }

// WithCapacity sets the pool's connection capacity.
func WithCapacity(n int) Option { return func(o *clientOptions) { o.capacity = n } }

// WithLogger attaches structured logging to the client and its connections.
func WithLogger(l *zap.Logger) Option { return func(o *clientOptions) { o.logger = l } }

// WithMetrics attaches a metrics sink to the client and its connections.
func WithMetrics(m metrics.Sink) Option { return func(o *clientOptions) { o.metrics = m } }

// WithTimeouts overrides the per-connection idle-ping and ping-ack timeouts.
func WithTimeouts(idle, ping time.Duration) Option {
	return func(o *clientOptions) { o.idleTimeout = idle; o.pingTimeout = ping }
}

// WithRootCAs trusts the given certificate pool instead of the system
// roots when verifying the server's certificate. Intended for testing
// against a mock server with a self-signed certificate.
func WithRootCAs(pool *x509.CertPool) Option { return func(o *clientOptions) { o.rootCAs = pool } }

// WithInsecureSkipVerify disables server certificate verification
// entirely. Only for tests against a mock server; never use this
// against the real APNs service.
func WithInsecureSkipVerify() Option { return func(o *clientOptions) { o.skipVerify = true } }

// WithAuditSink records every rejected notification to sink in addition
// to the usual Response/error return. Optional.
func WithAuditSink(sink AuditSink) Option { return func(o *clientOptions) { o.audit = sink } }

// NewClientWithToken builds a Client that authenticates every request with
// an ES256 provider token minted by issuer.
func NewClientWithToken(issuer *auth.Issuer, opts ...Option) (*Client, error) {
	if issuer == nil {
		return nil, errors.New("apns: issuer must not be nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(o, nil, issuer)
}

// NewClientWithCert builds a Client that authenticates via a TLS client
// certificate. Apple determines which topics the certificate authorizes;
// the client performs no additional topic check in this mode.
func NewClientWithCert(cert *tls.Certificate, opts ...Option) (*Client, error) {
	if cert == nil {
		return nil, errors.New("apns: certificate must not be nil")
	}
	if len(cert.Certificate) == 0 || cert.PrivateKey == nil {
		return nil, errors.New("apns: invalid certificate: empty certificate or private key")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(o, cert, nil)
}

func newClient(o clientOptions, cert *tls.Certificate, issuer *auth.Issuer) (*Client, error) {
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := o.metrics
	if sink == nil {
		sink = metrics.Nop{}
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, NextProtos: []string{"h2"}}
	if cert != nil {
		tlsCfg.Certificates = []tls.Certificate{*cert}
	}
	if o.rootCAs != nil {
		tlsCfg.RootCAs = o.rootCAs
	}
	if o.skipVerify {
		tlsCfg.InsecureSkipVerify = true
	}

	connCfg := proto.Config{
		Dialer:      proto.TLSDialer{},
		Addr:        o.addr,
		TLSConfig:   tlsCfg,
		Logger:      logger,
		Metrics:     sink,
		IdleTimeout: o.idleTimeout,
		PingTimeout: o.pingTimeout,
	}

	p := pool.New[*proto.Conn](o.capacity, &connFactory{cfg: connCfg}, logger)

	return &Client{
		pool:      p,
		issuer:    issuer,
		tokenAuth: issuer != nil,
		logger:    logger,
		metrics:   sink,
		audit:     o.audit,
	}, nil
}

// Send delivers n over a pooled connection: acquire, write, then release
// once the per-notification handle resolves, whether that resolution is
// an accept, a rejection, or a transport failure.
func (cli *Client) Send(ctx context.Context, n *Notification) (*Response, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if n.Type == notification.Location && !cli.tokenAuth {
		return nil, fmt.Errorf("%w: location push type requires token-based authentication", ErrInvalidArgument)
	}

	body, err := n.Payload.MarshalJSONFast()
	if err != nil {
		return nil, fmt.Errorf("apns: marshal payload: %w", err)
	}
	limit := 4096
	if n.Type == notification.Voip {
		limit = 5120
	}
	if len(body) > limit {
		return nil, fmt.Errorf("%w: payload is %d bytes, exceeds %d byte limit", ErrInvalidArgument, len(body), limit)
	}

	conn, err := cli.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	var bearer string
	if cli.tokenAuth {
		bearer, err = cli.issuer.Bearer(ctx)
		if err != nil {
			cli.pool.Release(conn)
			return nil, fmt.Errorf("apns: mint provider token: %w", err)
		}
	}

	var expiration *int64
	if n.Expiration != nil {
		e := int64(*n.Expiration)
		expiration = &e
	}

	req := wire.EncodeRequest(n.DeviceToken, n.Topic(), n.APNsID, expiration, int(n.Priority), n.CollapseID, bearer, body)

	resCh := conn.Write(req)
	select {
	case res := <-resCh:
		cli.pool.Release(conn)
		cli.metrics.NotificationSent()
		return cli.toResponse(ctx, n, res)
	case <-ctx.Done():
		cli.pool.Release(conn)
		return nil, ctx.Err()
	}
}

func (cli *Client) toResponse(ctx context.Context, n *Notification, res proto.Result) (*Response, error) {
	if res.Err != nil {
		// proto cannot import this package, so it reports unprocessed
		// streams with ErrUnprocessed's text rather than the sentinel.
		if res.Err.Error() == ErrUnprocessed.Error() {
			return nil, ErrUnprocessed
		}
		return nil, &TransportError{Cause: res.Err}
	}
	w := res.Response
	apnsID := w.APNsID
	if apnsID == "" {
		apnsID = n.APNsID
	}
	resp := &Response{APNsID: apnsID, Accepted: w.Accepted}
	if w.Accepted {
		return resp, nil
	}
	reason := reasonFromWire(w.Reason)
	resp.RejectionReason = reason
	resp.TokenInvalidationTimestamp = w.Timestamp
	if cli.audit != nil {
		if err := cli.audit.RecordRejection(ctx, n, resp, time.Now()); err != nil {
			cli.logger.Warn("apns: audit sink write failed", zap.Error(err))
		}
	}
	return resp, &RejectedError{Reason: reason, TokenInvalidationTimestamp: w.Timestamp}
}

// result pairs a PushMulti outcome with the device token it targeted.
type result struct {
	Token string
	Resp  *Response
	Err   error
}

// PushMulti sends the same notification to multiple device tokens
// concurrently, retargeting a clone of n at each token.
//
// It returns every successful Response and, if any token failed, a
// *MultiError keyed by device token. A nil error means every token
// succeeded.
func (cli *Client) PushMulti(ctx context.Context, n *Notification, tokens []string) ([]*Response, error) {
	if len(tokens) == 0 {
		return nil, errors.New("apns: token list is empty")
	}
	if len(tokens) > MaxTokens {
		return nil, fmt.Errorf("apns: token limit exceeded: got %d tokens, maximum allowed is %d", len(tokens), MaxTokens)
	}

	results := make(chan result, len(tokens))
	for _, token := range tokens {
		go func(token string) {
			if err := ctx.Err(); err != nil {
				results <- result{Token: token, Err: err}
				return
			}
			target := n.Clone()
			target.DeviceToken = token
			resp, err := cli.Send(ctx, target)
			results <- result{Token: token, Resp: resp, Err: err}
		}(token)
	}

	successes := make([]*Response, 0, len(tokens))
	failures := make(map[string]error)
	for range tokens {
		res := <-results
		if res.Err != nil {
			failures[res.Token] = res.Err
			continue
		}
		successes = append(successes, res.Resp)
	}

	if len(failures) > 0 {
		return successes, &MultiError{Failures: failures}
	}
	return successes, nil
}

// MultiError holds the per-token failures from a PushMulti call.
type MultiError struct {
	Failures map[string]error
}

func (e *MultiError) Error() string {
	return fmt.Sprintf("apns: batch send failed for %d of the requested tokens", len(e.Failures))
}

// Close shuts down the connection pool and returns once the pool has
// stopped serving requests. The connections are then closed in the
// background, each draining its pending streams for up to
// connFactory.Destroy's deadline.
func (cli *Client) Close() error {
	cli.pool.Close()
	return nil
}
