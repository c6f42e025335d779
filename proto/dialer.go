// Package proto implements the per-connection HTTP/2 protocol state machine:
// stream multiplexing, liveness pings, idle/graceful-shutdown timers, and
// per-stream result correlation. It is built directly on
// golang.org/x/net/http2's Framer rather than net/http, matching the
// frame-level control the corpus's own APNs clients use.
package proto

import (
	"context"
	"crypto/tls"
	"net"
)

// Dialer is the TransportFactory collaborator: it owns TLS dialing and ALPN
// negotiation. proto.Conn treats it opaquely.
type Dialer interface {
	DialTLS(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error)
}

// TLSDialer is the default Dialer, using crypto/tls directly.
type TLSDialer struct{}

// DialTLS dials addr ("host:port") over TLS with ALPN negotiation. The
// caller's tls.Config should already list NextProtos: []string{"h2"}.
func (TLSDialer) DialTLS(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	d := &tls.Dialer{Config: cfg}
	return d.DialContext(ctx, "tcp", addr)
}
