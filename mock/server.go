package mock

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/mhaga/apns-core"
	"github.com/mhaga/apns-core/metrics"
)

// Config configures a Server.
type Config struct {
	TLSConfig *tls.Config
	Handler   Handler
	Logger    *zap.Logger
	Metrics   metrics.Sink
}

// Server is an HTTP/2 listener that accepts the same request shape a
// real APNs connection sends and runs Handler against it.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	handler    Handler
	logger     *zap.Logger
	metrics    metrics.Sink
}

// NewServer builds a Server. Call Serve to start accepting connections.
func NewServer(cfg Config) (*Server, error) {
	handler := cfg.Handler
	if handler == nil {
		handler = AcceptAllHandler{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.Nop{}
	}

	s := &Server{handler: handler, logger: logger, metrics: sink}

	r := chi.NewRouter()
	r.Post("/3/device/{token}", s.handleSend)
	r.NotFound(s.handleBadPath)
	r.MethodNotAllowed(s.handleBadPath)

	httpServer := &http.Server{
		Handler:   r,
		TLSConfig: cfg.TLSConfig,
	}
	if err := http2.ConfigureServer(httpServer, &http2.Server{}); err != nil {
		return nil, fmt.Errorf("mock: configure http2: %w", err)
	}
	s.httpServer = httpServer
	return s, nil
}

// Serve accepts connections on l until Close is called. l must already
// be a TLS listener for the config passed to NewServer; tests typically
// use tls.Listen with an in-memory certificate.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	err := s.httpServer.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the listener's address, or "" before Serve is called.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("mock: handler panicked", zap.Any("recover", rec))
			writeOutcome(w, &Outcome{Accept: false, Reason: apns.ReasonInternalServerError})
		}
	}()

	token := chi.URLParam(r, "token")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeOutcome(w, &Outcome{Accept: false, Reason: apns.ReasonInternalServerError})
		return
	}

	req := &IncomingRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		DeviceToken:   token,
		Topic:         r.Header.Get("apns-topic"),
		APNsID:        r.Header.Get("apns-id"),
		Priority:      r.Header.Get("apns-priority"),
		CollapseID:    r.Header.Get("apns-collapse-id"),
		Expiration:    r.Header.Get("apns-expiration"),
		Authorization: r.Header.Get("authorization"),
		Body:          body,
	}

	outcome := s.handler.Handle(req)
	if outcome.Accept {
		s.metrics.NotificationAccepted()
	} else {
		s.metrics.NotificationRejected()
	}
	writeOutcome(w, outcome)
}

func (s *Server) handleBadPath(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, &Outcome{Accept: false, Reason: apns.ReasonBadPath})
}

func writeOutcome(w http.ResponseWriter, o *Outcome) {
	if o.APNsID != "" {
		w.Header().Set("apns-id", o.APNsID)
	}
	if o.Accept {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(o.Reason.HTTPStatus())

	body := struct {
		Reason    string `json:"reason"`
		Timestamp int64  `json:"timestamp,omitempty"`
	}{Reason: string(o.Reason), Timestamp: o.TokenInvalidationTimestamp}
	_ = json.NewEncoder(w).Encode(body)
}
