// Package metrics defines the Sink collaborator proto.Conn, apns.Client
// and mock.Server report into, plus a Prometheus-backed implementation, following the
// counters-and-gauges shape the rest of the pack exposes through
// client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives connection and delivery events from proto.Conn,
// apns.Client and mock.Server. Implementations must be safe for
// concurrent use; these callers invoke the methods without any locking
// of their own.
type Sink interface {
	ConnectionAdded()
	ConnectionRemoved()
	ConnectionFailed()
	NotificationSent()
	NotificationAccepted()
	NotificationRejected()
}

// Nop is a Sink that discards every event. It is the zero-value default
// for proto.Config, apns.Client and mock.Server callers that don't wire
// metrics.
type Nop struct{}

func (Nop) ConnectionAdded()      {}
func (Nop) ConnectionRemoved()    {}
func (Nop) ConnectionFailed()     {}
func (Nop) NotificationSent()     {}
func (Nop) NotificationAccepted() {}
func (Nop) NotificationRejected() {}

// Prometheus is a Sink that publishes counters and a gauge through
// github.com/prometheus/client_golang.
type Prometheus struct {
	connectionsActive prometheus.Gauge
	connectionsFailed prometheus.Counter
	notificationsSent prometheus.Counter
	accepted          prometheus.Counter
	rejected          prometheus.Counter
}

// NewPrometheus builds a Prometheus sink and registers its collectors
// against reg. Passing prometheus.DefaultRegisterer matches the rest of
// the pack's RegisterDefault convention.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apns_connections_active",
			Help: "Number of open HTTP/2 connections to APNs.",
		}),
		connectionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apns_connections_failed_total",
			Help: "Number of connection attempts that failed.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apns_notifications_sent_total",
			Help: "Number of notifications written to a stream.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apns_notifications_accepted_total",
			Help: "Number of notifications APNs accepted (status 200).",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apns_notifications_rejected_total",
			Help: "Number of notifications APNs rejected (status != 200).",
		}),
	}
	for _, c := range []prometheus.Collector{
		p.connectionsActive, p.connectionsFailed, p.notificationsSent, p.accepted, p.rejected,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic("metrics: failed to register collector: " + err.Error())
			}
		}
	}
	return p
}

func (p *Prometheus) ConnectionAdded()      { p.connectionsActive.Inc() }
func (p *Prometheus) ConnectionRemoved()    { p.connectionsActive.Dec() }
func (p *Prometheus) ConnectionFailed()     { p.connectionsFailed.Inc() }
func (p *Prometheus) NotificationSent()     { p.notificationsSent.Inc() }
func (p *Prometheus) NotificationAccepted() { p.accepted.Inc() }
func (p *Prometheus) NotificationRejected() { p.rejected.Inc() }
