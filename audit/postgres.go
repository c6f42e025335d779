// Package audit optionally persists one row per rejected notification so
// operators have a queryable rejection history beyond per-call metrics.
// It is a durable record, never a retry queue: the client never consults
// it to decide whether to resend anything.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apns "github.com/mhaga/apns-core"
)

// PostgresSink writes rejection rows to a Postgres table via a pgxpool
// connection pool.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink wraps an already-connected *pgxpool.Pool. table defaults
// to "apns_rejections" when empty.
func NewPostgresSink(pool *pgxpool.Pool, table string) *PostgresSink {
	if table == "" {
		table = "apns_rejections"
	}
	return &PostgresSink{pool: pool, table: table}
}

// CreateTable issues the DDL for the rejection table if it doesn't
// already exist. Safe to call on every startup.
func (s *PostgresSink) CreateTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id                           BIGSERIAL PRIMARY KEY,
			apns_id                      TEXT NOT NULL,
			reason                       TEXT NOT NULL,
			topic                        TEXT NOT NULL,
			token_invalidation_timestamp BIGINT,
			occurred_at                  TIMESTAMPTZ NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

// RecordRejection inserts one row for a rejected notification. occurredAt
// is passed in rather than taken from time.Now so callers can backdate
// rows reconstructed from a replayed event stream.
func (s *PostgresSink) RecordRejection(ctx context.Context, n *apns.Notification, resp *apns.Response, occurredAt time.Time) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (apns_id, reason, topic, token_invalidation_timestamp, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`, s.table),
		resp.APNsID, string(resp.RejectionReason), n.Topic(), nullableTimestamp(resp), occurredAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record rejection: %w", err)
	}
	return nil
}

func nullableTimestamp(resp *apns.Response) *int64 {
	if resp.RejectionReason != apns.ReasonUnregistered {
		return nil
	}
	ts := resp.TokenInvalidationTimestamp
	return &ts
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
