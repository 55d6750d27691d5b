// Package eventlog adds networked event log backends: a Postgres store and a
// Kafka exporter. Importing the package registers both with core/coreeventlog.
package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	coreeventlog "github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/factory"
)

func init() {
	_ = coreeventlog.RegisterStore("postgres", func(conf map[string]any) (coreeventlog.Store, error) {
		c := struct {
			DSN       string        `json:"dsn"`
			Table     string        `json:"table"`
			ConnectTO time.Duration `json:"connect_timeout"`
		}{Table: "event_log", ConnectTO: 10 * time.Second}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.ConnectTO)
		defer cancel()
		return NewPostgresStore(ctx, c.DSN, c.Table)
	})
	_ = coreeventlog.RegisterSink("kafka", func(conf map[string]any) (coreeventlog.Sink, error) {
		var c KafkaConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewKafkaSink(c)
	})
}

// PostgresStore persists records in a Postgres table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore connects to dsn and creates the table when missing.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("eventlog/postgres: dsn required")
	}
	if table == "" {
		table = "event_log"
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog/postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("eventlog/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("eventlog/postgres: ping: %w", err)
	}
	s := &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			seq            BIGINT PRIMARY KEY,
			id             TEXT NOT NULL,
			topic          TEXT NOT NULL,
			sender         TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT '',
			ts             TIMESTAMPTZ NOT NULL,
			payload        JSONB
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (correlation_id, ts);`,
		s.table, pgx.Identifier{strings.Trim(s.table, `"`) + "_correlation"}.Sanitize()))
	if err != nil {
		return fmt.Errorf("eventlog/postgres: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec coreeventlog.Record) error {
	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (seq, id, topic, sender, correlation_id, ts, payload) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`, s.table),
		int64(rec.Seq), rec.ID, rec.Topic, rec.Sender, rec.CorrelationID, rec.Timestamp.UTC(), payload)
	if err != nil {
		return fmt.Errorf("eventlog/postgres: append #%d: %w", rec.Seq, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, q coreeventlog.Query) ([]coreeventlog.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.IncidentID != "" {
		add("correlation_id = $%d", q.IncidentID)
	}
	if q.Topic != "" {
		add("topic = $%d", q.Topic)
	}
	if !q.Start.IsZero() {
		add("ts >= $%d", q.Start.UTC())
	}
	if !q.End.IsZero() {
		add("ts <= $%d", q.End.UTC())
	}
	sql := fmt.Sprintf(`SELECT seq, id, topic, sender, correlation_id, ts, COALESCE(payload::text, '') FROM %s`, s.table)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY seq"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog/postgres: query: %w", err)
	}
	defer rows.Close()
	var res []coreeventlog.Record
	for rows.Next() {
		var (
			r       coreeventlog.Record
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &r.ID, &r.Topic, &r.Sender, &r.CorrelationID, &r.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("eventlog/postgres: scan: %w", err)
		}
		r.Seq = uint64(seq)
		r.Timestamp = r.Timestamp.UTC()
		if payload != "" {
			r.Payload = []byte(payload)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PostgresStore) LastSeq(ctx context.Context) (uint64, error) {
	var last int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM %s`, s.table)).Scan(&last); err != nil {
		return 0, fmt.Errorf("eventlog/postgres: last seq: %w", err)
	}
	return uint64(last), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
