package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS event_log (
        seq INTEGER PRIMARY KEY,
        id TEXT NOT NULL,
        topic TEXT NOT NULL,
        sender TEXT,
        correlation_id TEXT,
        ts INTEGER NOT NULL,
        payload TEXT
    );
    CREATE INDEX IF NOT EXISTS event_log_correlation ON event_log (correlation_id, ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record. Re-appending a sequence number is an error.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (seq, id, topic, sender, correlation_id, ts, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.ID, rec.Topic, rec.Sender, rec.CorrelationID, rec.Timestamp.UnixNano(), string(rec.Payload))
	return err
}

// Query returns records matching q.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT seq, id, topic, sender, correlation_id, ts, payload FROM event_log WHERE 1=1`
	if q.IncidentID != "" {
		query += ` AND correlation_id = ?`
		args = append(args, q.IncidentID)
	}
	if q.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, q.Topic)
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			r       Record
			ts      int64
			payload string
		)
		if err := rows.Scan(&r.Seq, &r.ID, &r.Topic, &r.Sender, &r.CorrelationID, &ts, &payload); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		r.Payload = []byte(payload)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) LastSeq(ctx context.Context) (uint64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM event_log`).Scan(&last)
	return uint64(last), err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
