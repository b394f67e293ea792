package eventlog

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo persists webhook records via database/sql (pgx stdlib driver).
//
// It assumes the following table exists:
//
//	CREATE TABLE webhook_events (
//	  id          TEXT PRIMARY KEY,
//	  call_id     TEXT NOT NULL,
//	  event_type  TEXT NOT NULL,
//	  payload     JSONB NOT NULL,
//	  received_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX webhook_events_received_at_idx ON webhook_events (received_at);
//
// Appends are single INSERTs, so concurrent webhook deliveries serialize in
// the database instead of racing over a shared file.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" || rec.CallID == "" {
		return ErrInvalidRecord
	}
	const q = `
INSERT INTO webhook_events (id, call_id, event_type, payload, received_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.CallID,
		rec.EventType,
		[]byte(rec.Payload),
		rec.ReceivedAt,
	)
	return err
}

func (r *PostgresRepo) Since(ctx context.Context, since time.Time, callID string) ([]Record, error) {
	const base = `
SELECT id, call_id, event_type, payload, received_at
FROM webhook_events
WHERE received_at > $1
`
	var (
		rows *sql.Rows
		err  error
	)
	if callID != "" {
		rows, err = r.db.QueryContext(ctx, base+` AND call_id = $2 ORDER BY received_at ASC`, since, callID)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY received_at ASC`, since)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.EventType, &payload, &rec.ReceivedAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}
