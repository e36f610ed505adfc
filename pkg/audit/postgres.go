package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBStore is the PostgreSQL audit trail.
type DBStore struct {
	db *sql.DB
}

// NewDBStore creates an audit store over db.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

const eventColumns = `id, occurred_at, event_type, outcome, actor_iri, project_iri, permission_iri, request_id, detail`

// Record inserts one event.
func (s *DBStore) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO permission_audit_events
			(occurred_at, event_type, outcome, actor_iri, project_iri, permission_iri, request_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.OccurredAt, e.Type, e.Outcome, e.ActorIRI, e.Project,
		nullable(e.PermissionIRI), nullable(e.RequestID), nullable(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Search returns events matching f, newest first.
func (s *DBStore) Search(ctx context.Context, f Filter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM permission_audit_events WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Project != "" {
		query += ` AND project_iri = ` + arg(f.Project)
	}
	if f.ActorIRI != "" {
		query += ` AND actor_iri = ` + arg(f.ActorIRI)
	}
	if f.Type != "" {
		query += ` AND event_type = ` + arg(string(f.Type))
	}
	if !f.Since.IsZero() {
		query += ` AND occurred_at >= ` + arg(f.Since)
	}
	if !f.Until.IsZero() {
		query += ` AND occurred_at <= ` + arg(f.Until)
	}
	query += ` ORDER BY occurred_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var permissionIRI, requestID, detail sql.NullString
		if err := rows.Scan(
			&e.ID, &e.OccurredAt, &e.Type, &e.Outcome, &e.ActorIRI, &e.Project,
			&permissionIRI, &requestID, &detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.PermissionIRI = permissionIRI.String
		e.RequestID = requestID.String
		e.Detail = detail.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return out, nil
}

// Cleanup deletes events older than retention and reports how many went.
func (s *DBStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM permission_audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	return res.RowsAffected()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
