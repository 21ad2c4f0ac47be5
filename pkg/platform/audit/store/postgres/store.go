package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"brick/pkg/domain"
	audit "brick/pkg/platform/audit"
	txcontext "brick/pkg/platform/tx"
)

// Schema creates the audit table. Applied by EnsureSchema on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT        NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	action      TEXT        NOT NULL,
	actor       TEXT        NOT NULL DEFAULT '',
	subject     TEXT        NOT NULL DEFAULT '',
	entity_type TEXT        NOT NULL DEFAULT '',
	entity_id   TEXT        NOT NULL DEFAULT '',
	property_id TEXT        NOT NULL DEFAULT '',
	asset       TEXT        NOT NULL DEFAULT '',
	amount      NUMERIC(20) NOT NULL DEFAULT 0,
	reason      TEXT        NOT NULL DEFAULT '',
	request_id  TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_entity_idx ON audit_events (entity_type, entity_id);
CREATE INDEX IF NOT EXISTS audit_events_actor_idx ON audit_events (actor);
`

// Store persists audit events in PostgreSQL. Appends join a *sql.Tx carried
// in context so an outer database transaction can include them.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies Schema idempotently.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From[*sql.Tx](ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an event. Idempotent on event id.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, actor, subject,
			entity_type, entity_id, property_id, asset, amount,
			reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Timestamp,
		event.Action,
		string(event.Actor),
		string(event.Subject),
		event.EntityType,
		event.EntityID,
		string(event.PropertyID),
		string(event.Asset),
		fmt.Sprint(event.Amount),
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, category, timestamp, action, actor, subject,
		   entity_type, entity_id, property_id, asset, amount,
		   reason, request_id
	FROM audit_events
`

// ListByEntity returns the trail of one entity, oldest first.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp ASC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByActor returns events performed by a principal, newest first.
func (s *Store) ListByActor(ctx context.Context, actor domain.Principal) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE actor = $1
		ORDER BY timestamp DESC
	`, string(actor))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByActions returns events whose action is one of actions, newest first.
func (s *Store) ListByActions(ctx context.Context, actions []audit.AuditEvent, limit int) ([]audit.Event, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE action = ANY($1)
		ORDER BY timestamp DESC
		LIMIT $2
	`, pq.Array(names), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event                              audit.Event
			category, actor, subject, property string
			asset                              string
			amount                             uint64
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.Action,
			&actor,
			&subject,
			&event.EntityType,
			&event.EntityID,
			&property,
			&asset,
			&amount,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Actor = domain.Principal(actor)
		event.Subject = domain.Principal(subject)
		event.PropertyID = domain.PropertyID(property)
		event.Asset = domain.Asset(asset)
		event.Amount = amount
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
