package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"trustscore/internal/audit"
	"trustscore/internal/platform/postgres"
	"trustscore/pkg/platform/tx"
)

// Store persists audit entries using the transactional outbox pattern: each
// entry is written to audit_entries and to outbox in the caller's transaction,
// and the relay publishes outbox rows afterwards.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes the entry and its outbox row. Both statements run on the
// transaction in ctx when there is one.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := tx.ExecutorFrom(ctx, s.db)

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, actor_id, actor_name, actor_role,
			entity_type, entity_id, action, changes, request_id,
			client_ip, device, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID,
		entry.Actor.ID,
		entry.Actor.Name,
		entry.Actor.Role,
		entry.EntityType,
		entry.EntityID,
		string(entry.Action),
		changes,
		entry.RequestID,
		entry.ClientIP,
		entry.Device,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", postgres.Classify(err))
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		entry.EntityType,
		entry.EntityID,
		"audit."+string(entry.Action),
		payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", postgres.Classify(err))
	}
	return nil
}

// ListByEntity returns entries for one entity, most recently committed first.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*audit.Entry, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, actor_id, actor_name, actor_role,
			   entity_type, entity_id, action, changes, request_id,
			   client_ip, device, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			action  string
			changes []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Actor.ID,
			&entry.Actor.Name,
			&entry.Actor.Role,
			&entry.EntityType,
			&entry.EntityID,
			&action,
			&changes,
			&entry.RequestID,
			&entry.ClientIP,
			&entry.Device,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = audit.Action(action)
		if err := json.Unmarshal(changes, &entry.Changes); err != nil {
			return nil, fmt.Errorf("decode audit changes: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
