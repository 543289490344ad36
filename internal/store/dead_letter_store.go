package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

// DeadLetterRecord holds data for inserting a dead letter entry.
type DeadLetterRecord struct {
	MessageID     string
	EntityType    string
	EntityID      string
	Envelope      json.RawMessage
	TotalAttempts int
	Reason        string
}

// InsertDeadLetter records a message that exhausted its retries or was
// malformed. The raw envelope is kept so it can be requeued after inspection.
func (s *PostgresStore) InsertDeadLetter(ctx context.Context, rec DeadLetterRecord) error {
	var reason *string
	if rec.Reason != "" {
		reason = &rec.Reason
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letter_queue (message_id, entity_type, entity_id, envelope, total_attempts, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.MessageID, rec.EntityType, rec.EntityID, rec.Envelope, rec.TotalAttempts, reason)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns dead letter entries with optional filtering.
func (s *PostgresStore) ListDeadLetters(ctx context.Context, entityType string, resolved bool, limit int) ([]domain.DeadLetter, error) {
	query := `SELECT id, message_id, entity_type, entity_id, envelope, total_attempts, reason, created_at, resolved_at, resolved_by FROM dead_letter_queue`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if entityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, entityType)
		argIdx++
	}

	if resolved {
		conditions = append(conditions, "resolved_at IS NOT NULL")
	} else {
		conditions = append(conditions, "resolved_at IS NULL")
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	var letters []domain.DeadLetter
	for rows.Next() {
		var dl domain.DeadLetter
		err := rows.Scan(
			&dl.ID, &dl.MessageID, &dl.EntityType, &dl.EntityID,
			&dl.Envelope, &dl.TotalAttempts, &dl.Reason,
			&dl.CreatedAt, &dl.ResolvedAt, &dl.ResolvedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		letters = append(letters, dl)
	}

	if letters == nil {
		letters = []domain.DeadLetter{}
	}

	return letters, nil
}

// GetDeadLetter returns a single dead letter by ID.
func (s *PostgresStore) GetDeadLetter(ctx context.Context, id string) (*domain.DeadLetter, error) {
	var dl domain.DeadLetter
	err := s.pool.QueryRow(ctx, `
		SELECT id, message_id, entity_type, entity_id, envelope, total_attempts, reason, created_at, resolved_at, resolved_by
		FROM dead_letter_queue WHERE id = $1
	`, id).Scan(
		&dl.ID, &dl.MessageID, &dl.EntityType, &dl.EntityID,
		&dl.Envelope, &dl.TotalAttempts, &dl.Reason,
		&dl.CreatedAt, &dl.ResolvedAt, &dl.ResolvedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying dead letter: %w", err)
	}
	return &dl, nil
}

// ResolveDeadLetter marks a dead letter as resolved.
func (s *PostgresStore) ResolveDeadLetter(ctx context.Context, id string, resolvedBy string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE dead_letter_queue SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolving dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dead letter not found or already resolved")
	}
	return nil
}
