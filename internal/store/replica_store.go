package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

// GetReplica returns the replica record for an entity, including tombstones.
// Returns nil if no envelope for this entity has ever been applied.
func (s *PostgresStore) GetReplica(ctx context.Context, entityType, entityID string) (*domain.ReplicaRecord, error) {
	var rec domain.ReplicaRecord
	err := s.pool.QueryRow(ctx, `
		SELECT entity_type, entity_id, data, deleted, last_sync_at, updated_at
		FROM sync_replicas WHERE entity_type = $1 AND entity_id = $2
	`, entityType, entityID).Scan(
		&rec.EntityType, &rec.EntityID, &rec.Data, &rec.Deleted, &rec.LastSyncAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying replica: %w", err)
	}
	return &rec, nil
}

// ReplicaExists reports whether a live (non-tombstoned) replica exists.
// This is the predicate the dependency waiter polls.
func (s *PostgresStore) ReplicaExists(ctx context.Context, entityType, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM sync_replicas
			WHERE entity_type = $1 AND entity_id = $2 AND deleted = false
		)
	`, entityType, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking replica existence: %w", err)
	}
	return exists, nil
}

// ApplyUpsert writes the projection if and only if syncedAt is strictly newer
// than the stored watermark. The comparison and the write are a single
// statement, so two workers racing on the same entity cannot interleave a
// read-then-write. Returns false when the envelope was stale.
func (s *PostgresStore) ApplyUpsert(ctx context.Context, entityType, entityID string, data json.RawMessage, syncedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sync_replicas (entity_type, entity_id, data, deleted, last_sync_at)
		VALUES ($1, $2, $3, false, $4)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET data = EXCLUDED.data,
		    deleted = false,
		    last_sync_at = EXCLUDED.last_sync_at,
		    updated_at = NOW()
		WHERE sync_replicas.last_sync_at < EXCLUDED.last_sync_at
	`, entityType, entityID, data, syncedAt)
	if err != nil {
		return false, fmt.Errorf("upserting replica: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyDelete tombstones the replica if syncedAt is strictly newer than the
// stored watermark. Deleting an entity that was never replicated still writes
// a tombstone, so an out-of-order Created envelope cannot resurrect it later.
func (s *PostgresStore) ApplyDelete(ctx context.Context, entityType, entityID string, syncedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sync_replicas (entity_type, entity_id, data, deleted, last_sync_at)
		VALUES ($1, $2, NULL, true, $3)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET data = NULL,
		    deleted = true,
		    last_sync_at = EXCLUDED.last_sync_at,
		    updated_at = NOW()
		WHERE sync_replicas.last_sync_at < EXCLUDED.last_sync_at
	`, entityType, entityID, syncedAt)
	if err != nil {
		return false, fmt.Errorf("tombstoning replica: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListReplicas returns replicas with optional filtering, newest first.
func (s *PostgresStore) ListReplicas(ctx context.Context, entityType string, includeDeleted bool, limit int) ([]domain.ReplicaRecord, error) {
	query := `SELECT entity_type, entity_id, data, deleted, last_sync_at, updated_at FROM sync_replicas`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if entityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, entityType)
		argIdx++
	}
	if !includeDeleted {
		conditions = append(conditions, "deleted = false")
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

	query += " ORDER BY last_sync_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying replicas: %w", err)
	}
	defer rows.Close()

	var replicas []domain.ReplicaRecord
	for rows.Next() {
		var r domain.ReplicaRecord
		err := rows.Scan(&r.EntityType, &r.EntityID, &r.Data, &r.Deleted, &r.LastSyncAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning replica: %w", err)
		}
		replicas = append(replicas, r)
	}

	if replicas == nil {
		replicas = []domain.ReplicaRecord{}
	}

	return replicas, nil
}

// ReplicaCounts returns live and tombstoned row counts per entity type.
func (s *PostgresStore) ReplicaCounts(ctx context.Context) (map[string]int64, map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_type, deleted, COUNT(*)
		FROM sync_replicas
		GROUP BY entity_type, deleted
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("counting replicas: %w", err)
	}
	defer rows.Close()

	live := map[string]int64{}
	tombstoned := map[string]int64{}
	for rows.Next() {
		var entityType string
		var deleted bool
		var count int64
		if err := rows.Scan(&entityType, &deleted, &count); err != nil {
			return nil, nil, fmt.Errorf("scanning replica counts: %w", err)
		}
		if deleted {
			tombstoned[entityType] = count
		} else {
			live[entityType] = count
		}
	}

	return live, tombstoned, nil
}
