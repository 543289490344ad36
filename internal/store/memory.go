package store

import (
	"context"
	"sync"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
)

// MemoryReplicaStore is an in-memory replica store with the same conditional
// write semantics as the Postgres store. The compare-and-apply runs under one
// lock, so it is atomic with respect to concurrent workers. Used in tests and
// usable for embedding where the consumer keeps no durable state.
type MemoryReplicaStore struct {
	mu       sync.Mutex
	replicas map[string]*domain.ReplicaRecord
}

func NewMemoryReplicaStore() *MemoryReplicaStore {
	return &MemoryReplicaStore{
		replicas: make(map[string]*domain.ReplicaRecord),
	}
}

func replicaKey(entityType, entityID string) string {
	return entityType + "/" + entityID
}

func (s *MemoryReplicaStore) GetReplica(_ context.Context, entityType, entityID string) (*domain.ReplicaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.replicas[replicaKey(entityType, entityID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryReplicaStore) ReplicaExists(_ context.Context, entityType, entityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.replicas[replicaKey(entityType, entityID)]
	return ok && !rec.Deleted, nil
}

func (s *MemoryReplicaStore) ApplyUpsert(_ context.Context, entityType, entityID string, data json.RawMessage, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := replicaKey(entityType, entityID)
	if existing, ok := s.replicas[key]; ok && !syncedAt.After(existing.LastSyncAt) {
		return false, nil
	}

	s.replicas[key] = &domain.ReplicaRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		Deleted:    false,
		LastSyncAt: syncedAt,
		UpdatedAt:  time.Now().UTC(),
	}
	return true, nil
}

func (s *MemoryReplicaStore) ApplyDelete(_ context.Context, entityType, entityID string, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := replicaKey(entityType, entityID)
	if existing, ok := s.replicas[key]; ok && !syncedAt.After(existing.LastSyncAt) {
		return false, nil
	}

	s.replicas[key] = &domain.ReplicaRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Deleted:    true,
		LastSyncAt: syncedAt,
		UpdatedAt:  time.Now().UTC(),
	}
	return true, nil
}
