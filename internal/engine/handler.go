package engine

import (
	"fmt"
	"sync"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
)

// Dependency names an entity that must exist in the local replica store
// before an envelope can be applied (e.g. the Company an Employee belongs to).
type Dependency struct {
	EntityType string
	EntityID   string
}

// Handler is a consuming service's per-entity-type contract: which envelopes
// it cares about, which local entities must exist first, and which subset of
// the producer's fields it projects into its own store.
type Handler interface {
	ShouldHandle(env *domain.Envelope) bool
	Dependencies(env *domain.Envelope) ([]Dependency, error)
	Project(env *domain.Envelope) (json.RawMessage, error)
}

// Registry maps entity types to handlers. Envelopes whose entity type has no
// registered handler are acknowledged without effect.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(entityType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entityType] = h
}

func (r *Registry) Lookup(entityType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[entityType]
	return h, ok
}

// Ref declares that a field of the entity data holds the id of another
// replicated entity type.
type Ref struct {
	Field      string
	EntityType string
}

// ProjectionHandler is a data-driven Handler: it projects a declared subset
// of the producer's fields and derives dependencies from declared reference
// fields. A nil field list projects the entity data unchanged.
type ProjectionHandler struct {
	fields []string
	refs   []Ref
	filter func(env *domain.Envelope) bool
}

func NewProjectionHandler(fields []string, refs ...Ref) *ProjectionHandler {
	return &ProjectionHandler{fields: fields, refs: refs}
}

// WithFilter sets a predicate deciding which envelopes this handler consumes.
// Envelopes it rejects are acknowledged as no-ops.
func (h *ProjectionHandler) WithFilter(f func(env *domain.Envelope) bool) *ProjectionHandler {
	h.filter = f
	return h
}

func (h *ProjectionHandler) ShouldHandle(env *domain.Envelope) bool {
	if h.filter == nil {
		return true
	}
	return h.filter(env)
}

// Dependencies reads each declared reference field from the entity data. A
// reference field that is absent or empty contributes no dependency; entity
// data that is not a JSON object is a permanent (malformed) failure.
func (h *ProjectionHandler) Dependencies(env *domain.Envelope) ([]Dependency, error) {
	if len(h.refs) == 0 {
		return nil, nil
	}

	fields, err := decodeEntityData(env)
	if err != nil {
		return nil, err
	}

	var deps []Dependency
	for _, ref := range h.refs {
		val, ok := fields[ref.Field]
		if !ok {
			continue
		}
		id, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: reference field %q is not a string", domain.ErrMalformedEnvelope, ref.Field)
		}
		if id == "" {
			continue
		}
		deps = append(deps, Dependency{EntityType: ref.EntityType, EntityID: id})
	}
	return deps, nil
}

// Project narrows the entity data to the declared fields. Consumers are not
// required to consume every field the producer exposes.
func (h *ProjectionHandler) Project(env *domain.Envelope) (json.RawMessage, error) {
	if h.fields == nil {
		return env.EntityData, nil
	}

	fields, err := decodeEntityData(env)
	if err != nil {
		return nil, err
	}

	projected := make(map[string]interface{}, len(h.fields))
	for _, f := range h.fields {
		if val, ok := fields[f]; ok {
			projected[f] = val
		}
	}

	out, err := json.Marshal(projected)
	if err != nil {
		return nil, fmt.Errorf("marshaling projection: %w", err)
	}
	return out, nil
}

func decodeEntityData(env *domain.Envelope) (map[string]interface{}, error) {
	if len(env.EntityData) == 0 {
		return map[string]interface{}{}, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(env.EntityData, &fields); err != nil {
		return nil, fmt.Errorf("%w: entityData is not a JSON object: %v", domain.ErrMalformedEnvelope, err)
	}
	return fields, nil
}
