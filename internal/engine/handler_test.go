package engine

import (
	"testing"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
)

func employeeEnvelope(data string) *domain.Envelope {
	return &domain.Envelope{
		MessageID:      "msg-e1",
		EntityType:     "employee",
		EntityID:       "E1",
		CrudAction:     domain.ActionCreated,
		EntityData:     json.RawMessage(data),
		CreatedUtcDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProjectionHandler_DependenciesFromRef(t *testing.T) {
	h := NewProjectionHandler(nil, Ref{Field: "companyId", EntityType: "company"})

	deps, err := h.Dependencies(employeeEnvelope(`{"name":"Alice","companyId":"C9"}`))
	if err != nil {
		t.Fatalf("Dependencies error: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(deps))
	}
	if deps[0].EntityType != "company" || deps[0].EntityID != "C9" {
		t.Errorf("dependency = %+v, want company/C9", deps[0])
	}
}

func TestProjectionHandler_AbsentRefFieldMeansNoDependency(t *testing.T) {
	h := NewProjectionHandler(nil, Ref{Field: "companyId", EntityType: "company"})

	deps, err := h.Dependencies(employeeEnvelope(`{"name":"Alice"}`))
	if err != nil {
		t.Fatalf("Dependencies error: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("expected no dependencies, got %+v", deps)
	}
}

func TestProjectionHandler_NonStringRefIsMalformed(t *testing.T) {
	h := NewProjectionHandler(nil, Ref{Field: "companyId", EntityType: "company"})

	_, err := h.Dependencies(employeeEnvelope(`{"companyId":42}`))
	if err == nil {
		t.Fatal("expected error for non-string reference field")
	}
}

func TestProjectionHandler_ProjectSubset(t *testing.T) {
	h := NewProjectionHandler([]string{"name", "companyId"})

	data, err := h.Project(employeeEnvelope(`{"name":"Alice","companyId":"C9","salary":90000}`))
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("projection is not valid JSON: %v", err)
	}
	if fields["name"] != "Alice" {
		t.Errorf("name = %v", fields["name"])
	}
	if fields["companyId"] != "C9" {
		t.Errorf("companyId = %v", fields["companyId"])
	}
	if _, ok := fields["salary"]; ok {
		t.Error("salary should not survive the projection")
	}
}

func TestProjectionHandler_NilFieldsPassThrough(t *testing.T) {
	h := NewProjectionHandler(nil)

	raw := `{"name":"Alice","salary":90000}`
	data, err := h.Project(employeeEnvelope(raw))
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	if string(data) != raw {
		t.Errorf("pass-through projection altered data: %s", data)
	}
}

func TestProjectionHandler_Filter(t *testing.T) {
	h := NewProjectionHandler(nil).WithFilter(func(env *domain.Envelope) bool {
		return env.EntityID != "ignored"
	})

	if !h.ShouldHandle(employeeEnvelope(`{}`)) {
		t.Error("expected handler to accept E1")
	}

	env := employeeEnvelope(`{}`)
	env.EntityID = "ignored"
	if h.ShouldHandle(env) {
		t.Error("expected handler to reject filtered entity")
	}
}

func TestRegistry_LookupUnknownType(t *testing.T) {
	r := NewRegistry()
	r.Register("company", NewProjectionHandler(nil))

	if _, ok := r.Lookup("company"); !ok {
		t.Error("expected registered handler")
	}
	if _, ok := r.Lookup("invoice"); ok {
		t.Error("expected no handler for unregistered type")
	}
}
