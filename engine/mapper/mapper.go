// Package mapper turns raw FHIR resources into graph nodes and edges. Each
// resource type has its own Mapper; references are classified into literal
// and logical edge targets.
package mapper

import (
	"fmt"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// MappingError marks a resource that could not be turned into graph writes.
type MappingError struct {
	Type   string
	ID     string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map %s/%s: %s", e.Type, e.ID, e.Reason)
}

// Mapper maps one resource type.
type Mapper interface {
	// Type is the FHIR resource type this mapper handles.
	Type() string
	// Map produces the node and edges for one resource.
	Map(res fhir.RawResource) (graph.Node, []graph.Edge, error)
}

// Registry holds the mappers by resource type. New resource types plug in
// without touching the orchestration.
type Registry struct {
	mappers map[string]Mapper
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mappers: make(map[string]Mapper)}
}

// Register adds a mapper, replacing any previous one for the same type.
func (r *Registry) Register(m Mapper) {
	r.mappers[m.Type()] = m
}

// Lookup returns the mapper for a resource type.
func (r *Registry) Lookup(resourceType string) (Mapper, bool) {
	m, ok := r.mappers[resourceType]
	return m, ok
}

// Types lists the registered resource types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.mappers))
	for t := range r.mappers {
		out = append(out, t)
	}
	return out
}

// DefaultRegistry returns a registry with every built-in mapper.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PatientMapper{})
	r.Register(OrganizationMapper{})
	r.Register(PractitionerMapper{})
	r.Register(EncounterMapper{})
	r.Register(ObservationMapper{})
	r.Register(ConditionMapper{})
	r.Register(ProcedureMapper{})
	r.Register(DiagnosticReportMapper{})
	return r
}
