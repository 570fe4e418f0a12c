package mapper

import (
	"encoding/json"
	"strings"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// OrganizationMapper maps Organization resources.
// https://hl7.org/fhir/organization.html
type OrganizationMapper struct{}

func (OrganizationMapper) Type() string { return "Organization" }

func (OrganizationMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID         string            `json:"id"`
		Identifier []identifierJSON  `json:"identifier"`
		Active     *bool             `json:"active"`
		Type       []codeableConcept `json:"type"`
		Name       string            `json:"name"`
		Alias      []string          `json:"alias"`
		Telecom    []contactPoint    `json:"telecom"`
		Address    []address         `json:"address"`
		PartOf     *Reference        `json:"partOf"`
		Endpoint   []Reference       `json:"endpoint"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Organization", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Organization", Reason: "missing id"}
	}

	b := newBuilder("Organization", r.ID)
	b.identifiers(r.Identifier)
	if r.Active != nil {
		b.p.put("active", *r.Active)
	}
	b.p.putCodeableConcepts(r.Type, "type")
	b.p.put("name", r.Name)
	b.p.put("alias", strings.Join(r.Alias, ", "))
	b.p.putContactPoints(r.Telecom, "telecom")
	b.p.putAddresses(r.Address, "address")

	if err := b.ref(r.PartOf, "part_of", "PART_OF", "Organization"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Endpoint, "endpoint", "HAS_ENDPOINT", "Endpoint"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
