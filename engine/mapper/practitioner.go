package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// PractitionerMapper maps Practitioner resources.
// https://hl7.org/fhir/practitioner.html
type PractitionerMapper struct{}

func (PractitionerMapper) Type() string { return "Practitioner" }

func (PractitionerMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID            string           `json:"id"`
		Identifier    []identifierJSON `json:"identifier"`
		Active        *bool            `json:"active"`
		Name          []humanName      `json:"name"`
		Telecom       []contactPoint   `json:"telecom"`
		Address       []address        `json:"address"`
		Gender        string           `json:"gender"`
		BirthDate     string           `json:"birthDate"`
		Qualification []struct {
			Code   codeableConcept `json:"code"`
			Period *period         `json:"period"`
			Issuer *Reference      `json:"issuer"`
		} `json:"qualification"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Practitioner", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Practitioner", Reason: "missing id"}
	}

	b := newBuilder("Practitioner", r.ID)
	b.identifiers(r.Identifier)
	if r.Active != nil {
		b.p.put("active", *r.Active)
	}
	b.p.putHumanNames(r.Name, "name")
	b.p.putContactPoints(r.Telecom, "telecom")
	b.p.putAddresses(r.Address, "address")
	b.p.put("gender", r.Gender)
	b.p.put("birthdate", r.BirthDate)
	for n, q := range r.Qualification {
		key := numberedKey("qualification", n)
		b.p.putCodeableConcept(&q.Code, key)
		b.p.putPeriod(q.Period, key+"_period")
		if err := b.ref(q.Issuer, key+"_issuer", "QUALIFICATION_ISSUED_BY", "Organization"); err != nil {
			return graph.Node{}, nil, err
		}
	}
	return b.finish()
}
