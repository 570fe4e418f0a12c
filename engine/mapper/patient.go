package mapper

import (
	"encoding/json"
	"strings"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// PatientMapper maps Patient resources.
// https://hl7.org/fhir/patient.html
type PatientMapper struct{}

func (PatientMapper) Type() string { return "Patient" }

func (PatientMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID                   string           `json:"id"`
		Identifier           []identifierJSON `json:"identifier"`
		Active               *bool            `json:"active"`
		Name                 []humanName      `json:"name"`
		Telecom              []contactPoint   `json:"telecom"`
		Gender               string           `json:"gender"`
		BirthDate            string           `json:"birthDate"`
		DeceasedBoolean      *bool            `json:"deceasedBoolean"`
		DeceasedDateTime     string           `json:"deceasedDateTime"`
		Address              []address        `json:"address"`
		MaritalStatus        *codeableConcept `json:"maritalStatus"`
		MultipleBirthBoolean *bool            `json:"multipleBirthBoolean"`
		MultipleBirthInteger *int             `json:"multipleBirthInteger"`
		Communication        []struct {
			Language  codeableConcept `json:"language"`
			Preferred bool            `json:"preferred"`
		} `json:"communication"`
		GeneralPractitioner  []Reference `json:"generalPractitioner"`
		ManagingOrganization *Reference  `json:"managingOrganization"`
		Link                 []struct {
			Other Reference `json:"other"`
			Type  string    `json:"type"`
		} `json:"link"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Patient", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Patient", Reason: "missing id"}
	}

	b := newBuilder("Patient", r.ID)
	b.identifiers(r.Identifier)
	if r.Active != nil {
		b.p.put("active", *r.Active)
	}
	b.p.putHumanNames(r.Name, "name")
	b.p.putContactPoints(r.Telecom, "telecom")
	b.p.put("gender", r.Gender)
	b.p.put("birthdate", r.BirthDate)
	// deceased[x] is a choice type; only one variant may land on the node.
	switch {
	case r.DeceasedBoolean != nil:
		b.p.put("deceased", *r.DeceasedBoolean)
	case r.DeceasedDateTime != "":
		b.p.put("deceased", r.DeceasedDateTime)
	}
	b.p.putAddresses(r.Address, "address")
	b.p.putCodeableConcept(r.MaritalStatus, "marital_status")
	if r.MultipleBirthBoolean != nil {
		b.p.put("multiple_birth", *r.MultipleBirthBoolean)
	}
	if r.MultipleBirthInteger != nil {
		b.p.put("multiple_birth_order", *r.MultipleBirthInteger)
	}
	for n, comm := range r.Communication {
		key := numberedKey("language", n)
		b.p.putCodeableConcept(&comm.Language, key)
		if comm.Preferred {
			b.p.put(key+"_preferred", true)
		}
	}

	if err := b.refs(r.GeneralPractitioner, "general_practitioner", "HAS_PRACTITIONER",
		"Organization", "Practitioner", "PractitionerRole"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.ManagingOrganization, "managed_by", "MANAGED_BY", "Organization"); err != nil {
		return graph.Node{}, nil, err
	}
	for n, link := range r.Link {
		rel := strings.ToUpper(strings.ReplaceAll(link.Type, "-", "_"))
		key := numberedKey("link", n) + "_" + link.Type
		if err := b.ref(&link.Other, key, rel, "Patient", "RelatedPerson"); err != nil {
			return graph.Node{}, nil, err
		}
	}
	return b.finish()
}
