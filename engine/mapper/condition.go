package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// ConditionMapper maps Condition resources.
// https://hl7.org/fhir/condition.html
type ConditionMapper struct{}

func (ConditionMapper) Type() string { return "Condition" }

func (ConditionMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID                 string            `json:"id"`
		Identifier         []identifierJSON  `json:"identifier"`
		ClinicalStatus     *codeableConcept  `json:"clinicalStatus"`
		VerificationStatus *codeableConcept  `json:"verificationStatus"`
		Category           []codeableConcept `json:"category"`
		Severity           *codeableConcept  `json:"severity"`
		Code               *codeableConcept  `json:"code"`
		BodySite           []codeableConcept `json:"bodySite"`
		Subject            *Reference        `json:"subject"`
		Encounter          *Reference        `json:"encounter"`
		OnsetDateTime      string            `json:"onsetDateTime"`
		OnsetString        string            `json:"onsetString"`
		OnsetPeriod        *period           `json:"onsetPeriod"`
		AbatementDateTime  string            `json:"abatementDateTime"`
		AbatementString    string            `json:"abatementString"`
		AbatementPeriod    *period           `json:"abatementPeriod"`
		RecordedDate       string            `json:"recordedDate"`
		Recorder           *Reference        `json:"recorder"`
		Asserter           *Reference        `json:"asserter"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Condition", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Condition", Reason: "missing id"}
	}

	b := newBuilder("Condition", r.ID)
	b.identifiers(r.Identifier)
	b.p.putCodeableConcept(r.ClinicalStatus, "clinical_status")
	b.p.putCodeableConcept(r.VerificationStatus, "verification_status")
	b.p.putCodeableConcepts(r.Category, "category")
	b.p.putCodeableConcept(r.Severity, "severity")
	b.p.putCodeableConcept(r.Code, "code")
	b.p.putCodeableConcepts(r.BodySite, "body_site")
	switch {
	case r.OnsetDateTime != "":
		b.p.put("onset", r.OnsetDateTime)
	case r.OnsetPeriod != nil:
		b.p.putPeriod(r.OnsetPeriod, "onset")
	case r.OnsetString != "":
		b.p.put("onset", r.OnsetString)
	}
	switch {
	case r.AbatementDateTime != "":
		b.p.put("abatement", r.AbatementDateTime)
	case r.AbatementPeriod != nil:
		b.p.putPeriod(r.AbatementPeriod, "abatement")
	case r.AbatementString != "":
		b.p.put("abatement", r.AbatementString)
	}
	b.p.put("recorded_date", r.RecordedDate)

	if err := b.ref(r.Subject, "subject", "HAS_SUBJECT", "Patient", "Group"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Encounter, "encounter", "ASSOCIATED_WITH", "Encounter"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Recorder, "recorder", "RECORDED_BY",
		"Practitioner", "PractitionerRole", "Patient", "RelatedPerson"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Asserter, "asserter", "ASSERTED_BY",
		"Practitioner", "PractitionerRole", "Patient", "RelatedPerson"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
