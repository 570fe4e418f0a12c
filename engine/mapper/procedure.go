package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// ProcedureMapper maps Procedure resources.
// https://hl7.org/fhir/procedure.html
type ProcedureMapper struct{}

func (ProcedureMapper) Type() string { return "Procedure" }

func (ProcedureMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID                    string            `json:"id"`
		Identifier            []identifierJSON  `json:"identifier"`
		InstantiatesCanonical []string          `json:"instantiatesCanonical"`
		InstantiatesURI       []string          `json:"instantiatesUri"`
		BasedOn               []Reference       `json:"basedOn"`
		PartOf                []Reference       `json:"partOf"`
		Status                string            `json:"status"`
		StatusReason          *codeableConcept  `json:"statusReason"`
		Category              *codeableConcept  `json:"category"`
		Code                  *codeableConcept  `json:"code"`
		Subject               *Reference        `json:"subject"`
		Encounter             *Reference        `json:"encounter"`
		PerformedDateTime     string            `json:"performedDateTime"`
		PerformedString       string            `json:"performedString"`
		PerformedPeriod       *period           `json:"performedPeriod"`
		Recorder              *Reference        `json:"recorder"`
		Asserter              *Reference        `json:"asserter"`
		Location              *Reference        `json:"location"`
		ReasonCode            []codeableConcept `json:"reasonCode"`
		ReasonReference       []Reference       `json:"reasonReference"`
		BodySite              []codeableConcept `json:"bodySite"`
		Outcome               *codeableConcept  `json:"outcome"`
		Report                []Reference       `json:"report"`
		Complication          []codeableConcept `json:"complication"`
		ComplicationDetail    []Reference       `json:"complicationDetail"`
		FollowUp              []codeableConcept `json:"followUp"`
		UsedReference         []Reference       `json:"usedReference"`
		UsedCode              []codeableConcept `json:"usedCode"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Procedure", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Procedure", Reason: "missing id"}
	}

	b := newBuilder("Procedure", r.ID)
	b.identifiers(r.Identifier)
	for n, c := range r.InstantiatesCanonical {
		b.p.put(numberedKey("instantiates_canonical", n), c)
	}
	for n, u := range r.InstantiatesURI {
		b.p.put(numberedKey("instantiates_uri", n), u)
	}
	b.p.put("status", r.Status)
	b.p.putCodeableConcept(r.StatusReason, "status_reason")
	b.p.putCodeableConcept(r.Category, "category")
	b.p.putCodeableConcept(r.Code, "code")
	switch {
	case r.PerformedDateTime != "":
		b.p.put("performed", r.PerformedDateTime)
	case r.PerformedPeriod != nil:
		b.p.putPeriod(r.PerformedPeriod, "performed")
	case r.PerformedString != "":
		b.p.put("performed", r.PerformedString)
	}
	b.p.putCodeableConcepts(r.ReasonCode, "reason_code")
	b.p.putCodeableConcepts(r.BodySite, "body_site")
	b.p.putCodeableConcept(r.Outcome, "outcome")
	b.p.putCodeableConcepts(r.Complication, "complication")
	b.p.putCodeableConcepts(r.FollowUp, "follow_up")
	b.p.putCodeableConcepts(r.UsedCode, "used_code")

	if err := b.refs(r.BasedOn, "based_on", "BASED_ON", "CarePlan", "ServiceRequest"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.PartOf, "part_of", "PART_OF",
		"Procedure", "Observation", "MedicationAdministration"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Subject, "subject", "HAS_SUBJECT", "Patient", "Group"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Encounter, "encounter", "ASSOCIATED_WITH", "Encounter"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Recorder, "recorder", "RECORDED_BY",
		"Patient", "RelatedPerson", "Practitioner", "PractitionerRole"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Asserter, "asserter", "ASSERTED_BY",
		"Patient", "RelatedPerson", "Practitioner", "PractitionerRole"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Location, "location", "HAS_LOCATION", "Location"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.ReasonReference, "reason_reference", "HAS_REASON_REFERENCE",
		"Condition", "Observation", "Procedure", "DiagnosticReport", "DocumentReference"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Report, "report", "RESULTS_IN",
		"DiagnosticReport", "DocumentReference", "Composition"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.ComplicationDetail, "complication_detail", "RESULTS_IN", "Condition"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.UsedReference, "used_reference", "USED",
		"Device", "Medication", "Substance"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
