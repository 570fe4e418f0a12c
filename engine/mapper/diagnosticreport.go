package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// DiagnosticReportMapper maps DiagnosticReport resources.
// https://hl7.org/fhir/diagnosticreport.html
type DiagnosticReportMapper struct{}

func (DiagnosticReportMapper) Type() string { return "DiagnosticReport" }

func (DiagnosticReportMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID                 string            `json:"id"`
		Identifier         []identifierJSON  `json:"identifier"`
		BasedOn            []Reference       `json:"basedOn"`
		Status             string            `json:"status"`
		Category           []codeableConcept `json:"category"`
		Code               *codeableConcept  `json:"code"`
		Subject            *Reference        `json:"subject"`
		Encounter          *Reference        `json:"encounter"`
		EffectiveDateTime  string            `json:"effectiveDateTime"`
		EffectivePeriod    *period           `json:"effectivePeriod"`
		Issued             string            `json:"issued"`
		Performer          []Reference       `json:"performer"`
		ResultsInterpreter []Reference       `json:"resultsInterpreter"`
		Specimen           []Reference       `json:"specimen"`
		Result             []Reference       `json:"result"`
		ImagingStudy       []Reference       `json:"imagingStudy"`
		Conclusion         string            `json:"conclusion"`
		ConclusionCode     []codeableConcept `json:"conclusionCode"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "DiagnosticReport", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "DiagnosticReport", Reason: "missing id"}
	}

	b := newBuilder("DiagnosticReport", r.ID)
	b.identifiers(r.Identifier)
	b.p.put("status", r.Status)
	b.p.putCodeableConcepts(r.Category, "category")
	b.p.putCodeableConcept(r.Code, "code")
	switch {
	case r.EffectiveDateTime != "":
		b.p.put("effective", r.EffectiveDateTime)
	case r.EffectivePeriod != nil:
		b.p.putPeriod(r.EffectivePeriod, "effective")
	}
	b.p.put("issued", r.Issued)
	b.p.put("conclusion", r.Conclusion)
	b.p.putCodeableConcepts(r.ConclusionCode, "conclusion_code")

	if err := b.refs(r.BasedOn, "based_on", "BASED_ON",
		"CarePlan", "ImmunizationRecommendation", "MedicationRequest",
		"NutritionOrder", "ServiceRequest"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Subject, "subject", "HAS_SUBJECT",
		"Patient", "Group", "Device", "Location", "Organization", "Procedure",
		"Practitioner", "Medication", "Substance"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Encounter, "encounter", "ASSOCIATED_WITH", "Encounter"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Performer, "performer", "PERFORMED_BY",
		"Practitioner", "PractitionerRole", "Organization", "CareTeam"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.ResultsInterpreter, "results_interpreter", "INTERPRETED_BY",
		"Practitioner", "PractitionerRole", "Organization", "CareTeam"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Specimen, "specimen", "BASED_ON", "Specimen"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Result, "result", "HAS_RESULT", "Observation"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.ImagingStudy, "imaging_study", "HAS_IMAGING_STUDY", "ImagingStudy"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
