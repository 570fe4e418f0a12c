package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// EncounterMapper maps Encounter resources.
// https://hl7.org/fhir/encounter.html
type EncounterMapper struct{}

func (EncounterMapper) Type() string { return "Encounter" }

func (EncounterMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		ID            string            `json:"id"`
		Identifier    []identifierJSON  `json:"identifier"`
		Status        string            `json:"status"`
		Class         *coding           `json:"class"`
		Type          []codeableConcept `json:"type"`
		ServiceType   *codeableConcept  `json:"serviceType"`
		Priority      *codeableConcept  `json:"priority"`
		Subject       *Reference        `json:"subject"`
		EpisodeOfCare []Reference       `json:"episodeOfCare"`
		BasedOn       []Reference       `json:"basedOn"`
		Appointment   []Reference       `json:"appointment"`
		Period        *period           `json:"period"`
		Length        *struct {
			Value *float64 `json:"value"`
			Unit  string   `json:"unit"`
		} `json:"length"`
		ReasonCode      []codeableConcept `json:"reasonCode"`
		ReasonReference []Reference       `json:"reasonReference"`
		ServiceProvider *Reference        `json:"serviceProvider"`
		PartOf          *Reference        `json:"partOf"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Encounter", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Encounter", Reason: "missing id"}
	}

	b := newBuilder("Encounter", r.ID)
	b.identifiers(r.Identifier)
	b.p.put("status", r.Status)
	if r.Class != nil {
		b.p.put("class", r.Class.Display)
		b.p.put("class_code", r.Class.Code)
	}
	b.p.putCodeableConcepts(r.Type, "type")
	b.p.putCodeableConcept(r.ServiceType, "service_type")
	b.p.putCodeableConcept(r.Priority, "priority")
	b.p.putPeriod(r.Period, "period")
	if r.Length != nil && r.Length.Value != nil {
		b.p.put("length", *r.Length.Value)
		b.p.put("length_unit", r.Length.Unit)
	}
	b.p.putCodeableConcepts(r.ReasonCode, "reason")

	if err := b.ref(r.Subject, "subject", "HAS_SUBJECT", "Patient", "Group"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.EpisodeOfCare, "episode_of_care", "PART_OF", "EpisodeOfCare"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.BasedOn, "based_on", "BASED_ON", "ServiceRequest"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Appointment, "appointment", "SCHEDULED_BY", "Appointment"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.ReasonReference, "reason_reference", "HAS_REASON_REFERENCE",
		"Condition", "Procedure", "Observation", "ImmunizationRecommendation"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.ServiceProvider, "service_provider", "HAS_SERVICE_PROVIDER", "Organization"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.PartOf, "part_of", "PART_OF", "Encounter"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
