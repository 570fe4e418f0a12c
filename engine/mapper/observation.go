package mapper

import (
	"encoding/json"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// ObservationMapper maps Observation resources, including value[x] variants
// and component values.
// https://hl7.org/fhir/observation.html
type ObservationMapper struct{}

func (ObservationMapper) Type() string { return "Observation" }

// observationValue covers the value[x] choice elements this mapper flattens.
type observationValue struct {
	ValueQuantity        *quantity        `json:"valueQuantity"`
	ValueCodeableConcept *codeableConcept `json:"valueCodeableConcept"`
	ValueString          string           `json:"valueString"`
	ValueBoolean         *bool            `json:"valueBoolean"`
	ValueInteger         *int             `json:"valueInteger"`
	ValueTime            string           `json:"valueTime"`
	ValueDateTime        string           `json:"valueDateTime"`
	ValuePeriod          *period          `json:"valuePeriod"`
}

func (p props) putObservationValue(v observationValue, key string) {
	switch {
	case v.ValueQuantity != nil:
		p.putQuantity(v.ValueQuantity, key)
	case v.ValueCodeableConcept != nil:
		p.putCodeableConcept(v.ValueCodeableConcept, key)
	case v.ValueString != "":
		p.put(key, v.ValueString)
	case v.ValueBoolean != nil:
		p.put(key, *v.ValueBoolean)
	case v.ValueInteger != nil:
		p.put(key, *v.ValueInteger)
	case v.ValueTime != "":
		p.put(key, v.ValueTime)
	case v.ValueDateTime != "":
		p.put(key, v.ValueDateTime)
	case v.ValuePeriod != nil:
		p.putPeriod(v.ValuePeriod, key)
	}
}

func (ObservationMapper) Map(res fhir.RawResource) (graph.Node, []graph.Edge, error) {
	var r struct {
		observationValue
		ID                string            `json:"id"`
		Identifier        []identifierJSON  `json:"identifier"`
		BasedOn           []Reference       `json:"basedOn"`
		PartOf            []Reference       `json:"partOf"`
		Status            string            `json:"status"`
		Category          []codeableConcept `json:"category"`
		Code              *codeableConcept  `json:"code"`
		Subject           *Reference        `json:"subject"`
		Focus             []Reference       `json:"focus"`
		Encounter         *Reference        `json:"encounter"`
		EffectiveDateTime string            `json:"effectiveDateTime"`
		EffectivePeriod   *period           `json:"effectivePeriod"`
		EffectiveInstant  string            `json:"effectiveInstant"`
		Issued            string            `json:"issued"`
		Performer         []Reference       `json:"performer"`
		DataAbsentReason  *codeableConcept  `json:"dataAbsentReason"`
		Interpretation    []codeableConcept `json:"interpretation"`
		BodySite          *codeableConcept  `json:"bodySite"`
		Method            *codeableConcept  `json:"method"`
		Specimen          *Reference        `json:"specimen"`
		Device            *Reference        `json:"device"`
		HasMember         []Reference       `json:"hasMember"`
		DerivedFrom       []Reference       `json:"derivedFrom"`
		Component         []struct {
			observationValue
			Code codeableConcept `json:"code"`
		} `json:"component"`
	}
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return graph.Node{}, nil, &MappingError{Type: "Observation", ID: res.ID, Reason: "decode: " + err.Error()}
	}
	if r.ID == "" {
		r.ID = res.ID
	}
	if r.ID == "" {
		return graph.Node{}, nil, &MappingError{Type: "Observation", Reason: "missing id"}
	}

	b := newBuilder("Observation", r.ID)
	b.identifiers(r.Identifier)
	b.p.put("status", r.Status)
	b.p.putCodeableConcepts(r.Category, "category")
	b.p.putCodeableConcept(r.Code, "code")
	switch {
	case r.EffectiveDateTime != "":
		b.p.put("effective", r.EffectiveDateTime)
	case r.EffectivePeriod != nil:
		b.p.putPeriod(r.EffectivePeriod, "effective")
	case r.EffectiveInstant != "":
		b.p.put("effective", r.EffectiveInstant)
	}
	b.p.put("issued", r.Issued)
	b.p.putObservationValue(r.observationValue, "value")
	b.p.putCodeableConcept(r.DataAbsentReason, "data_absent_reason")
	b.p.putCodeableConcepts(r.Interpretation, "interpretation")
	b.p.putCodeableConcept(r.BodySite, "body_site")
	b.p.putCodeableConcept(r.Method, "method")
	for n, comp := range r.Component {
		key := numberedKey("component", n)
		b.p.putCodeableConcept(&comp.Code, key+"_code")
		b.p.putObservationValue(comp.observationValue, key+"_value")
	}

	if err := b.refs(r.BasedOn, "based_on", "BASED_ON",
		"CarePlan", "DeviceRequest", "ImmunizationRecommendation", "MedicationRequest",
		"NutritionOrder", "ServiceRequest"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.PartOf, "part_of", "PART_OF",
		"MedicationAdministration", "MedicationDispense", "MedicationStatement",
		"Procedure", "Immunization", "ImagingStudy"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Subject, "subject", "HAS_SUBJECT",
		"Patient", "Group", "Device", "Location", "Organization", "Procedure",
		"Practitioner", "Medication", "Substance"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Focus, "focus", "HAS_FOCUS"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Encounter, "encounter", "ASSOCIATED_WITH", "Encounter"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.Performer, "performer", "PERFORMED_BY",
		"Practitioner", "PractitionerRole", "Organization", "CareTeam",
		"Patient", "RelatedPerson"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Specimen, "specimen", "USED", "Specimen"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.ref(r.Device, "device", "USED", "Device", "DeviceMetric"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.HasMember, "has_member", "HAS_MEMBER",
		"Observation", "QuestionnaireResponse", "MolecularSequence"); err != nil {
		return graph.Node{}, nil, err
	}
	if err := b.refs(r.DerivedFrom, "derived_from", "DERIVED_FROM",
		"DocumentReference", "ImagingStudy", "Media", "QuestionnaireResponse",
		"Observation", "MolecularSequence"); err != nil {
		return graph.Node{}, nil, err
	}
	return b.finish()
}
