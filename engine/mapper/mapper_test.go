package mapper

import (
	"testing"

	"github.com/fhirgraph/fhirgraph/engine/graph"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, typ := range []string{
		"Patient", "Organization", "Practitioner", "Encounter",
		"Observation", "Condition", "Procedure", "DiagnosticReport",
	} {
		m, ok := r.Lookup(typ)
		if !ok {
			t.Errorf("missing mapper for %s", typ)
			continue
		}
		if m.Type() != typ {
			t.Errorf("mapper for %s reports type %s", typ, m.Type())
		}
	}
	if _, ok := r.Lookup("Medication"); ok {
		t.Error("unexpected mapper for Medication")
	}
}

func TestObservationMapper(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Observation",
		"id": "obs1",
		"status": "final",
		"code": {"coding": [{"system": "http://loinc.org", "code": "8867-4", "display": "Heart rate"}]},
		"subject": {"reference": "Patient/p1"},
		"encounter": {"reference": "Encounter/e1"},
		"effectiveDateTime": "2024-05-01T10:00:00Z",
		"valueQuantity": {"value": 72, "unit": "beats/minute", "system": "http://unitsofmeasure.org", "code": "/min"},
		"component": [{
			"code": {"coding": [{"code": "8480-6", "display": "Systolic"}]},
			"valueQuantity": {"value": 120, "unit": "mmHg"}
		}]
	}`)

	node, edges, err := ObservationMapper{}.Map(res)
	if err != nil {
		t.Fatal(err)
	}
	if node.Props["code"] != "Heart rate" || node.Props["code_code"] != "8867-4" {
		t.Errorf("code not flattened: %+v", node.Props)
	}
	if node.Props["value"] != 72.0 || node.Props["value_unit"] != "beats/minute" {
		t.Errorf("value quantity not flattened: %+v", node.Props)
	}
	if node.Props["component_code"] != "Systolic" || node.Props["component_value"] != 120.0 {
		t.Errorf("component not flattened: %+v", node.Props)
	}

	want := map[string]graph.Target{
		"HAS_SUBJECT":     graph.LiteralTarget{Type: "Patient", ID: "p1"},
		"ASSOCIATED_WITH": graph.LiteralTarget{Type: "Encounter", ID: "e1"},
	}
	if len(edges) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(edges))
	}
	for _, e := range edges {
		if e.To != want[e.Rel] {
			t.Errorf("edge %s -> %+v, want %+v", e.Rel, e.To, want[e.Rel])
		}
	}
}

func TestEncounterMapper(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Encounter",
		"id": "e1",
		"status": "finished",
		"class": {"code": "AMB", "display": "ambulatory"},
		"period": {"start": "2024-05-01T09:00:00Z", "end": "2024-05-01T10:00:00Z"},
		"subject": {"reference": "Patient/p1"},
		"serviceProvider": {"reference": "Organization/org1"},
		"partOf": {"reference": "Encounter/e0"}
	}`)

	node, edges, err := EncounterMapper{}.Map(res)
	if err != nil {
		t.Fatal(err)
	}
	if node.Props["class"] != "ambulatory" || node.Props["period_start"] != "2024-05-01T09:00:00Z" {
		t.Errorf("unexpected props: %+v", node.Props)
	}
	rels := map[string]bool{}
	for _, e := range edges {
		rels[e.Rel] = true
	}
	for _, want := range []string{"HAS_SUBJECT", "HAS_SERVICE_PROVIDER", "PART_OF"} {
		if !rels[want] {
			t.Errorf("missing edge %s in %v", want, rels)
		}
	}
}

func TestConditionMapperOnsetChoiceIsExclusive(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Condition",
		"id": "c1",
		"onsetDateTime": "2019-03-01",
		"onsetString": "early 2019",
		"abatementPeriod": {"start": "2019-06-01", "end": "2019-07-01"},
		"abatementString": "summer 2019"
	}`)

	node, _, err := ConditionMapper{}.Map(res)
	if err != nil {
		t.Fatal(err)
	}
	if node.Props["onset"] != "2019-03-01" {
		t.Errorf("onset = %v, want the dateTime variant", node.Props["onset"])
	}
	if node.Props["abatement_start"] != "2019-06-01" || node.Props["abatement"] != nil {
		t.Errorf("abatement should keep only the period variant: %+v", node.Props)
	}
}

func TestConditionMapperTypeMismatch(t *testing.T) {
	// subject declares Patient|Group; a Medication reference must fail.
	res := rawResource(t, `{
		"resourceType": "Condition",
		"id": "c1",
		"subject": {"reference": "Medication/m1"}
	}`)
	if _, _, err := (ConditionMapper{}).Map(res); err == nil {
		t.Fatal("expected type mismatch error")
	}
}
