package mapper

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
)

func rawResource(t *testing.T, body string) fhir.RawResource {
	t.Helper()
	var header struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &header); err != nil {
		t.Fatal(err)
	}
	return fhir.RawResource{Type: header.ResourceType, ID: header.ID, Body: []byte(body)}
}

func TestPatientMapperFlattensProperties(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Patient",
		"id": "p1",
		"active": true,
		"gender": "female",
		"birthDate": "1980-04-01",
		"name": [
			{"use": "official", "family": "Baker", "given": ["Ann", "Marie"]},
			{"use": "nickname", "text": "Annie"}
		],
		"telecom": [{"system": "phone", "value": "555-0100", "use": "home"}],
		"address": [{"city": "Springfield", "postalCode": "12345", "country": "US"}],
		"maritalStatus": {"coding": [{"system": "http://hl7.org/fhir/v3/MaritalStatus", "code": "M", "display": "Married"}]},
		"identifier": [{"system": "urn:oid:1.2.3", "value": "MRN-7"}]
	}`)

	node, edges, err := PatientMapper{}.Map(res)
	if err != nil {
		t.Fatal(err)
	}
	if node.Key != (graph.NodeKey{Type: "Patient", ID: "p1"}) {
		t.Fatalf("unexpected key %+v", node.Key)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %d", len(edges))
	}

	want := map[string]any{
		"active":               true,
		"gender":               "female",
		"birthdate":            "1980-04-01",
		"name_use":             "official",
		"name_family":          "Baker",
		"name_given":           "Ann Marie",
		"name2_use":            "nickname",
		"name2":                "Annie",
		"telecom_system":       "phone",
		"telecom":              "555-0100",
		"telecom_use":          "home",
		"address_city":         "Springfield",
		"address_postalcode":   "12345",
		"address_country":      "US",
		"marital_status":       "Married",
		"marital_status_code":  "M",
	}
	for k, v := range want {
		if node.Props[k] != v {
			t.Errorf("prop %s = %v, want %v", k, node.Props[k], v)
		}
	}
	if len(node.Identifiers) != 1 || node.Identifiers[0] != (graph.Identifier{System: "urn:oid:1.2.3", Value: "MRN-7"}) {
		t.Fatalf("unexpected identifiers %+v", node.Identifiers)
	}
}

func TestPatientMapperEdges(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Patient",
		"id": "p1",
		"managingOrganization": {"reference": "Organization/org1", "display": "General Hospital"},
		"generalPractitioner": [
			{"reference": "Practitioner/doc1"},
			{"identifier": {"system": "urn:oid:9.9", "value": "GP-2"}, "type": "Organization"}
		],
		"link": [{"other": {"reference": "Patient/p2"}, "type": "replaced-by"}]
	}`)

	node, edges, err := PatientMapper{}.Map(res)
	if err != nil {
		t.Fatal(err)
	}
	if node.Props["managed_by"] != "General Hospital" {
		t.Errorf("display text should land on the node, got %v", node.Props["managed_by"])
	}

	wantEdges := map[string]graph.Target{
		"MANAGED_BY":       graph.LiteralTarget{Type: "Organization", ID: "org1"},
		"HAS_PRACTITIONER": graph.LiteralTarget{Type: "Practitioner", ID: "doc1"},
		"REPLACED_BY":      graph.LiteralTarget{Type: "Patient", ID: "p2"},
	}
	var sawLogical bool
	for _, e := range edges {
		if lt, ok := e.To.(graph.LogicalTarget); ok {
			sawLogical = true
			if e.Rel != "HAS_PRACTITIONER" || lt.Type != "Organization" || lt.Value != "GP-2" {
				t.Errorf("unexpected logical edge %+v", e)
			}
			continue
		}
		if want, ok := wantEdges[e.Rel]; !ok || e.To != want {
			t.Errorf("unexpected edge %s -> %+v", e.Rel, e.To)
		}
	}
	if !sawLogical {
		t.Fatal("expected a logical edge for the identifier reference")
	}
	if len(edges) != 4 {
		t.Fatalf("expected 4 edges, got %d", len(edges))
	}
}

func TestPatientMapperDeceasedChoiceIsExclusive(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"boolean", `{"resourceType":"Patient","id":"p1","deceasedBoolean":true}`, true},
		{"datetime", `{"resourceType":"Patient","id":"p1","deceasedDateTime":"2020-01-02"}`, "2020-01-02"},
		{"both keeps boolean", `{"resourceType":"Patient","id":"p1","deceasedBoolean":false,"deceasedDateTime":"2020-01-02"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, _, err := PatientMapper{}.Map(rawResource(t, tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if node.Props["deceased"] != tt.want {
				t.Fatalf("deceased = %v, want %v", node.Props["deceased"], tt.want)
			}
		})
	}
}

func TestPatientMapperBadReference(t *testing.T) {
	res := rawResource(t, `{
		"resourceType": "Patient",
		"id": "p1",
		"managingOrganization": {"reference": "%%%"}
	}`)

	_, _, err := PatientMapper{}.Map(res)
	var merr *MappingError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
}

func TestPatientMapperMissingID(t *testing.T) {
	res := fhir.RawResource{Type: "Patient", Body: []byte(`{"resourceType":"Patient"}`)}
	_, _, err := PatientMapper{}.Map(res)
	var merr *MappingError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
}
