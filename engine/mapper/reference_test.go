package mapper

import (
	"testing"

	"github.com/fhirgraph/fhirgraph/engine/graph"
)

func TestClassifyReference(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		allowed []string
		want    graph.Target
		display string
		wantErr bool
	}{
		{
			name:    "relative literal",
			ref:     Reference{Reference: "Organization/org1"},
			allowed: []string{"Organization"},
			want:    graph.LiteralTarget{Type: "Organization", ID: "org1"},
		},
		{
			name:    "absolute literal",
			ref:     Reference{Reference: "https://fhir.example.org/base/Patient/p-42"},
			allowed: []string{"Patient", "RelatedPerson"},
			want:    graph.LiteralTarget{Type: "Patient", ID: "p-42"},
		},
		{
			name:    "literal with history suffix",
			ref:     Reference{Reference: "Observation/obs1/_history/3"},
			allowed: []string{"Observation"},
			want:    graph.LiteralTarget{Type: "Observation", ID: "obs1"},
		},
		{
			name: "literal without declared types",
			ref:  Reference{Reference: "Encounter/e1"},
			want: graph.LiteralTarget{Type: "Encounter", ID: "e1"},
		},
		{
			name:    "logical reference",
			ref:     Reference{Identifier: &refIdentifier{System: "urn:oid:2.16", Value: "ABC"}},
			allowed: []string{"Organization"},
			want:    graph.LogicalTarget{Type: "Organization", System: "urn:oid:2.16", Value: "ABC"},
		},
		{
			name: "logical reference with declared type element",
			ref: Reference{
				Type:       "Practitioner",
				Identifier: &refIdentifier{System: "sys", Value: "1"},
			},
			allowed: []string{"Organization", "Practitioner"},
			want:    graph.LogicalTarget{Type: "Practitioner", System: "sys", Value: "1"},
		},
		{
			name:    "display only",
			ref:     Reference{Display: "Dr. Example"},
			allowed: []string{"Practitioner"},
			want:    nil,
			display: "Dr. Example",
		},
		{
			name:    "empty reference",
			ref:     Reference{},
			allowed: []string{"Organization"},
			wantErr: true,
		},
		{
			name:    "unparseable url",
			ref:     Reference{Reference: "not a url"},
			allowed: []string{"Organization"},
			wantErr: true,
		},
		{
			name:    "unknown resource type token",
			ref:     Reference{Reference: "Widget/1"},
			wantErr: true,
		},
		{
			name:    "type mismatch against declared set",
			ref:     Reference{Reference: "Medication/m1"},
			allowed: []string{"Patient", "Group"},
			wantErr: true,
		},
		{
			name:    "logical missing system",
			ref:     Reference{Identifier: &refIdentifier{Value: "ABC"}},
			allowed: []string{"Organization"},
			wantErr: true,
		},
		{
			name:    "logical missing value",
			ref:     Reference{Identifier: &refIdentifier{System: "sys"}},
			allowed: []string{"Organization"},
			wantErr: true,
		},
		{
			name: "logical without determinable type",
			ref:  Reference{Identifier: &refIdentifier{System: "sys", Value: "1"}},
			// several declared types and no Reference.type element
			allowed: []string{"Organization", "Practitioner"},
			wantErr: true,
		},
		{
			name: "display alongside literal keeps both",
			ref: Reference{
				Reference: "Organization/org1",
				Display:   "General Hospital",
			},
			allowed: []string{"Organization"},
			want:    graph.LiteralTarget{Type: "Organization", ID: "org1"},
			display: "General Hospital",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyReference(tt.ref, tt.allowed...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Target != tt.want {
				t.Errorf("target = %+v, want %+v", got.Target, tt.want)
			}
			if got.Display != tt.display {
				t.Errorf("display = %q, want %q", got.Display, tt.display)
			}
		})
	}
}
