package fhir

import "encoding/json"

// RawResource is one resource pulled from a searchset, kept as raw JSON for
// the mappers plus the decoded header fields needed for keying.
type RawResource struct {
	Type string
	ID   string
	Body json.RawMessage
}

// Bundle is the slice of a FHIR searchset bundle this pipeline reads.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total"`
	Link         []BundleLink  `json:"link"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

// resourceHeader is the minimal decode of any resource body.
type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// nextLink returns the URL of the link with relation "next", or "".
func (b *Bundle) nextLink() string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL
		}
	}
	return ""
}

// decodeEntry extracts a RawResource of the wanted type from an entry.
// Entries of other types (servers interleave OperationOutcome) come back as
// ok=false. With validation on, a matching entry without an id is an error.
func decodeEntry(entry BundleEntry, wantType string, validate bool) (RawResource, bool, error) {
	var header resourceHeader
	if err := json.Unmarshal(entry.Resource, &header); err != nil {
		if !validate {
			return RawResource{}, false, nil
		}
		return RawResource{}, false, &ValidationError{Type: wantType, Reason: "entry is not a JSON resource"}
	}
	if header.ResourceType != wantType {
		return RawResource{}, false, nil
	}
	if validate && header.ID == "" {
		return RawResource{}, false, &ValidationError{Type: wantType, Reason: "resource has no id"}
	}
	return RawResource{Type: header.ResourceType, ID: header.ID, Body: entry.Resource}, true, nil
}
