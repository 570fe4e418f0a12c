package fhir

import "fmt"

// FetchError wraps a failed server interaction. It is fatal for the
// resource type being fetched.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError marks a structurally invalid bundle entry. The entry is
// skipped; whether the run continues depends on strictness.
type ValidationError struct {
	Type   string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s resource %q: %s", e.Type, e.ID, e.Reason)
}
