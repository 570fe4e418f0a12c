// Package etl orchestrates the pipeline: fetch resources page by page, map
// them to graph writes, apply them to the store, then optionally resolve
// placeholder references.
package etl

import (
	"context"
	"fmt"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
)

// Config controls one run.
type Config struct {
	// Resources is the ordered list of resource types to transform.
	Resources []string
	// Delete wipes the database before any transform.
	Delete bool
	// Resolve runs the placeholder resolve pass after the transforms.
	Resolve bool
	// PageSize is the per-page `_count`.
	PageSize int
	// Limit caps resources fetched per type; zero means all.
	Limit int
	// Parallel maps and writes the resources of a page concurrently.
	Parallel bool
	// Workers bounds the per-page concurrency; zero picks a default.
	Workers int
	// Strict aborts a type's transform on the first mapping or validation
	// error instead of collecting and continuing.
	Strict bool
}

func (c Config) validate() error {
	if !c.Delete && !c.Resolve && len(c.Resources) == 0 {
		return fmt.Errorf("nothing to do: no resources, no delete, no resolve")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must be positive")
	}
	return nil
}

// PageIterator is the page stream of one resource type.
type PageIterator interface {
	Next(ctx context.Context) bool
	Page() fhir.Page
	Err() error
}

// Source yields resources; the FHIR client satisfies it via FHIRSource, and
// tests use fakes.
type Source interface {
	Count(ctx context.Context, resourceType string) (int, error)
	Search(resourceType string, opts fhir.SearchOpts) PageIterator
}

type clientSource struct {
	c *fhir.Client
}

func (s clientSource) Count(ctx context.Context, resourceType string) (int, error) {
	return s.c.Count(ctx, resourceType)
}

func (s clientSource) Search(resourceType string, opts fhir.SearchOpts) PageIterator {
	return s.c.Search(resourceType, opts)
}

// FHIRSource adapts a fhir.Client to the Source seam.
func FHIRSource(c *fhir.Client) Source {
	return clientSource{c: c}
}
