package graph

import (
	"context"
	"fmt"
)

// WriteError wraps a failed graph write. Writes are retried before the
// failure is surfaced to the caller.
type WriteError struct {
	Key NodeKey
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("graph write %s/%s: %v", e.Key.Type, e.Key.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store is the graph boundary the pipeline writes through. Both the Neo4j
// store and the in-memory store satisfy it, so the same contracts hold in
// production, tests and dry runs.
type Store interface {
	// EnsureConstraints declares the required schema per label: a uniqueness
	// constraint on the node key property, without which concurrent MERGE on
	// the same key is unsafe, and an index on the identifier property that
	// keeps identifier lookups during resolution off full label scans.
	EnsureConstraints(ctx context.Context, labels []string) error

	// ApplyUnit applies one resource's node and edges atomically. Literal
	// edge targets are merged as stub nodes when absent; logical edge
	// targets land on deterministic placeholder nodes.
	ApplyUnit(ctx context.Context, unit WriteUnit) error

	// UpsertNode merges a single node, clearing any stub marker.
	UpsertNode(ctx context.Context, node Node) error

	// DeleteAll wipes relationships, nodes, constraints and indexes.
	// Destructive and explicit-only.
	DeleteAll(ctx context.Context) error

	// Placeholders lists every outstanding placeholder node.
	Placeholders(ctx context.Context) ([]Node, error)

	// NodesByIdentifier returns non-placeholder nodes of the given type
	// carrying the identifier.
	NodesByIdentifier(ctx context.Context, typ, system, value string) ([]Node, error)

	// DeleteNode detaches and deletes one node.
	DeleteNode(ctx context.Context, key NodeKey) error

	// RewireEdges moves every edge pointing at from so it points at to,
	// preserving relationship types and leaving no edge on from.
	// Placeholders only ever receive edges.
	RewireEdges(ctx context.Context, from, to NodeKey) error

	// NodeCount reports the total node count, for summaries.
	NodeCount(ctx context.Context) (int, error)

	Close(ctx context.Context) error
}
