package graph

import (
	"context"
	"fmt"
	"sync"
)

// memEdge is a deduplicated directed edge, mirroring MERGE semantics.
type memEdge struct {
	From NodeKey
	Rel  string
	To   NodeKey
}

// MemStore is an in-memory Store. It backs tests and dry runs and holds the
// same upsert, stub and placeholder contracts as the Neo4j store. Safe for
// concurrent use.
type MemStore struct {
	mu          sync.Mutex
	nodes       map[NodeKey]Node
	edges       map[memEdge]struct{}
	constraints map[string]bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		nodes:       make(map[NodeKey]Node),
		edges:       make(map[memEdge]struct{}),
		constraints: make(map[string]bool),
	}
}

func (s *MemStore) Close(context.Context) error { return nil }

// EnsureConstraints records the labels; uniqueness is inherent to the map.
func (s *MemStore) EnsureConstraints(_ context.Context, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range labels {
		s.constraints[l] = true
	}
	return nil
}

// ApplyUnit applies a unit under one lock acquisition, the in-memory
// equivalent of a single transaction.
func (s *MemStore) ApplyUnit(_ context.Context, unit WriteUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(unit.Node)
	for _, e := range unit.Edges {
		switch t := e.To.(type) {
		case LiteralTarget:
			key := TargetKey(t)
			if _, ok := s.nodes[key]; !ok {
				s.nodes[key] = Node{
					Key:   key,
					Props: map[string]any{PropStub: true},
				}
			}
			s.edges[memEdge{From: e.From, Rel: sanitizeRelType(e.Rel), To: key}] = struct{}{}
		case LogicalTarget:
			key := TargetKey(t)
			if _, ok := s.nodes[key]; !ok {
				s.nodes[key] = PlaceholderNode(t)
			}
			s.edges[memEdge{From: e.From, Rel: sanitizeRelType(e.Rel), To: key}] = struct{}{}
		default:
			return fmt.Errorf("unknown edge target %T", e.To)
		}
	}
	return nil
}

// UpsertNode merges a single node.
func (s *MemStore) UpsertNode(_ context.Context, node Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(node)
	return nil
}

func (s *MemStore) upsertLocked(n Node) {
	existing, ok := s.nodes[n.Key]
	if !ok {
		stored := Node{
			Key:         n.Key,
			Labels:      append([]string(nil), n.Labels...),
			Props:       make(map[string]any, len(n.Props)),
			Identifiers: append([]Identifier(nil), n.Identifiers...),
		}
		for k, v := range n.Props {
			stored.Props[k] = v
		}
		s.nodes[n.Key] = stored
		return
	}

	// Last write wins on properties, stub marker cleared, labels unioned.
	for k, v := range n.Props {
		existing.Props[k] = v
	}
	delete(existing.Props, PropStub)
	for _, l := range n.Labels {
		if !contains(existing.Labels, l) {
			existing.Labels = append(existing.Labels, l)
		}
	}
	if len(n.Identifiers) > 0 {
		existing.Identifiers = append([]Identifier(nil), n.Identifiers...)
	}
	s.nodes[n.Key] = existing
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DeleteAll wipes nodes, edges and recorded constraints.
func (s *MemStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[NodeKey]Node)
	s.edges = make(map[memEdge]struct{})
	s.constraints = make(map[string]bool)
	return nil
}

// Placeholders lists outstanding placeholder nodes.
func (s *MemStore) Placeholders(context.Context) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Node
	for _, n := range s.nodes {
		if n.Kind() == KindPlaceholder {
			out = append(out, n)
		}
	}
	return out, nil
}

// NodesByIdentifier returns non-placeholder nodes of the type carrying the
// identifier.
func (s *MemStore) NodesByIdentifier(_ context.Context, typ, system, value string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := Identifier{System: system, Value: value}
	var out []Node
	for _, n := range s.nodes {
		if n.Key.Type != typ || n.Kind() == KindPlaceholder {
			continue
		}
		for _, id := range n.Identifiers {
			if id == want {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

// DeleteNode removes a node and every incident edge.
func (s *MemStore) DeleteNode(_ context.Context, key NodeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, key)
	for e := range s.edges {
		if e.From == key || e.To == key {
			delete(s.edges, e)
		}
	}
	return nil
}

// RewireEdges re-points incoming edges of from at to.
func (s *MemStore) RewireEdges(_ context.Context, from, to NodeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := range s.edges {
		if e.To == from {
			delete(s.edges, e)
			s.edges[memEdge{From: e.From, Rel: e.Rel, To: to}] = struct{}{}
		}
	}
	return nil
}

// NodeCount reports the total node count.
func (s *MemStore) NodeCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), nil
}

// Node returns a stored node by key, for tests and summaries.
func (s *MemStore) Node(key NodeKey) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[key]
	return n, ok
}

// HasEdge reports whether an edge exists between two keys with the given
// relationship type.
func (s *MemStore) HasEdge(from NodeKey, rel string, to NodeKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[memEdge{From: from, Rel: sanitizeRelType(rel), To: to}]
	return ok
}

// EdgeCount reports the total edge count.
func (s *MemStore) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}
