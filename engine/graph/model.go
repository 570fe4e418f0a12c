// Package graph defines the property-graph model for FHIR resources and the
// Store boundary over Neo4j, plus an in-memory implementation for tests and
// dry runs.
package graph

import "github.com/google/uuid"

// Property names shared by every store implementation.
const (
	PropID               = "fhir_id"
	PropStub             = "stub"
	PropIdentifiers      = "identifiers"
	PropIdentifierSystem = "identifier_system"
	PropIdentifierValue  = "identifier_value"
)

// LabelPlaceholder marks nodes standing in for an unresolved logical
// reference target.
const LabelPlaceholder = "Placeholder"

// placeholderNS seeds deterministic placeholder IDs so that every logical
// reference to the same (system, value) lands on the same node.
var placeholderNS = uuid.MustParse("5a1f0a9e-7c4b-4b8e-9d2f-3e6a8c1b0d47")

// Kind tells the three node flavors apart on read.
type Kind int

const (
	KindResource Kind = iota
	KindStub
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindStub:
		return "stub"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// NodeKey identifies a node globally by resource type and id. The type is
// the node's primary label.
type NodeKey struct {
	Type string
	ID   string
}

// Identifier is a business identifier carried by a resource.
type Identifier struct {
	System string
	Value  string
}

// Composite flattens an identifier into the single-string form stored on
// nodes and matched by the resolver.
func (i Identifier) Composite() string {
	return i.System + "|" + i.Value
}

// Node is one graph node. Labels lists extra labels beyond Key.Type.
type Node struct {
	Key         NodeKey
	Labels      []string
	Props       map[string]any
	Identifiers []Identifier
}

// Kind derives the node flavor from labels and properties.
func (n Node) Kind() Kind {
	for _, l := range n.Labels {
		if l == LabelPlaceholder {
			return KindPlaceholder
		}
	}
	if b, ok := n.Props[PropStub].(bool); ok && b {
		return KindStub
	}
	return KindResource
}

// AllLabels returns the node's labels with the primary label first.
func (n Node) AllLabels() []string {
	return append([]string{n.Key.Type}, n.Labels...)
}

// Target is the destination of an edge: either a literal Type/id address or
// a logical identifier to be reconciled later.
type Target interface {
	targetKey() NodeKey
}

// LiteralTarget addresses a node directly by type and id.
type LiteralTarget struct {
	Type string
	ID   string
}

func (t LiteralTarget) targetKey() NodeKey {
	return NodeKey{Type: t.Type, ID: t.ID}
}

// LogicalTarget addresses a node by business identifier. Type is the element's
// declared target resource type.
type LogicalTarget struct {
	Type   string
	System string
	Value  string
}

func (t LogicalTarget) targetKey() NodeKey {
	return NodeKey{Type: t.Type, ID: PlaceholderID(t.System, t.Value)}
}

// TargetKey returns the node key an edge to this target lands on. For a
// logical target that is the deterministic placeholder key.
func TargetKey(t Target) NodeKey {
	return t.targetKey()
}

// PlaceholderID derives the deterministic node id for a logical reference.
func PlaceholderID(system, value string) string {
	return uuid.NewSHA1(placeholderNS, []byte(system+"|"+value)).String()
}

// PlaceholderNode builds the minimal node a logical edge lands on until the
// real resource shows up.
func PlaceholderNode(t LogicalTarget) Node {
	return Node{
		Key:    t.targetKey(),
		Labels: []string{LabelPlaceholder},
		Props: map[string]any{
			PropIdentifierSystem: t.System,
			PropIdentifierValue:  t.Value,
		},
	}
}

// Edge is a directed, typed relationship from a mapped resource to a target.
type Edge struct {
	From NodeKey
	Rel  string
	To   Target
}

// WriteUnit bundles everything mapped from one source resource. A store
// applies it atomically.
type WriteUnit struct {
	Node  Node
	Edges []Edge
}
