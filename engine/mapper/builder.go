package mapper

import "github.com/fhirgraph/fhirgraph/engine/graph"

// builder accumulates the node and edges for one resource while a mapper
// walks its elements.
type builder struct {
	typ   string
	id    string
	p     props
	ids   []graph.Identifier
	edges []graph.Edge
}

func newBuilder(typ, id string) *builder {
	return &builder{typ: typ, id: id, p: make(props)}
}

func (b *builder) key() graph.NodeKey {
	return graph.NodeKey{Type: b.typ, ID: b.id}
}

// identifiers records business identifiers; entries without both system and
// value cannot be matched by the resolver and are skipped.
func (b *builder) identifiers(list []identifierJSON) {
	for _, id := range list {
		if id.System == "" || id.Value == "" {
			continue
		}
		b.ids = append(b.ids, graph.Identifier{System: id.System, Value: id.Value})
	}
}

// ref classifies one reference element. Display text lands on the node under
// key; literal and logical targets become edges.
func (b *builder) ref(ref *Reference, key, rel string, allowed ...string) error {
	if ref == nil {
		return nil
	}
	c, err := ClassifyReference(*ref, allowed...)
	if err != nil {
		return &MappingError{Type: b.typ, ID: b.id, Reason: key + ": " + err.Error()}
	}
	if c.Display != "" {
		b.p.put(key, c.Display)
	}
	if c.Target != nil {
		b.edges = append(b.edges, graph.Edge{From: b.key(), Rel: rel, To: c.Target})
	}
	return nil
}

// refs handles a repeated reference element with numbered display keys.
func (b *builder) refs(list []Reference, key, rel string, allowed ...string) error {
	for n := range list {
		if err := b.ref(&list[n], numberedKey(key, n), rel, allowed...); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) finish() (graph.Node, []graph.Edge, error) {
	node := graph.Node{
		Key:         b.key(),
		Props:       map[string]any(b.p),
		Identifiers: b.ids,
	}
	return node, b.edges, nil
}
