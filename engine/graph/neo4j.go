package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// deleteBatchSize bounds how many relationships or nodes one wipe
// transaction touches, keeping transaction memory flat on large graphs.
const deleteBatchSize = 10000

// Neo4jStore implements Store over a Neo4j server.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	db     string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity before any work.
func NewNeo4jStore(ctx context.Context, uri, user, pass, db string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jStore{driver: driver, db: db}, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.db})
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// schemaStatements returns the DDL for one label: the key uniqueness
// constraint that keeps concurrent MERGE race-free, and the index on the
// identifier property that identifier lookups during resolution depend on.
func schemaStatements(label string) []string {
	return []string{
		fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n%s) REQUIRE n.%s IS UNIQUE",
			escapeName("uniq_"+PropID+"_"+label), labelExpr([]string{label}), PropID,
		),
		fmt.Sprintf(
			"CREATE INDEX %s IF NOT EXISTS FOR (n%s) ON (n.%s)",
			escapeName("idx_"+PropIdentifiers+"_"+label), labelExpr([]string{label}), PropIdentifiers,
		),
	}
}

// EnsureConstraints declares the required schema for each label: uniqueness
// on the key property and an index on the identifier property.
func (s *Neo4jStore) EnsureConstraints(ctx context.Context, labels []string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	for _, label := range labels {
		for _, cypher := range schemaStatements(label) {
			if _, err := sess.Run(ctx, cypher, nil); err != nil {
				return fmt.Errorf("schema for %s: %w", label, err)
			}
		}
	}
	return nil
}

// nodeProps flattens a Node into the property map stored on its Neo4j node.
func nodeProps(n Node) map[string]any {
	props := make(map[string]any, len(n.Props)+2)
	for k, v := range n.Props {
		props[k] = v
	}
	props[PropID] = n.Key.ID
	if len(n.Identifiers) > 0 {
		composites := make([]string, len(n.Identifiers))
		for i, id := range n.Identifiers {
			composites[i] = id.Composite()
		}
		props[PropIdentifiers] = composites
	}
	return props
}

// ApplyUnit writes one resource's node and edges in a single managed write
// transaction. The driver retries transient failures internally.
func (s *Neo4jStore) ApplyUnit(ctx context.Context, unit WriteUnit) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := upsertNodeTx(ctx, tx, unit.Node); err != nil {
			return nil, err
		}
		for _, e := range unit.Edges {
			if err := mergeEdgeTx(ctx, tx, e); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return &WriteError{Key: unit.Node.Key, Err: err}
	}
	return nil
}

// UpsertNode merges a single node outside any unit.
func (s *Neo4jStore) UpsertNode(ctx context.Context, node Node) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, upsertNodeTx(ctx, tx, node)
	})
	if err != nil {
		return &WriteError{Key: node.Key, Err: err}
	}
	return nil
}

func upsertNodeTx(ctx context.Context, tx neo4j.ManagedTransaction, n Node) error {
	// A full upsert clears the stub marker a literal edge may have left.
	cypher := fmt.Sprintf(
		"MERGE (n%s {%s: $id}) SET n += $props REMOVE n.%s",
		labelExpr(n.AllLabels()), PropID, PropStub,
	)
	_, err := tx.Run(ctx, cypher, map[string]any{
		"id":    n.Key.ID,
		"props": nodeProps(n),
	})
	return err
}

func mergeEdgeTx(ctx context.Context, tx neo4j.ManagedTransaction, e Edge) error {
	rel := sanitizeRelType(e.Rel)

	switch t := e.To.(type) {
	case LiteralTarget:
		cypher := fmt.Sprintf(
			`MATCH (a%s {%s: $from})
			 MERGE (b%s {%s: $to}) ON CREATE SET b.%s = true
			 MERGE (a)-[:%s]->(b)`,
			labelExpr([]string{e.From.Type}), PropID,
			labelExpr([]string{t.Type}), PropID, PropStub,
			rel,
		)
		_, err := tx.Run(ctx, cypher, map[string]any{"from": e.From.ID, "to": t.ID})
		return err
	case LogicalTarget:
		cypher := fmt.Sprintf(
			`MATCH (a%s {%s: $from})
			 MERGE (b%s {%s: $to})
			 ON CREATE SET b.%s = $system, b.%s = $value
			 MERGE (a)-[:%s]->(b)`,
			labelExpr([]string{e.From.Type}), PropID,
			labelExpr([]string{t.Type, LabelPlaceholder}), PropID,
			PropIdentifierSystem, PropIdentifierValue,
			rel,
		)
		_, err := tx.Run(ctx, cypher, map[string]any{
			"from":   e.From.ID,
			"to":     PlaceholderID(t.System, t.Value),
			"system": t.System,
			"value":  t.Value,
		})
		return err
	default:
		return fmt.Errorf("unknown edge target %T", e.To)
	}
}

// DeleteAll wipes the database in bounded batches: relationships, then
// nodes, then constraints and indexes.
func (s *Neo4jStore) DeleteAll(ctx context.Context) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	if err := drainDelete(ctx, sess,
		"MATCH ()-[r]->() WITH r LIMIT $batch DELETE r RETURN count(r) AS removed"); err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	if err := drainDelete(ctx, sess,
		"MATCH (n) WITH n LIMIT $batch DETACH DELETE n RETURN count(n) AS removed"); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	if err := s.dropConstraints(ctx, sess); err != nil {
		return err
	}
	return s.dropIndexes(ctx, sess)
}

func drainDelete(ctx context.Context, sess neo4j.SessionWithContext, cypher string) error {
	for {
		removed, err := neo4j.ExecuteWrite(ctx, sess, func(tx neo4j.ManagedTransaction) (int64, error) {
			result, err := tx.Run(ctx, cypher, map[string]any{"batch": deleteBatchSize})
			if err != nil {
				return 0, err
			}
			record, err := result.Single(ctx)
			if err != nil {
				return 0, err
			}
			n, _, err := neo4j.GetRecordValue[int64](record, "removed")
			return n, err
		})
		if err != nil {
			return err
		}
		if removed == 0 {
			return nil
		}
	}
}

func (s *Neo4jStore) dropConstraints(ctx context.Context, sess neo4j.SessionWithContext) error {
	result, err := sess.Run(ctx, "SHOW CONSTRAINTS YIELD name", nil)
	if err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	var names []string
	for result.Next(ctx) {
		name, _, err := neo4j.GetRecordValue[string](result.Record(), "name")
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := result.Err(); err != nil {
		return err
	}
	for _, name := range names {
		cypher := fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", escapeName(name))
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("drop constraint %s: %w", name, err)
		}
	}
	return nil
}

// dropIndexes removes remaining non-system indexes. Constraint-backed
// indexes are already gone once dropConstraints has run.
func (s *Neo4jStore) dropIndexes(ctx context.Context, sess neo4j.SessionWithContext) error {
	result, err := sess.Run(ctx, "SHOW INDEXES YIELD name, type", nil)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	var names []string
	for result.Next(ctx) {
		record := result.Record()
		typ, _, err := neo4j.GetRecordValue[string](record, "type")
		if err != nil {
			return err
		}
		if typ == "LOOKUP" {
			continue
		}
		name, _, err := neo4j.GetRecordValue[string](record, "name")
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := result.Err(); err != nil {
		return err
	}
	for _, name := range names {
		cypher := fmt.Sprintf("DROP INDEX %s IF EXISTS", escapeName(name))
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}
	return nil
}

// Placeholders lists every outstanding placeholder node.
func (s *Neo4jStore) Placeholders(ctx context.Context) ([]Node, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n", LabelPlaceholder)
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	return collectNodes(ctx, result)
}

// NodesByIdentifier returns non-placeholder nodes of the given type carrying
// the identifier.
func (s *Neo4jStore) NodesByIdentifier(ctx context.Context, typ, system, value string) ([]Node, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		"MATCH (n%s) WHERE NOT n:%s AND $composite IN n.%s RETURN n",
		labelExpr([]string{typ}), LabelPlaceholder, PropIdentifiers,
	)
	result, err := sess.Run(ctx, cypher, map[string]any{
		"composite": Identifier{System: system, Value: value}.Composite(),
	})
	if err != nil {
		return nil, err
	}
	return collectNodes(ctx, result)
}

// DeleteNode detaches and deletes one node.
func (s *Neo4jStore) DeleteNode(ctx context.Context, key NodeKey) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		"MATCH (n%s {%s: $id}) DETACH DELETE n",
		labelExpr([]string{key.Type}), PropID,
	)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": key.ID})
	return err
}

// rewireStatement moves one incoming edge: it merges the relationship onto
// the new target and deletes the old one in the same statement, so no edge
// is left behind on the abandoned node.
func rewireStatement(srcLabels []string, rel string, fromType, toType string) string {
	relType := sanitizeRelType(rel)
	return fmt.Sprintf(
		"MATCH (s%s {%s: $sid})-[r:%s]->(p%s {%s: $pid}) MATCH (t%s {%s: $tid}) MERGE (s)-[:%s]->(t) DELETE r",
		labelExpr(srcLabels), PropID, relType,
		labelExpr([]string{fromType}), PropID,
		labelExpr([]string{toType}), PropID,
		relType,
	)
}

// RewireEdges re-points every incoming edge of from at to, keeping the
// relationship types, inside one transaction.
func (s *Neo4jStore) RewireEdges(ctx context.Context, from, to NodeKey) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		readCypher := fmt.Sprintf(
			"MATCH (s)-[r]->(p%s {%s: $id}) RETURN type(r) AS rel, s.%s AS sid, labels(s) AS slabels",
			labelExpr([]string{from.Type}), PropID, PropID,
		)
		result, err := tx.Run(ctx, readCypher, map[string]any{"id": from.ID})
		if err != nil {
			return nil, err
		}

		type incoming struct {
			rel     string
			sid     string
			slabels []string
		}
		var edges []incoming
		for result.Next(ctx) {
			record := result.Record()
			rel, _, err := neo4j.GetRecordValue[string](record, "rel")
			if err != nil {
				return nil, err
			}
			sid, _, err := neo4j.GetRecordValue[string](record, "sid")
			if err != nil {
				return nil, err
			}
			rawLabels, _, err := neo4j.GetRecordValue[[]any](record, "slabels")
			if err != nil {
				return nil, err
			}
			labels := make([]string, 0, len(rawLabels))
			for _, l := range rawLabels {
				if s, ok := l.(string); ok {
					labels = append(labels, s)
				}
			}
			edges = append(edges, incoming{rel: rel, sid: sid, slabels: labels})
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		for _, e := range edges {
			cypher := rewireStatement(e.slabels, e.rel, from.Type, to.Type)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"sid": e.sid,
				"pid": from.ID,
				"tid": to.ID,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// NodeCount reports the total node count.
func (s *Neo4jStore) NodeCount(ctx context.Context) (int, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, "MATCH (n) RETURN count(n) AS total", nil)
	if err != nil {
		return 0, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, err
	}
	total, _, err := neo4j.GetRecordValue[int64](record, "total")
	return int(total), err
}

// collectNodes reads all nodes from a result set.
func collectNodes(ctx context.Context, result neo4j.ResultWithContext) ([]Node, error) {
	var items []Node
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, nodeFromDB(node))
	}
	return items, result.Err()
}

// nodeFromDB converts a Neo4j node back into the model, recovering the
// primary label, identifiers and kind.
func nodeFromDB(n dbtype.Node) Node {
	out := Node{Props: make(map[string]any, len(n.Props))}

	for _, l := range n.Labels {
		if l != LabelPlaceholder && out.Key.Type == "" {
			out.Key.Type = l
			continue
		}
		out.Labels = append(out.Labels, l)
	}
	for k, v := range n.Props {
		switch k {
		case PropID:
			if s, ok := v.(string); ok {
				out.Key.ID = s
			}
		case PropIdentifiers:
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if composite, ok := item.(string); ok {
						if sys, val, found := splitComposite(composite); found {
							out.Identifiers = append(out.Identifiers, Identifier{System: sys, Value: val})
						}
					}
				}
			}
		default:
			out.Props[k] = v
		}
	}
	return out
}

func splitComposite(s string) (system, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
