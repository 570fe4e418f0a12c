// Package resolve reconciles placeholder nodes left behind by logical
// references: once the referenced resource has been transformed, its node
// carries the identifier, edges are rewired and the placeholder disappears.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// AmbiguousMatchError marks a placeholder whose identifier matches more than
// one node. The placeholder is left untouched; picking one arbitrarily would
// silently attach clinical data to the wrong resource.
type AmbiguousMatchError struct {
	Type    string
	System  string
	Value   string
	Matches int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("resolve %s by %s|%s: %d matching nodes", e.Type, e.System, e.Value, e.Matches)
}

// Stats summarizes one resolve pass.
type Stats struct {
	Examined   int
	Resolved   int
	Unresolved int
	Ambiguous  []*AmbiguousMatchError
}

// Pass examines every placeholder and resolves the ones whose identifier now
// matches exactly one real node. It is idempotent; rerunning only shrinks
// the unresolved set.
func Pass(ctx context.Context, store graph.Store, log *slog.Logger) (Stats, error) {
	placeholders, err := store.Placeholders(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list placeholders: %w", err)
	}

	var stats Stats
	stats.Examined = len(placeholders)
	if len(placeholders) == 0 {
		log.Info("resolve: no unresolved references")
		return stats, nil
	}
	log.Info("resolve: examining unresolved references", "count", len(placeholders))

	for _, p := range placeholders {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		system, _ := p.Props[graph.PropIdentifierSystem].(string)
		value, _ := p.Props[graph.PropIdentifierValue].(string)
		if system == "" || value == "" {
			stats.Unresolved++
			log.Warn("resolve: placeholder without identifier", "type", p.Key.Type, "id", p.Key.ID)
			continue
		}

		matches, err := store.NodesByIdentifier(ctx, p.Key.Type, system, value)
		if err != nil {
			return stats, fmt.Errorf("match %s by %s|%s: %w", p.Key.Type, system, value, err)
		}
		switch len(matches) {
		case 0:
			stats.Unresolved++
			log.Warn("resolve: no matching node", "type", p.Key.Type, "system", system, "value", value)
		case 1:
			target := matches[0].Key
			if err := store.RewireEdges(ctx, p.Key, target); err != nil {
				return stats, fmt.Errorf("rewire %s: %w", p.Key.ID, err)
			}
			if err := store.DeleteNode(ctx, p.Key); err != nil {
				return stats, fmt.Errorf("delete placeholder %s: %w", p.Key.ID, err)
			}
			stats.Resolved++
			log.Info("resolve: reference resolved", "type", p.Key.Type, "target", target.ID)
		default:
			amb := &AmbiguousMatchError{Type: p.Key.Type, System: system, Value: value, Matches: len(matches)}
			stats.Ambiguous = append(stats.Ambiguous, amb)
			log.Warn("resolve: ambiguous match, placeholder kept", "type", p.Key.Type, "system", system, "value", value, "matches", len(matches))
		}
	}

	log.Info("resolve: pass finished",
		"examined", stats.Examined,
		"resolved", stats.Resolved,
		"unresolved", stats.Unresolved,
		"ambiguous", len(stats.Ambiguous))
	return stats, nil
}
