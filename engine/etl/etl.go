package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
	"github.com/fhirgraph/fhirgraph/engine/mapper"
	"github.com/fhirgraph/fhirgraph/engine/resolve"
	"github.com/fhirgraph/fhirgraph/pkg/fn"
	"github.com/fhirgraph/fhirgraph/pkg/metrics"
)

// defaultWorkers bounds per-page concurrency when the caller does not.
const defaultWorkers = 8

// ETL drives one run against a source and a store.
type ETL struct {
	source  Source
	store   graph.Store
	reg     *mapper.Registry
	log     *slog.Logger
	metrics *metrics.Registry
	cfg     Config
}

// New assembles a run. A nil metrics registry gets a private one.
func New(source Source, store graph.Store, reg *mapper.Registry, log *slog.Logger, m *metrics.Registry, cfg Config) *ETL {
	if m == nil {
		m = metrics.New()
	}
	return &ETL{source: source, store: store, reg: reg, log: log, metrics: m, cfg: cfg}
}

// Run executes delete, transforms and resolve in order and returns the
// accumulated report. Fetch failures are fatal per type, not per run.
func (e *ETL) Run(ctx context.Context) (*Report, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}
	report := NewReport()

	if e.cfg.Delete {
		e.log.Info("etl: deleting database content")
		if err := e.store.DeleteAll(ctx); err != nil {
			return report, fmt.Errorf("delete database content: %w", err)
		}
	}

	if len(e.cfg.Resources) > 0 {
		// Uniqueness constraints keep concurrent MERGE from racing into
		// duplicate nodes.
		if err := e.store.EnsureConstraints(ctx, e.reg.Types()); err != nil {
			return report, fmt.Errorf("ensure constraints: %w", err)
		}
	}

	for _, typ := range e.cfg.Resources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.transformType(ctx, typ, report); err != nil {
			return report, err
		}
	}

	if len(e.cfg.Resources) > 0 {
		placeholders, err := e.store.Placeholders(ctx)
		if err != nil {
			return report, fmt.Errorf("count placeholders: %w", err)
		}
		report.setPlaceholders(len(placeholders))
		e.metrics.Gauge("fhirgraph_placeholders", "Outstanding placeholder nodes").Set(int64(len(placeholders)))
	}

	if e.cfg.Resolve {
		stats, err := resolve.Pass(ctx, e.store, e.log)
		if err != nil {
			return report, fmt.Errorf("resolve pass: %w", err)
		}
		report.setResolve(stats)
		e.metrics.Gauge("fhirgraph_placeholders", "Outstanding placeholder nodes").
			Set(int64(stats.Unresolved + len(stats.Ambiguous)))
	}
	return report, nil
}

// pipeline builds the map-then-write stage for one resource type.
func (e *ETL) pipeline(m mapper.Mapper) fn.Stage[fhir.RawResource, graph.NodeKey] {
	mapStage := fn.TracedStage("etl.map", fn.Stage[fhir.RawResource, graph.WriteUnit](
		func(_ context.Context, res fhir.RawResource) fn.Result[graph.WriteUnit] {
			node, edges, err := m.Map(res)
			if err != nil {
				return fn.Err[graph.WriteUnit](err)
			}
			return fn.Ok(graph.WriteUnit{Node: node, Edges: edges})
		}))

	tap := fn.TapStage(func(_ context.Context, unit graph.WriteUnit) {
		e.log.Debug("etl: resource mapped",
			"type", unit.Node.Key.Type,
			"id", unit.Node.Key.ID,
			"edges", len(unit.Edges))
	})

	writeStage := fn.TracedStage("etl.write", fn.RetryStage(fn.DefaultRetry,
		fn.Stage[graph.WriteUnit, graph.NodeKey](
			func(ctx context.Context, unit graph.WriteUnit) fn.Result[graph.NodeKey] {
				if err := e.store.ApplyUnit(ctx, unit); err != nil {
					return fn.Err[graph.NodeKey](err)
				}
				return fn.Ok(unit.Node.Key)
			})))

	return fn.Then(mapStage, fn.Then(tap, writeStage))
}

func (e *ETL) transformType(ctx context.Context, typ string, report *Report) error {
	m, ok := e.reg.Lookup(typ)
	if !ok {
		return fmt.Errorf("no mapper for resource type %q", typ)
	}

	total, err := e.source.Count(ctx, typ)
	if err != nil {
		e.log.Error("etl: count failed, skipping type", "type", typ, "error", err)
		report.addFailed(typ, err)
		return nil
	}
	report.setTotal(typ, total)
	e.log.Info("etl: transforming resource type", "type", typ, "total", total)

	fetched := e.metrics.Counter(metrics.WithLabels("fhirgraph_fetched_total", "resource", typ), "Resources fetched")
	written := e.metrics.Counter(metrics.WithLabels("fhirgraph_written_total", "resource", typ), "Resources written")
	failed := e.metrics.Counter(metrics.WithLabels("fhirgraph_failed_total", "resource", typ), "Resources failed")
	pageSeconds := e.metrics.Histogram(metrics.WithLabels("fhirgraph_page_seconds", "resource", typ), "Page latency", metrics.PageBuckets)

	pipeline := e.pipeline(m)
	workers := 1
	if e.cfg.Parallel {
		workers = e.cfg.Workers
		if workers <= 0 {
			workers = defaultWorkers
		}
	}

	pager := e.source.Search(typ, fhir.SearchOpts{PageSize: e.cfg.PageSize, Limit: e.cfg.Limit})
	for pager.Next(ctx) {
		start := time.Now()
		page := pager.Page()
		if page.Empty() {
			report.addDiscardedPage(typ)
			continue
		}

		for _, verr := range page.Invalid {
			report.addFailed(typ, verr)
			failed.Inc()
			if e.cfg.Strict {
				e.log.Error("etl: aborting type on validation error", "type", typ, "error", verr)
				return nil
			}
		}

		report.addFetched(typ, len(page.Resources))
		fetched.Add(int64(len(page.Resources)))

		results := fn.ParMapResult(page.Resources, workers, func(res fhir.RawResource) fn.Result[graph.NodeKey] {
			return pipeline(ctx, res)
		})
		for _, r := range results {
			if _, err := r.Unwrap(); err != nil {
				report.addFailed(typ, err)
				failed.Inc()
				if e.cfg.Strict && isDataError(err) {
					e.log.Error("etl: aborting type on mapping error", "type", typ, "error", err)
					return nil
				}
				continue
			}
			report.addWritten(typ)
			written.Inc()
		}
		pageSeconds.Since(start)
	}
	if err := pager.Err(); err != nil {
		e.log.Error("etl: fetch failed, type aborted", "type", typ, "error", err)
		report.addFailed(typ, err)
		return nil
	}

	stats := report.Stats(typ)
	e.log.Info("etl: resource type done",
		"type", typ,
		"fetched", stats.Fetched,
		"written", stats.Written,
		"failed", stats.Failed)
	return nil
}

// isDataError reports whether an error comes from the data itself rather
// than the infrastructure; only these abort a type in strict mode.
func isDataError(err error) bool {
	var merr *mapper.MappingError
	var verr *fhir.ValidationError
	return errors.As(err, &merr) || errors.As(err, &verr)
}
