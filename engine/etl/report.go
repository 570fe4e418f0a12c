package etl

import (
	"log/slog"
	"sync"

	"github.com/fhirgraph/fhirgraph/engine/resolve"
)

// TypeStats counts one resource type's transform.
type TypeStats struct {
	Total          int
	Fetched        int
	DiscardedPages int
	Written        int
	Failed         int
	Errors         []error
}

// Report accumulates run results. Workers share one Report, so every
// mutation takes the lock.
type Report struct {
	mu    sync.Mutex
	types map[string]*TypeStats
	order []string

	placeholders int
	resolve      *resolve.Stats
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{types: make(map[string]*TypeStats)}
}

func (r *Report) forType(typ string) *TypeStats {
	if s, ok := r.types[typ]; ok {
		return s
	}
	s := &TypeStats{}
	r.types[typ] = s
	r.order = append(r.order, typ)
	return s
}

func (r *Report) setTotal(typ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forType(typ).Total = n
}

func (r *Report) addFetched(typ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forType(typ).Fetched += n
}

func (r *Report) addDiscardedPage(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forType(typ).DiscardedPages++
}

func (r *Report) addWritten(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forType(typ).Written++
}

func (r *Report) addFailed(typ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.forType(typ)
	s.Failed++
	s.Errors = append(s.Errors, err)
}

func (r *Report) setPlaceholders(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholders = n
}

func (r *Report) setResolve(stats resolve.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolve = &stats
}

// Stats returns a copy of one type's counters.
func (r *Report) Stats(typ string) TypeStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.types[typ]; ok {
		out := *s
		out.Errors = append([]error(nil), s.Errors...)
		return out
	}
	return TypeStats{}
}

// Placeholders returns the outstanding placeholder count after transforms.
func (r *Report) Placeholders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.placeholders
}

// ResolveStats returns the resolve pass outcome, if one ran.
func (r *Report) ResolveStats() (resolve.Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolve == nil {
		return resolve.Stats{}, false
	}
	return *r.resolve, true
}

// LogSummary emits the final per-type and run totals.
func (r *Report) LogSummary(log *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var written, failed int
	for _, typ := range r.order {
		s := r.types[typ]
		log.Info("summary: resource type done",
			"type", typ,
			"total", s.Total,
			"fetched", s.Fetched,
			"written", s.Written,
			"failed", s.Failed,
			"discarded_pages", s.DiscardedPages)
		written += s.Written
		failed += s.Failed
	}
	log.Info("summary: run finished",
		"written", written,
		"failed", failed,
		"placeholders", r.placeholders)
	if r.resolve != nil {
		log.Info("summary: resolve pass",
			"examined", r.resolve.Examined,
			"resolved", r.resolve.Resolved,
			"unresolved", r.resolve.Unresolved,
			"ambiguous", len(r.resolve.Ambiguous))
	}
}
