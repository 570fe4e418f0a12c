package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/fhirgraph/fhirgraph/engine/fhir"
	"github.com/fhirgraph/fhirgraph/engine/graph"
	"github.com/fhirgraph/fhirgraph/engine/mapper"
)

type fakePager struct {
	pages []fhir.Page
	idx   int
	cur   fhir.Page
	err   error
}

func (p *fakePager) Next(_ context.Context) bool {
	if p.idx >= len(p.pages) {
		return false
	}
	p.cur = p.pages[p.idx]
	p.idx++
	return true
}

func (p *fakePager) Page() fhir.Page { return p.cur }

func (p *fakePager) Err() error {
	if p.idx >= len(p.pages) {
		return p.err
	}
	return nil
}

type fakeSource struct {
	pages    map[string][]fhir.Page
	countErr map[string]error
	fetchErr map[string]error
}

func (s *fakeSource) Count(_ context.Context, typ string) (int, error) {
	if err := s.countErr[typ]; err != nil {
		return 0, err
	}
	var n int
	for _, p := range s.pages[typ] {
		n += len(p.Resources)
	}
	return n, nil
}

func (s *fakeSource) Search(typ string, _ fhir.SearchOpts) PageIterator {
	return &fakePager{pages: s.pages[typ], err: s.fetchErr[typ]}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func patientRes(t *testing.T, id string, extra string) fhir.RawResource {
	t.Helper()
	body := fmt.Sprintf(`{"resourceType":"Patient","id":%q%s}`, id, extra)
	if !json.Valid([]byte(body)) {
		t.Fatalf("bad fixture: %s", body)
	}
	return fhir.RawResource{Type: "Patient", ID: id, Body: json.RawMessage(body)}
}

func orgRes(t *testing.T, id, system, value string) fhir.RawResource {
	t.Helper()
	body := fmt.Sprintf(`{"resourceType":"Organization","id":%q,"name":"General","identifier":[{"system":%q,"value":%q}]}`, id, system, value)
	return fhir.RawResource{Type: "Organization", ID: id, Body: json.RawMessage(body)}
}

func TestRunEndToEndWithResolve(t *testing.T) {
	ctx := context.Background()
	logicalRef := `,"managingOrganization":{"identifier":{"system":"urn:oid:2.16","value":"HOSP"}}`
	src := &fakeSource{pages: map[string][]fhir.Page{
		"Patient": {{Resources: []fhir.RawResource{
			patientRes(t, "p1", logicalRef),
			patientRes(t, "p2", ""),
			patientRes(t, "p3", ""),
		}}},
		"Organization": {{Resources: []fhir.RawResource{
			orgRes(t, "org1", "urn:oid:2.16", "HOSP"),
		}}},
	}}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{
		Resources: []string{"Patient", "Organization"},
		Resolve:   true,
	})
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if s := report.Stats("Patient"); s.Written != 3 || s.Failed != 0 {
		t.Fatalf("patient stats %+v", s)
	}
	if s := report.Stats("Organization"); s.Written != 1 {
		t.Fatalf("organization stats %+v", s)
	}
	// The placeholder existed when transforms finished, then resolve
	// rewired the edge onto the real organization.
	if report.Placeholders() != 1 {
		t.Fatalf("placeholders after transforms = %d, want 1", report.Placeholders())
	}
	rs, ok := report.ResolveStats()
	if !ok || rs.Resolved != 1 || rs.Unresolved != 0 {
		t.Fatalf("resolve stats %+v ok=%v", rs, ok)
	}
	if !store.HasEdge(graph.NodeKey{Type: "Patient", ID: "p1"}, "MANAGED_BY", graph.NodeKey{Type: "Organization", ID: "org1"}) {
		t.Fatal("edge should point at the real organization")
	}
	placeholders, _ := store.Placeholders(ctx)
	if len(placeholders) != 0 {
		t.Fatalf("placeholders left: %d", len(placeholders))
	}
}

func TestRunParallelPage(t *testing.T) {
	var resources []fhir.RawResource
	for i := 0; i < 40; i++ {
		resources = append(resources, patientRes(t, fmt.Sprintf("p%d", i), ""))
	}
	src := &fakeSource{pages: map[string][]fhir.Page{
		"Patient": {{Resources: resources}},
	}}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{
		Resources: []string{"Patient"},
		Parallel:  true,
		Workers:   8,
	})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s := report.Stats("Patient"); s.Written != 40 {
		t.Fatalf("written = %d, want 40", s.Written)
	}
	if n, _ := store.NodeCount(context.Background()); n != 40 {
		t.Fatalf("node count = %d, want 40", n)
	}
}

func TestRunTolerantCollectsFailures(t *testing.T) {
	bad := fhir.RawResource{Type: "Patient", ID: "bad", Body: json.RawMessage(`{"resourceType":"Patient","id":"bad","managingOrganization":{"reference":"???"}}`)}
	src := &fakeSource{pages: map[string][]fhir.Page{
		"Patient": {{
			Resources: []fhir.RawResource{patientRes(t, "p1", ""), bad},
			Invalid:   []error{&fhir.ValidationError{Type: "Patient", Reason: "missing id"}},
		}},
	}}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{Resources: []string{"Patient"}})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := report.Stats("Patient")
	if s.Written != 1 || s.Failed != 2 {
		t.Fatalf("stats %+v", s)
	}
	if len(s.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(s.Errors))
	}
}

func TestRunStrictAbortsTypeOnly(t *testing.T) {
	src := &fakeSource{pages: map[string][]fhir.Page{
		"Patient": {{
			Resources: []fhir.RawResource{patientRes(t, "p1", "")},
			Invalid:   []error{&fhir.ValidationError{Type: "Patient", Reason: "missing id"}},
		}},
		"Organization": {{Resources: []fhir.RawResource{
			orgRes(t, "org1", "sys", "1"),
		}}},
	}}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{
		Resources: []string{"Patient", "Organization"},
		Strict:    true,
	})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s := report.Stats("Patient"); s.Written != 0 || s.Failed != 1 {
		t.Fatalf("patient stats %+v", s)
	}
	if s := report.Stats("Organization"); s.Written != 1 {
		t.Fatalf("organization stats %+v, strict abort must not leak across types", s)
	}
}

func TestRunCountFailureSkipsType(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]fhir.Page{
			"Organization": {{Resources: []fhir.RawResource{orgRes(t, "org1", "sys", "1")}}},
		},
		countErr: map[string]error{
			"Patient": &fhir.FetchError{URL: "Patient?_summary=count", Status: 500},
		},
	}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{
		Resources: []string{"Patient", "Organization"},
	})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s := report.Stats("Patient"); s.Failed != 1 || s.Fetched != 0 {
		t.Fatalf("patient stats %+v", s)
	}
	if s := report.Stats("Organization"); s.Written != 1 {
		t.Fatalf("organization stats %+v", s)
	}
}

func TestRunFetchErrorRecordedPartialPagesKept(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]fhir.Page{
			"Patient": {{Resources: []fhir.RawResource{patientRes(t, "p1", "")}}},
		},
		fetchErr: map[string]error{
			"Patient": &fhir.FetchError{URL: "Patient?page=2", Status: 502},
		},
	}
	store := graph.NewMemStore()

	e := New(src, store, mapper.DefaultRegistry(), discard(), nil, Config{Resources: []string{"Patient"}})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := report.Stats("Patient")
	if s.Written != 1 || s.Failed != 1 {
		t.Fatalf("stats %+v", s)
	}
	if _, ok := store.Node(graph.NodeKey{Type: "Patient", ID: "p1"}); !ok {
		t.Fatal("pages before the failure must stay written")
	}
}

func TestRunCountsEmptyPagesAsDiscarded(t *testing.T) {
	src := &fakeSource{pages: map[string][]fhir.Page{
		"Patient": {
			{},
			{Resources: []fhir.RawResource{patientRes(t, "p1", "")}},
		},
	}}
	e := New(src, graph.NewMemStore(), mapper.DefaultRegistry(), discard(), nil, Config{Resources: []string{"Patient"}})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := report.Stats("Patient")
	if s.DiscardedPages != 1 || s.Written != 1 {
		t.Fatalf("stats %+v", s)
	}
}

func TestRunDeleteWipesStore(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	store.UpsertNode(ctx, graph.Node{Key: graph.NodeKey{Type: "Patient", ID: "old"}})

	e := New(&fakeSource{}, store, mapper.DefaultRegistry(), discard(), nil, Config{Delete: true})
	if _, err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.NodeCount(ctx); n != 0 {
		t.Fatalf("node count = %d after delete", n)
	}
}

func TestRunUnknownTypeFails(t *testing.T) {
	e := New(&fakeSource{}, graph.NewMemStore(), mapper.DefaultRegistry(), discard(), nil, Config{
		Resources: []string{"Bogus"},
	})
	if _, err := e.Run(context.Background()); err == nil {
		t.Fatal("expected error for unmapped resource type")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).validate(); err == nil {
		t.Fatal("empty config should fail")
	}
	if err := (Config{Resolve: true}).validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Config{Resources: []string{"Patient"}, PageSize: -1}).validate(); err == nil {
		t.Fatal("negative page size should fail")
	}
}
