// Package fhir is a read-only client for FHIR R4 search endpoints: capability
// check, count queries and lazy page iteration over searchset bundles.
package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fhirgraph/fhirgraph/pkg/resilience"
)

// DefaultPageSize is the `_count` sent when the caller does not choose one.
const DefaultPageSize = 250

// CapabilityStatement is the slice of /metadata this client reads.
type CapabilityStatement struct {
	ResourceType string `json:"resourceType"`
	FHIRVersion  string `json:"fhirVersion"`
	Implementation struct {
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"implementation"`
}

// Client talks to one FHIR server. Transient failures are retried by the
// underlying retryable transport.
type Client struct {
	base       string
	serverBase string
	http       *http.Client
	validate   bool
}

// Option configures a Client.
type Option func(*clientOpts)

type clientOpts struct {
	limiter    *resilience.Limiter
	timeout    time.Duration
	retryMax   int
	noValidate bool
}

// WithRateLimit throttles outbound requests to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOpts) {
		o.limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: rps, Burst: burst})
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOpts) { o.timeout = d }
}

// WithRetryMax sets how often a failed request is retried.
func WithRetryMax(n int) Option {
	return func(o *clientOpts) { o.retryMax = n }
}

// WithoutValidation turns off structural entry validation.
func WithoutValidation() Option {
	return func(o *clientOpts) { o.noValidate = true }
}

// New creates a client for the given server base URL.
func New(base string, options ...Option) *Client {
	opts := clientOpts{timeout: 60 * time.Second, retryMax: 3}
	for _, o := range options {
		o(&opts)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.retryMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = opts.timeout
	rc.HTTPClient.Transport = otelhttp.NewTransport(&resilience.Transport{Limiter: opts.limiter})

	base = strings.TrimRight(base, "/")
	return &Client{
		base:       base,
		serverBase: base,
		http:       rc.StandardClient(),
		validate:   !opts.noValidate,
	}
}

// get fetches a path relative to the server base and returns the body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.base + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

// Metadata fetches the capability statement. It doubles as the connection
// check and records the server's own base URL, which next-links are
// normalized against.
func (c *Client) Metadata(ctx context.Context) (*CapabilityStatement, error) {
	body, err := c.get(ctx, "metadata")
	if err != nil {
		return nil, err
	}
	var cs CapabilityStatement
	if err := json.Unmarshal(body, &cs); err != nil {
		return nil, fmt.Errorf("decode capability statement: %w", err)
	}
	if cs.ResourceType != "CapabilityStatement" {
		return nil, fmt.Errorf("unexpected metadata resource %q", cs.ResourceType)
	}
	if cs.Implementation.URL != "" {
		c.serverBase = strings.TrimRight(cs.Implementation.URL, "/")
	}
	return &cs, nil
}

// Count returns the server's total for a resource type via `_summary=count`.
func (c *Client) Count(ctx context.Context, resourceType string) (int, error) {
	body, err := c.get(ctx, resourceType+"?_summary=count")
	if err != nil {
		return 0, err
	}
	var b Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return 0, fmt.Errorf("decode count bundle: %w", err)
	}
	if b.Total == nil {
		return 0, fmt.Errorf("count bundle for %s has no total", resourceType)
	}
	return *b.Total, nil
}

// SearchOpts tunes a paged search.
type SearchOpts struct {
	// PageSize is the `_count` per page; zero means DefaultPageSize.
	PageSize int
	// Limit stops iteration after this many resources; zero means all.
	Limit int
}

// Search starts a paged search over one resource type.
func (c *Client) Search(resourceType string, opts SearchOpts) *Pager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Pager{
		client: c,
		typ:    resourceType,
		limit:  opts.Limit,
		next:   fmt.Sprintf("%s?_count=%d", resourceType, opts.PageSize),
	}
}

// relativeNext reduces a next-link to a path relative to the client base.
// Some servers put a wrong domain in the link, so the split uses the base
// URL the server itself advertises.
func (c *Client) relativeNext(link string) string {
	parts := strings.Split(link, c.serverBase)
	return strings.TrimLeft(parts[len(parts)-1], "/")
}
