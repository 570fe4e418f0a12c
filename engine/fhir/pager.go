package fhir

import (
	"context"
	"encoding/json"
)

// Page is one bundle's worth of resources. A page with no resources and no
// invalid entries was an empty bundle; callers count it as discarded.
type Page struct {
	Resources []RawResource
	Invalid   []error
}

// Empty reports whether the bundle carried no usable entries.
func (p Page) Empty() bool {
	return len(p.Resources) == 0 && len(p.Invalid) == 0
}

// Pager iterates lazily over the pages of a searchset, following next-links
// until the server stops sending them or the limit is reached. Usage follows
// bufio.Scanner: Next, Page, then Err once Next returns false.
type Pager struct {
	client  *Client
	typ     string
	limit   int
	next    string
	page    Page
	err     error
	yielded int
	done    bool
}

// Next fetches the next page. It returns false at the end of iteration or
// on a fetch error; Err tells the two apart.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}

	body, err := p.client.get(ctx, p.next)
	if err != nil {
		p.err = err
		return false
	}
	var bundle Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		p.err = &FetchError{URL: p.next, Err: err}
		return false
	}

	page := Page{}
	for _, entry := range bundle.Entry {
		res, ok, err := decodeEntry(entry, p.typ, p.client.validate)
		if err != nil {
			page.Invalid = append(page.Invalid, err)
			continue
		}
		if !ok {
			continue
		}
		page.Resources = append(page.Resources, res)
		p.yielded++
		if p.limit > 0 && p.yielded >= p.limit {
			p.done = true
			break
		}
	}
	p.page = page

	if !p.done {
		next := bundle.nextLink()
		if next == "" {
			p.done = true
		} else {
			p.next = p.client.relativeNext(next)
		}
	}
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Pager) Page() Page { return p.page }

// Err returns the error that stopped iteration, if any.
func (p *Pager) Err() error { return p.err }
