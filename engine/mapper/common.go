package mapper

import (
	"strconv"
	"strings"
)

// Shared FHIR datatypes, decoded only as deeply as the flattening needs.

type humanName struct {
	Use    string   `json:"use"`
	Text   string   `json:"text"`
	Family string   `json:"family"`
	Given  []string `json:"given"`
	Prefix []string `json:"prefix"`
	Suffix []string `json:"suffix"`
}

type address struct {
	Use        string   `json:"use"`
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Line       []string `json:"line"`
	City       string   `json:"city"`
	District   string   `json:"district"`
	State      string   `json:"state"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
	Period     *period  `json:"period"`
}

type contactPoint struct {
	System string `json:"system"`
	Value  string `json:"value"`
	Use    string `json:"use"`
	Rank   int    `json:"rank"`
}

type coding struct {
	System  string `json:"system"`
	Version string `json:"version"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type codeableConcept struct {
	Coding []coding `json:"coding"`
	Text   string   `json:"text"`
}

type identifierJSON struct {
	Use    string `json:"use"`
	System string `json:"system"`
	Value  string `json:"value"`
}

type period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type quantity struct {
	Value      *float64 `json:"value"`
	Comparator string   `json:"comparator"`
	Unit       string   `json:"unit"`
	System     string   `json:"system"`
	Code       string   `json:"code"`
}

// props gathers flattened node properties. Empty values are dropped so the
// graph carries no blank strings.
type props map[string]any

func (p props) put(key string, v any) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return
		}
	case nil:
		return
	}
	p[key] = v
}

// numberedKey follows the original key scheme for repeated elements: the
// first occurrence keeps the bare key, later ones get key2, key3, ...
func numberedKey(key string, n int) string {
	if n == 0 {
		return key
	}
	return key + strconv.Itoa(n+1)
}

func (p props) putHumanNames(names []humanName, key string) {
	for n, name := range names {
		k := numberedKey(key, n)
		p.put(k+"_use", name.Use)
		p.put(k, name.Text)
		p.put(k+"_family", name.Family)
		p.put(k+"_given", strings.Join(name.Given, " "))
		p.put(k+"_prefix", strings.Join(name.Prefix, " "))
		p.put(k+"_suffix", strings.Join(name.Suffix, " "))
	}
}

func (p props) putAddresses(addrs []address, key string) {
	for n, a := range addrs {
		k := numberedKey(key, n)
		p.put(k+"_use", a.Use)
		p.put(k+"_type", a.Type)
		p.put(k, a.Text)
		p.put(k+"_line", strings.Join(a.Line, ", "))
		p.put(k+"_city", a.City)
		p.put(k+"_district", a.District)
		p.put(k+"_state", a.State)
		p.put(k+"_postalcode", a.PostalCode)
		p.put(k+"_country", a.Country)
		p.putPeriod(a.Period, k+"_period")
	}
}

func (p props) putContactPoints(cps []contactPoint, key string) {
	for n, cp := range cps {
		k := numberedKey(key, n)
		p.put(k+"_system", cp.System)
		p.put(k, cp.Value)
		p.put(k+"_use", cp.Use)
		if cp.Rank > 0 {
			p.put(k+"_rank", cp.Rank)
		}
	}
}

func (p props) putPeriod(pd *period, key string) {
	if pd == nil {
		return
	}
	p.put(key+"_start", pd.Start)
	p.put(key+"_end", pd.End)
}

// putCodeableConcept flattens a concept to its display text plus code and
// system of the first coding.
func (p props) putCodeableConcept(cc *codeableConcept, key string) {
	if cc == nil {
		return
	}
	text := cc.Text
	if text == "" && len(cc.Coding) > 0 {
		text = cc.Coding[0].Display
	}
	p.put(key, text)
	if len(cc.Coding) > 0 {
		p.put(key+"_code", cc.Coding[0].Code)
		p.put(key+"_system", cc.Coding[0].System)
	}
}

func (p props) putCodeableConcepts(ccs []codeableConcept, key string) {
	for n, cc := range ccs {
		p.putCodeableConcept(&cc, numberedKey(key, n))
	}
}

func (p props) putQuantity(q *quantity, key string) {
	if q == nil {
		return
	}
	if q.Value != nil {
		p.put(key, *q.Value)
	}
	p.put(key+"_comparator", q.Comparator)
	p.put(key+"_unit", q.Unit)
	p.put(key+"_system", q.System)
	p.put(key+"_code", q.Code)
}
