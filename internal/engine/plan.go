package engine

import (
	"github.com/blevesearch/bleve/v2/search/query"
)

// Plan is an executable engine query produced by the query planner.
type Plan struct {
	// Query is the composed engine query (tenant filter plus ranked clauses).
	Query query.Query

	// Highlight lists the fields to compute highlight fragments for.
	Highlight []string

	// Empty short-circuits execution: an empty plan never touches the engine
	// and yields zero hits.
	Empty bool
}

// EmptyPlan returns a plan that yields no results without an engine call.
func EmptyPlan() *Plan {
	return &Plan{Empty: true}
}

// Hit is one raw engine match: either a record entry or a page sub-document.
type Hit struct {
	// ID is the engine-level entry id (DocID for records, DocID + page suffix
	// for pages).
	ID string

	// Score is the engine relevance score for this entry.
	Score float64

	// Kind discriminates record hits from page hits.
	Kind string

	// DocID is the owning document id (equals ID for record hits).
	DocID string

	// PageNumber is set for page hits.
	PageNumber int

	// Fields holds the stored field values for this entry. Dotted keys appear
	// for flattened sub-objects (flatData.invoice.number).
	Fields map[string]any

	// Fragments maps highlighted field name to its highlight fragments.
	Fragments map[string][]string
}

// FieldString returns a stored field as a string, or empty when absent.
func (h *Hit) FieldString(name string) string {
	if v, ok := h.Fields[name].(string); ok {
		return v
	}
	return ""
}
