package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/index"
)

func parentHit(docID string, score float64) *engine.Hit {
	return &engine.Hit{
		ID:    docID,
		Score: score,
		Kind:  index.KindRecord,
		DocID: docID,
		Fields: map[string]any{
			"name":       "invoice.pdf",
			"folderName": "Invoices",
			"docType":    "file",
			"createdAt":  "2026-01-15T10:00:00Z",
		},
		Fragments: map[string][]string{},
	}
}

func pageHit(docID string, page int, score float64, fragments ...string) *engine.Hit {
	hit := &engine.Hit{
		ID:         engine.PageID(docID, page),
		Score:      score,
		Kind:       index.KindPage,
		DocID:      docID,
		PageNumber: page,
		Fields: map[string]any{
			"name":       "invoice.pdf",
			"folderName": "Invoices",
			"docType":    "file",
			"createdAt":  "2026-01-15T10:00:00Z",
			"text":       "total due 500 rupees payable on receipt",
		},
		Fragments: map[string][]string{},
	}
	if len(fragments) > 0 {
		hit.Fragments["text"] = fragments
	}
	return hit
}

func TestAssemble_GroupsPagesUnderParent(t *testing.T) {
	// Given a parent hit and two page hits for the same document
	hits := []*engine.Hit{
		parentHit("d1", 2.0),
		pageHit("d1", 1, 3.0, "<mark>total</mark> due"),
		pageHit("d1", 2, 1.0, "the <mark>total</mark> again"),
	}

	// When assembling
	results := Assemble(hits, 5)

	// Then one result carries both page locations in page order
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, "invoice.pdf", results[0].FileName)
	require.Len(t, results[0].Locations, 2)
	assert.Equal(t, "Found on page 1", results[0].Locations[0].Description)
	assert.Equal(t, "Found on page 2", results[0].Locations[1].Description)
	assert.InDelta(t, 6.0, results[0].score, 0.001)
}

func TestAssemble_PageOnlyMatchUsesStoredDisplayFields(t *testing.T) {
	// Given a page hit with no parent hit
	results := Assemble([]*engine.Hit{pageHit("d1", 1, 1.0, "<mark>total</mark>")}, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "invoice.pdf", results[0].FileName)
	assert.Equal(t, "Invoices", results[0].FolderName)
	assert.Equal(t, "file", results[0].DocType)
}

func TestAssemble_FallbackExcerptWhenNoFragment(t *testing.T) {
	// Given a page that matched without a computed highlight
	results := Assemble([]*engine.Hit{pageHit("d1", 1, 1.0)}, 5)

	// Then the location still appears with a plain excerpt
	require.Len(t, results, 1)
	require.Len(t, results[0].Locations, 1)
	loc := results[0].Locations[0]
	assert.Equal(t, LocationContent, loc.Type)
	assert.Equal(t, "Found on page 1", loc.Description)
	assert.Contains(t, loc.Snippet, "total due 500")
}

func TestAssemble_LongFallbackExcerptTruncated(t *testing.T) {
	hit := pageHit("d1", 1, 1.0)
	long := ""
	for i := 0; i < 30; i++ {
		long += "lengthy page "
	}
	hit.Fields["text"] = long

	results := Assemble([]*engine.Hit{hit}, 5)

	require.Len(t, results, 1)
	snippet := results[0].Locations[0].Snippet
	assert.LessOrEqual(t, len(snippet), excerptLimit+3)
	assert.True(t, len(snippet) > 3 && snippet[len(snippet)-3:] == "...")
}

func TestAssemble_CapsPageLocations(t *testing.T) {
	// Given more matching pages than the per-document cap
	hits := []*engine.Hit{}
	for p := 1; p <= 8; p++ {
		hits = append(hits, pageHit("d1", p, 1.0, "<mark>total</mark>"))
	}

	results := Assemble(hits, 5)

	require.Len(t, results, 1)
	assert.Len(t, results[0].Locations, 5)
}

func TestAssemble_ContentBeforeMetadata(t *testing.T) {
	// Given a parent with a name highlight and a matching page
	parent := parentHit("d1", 2.0)
	parent.Fragments["name"] = []string{"<mark>invoice</mark>.pdf"}
	hits := []*engine.Hit{parent, pageHit("d1", 1, 1.0, "<mark>invoice</mark> total")}

	results := Assemble(hits, 5)

	// Then content locations precede metadata locations
	require.Len(t, results, 1)
	require.Len(t, results[0].Locations, 2)
	assert.Equal(t, LocationContent, results[0].Locations[0].Type)
	assert.Equal(t, LocationMetadata, results[0].Locations[1].Type)
	assert.Equal(t, "Found in file name", results[0].Locations[1].Description)
}

func TestAssemble_MetadataAttribution(t *testing.T) {
	// Given a data-surface highlight whose term appears in one stored field
	parent := parentHit("d1", 2.0)
	parent.Fields["flatData.invoice.amount"] = "500"
	parent.Fields["flatData.invoice.currency"] = "INR"
	parent.Fragments["dataText"] = []string{"<mark>500</mark> INR"}

	results := Assemble([]*engine.Hit{parent}, 5)

	// Then the location names the original dotted key
	require.Len(t, results, 1)
	require.Len(t, results[0].Locations, 1)
	assert.Equal(t, "Found in invoice.amount", results[0].Locations[0].Description)
}

func TestAssemble_UnmarkedFragmentsProduceNoLocations(t *testing.T) {
	// Given a hit whose requested highlight fields came back without any
	// highlighted term: an unmarked prefix of the name and empty catch-alls
	parent := parentHit("d1", 1.0)
	parent.Fragments["name"] = []string{"invoice.pdf"}
	parent.Fragments["dataText"] = []string{""}
	parent.Fragments["metaText"] = []string{""}

	// When assembling
	results := Assemble([]*engine.Hit{parent}, 5)

	// Then none of them becomes a location
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Locations)
}

func TestAssemble_FirstMarkedFragmentWins(t *testing.T) {
	// Given a field whose first fragment is unmarked filler
	parent := parentHit("d1", 1.0)
	parent.Fragments["name"] = []string{"invoice.pdf", "<mark>invoice</mark>.pdf"}

	results := Assemble([]*engine.Hit{parent}, 5)

	require.Len(t, results, 1)
	require.Len(t, results[0].Locations, 1)
	assert.Equal(t, "<mark>invoice</mark>.pdf", results[0].Locations[0].Snippet)
}

func TestAssemble_UnmarkedPageFragmentFallsBackToExcerpt(t *testing.T) {
	// Given a page hit whose only text fragment carries no highlighted term
	hit := pageHit("d1", 1, 1.0, "total due 500 rupees")

	results := Assemble([]*engine.Hit{hit}, 5)

	// Then the location is the plain excerpt, not the unmarked fragment
	require.Len(t, results, 1)
	require.Len(t, results[0].Locations, 1)
	assert.Contains(t, results[0].Locations[0].Snippet, "total due 500")
	assert.Equal(t, "Found on page 1", results[0].Locations[0].Description)
}

func TestAssemble_MetadataAttributionFallsBack(t *testing.T) {
	parent := parentHit("d1", 2.0)
	parent.Fragments["metaText"] = []string{"<mark>priya</mark>"}

	results := Assemble([]*engine.Hit{parent}, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "Found in metadata", results[0].Locations[0].Description)
}

func TestAssemble_FolderNameDefaultsToRoot(t *testing.T) {
	parent := parentHit("d1", 1.0)
	parent.Fields["folderName"] = ""

	results := Assemble([]*engine.Hit{parent}, 5)

	require.Len(t, results, 1)
	assert.Equal(t, index.FolderNameRoot, results[0].FolderName)
}

func TestAssemble_OrdersByScoreThenRecencyThenID(t *testing.T) {
	// Given three documents, two tied on score with different ages
	newer := parentHit("d-newer", 1.0)
	newer.Fields["createdAt"] = "2026-02-01T00:00:00Z"
	older := parentHit("d-older", 1.0)
	older.Fields["createdAt"] = "2026-01-01T00:00:00Z"
	top := parentHit("d-top", 9.0)

	results := Assemble([]*engine.Hit{older, newer, top}, 5)

	require.Len(t, results, 3)
	assert.Equal(t, "d-top", results[0].ID)
	assert.Equal(t, "d-newer", results[1].ID)
	assert.Equal(t, "d-older", results[2].ID)
}

func TestAssemble_EmptyInput(t *testing.T) {
	assert.Empty(t, Assemble(nil, 5))
}
