package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/index"
	"github.com/paperdex/paperdex/internal/store"
)

func newFixture(t *testing.T) (*engine.Index, *Service) {
	t.Helper()
	idx, err := engine.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	svc, err := NewService(idx, slog.New(slog.DiscardHandler), DefaultOptions())
	require.NoError(t, err)
	return idx, svc
}

func indexFile(t *testing.T, idx *engine.Index, tenant, id, name string, data, meta map[string]any) {
	t.Helper()
	doc := index.Normalize(index.SourceFromFile(&store.File{
		ID:        id,
		TenantID:  tenant,
		Name:      name,
		Metadata:  meta,
		Data:      data,
		CreatedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}), index.FolderSet{})
	require.NoError(t, idx.Upsert(context.Background(), doc))
}

func indexOCR(t *testing.T, idx *engine.Index, tenant, id, name, text string, pages ...store.Page) {
	t.Helper()
	doc := index.Normalize(index.SourceFromOCR(&store.OCRRecord{
		ID:            id,
		TenantID:      tenant,
		FileName:      name,
		ExtractedText: text,
		Pages:         pages,
		CreatedAt:     time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}), index.FolderSet{})
	require.NoError(t, idx.Upsert(context.Background(), doc))
}

func contentLocationCount(res Result) int {
	n := 0
	for _, loc := range res.Locations {
		if loc.Type == LocationContent {
			n++
		}
	}
	return n
}

func TestSearch_InvoiceScenario(t *testing.T) {
	// Given one file for tenant u1 with extracted text
	idx, svc := newFixture(t)
	indexFile(t, idx, "u1", "doc1", "Invoice_Jan.pdf",
		map[string]any{"extractedText": "Total due: 500 INR"}, nil)

	// When u1 searches for the phrase
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "Total due"})

	// Then exactly that document matches with a page-1 content location
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Total)
	res := resp.Results[0]
	assert.Equal(t, "doc1", res.ID)
	assert.Equal(t, "Invoice_Jan.pdf", res.FileName)

	require.NotEmpty(t, res.Locations)
	first := res.Locations[0]
	assert.Equal(t, LocationContent, first.Type)
	assert.Contains(t, first.Description, "page 1")
	assert.Contains(t, first.Snippet, "Total")
	assert.Contains(t, first.Snippet, "due")
}

func TestSearch_OtherTenantSeesNothing(t *testing.T) {
	// Given the same invoice indexed for u1 only
	idx, svc := newFixture(t)
	indexFile(t, idx, "u1", "doc1", "Invoice_Jan.pdf",
		map[string]any{"extractedText": "Total due: 500 INR"}, nil)

	// When u2 runs the identical query
	resp := svc.Search(context.Background(), Request{TenantID: "u2", Query: "Total due"})

	// Then nothing leaks across the tenant boundary
	require.True(t, resp.Success)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Results)
}

func TestSearch_TenantIsolationWithIdenticalContent(t *testing.T) {
	// Given two tenants holding byte-identical documents
	idx, svc := newFixture(t)
	indexOCR(t, idx, "tenant-a", "a1", "shared.pdf", "confidential quarterly figures")
	indexOCR(t, idx, "tenant-b", "b1", "shared.pdf", "confidential quarterly figures")

	// When each tenant searches
	respA := svc.Search(context.Background(), Request{TenantID: "tenant-a", Query: "confidential"})
	respB := svc.Search(context.Background(), Request{TenantID: "tenant-b", Query: "confidential"})

	// Then each sees only its own copy
	require.Equal(t, 1, respA.Total)
	assert.Equal(t, "a1", respA.Results[0].ID)
	require.Equal(t, 1, respB.Total)
	assert.Equal(t, "b1", respB.Results[0].ID)
}

func TestSearch_PhraseDoesNotSpanPages(t *testing.T) {
	// Given a document with "alpha" on page 1 and "beta" on page 2
	idx, svc := newFixture(t)
	indexOCR(t, idx, "u1", "doc1", "pages.pdf", "",
		store.Page{PageNumber: 1, Text: "alpha"},
		store.Page{PageNumber: 2, Text: "beta"})

	// When searching for the cross-page phrase
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "alpha beta"})

	// Then no page-content location is produced for it
	require.True(t, resp.Success)
	for _, res := range resp.Results {
		assert.Zero(t, contentLocationCount(res),
			"cross-page phrase must not yield page-content matches")
	}

	// And each word alone matches its own page
	respAlpha := svc.Search(context.Background(), Request{TenantID: "u1", Query: "alpha"})
	require.Equal(t, 1, respAlpha.Total)
	require.GreaterOrEqual(t, contentLocationCount(respAlpha.Results[0]), 1)
	assert.Contains(t, respAlpha.Results[0].Locations[0].Description, "page 1")

	respBeta := svc.Search(context.Background(), Request{TenantID: "u1", Query: "beta"})
	require.Equal(t, 1, respBeta.Total)
	assert.Contains(t, respBeta.Results[0].Locations[0].Description, "page 2")
}

func TestSearch_PhraseBeatsNearMiss(t *testing.T) {
	// Given a near-miss title and an exact-phrase title
	idx, svc := newFixture(t)
	indexOCR(t, idx, "u1", "near", "Criminal Report", "case file contents")
	indexOCR(t, idx, "u1", "exact", "Critical Report", "incident contents")

	// When searching for the exact phrase
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "Critical Report"})

	// Then the phrase match ranks first and the near miss still surfaces
	require.True(t, resp.Success)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "exact", resp.Results[0].ID)
	assert.Equal(t, "near", resp.Results[1].ID)
}

func TestSearch_UpsertReplacesNotDuplicates(t *testing.T) {
	// Given a document re-indexed with changed text
	idx, svc := newFixture(t)
	indexOCR(t, idx, "u1", "doc1", "notes.pdf", "old silver content")
	indexOCR(t, idx, "u1", "doc1", "notes.pdf", "new golden content")

	// When searching for the new and old text
	fresh := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})
	stale := svc.Search(context.Background(), Request{TenantID: "u1", Query: "silver"})

	// Then exactly one result exists for the new text and none for the old
	assert.Equal(t, 1, fresh.Total)
	assert.Zero(t, stale.Total)
}

func TestSearch_BlankQueryIsValidEmptyResult(t *testing.T) {
	_, svc := newFixture(t)

	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "   "})

	assert.True(t, resp.Success)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Error)
}

func TestSearch_MissingTenantFailsClosed(t *testing.T) {
	_, svc := newFixture(t)

	resp := svc.Search(context.Background(), Request{Query: "anything"})

	assert.False(t, resp.Success)
	assert.Zero(t, resp.Total)
	assert.NotEmpty(t, resp.Error)
}

func TestSearch_MetadataMatchReportsDottedKey(t *testing.T) {
	// Given a file whose nested metadata holds the matching value
	idx, svc := newFixture(t)
	indexFile(t, idx, "u1", "doc1", "contract.pdf", nil,
		map[string]any{"review": map[string]any{"owner": "priya"}})

	// When searching for that value
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "priya"})

	// Then a metadata location names the flattened key
	require.Equal(t, 1, resp.Total)
	require.NotEmpty(t, resp.Results[0].Locations)
	var meta *Location
	for i := range resp.Results[0].Locations {
		if resp.Results[0].Locations[i].Type == LocationMetadata {
			meta = &resp.Results[0].Locations[i]
			break
		}
	}
	require.NotNil(t, meta)
	assert.Equal(t, "Found in review.owner", meta.Description)
	assert.Contains(t, meta.Snippet, "priya")
}

func TestSearch_CompleteLocationListFromEngine(t *testing.T) {
	// Given the invoice indexed through the real engine
	idx, svc := newFixture(t)
	indexFile(t, idx, "u1", "doc1", "Invoice_Jan.pdf",
		map[string]any{"extractedText": "Total due: 500 INR"}, nil)

	// When searching for the phrase
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "Total due"})

	// Then the location list is exactly the page match plus the data-field
	// match: the name and metadata surfaces did not match and contribute
	// nothing, even though the engine returns fragments for them
	require.Equal(t, 1, resp.Total)
	locs := resp.Results[0].Locations
	require.Len(t, locs, 2)

	assert.Equal(t, LocationContent, locs[0].Type)
	assert.Equal(t, "Found on page 1", locs[0].Description)
	assert.Contains(t, locs[0].Snippet, "<mark>")

	assert.Equal(t, LocationMetadata, locs[1].Type)
	assert.Equal(t, "Found in extractedText", locs[1].Description)
	assert.Contains(t, locs[1].Snippet, "<mark>")

	for _, loc := range locs {
		assert.NotEmpty(t, loc.Snippet)
	}
}

func TestSearch_FuzzyFallbackMatchHasNoEmptyLocations(t *testing.T) {
	// Given a document that a typo query reaches only through the
	// aggregate fallback surface
	idx, svc := newFixture(t)
	indexOCR(t, idx, "u1", "doc1", "notes.pdf", "golden content")

	// When searching with the typo
	resp := svc.Search(context.Background(), Request{TenantID: "u1", Query: "goldan"})

	// Then the document is found and no unmarked or empty snippet leaks in
	require.Equal(t, 1, resp.Total)
	for _, loc := range resp.Results[0].Locations {
		assert.NotEmpty(t, loc.Snippet)
		assert.Contains(t, loc.Snippet, "<mark>")
	}
}

func TestSearch_CacheDisabled(t *testing.T) {
	// Given a service with response caching turned off
	idx, err := engine.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	opts := DefaultOptions()
	opts.CacheSize = 0
	svc, err := NewService(idx, slog.New(slog.DiscardHandler), opts)
	require.NoError(t, err)

	indexOCR(t, idx, "u1", "doc1", "notes.pdf", "golden content")
	first := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})
	require.Equal(t, 1, first.Total)

	// When the index changes between identical queries
	require.NoError(t, idx.Delete(context.Background(), "doc1"))
	second := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})

	// Then the second query sees the change immediately
	assert.Zero(t, second.Total)
}

func TestSearch_CachedUntilInvalidated(t *testing.T) {
	// Given a cached search result
	idx, svc := newFixture(t)
	indexOCR(t, idx, "u1", "doc1", "notes.pdf", "golden content")
	first := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})
	require.Equal(t, 1, first.Total)

	// When the document is removed without invalidating
	require.NoError(t, idx.Delete(context.Background(), "doc1"))
	cached := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})

	// Then the stale cached response is served until the cache is purged
	assert.Equal(t, 1, cached.Total)

	svc.InvalidateCache()
	refreshed := svc.Search(context.Background(), Request{TenantID: "u1", Query: "golden"})
	assert.Zero(t, refreshed.Total)
}
