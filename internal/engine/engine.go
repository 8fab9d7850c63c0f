// Package engine wraps Bleve v2 as the full-text index and query engine.
// Each canonical document is written as one record entry plus one page entry
// per page, so page text is queryable as an independent sub-document.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/paperdex/paperdex/internal/index"
)

// pageIDSeparator joins a document id and a page number into a page entry id.
const pageIDSeparator = "#p"

// Index wraps a Bleve index for document upserts and composed queries.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// New opens the index at path, creating it with the structural mapping if it
// does not exist. An empty path creates an in-memory index for testing.
func New(path string) (*Index, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Index{index: idx, path: path}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(index.BuildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return idx, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, index.BuildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return idx, nil
}

// Reset drops the entire index and recreates it empty with the current
// mapping. This is the delete-and-recreate leg of a full rebuild.
func (e *Index) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("index is closed")
	}

	if err := e.index.Close(); err != nil {
		return fmt.Errorf("failed to close index for reset: %w", err)
	}
	if e.path != "" {
		if err := os.RemoveAll(e.path); err != nil {
			return fmt.Errorf("failed to remove index at %s: %w", e.path, err)
		}
	}

	idx, err := openOrCreate(e.path)
	if err != nil {
		return err
	}
	e.index = idx
	return nil
}

// Upsert writes a document, replacing any prior entry with the same DocID.
// Stale page entries from a previous version are removed in the same batch,
// so re-indexing a shrunk document never leaves orphan pages behind.
func (e *Index) Upsert(ctx context.Context, doc *index.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("index is closed")
	}

	stale, err := e.childIDs(doc.DocID)
	if err != nil {
		return fmt.Errorf("failed to find stale pages for %s: %w", doc.DocID, err)
	}

	batch := e.index.NewBatch()
	for _, id := range stale {
		batch.Delete(id)
	}

	if err := batch.Index(doc.DocID, recordEntry(doc)); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.DocID, err)
	}
	for _, page := range doc.Pages {
		id := PageID(doc.DocID, page.Number)
		if err := batch.Index(id, pageEntry(doc, page)); err != nil {
			return fmt.Errorf("failed to index page %s: %w", id, err)
		}
	}

	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete removes a document and all of its page entries.
func (e *Index) Delete(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("index is closed")
	}

	children, err := e.childIDs(docID)
	if err != nil {
		return fmt.Errorf("failed to find pages for %s: %w", docID, err)
	}

	batch := e.index.NewBatch()
	batch.Delete(docID)
	for _, id := range children {
		batch.Delete(id)
	}

	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete %s: %w", docID, err)
	}
	return nil
}

// DocIDs returns the ids of all record entries (page entries excluded).
// Used to diff the index against the record store during incremental sync.
func (e *Index) DocIDs(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, fmt.Errorf("index is closed")
	}

	q := bleve.NewTermQuery(index.KindRecord)
	q.SetField("kind")

	count, err := e.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count index entries: %w", err)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = int(count)
	req.Fields = []string{}

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search executes a planned query and returns raw hits with stored fields and
// highlight fragments. An empty plan yields no hits without touching Bleve.
func (e *Index) Search(ctx context.Context, plan *Plan, size int) ([]*Hit, error) {
	if plan == nil || plan.Empty {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, fmt.Errorf("index is closed")
	}

	req := bleve.NewSearchRequest(plan.Query)
	req.Size = size
	req.Fields = []string{"*"}
	if len(plan.Highlight) > 0 {
		highlight := bleve.NewHighlightWithStyle("html")
		for _, field := range plan.Highlight {
			highlight.AddField(field)
		}
		req.Highlight = highlight
	}

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]*Hit, 0, len(result.Hits))
	for _, match := range result.Hits {
		hit := &Hit{
			ID:        match.ID,
			Score:     match.Score,
			Fields:    match.Fields,
			Fragments: match.Fragments,
		}
		hit.Kind, _ = match.Fields["kind"].(string)
		hit.DocID = hit.FieldString("docId")
		if hit.DocID == "" {
			hit.DocID = match.ID
		}
		if n, ok := match.Fields["pageNumber"].(float64); ok {
			hit.PageNumber = int(n)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of record entries in the index.
func (e *Index) Count(ctx context.Context) (int, error) {
	ids, err := e.DocIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Close closes the index.
func (e *Index) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}

// childIDs lists the page entry ids for a document.
// Caller must hold the mutex.
func (e *Index) childIDs(docID string) ([]string, error) {
	kindQ := bleve.NewTermQuery(index.KindPage)
	kindQ.SetField("kind")
	docQ := bleve.NewTermQuery(docID)
	docQ.SetField("docId")

	q := bleve.NewConjunctionQuery(kindQ, docQ)
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	req.Fields = []string{}

	result, err := e.index.Search(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// PageID builds the engine-level id for one page of a document.
func PageID(docID string, pageNumber int) string {
	return docID + pageIDSeparator + strconv.Itoa(pageNumber)
}

// recordEntry builds the engine representation of the document itself.
func recordEntry(doc *index.Document) map[string]any {
	entry := map[string]any{
		"kind":          index.KindRecord,
		"tenantId":      doc.TenantID,
		"docId":         doc.DocID,
		"docType":       doc.DocType,
		"folderId":      doc.FolderID,
		"folderName":    doc.FolderName,
		"name":          doc.Name,
		"nameExact":     doc.Name,
		"dataText":      joinValues(doc.FlatData),
		"metaText":      joinValues(doc.FlatMeta),
		"aggregateText": doc.AggregateText,
		"createdAt":     doc.CreatedAt,
	}
	if len(doc.FlatData) > 0 {
		entry["flatData"] = doc.FlatData
	}
	if len(doc.FlatMeta) > 0 {
		entry["flatMeta"] = doc.FlatMeta
	}
	return entry
}

// pageEntry builds the engine representation of one page sub-document.
// The parent's display fields are carried along stored-only so a page hit can
// be rendered without fetching the record entry.
func pageEntry(doc *index.Document, page index.Page) map[string]any {
	return map[string]any{
		"kind":       index.KindPage,
		"tenantId":   doc.TenantID,
		"docId":      doc.DocID,
		"pageNumber": page.Number,
		"text":       page.Text,
		"exact":      index.Truncate(page.Text, index.ExactTextLimit),
		"name":       doc.Name,
		"folderName": doc.FolderName,
		"docType":    doc.DocType,
		"createdAt":  doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// joinValues flattens a dotted-path map into one analyzed text surface, in
// key order for determinism.
func joinValues(flat map[string]string) string {
	if len(flat) == 0 {
		return ""
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(flat[k]); v != "" {
			parts = append(parts, flat[k])
		}
	}
	return strings.Join(parts, " ")
}
