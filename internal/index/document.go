// Package index provides the canonical indexable document model, the schema
// normalizer that produces it from heterogeneous source records, and the index
// manager that owns the index lifecycle.
package index

import (
	"time"

	"github.com/paperdex/paperdex/internal/store"
)

// Well-known folder names used when denormalizing folder ids.
const (
	// FolderNameRoot is used when a record has no owning folder.
	FolderNameRoot = "Root"
	// FolderNameUnknown is used when a folder id fails to resolve.
	FolderNameUnknown = "Unknown Folder"
)

// Page is one logical page of a document's text.
type Page struct {
	Number int
	Text   string
}

// Document is the canonical, flattened, searchable representation of one
// source record. For a fixed DocID at most one Document exists in the index
// at any time; re-indexing the same source record overwrites the prior entry.
type Document struct {
	// TenantID is the hard partition key. It is always copied from the
	// authoritative source record field, never inferred from content, and
	// never changes after creation.
	TenantID string

	// DocID equals the source record's identifier.
	DocID string

	// DocType names the source record variant ("ocr", "file", "folder").
	DocType string

	FolderID   string
	FolderName string

	// Name is the display title, searchable as free text and as an exact token.
	Name string

	// Pages holds one entry per logical page. Empty source text yields zero
	// pages, never a page with empty text.
	Pages []Page

	// FlatData and FlatMeta map dotted paths to stringified leaf values,
	// produced by recursively flattening the record's nested data/metadata.
	FlatData map[string]string
	FlatMeta map[string]string

	// AggregateText is the low-priority fallback search surface: name, raw
	// text, flattened data values, flattened metadata values, space-joined.
	AggregateText string

	CreatedAt time.Time
}

// SourceRecord is the normalizer's uniform view over the three source record
// variants. The store types convert themselves into it; the normalizer never
// touches the store directly.
type SourceRecord struct {
	ID        string
	Type      store.RecordType
	TenantID  string
	FolderID  string
	Name      string
	Pages     []store.Page
	Text      string // flat extracted text, preferred over nested data fields
	Metadata  map[string]any
	Data      map[string]any
	CreatedAt time.Time
}

// SourceFromFolder converts a folder record.
func SourceFromFolder(f *store.Folder) SourceRecord {
	return SourceRecord{
		ID:        f.ID,
		Type:      store.RecordTypeFolder,
		TenantID:  f.TenantID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
	}
}

// SourceFromFile converts an uploaded-file record.
func SourceFromFile(f *store.File) SourceRecord {
	return SourceRecord{
		ID:        f.ID,
		Type:      store.RecordTypeFile,
		TenantID:  f.TenantID,
		FolderID:  f.FolderID,
		Name:      f.Name,
		Metadata:  f.Metadata,
		Data:      f.Data,
		CreatedAt: f.CreatedAt,
	}
}

// SourceFromOCR converts an OCR text record.
func SourceFromOCR(r *store.OCRRecord) SourceRecord {
	return SourceRecord{
		ID:        r.ID,
		Type:      store.RecordTypeOCR,
		TenantID:  r.TenantID,
		FolderID:  r.FolderID,
		Name:      r.FileName,
		Pages:     r.Pages,
		Text:      r.ExtractedText,
		CreatedAt: r.CreatedAt,
	}
}
