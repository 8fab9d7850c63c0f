package index

import (
	"strings"
	"time"
)

// FolderSet maps folder id to folder name for denormalization at index time.
// The manager builds it once per pass instead of one lookup per record.
type FolderSet map[string]string

// Normalize converts a source record into the canonical Document shape.
// It is a pure function and total: malformed nested objects degrade to
// stringified leaves rather than failing, and missing fields produce empty
// values rather than errors.
func Normalize(rec SourceRecord, folders FolderSet) *Document {
	doc := &Document{
		TenantID:  rec.TenantID,
		DocID:     rec.ID,
		DocType:   string(rec.Type),
		FolderID:  rec.FolderID,
		Name:      rec.Name,
		FlatData:  Flatten(FromMap(rec.Data)),
		FlatMeta:  Flatten(FromMap(rec.Metadata)),
		CreatedAt: rec.CreatedAt,
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	doc.FolderName = resolveFolder(rec.FolderID, folders)
	doc.Pages = extractPages(rec, doc.FlatData)
	doc.AggregateText = aggregateText(doc, rawText(rec, doc.FlatData))

	return doc
}

// resolveFolder denormalizes a folder id against the current folder set.
func resolveFolder(folderID string, folders FolderSet) string {
	if folderID == "" {
		return FolderNameRoot
	}
	if name, ok := folders[folderID]; ok {
		return name
	}
	return FolderNameUnknown
}

// extractPages prefers explicit page structure; otherwise it synthesizes a
// single page from the best available flat-text field, but only when that
// text is non-empty after trimming.
func extractPages(rec SourceRecord, flatData map[string]string) []Page {
	if len(rec.Pages) > 0 {
		pages := make([]Page, 0, len(rec.Pages))
		for _, p := range rec.Pages {
			pages = append(pages, Page{Number: p.PageNumber, Text: p.Text})
		}
		return pages
	}

	text := bestText(rec, flatData)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Page{{Number: 1, Text: text}}
}

// bestText picks the flat-text field to synthesize a page from:
// the record's own extracted text first, then extractedText and text fields
// carried inside the nested data object.
func bestText(rec SourceRecord, flatData map[string]string) string {
	if rec.Text != "" {
		return rec.Text
	}
	if t := flatData["extractedText"]; t != "" {
		return t
	}
	return flatData["text"]
}

// rawText is the pre-flatten text content used in the aggregate surface:
// explicit pages joined in order, or the flat text.
func rawText(rec SourceRecord, flatData map[string]string) string {
	if len(rec.Pages) > 0 {
		parts := make([]string, 0, len(rec.Pages))
		for _, p := range rec.Pages {
			if strings.TrimSpace(p.Text) != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	}
	return bestText(rec, flatData)
}

// aggregateText builds the fallback search surface. Construction order is
// significant for relevance: title first, then raw content, then flattened
// data, then flattened metadata. Empty parts are dropped.
func aggregateText(doc *Document, raw string) string {
	parts := make([]string, 0, 2+len(doc.FlatData)+len(doc.FlatMeta))

	if strings.TrimSpace(doc.Name) != "" {
		parts = append(parts, doc.Name)
	}
	if strings.TrimSpace(raw) != "" {
		parts = append(parts, raw)
	}
	for _, v := range sortedValues(doc.FlatData) {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	for _, v := range sortedValues(doc.FlatMeta) {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}

	return strings.Join(parts, " ")
}
