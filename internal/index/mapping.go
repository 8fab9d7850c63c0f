package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Engine document kinds. Each Document is written as one record entry plus one
// page entry per page; pages are independent sub-documents so a phrase match
// is scoped to a single page's text and cannot span pages.
const (
	KindRecord = "record"
	KindPage   = "page"
)

// ExactTextLimit bounds the exact (keyword) sub-field of page text. Keyword
// terms are stored verbatim, so an unbounded value would blow up term
// cardinality on large pages.
const ExactTextLimit = 256

// BuildIndexMapping returns the structural mapping for the search index.
//
// The record mapping keeps flatData/flatMeta dynamic (arbitrary dotted keys
// become text fields) and adds explicit keyword fields for the identifiers.
// name is searchable both analyzed (name) and as an exact token (nameExact).
// The page mapping is closed: only tenantId/docId/pageNumber/text/exact are
// indexed, while the parent's display fields are stored unindexed so a page
// hit can be rendered without a second lookup.
func BuildIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.TypeField = "kind"
	im.DefaultAnalyzer = standard.Name

	im.AddDocumentMapping(KindRecord, recordMapping())
	im.AddDocumentMapping(KindPage, pageMapping())

	return im
}

func recordMapping() *mapping.DocumentMapping {
	dm := bleve.NewDocumentMapping()

	dm.AddFieldMappingsAt("kind", keywordField())
	dm.AddFieldMappingsAt("tenantId", keywordField())
	dm.AddFieldMappingsAt("docId", keywordField())
	dm.AddFieldMappingsAt("docType", keywordField())
	dm.AddFieldMappingsAt("folderId", keywordField())
	dm.AddFieldMappingsAt("folderName", storedOnlyField())

	dm.AddFieldMappingsAt("name", textField())
	dm.AddFieldMappingsAt("nameExact", keywordField())

	dm.AddFieldMappingsAt("dataText", textField())
	dm.AddFieldMappingsAt("metaText", textField())
	dm.AddFieldMappingsAt("aggregateText", textField())

	dm.AddFieldMappingsAt("createdAt", dateField())

	return dm
}

func pageMapping() *mapping.DocumentMapping {
	dm := bleve.NewDocumentMapping()
	dm.Dynamic = false

	dm.AddFieldMappingsAt("kind", keywordField())
	dm.AddFieldMappingsAt("tenantId", keywordField())
	dm.AddFieldMappingsAt("docId", keywordField())
	dm.AddFieldMappingsAt("pageNumber", numericField())
	dm.AddFieldMappingsAt("text", textField())
	dm.AddFieldMappingsAt("exact", keywordField())

	// Parent display fields, stored for result assembly but not indexed:
	// indexing them here would let record-level clauses match page entries.
	dm.AddFieldMappingsAt("name", storedOnlyField())
	dm.AddFieldMappingsAt("folderName", storedOnlyField())
	dm.AddFieldMappingsAt("docType", storedOnlyField())
	dm.AddFieldMappingsAt("createdAt", storedOnlyField())

	return dm
}

func textField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = standard.Name
	return fm
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	return fm
}

func storedOnlyField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Index = false
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func numericField() *mapping.FieldMapping {
	return bleve.NewNumericFieldMapping()
}

func dateField() *mapping.FieldMapping {
	return bleve.NewDateTimeFieldMapping()
}

// Truncate bounds s to the exact-field limit without splitting a UTF-8 rune.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit]
}
