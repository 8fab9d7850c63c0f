// Package store provides the primary record store for paperdex: the
// source-of-truth persistence for folders, uploaded files, and OCR text
// records. The search subsystem reads from it during index rebuilds; it never
// derives authoritative data from the index itself.
package store

import (
	"context"
	"time"
)

// RecordType discriminates the three source record variants.
type RecordType string

const (
	RecordTypeOCR    RecordType = "ocr"
	RecordTypeFile   RecordType = "file"
	RecordTypeFolder RecordType = "folder"
)

// Page is one logical page of extracted document text.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// Folder is a user-created folder record.
type Folder struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}

// File is an uploaded-file record with optional nested metadata and data
// objects. The nested objects have no fixed schema; they are decoded from JSON
// into generic maps and flattened at index time.
type File struct {
	ID        string
	TenantID  string
	FolderID  string // empty means root
	Name      string
	Metadata  map[string]any
	Data      map[string]any
	CreatedAt time.Time
}

// OCRRecord holds text extracted from a scanned document. Pages carries the
// explicit page structure when the OCR tool produced one; otherwise
// ExtractedText holds the flat text.
type OCRRecord struct {
	ID            string
	TenantID      string
	FolderID      string // owning folder, empty means root
	FileName      string
	ExtractedText string
	Pages         []Page
	CreatedAt     time.Time
}

// RecordStore is the persistence interface for source records.
// List operations return records across all tenants: the index is a single
// shared index partitioned by tenant id, so a rebuild pass covers everything.
type RecordStore interface {
	SaveFolder(ctx context.Context, f *Folder) error
	GetFolder(ctx context.Context, id string) (*Folder, error)
	ListFolders(ctx context.Context) ([]*Folder, error)
	DeleteFolder(ctx context.Context, id string) error

	SaveFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id string) (*File, error)
	ListFiles(ctx context.Context) ([]*File, error)
	DeleteFile(ctx context.Context, id string) error

	SaveOCRRecord(ctx context.Context, r *OCRRecord) error
	GetOCRRecord(ctx context.Context, id string) (*OCRRecord, error)
	ListOCRRecords(ctx context.Context) ([]*OCRRecord, error)
	DeleteOCRRecord(ctx context.Context, id string) error

	Close() error
}
