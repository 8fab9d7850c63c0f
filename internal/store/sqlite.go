package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements RecordStore on SQLite.
// Nested metadata/data objects and page arrays are stored as JSON columns;
// timestamps are stored as RFC3339 strings.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Verify interface implementation at compile time
var _ RecordStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	folder_id  TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	metadata   TEXT,
	data       TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ocr_records (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	folder_id      TEXT NOT NULL DEFAULT '',
	file_name      TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	pages          TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_folders_tenant ON folders(tenant_id);
CREATE INDEX IF NOT EXISTS idx_files_tenant   ON files(tenant_id);
CREATE INDEX IF NOT EXISTS idx_ocr_tenant     ON ocr_records(tenant_id);
`

// NewSQLiteStore opens (or creates) a SQLite record store at path.
// If path is empty, an in-memory store is created for testing.
// Uses WAL mode and a single-writer connection pool.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	if path != "" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveFolder inserts or replaces a folder record.
func (s *SQLiteStore) SaveFolder(ctx context.Context, f *Folder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO folders (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.TenantID, f.Name, f.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save folder %s: %w", f.ID, err)
	}
	return nil
}

// GetFolder fetches a folder by id. Returns sql.ErrNoRows if absent.
func (s *SQLiteStore) GetFolder(ctx context.Context, id string) (*Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM folders WHERE id = ?`, id)

	var f Folder
	var createdAt string
	if err := row.Scan(&f.ID, &f.TenantID, &f.Name, &createdAt); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

// ListFolders returns all folders across all tenants.
func (s *SQLiteStore) ListFolders(ctx context.Context) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM folders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var f Folder
		var createdAt string
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Name, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTime(createdAt)
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

// DeleteFolder removes a folder record.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	return err
}

// SaveFile inserts or replaces a file record.
func (s *SQLiteStore) SaveFile(ctx context.Context, f *File) error {
	meta, err := marshalJSON(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", f.ID, err)
	}
	data, err := marshalJSON(f.Data)
	if err != nil {
		return fmt.Errorf("failed to encode data for %s: %w", f.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (id, tenant_id, folder_id, name, metadata, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.TenantID, f.FolderID, f.Name, meta, data,
		f.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save file %s: %w", f.ID, err)
	}
	return nil
}

// GetFile fetches a file record by id. Returns sql.ErrNoRows if absent.
func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, folder_id, name, metadata, data, created_at FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// ListFiles returns all file records across all tenants.
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, folder_id, name, metadata, data, created_at FROM files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a file record.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return err
}

// SaveOCRRecord inserts or replaces an OCR record.
func (s *SQLiteStore) SaveOCRRecord(ctx context.Context, r *OCRRecord) error {
	var pages any
	if len(r.Pages) > 0 {
		encoded, err := json.Marshal(r.Pages)
		if err != nil {
			return fmt.Errorf("failed to encode pages for %s: %w", r.ID, err)
		}
		pages = string(encoded)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ocr_records (id, tenant_id, folder_id, file_name, extracted_text, pages, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.FolderID, r.FileName, r.ExtractedText, pages,
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save ocr record %s: %w", r.ID, err)
	}
	return nil
}

// GetOCRRecord fetches an OCR record by id. Returns sql.ErrNoRows if absent.
func (s *SQLiteStore) GetOCRRecord(ctx context.Context, id string) (*OCRRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, folder_id, file_name, extracted_text, pages, created_at
		 FROM ocr_records WHERE id = ?`, id)
	return scanOCR(row)
}

// ListOCRRecords returns all OCR records across all tenants.
func (s *SQLiteStore) ListOCRRecords(ctx context.Context) ([]*OCRRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, folder_id, file_name, extracted_text, pages, created_at
		 FROM ocr_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ocr records: %w", err)
	}
	defer rows.Close()

	var records []*OCRRecord
	for rows.Next() {
		r, err := scanOCR(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteOCRRecord removes an OCR record.
func (s *SQLiteStore) DeleteOCRRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ocr_records WHERE id = ?`, id)
	return err
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanFile(sc scanner) (*File, error) {
	var f File
	var meta, data sql.NullString
	var createdAt string
	if err := sc.Scan(&f.ID, &f.TenantID, &f.FolderID, &f.Name, &meta, &data, &createdAt); err != nil {
		return nil, err
	}
	f.Metadata = unmarshalJSON(meta)
	f.Data = unmarshalJSON(data)
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

func scanOCR(sc scanner) (*OCRRecord, error) {
	var r OCRRecord
	var pages sql.NullString
	var createdAt string
	if err := sc.Scan(&r.ID, &r.TenantID, &r.FolderID, &r.FileName, &r.ExtractedText, &pages, &createdAt); err != nil {
		return nil, err
	}
	if pages.Valid && pages.String != "" {
		// A malformed pages column degrades to no explicit pages; the
		// normalizer falls back to the flat extracted text.
		_ = json.Unmarshal([]byte(pages.String), &r.Pages)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func marshalJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func unmarshalJSON(col sql.NullString) map[string]any {
	if !col.Valid || col.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(col.String), &m); err != nil {
		return nil
	}
	return m
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
