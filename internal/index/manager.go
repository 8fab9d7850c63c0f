package index

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	perrors "github.com/paperdex/paperdex/internal/errors"
	"github.com/paperdex/paperdex/internal/store"
)

// Writer is what the manager needs from the index engine.
type Writer interface {
	Upsert(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, docID string) error
	Reset(ctx context.Context) error
	DocIDs(ctx context.Context) ([]string, error)
}

// PassStats summarizes one rebuild or sync pass.
type PassStats struct {
	Indexed  int
	Skipped  int
	Deleted  int
	Duration time.Duration
}

// Manager owns the index lifecycle: full rebuilds, incremental syncs, and
// single-record updates. All passes are serialized; a second rebuild attempt
// while one is running fails fast instead of queueing.
type Manager struct {
	store       store.RecordStore
	writer      Writer
	logger      *slog.Logger
	parallelism int

	mu       sync.Mutex
	fileLock *flock.Flock
	building atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithParallelism bounds concurrent record normalization during a pass.
func WithParallelism(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithLockFile guards rebuild passes with a filesystem lock so two processes
// sharing an index directory cannot rebuild concurrently.
func WithLockFile(path string) ManagerOption {
	return func(m *Manager) {
		if path != "" {
			m.fileLock = flock.New(path)
		}
	}
}

// NewManager creates an index manager over the given record store and writer.
func NewManager(st store.RecordStore, w Writer, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       st,
		writer:      w,
		logger:      logger,
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rebuilding reports whether a full rebuild is currently in progress.
// Queries keep working during a rebuild; callers may use this to surface
// maintenance state.
func (m *Manager) Rebuilding() bool {
	return m.building.Load()
}

// Rebuild drops the index and re-indexes every record from the store.
// The pass is atomic per record: a record that fails to index is logged and
// skipped, it never aborts the rest of the pass.
func (m *Manager) Rebuild(ctx context.Context) (*PassStats, error) {
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	m.building.Store(true)
	defer m.building.Store(false)

	start := time.Now()
	m.logger.Info("index rebuild started")

	if err := m.writer.Reset(ctx); err != nil {
		return nil, perrors.New(perrors.ErrCodeRebuildFailed, "failed to reset index", err)
	}

	records, folders, err := m.loadAll(ctx)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeRebuildFailed, "failed to load records", err)
	}

	stats := m.indexAll(ctx, records, folders)
	stats.Duration = time.Since(start)

	m.logger.Info("index rebuild complete",
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"duration", stats.Duration.String())
	return stats, nil
}

// Sync incrementally reconciles the index with the store: every store record
// is re-indexed in place and index entries with no backing record are removed.
// Unlike Rebuild it never drops the index, so queries see no gap.
func (m *Manager) Sync(ctx context.Context) (*PassStats, error) {
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	m.logger.Info("index sync started")

	records, folders, err := m.loadAll(ctx)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeIndexFailed, "failed to load records", err)
	}

	indexed, err := m.writer.DocIDs(ctx)
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeIndexFailed, "failed to list indexed ids", err)
	}

	live := make(map[string]struct{}, len(records))
	for _, rec := range records {
		live[rec.ID] = struct{}{}
	}

	stats := m.indexAll(ctx, records, folders)
	for _, id := range indexed {
		if _, ok := live[id]; ok {
			continue
		}
		if err := m.writer.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to remove stale index entry", "docId", id, "error", err)
			continue
		}
		stats.Deleted++
	}
	stats.Duration = time.Since(start)

	m.logger.Info("index sync complete",
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"deleted", stats.Deleted,
		"duration", stats.Duration.String())
	return stats, nil
}

// Index normalizes and upserts a single source record. Folder names are
// resolved against the store at call time.
func (m *Manager) Index(ctx context.Context, rec SourceRecord) error {
	folders := FolderSet{}
	if rec.FolderID != "" {
		f, err := m.store.GetFolder(ctx, rec.FolderID)
		if err == nil && f != nil {
			folders[f.ID] = f.Name
		}
	}
	doc := Normalize(rec, folders)
	if err := m.writer.Upsert(ctx, doc); err != nil {
		return perrors.New(perrors.ErrCodeIndexFailed, "failed to index record", err).
			WithDetail("docId", rec.ID)
	}
	return nil
}

// Delete removes one record from the index.
func (m *Manager) Delete(ctx context.Context, docID string) error {
	if err := m.writer.Delete(ctx, docID); err != nil {
		return perrors.New(perrors.ErrCodeIndexFailed, "failed to delete record", err).
			WithDetail("docId", docID)
	}
	return nil
}

// acquire serializes passes within the process and, when a lock file is
// configured, across processes. It fails fast rather than blocking.
func (m *Manager) acquire() (func(), error) {
	if !m.mu.TryLock() {
		return nil, perrors.New(perrors.ErrCodeRebuildBusy, "an index pass is already running", nil)
	}
	if m.fileLock != nil {
		locked, err := m.fileLock.TryLock()
		if err != nil {
			m.mu.Unlock()
			return nil, perrors.New(perrors.ErrCodeRebuildBusy, "failed to acquire index lock", err)
		}
		if !locked {
			m.mu.Unlock()
			return nil, perrors.New(perrors.ErrCodeRebuildBusy, "index is locked by another process", nil)
		}
	}
	return func() {
		if m.fileLock != nil {
			_ = m.fileLock.Unlock()
		}
		m.mu.Unlock()
	}, nil
}

// loadAll reads every record from the store as uniform source records, plus
// the folder name map used for denormalization. The map is built once per
// pass so folder renames mid-pass cannot produce a mixed view.
func (m *Manager) loadAll(ctx context.Context) ([]SourceRecord, FolderSet, error) {
	folders, err := m.store.ListFolders(ctx)
	if err != nil {
		return nil, nil, err
	}
	files, err := m.store.ListFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	ocr, err := m.store.ListOCRRecords(ctx)
	if err != nil {
		return nil, nil, err
	}

	set := make(FolderSet, len(folders))
	records := make([]SourceRecord, 0, len(folders)+len(files)+len(ocr))
	for _, f := range folders {
		set[f.ID] = f.Name
		records = append(records, SourceFromFolder(f))
	}
	for _, f := range files {
		records = append(records, SourceFromFile(f))
	}
	for _, r := range ocr {
		records = append(records, SourceFromOCR(r))
	}
	return records, set, nil
}

// indexAll normalizes and upserts records with bounded parallelism.
func (m *Manager) indexAll(ctx context.Context, records []SourceRecord, folders FolderSet) *PassStats {
	stats := &PassStats{}
	var statsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			doc := Normalize(rec, folders)
			if err := m.writer.Upsert(gctx, doc); err != nil {
				m.logger.Warn("failed to index record, skipping",
					"docId", rec.ID, "docType", string(rec.Type), "error", err)
				statsMu.Lock()
				stats.Skipped++
				statsMu.Unlock()
				return nil
			}
			statsMu.Lock()
			stats.Indexed++
			statsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return stats
}
