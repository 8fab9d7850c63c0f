package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/index"
	"github.com/paperdex/paperdex/internal/search"
	"github.com/paperdex/paperdex/internal/store"
)

type fixture struct {
	store  store.RecordStore
	server *Server
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng, err := engine.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	logger := slog.New(slog.DiscardHandler)
	mgr := index.NewManager(st, eng, logger)
	svc, err := search.NewService(eng, logger, search.DefaultOptions())
	require.NoError(t, err)

	return &fixture{
		store:  st,
		server: NewServer(svc, mgr, eng, logger, apiKeys),
	}
}

func (f *fixture) seedInvoice(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SaveOCRRecord(context.Background(), &store.OCRRecord{
		ID:            "doc1",
		TenantID:      "u1",
		FileName:      "Invoice_Jan.pdf",
		ExtractedText: "Total due: 500 INR",
		CreatedAt:     time.Now(),
	}))
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	// Given a server whose index holds one record
	f := newFixture(t)
	f.seedInvoice(t)
	rec := f.do(t, http.MethodPost, "/api/reindex", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// When the owning tenant searches
	rec = f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u1", Query: "Total due"})

	// Then the envelope carries the hit
	require.Equal(t, http.StatusOK, rec.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Invoice_Jan.pdf", resp.Results[0].FileName)
}

func TestSearchEndpoint_OtherTenant(t *testing.T) {
	f := newFixture(t)
	f.seedInvoice(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/reindex", nil).Code)

	rec := f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u2", Query: "Total due"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Zero(t, resp.Total)
}

func TestSearchEndpoint_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestReindexEndpoint(t *testing.T) {
	// Given seeded records
	f := newFixture(t)
	f.seedInvoice(t)

	// When reindexing
	rec := f.do(t, http.MethodPost, "/api/reindex", nil)

	// Then the pass result is reported
	require.Equal(t, http.StatusOK, rec.Code)
	var resp reindexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Indexed)
	assert.Zero(t, resp.Skipped)
}

func TestReindexEndpoint_InvalidatesSearchCache(t *testing.T) {
	// Given a cached zero-result search from before the record existed
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u1", Query: "Total due"})
	require.Equal(t, http.StatusOK, rec.Code)

	f.seedInvoice(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/reindex", nil).Code)

	// When searching again after the rebuild
	rec = f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u1", Query: "Total due"})

	// Then the fresh index is consulted, not the cached miss
	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Rebuilding)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	// Given a server requiring an API key
	f := newFixture(t, "secret-key")

	// When calling without and with the key
	denied := f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u1", Query: "x"})
	allowed := f.do(t, http.MethodPost, "/api/search",
		search.Request{TenantID: "u1", Query: "x"},
		"Authorization", "Bearer secret-key")

	// Then only the authenticated call passes
	assert.Equal(t, http.StatusUnauthorized, denied.Code)
	assert.Equal(t, http.StatusOK, allowed.Code)

	// And health stays open
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	echoed := f.do(t, http.MethodGet, "/health", nil, "X-Request-ID", "fixed-id")
	assert.Equal(t, "fixed-id", echoed.Header().Get("X-Request-ID"))
}
