package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/paperdex/paperdex/internal/engine"
	perrors "github.com/paperdex/paperdex/internal/errors"
)

// Options configure the search service.
type Options struct {
	MaxResults       int
	MaxPageLocations int
	Fuzziness        int
	FuzzyPrefix      int
	CacheSize        int
	Timeout          time.Duration
}

// DefaultOptions returns the service defaults.
func DefaultOptions() Options {
	return Options{
		MaxResults:       20,
		MaxPageLocations: 5,
		Fuzziness:        1,
		FuzzyPrefix:      2,
		CacheSize:        256,
		Timeout:          10 * time.Second,
	}
}

// Service executes tenant-scoped searches against the engine. Failures never
// escape as errors: every call returns a well-formed response envelope, with
// Success false and the failure in Error when the engine is unreachable.
type Service struct {
	engine  *engine.Index
	logger  *slog.Logger
	opts    Options
	cache   *lru.Cache[string, *Response]
	breaker *perrors.CircuitBreaker
}

// NewService creates a search service over an engine index.
func NewService(idx *engine.Index, logger *slog.Logger, opts Options) (*Service, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if opts.CacheSize < 0 {
		opts.CacheSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	// CacheSize zero means no response caching.
	var cache *lru.Cache[string, *Response]
	if opts.CacheSize > 0 {
		var err error
		cache, err = lru.New[string, *Response](opts.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &Service{
		engine:  idx,
		logger:  logger,
		opts:    opts,
		cache:   cache,
		breaker: perrors.NewCircuitBreaker("search-engine"),
	}, nil
}

// Search runs one query for one tenant. A blank query is a valid zero-result
// query, not an error. A missing tenant id fails closed.
func (s *Service) Search(ctx context.Context, req Request) *Response {
	query := strings.TrimSpace(req.Query)
	tenant := strings.TrimSpace(req.TenantID)

	if tenant == "" {
		return &Response{
			Success: false,
			Query:   query,
			Results: []Result{},
			Error:   "tenantId is required",
		}
	}
	if query == "" {
		return &Response{Success: true, Query: query, Results: []Result{}}
	}

	key := tenant + "\x1f" + query
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached
		}
	}

	plan := BuildPlan(tenant, query, PlannerOptions{
		Fuzziness:   s.opts.Fuzziness,
		FuzzyPrefix: s.opts.FuzzyPrefix,
	})

	var hits []*engine.Hit
	err := s.breaker.Execute(func() error {
		searchCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		var searchErr error
		// Oversized raw fetch: a document and its pages arrive as
		// separate hits, grouped down to MaxResults after assembly.
		hits, searchErr = s.engine.Search(searchCtx, plan, s.opts.MaxResults*4)
		return searchErr
	})
	if err != nil {
		s.logger.Error("search failed", "tenantId", tenant, "error", err)
		return &Response{
			Success: false,
			Query:   query,
			Results: []Result{},
			Error:   perrors.New(perrors.ErrCodeSearchFailed, "search failed", err).Error(),
		}
	}

	results := Assemble(hits, s.opts.MaxPageLocations)
	if len(results) > s.opts.MaxResults {
		results = results[:s.opts.MaxResults]
	}

	resp := &Response{
		Success: true,
		Query:   query,
		Total:   len(results),
		Results: results,
	}
	if s.cache != nil {
		s.cache.Add(key, resp)
	}
	return resp
}

// InvalidateCache drops all cached responses. Called after any index pass so
// stale results never outlive a rebuild.
func (s *Service) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
