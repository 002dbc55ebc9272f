// Package localindex implements backend.Client as an embedded engine on
// bleve, so idxstore can run without a cluster. Each index is a bleve index,
// either in memory or in its own directory under the data dir.
package localindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// sourceField holds the original JSON document. It is stored but never
// indexed so that search hits can return _source unchanged.
const sourceField = "idxstore_source"

var errClosed = errors.New("local index backend is closed")

// Backend is an embedded search backend.
type Backend struct {
	mu      sync.Mutex
	dir     string
	lock    *dirLock
	indexes map[string]bleve.Index
	closed  bool
}

// NewMemory returns a backend whose indexes live only in memory.
func NewMemory() *Backend {
	return &Backend{indexes: make(map[string]bleve.Index)}
}

// Open returns a backend persisting indexes under dir. The directory is
// locked for the lifetime of the backend.
func Open(dir string) (*Backend, error) {
	if dir == "" {
		return NewMemory(), nil
	}

	lock := newDirLock(dir)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}

	slog.Debug("local_index_opened", slog.String("dir", dir))
	return &Backend{
		dir:     dir,
		lock:    lock,
		indexes: make(map[string]bleve.Index),
	}, nil
}

// Dir returns the data directory, or "" for an in-memory backend.
func (b *Backend) Dir() string {
	return b.dir
}

// analyzerName is the default analyzer: unicode word boundaries, lowercased,
// no stop words, like Elasticsearch's standard analyzer.
const analyzerName = "idxstore_standard"

// newIndexMapping maps documents dynamically and keeps the raw source in a
// stored, unindexed field.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.IncludeTermVectors = false
	src.DocValues = false
	im.DefaultMapping.AddFieldMappingsAt(sourceField, src)

	return im, nil
}

// validIndexName applies the Elasticsearch index naming rules.
func validIndexName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("index name must not be empty")
	case name == "." || name == "..":
		return fmt.Errorf("index name must not be '.' or '..'")
	case len(name) > 255:
		return fmt.Errorf("index name is longer than 255 bytes")
	case strings.ToLower(name) != name:
		return fmt.Errorf("index name must be lowercase")
	case strings.ContainsAny(name, `\/*?"<>| ,#:`):
		return fmt.Errorf("index name must not contain any of \\/*?\"<>| ,#:")
	case strings.ContainsAny(name[:1], "-_+"):
		return fmt.Errorf("index name must not start with '-', '_' or '+'")
	}
	return nil
}

func invalidName(name string, err error) *backend.ResponseError {
	return &backend.ResponseError{
		Status: http.StatusBadRequest,
		Type:   "invalid_index_name_exception",
		Reason: fmt.Sprintf("Invalid index name [%s], %v", name, err),
	}
}

func indexNotFound(name string) *backend.ResponseError {
	return &backend.ResponseError{
		Status: http.StatusNotFound,
		Type:   "index_not_found_exception",
		Reason: fmt.Sprintf("no such index [%s]", name),
	}
}

func (b *Backend) indexPath(name string) string {
	return filepath.Join(b.dir, name)
}

// lookupLocked returns the open index called name, opening it from disk if
// needed. Caller holds b.mu.
func (b *Backend) lookupLocked(name string) (bleve.Index, bool, error) {
	if idx, ok := b.indexes[name]; ok {
		return idx, true, nil
	}
	if b.dir == "" || validIndexName(name) != nil {
		return nil, false, nil
	}

	path := b.indexPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, false, nil
	}

	if err := validateIndexIntegrity(path); err != nil {
		slog.Warn("local_index_corrupted",
			slog.String("index", name),
			slog.String("error", err.Error()))
		return nil, false, &backend.ResponseError{
			Status: http.StatusInternalServerError,
			Type:   backend.CorruptIndexType,
			Reason: fmt.Sprintf("index [%s] at %s: %v", name, path, err),
		}
	}

	idx, err := bleve.Open(path)
	if err != nil {
		if isCorruptionError(err) {
			return nil, false, &backend.ResponseError{
				Status: http.StatusInternalServerError,
				Type:   backend.CorruptIndexType,
				Reason: fmt.Sprintf("index [%s]: %v", name, err),
			}
		}
		return nil, false, fmt.Errorf("failed to open index %s: %w", name, err)
	}

	b.indexes[name] = idx
	return idx, true, nil
}

// createLocked creates a new index. Caller holds b.mu.
func (b *Backend) createLocked(name string) (bleve.Index, error) {
	if err := validIndexName(name); err != nil {
		return nil, invalidName(name, err)
	}

	im, err := newIndexMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if b.dir == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(b.indexPath(name), im)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index %s: %w", name, err)
	}

	b.indexes[name] = idx
	slog.Debug("local_index_created", slog.String("index", name))
	return idx, nil
}

// IndexExists implements backend.Client.
func (b *Backend) IndexExists(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, errClosed
	}

	_, ok, err := b.lookupLocked(name)
	return ok, err
}

// CreateIndex implements backend.Client.
func (b *Backend) CreateIndex(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed
	}

	_, ok, err := b.lookupLocked(name)
	if err != nil {
		return err
	}
	if ok {
		return &backend.ResponseError{
			Status: http.StatusBadRequest,
			Type:   "resource_already_exists_exception",
			Reason: fmt.Sprintf("index [%s] already exists", name),
		}
	}

	_, err = b.createLocked(name)
	return err
}

// DeleteIndex implements backend.Client.
func (b *Backend) DeleteIndex(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed
	}

	idx, ok, err := b.lookupLocked(name)
	if err != nil {
		return err
	}
	if !ok {
		return indexNotFound(name)
	}

	delete(b.indexes, name)
	if err := idx.Close(); err != nil {
		return fmt.Errorf("failed to close index %s: %w", name, err)
	}
	if b.dir != "" {
		if err := os.RemoveAll(b.indexPath(name)); err != nil {
			return fmt.Errorf("failed to remove index %s: %w", name, err)
		}
	}

	slog.Debug("local_index_deleted", slog.String("index", name))
	return nil
}

// Bulk implements backend.Client.
func (b *Backend) Bulk(ctx context.Context, items []backend.BulkItem) (*backend.BulkResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errClosed
	}

	w := newBulkWriter(b)
	resp := &backend.BulkResponse{Items: make([]map[string]*backend.BulkItemResult, 0, len(items))}
	for _, item := range items {
		res := w.apply(item)
		if res.Error != nil {
			resp.Errors = true
		}
		resp.Items = append(resp.Items, map[string]*backend.BulkItemResult{item.Action.Op: res})
	}

	if err := w.commit(); err != nil {
		return nil, err
	}

	resp.Took = time.Since(start).Milliseconds()
	return resp, nil
}

// Search implements backend.Client.
func (b *Backend) Search(ctx context.Context, index string, q backend.Query, size int, searchType string) (backend.SearchResult, error) {
	switch searchType {
	case "", backend.SearchTypeQueryThenFetch, backend.SearchTypeDFSQueryThenFetch:
		// A single local shard has global term statistics already.
	default:
		return nil, &backend.ResponseError{
			Status: http.StatusBadRequest,
			Type:   "illegal_argument_exception",
			Reason: fmt.Sprintf("No search type for [%s]", searchType),
		}
	}
	if size < 0 {
		return nil, &backend.ResponseError{
			Status: http.StatusBadRequest,
			Type:   "illegal_argument_exception",
			Reason: fmt.Sprintf("[size] parameter cannot be negative, found [%d]", size),
		}
	}

	bq, err := translateQuery(q)
	if err != nil {
		return nil, &backend.ResponseError{
			Status: http.StatusBadRequest,
			Type:   "parsing_exception",
			Reason: err.Error(),
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errClosed
	}
	idx, ok, err := b.lookupLocked(index)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, indexNotFound(index)
	}

	req := bleve.NewSearchRequestOptions(bq, size, 0, false)
	req.Fields = []string{sourceField}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &backend.ResponseError{
			Status: http.StatusBadRequest,
			Type:   "query_shard_exception",
			Reason: err.Error(),
		}
	}

	hits := make([]any, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := map[string]any{
			"_index": index,
			"_id":    h.ID,
			"_score": h.Score,
		}
		if raw, ok := h.Fields[sourceField].(string); ok {
			if src, err := decodeSource(raw); err == nil {
				hit["_source"] = src
			}
		}
		hits = append(hits, hit)
	}

	var maxScore any
	if len(hits) > 0 {
		maxScore = res.MaxScore
	}

	return backend.SearchResult{
		"took":      res.Took.Milliseconds(),
		"timed_out": false,
		"_shards": map[string]any{
			"total": 1, "successful": 1, "skipped": 0, "failed": 0,
		},
		"hits": map[string]any{
			"total":     map[string]any{"value": res.Total, "relation": "eq"},
			"max_score": maxScore,
			"hits":      hits,
		},
	}, nil
}

// Close implements backend.Client. It closes every open index and releases
// the data directory lock.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	b.indexes = nil

	if b.lock != nil {
		if err := b.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ backend.Client = (*Backend)(nil)
