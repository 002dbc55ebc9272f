// Package backend defines the narrow contract idxstore needs from a search
// backend, together with the bulk and query wire types shared by every
// implementation.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Search execution strategies understood by backends.
const (
	// SearchTypeQueryThenFetch scores matching documents first and then
	// fetches the top hits.
	SearchTypeQueryThenFetch = "query_then_fetch"
	// SearchTypeDFSQueryThenFetch gathers term statistics before scoring.
	SearchTypeDFSQueryThenFetch = "dfs_query_then_fetch"
)

// ErrUnavailable marks transport-level failures: the backend could not be
// reached or the connection broke before a response arrived.
var ErrUnavailable = errors.New("backend unavailable")

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// CorruptIndexType is the ResponseError type for an index whose on-disk
// state cannot be opened.
const CorruptIndexType = "corrupt_index_exception"

// ResponseError is a non-success reply from the backend.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Type)
	}
	return fmt.Sprintf("backend returned status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// Document is a JSON object stored in an index.
type Document map[string]any

// Query is a query DSL body.
type Query map[string]any

// SearchResult is the decoded search response exactly as the backend sent it.
type SearchResult map[string]any

// Client is the set of backend capabilities idxstore relies on.
type Client interface {
	// IndexExists reports whether an index with the given name exists.
	IndexExists(ctx context.Context, name string) (bool, error)

	// CreateIndex creates an index. Creating an existing index is an error.
	CreateIndex(ctx context.Context, name string) error

	// DeleteIndex deletes an index. Deleting a missing index is an error.
	DeleteIndex(ctx context.Context, name string) error

	// Bulk sends header/payload pairs in one request. Per-item failures are
	// reported in the response, not as an error.
	Bulk(ctx context.Context, items []BulkItem) (*BulkResponse, error)

	// Search runs query against index, returning at most size hits.
	Search(ctx context.Context, index string, query Query, size int, searchType string) (SearchResult, error)

	// Close releases the connection or local resources.
	Close() error
}
