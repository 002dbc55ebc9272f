package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/idxstore/internal/backend"
	"github.com/Aman-CERP/idxstore/internal/backend/elastic"
	"github.com/Aman-CERP/idxstore/internal/config"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
)

// EventsCounter is the counter key bumped once per buffered event.
const EventsCounter = "events"

// IndexStore buffers writes to one backend and flushes them in bulk.
type IndexStore struct {
	client        backend.Client
	flushInterval int
	defaultSize   int

	// importCounter is never reset; it only grows.
	importCounter map[string]int
	// importEvents is cleared only after a bulk request succeeds.
	importEvents []backend.BulkItem
}

// Option configures an IndexStore.
type Option func(*IndexStore)

// WithFlushInterval sets the flush interval used when ImportEvent is called
// with a non-positive interval.
func WithFlushInterval(n int) Option {
	return func(s *IndexStore) {
		if n > 0 {
			s.flushInterval = n
		}
	}
}

// WithDefaultSize sets the hit count used when Search is called with a
// non-positive size.
func WithDefaultSize(n int) Option {
	return func(s *IndexStore) {
		if n > 0 {
			s.defaultSize = n
		}
	}
}

// New wraps an existing backend client. The store owns client from here on.
func New(client backend.Client, opts ...Option) *IndexStore {
	s := &IndexStore{
		client:        client,
		flushInterval: config.DefaultFlushInterval,
		defaultSize:   config.DefaultSearchSize,
		importCounter: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial creates a store backed by the Elasticsearch node at host:port. An
// empty host means 127.0.0.1 and a zero port means 9200. No request is made
// until the first operation.
func Dial(host string, port int, opts ...Option) (*IndexStore, error) {
	client, err := elastic.New(elastic.Config{Host: host, Port: port})
	if err != nil {
		return nil, amerrors.ConfigError("failed to create Elasticsearch client", err)
	}
	return New(client, opts...), nil
}

// Open creates a store for the backend selected by cfg, taking the flush
// interval and default search size from it as well.
func Open(cfg *config.Config) (*IndexStore, error) {
	client, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(client,
		WithFlushInterval(cfg.Import.FlushInterval),
		WithDefaultSize(cfg.Search.DefaultSize),
	), nil
}

// Close releases the backend. Buffered events that were never drained are
// dropped.
func (s *IndexStore) Close() error {
	if n := len(s.importEvents); n > 0 {
		slog.Warn("close_with_pending_events", slog.Int("pending", n))
	}
	return s.client.Close()
}

// Pending returns the number of buffered header/payload pairs.
func (s *IndexStore) Pending() int {
	return len(s.importEvents)
}

// Counter returns the value of the named write counter.
func (s *IndexStore) Counter(name string) int {
	return s.importCounter[name]
}

// CreateIndex creates the index if it does not exist yet and returns its
// name. Creating an existing index is not an error.
func (s *IndexStore) CreateIndex(ctx context.Context, name string) (string, error) {
	if err := checkIndexName(name); err != nil {
		return "", err
	}

	exists, err := s.client.IndexExists(ctx, name)
	if err != nil {
		return "", lifecycleError("create", name, err)
	}
	if !exists {
		if err := s.client.CreateIndex(ctx, name); err != nil {
			return "", lifecycleError("create", name, err)
		}
		slog.Info("index_created", slog.String("index", name))
	}
	return name, nil
}

// DeleteIndex deletes the index if it exists. Deleting a missing index is
// not an error.
func (s *IndexStore) DeleteIndex(ctx context.Context, name string) error {
	if err := checkIndexName(name); err != nil {
		return err
	}

	exists, err := s.client.IndexExists(ctx, name)
	if err != nil {
		return lifecycleError("delete", name, err)
	}
	if exists {
		if err := s.client.DeleteIndex(ctx, name); err != nil {
			return lifecycleError("delete", name, err)
		}
		slog.Info("index_deleted", slog.String("index", name))
	}
	return nil
}

// ImportEvent buffers event for index and returns the number of events
// buffered so far.
//
// With an empty eventID the event is written whole. Otherwise it is a
// partial update of that document: sent as a script when the event has a
// truthy "lang" field, as a doc merge otherwise. When the counter reaches a
// multiple of flushInterval (or the store default if flushInterval <= 0)
// the buffer is sent in one bulk request.
//
// A nil or empty event sends whatever is buffered instead.
//
// If a bulk request fails the buffered pairs are kept so a later drain can
// resend them, and the error is returned.
func (s *IndexStore) ImportEvent(ctx context.Context, index string, event backend.Document, eventID string, flushInterval int) (int, error) {
	if flushInterval <= 0 {
		flushInterval = s.flushInterval
	}

	if len(event) == 0 {
		if len(s.importEvents) > 0 {
			if err := s.flush(ctx); err != nil {
				return s.importCounter[EventsCounter], err
			}
		}
		return s.importCounter[EventsCounter], nil
	}

	doc, err := normalizeDocument(event)
	if err != nil {
		return s.importCounter[EventsCounter], amerrors.ValidationError("event cannot be encoded", err).
			WithDetail("index", index)
	}

	item := backend.BulkItem{Action: backend.IndexAction(index), Source: doc}
	if eventID != "" {
		item.Action = backend.UpdateAction(index, eventID)
		if truthy(doc["lang"]) {
			item.Source = backend.Document{"script": doc}
		} else {
			item.Source = backend.Document{"doc": doc}
		}
	}

	s.importEvents = append(s.importEvents, item)
	s.importCounter[EventsCounter]++

	if s.importCounter[EventsCounter]%flushInterval == 0 {
		if err := s.flush(ctx); err != nil {
			return s.importCounter[EventsCounter], err
		}
	}
	return s.importCounter[EventsCounter], nil
}

// Drain sends every buffered pair. It is ImportEvent with an empty event.
func (s *IndexStore) Drain(ctx context.Context) (int, error) {
	return s.ImportEvent(ctx, "", nil, "", 0)
}

func (s *IndexStore) flush(ctx context.Context) error {
	pairs := len(s.importEvents)
	start := time.Now()

	resp, err := s.client.Bulk(ctx, s.importEvents)
	if err != nil {
		err = bulkError(pairs, err)
		slog.Warn("bulk_flush_failed", amerrors.LogAttrs(err)...)
		return err
	}

	if failed := resp.Failed(); len(failed) > 0 {
		first := failed[0]
		slog.Warn("bulk_item_errors",
			slog.Int("pairs", pairs),
			slog.Int("failed", len(failed)),
			slog.String("first_index", first.Index),
			slog.String("first_id", first.ID),
			slog.String("first_error", first.Error.Type+": "+first.Error.Reason))
	}

	slog.Debug("bulk_flush",
		slog.Int("pairs", pairs),
		slog.Int("events", s.importCounter[EventsCounter]),
		slog.Duration("duration", time.Since(start)))

	s.importEvents = nil
	return nil
}

// BuildQuery returns a boolean query with a single query_string clause.
func (s *IndexStore) BuildQuery(queryString string) backend.Query {
	return backend.Query{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"query_string": map[string]any{
							"query": queryString,
						},
					},
				},
			},
		},
	}
}

// Search runs queryString against index and returns the backend's response
// as is. A non-positive size means the store default.
func (s *IndexStore) Search(ctx context.Context, index, queryString string, size int) (backend.SearchResult, error) {
	if size <= 0 {
		size = s.defaultSize
	}

	start := time.Now()
	res, err := s.client.Search(ctx, index, s.BuildQuery(queryString), size, backend.SearchTypeQueryThenFetch)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed,
			fmt.Sprintf("search on index %s failed: %v", index, err), err).
			WithDetail("index", index).
			WithDetail("query", queryString)
	}

	slog.Debug("search_completed",
		slog.String("index", index),
		slog.Int("size", size),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func checkIndexName(name string) error {
	if name == "" {
		return amerrors.ValidationError("index name must not be empty", nil)
	}
	if !utf8.ValidString(name) {
		return amerrors.ValidationError("index name is not valid UTF-8", nil)
	}
	return nil
}

func lifecycleError(op, name string, err error) error {
	var (
		ie   *amerrors.IndexError
		resp *backend.ResponseError
	)
	switch {
	case stderrors.Is(err, backend.ErrUnavailable):
		ie = amerrors.BackendUnavailable(fmt.Sprintf("failed to %s index %s", op, name), err)
	case stderrors.As(err, &resp) && resp.Type == backend.CorruptIndexType:
		ie = amerrors.New(amerrors.ErrCodeCorruptIndex, fmt.Sprintf("index %s is corrupt", name), err).
			WithSuggestion("Remove the index directory under backend.data_dir and import again")
	case stderrors.Is(err, context.DeadlineExceeded):
		ie = amerrors.New(amerrors.ErrCodeBackendTimeout, fmt.Sprintf("timed out trying to %s index %s", op, name), err)
	default:
		ie = amerrors.New(amerrors.ErrCodeIndexFailed, fmt.Sprintf("failed to %s index %s: %v", op, name, err), err)
	}
	return ie.WithDetail("index", name)
}

func bulkError(pairs int, err error) error {
	var ie *amerrors.IndexError
	if stderrors.Is(err, backend.ErrUnavailable) {
		ie = amerrors.BackendUnavailable("failed to send bulk request", err)
	} else {
		ie = amerrors.New(amerrors.ErrCodeBulkWriteFailed, fmt.Sprintf("bulk request failed: %v", err), err)
	}
	return ie.WithDetail("pairs", fmt.Sprint(pairs))
}
