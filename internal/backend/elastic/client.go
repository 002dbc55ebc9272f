// Package elastic implements backend.Client on top of the official
// Elasticsearch Go client.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// Connection defaults.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 9200
)

// Config configures the Elasticsearch connection.
type Config struct {
	Host   string
	Port   int
	Scheme string // http (default) or https

	// DisableRetry turns off the transport's own retries on connection
	// errors and 502/503/504 replies.
	DisableRetry bool
}

// Client talks to one Elasticsearch cluster.
type Client struct {
	es  *elasticsearch.Client
	url string
}

// New creates a client for cfg. go-elasticsearch connects lazily, so no
// request is made here.
func New(cfg Config) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, host, port)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{url},
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client for %s: %w", url, err)
	}

	return &Client{es: es, url: url}, nil
}

// URL returns the cluster address requests are sent to.
func (c *Client) URL() string {
	return c.url
}

// IndexExists implements backend.Client.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.do(ctx, esapi.IndicesExistsRequest{Index: []string{name}})
	if err != nil {
		return false, err
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError(res)
	}
}

// CreateIndex implements backend.Client.
func (c *Client) CreateIndex(ctx context.Context, name string) error {
	res, err := c.do(ctx, esapi.IndicesCreateRequest{Index: name})
	if err != nil {
		return err
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// DeleteIndex implements backend.Client.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	res, err := c.do(ctx, esapi.IndicesDeleteRequest{Index: []string{name}})
	if err != nil {
		return err
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// Bulk implements backend.Client.
func (c *Client) Bulk(ctx context.Context, items []backend.BulkItem) (*backend.BulkResponse, error) {
	body, err := backend.EncodeBulk(items)
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, esapi.BulkRequest{Body: bytes.NewReader(body)})
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(res)
	}

	var out backend.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return &out, nil
}

// Search implements backend.Client.
func (c *Client) Search(ctx context.Context, index string, query backend.Query, size int, searchType string) (backend.SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := c.do(ctx, esapi.SearchRequest{
		Index:      []string{index},
		Body:       bytes.NewReader(body),
		Size:       &size,
		SearchType: searchType,
	})
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(res)
	}

	// Numbers stay json.Number so large integers in _source survive intact.
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var out backend.SearchResult
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return out, nil
}

// Close implements backend.Client. The HTTP transport needs no teardown.
func (c *Client) Close() error {
	return nil
}

// do performs req and maps transport failures to backend.ErrUnavailable.
func (c *Client) do(ctx context.Context, req esapi.Request) (*esapi.Response, error) {
	res, err := req.Do(ctx, c.es)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Debug("es_request_failed",
			slog.String("url", c.url),
			slog.String("error", err.Error()))
		return nil, backend.Unavailable(err)
	}
	return res, nil
}

type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// decodeError builds a ResponseError from an error reply. The error field is
// an object for most APIs but a bare string for some.
func decodeError(res *esapi.Response) error {
	re := &backend.ResponseError{Status: res.StatusCode, Type: http.StatusText(res.StatusCode)}

	if res.Body == nil {
		return re
	}
	data, err := io.ReadAll(res.Body)
	if err != nil || len(data) == 0 {
		return re
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		re.Reason = string(data)
		return re
	}

	var cause backend.ErrorCause
	if err := json.Unmarshal(body.Error, &cause); err == nil {
		if cause.Type != "" {
			re.Type = cause.Type
		}
		re.Reason = cause.Reason
		return re
	}

	var msg string
	if err := json.Unmarshal(body.Error, &msg); err == nil {
		re.Reason = msg
	}
	return re
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

var _ backend.Client = (*Client)(nil)
