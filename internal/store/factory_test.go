package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/idxstore/internal/backend"
	"github.com/Aman-CERP/idxstore/internal/backend/elastic"
	"github.com/Aman-CERP/idxstore/internal/backend/localindex"
	"github.com/Aman-CERP/idxstore/internal/config"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
)

func TestNewBackend_Elasticsearch(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Backend.Host = "search.local"
	cfg.Backend.Port = 9201

	client, err := NewBackend(cfg)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	es, ok := client.(*elastic.Client)
	require.True(t, ok)
	assert.Equal(t, "http://search.local:9201", es.URL())
}

func TestNewBackend_Bleve(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Backend.Kind = config.BackendBleve
	cfg.Backend.DataDir = t.TempDir()

	client, err := NewBackend(cfg)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, ok := client.(*localindex.Backend)
	assert.True(t, ok)
}

func TestNewBackend_BleveLocked(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Backend.Kind = config.BackendBleve
	cfg.Backend.DataDir = t.TempDir()

	first, err := NewBackend(cfg)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = NewBackend(cfg)
	assert.Equal(t, amerrors.ErrCodeDataDirLocked, amerrors.GetCode(err))
	assert.True(t, amerrors.IsFatal(err))
}

func TestNewBackend_Unknown(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Backend.Kind = "solr"

	_, err := NewBackend(cfg)
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

// End to end through the embedded backend: buffer, flush, search.
func TestOpen_BleveRoundTrip(t *testing.T) {
	// Given: a store over a fresh data dir with a flush interval of 2
	cfg := config.NewConfig()
	cfg.Backend.Kind = config.BackendBleve
	cfg.Backend.DataDir = t.TempDir()
	cfg.Import.FlushInterval = 2

	s, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, err = s.CreateIndex(ctx, "events")
	require.NoError(t, err)

	// When: importing three events and draining
	for _, msg := range []string{"foo bar", "foo baz", "qux"} {
		_, err := s.ImportEvent(ctx, "events", backend.Document{"message": []byte(msg)}, "", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, s.Pending())
	n, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Then: searches see every document
	res, err := s.Search(ctx, "events", "foo AND bar", 0)
	require.NoError(t, err)
	hits := res["hits"].(map[string]any)["hits"].([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, map[string]any{"message": "foo bar"}, hits[0].(map[string]any)["_source"])

	res, err = s.Search(ctx, "events", "foo", 0)
	require.NoError(t, err)
	assert.Len(t, res["hits"].(map[string]any)["hits"].([]any), 2)
}

func TestOpen_BleveCorruptIndex(t *testing.T) {
	// Given: a data dir holding an index with an empty meta file
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "broken", "index_meta.json"), nil, 0o644))

	cfg := config.NewConfig()
	cfg.Backend.Kind = config.BackendBleve
	cfg.Backend.DataDir = dataDir

	s, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// When: creating it
	_, err = s.CreateIndex(context.Background(), "broken")

	// Then: the corruption surfaces with its own code and a fix
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeCorruptIndex, amerrors.GetCode(err))
	assert.True(t, amerrors.IsFatal(err))
	var ie *amerrors.IndexError
	require.ErrorAs(t, err, &ie)
	assert.NotEmpty(t, ie.Suggestion)
}
