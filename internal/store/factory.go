package store

import (
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/idxstore/internal/backend"
	"github.com/Aman-CERP/idxstore/internal/backend/elastic"
	"github.com/Aman-CERP/idxstore/internal/backend/localindex"
	"github.com/Aman-CERP/idxstore/internal/config"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
)

// NewBackend creates the backend client named by cfg.Backend.Kind.
//
// Kinds:
//   - "elasticsearch" (default): HTTP client for cfg.Backend.Host:Port
//   - "bleve": embedded indexes under cfg.Backend.DataDir, locked to one
//     process at a time
func NewBackend(cfg *config.Config) (backend.Client, error) {
	switch cfg.Backend.Kind {
	case config.BackendElasticsearch, "":
		client, err := elastic.New(elastic.Config{Host: cfg.Backend.Host, Port: cfg.Backend.Port})
		if err != nil {
			return nil, amerrors.ConfigError("failed to create Elasticsearch client", err)
		}
		return client, nil

	case config.BackendBleve:
		b, err := localindex.Open(cfg.Backend.DataDir)
		if err != nil {
			if stderrors.Is(err, localindex.ErrDataDirLocked) {
				return nil, amerrors.New(amerrors.ErrCodeDataDirLocked,
					fmt.Sprintf("data directory %s is in use", cfg.Backend.DataDir), err).
					WithSuggestion("Stop the other idxstore process or point backend.data_dir elsewhere")
			}
			return nil, amerrors.New(amerrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to open data directory %s: %v", cfg.Backend.DataDir, err), err)
		}
		return b, nil

	default:
		return nil, amerrors.ConfigError(
			fmt.Sprintf("unknown backend: %s (valid options: elasticsearch, bleve)", cfg.Backend.Kind), nil)
	}
}
