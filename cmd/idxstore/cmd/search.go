package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/idxstore/internal/backend"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	size   int
	format string // "text", "json"
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var sopts searchOptions

	cmd := &cobra.Command{
		Use:   "search <index> <query>...",
		Short: "Run a query-string search against an index",
		Long: `Run a query-string search against an index. The remaining arguments
are joined into the query, which supports the usual operators:

  idxstore search events "error AND NOT timeout"
  idxstore search events user:alice --size 5
  idxstore search events "disk full" --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sopts.format != "text" && sopts.format != "json" {
				return amerrors.ValidationError(
					fmt.Sprintf("invalid format %q (want text or json)", sopts.format), nil)
			}

			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			query := strings.Join(args[1:], " ")
			res, err := s.Search(cmd.Context(), args[0], query, sopts.size)
			if err != nil {
				return err
			}

			if sopts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return formatSearchText(cmd.OutOrStdout(), query, res)
		},
	}

	cmd.Flags().IntVarP(&sopts.size, "size", "n", 0, "Maximum number of hits (default from config)")
	cmd.Flags().StringVarP(&sopts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func formatSearchText(w io.Writer, query string, res backend.SearchResult) error {
	hitsObj, _ := res["hits"].(map[string]any)
	hits, _ := hitsObj["hits"].([]any)

	total := len(hits)
	if t, ok := hitsObj["total"].(map[string]any); ok {
		if v, ok := toInt(t["value"]); ok {
			total = v
		}
	}

	if len(hits) == 0 {
		_, err := fmt.Fprintf(w, "No results for %q\n", query)
		return err
	}

	if _, err := fmt.Fprintf(w, "%d of %d hits for %q\n\n", len(hits), total, query); err != nil {
		return err
	}
	for i, raw := range hits {
		hit, _ := raw.(map[string]any)
		score, _ := toFloat(hit["_score"])
		src, err := json.Marshal(hit["_source"])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%d. %v (score %.3f)\n   %s\n", i+1, hit["_id"], score, src); err != nil {
			return err
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
