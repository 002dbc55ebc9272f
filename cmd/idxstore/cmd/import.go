package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/idxstore/internal/backend"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
	"github.com/Aman-CERP/idxstore/internal/output"
	"github.com/Aman-CERP/idxstore/internal/store"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 16 << 20

type importOptions struct {
	idField       string
	flushInterval int
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var iopts importOptions

	cmd := &cobra.Command{
		Use:   "import <index> [file|-]",
		Short: "Bulk-load JSON lines into an index",
		Long: `Read one JSON object per line and buffer each as an event for the
index. Every --flush-interval events the buffer is sent in one bulk
request; whatever remains is sent at end of input.

With --id-field, events carrying that field become partial updates of the
document with that id instead of new documents. An event with a "lang"
field is sent as an update script.`,
		Example: `  idxstore import events events.jsonl
  cat events.jsonl | idxstore import events --flush-interval 500
  idxstore import events updates.jsonl --id-field event_id`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 2 {
				path = args[1]
			}
			return runImport(cmd, opts, args[0], path, iopts)
		},
	}

	cmd.Flags().StringVar(&iopts.idField, "id-field", "", "Field holding the document id for updates")
	cmd.Flags().IntVar(&iopts.flushInterval, "flush-interval", 0, "Events per bulk request (default from config)")

	return cmd
}

func runImport(cmd *cobra.Command, opts *rootOptions, index, path string, iopts importOptions) error {
	in, size, closeIn, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer closeIn()

	s, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx := cmd.Context()
	if _, err := s.CreateIndex(ctx, index); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	progress := output.New(cmd.ErrOrStderr()).Progress(size, "Importing")

	start := time.Now()
	slog.Info("import_started", slog.String("index", index), slog.String("source", path))

	n, err := importLines(ctx, s, index, in, iopts, progress)
	progress.Finish()
	if err != nil {
		return err
	}

	slog.Info("import_complete",
		slog.String("index", index),
		slog.Int("events", n),
		slog.Duration("duration", time.Since(start)))
	out.Successf("Imported %d events into %s", n, index)
	return nil
}

// openInput returns the reader for path ("-" is stdin) and its size, or -1
// when unknown.
func openInput(cmd *cobra.Command, path string) (io.Reader, int64, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), -1, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil, amerrors.New(amerrors.ErrCodeFileNotFound,
				fmt.Sprintf("input file not found: %s", path), err)
		}
		return nil, 0, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return f, size, func() { _ = f.Close() }, nil
}

// importLines buffers every line of r into s and drains at the end. It
// returns the store's event count.
func importLines(ctx context.Context, s *store.IndexStore, index string, r io.Reader, iopts importOptions, progress *output.Progress) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		lineNo int
		read   int64
	)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		read += int64(len(line)) + 1
		progress.Set(read)

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		event, id, err := decodeEvent(line, iopts.idField)
		if err != nil {
			return s.Counter(store.EventsCounter), amerrors.ValidationError(
				fmt.Sprintf("line %d: %v", lineNo, err), err).
				WithDetail("line", fmt.Sprint(lineNo))
		}

		if _, err := s.ImportEvent(ctx, index, event, id, iopts.flushInterval); err != nil {
			slog.Warn("import_aborted",
				slog.Int("line", lineNo),
				slog.String("code", amerrors.GetCode(err)),
				slog.Int("pending", s.Pending()))
			return s.Counter(store.EventsCounter), err
		}
	}
	if err := scanner.Err(); err != nil {
		return s.Counter(store.EventsCounter), fmt.Errorf("failed to read input: %w", err)
	}

	return s.Drain(ctx)
}

// decodeEvent parses one JSON object. When idField is set and present its
// value becomes the document id.
func decodeEvent(line []byte, idField string) (backend.Document, string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var event backend.Document
	if err := dec.Decode(&event); err != nil {
		return nil, "", fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, "", fmt.Errorf("trailing data after JSON object")
	}
	if len(event) == 0 {
		return nil, "", fmt.Errorf("empty event")
	}

	var id string
	if idField != "" {
		switch v := event[idField].(type) {
		case nil:
		case string:
			id = v
		case json.Number:
			id = v.String()
		default:
			return nil, "", fmt.Errorf("field %q must be a string or number, got %T", idField, v)
		}
	}
	return event, id, nil
}
