package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
)

// cliEnv isolates config lookup and returns a bleve data dir.
func cliEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{
		"IDXSTORE_BACKEND", "IDXSTORE_HOST", "IDXSTORE_PORT", "IDXSTORE_DATA_DIR",
		"IDXSTORE_FLUSH_INTERVAL", "IDXSTORE_SEARCH_SIZE", "IDXSTORE_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return t.TempDir()
}

// runCLI executes the root command against the bleve backend in dataDir.
func runCLI(t *testing.T, dataDir, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))

	base := []string{"--dir", t.TempDir(), "--backend", "bleve", "--data-dir", dataDir}
	root.SetArgs(append(base, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexCmd_CreateAndDelete(t *testing.T) {
	dataDir := cliEnv(t)

	// When: creating two indexes, one of them twice
	out, err := runCLI(t, dataDir, "", "index", "create", "events", "audit", "events")
	require.NoError(t, err)
	assert.Contains(t, out, "Index events ready")
	assert.Contains(t, out, "Index audit ready")
	assert.DirExists(t, filepath.Join(dataDir, "events"))

	// When: deleting one plus a missing one
	out, err = runCLI(t, dataDir, "", "index", "delete", "events", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "Index events deleted")
	assert.NoDirExists(t, filepath.Join(dataDir, "events"))
	assert.DirExists(t, filepath.Join(dataDir, "audit"))
}

func TestImportThenSearch(t *testing.T) {
	// Given: three events on stdin, flushed two at a time
	dataDir := cliEnv(t)
	input := `{"message": "disk full on node-1", "level": "error"}

{"message": "disk ok", "level": "info"}
{"message": "network timeout", "level": "error"}
`

	// When: importing
	out, err := runCLI(t, dataDir, input, "import", "events", "--flush-interval", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 events into events")

	// Then: JSON search returns the raw backend response
	out, err = runCLI(t, dataDir, "", "search", "events", "disk", "--format", "json")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	hits := res["hits"].(map[string]any)["hits"].([]any)
	assert.Len(t, hits, 2)

	// And: text search honors boolean operators and size
	out, err = runCLI(t, dataDir, "", "search", "events", "disk", "AND", "full")
	require.NoError(t, err)
	assert.Contains(t, out, `1 of 1 hits for "disk AND full"`)
	assert.Contains(t, out, "node-1")

	out, err = runCLI(t, dataDir, "", "search", "events", "error", "--size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 2 hits")
}

func TestImport_FromFile(t *testing.T) {
	dataDir := cliEnv(t)
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":"one"}`+"\n"+`{"a":"two"}`), 0644))

	out, err := runCLI(t, dataDir, "", "import", "logs", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 events into logs")
}

func TestImport_MissingFile(t *testing.T) {
	dataDir := cliEnv(t)

	_, err := runCLI(t, dataDir, "", "import", "logs", filepath.Join(t.TempDir(), "nope.jsonl"))

	assert.Equal(t, amerrors.ErrCodeFileNotFound, amerrors.GetCode(err))
}

func TestImport_InvalidLineReportsLineNumber(t *testing.T) {
	dataDir := cliEnv(t)

	_, err := runCLI(t, dataDir, "{\"a\":1}\nnot json\n", "import", "logs")

	require.Error(t, err)
	assert.ErrorIs(t, err, amerrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "line 2")
}

func TestImport_UpdateOfMissingDocumentIsNotFatal(t *testing.T) {
	// Per-item failures are logged by the store, not returned
	dataDir := cliEnv(t)

	out, err := runCLI(t, dataDir, `{"event_id": "e-1", "tag": "x"}`, "import", "logs", "--id-field", "event_id")

	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 events")
}

func TestSearch_InvalidFormat(t *testing.T) {
	dataDir := cliEnv(t)

	_, err := runCLI(t, dataDir, "", "search", "events", "x", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, amerrors.ErrCodeInvalidInput, amerrors.GetCode(err))
}

func TestSearch_MissingIndex(t *testing.T) {
	dataDir := cliEnv(t)

	_, err := runCLI(t, dataDir, "", "search", "nothing", "x")

	assert.ErrorIs(t, err, amerrors.ErrSearchFailed)
}

func TestSearch_NoResults(t *testing.T) {
	dataDir := cliEnv(t)
	_, err := runCLI(t, dataDir, "", "index", "create", "events")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "", "search", "events", "anything")

	require.NoError(t, err)
	assert.Contains(t, out, `No results for "anything"`)
}

func TestRoot_InvalidEnvConfig(t *testing.T) {
	dataDir := cliEnv(t)
	t.Setenv("IDXSTORE_FLUSH_INTERVAL", "lots")

	_, err := runCLI(t, dataDir, "", "index", "create", "events")

	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		idField string
		wantID  string
		wantErr string
	}{
		{"plain", `{"a":1}`, "", "", ""},
		{"string id", `{"id":"x-1","a":1}`, "id", "x-1", ""},
		{"numeric id", `{"id":42}`, "id", "42", ""},
		{"absent id", `{"a":1}`, "id", "", ""},
		{"object id", `{"id":{"n":1}}`, "id", "", "must be a string or number"},
		{"array", `[1,2]`, "", "", "invalid JSON"},
		{"trailing", `{"a":1} {"b":2}`, "", "", "trailing data"},
		{"empty object", `{}`, "", "", "empty event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, id, err := decodeEvent([]byte(tt.line), tt.idField)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, event)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestDecodeEvent_KeepsIntegerPrecision(t *testing.T) {
	event, _, err := decodeEvent([]byte(`{"n": 9007199254740993}`), "")
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 9007199254740993}`, string(data))
}

func TestRoot_ProfileFlags(t *testing.T) {
	dataDir := cliEnv(t)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	_, err := runCLI(t, dataDir, "", "--profile-cpu", cpu, "--profile-mem", heap, "index", "create", "events")

	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestLogsCmd_TailsExplicitFile(t *testing.T) {
	dataDir := cliEnv(t)

	// Given: a log file with five lines
	logFile := filepath.Join(t.TempDir(), "idxstore.log")
	require.NoError(t, os.WriteFile(logFile, []byte("1\n2\n3\n4\n5\n"), 0o644))

	// When: asking for the last two
	out, err := runCLI(t, dataDir, "", "logs", "--file", logFile, "-n", "2")

	// Then: only those are printed, in order
	require.NoError(t, err)
	assert.Equal(t, "4\n5\n", out)
}

func TestLogsCmd_MissingFile(t *testing.T) {
	dataDir := cliEnv(t)

	_, err := runCLI(t, dataDir, "", "logs", "--file", filepath.Join(t.TempDir(), "nope.log"))

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeFileNotFound, amerrors.GetCode(err))
}

func TestTailLines(t *testing.T) {
	lines, err := tailLines(strings.NewReader("a\nb\nc"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	lines, err = tailLines(strings.NewReader("a\nb\nc"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, lines)

	lines, err = tailLines(strings.NewReader(""), 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestDebugLogConfig_ImportSkipsPerRecordSync(t *testing.T) {
	// Import writes a log line per flush; fsync on each would dominate.
	assert.False(t, debugLogConfig("import").ImmediateSync)
	assert.False(t, debugLogConfig("import").WriteToStderr)

	search := debugLogConfig("search")
	assert.True(t, search.ImmediateSync)
	assert.Equal(t, "debug", search.Level)
}

func TestRenderError_JSONWhenCommandAskedForJSON(t *testing.T) {
	// Given: a search with --format json against a missing index
	dataDir := cliEnv(t)
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--dir", t.TempDir(), "--backend", "bleve", "--data-dir", dataDir,
		"search", "nothing", "x", "--format", "json"})

	executed, err := root.ExecuteContextC(context.Background())
	require.Error(t, err)

	// When: rendering the failure
	buf := &bytes.Buffer{}
	renderError(buf, executed, err, false)

	// Then: stderr carries the structured error as JSON
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, amerrors.ErrCodeSearchFailed, got["code"])
	assert.Equal(t, "nothing", got["details"].(map[string]any)["index"])
}

func TestRenderError_TextByDefault(t *testing.T) {
	err := amerrors.ValidationError("bad line", nil)

	buf := &bytes.Buffer{}
	renderError(buf, NewRootCmd(), err, false)
	assert.Contains(t, buf.String(), "Code: "+amerrors.ErrCodeInvalidInput)

	buf.Reset()
	renderError(buf, nil, amerrors.New(amerrors.ErrCodeIndexFailed, "refused", errors.New("403")), true)
	assert.Contains(t, buf.String(), "cause: 403")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", amerrors.ConfigError("bad", nil), exitConfig},
		{"validation", amerrors.ValidationError("bad", nil), exitDataErr},
		{"io", amerrors.New(amerrors.ErrCodeFileNotFound, "missing", nil), exitIOErr},
		{"unreachable", amerrors.BackendUnavailable("down", nil), exitTempFail},
		{"search", amerrors.New(amerrors.ErrCodeSearchFailed, "failed", nil), exitFailure},
		{"plain", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestRoot_BackendFlagIsCaseInsensitive(t *testing.T) {
	dataDir := cliEnv(t)

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--dir", t.TempDir(), "--backend", "Bleve", "--data-dir", dataDir, "index", "create", "events"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Index events ready")
	assert.DirExists(t, filepath.Join(dataDir, "events"))
}
