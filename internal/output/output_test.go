package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Checking backend...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Checking backend...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")
	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		write func(*Writer)
		icon  string
		msg   string
	}{
		{"success", func(w *Writer) { w.Successf("Imported %d events", 3) }, "✅", "Imported 3 events"},
		{"warning", func(w *Writer) { w.Warningf("%d items failed", 2) }, "⚠️", "2 items failed"},
		{"error", func(w *Writer) { w.Errorf("index %s missing", "logs") }, "❌", "index logs missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}

func TestWriter_Progress_DisabledOffTerminal(t *testing.T) {
	// Given: a writer over a buffer, which is never a terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: starting and driving a progress bar
	p := w.Progress(100, "Importing")
	p.Set(50)
	p.Finish()

	// Then: nothing is drawn
	assert.Nil(t, p)
	assert.Empty(t, buf.String())
}

func TestIsTTY_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.False(t, IsTTY(f))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
