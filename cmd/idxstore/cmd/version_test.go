package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/idxstore/pkg/version"
)

func TestVersionCmd_TextShowsBackend(t *testing.T) {
	dataDir := cliEnv(t)

	out, err := runCLI(t, dataDir, "", "version")

	require.NoError(t, err)
	assert.Contains(t, out, "idxstore "+version.Version)
	assert.Contains(t, out, "commit")
	assert.Contains(t, out, "backend: bleve "+dataDir)
}

func TestVersionCmd_Short(t *testing.T) {
	dataDir := cliEnv(t)

	out, err := runCLI(t, dataDir, "", "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCmd_JSON(t *testing.T) {
	// Given: the elasticsearch backend on a custom port
	_ = cliEnv(t)

	root := NewRootCmd()
	buf := &strings.Builder{}
	root.SetOut(buf)
	root.SetArgs([]string{"--dir", t.TempDir(), "--backend", "elasticsearch", "--port", "9300", "version", "--json"})

	// When: asking for JSON
	require.NoError(t, root.Execute())

	// Then: build fields and the backend address are present
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &info))
	assert.Equal(t, version.Version, info["version"])
	for _, key := range []string{"commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, info, key)
	}
	assert.Equal(t, "elasticsearch", info["backend"])
	assert.Equal(t, "http://127.0.0.1:9300", info["backend_address"])
}

func TestVersionCmd_BrokenConfigStillPrints(t *testing.T) {
	dataDir := cliEnv(t)
	t.Setenv("IDXSTORE_PORT", "not-a-number")

	out, err := runCLI(t, dataDir, "", "version")

	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
	assert.NotContains(t, out, "backend:")
}
