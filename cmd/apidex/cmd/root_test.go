package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apidex/apidex/internal/search"
)

// runCLI executes the root command with the given args and returns
// captured stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	docs := []map[string]any{
		{
			"id": "users-list", "title": "List users",
			"content":  "Returns a paginated list of users in the workspace.",
			"metadata": map[string]any{"method": "GET", "tags": []string{"web", "api"}},
		},
		{
			"id": "users-create", "title": "Create user",
			"content":  "Creates a new user account with the given email.",
			"metadata": map[string]any{"method": "POST", "tags": []string{"api"}},
		},
		{
			"id": "auth-token", "title": "Issue token",
			"content":  "Exchanges credentials for a bearer token.",
			"metadata": map[string]any{"method": "POST", "tags": []string{"auth"}},
		},
	}

	var sb strings.Builder
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		require.NoError(t, err)
		sb.Write(line)
		sb.WriteByte('\n')
	}

	path := filepath.Join(dir, "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apidex")

	out, err = runCLI(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
}

func TestConfigInitAndShow(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "idx")

	out, err := runCLI(t, "config", "init", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "apidex.yaml")

	// Re-running without --force refuses to clobber.
	_, err = runCLI(t, "config", "init", "--data-dir", dataDir)
	require.Error(t, err)

	out, err = runCLI(t, "config", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "fusion_alpha")
	assert.Contains(t, out, "rrf_constant")
}

func TestIndexAndSearchEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	corpus := writeCorpus(t, dir)

	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	out, err := runCLI(t, "index", "--file", corpus, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 documents")

	out, err = runCLI(t, "search", "paginated list of users", "--data-dir", dataDir, "--format", "json")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "users-list", resp.Results[0].DocID)
}

func TestSearchWithFilterAndFacets(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	corpus := writeCorpus(t, dir)

	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	_, err := runCLI(t, "index", "--file", corpus, "--data-dir", dataDir)
	require.NoError(t, err)

	out, err := runCLI(t, "search", "users",
		"--data-dir", dataDir,
		"--format", "json",
		"--filter", `{"field":"method","op":"eq","value":"GET"}`,
		"--facet", "tags")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	for _, r := range resp.Results {
		assert.Equal(t, "GET", r.Metadata["method"])
	}
	assert.Contains(t, resp.Facets, "tags")
}

func TestSearchEmptyQueryFails(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "idx")
	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	_, err := runCLI(t, "search", "   ", "--data-dir", dataDir)
	require.Error(t, err)
}

func TestIndexRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	_, err := runCLI(t, "index", "--file", path, "--data-dir", dataDir)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "line 1")
}

func TestIndexMissingIDFails(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	path := filepath.Join(dir, "noid.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"x","content":"y"}`+"\n"), 0o644))

	_, err := runCLI(t, "index", "--file", path, "--data-dir", dataDir)
	require.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	corpus := writeCorpus(t, dir)

	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")

	_, err := runCLI(t, "index", "--file", corpus, "--data-dir", dataDir)
	require.NoError(t, err)

	out, err := runCLI(t, "stats", "--data-dir", dataDir, "--json")
	require.NoError(t, err)

	var stats search.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 3, stats.Vectors)
}

func TestExistingBackendWinsOverConfig(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "idx")
	corpus := writeCorpus(t, dir)

	t.Setenv("APIDEX_BM25_BACKEND", "sqlite")
	_, err := runCLI(t, "index", "--file", corpus, "--data-dir", dataDir)
	require.NoError(t, err)

	// Default config says bleve; the existing sqlite index must win, so
	// stats still sees the indexed corpus instead of an empty new index.
	t.Setenv("APIDEX_BM25_BACKEND", "")

	out, err := runCLI(t, "stats", "--data-dir", dataDir, "--json")
	require.NoError(t, err)

	var stats search.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.SparseIndexed)
}
