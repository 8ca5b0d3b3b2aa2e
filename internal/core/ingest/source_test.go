package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONL(t *testing.T) {
	input := `{"id": "t3_a", "content": "root", "authors": ["alice"], "container": "golang"}

{"id": "t1_b", "content": "reply", "parent_id": "t3_a", "thread_id": "t3_a", "created_at": "2024-01-02T03:04:05Z"}
`
	docs, err := ReadJSONL(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"alice"}, docs[0].Authors)
	assert.Equal(t, "t3_a", docs[1].ParentID)
	assert.Equal(t, 2024, docs[1].CreatedAt.Year())
}

func TestReadJSONL_BadLine(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("{\"id\": \"a\"}\nnot json\n"))

	assert.ErrorContains(t, err, "line 2")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "a", "content": "x"}`), 0o644))

	docs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = ReadFile(filepath.Join(dir, "docs.csv"))
	assert.Error(t, err)
}
