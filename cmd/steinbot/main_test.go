package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { *globalFlags = GlobalFlags{} })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, personaPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := fmt.Sprintf("[persona]\nbackend = \"file\"\npath = %q\n", personaPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPersonaCommands(t *testing.T) {
	personaPath := filepath.Join(t.TempDir(), "persona.json")
	configPath := writeConfig(t, personaPath)

	out, err := runCommand(t, "persona", "show", "--config", configPath, "--domain", "papers")
	require.NoError(t, err)
	assert.Contains(t, out, "Research Assistant")

	store, err := persona.NewFileStore(personaPath, "papers")
	require.NoError(t, err)
	_, err = store.Update(context.Background(), func(c *persona.Config) error {
		c.Thresholds.CitationRequirement = 0.99
		return nil
	})
	require.NoError(t, err)

	out, err = runCommand(t, "persona", "reset", "--config", configPath, "--domain", "papers")
	require.NoError(t, err)
	reset, err := persona.Decode([]byte(out))
	require.NoError(t, err)

	def, err := persona.Default("papers")
	require.NoError(t, err)
	assert.Equal(t, def.Thresholds, reset.Thresholds)
}

func TestUnknownDomain(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "persona.json"))

	_, err := runCommand(t, "persona", "show", "--config", configPath, "--domain", "podcasts")

	assert.ErrorContains(t, err, "podcasts")
}

func TestSearchOptionsSelected(t *testing.T) {
	mode, err := searchOptions{topic: []string{"budget"}}.selected()
	require.NoError(t, err)
	assert.Equal(t, "topic", mode)

	mode, err = searchOptions{related: "q3.txt", limit: 3}.selected()
	require.NoError(t, err)
	assert.Equal(t, "related", mode)

	_, err = searchOptions{}.selected()
	assert.ErrorContains(t, err, "is required")

	_, err = searchOptions{author: "alice", container: "golang"}.selected()
	assert.ErrorContains(t, err, "only one search mode")
}

func TestParseHistory(t *testing.T) {
	history, err := parseHistory(`[{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]`)
	require.NoError(t, err)
	assert.Equal(t, []model.ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, history)

	history, err = parseHistory("  ")
	require.NoError(t, err)
	assert.Nil(t, history)

	_, err = parseHistory("{")
	assert.ErrorContains(t, err, "--history")
}
