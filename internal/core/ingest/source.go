package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

const maxLineSize = 4 << 20

// ReadJSONL decodes one SourceDocument per non-blank line.
func ReadJSONL(r io.Reader) ([]model.SourceDocument, error) {
	var docs []model.SourceDocument
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc model.SourceDocument
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadFile reads a JSON Lines file.
func ReadFile(path string) ([]model.SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return ReadJSONL(f)
	}
	return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
}
