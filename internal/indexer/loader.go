package indexer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
)

// ExpandPatterns resolves doublestar glob patterns (e.g. "exports/**/*.json")
// to a sorted, de-duplicated list of files. A pattern without glob
// characters must name an existing file.
func ExpandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		p = filepath.Clean(p)
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(p, "*?[{") {
			return nil, fmt.Errorf("no such file: %s", p)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadFile reads issues from a JSON file holding one issue, an array of
// issues, or one issue per line (.jsonl). Keys are normalized; an issue with
// a malformed key fails the file.
func LoadFile(path string) ([]issues.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var docs []issues.Document
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, nil
	case strings.EqualFold(filepath.Ext(path), ".jsonl"):
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		line := 0
		for sc.Scan() {
			line++
			if len(bytes.TrimSpace(sc.Bytes())) == 0 {
				continue
			}
			var d issues.Document
			if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			docs = append(docs, d)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		var d issues.Document
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		docs = append(docs, d)
	}

	for i := range docs {
		key, err := issues.NormalizeKey(docs[i].Key)
		if err != nil {
			return nil, fmt.Errorf("%s: issue %d: %w", path, i+1, err)
		}
		docs[i].Key = key
	}
	return docs, nil
}
