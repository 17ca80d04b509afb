package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hyperjump/semsearch/internal/models"
)

// MaxImportBytes is the largest file import will read.
const MaxImportBytes = 4 << 20

// CollectFiles expands glob patterns (with ** support) into a sorted, de-duplicated
// list of regular files. A pattern naming a directory imports everything below it.
// Paths matching any exclude pattern are dropped.
func CollectFiles(patterns, excludes []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "**", "*")
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || excluded(m, excludes) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func excluded(path string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, err := doublestar.PathMatch(pattern, path); err == nil && ok {
			return true
		}
		if ok, err := doublestar.PathMatch(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadDocument loads a text file as a document input. The title is the file name;
// metadata records the source path. Binary, empty or oversized files are rejected.
func ReadDocument(path string) (models.DocumentInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.DocumentInput{}, err
	}
	if info.Size() > MaxImportBytes {
		return models.DocumentInput{}, fmt.Errorf("%s: file larger than %d bytes", path, MaxImportBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.DocumentInput{}, err
	}
	if !utf8.Valid(data) {
		return models.DocumentInput{}, fmt.Errorf("%s: not a UTF-8 text file", path)
	}
	content := Normalize(string(data))
	if content == "" {
		return models.DocumentInput{}, fmt.Errorf("%s: file is empty", path)
	}
	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}
	return models.DocumentInput{
		Title:   filepath.Base(path),
		Content: content,
		Metadata: models.Metadata{
			"source": source,
			"bytes":  info.Size(),
		},
	}, nil
}

// Normalize converts line endings to \n, strips trailing spaces from each line,
// collapses runs of blank lines into one and trims the result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
