// Package document extracts plain text from requirement documents.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions outside the supported
// set. The message carries the offending extension.
var ErrUnsupportedFormat = errors.New("document: unsupported file format")

// supported maps extensions to their extractors. Markdown is read as
// plain text; its markup survives into the prompt, which the generator
// handles fine.
var supported = map[string]bool{
	".txt": true,
	".md":  true,
}

// Extract reads the document and collapses all whitespace runs into
// single spaces, so the downstream prompt carries no layout noise.
// A missing file surfaces as the os.IsNotExist error from the read.
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("document: read %s: %w", path, err)
	}
	return Preprocess(string(data)), nil
}

// Preprocess collapses whitespace runs (spaces, tabs, newlines) into
// single spaces and trims the ends.
func Preprocess(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
