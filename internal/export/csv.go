package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"testforge/internal/types"
)

// maxFileSizeBytes caps the emitted spreadsheet at 50MB; a larger file
// is removed and reported rather than handed to a spreadsheet tool that
// will choke on it.
const maxFileSizeBytes = 50 << 20

// baseColumns is the fixed column order; template custom fields append
// after it.
var baseColumns = []string{
	"ID", "Title", "Preconditions", "Steps", "Expected Results",
	"Priority", "Category", "Boundary Conditions", "Error Scenarios",
}

// Exporter writes test cases as CSV according to a template.
type Exporter struct {
	tmpl Template
	log  *zap.Logger
}

func NewExporter(tmpl Template, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{tmpl: tmpl, log: log}
}

// Export writes the cases to outPath and returns the path actually
// written. A missing or unsupported extension is normalized to .csv;
// the parent directory must already exist.
func (e *Exporter) Export(cases []types.TestCase, outPath string) (string, error) {
	path, err := normalizePath(outPath, e.log)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)

	columns := append(append([]string{}, baseColumns...), e.tmpl.CustomFields...)
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("export: write header: %w", err)
	}
	for _, tc := range cases {
		row := e.row(tc, columns)
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("export: write case %s: %w", tc.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("export: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err == nil && info.Size() > maxFileSizeBytes {
		_ = os.Remove(path)
		return "", fmt.Errorf("export: generated file exceeds %dMB limit", maxFileSizeBytes>>20)
	}
	return path, nil
}

func (e *Exporter) row(tc types.TestCase, columns []string) []string {
	values := map[string]string{
		"ID":                  tc.ID,
		"Title":               tc.Title,
		"Preconditions":       strings.Join(tc.Preconditions, "\n"),
		"Steps":               strings.Join(tc.Steps, "\n"),
		"Expected Results":    strings.Join(tc.ExpectedResults, "\n"),
		"Priority":            tc.Priority,
		"Category":            tc.Category,
		"Boundary Conditions": strings.Join(tc.BoundaryConditions, "\n"),
		"Error Scenarios":     strings.Join(tc.ErrorScenarios, "\n"),
	}
	row := make([]string, 0, len(columns))
	for _, col := range columns {
		row = append(row, e.applyRules(col, values[col]))
	}
	return row
}

// applyRules applies every matching conditional formatting rule to the
// cell in template order.
func (e *Exporter) applyRules(column, value string) string {
	for _, rule := range e.tmpl.Formatting {
		if rule.Column != column || rule.Condition == "" {
			continue
		}
		if !strings.Contains(value, rule.Condition) {
			continue
		}
		switch rule.Format {
		case FormatPrefix:
			value = "! " + value
		case FormatUppercase:
			value = strings.ToUpper(value)
		case FormatHighlight:
			value = "*** " + value + " ***"
		default:
			value = "*** " + value + " ***"
		}
	}
	return value
}

func normalizePath(outPath string, log *zap.Logger) (string, error) {
	if strings.TrimSpace(outPath) == "" {
		return "", fmt.Errorf("export: output path is required")
	}
	ext := filepath.Ext(outPath)
	switch ext {
	case ".csv":
	case "":
		outPath += ".csv"
		log.Info("export: appended default extension", zap.String("path", outPath))
	default:
		outPath = strings.TrimSuffix(outPath, ext) + ".csv"
		log.Warn("export: unsupported extension replaced",
			zap.String("ext", ext), zap.String("path", outPath))
	}
	dir := filepath.Dir(outPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("export: output directory does not exist: %s", dir)
	}
	return outPath, nil
}
