// Package export writes reviewed test cases to spreadsheet files driven
// by a template: column layout, widths, and conditional formatting rules
// come from configuration, not code.
package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FormatRule rewrites matching cells. Condition is a substring match on
// the cell value; Format selects the effect.
type FormatRule struct {
	Column    string `yaml:"column" json:"column"`
	Condition string `yaml:"condition" json:"condition"`
	Format    string `yaml:"format" json:"format"`
}

// Formatting effects.
const (
	FormatHighlight = "highlight"
	FormatPrefix    = "prefix"
	FormatUppercase = "uppercase"
)

// Template is a test case export configuration.
type Template struct {
	Name         string         `yaml:"name" json:"name"`
	Description  string         `yaml:"description" json:"description"`
	Version      string         `yaml:"version" json:"version"`
	CustomFields []string       `yaml:"custom_fields" json:"custom_fields"`
	ColumnWidths map[string]int `yaml:"column_widths" json:"column_widths"`
	Formatting   []FormatRule   `yaml:"conditional_formatting" json:"conditional_formatting"`
}

// DefaultTemplate returns the built-in layout used when no template file
// is supplied.
func DefaultTemplate() Template {
	return Template{
		Name:    "default",
		Version: "1.0",
		ColumnWidths: map[string]int{
			"ID":               10,
			"Title":            50,
			"Preconditions":    50,
			"Steps":            100,
			"Expected Results": 100,
			"Priority":         15,
			"Category":         20,
		},
	}
}

// LoadTemplate reads a template from a YAML (or JSON, which YAML
// subsumes) file. Omitted column widths fall back to the defaults;
// rules missing a required key are dropped with no error, matching a
// permissive read of hand-edited templates.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("export: read template %s: %w", path, err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("export: parse template %s: %w", path, err)
	}
	if t.Version == "" {
		t.Version = "1.0"
	}
	if len(t.ColumnWidths) == 0 {
		t.ColumnWidths = DefaultTemplate().ColumnWidths
	}
	valid := t.Formatting[:0]
	for _, rule := range t.Formatting {
		if rule.Column != "" && rule.Condition != "" && rule.Format != "" {
			valid = append(valid, rule)
		}
	}
	t.Formatting = valid
	return t, nil
}

// AddCustomField appends a custom column with the default width.
func (t *Template) AddCustomField(name string) {
	for _, f := range t.CustomFields {
		if f == name {
			return
		}
	}
	t.CustomFields = append(t.CustomFields, name)
	if t.ColumnWidths == nil {
		t.ColumnWidths = make(map[string]int)
	}
	t.ColumnWidths[name] = 30
}
