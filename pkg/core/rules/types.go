// Package rules interprets per-document rule files and extracts fields into
// either a flat key->value map or a nested canonical partial. Rule kinds span
// two input modalities: Markdown (heading, key_value, table) and OCR text
// (checkbox, positional, section), with regex, static and computed usable on
// both.
package rules

import "loanflow/pkg/models"

// Rule is one declaration in a document's rule file. Destination routing:
// flat mode uses Key (Groups fan out through GroupsKeys); nested mode uses
// TargetPath (Groups map to paths).
type Rule struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`

	Key        string            `yaml:"key,omitempty"`
	TargetPath string            `yaml:"target_path,omitempty"`
	Groups     map[string]string `yaml:"groups,omitempty"`
	GroupsKeys map[string]string `yaml:"groups_keys,omitempty"`

	Transform string `yaml:"transform,omitempty"`
	Numeric   bool   `yaml:"numeric,omitempty"`

	// heading
	Level int    `yaml:"level,omitempty"`
	Match string `yaml:"match,omitempty"`

	// key_value
	Label string `yaml:"label,omitempty"`

	// table
	Table *TableSpec `yaml:"table,omitempty"`

	// checkbox
	Anchor  string           `yaml:"anchor,omitempty"`
	Options []CheckboxOption `yaml:"options,omitempty"`
	Window  int              `yaml:"window,omitempty"`

	// positional
	Direction string `yaml:"direction,omitempty"` // after | right | below
	Capture   string `yaml:"capture,omitempty"`
	Skip      int    `yaml:"skip,omitempty"`

	// section
	StartMarker string `yaml:"start_marker,omitempty"`
	EndMarker   string `yaml:"end_marker,omitempty"`

	// regex
	Pattern string `yaml:"pattern,omitempty"`
	Flags   string `yaml:"flags,omitempty"`
	Group   int    `yaml:"group,omitempty"`

	// static
	Value interface{} `yaml:"value,omitempty"`

	// computed
	From string `yaml:"from,omitempty"`
}

// TableSpec identifies a Markdown pipe table by header keywords (all must
// appear within the first rows) and describes what to take from it: either
// specific cells (row label x column name) or every data row as a sub-record
// through ColumnMap.
type TableSpec struct {
	HeaderKeywords []string          `yaml:"header_keywords"`
	Cells          []CellPick        `yaml:"cells,omitempty"`
	ColumnMap      map[string]string `yaml:"column_map,omitempty"` // column name -> sub-record field
	SkipHeaderRows int               `yaml:"skip_header_rows,omitempty"`
	SkipTotalRows  bool              `yaml:"skip_total_rows,omitempty"`
	StringColumns  []string          `yaml:"string_columns,omitempty"` // columns kept as strings; others parsed as numbers
}

// CellPick selects one table cell.
type CellPick struct {
	RowLabel   string `yaml:"row_label"`
	Column     string `yaml:"column"`
	Key        string `yaml:"key,omitempty"`
	TargetPath string `yaml:"target_path,omitempty"`
	Numeric    bool   `yaml:"numeric,omitempty"`
}

// CheckboxOption is one selectable option under a checkbox anchor.
type CheckboxOption struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// RuleFile is the full per-document declaration.
type RuleFile struct {
	DocumentType models.DocumentType `yaml:"document_type"`
	Rules        []*Rule             `yaml:"rules"`
}

// RuleStatus classifies the outcome of applying one rule.
type RuleStatus string

const (
	StatusApplied RuleStatus = "applied"
	StatusNoMatch RuleStatus = "no_match"
	StatusSkipped RuleStatus = "skipped"
	StatusError   RuleStatus = "error"
)

// RuleResult is the per-rule entry in the run report. One bad rule never
// aborts the document; it becomes an error result instead.
type RuleResult struct {
	RuleID string     `json:"rule_id"`
	Type   string     `json:"type"`
	Status RuleStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}
