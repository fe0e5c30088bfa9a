package models

import (
	"encoding/json"
	"sort"
	"time"
)

// =============================================================================
// RELATIONAL PAYLOAD - table rowsets with internal ref keys
// =============================================================================

// Row is a single table row. Reserved keys: "_ref" (stable row handle within
// the payload), "_operation" (insert|upsert), and "_<name>_ref" internal
// foreign-key placeholders resolved to real identifiers at insert time.
type Row map[string]interface{}

// Row operations.
const (
	OpInsert = "insert"
	OpUpsert = "upsert"
)

// PayloadMetadata is the payload header.
type PayloadMetadata struct {
	TotalTables int       `json:"total_tables"`
	TotalRows   int       `json:"total_rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RelationalPayload maps table names to ordered row sequences. Invariant:
// every "_x_ref" value refers to some row's "_ref" in the same payload or is nil.
type RelationalPayload struct {
	Metadata PayloadMetadata
	Tables   map[string][]Row
}

// NewRelationalPayload returns an empty payload stamped with now.
func NewRelationalPayload() *RelationalPayload {
	return &RelationalPayload{
		Metadata: PayloadMetadata{GeneratedAt: time.Now().UTC()},
		Tables:   make(map[string][]Row),
	}
}

// Append adds a row to a table preserving order.
func (p *RelationalPayload) Append(table string, row Row) {
	p.Tables[table] = append(p.Tables[table], row)
}

// Finalize recomputes the header counts.
func (p *RelationalPayload) Finalize() {
	p.Metadata.TotalTables = len(p.Tables)
	total := 0
	for _, rows := range p.Tables {
		total += len(rows)
	}
	p.Metadata.TotalRows = total
}

// MarshalJSON emits the payload as a single object: "_metadata" plus one key
// per table, tables in sorted-name order for stable output.
func (p *RelationalPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Tables)+1)
	out["_metadata"] = p.Metadata
	for name, rows := range p.Tables {
		out[name] = rows
	}
	return json.Marshal(out)
}

// TableNames returns the table names in sorted order.
func (p *RelationalPayload) TableNames() []string {
	names := make([]string, 0, len(p.Tables))
	for n := range p.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// VALIDATION ISSUES
// =============================================================================

// IssueSeverity classifies a validation finding.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "CRITICAL"
	SeverityFormat   IssueSeverity = "FORMAT"
	SeverityLogic    IssueSeverity = "LOGIC"
	SeverityType     IssueSeverity = "TYPE"
	SeverityQuality  IssueSeverity = "QUALITY"
)

// ValidationIssue is a non-blocking finding attached to the run report. Path is
// dotted with [i] indexing, e.g. "deal.parties[0].individual.ssn".
type ValidationIssue struct {
	Severity IssueSeverity `json:"severity"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
}
