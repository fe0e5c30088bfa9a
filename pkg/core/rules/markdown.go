package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// MARKDOWN RULE HANDLERS - heading, key_value, table
// =============================================================================

// applyHeading captures the text of a heading at the rule's level whose text
// matches the rule's pattern (substring, case-insensitive).
func applyHeading(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	level := rule.Level
	if level == 0 {
		level = 1
	}
	prefix := strings.Repeat("#", level) + " "
	needle := strings.ToLower(rule.Match)
	for _, line := range doc.Lines() {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		if needle != "" && !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		return finish(rule, out, text)
	}
	return false, nil
}

// applyKeyValue matches "Label: value" on one line, or the Docling form where
// the label line ends with a colon and the value follows after a blank line.
func applyKeyValue(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Label == "" {
		return false, fmt.Errorf("key_value rule requires a label")
	}
	label := strings.ToLower(rule.Label)
	lines := doc.Lines()
	for i, line := range lines {
		lower := strings.ToLower(line)
		idx := strings.Index(lower, label)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(rule.Label):]
		rest = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(rest, ":") {
			value := strings.TrimSpace(rest[1:])
			if value != "" {
				return finish(rule, out, value)
			}
			// Docling form: value appears after a blank line.
			for j := i + 1; j < len(lines) && j <= i+3; j++ {
				candidate := strings.TrimSpace(lines[j])
				if candidate == "" {
					continue
				}
				return finish(rule, out, candidate)
			}
		}
	}
	return false, nil
}

// applyTable finds the target pipe table by header keywords, then applies the
// rule's cell picks or row-emission column map.
func applyTable(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Table == nil {
		return false, fmt.Errorf("table rule requires a table spec")
	}
	spec := rule.Table
	table := findTable(doc.Lines(), spec.HeaderKeywords)
	if table == nil {
		return false, nil
	}
	if len(spec.Cells) > 0 {
		return pickCells(rule, spec, table, out), nil
	}
	if len(spec.ColumnMap) > 0 {
		return emitRows(rule, spec, table, out), nil
	}
	return false, fmt.Errorf("table rule needs cells or column_map")
}

// markdownTable is a parsed pipe table with a resolved header row.
type markdownTable struct {
	header []string
	rows   [][]string
}

// columnIndex resolves a column by case-insensitive substring match against
// the header.
func (t *markdownTable) columnIndex(name string) int {
	needle := strings.ToLower(name)
	for i, h := range t.header {
		if strings.Contains(strings.ToLower(h), needle) {
			return i
		}
	}
	return -1
}

var tableSeparatorRe = regexp.MustCompile(`^[\s|:\-]+$`)

// findTable scans for the first pipe table whose first rows contain every
// header keyword. Returns nil when no table qualifies.
func findTable(lines []string, headerKeywords []string) *markdownTable {
	for i := 0; i < len(lines); i++ {
		if !isTableRow(lines[i]) {
			continue
		}
		// Collect the contiguous run of table rows.
		end := i
		for end < len(lines) && isTableRow(lines[end]) {
			end++
		}
		table := parseTable(lines[i:end])
		if table != nil && tableMatches(table, headerKeywords) {
			return table
		}
		i = end
	}
	return nil
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

func parseTable(lines []string) *markdownTable {
	var rows [][]string
	for _, line := range lines {
		if tableSeparatorRe.MatchString(line) {
			continue
		}
		rows = append(rows, splitTableRow(line))
	}
	if len(rows) == 0 {
		return nil
	}
	return &markdownTable{header: rows[0], rows: rows[1:]}
}

// splitTableRow splits a pipe row into trimmed cells, dropping the empty
// leading and trailing fragments the outer pipes produce.
func splitTableRow(line string) []string {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// tableMatches checks that all header keywords appear within the first three
// rows of the table, header included.
func tableMatches(t *markdownTable, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.Join(t.header, " ")))
	for i := 0; i < len(t.rows) && i < 2; i++ {
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(strings.Join(t.rows[i], " ")))
	}
	haystack := sb.String()
	for _, kw := range keywords {
		if !strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// pickCells extracts each declared cell by row label and column name.
func pickCells(rule *Rule, spec *TableSpec, table *markdownTable, out *Output) bool {
	any := false
	for _, pick := range spec.Cells {
		col := table.columnIndex(pick.Column)
		if col < 0 {
			continue
		}
		for _, row := range table.rows {
			if len(row) == 0 || col >= len(row) {
				continue
			}
			if !strings.Contains(strings.ToLower(row[0]), strings.ToLower(pick.RowLabel)) {
				continue
			}
			var value interface{} = row[col]
			if pick.Numeric {
				f := CleanCurrency(row[col])
				if f == nil {
					break
				}
				value = *f
			}
			cellRule := &Rule{Key: pick.Key, TargetPath: pick.TargetPath}
			if out.emit(cellRule, value) {
				any = true
			}
			break
		}
	}
	return any
}

// emitRows converts every data row into a sub-record per the column map and
// emits the collected slice to the rule's destination.
func emitRows(rule *Rule, spec *TableSpec, table *markdownTable, out *Output) bool {
	stringCols := make(map[string]bool, len(spec.StringColumns))
	for _, c := range spec.StringColumns {
		stringCols[strings.ToLower(c)] = true
	}

	var records []interface{}
	for i, row := range table.rows {
		if i < spec.SkipHeaderRows {
			continue
		}
		if spec.SkipTotalRows && len(row) > 0 && strings.Contains(strings.ToLower(row[0]), "total") {
			continue
		}
		record := make(map[string]interface{})
		for column, field := range spec.ColumnMap {
			idx := table.columnIndex(column)
			if idx < 0 || idx >= len(row) || row[idx] == "" {
				continue
			}
			if stringCols[strings.ToLower(column)] {
				record[field] = row[idx]
				continue
			}
			if f := CleanCurrency(row[idx]); f != nil {
				record[field] = *f
			} else {
				record[field] = row[idx]
			}
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return false
	}
	return out.emit(rule, records)
}
