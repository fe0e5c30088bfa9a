package textacq

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableConverter converts HTML tables (as produced by structure-aware PDF
// renderers) to Markdown pipe tables using a virtual grid, so colspan and
// rowspan survive the conversion.
type TableConverter struct{}

// ConvertHTMLToMarkdown rewrites every <table> in the HTML fragment as a
// Markdown pipe table and returns the document as plain Markdown text.
// Non-table content is emitted as paragraphs in document order.
func (tc *TableConverter) ConvertHTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	doc.Find("body > *, body").First().Parent().Find("h1, h2, h3, p, table").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "h1":
			sb.WriteString("# " + strings.TrimSpace(sel.Text()) + "\n\n")
		case "h2":
			sb.WriteString("## " + strings.TrimSpace(sel.Text()) + "\n\n")
		case "h3":
			sb.WriteString("### " + strings.TrimSpace(sel.Text()) + "\n\n")
		case "p":
			text := strings.TrimSpace(sel.Text())
			if text != "" {
				sb.WriteString(text + "\n\n")
			}
		case "table":
			md := tc.convertTable(sel)
			if md != "" {
				sb.WriteString(md + "\n")
			}
		}
	})

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		// No recognizable structure; fall back to the bare text.
		out = strings.TrimSpace(doc.Text())
	}
	return out, nil
}

// convertTable builds the virtual grid for one table and renders it.
func (tc *TableConverter) convertTable(table *goquery.Selection) string {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return ""
	}

	maxCols := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		cols := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			span, _ := strconv.Atoi(cell.AttrOr("colspan", "1"))
			if span < 1 {
				span = 1
			}
			cols += span
		})
		if cols > maxCols {
			maxCols = cols
		}
	})
	if maxCols == 0 {
		return ""
	}

	grid := make([][]string, rows.Length())
	filled := make([][]bool, rows.Length())
	for i := range grid {
		grid[i] = make([]string, maxCols)
		filled[i] = make([]bool, maxCols)
	}

	rows.Each(func(r int, tr *goquery.Selection) {
		c := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			for c < maxCols && filled[r][c] {
				c++
			}
			if c >= maxCols {
				return
			}
			colspan, _ := strconv.Atoi(cell.AttrOr("colspan", "1"))
			rowspan, _ := strconv.Atoi(cell.AttrOr("rowspan", "1"))
			if colspan < 1 {
				colspan = 1
			}
			if rowspan < 1 {
				rowspan = 1
			}
			text := cleanCellText(cell.Text())
			for dr := 0; dr < rowspan && r+dr < len(grid); dr++ {
				for dc := 0; dc < colspan && c+dc < maxCols; dc++ {
					if dr == 0 && dc == 0 {
						grid[r+dr][c+dc] = text
					}
					filled[r+dr][c+dc] = true
				}
			}
			c += colspan
		})
	})

	var sb strings.Builder
	for r, cells := range grid {
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if r == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", maxCols) + "\n")
		}
	}
	return sb.String()
}

// cleanCellText collapses internal whitespace so cell content stays on one line.
func cleanCellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
