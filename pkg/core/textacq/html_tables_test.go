package textacq

import (
	"strings"
	"testing"
)

func TestConvertSimpleTable(t *testing.T) {
	html := `<html><body>
<h2>Earnings</h2>
<table>
<tr><th>Description</th><th>Current</th><th>YTD</th></tr>
<tr><td>Regular</td><td>3,500.00</td><td>42,000.00</td></tr>
<tr><td>Overtime</td><td>250.00</td><td>1,100.00</td></tr>
</table>
</body></html>`

	tc := &TableConverter{}
	md, err := tc.ConvertHTMLToMarkdown(html)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(md, "## Earnings") {
		t.Errorf("heading lost: %q", md)
	}
	if !strings.Contains(md, "| Description | Current | YTD |") {
		t.Errorf("header row lost: %q", md)
	}
	if !strings.Contains(md, "| Regular | 3,500.00 | 42,000.00 |") {
		t.Errorf("data row lost: %q", md)
	}
	if !strings.Contains(md, "| --- | --- | --- |") {
		t.Errorf("separator row missing: %q", md)
	}
}

func TestConvertColspanTable(t *testing.T) {
	html := `<table>
<tr><th colspan="2">Wages</th><th>Amount</th></tr>
<tr><td>Box</td><td>1</td><td>85000.00</td></tr>
</table>`

	tc := &TableConverter{}
	md, err := tc.ConvertHTMLToMarkdown(html)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	// Colspan explodes into the virtual grid; cell count must stay rectangular.
	for _, line := range strings.Split(strings.TrimSpace(md), "\n") {
		if strings.HasPrefix(line, "|") && strings.Count(line, "|") != 4 {
			t.Errorf("row not rectangular: %q", line)
		}
	}
}

func TestCleanCellText(t *testing.T) {
	if got := cleanCellText("  Net \n  Pay  "); got != "Net Pay" {
		t.Errorf("got %q", got)
	}
}
