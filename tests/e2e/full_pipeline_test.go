package e2e_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loanflow/pkg/core/pipeline"
	"loanflow/pkg/models"
)

// w2HTML is a rendered W-2 the way a structure-aware renderer emits it:
// headings and paragraphs for the identity block, one table for the boxes.
const w2HTML = `<html><body>
<h1>Form W-2 Wage and Tax Statement</h1>
<p>Tax Year 2024</p>
<p>Employee's name: JANE A DOE</p>
<p>Employee SSN 123-45-6789</p>
<p>Employer's name: ACME WIDGETS LLC</p>
<p>Employer EIN 98-7654321</p>
<table>
<tr><th>Box</th><th>Amount</th></tr>
<tr><td>Wages, tips, other compensation</td><td>85,000.00</td></tr>
<tr><td>Federal income tax withheld</td><td>9,150.00</td></tr>
<tr><td>Social security wages</td><td>85,000.00</td></tr>
<tr><td>Medicare wages and tips</td><td>85,000.00</td></tr>
</table>
</body></html>`

func newRunner(t *testing.T, outputDir string) *pipeline.Runner {
	t.Helper()
	return pipeline.NewRunner(pipeline.Config{
		RulesDir:       filepath.Join("..", "..", "configs", "rules"),
		SignaturesPath: filepath.Join("..", "..", "configs", "signatures.yaml"),
		OutputDir:      outputDir,
	})
}

func readArtifact(t *testing.T, runDir, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(runDir, name))
	if err != nil {
		t.Fatalf("artifact %s: %v", name, err)
	}
	return string(raw)
}

// TestE2E_FullPipeline_W2HTML drives one HTML W-2 through every stage and
// checks each persisted artifact. The HTML path is fully in-process, so the
// test needs no external renderers.
func TestE2E_FullPipeline_W2HTML(t *testing.T) {
	inputDir := t.TempDir()
	input := filepath.Join(inputDir, "Borrower W2 2024.html")
	if err := os.WriteFile(input, []byte(w2HTML), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newRunner(t, t.TempDir())
	result, err := runner.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	t.Logf("run dir: %s (%s)", result.RunDir, result.Duration)

	if result.Classification.DocumentCategory != models.DocTypeW2 {
		t.Fatalf("classified as %s (%s)", result.Classification.DocumentCategory, result.Classification.Reasoning)
	}
	if result.Classification.Confidence < 0.6 {
		t.Errorf("confidence = %v", result.Classification.Confidence)
	}
	if result.Chunks != 1 || result.Merged {
		t.Errorf("chunks = %d merged = %v", result.Chunks, result.Merged)
	}
	if filepath.Base(result.RunDir) != "Borrower W2 2024" {
		t.Errorf("run dir = %q", result.RunDir)
	}

	raw := readArtifact(t, result.RunDir, "1_raw.txt")
	if !strings.Contains(raw, "Wage and Tax Statement") {
		t.Errorf("raw text missing title:\n%s", raw)
	}
	if !strings.Contains(raw, "| Wages, tips, other compensation | 85,000.00 |") {
		t.Errorf("pipe table not preserved:\n%s", raw)
	}

	canonical := readArtifact(t, result.RunDir, "2_canonical.json")
	if !strings.Contains(canonical, "JANE A DOE") {
		t.Error("employee name did not reach the canonical record")
	}
	if !strings.Contains(canonical, "7083.33") {
		t.Error("monthly income not derived from annual wages")
	}
	if !strings.Contains(canonical, "123-45-6789") {
		t.Error("SSN did not reach the canonical record")
	}

	if payload := readArtifact(t, result.RunDir, "3_relational_payload.json"); !strings.Contains(payload, "JANE A DOE") {
		t.Error("relational payload missing the borrower row")
	}
	if result.Payload == nil || result.Payload.Metadata.TotalTables == 0 {
		t.Errorf("payload = %+v", result.Payload)
	}

	xml := readArtifact(t, result.RunDir, "4_mismo.xml")
	if !strings.Contains(xml, "<MESSAGE") {
		t.Errorf("MISMO root missing:\n%s", xml)
	}

	report := readArtifact(t, result.RunDir, "report.md")
	for _, section := range []string{"## Rules", "## Validation", "## Relational"} {
		if !strings.Contains(report, section) {
			t.Errorf("report missing %s", section)
		}
	}
}

func TestE2E_RejectsUnsupportedExtension(t *testing.T) {
	inputDir := t.TempDir()
	input := filepath.Join(inputDir, "notes.txt")
	if err := os.WriteFile(input, []byte("not a document"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := newRunner(t, t.TempDir())
	if _, err := runner.Run(context.Background(), input); err == nil {
		t.Fatal("want unsupported extension error")
	} else if !strings.Contains(err.Error(), "unsupported extension") {
		t.Errorf("err = %v", err)
	}
}
