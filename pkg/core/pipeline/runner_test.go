package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loanflow/pkg/core/rules"
	"loanflow/pkg/models"
)

func TestPrepareRunDirUsesInputStem(t *testing.T) {
	r := NewRunner(Config{OutputDir: t.TempDir()})
	dir, err := r.prepareRunDir("/tmp/docs/Borrower URLA.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "Borrower URLA" {
		t.Errorf("run dir stem = %q", filepath.Base(dir))
	}
	// Second call for the same input must be a no-op.
	if _, err := r.prepareRunDir("/tmp/docs/Borrower URLA.pdf"); err != nil {
		t.Fatalf("run dir must be idempotent: %v", err)
	}
}

func TestRenderReportSections(t *testing.T) {
	result := &RunResult{
		InputPath: "w2.pdf",
		Classification: models.ClassificationResult{
			DocumentCategory: models.DocTypeW2,
			Confidence:       0.92,
		},
		Chunks: 1,
		Issues: []models.ValidationIssue{
			{Severity: models.SeverityCritical, Path: "deal.loan_information.loan_amount", Message: "missing"},
		},
		Payload:  models.NewRelationalPayload(),
		Duration: 120 * time.Millisecond,
	}
	result.Payload.Append("customers", models.Row{"_ref": "customer_0"})
	result.Payload.Append("applications", models.Row{"_ref": "application_0"})
	result.Payload.Finalize()

	report := []rules.RuleResult{
		{RuleID: "w2.wages", Status: rules.StatusApplied},
		{RuleID: "w2.ein", Status: rules.StatusNoMatch},
		{RuleID: "w2.bad", Status: rules.StatusError, Detail: "panic: boom"},
	}
	md := renderReport(result, report, []string{"party party_1 has no home table"})

	for _, want := range []string{
		"applied=1 no_match=1 skipped=0 error=1",
		"`w2.bad`: panic: boom",
		"**CRITICAL** `deal.loan_information.loan_amount`: missing",
		"- applications: 1 row(s)",
		"- customers: 1 row(s)",
		"party party_1 has no home table",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
}

func TestRenderReportCleanRun(t *testing.T) {
	result := &RunResult{
		InputPath:      "urla.pdf",
		Classification: models.ClassificationResult{DocumentCategory: models.DocTypeURLA, Confidence: 1},
		Chunks:         1,
	}
	md := renderReport(result, nil, nil)
	if !strings.Contains(md, "No issues.") {
		t.Error("clean run must say so")
	}
	if strings.Contains(md, "## Diagnostics") {
		t.Error("empty diagnostics must not render a section")
	}
}
