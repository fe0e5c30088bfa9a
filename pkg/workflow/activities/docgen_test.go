package activities

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMonthlyPayment(t *testing.T) {
	// 450000 at 6.5% over 360 months.
	got := MonthlyPayment(450000, 6.5, 360)
	if got.StringFixed(2) != "2844.31" {
		t.Errorf("payment = %s", got.StringFixed(2))
	}
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	got := MonthlyPayment(120000, 0, 120)
	if got.StringFixed(2) != "1000.00" {
		t.Errorf("zero-rate payment = %s", got.StringFixed(2))
	}
}

func TestMonthlyPaymentZeroTerm(t *testing.T) {
	if got := MonthlyPayment(120000, 6.5, 0); !got.IsZero() {
		t.Errorf("zero-term payment = %s", got)
	}
}

func TestAmortizationSchedule(t *testing.T) {
	rows := AmortizationSchedule(120000, 0, 120, 0)
	if len(rows) != 120 {
		t.Fatalf("want full term, got %d rows", len(rows))
	}
	if !rows[len(rows)-1].Balance.IsZero() {
		t.Errorf("final balance = %s", rows[len(rows)-1].Balance)
	}

	preview := AmortizationSchedule(450000, 6.5, 360, 6)
	if len(preview) != 6 {
		t.Fatalf("want 6 preview rows, got %d", len(preview))
	}
	// First month interest: 450000 * 6.5/1200 = 2437.50.
	if preview[0].Interest.StringFixed(2) != "2437.50" {
		t.Errorf("first interest = %s", preview[0].Interest.StringFixed(2))
	}
	if preview[0].Payment.StringFixed(2) != "2844.31" {
		t.Errorf("first payment = %s", preview[0].Payment.StringFixed(2))
	}
	if !preview[1].Balance.LessThan(preview[0].Balance) {
		t.Error("balance must decrease")
	}
}

func TestSafeDocName(t *testing.T) {
	cases := map[string]string{
		"Initial Disclosures":    "Initial_Disclosures",
		"Final Approval Letter":  "Final_Approval_Letter",
		"W-2 Form":               "W-2_Form",
		"  padded / name?  ":     "padded__name",
	}
	for in, want := range cases {
		if got := SafeDocName(in); got != want {
			t.Errorf("SafeDocName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateDocumentWritesPDF(t *testing.T) {
	dir := t.TempDir()
	a := NewDocGenActivities(dir)

	path, err := a.GenerateDocument(context.Background(), GenerateDocumentInput{
		WorkflowID: "wf-1",
		DocType:    "Initial Disclosures",
		Data: map[string]interface{}{
			"loan_amount":   450000.0,
			"interest_rate": 6.5,
			"term_months":   360,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "wf-1", "Initial_Disclosures.pdf") {
		t.Errorf("target = %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if !strings.HasPrefix(content, "%PDF-1.4") || !strings.Contains(content, "%%EOF") {
		t.Error("output is not a PDF")
	}
	if !strings.Contains(content, "monthly_payment: 2844.31") {
		t.Errorf("payment must be derived when missing:\n%s", content)
	}
}

func TestGenerateDocumentOverwrites(t *testing.T) {
	dir := t.TempDir()
	a := NewDocGenActivities(dir)
	input := GenerateDocumentInput{WorkflowID: "wf-1", DocType: "Final Approval Letter"}

	first, err := a.GenerateDocument(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.GenerateDocument(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("retry must hit the same path: %s vs %s", first, second)
	}
}
