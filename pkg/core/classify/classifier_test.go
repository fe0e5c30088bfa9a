package classify

import (
	"testing"

	"loanflow/pkg/models"
)

func TestClassifyW2(t *testing.T) {
	c := NewClassifier()
	page := `Form W-2 Wage and Tax Statement 2023
Employer identification number (EIN): 12-3456789
1 Wages, tips, other compensation   85,000.00
3 Social security wages             85,000.00
5 Medicare wages and tips           85,000.00`

	res := c.Classify([]string{page}, "pdf", models.PDFDigital)
	if res.DocumentCategory != models.DocTypeW2 {
		t.Fatalf("expected W-2, got %s", res.DocumentCategory)
	}
	if res.RecommendedExtractor != models.ExtractorStructured {
		t.Errorf("W-2 should recommend the structured path, got %s", res.RecommendedExtractor)
	}
	if res.Confidence < 0.6 {
		t.Errorf("confidence too low: %f", res.Confidence)
	}
}

func TestClassifyURLARecommendsOCR(t *testing.T) {
	c := NewClassifier()
	page := `Uniform Residential Loan Application
Fannie Mae Form 1003   Freddie Mac Form 65
Section 1: Borrower Information
Loan and Property Information`

	res := c.Classify([]string{page}, "pdf", models.PDFDigital)
	if res.DocumentCategory != models.DocTypeURLA {
		t.Fatalf("expected URLA, got %s", res.DocumentCategory)
	}
	if res.RecommendedExtractor != models.ExtractorOCR {
		t.Errorf("URLA family maps to ocr, got %s", res.RecommendedExtractor)
	}
}

func TestClassifyEmptyTextReturnsUnknown(t *testing.T) {
	c := NewClassifier()
	res := c.Classify([]string{""}, "pdf", models.PDFScanned)
	if res.DocumentCategory != models.DocTypeUnknown {
		t.Fatalf("expected Unknown, got %s", res.DocumentCategory)
	}
	if res.Confidence != 0.5 {
		t.Errorf("empty text confidence must be 0.5, got %f", res.Confidence)
	}
}

func TestConfidenceCapped(t *testing.T) {
	if got := confidenceFromScore(50); got != 0.95 {
		t.Errorf("confidence must cap at 0.95, got %f", got)
	}
	if got := confidenceFromScore(2); got != 0.7 {
		t.Errorf("score 2 -> 0.7, got %f", got)
	}
}

func TestMultiWordKeywordToleratesFusion(t *testing.T) {
	// OCR often fuses words; every constituent word still appears as a substring.
	text := "wageand tax statementfor employee"
	if !keywordMatches(text, "wage and tax statement") {
		t.Error("fused OCR text should still match the multi-word keyword")
	}
}

func TestClosingDisclosureBeatsLoanEstimate(t *testing.T) {
	c := NewClassifier()
	// "projected payments" appears on both forms; the Closing Disclosure
	// signature has to win on its own terms.
	res := c.Classify([]string{"closing disclosure  loan terms  projected payments  cash to close"}, "pdf", models.PDFDigital)
	if res.DocumentCategory != models.DocTypeClosingDisclosure {
		t.Fatalf("expected Closing Disclosure, got %s", res.DocumentCategory)
	}
}
