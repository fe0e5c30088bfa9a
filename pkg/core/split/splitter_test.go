package split

import (
	"regexp"
	"testing"

	"loanflow/pkg/models"
)

func sig(docType models.DocumentType, keywords []string, patterns []string) *Signature {
	s := &Signature{
		DocType:      docType,
		Keywords:     keywords,
		MinimumScore: DefaultMinimumScore,
	}
	for _, p := range patterns {
		s.RegexPatterns = append(s.RegexPatterns, p)
		s.compiled = append(s.compiled, regexp.MustCompile("(?i)"+p))
	}
	return s
}

func testSignatures() []*Signature {
	return []*Signature{
		sig(models.DocTypeURLA, []string{"uniform residential", "loan application", "borrower information"}, []string{`form\s*1003`}),
		sig(models.DocTypeW2, []string{"wage and tax statement", "employer identification number"}, []string{`form\s*w-?2\b`}),
		sig(models.DocTypePayStub, []string{"earnings statement", "pay period", "net pay"}, nil),
		sig(models.DocTypeBankStatement, []string{"beginning balance", "ending balance", "statement period"}, nil),
	}
}

func TestScoreNormalization(t *testing.T) {
	s := sig(models.DocTypeW2, []string{"wage and tax statement", "employer identification number"}, []string{`form\s*w-?2\b`})
	// 2 keyword hits + 2*1 regex hit over (2 + 2*1) = 1.0
	score := s.Score("Form W-2 Wage and Tax Statement, Employer Identification Number")
	if score != 1.0 {
		t.Errorf("expected full score 1.0, got %f", score)
	}
	// No hits.
	if s.Score("completely unrelated text") != 0 {
		t.Error("unrelated text must score zero")
	}
}

func TestRequiredKeywordGate(t *testing.T) {
	s := sig(models.DocTypeURLA, []string{"loan application"}, nil)
	s.RequiredKeywords = []string{"uniform residential"}
	if s.Score("loan application for John") != 0 {
		t.Error("missing required keyword must zero the score")
	}
	if s.Score("Uniform Residential Loan Application") == 0 {
		t.Error("satisfied required keyword must allow scoring")
	}
}

func TestGroupPagesMegaDocument(t *testing.T) {
	pages := []string{
		"Uniform Residential Loan Application Form 1003 Borrower Information", // URLA p0
		"continued section 2 assets and liabilities",                          // cont.
		"continued section 8 demographics",                                    // cont.
		"Form W-2 Wage and Tax Statement Employer Identification Number",      // W-2 p3
		"box 12 codes continued",                                              // cont.
		"Earnings Statement Pay Period 01/01-01/15 Net Pay",                   // stub p5
		"deductions detail continued",                                         // cont.
		"Statement Period Beginning Balance Ending Balance",                   // bank p7
		"daily balance detail continued",                                      // cont.
	}

	chunks := GroupPages(testSignatures(), pages)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d: %+v", len(chunks), chunks)
	}
	expected := []struct {
		docType models.DocumentType
		pages   []int
	}{
		{models.DocTypeURLA, []int{0, 1, 2}},
		{models.DocTypeW2, []int{3, 4}},
		{models.DocTypePayStub, []int{5, 6}},
		{models.DocTypeBankStatement, []int{7, 8}},
	}
	for i, want := range expected {
		got := chunks[i]
		if got.DocType != want.docType {
			t.Errorf("chunk %d: expected %s, got %s", i, want.docType, got.DocType)
		}
		if len(got.Pages) != len(want.pages) {
			t.Errorf("chunk %d: expected pages %v, got %v", i, want.pages, got.Pages)
			continue
		}
		for j, p := range want.pages {
			if got.Pages[j] != p {
				t.Errorf("chunk %d page %d: expected %d, got %d", i, j, p, got.Pages[j])
			}
		}
	}
}

func TestGroupPagesSinglePage(t *testing.T) {
	chunks := GroupPages(testSignatures(), []string{"Form W-2 Wage and Tax Statement Employer Identification Number"})
	if len(chunks) != 1 {
		t.Fatalf("single page must yield one chunk, got %d", len(chunks))
	}
}

func TestGroupPagesUnknownFirstPage(t *testing.T) {
	chunks := GroupPages(testSignatures(), []string{"cover letter", "still nothing"})
	if len(chunks) != 1 || chunks[0].DocType != models.DocTypeUnknown {
		t.Fatalf("unmatched first page must open an Unknown group, got %+v", chunks)
	}
	if len(chunks[0].Pages) != 2 {
		t.Errorf("continuity must keep both pages in the Unknown group")
	}
}

func TestEveryPageBelongsToExactlyOneChunk(t *testing.T) {
	pages := []string{
		"Uniform Residential Loan Application Form 1003 Borrower Information",
		"noise", "noise",
		"Earnings Statement Pay Period Net Pay",
		"noise",
	}
	chunks := GroupPages(testSignatures(), pages)
	seen := make(map[int]int)
	for _, c := range chunks {
		for _, p := range c.Pages {
			seen[p]++
		}
	}
	for p := 0; p < len(pages); p++ {
		if seen[p] != 1 {
			t.Errorf("page %d appears %d times", p, seen[p])
		}
	}
}

func TestDetectMegaFromTexts(t *testing.T) {
	mega := []string{
		"Uniform Residential Loan Application Form 1003 Borrower Information",
		"noise",
		"Form W-2 Wage and Tax Statement Employer Identification Number",
		"noise",
		"Statement Period Beginning Balance Ending Balance",
	}
	if !DetectMegaFromTexts(testSignatures(), mega) {
		t.Error("two distinct anchored types must flag a mega-PDF")
	}

	single := []string{
		"Uniform Residential Loan Application Form 1003 Borrower Information",
		"continued", "continued", "continued",
		"uniform residential loan application borrower information form 1003",
	}
	if DetectMegaFromTexts(testSignatures(), single) {
		t.Error("a single-type document is not a mega-PDF")
	}
}

func TestSamplePages(t *testing.T) {
	pages := samplePages(9)
	want := []int{0, 2, 4, 6, 8}
	if len(pages) != len(want) {
		t.Fatalf("expected %v, got %v", want, pages)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("expected %v, got %v", want, pages)
			break
		}
	}
	if got := samplePages(1); len(got) != 1 || got[0] != 0 {
		t.Errorf("one page samples to itself, got %v", got)
	}
}
