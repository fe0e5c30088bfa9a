package llm

import "testing"

func TestParseAnalysisCleanJSON(t *testing.T) {
	raw := `{"applicant_name": "John Q Doe", "annual_income": 120000, "credit_score": 780, "missing_docs": null}`
	a, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Success() {
		t.Error("analysis with a name must be a success")
	}
	if *a.AnnualIncome != 120000 || *a.CreditScore != 780 {
		t.Errorf("got %+v", a)
	}
	if a.Confidence != 1.0 {
		t.Errorf("fully-populated analysis must score 1.0, got %f", a.Confidence)
	}
}

func TestParseAnalysisMarkdownFence(t *testing.T) {
	raw := "Here is the extraction:\n```json\n{\"applicant_name\": \"Jane Doe\", \"annual_income\": null, \"credit_score\": null, \"missing_docs\": [\"pay_stub\"]}\n```"
	a, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Success() {
		t.Error("missing income is acceptable when the name is present")
	}
	if len(a.MissingDocs) != 1 || a.MissingDocs[0] != "pay_stub" {
		t.Errorf("got %+v", a.MissingDocs)
	}
}

func TestParseAnalysisRepairsDamage(t *testing.T) {
	// Trailing comma and single quotes, the usual model damage.
	raw := `{'applicant_name': 'John Doe', 'annual_income': 95000,}`
	a, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Success() || *a.AnnualIncome != 95000 {
		t.Errorf("got %+v", a)
	}
}

func TestParseAnalysisNoObject(t *testing.T) {
	if _, err := ParseAnalysis("I could not process this document."); err == nil {
		t.Error("prose without JSON must fail")
	}
}

func TestAnalysisSuccessRequiresName(t *testing.T) {
	empty := ""
	cases := []*DocumentAnalysis{
		nil,
		{},
		{ApplicantName: &empty},
	}
	for i, a := range cases {
		if a.Success() {
			t.Errorf("case %d: must not be success", i)
		}
	}
}
