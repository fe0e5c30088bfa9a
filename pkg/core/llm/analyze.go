package llm

import (
	"context"
	"fmt"
	"strings"

	"loanflow/pkg/utils"
)

// Analysis roles. Each role constrains what the model is asked to extract.
const (
	RoleFinancialAuditor = "financial_auditor"
	RoleIdentityVerifier = "identity_verifier"
	RoleGeneralAnalyst   = "general_analyst"
)

// DocumentAnalysis is the strict output contract of analyze_document. All
// fields are nullable; an analysis with at least a name counts as success.
type DocumentAnalysis struct {
	ApplicantName *string  `json:"applicant_name"`
	AnnualIncome  *int     `json:"annual_income"`
	CreditScore   *int     `json:"credit_score"`
	MissingDocs   []string `json:"missing_docs"`
	Confidence    float64  `json:"confidence"`
}

// Success reports whether the extraction produced at least a name. Missing
// income is acceptable.
func (a *DocumentAnalysis) Success() bool {
	return a != nil && a.ApplicantName != nil && strings.TrimSpace(*a.ApplicantName) != ""
}

var roleInstructions = map[string]string{
	RoleFinancialAuditor: "You are a financial auditor. Extract income figures exactly as stated; annualize per-period amounts. Never estimate a credit score.",
	RoleIdentityVerifier: "You are an identity verifier. Extract the applicant's legal name exactly as printed. Ignore financial figures.",
	RoleGeneralAnalyst:   "You are a loan document analyst. Extract every field you can find; leave the rest null.",
}

const analysisContract = `Respond with a single JSON object and nothing else, with exactly these keys:
{"applicant_name": string|null, "annual_income": integer|null, "credit_score": integer|null, "missing_docs": array of strings|null}`

// Analyzer runs role-constrained document extraction through a provider.
type Analyzer struct {
	provider Provider
}

// NewAnalyzer wraps a provider.
func NewAnalyzer(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// AnalyzeDocument extracts loan facts from document text under a role.
// Unknown roles fall back to the general analyst.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, text, role string) (*DocumentAnalysis, error) {
	system, ok := roleInstructions[role]
	if !ok {
		system = roleInstructions[RoleGeneralAnalyst]
	}
	prompt := fmt.Sprintf("%s\n\nDocument text:\n%s", analysisContract, text)

	raw, err := a.provider.GenerateResponse(ctx, prompt, system, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze_document: %w", err)
	}
	analysis, err := ParseAnalysis(raw)
	if err != nil {
		return nil, fmt.Errorf("analyze_document: %w", err)
	}
	return analysis, nil
}

// ParseAnalysis recovers the contract object from raw model output. It
// extracts the first balanced {...}, tolerating markdown fences and minor
// JSON damage.
func ParseAnalysis(raw string) (*DocumentAnalysis, error) {
	obj, err := utils.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("no JSON object in response: %w", err)
	}
	var analysis DocumentAnalysis
	if err := utils.ParseLenientJSON(obj, &analysis); err != nil {
		return nil, fmt.Errorf("contract violation: %w", err)
	}
	if analysis.Confidence == 0 {
		analysis.Confidence = defaultConfidence(&analysis)
	}
	return &analysis, nil
}

// defaultConfidence scores an analysis by how much of the contract it
// filled, mirroring how the extraction quality is judged downstream.
func defaultConfidence(a *DocumentAnalysis) float64 {
	score := 0.0
	if a.ApplicantName != nil && *a.ApplicantName != "" {
		score += 0.5
	}
	if a.AnnualIncome != nil {
		score += 0.3
	}
	if a.CreditScore != nil {
		score += 0.2
	}
	return score
}
