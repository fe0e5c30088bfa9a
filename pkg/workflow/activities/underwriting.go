package activities

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SignedDisclosuresName is the filename the borrower signature flow writes.
const SignedDisclosuresName = "Initial_Disclosures_SIGNED.pdf"

// RiskInput carries everything the automated rules look at.
type RiskInput struct {
	LoanAmount        float64 `json:"loan_amount"`
	VerifiedIncome    float64 `json:"verified_income"`
	CreditScore       *int    `json:"credit_score,omitempty"`
	AverageConfidence float64 `json:"average_confidence"`
	IncomeMismatch    bool    `json:"income_mismatch"`
}

// RiskOutput is the rule verdict.
type RiskOutput struct {
	Issues          []string `json:"issues"`
	CreditScoreUsed int      `json:"credit_score_used"`
	DTI             float64  `json:"dti"`
}

// UnderwritingActivities checks signatures and applies the automated risk
// rules.
type UnderwritingActivities struct {
	uploadsDir string
}

func NewUnderwritingActivities(uploadsDir string) *UnderwritingActivities {
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}
	return &UnderwritingActivities{uploadsDir: uploadsDir}
}

// VerifySignature reports whether the signed disclosures exist for the
// workflow. Absence is a normal answer, not an error.
func (a *UnderwritingActivities) VerifySignature(ctx context.Context, workflowID string) (bool, error) {
	if workflowID == "" {
		return false, fmt.Errorf("verify_signature: workflow id is required")
	}
	path := filepath.Join(a.uploadsDir, workflowID, SignedDisclosuresName)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify_signature: %w", err)
	}
	return !info.IsDir(), nil
}

// EvaluateRisk applies the automated rules and returns every violation.
func (a *UnderwritingActivities) EvaluateRisk(ctx context.Context, input RiskInput) (RiskOutput, error) {
	out := EvaluateRiskRules(input)
	log.Printf("[Underwriting] risk: %d issue(s), credit=%d, dti=%.1f", len(out.Issues), out.CreditScoreUsed, out.DTI)
	return out, nil
}

// EvaluateRiskRules is the pure rule set behind evaluate_risk:
// loan below $1M, credit above 700, debt-to-income below 43%, and no income
// mismatch flag. The payment estimate is loan_amount * 0.005.
func EvaluateRiskRules(input RiskInput) RiskOutput {
	out := RiskOutput{CreditScoreUsed: EstimateCreditScore(input.CreditScore, input.AverageConfidence)}

	if input.LoanAmount >= 1_000_000 {
		out.Issues = append(out.Issues, fmt.Sprintf("loan amount $%.0f at or above the $1,000,000 limit", input.LoanAmount))
	}
	if out.CreditScoreUsed <= 700 {
		out.Issues = append(out.Issues, fmt.Sprintf("credit score %d not above 700", out.CreditScoreUsed))
	}
	if input.VerifiedIncome > 0 {
		paymentEstimate := input.LoanAmount * 0.005
		out.DTI = paymentEstimate / (input.VerifiedIncome / 12) * 100
		if out.DTI >= 43 {
			out.Issues = append(out.Issues, fmt.Sprintf("debt-to-income %.1f%% at or above 43%%", out.DTI))
		}
	} else {
		out.Issues = append(out.Issues, "no verified income on file")
	}
	if input.IncomeMismatch {
		out.Issues = append(out.Issues, "stated income differs from verified income by more than 20%")
	}
	return out
}

// EstimateCreditScore uses the reported score when present, otherwise maps
// extraction confidence onto [650, 800].
func EstimateCreditScore(reported *int, confidence float64) int {
	if reported != nil {
		return *reported
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return 650 + int(confidence*150)
}
