// Package workflow implements the durable loan lifecycle: a CEO workflow
// driving manager child workflows over activity leaves. Workflow code is
// deterministic; every side effect lives in pkg/workflow/activities.
package workflow

import (
	"loanflow/pkg/core/llm"
)

// TaskQueue is the shared queue for workflows and activities.
const TaskQueue = "loan-lifecycle"

// Signal names on the CEO workflow.
const (
	SignalHumanApproval        = "human_approval"
	SignalUpdateField          = "update_field"
	SignalBorrowerSignature    = "borrower_signature"
	SignalUnderwritingDecision = "submit_underwriting_decision"
)

// Query names on the CEO workflow.
const (
	QueryCurrentStage       = "get_current_stage"
	QueryLoanNumber         = "get_loan_number"
	QueryDecisionReason     = "get_decision_reason"
	QueryLogs               = "get_logs"
	QueryUnderwritingStatus = "get_underwriting_status"
)

// Lead capture recommendations.
const (
	RecommendationApproved      = "APPROVED"
	RecommendationManualReview  = "MANUAL_REVIEW"
	RecommendationPendingReview = "PENDING_REVIEW"
)

// Underwriting outcomes.
const (
	OutcomeClearToClose     = "CLEAR_TO_CLOSE"
	OutcomeReferToHuman     = "REFER_TO_HUMAN"
	OutcomeSignatureMissing = "SIGNATURE_MISSING"
)

// Terminal results of the CEO workflow.
const (
	ResultCompleted = "COMPLETED"
	ResultRejected  = "REJECTED"
	ResultWithdrawn = "WITHDRAWN"
)

// ApplicantInfo is the applicant identity as captured at intake.
type ApplicantInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	SSN   string `json:"ssn,omitempty"`
}

// LoanInput starts a lifecycle. Documents maps a document label (id_document,
// tax_document, pay_stub, credit_document) to its staged path under the
// workflow's uploads directory.
type LoanInput struct {
	Applicant    ApplicantInfo     `json:"applicant_info"`
	StatedIncome float64           `json:"stated_income"`
	LoanAmount   float64           `json:"loan_amount"`
	InterestRate float64           `json:"interest_rate,omitempty"`
	TermMonths   int               `json:"term_months,omitempty"`
	Documents    map[string]string `json:"documents,omitempty"`
}

// IncomeAnalysis is the lead-capture income verdict.
type IncomeAnalysis struct {
	StatedIncome      float64 `json:"stated_income"`
	PayStubIncome     float64 `json:"pay_stub_income"`
	TaxIncome         float64 `json:"tax_income"`
	VerifiedIncome    float64 `json:"verified_income"`
	IncomeMismatch    bool    `json:"income_mismatch"`
	AverageConfidence float64 `json:"average_confidence"`
	CreditScore       *int    `json:"credit_score,omitempty"`
}

// LeadCaptureResult is what the lead-capture manager hands back to the CEO.
type LeadCaptureResult struct {
	Recommendation string                 `json:"recommendation"`
	LoanNumber     string                 `json:"loan_number"`
	LoanData       map[string]interface{} `json:"loan_data"`
	Analysis       IncomeAnalysis         `json:"analysis"`
}

// RiskEvaluation is the automated rule verdict from evaluate_risk.
type RiskEvaluation struct {
	Issues          []string `json:"issues"`
	CreditScoreUsed int      `json:"credit_score_used"`
	DTI             float64  `json:"dti"`
}

// UnderwritingResult is what the underwriting manager hands back to the CEO.
type UnderwritingResult struct {
	Decision       string         `json:"decision"`
	RiskEvaluation RiskEvaluation `json:"risk_evaluation"`
}

// UnderwritingStatus answers the get_underwriting_status query.
type UnderwritingStatus struct {
	IsComplete        bool   `json:"is_complete"`
	Decision          string `json:"decision"`
	Reason            string `json:"reason"`
	AutomatedDecision string `json:"automated_decision"`
}

// UpdateFieldSignal carries one in-flight edit from the manager console.
type UpdateFieldSignal struct {
	FieldName string      `json:"field_name"`
	Value     interface{} `json:"value"`
}

// UnderwritingDecisionSignal carries the human underwriting verdict.
type UnderwritingDecisionSignal struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// ComputeIncomeAnalysis folds the per-document extractions into the income
// verdict: verified income is the larger of the two sources and a mismatch is
// a relative gap above 20% of the stated figure.
func ComputeIncomeAnalysis(stated float64, analyses []*llm.DocumentAnalysis, payStub, tax float64) IncomeAnalysis {
	result := IncomeAnalysis{
		StatedIncome:  stated,
		PayStubIncome: payStub,
		TaxIncome:     tax,
	}
	result.VerifiedIncome = payStub
	if tax > result.VerifiedIncome {
		result.VerifiedIncome = tax
	}
	if stated > 0 && result.VerifiedIncome > 0 {
		gap := stated - result.VerifiedIncome
		if gap < 0 {
			gap = -gap
		}
		result.IncomeMismatch = gap/stated > 0.20
	}

	total := 0.0
	for _, a := range analyses {
		if a == nil {
			continue
		}
		total += a.Confidence
		if a.CreditScore != nil && result.CreditScore == nil {
			result.CreditScore = a.CreditScore
		}
	}
	if len(analyses) > 0 {
		result.AverageConfidence = total / float64(len(analyses))
	}
	return result
}

// Recommend maps an income analysis onto the lead-capture recommendation.
func Recommend(analysis IncomeAnalysis) string {
	if analysis.IncomeMismatch {
		return RecommendationManualReview
	}
	if analysis.AverageConfidence > 0.8 {
		return RecommendationApproved
	}
	return RecommendationManualReview
}
