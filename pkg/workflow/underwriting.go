package workflow

import (
	"go.temporal.io/sdk/workflow"

	"loanflow/pkg/models"
	"loanflow/pkg/workflow/activities"
)

// UnderwritingInput hands the underwriting manager the loan facts.
type UnderwritingInput struct {
	WorkflowID string         `json:"workflow_id"`
	LoanAmount float64        `json:"loan_amount"`
	Analysis   IncomeAnalysis `json:"analysis"`
}

// UnderwritingWorkflow checks the signed disclosures, then runs the
// automated risk rules. A missing signature short-circuits before any rule
// is evaluated.
func UnderwritingWorkflow(ctx workflow.Context, input UnderwritingInput) (UnderwritingResult, error) {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())
	workflowID := input.WorkflowID

	var encompass *activities.EncompassActivities
	var uw *activities.UnderwritingActivities

	var signed bool
	if err := workflow.ExecuteActivity(ctx, uw.VerifySignature, workflowID).Get(ctx, &signed); err != nil {
		return UnderwritingResult{}, err
	}
	if !signed {
		return UnderwritingResult{Decision: OutcomeSignatureMissing}, nil
	}

	var risk activities.RiskOutput
	err := workflow.ExecuteActivity(ctx, uw.EvaluateRisk, activities.RiskInput{
		LoanAmount:        input.LoanAmount,
		VerifiedIncome:    input.Analysis.VerifiedIncome,
		CreditScore:       input.Analysis.CreditScore,
		AverageConfidence: input.Analysis.AverageConfidence,
		IncomeMismatch:    input.Analysis.IncomeMismatch,
	}).Get(ctx, &risk)
	if err != nil {
		return UnderwritingResult{}, err
	}

	result := UnderwritingResult{
		Decision: OutcomeClearToClose,
		RiskEvaluation: RiskEvaluation{
			Issues:          risk.Issues,
			CreditScoreUsed: risk.CreditScoreUsed,
			DTI:             risk.DTI,
		},
	}
	if len(risk.Issues) > 0 {
		result.Decision = OutcomeReferToHuman
	}

	err = workflow.ExecuteActivity(ctx, encompass.UpdateLoanMetadata, workflowID, map[string]interface{}{
		"status":                models.StatusUnderwritingComplete,
		"loan_stage":            string(models.StageUnderwriting),
		"automated_uw_decision": result.Decision,
		"risk_evaluation": map[string]interface{}{
			"issues":            risk.Issues,
			"credit_score_used": risk.CreditScoreUsed,
			"dti":               risk.DTI,
		},
	}).Get(ctx, nil)
	if err != nil {
		return UnderwritingResult{}, err
	}
	return result, nil
}
