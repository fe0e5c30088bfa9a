package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"loanflow/pkg/models"
	"loanflow/pkg/workflow/activities"
)

// ProcessingInput hands the processing manager the loan file and terms.
type ProcessingInput struct {
	WorkflowID string                 `json:"workflow_id"`
	LoanNumber string                 `json:"loan_number"`
	LoanData   map[string]interface{} `json:"loan_data"`
}

// ProcessingWorkflow derives the loan numbers and renders the Initial
// Disclosures document.
func ProcessingWorkflow(ctx workflow.Context, input ProcessingInput) (string, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())
	workflowID := input.WorkflowID

	var encompass *activities.EncompassActivities
	var docgen *activities.DocGenActivities

	loanData := map[string]interface{}{}
	for k, v := range input.LoanData {
		loanData[k] = v
	}
	if payment, ok := monthlyPaymentFromLoanData(loanData); ok {
		loanData["monthly_payment"] = payment

		principal, _ := numberField(loanData, "loan_amount")
		rate, _ := numberField(loanData, "interest_rate")
		term, ok := numberField(loanData, "term_months")
		if !ok || term <= 0 {
			term = 360
		}
		// First months only; the full schedule is derivable from the terms.
		schedule := activities.AmortizationSchedule(principal, rate, int(term), 6)
		preview := make([]string, 0, len(schedule))
		for _, row := range schedule {
			preview = append(preview, fmt.Sprintf("month %d: payment %s, principal %s, interest %s, balance %s",
				row.Month, row.Payment.StringFixed(2), row.Principal.StringFixed(2),
				row.Interest.StringFixed(2), row.Balance.StringFixed(2)))
		}
		loanData["amortization_preview"] = preview
	}

	var disclosuresPath string
	err := workflow.ExecuteActivity(ctx, docgen.GenerateDocument, activities.GenerateDocumentInput{
		WorkflowID: workflowID,
		DocType:    "Initial Disclosures",
		Data:       loanData,
	}).Get(ctx, &disclosuresPath)
	if err != nil {
		return "", err
	}
	logger.Info("initial disclosures rendered", "path", disclosuresPath)

	// Document verification is a placeholder until a verification vendor is
	// wired in; the disclosures render is the gating artifact.
	err = workflow.ExecuteActivity(ctx, encompass.UpdateLoanMetadata, workflowID, map[string]interface{}{
		"status":     models.StatusProcessing,
		"loan_stage": string(models.StageProcessing),
		"loan_data":  loanData,
		"documents": map[string]interface{}{
			"initial_disclosures": disclosuresPath,
		},
	}).Get(ctx, nil)
	if err != nil {
		return "", err
	}
	return ResultCompleted, nil
}

func monthlyPaymentFromLoanData(loanData map[string]interface{}) (float64, bool) {
	principal, ok := numberField(loanData, "loan_amount")
	if !ok || principal <= 0 {
		return 0, false
	}
	rate, _ := numberField(loanData, "interest_rate")
	term, ok := numberField(loanData, "term_months")
	if !ok || term <= 0 {
		term = 360
	}
	payment, _ := activities.MonthlyPayment(principal, rate, int(term)).Float64()
	return payment, true
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	switch n := m[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
