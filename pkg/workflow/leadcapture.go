package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loanflow/pkg/core/llm"
	"loanflow/pkg/models"
	"loanflow/pkg/workflow/activities"
)

// Document labels carried in LoanInput.Documents.
const (
	DocLabelID     = "id_document"
	DocLabelTax    = "tax_document"
	DocLabelStub   = "pay_stub"
	DocLabelCredit = "credit_document"
)

// LeadCaptureInput pairs the applicant intake with the lifecycle workflow id
// that owns the uploads directory and the durable record.
type LeadCaptureInput struct {
	WorkflowID string    `json:"workflow_id"`
	Loan       LoanInput `json:"loan"`
}

// LeadCaptureWorkflow opens the loan file, welcomes the borrower and builds
// the income analysis from the uploaded documents. It never gates on a human;
// gating belongs to the parent.
func LeadCaptureWorkflow(ctx workflow.Context, in LeadCaptureInput) (LeadCaptureResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())
	workflowID := in.WorkflowID
	input := in.Loan

	var encompass *activities.EncompassActivities
	var comms *activities.CommsActivities
	var analysis *activities.AnalysisActivities

	var loanFile activities.CreateLoanFileResult
	err := workflow.ExecuteActivity(ctx, encompass.CreateLoanFile, activities.CreateLoanFileInput{
		WorkflowID:    workflowID,
		BorrowerName:  input.Applicant.Name,
		BorrowerEmail: input.Applicant.Email,
		LoanAmount:    input.LoanAmount,
	}).Get(ctx, &loanFile)
	if err != nil {
		return LeadCaptureResult{}, err
	}

	err = workflow.ExecuteActivity(ctx, comms.SendEmail, activities.EmailInput{
		TemplateID: activities.TemplateWelcome,
		Recipient:  input.Applicant.Email,
		Context: map[string]interface{}{
			"borrower_name": input.Applicant.Name,
			"loan_number":   loanFile.LoanNumber,
		},
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("welcome email failed, continuing", "error", err)
	}

	// One role-constrained pass per analyzable document.
	plan := []struct {
		label string
		role  string
	}{
		{DocLabelStub, llm.RoleFinancialAuditor},
		{DocLabelTax, llm.RoleFinancialAuditor},
		{DocLabelCredit, llm.RoleGeneralAnalyst},
		{DocLabelID, llm.RoleIdentityVerifier},
	}

	var analyses []*llm.DocumentAnalysis
	var payStubIncome, taxIncome float64
	for _, step := range plan {
		path, ok := input.Documents[step.label]
		if !ok || path == "" {
			continue
		}

		var text string
		if err := workflow.ExecuteActivity(ctx, analysis.ReadPDFContent, path).Get(ctx, &text); err != nil {
			logger.Warn("document unreadable, skipping", "label", step.label, "error", err)
			continue
		}
		var doc *llm.DocumentAnalysis
		if err := workflow.ExecuteActivity(ctx, analysis.AnalyzeDocument, activities.AnalyzeDocumentInput{
			Text: text,
			Role: step.role,
		}).Get(ctx, &doc); err != nil {
			logger.Warn("analysis failed, skipping", "label", step.label, "error", err)
			continue
		}
		analyses = append(analyses, doc)

		if doc != nil && doc.AnnualIncome != nil {
			switch step.label {
			case DocLabelStub:
				payStubIncome = float64(*doc.AnnualIncome)
			case DocLabelTax:
				taxIncome = float64(*doc.AnnualIncome)
			}
		}
	}

	income := ComputeIncomeAnalysis(input.StatedIncome, analyses, payStubIncome, taxIncome)
	result := LeadCaptureResult{
		Recommendation: Recommend(income),
		LoanNumber:     loanFile.LoanNumber,
		Analysis:       income,
		LoanData: map[string]interface{}{
			"loan_amount":     input.LoanAmount,
			"interest_rate":   input.InterestRate,
			"term_months":     input.TermMonths,
			"stated_income":   input.StatedIncome,
			"verified_income": income.VerifiedIncome,
		},
	}

	err = workflow.ExecuteActivity(ctx, encompass.UpdateLoanMetadata, workflowID, map[string]interface{}{
		"loan_number": loanFile.LoanNumber,
		"status":      models.StatusSubmitted,
		"loan_stage":  string(models.StageLeadCapture),
		"ai_analysis": map[string]interface{}{
			"recommendation":     result.Recommendation,
			"verified_income":    income.VerifiedIncome,
			"income_mismatch":    income.IncomeMismatch,
			"average_confidence": income.AverageConfidence,
		},
	}).Get(ctx, nil)
	if err != nil {
		return LeadCaptureResult{}, err
	}
	return result, nil
}

// defaultActivityOptions is the shared retry envelope for lifecycle
// activities. Non-retryable application errors still fail fast.
func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}
