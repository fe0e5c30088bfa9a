package activities

import (
	"context"
	"fmt"
	"log"

	"loanflow/pkg/core/store"
	"loanflow/pkg/models"
)

// CreateLoanFileInput seeds the durable application record.
type CreateLoanFileInput struct {
	WorkflowID    string  `json:"workflow_id"`
	BorrowerName  string  `json:"borrower_name"`
	BorrowerEmail string  `json:"borrower_email"`
	LoanAmount    float64 `json:"loan_amount"`
}

// CreateLoanFileResult reports the allocated loan number.
type CreateLoanFileResult struct {
	LoanNumber string `json:"loan_number"`
}

// EncompassActivities is the loan-origination-system adapter. It owns all
// writes to the durable LoanApplication store; workflows never touch the
// store directly.
type EncompassActivities struct {
	repo *store.LoanRepo
}

func NewEncompassActivities(repo *store.LoanRepo) *EncompassActivities {
	return &EncompassActivities{repo: repo}
}

// CreateLoanFile allocates a mock loan number and persists the application.
// Conditionally idempotent on workflow id: a retry returns the number the
// first attempt allocated.
func (a *EncompassActivities) CreateLoanFile(ctx context.Context, input CreateLoanFileInput) (CreateLoanFileResult, error) {
	app, err := a.repo.Create(ctx, &models.LoanApplication{
		WorkflowID:    input.WorkflowID,
		BorrowerName:  input.BorrowerName,
		BorrowerEmail: input.BorrowerEmail,
		LoanAmount:    input.LoanAmount,
		Status:        models.StatusSubmitted,
		LoanStage:     models.StageLeadCapture,
	})
	if err != nil {
		return CreateLoanFileResult{}, fmt.Errorf("create_loan_file: %w", err)
	}
	log.Printf("[Encompass] loan file %s for workflow %s", app.LoanNumber, input.WorkflowID)
	return CreateLoanFileResult{LoanNumber: app.LoanNumber}, nil
}

// PushFieldUpdate writes one named field onto the loan file, keyed by the
// workflow that owns it.
func (a *EncompassActivities) PushFieldUpdate(ctx context.Context, workflowID, fieldID string, value interface{}) error {
	_, err := a.repo.UpdateMetadata(ctx, workflowID, map[string]interface{}{fieldID: value})
	if err != nil {
		return fmt.Errorf("push_field_update %s: %w", fieldID, err)
	}
	return nil
}

// UpdateLoanMetadata merges a patch into the durable record. The status and
// loan_stage keys update scalar columns last-writer-wins; everything else
// deep-merges into the metadata JSON.
func (a *EncompassActivities) UpdateLoanMetadata(ctx context.Context, workflowID string, patch map[string]interface{}) error {
	_, err := a.repo.UpdateMetadata(ctx, workflowID, patch)
	if err != nil {
		return fmt.Errorf("update_loan_metadata: %w", err)
	}
	return nil
}
