package workflow

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"loanflow/pkg/models"
	"loanflow/pkg/workflow/activities"
)

// UnderwritingDecisionTimeout is how long the lifecycle waits for a human
// underwriting verdict before the application is withdrawn.
const UnderwritingDecisionTimeout = 7 * 24 * time.Hour

// lifecycleState is the CEO's queryable state. Signals mutate it between
// suspension points; queries only read it.
type lifecycleState struct {
	stage          models.LoanStage
	loanNumber     string
	decisionReason string
	logs           []models.WorkflowLogEntry
	uwStatus       UnderwritingStatus

	applicant ApplicantInfo
	loanData  map[string]interface{}

	approvalReceived  bool
	approved          bool
	signatureReceived bool
	decisionReceived  bool
	decision          UnderwritingDecisionSignal
}

// LoanLifecycleWorkflow is the supreme state machine: lead capture, human
// approval, processing, the underwriting decision gate, borrower signature,
// automated underwriting, closing and archive. Each stage delegates work to a
// manager child workflow; the CEO owns every gate.
func LoanLifecycleWorkflow(ctx workflow.Context, input LoanInput) (string, error) {
	logger := workflow.GetLogger(ctx)
	workflowID := workflow.GetInfo(ctx).WorkflowExecution.ID

	state := &lifecycleState{
		stage:     models.StageLeadCapture,
		applicant: input.Applicant,
		loanData:  map[string]interface{}{},
	}
	if err := registerHandlers(ctx, state); err != nil {
		return "", err
	}

	actCtx := workflow.WithActivityOptions(ctx, defaultActivityOptions())
	var encompass *activities.EncompassActivities
	var comms *activities.CommsActivities
	var docgen *activities.DocGenActivities

	// Phase 1: lead capture.
	state.log(ctx, "CEO", "lifecycle started")
	var lead LeadCaptureResult
	err := workflow.ExecuteChildWorkflow(childCtx(ctx, workflowID+"-leadcapture"), LeadCaptureWorkflow, LeadCaptureInput{
		WorkflowID: workflowID,
		Loan:       input,
	}).Get(ctx, &lead)
	if err != nil {
		state.log(ctx, "CEO", "lead capture failed: "+err.Error())
		_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
			"status":     models.StatusFailedToStart,
			"loan_stage": string(models.StageArchived),
		})
		return "", err
	}
	state.loanNumber = lead.LoanNumber
	for k, v := range lead.LoanData {
		state.loanData[k] = v
	}
	state.log(ctx, "LeadCapture", "recommendation "+lead.Recommendation)

	// Phase 2: human approval gate.
	state.setLocked(actCtx, encompass, workflowID, true)
	if err := workflow.Await(ctx, func() bool { return state.approvalReceived }); err != nil {
		return "", err
	}
	state.setLocked(actCtx, encompass, workflowID, false)
	if !state.approved {
		state.decisionReason = "rejected at manual review"
		state.log(ctx, "CEO", "application rejected at manual review")
		_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
			"status":     models.StatusRejectedByManager,
			"loan_stage": string(models.StageArchived),
		})
		state.stage = models.StageArchived
		return ResultRejected, nil
	}
	state.log(ctx, "CEO", "application approved at manual review")

	// Phase 3: processing.
	state.stage = models.StageProcessing
	var processed string
	err = workflow.ExecuteChildWorkflow(childCtx(ctx, workflowID+"-processing"), ProcessingWorkflow, ProcessingInput{
		WorkflowID: workflowID,
		LoanNumber: state.loanNumber,
		LoanData:   state.loanData,
	}).Get(ctx, &processed)
	if err != nil {
		return "", err
	}
	state.log(ctx, "Processing", processed)

	// Phase 4: underwriting decision gate with timeout.
	_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
		"status": models.StatusPendingUnderwriting,
	})
	ok, err := workflow.AwaitWithTimeout(ctx, UnderwritingDecisionTimeout, func() bool { return state.decisionReceived })
	if err != nil {
		return "", err
	}
	if !ok {
		state.decisionReason = "no underwriting decision within 7 days"
		state.log(ctx, "CEO", "withdrawn: decision window expired")
		_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
			"status":                models.StatusWithdrawnTimeout,
			"loan_stage":            string(models.StageArchived),
			"underwriting_decision": models.DecisionWithdrawn,
		})
		state.stage = models.StageArchived
		return ResultWithdrawn, nil
	}
	state.uwStatus.Decision = models.DecisionApproved
	if !state.decision.Approved {
		state.uwStatus.Decision = models.DecisionRejected
	}
	state.uwStatus.Reason = state.decision.Reason
	if !state.decision.Approved {
		state.decisionReason = state.decision.Reason
		state.log(ctx, "CEO", "rejected by underwriter: "+state.decision.Reason)
		_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
			"status":                       models.StatusRejectedByUW,
			"loan_stage":                   string(models.StageArchived),
			"underwriting_decision":        models.DecisionRejected,
			"underwriting_decision_reason": state.decision.Reason,
		})
		state.stage = models.StageArchived
		return ResultRejected, nil
	}
	state.log(ctx, "CEO", "underwriting decision: approved")

	// Phase 5: borrower signature gate. No timeout by design of the product.
	_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
		"status": models.StatusWaitingForSignature,
	})
	if err := workflow.Await(ctx, func() bool { return state.signatureReceived }); err != nil {
		return "", err
	}
	state.log(ctx, "CEO", "borrower signature received")

	// Phase 6: automated underwriting.
	state.stage = models.StageUnderwriting
	var uw UnderwritingResult
	err = workflow.ExecuteChildWorkflow(childCtx(ctx, workflowID+"-underwriting"), UnderwritingWorkflow, UnderwritingInput{
		WorkflowID: workflowID,
		LoanAmount: numberOrZero(state.loanData["loan_amount"]),
		Analysis:   lead.Analysis,
	}).Get(ctx, &uw)
	if err != nil {
		return "", err
	}
	state.uwStatus.IsComplete = true
	state.uwStatus.AutomatedDecision = uw.Decision
	state.log(ctx, "Underwriting", uw.Decision)
	if uw.Decision != OutcomeClearToClose {
		state.decisionReason = uw.Decision
		if len(uw.RiskEvaluation.Issues) > 0 {
			state.decisionReason = strings.Join(uw.RiskEvaluation.Issues, "; ")
		}
		_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
			"status":     models.StatusClosingConditions,
			"loan_stage": string(models.StageArchived),
		})
		state.stage = models.StageArchived
		return ResultRejected, nil
	}

	// Phase 7: closing.
	state.stage = models.StageClosing
	var approvalLetter string
	err = workflow.ExecuteActivity(actCtx, docgen.GenerateDocument, activities.GenerateDocumentInput{
		WorkflowID: workflowID,
		DocType:    "Final Approval Letter",
		Data:       state.loanData,
	}).Get(ctx, &approvalLetter)
	if err != nil {
		return "", err
	}
	err = workflow.ExecuteActivity(actCtx, comms.SendEmail, activities.EmailInput{
		TemplateID: activities.TemplateCongratulations,
		Recipient:  state.applicant.Email,
		Context: map[string]interface{}{
			"borrower_name": state.applicant.Name,
			"loan_number":   state.loanNumber,
		},
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("congratulations email failed, continuing", "error", err)
	}

	// Phase 8: archive.
	err = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
		"status":     models.StatusFunded,
		"loan_stage": string(models.StageArchived),
		"documents": map[string]interface{}{
			"final_approval_letter": approvalLetter,
		},
	})
	if err != nil {
		return "", err
	}
	state.stage = models.StageArchived
	state.log(ctx, "CEO", "lifecycle complete")
	return ResultCompleted, nil
}

// registerHandlers wires the signal drains and query handlers. Signal drains
// run in workflow goroutines so edits land between any two suspension points.
func registerHandlers(ctx workflow.Context, state *lifecycleState) error {
	workflow.Go(ctx, func(ctx workflow.Context) {
		ch := workflow.GetSignalChannel(ctx, SignalHumanApproval)
		for {
			var approved bool
			ch.Receive(ctx, &approved)
			state.approved = approved
			state.approvalReceived = true
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		ch := workflow.GetSignalChannel(ctx, SignalBorrowerSignature)
		for {
			var signed bool
			ch.Receive(ctx, &signed)
			if signed {
				state.signatureReceived = true
			}
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		ch := workflow.GetSignalChannel(ctx, SignalUnderwritingDecision)
		for {
			var decision UnderwritingDecisionSignal
			ch.Receive(ctx, &decision)
			state.decision = decision
			state.decisionReceived = true
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		ch := workflow.GetSignalChannel(ctx, SignalUpdateField)
		for {
			var edit UpdateFieldSignal
			ch.Receive(ctx, &edit)
			state.applyFieldUpdate(edit)
		}
	})

	if err := workflow.SetQueryHandler(ctx, QueryCurrentStage, func() (string, error) {
		return string(state.stage), nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(ctx, QueryLoanNumber, func() (string, error) {
		return state.loanNumber, nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(ctx, QueryDecisionReason, func() (string, error) {
		return state.decisionReason, nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(ctx, QueryLogs, func() ([]models.WorkflowLogEntry, error) {
		return state.logs, nil
	}); err != nil {
		return err
	}
	return workflow.SetQueryHandler(ctx, QueryUnderwritingStatus, func() (UnderwritingStatus, error) {
		return state.uwStatus, nil
	})
}

// applyFieldUpdate routes an in-flight edit: applicant_info.* touches the
// applicant record, anything else lands on loan_data.
func (s *lifecycleState) applyFieldUpdate(edit UpdateFieldSignal) {
	if rest, ok := strings.CutPrefix(edit.FieldName, "applicant_info."); ok {
		value, _ := edit.Value.(string)
		switch rest {
		case "name":
			s.applicant.Name = value
		case "email":
			s.applicant.Email = value
		case "phone":
			s.applicant.Phone = value
		case "ssn":
			s.applicant.SSN = value
		}
		return
	}
	s.loanData[edit.FieldName] = edit.Value
}

func (s *lifecycleState) log(ctx workflow.Context, agent, message string) {
	s.logs = append(s.logs, models.WorkflowLogEntry{
		Agent:     agent,
		Message:   message,
		Timestamp: workflow.Now(ctx).UTC(),
		Stage:     s.stage,
	})
}

func (s *lifecycleState) setLocked(actCtx workflow.Context, encompass *activities.EncompassActivities, workflowID string, locked bool) {
	_ = updateMetadata(actCtx, encompass, workflowID, map[string]interface{}{
		"is_locked": locked,
	})
}

func updateMetadata(actCtx workflow.Context, encompass *activities.EncompassActivities, workflowID string, patch map[string]interface{}) error {
	return workflow.ExecuteActivity(actCtx, encompass.UpdateLoanMetadata, workflowID, patch).Get(actCtx, nil)
}

// childCtx pins child workflow options: deterministic ids and a single
// attempt so manager state machines never re-run half-complete.
func childCtx(ctx workflow.Context, childID string) workflow.Context {
	return workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: childID,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
}

func numberOrZero(v interface{}) float64 {
	n, _ := v.(float64)
	return n
}
