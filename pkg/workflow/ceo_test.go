package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"loanflow/pkg/core/llm"
	"loanflow/pkg/models"
	"loanflow/pkg/workflow/activities"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func newLifecycleEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(LoanLifecycleWorkflow)
	env.RegisterWorkflow(LeadCaptureWorkflow)
	env.RegisterWorkflow(ProcessingWorkflow)
	env.RegisterWorkflow(UnderwritingWorkflow)
	return env
}

// mockLeaves wires every activity the lifecycle touches with benign defaults.
func mockLeaves(env *testsuite.TestWorkflowEnvironment, analysis *llm.DocumentAnalysis) {
	encompass := activities.NewEncompassActivities(nil)
	comms := activities.NewCommsActivities()
	docgen := activities.NewDocGenActivities("")
	uw := activities.NewUnderwritingActivities("")
	anl := activities.NewAnalysisActivities(nil)

	env.OnActivity(encompass.CreateLoanFile, mock.Anything, mock.Anything).
		Return(activities.CreateLoanFileResult{LoanNumber: "LN-TEST0001"}, nil)
	env.OnActivity(encompass.UpdateLoanMetadata, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(comms.SendEmail, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(docgen.GenerateDocument, mock.Anything, mock.Anything).
		Return("uploads/wf/doc.pdf", nil)
	env.OnActivity(anl.ReadPDFContent, mock.Anything, mock.Anything).
		Return("document text", nil)
	env.OnActivity(anl.AnalyzeDocument, mock.Anything, mock.Anything).
		Return(analysis, nil)
	env.OnActivity(uw.VerifySignature, mock.Anything, mock.Anything).Return(true, nil)
	// Real rules behind the mock so risk behavior stays covered end to end.
	env.OnActivity(uw.EvaluateRisk, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, input activities.RiskInput) (activities.RiskOutput, error) {
			return activities.EvaluateRiskRules(input), nil
		})
}

func happyInput() LoanInput {
	return LoanInput{
		Applicant: ApplicantInfo{
			Name:  "John Q Doe",
			Email: "john@example.com",
			SSN:   "123-45-6789",
		},
		StatedIncome: 120000,
		LoanAmount:   450000,
		InterestRate: 6.5,
		TermMonths:   360,
		Documents: map[string]string{
			DocLabelStub: "uploads/wf/Pay_Stub.pdf",
			DocLabelTax:  "uploads/wf/Tax_Return.pdf",
		},
	}
}

func TestLifecycleAutoApprovePath(t *testing.T) {
	env := newLifecycleEnv(t)
	mockLeaves(env, &llm.DocumentAnalysis{
		ApplicantName: strPtr("John Q Doe"),
		AnnualIncome:  intPtr(120000),
		CreditScore:   intPtr(780),
		Confidence:    1.0,
	})

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalHumanApproval, true)
	}, time.Minute)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalUnderwritingDecision, UnderwritingDecisionSignal{Approved: true, Reason: "looks good"})
	}, 2*time.Minute)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalBorrowerSignature, true)
	}, 3*time.Minute)

	env.ExecuteWorkflow(LoanLifecycleWorkflow, happyInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, ResultCompleted, result)

	var stage string
	v, err := env.QueryWorkflow(QueryCurrentStage)
	require.NoError(t, err)
	require.NoError(t, v.Get(&stage))
	require.Equal(t, string(models.StageArchived), stage)

	var loanNumber string
	v, err = env.QueryWorkflow(QueryLoanNumber)
	require.NoError(t, err)
	require.NoError(t, v.Get(&loanNumber))
	require.Equal(t, "LN-TEST0001", loanNumber)

	var status UnderwritingStatus
	v, err = env.QueryWorkflow(QueryUnderwritingStatus)
	require.NoError(t, err)
	require.NoError(t, v.Get(&status))
	require.True(t, status.IsComplete)
	require.Equal(t, OutcomeClearToClose, status.AutomatedDecision)

	var logs []models.WorkflowLogEntry
	v, err = env.QueryWorkflow(QueryLogs)
	require.NoError(t, err)
	require.NoError(t, v.Get(&logs))
	require.NotEmpty(t, logs)
	require.Equal(t, "CEO", logs[0].Agent)
}

func TestLifecycleManagerRejection(t *testing.T) {
	env := newLifecycleEnv(t)
	// Pay stub annualizes far below the stated income.
	mockLeaves(env, &llm.DocumentAnalysis{
		ApplicantName: strPtr("Jane Doe"),
		AnnualIncome:  intPtr(45000),
		Confidence:    0.9,
	})

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalHumanApproval, false)
	}, time.Minute)

	input := happyInput()
	input.StatedIncome = 100000
	env.ExecuteWorkflow(LoanLifecycleWorkflow, input)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, ResultRejected, result)

	var reason string
	v, err := env.QueryWorkflow(QueryDecisionReason)
	require.NoError(t, err)
	require.NoError(t, v.Get(&reason))
	require.Contains(t, reason, "manual review")
}

func TestLifecycleUnderwritingTimeout(t *testing.T) {
	env := newLifecycleEnv(t)
	mockLeaves(env, &llm.DocumentAnalysis{
		ApplicantName: strPtr("John Q Doe"),
		AnnualIncome:  intPtr(120000),
		Confidence:    1.0,
	})

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalHumanApproval, true)
	}, time.Minute)
	// No underwriting decision ever arrives; the 7-day timer must fire.

	env.ExecuteWorkflow(LoanLifecycleWorkflow, happyInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, ResultWithdrawn, result)

	var reason string
	v, err := env.QueryWorkflow(QueryDecisionReason)
	require.NoError(t, err)
	require.NoError(t, v.Get(&reason))
	require.Contains(t, reason, "7 days")
}

func TestLifecycleFieldUpdateVisibleDownstream(t *testing.T) {
	env := newLifecycleEnv(t)

	// Registered before the defaults so this expectation matches first.
	var seenLoanAmount float64
	uw := activities.NewUnderwritingActivities("")
	env.OnActivity(uw.EvaluateRisk, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, input activities.RiskInput) (activities.RiskOutput, error) {
			seenLoanAmount = input.LoanAmount
			return activities.EvaluateRiskRules(input), nil
		})

	mockLeaves(env, &llm.DocumentAnalysis{
		ApplicantName: strPtr("John Q Doe"),
		AnnualIncome:  intPtr(120000),
		CreditScore:   intPtr(780),
		Confidence:    1.0,
	})

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalUpdateField, UpdateFieldSignal{FieldName: "loan_amount", Value: 500000.0})
	}, 30*time.Second)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalHumanApproval, true)
	}, time.Minute)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalUnderwritingDecision, UnderwritingDecisionSignal{Approved: true})
	}, 2*time.Minute)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalBorrowerSignature, true)
	}, 3*time.Minute)

	env.ExecuteWorkflow(LoanLifecycleWorkflow, happyInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, 500000.0, seenLoanAmount)
}
