package models

import "time"

// =============================================================================
// DURABLE LOAN STATE - owned by the store, written through activities only
// =============================================================================

// LoanStage is the workflow stage ladder. Stages advance monotonically except
// ARCHIVED, which is reachable from any stage on rejection or timeout.
type LoanStage string

const (
	StageLeadCapture  LoanStage = "LEAD_CAPTURE"
	StageProcessing   LoanStage = "PROCESSING"
	StageUnderwriting LoanStage = "UNDERWRITING"
	StageClosing      LoanStage = "CLOSING"
	StageArchived     LoanStage = "ARCHIVED"
)

var stageOrder = map[LoanStage]int{
	StageLeadCapture:  0,
	StageProcessing:   1,
	StageUnderwriting: 2,
	StageClosing:      3,
	StageArchived:     4,
}

// CanAdvance reports whether moving from -> to respects stage monotonicity.
func CanAdvance(from, to LoanStage) bool {
	if to == StageArchived {
		return true
	}
	return stageOrder[to] > stageOrder[from]
}

// User-visible status strings (the "status" scalar column).
const (
	StatusSubmitted            = "Submitted"
	StatusProcessing           = "Processing"
	StatusPendingUnderwriting  = "Pending Underwriting Decision"
	StatusWaitingForSignature  = "Waiting for Signature"
	StatusUnderwritingComplete = "Underwriting Complete"
	StatusClearToClose         = "Clear to Close"
	StatusClosingConditions    = "Closing with Conditions"
	StatusFunded               = "Funded"
	StatusRejectedByManager    = "Rejected by Manager"
	StatusRejectedByUW         = "Rejected by Underwriter"
	StatusWithdrawnTimeout     = "Withdrawn (Timeout)"
	StatusFailedToStart        = "Failed to Start"
)

// Underwriting decisions recorded on the durable row.
const (
	DecisionApproved  = "approved"
	DecisionRejected  = "rejected"
	DecisionWithdrawn = "withdrawn"
)

// LoanApplication is the durable application record. Lifecycle: created at
// workflow start, updated at each stage transition, IsLocked true while the
// workflow waits on a human signal, finalized at ARCHIVED.
type LoanApplication struct {
	ID                        string                 `json:"id"`
	WorkflowID                string                 `json:"workflow_id"`
	BorrowerName              string                 `json:"borrower_name"`
	BorrowerEmail             string                 `json:"borrower_email"`
	LoanAmount                float64                `json:"loan_amount"`
	PropertyValue             *float64               `json:"property_value,omitempty"`
	DownPayment               *float64               `json:"down_payment,omitempty"`
	Status                    string                 `json:"status"`
	LoanStage                 LoanStage              `json:"loan_stage"`
	IsLocked                  bool                   `json:"is_locked"`
	UnderwritingDecision      string                 `json:"underwriting_decision,omitempty"`
	UnderwritingDecisionReason string                `json:"underwriting_decision_reason,omitempty"`
	UnderwritingDecidedAt     *time.Time             `json:"underwriting_decided_at,omitempty"`
	UnderwritingDecidedBy     string                 `json:"underwriting_decided_by,omitempty"`
	AutomatedUWDecision       string                 `json:"automated_uw_decision,omitempty"`
	RiskScore                 *float64               `json:"risk_score,omitempty"`
	AIAnalysis                string                 `json:"ai_analysis,omitempty"`
	LoanNumber                string                 `json:"loan_number,omitempty"`
	CreatedAt                 time.Time              `json:"created_at"`
	UpdatedAt                 time.Time              `json:"updated_at"`
	ApplicationMetadata       map[string]interface{} `json:"application_metadata,omitempty"`
}

// WorkflowLogEntry is one append-only audit line, exposed via the get_logs query.
type WorkflowLogEntry struct {
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Stage     LoanStage `json:"stage"`
}
