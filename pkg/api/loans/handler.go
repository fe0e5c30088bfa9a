// Package loans is the borrower-facing application surface: intake, status,
// in-flight edits, review and signature. Handlers talk to the durable store
// directly for reads and to the workflow runtime for everything that mutates
// lifecycle state.
package loans

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"loanflow/pkg/core/store"
	"loanflow/pkg/models"
	"loanflow/pkg/workflow"
)

// Lifecycle abstracts the workflow runtime so handlers can be tested without
// a server connection.
type Lifecycle interface {
	Start(ctx context.Context, workflowID string, input workflow.LoanInput) error
	Signal(ctx context.Context, workflowID, name string, arg interface{}) error
	QueryString(ctx context.Context, workflowID, query string) (string, error)
	Terminate(ctx context.Context, workflowID, reason string) error
}

// Handler serves the loan application endpoints.
type Handler struct {
	repo       *store.LoanRepo
	flow       Lifecycle
	uploadsDir string
}

func NewHandler(repo *store.LoanRepo, flow Lifecycle, uploadsDir string) *Handler {
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}
	return &Handler{repo: repo, flow: flow, uploadsDir: uploadsDir}
}

// Stable filenames per document label inside uploads/<workflow_id>/.
var documentFilenames = map[string]string{
	"id_document":     "ID_Document",
	"tax_document":    "Tax_Return",
	"pay_stub":        "Pay_Stub",
	"credit_document": "Credit_Report",
}

type applyResponse struct {
	WorkflowID string `json:"workflow_id"`
	Message    string `json:"message"`
}

// HandleApply accepts the multipart intake form and starts the lifecycle.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "malformed multipart form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	if name == "" || email == "" {
		http.Error(w, "name and email are required", http.StatusBadRequest)
		return
	}
	income, _ := strconv.ParseFloat(r.FormValue("income"), 64)
	loanAmount, _ := strconv.ParseFloat(r.FormValue("loan_amount"), 64)
	// use_pyramid selected between the flat and hierarchical orchestrations
	// in earlier revisions; both now route to the lifecycle workflow.
	_ = r.FormValue("use_pyramid")

	workflowID := "loan-" + uuid.NewString()
	documents := map[string]string{}
	for label, stem := range documentFilenames {
		file, header, err := r.FormFile(label)
		if err != nil {
			continue
		}
		path, err := h.saveUpload(workflowID, stem, header.Filename, file)
		file.Close()
		if err != nil {
			http.Error(w, "upload failed", http.StatusInternalServerError)
			return
		}
		documents[label] = path
	}

	input := workflow.LoanInput{
		Applicant: workflow.ApplicantInfo{
			Name:  name,
			Email: email,
			Phone: strings.TrimSpace(r.FormValue("phone")),
			SSN:   strings.TrimSpace(r.FormValue("ssn")),
		},
		StatedIncome: income,
		LoanAmount:   loanAmount,
		InterestRate: 6.5,
		TermMonths:   360,
		Documents:    documents,
	}
	if err := h.flow.Start(r.Context(), workflowID, input); err != nil {
		log.Printf("[API] start lifecycle: %v", err)
		http.Error(w, "could not start application", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, applyResponse{
		WorkflowID: workflowID,
		Message:    "application received",
	})
}

// HandleList returns stored applications, optionally filtered by status or
// stage query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	apps, err := h.repo.List(r.Context(), store.ListFilter{
		Status: r.URL.Query().Get("status"),
		Stage:  models.LoanStage(r.URL.Query().Get("stage")),
	})
	if err != nil {
		log.Printf("[API] list applications: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if apps == nil {
		apps = []*models.LoanApplication{}
	}
	writeJSON(w, http.StatusOK, apps)
}

type statusResponse struct {
	WorkflowID string `json:"workflow_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	LoanNumber string `json:"loan_number,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// HandleStatus reports the live stage plus the durable status columns.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	app, err := h.repo.Get(r.Context(), workflowID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		WorkflowID: workflowID,
		Status:     app.Status,
		Stage:      string(app.LoanStage),
		LoanNumber: app.LoanNumber,
	}
	// The live workflow is authoritative while it runs; a finished or failed
	// workflow falls back to the stored columns.
	if stage, err := h.flow.QueryString(r.Context(), workflowID, workflow.QueryCurrentStage); err == nil && stage != "" {
		resp.Stage = stage
	}
	if reason, err := h.flow.QueryString(r.Context(), workflowID, workflow.QueryDecisionReason); err == nil {
		resp.Reason = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

type structureResponse struct {
	Application *models.LoanApplication `json:"application"`
	Documents   []string                `json:"documents"`
}

// HandleStructure returns the durable record plus the uploaded artifacts.
func (h *Handler) HandleStructure(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	app, err := h.repo.Get(r.Context(), workflowID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var documents []string
	entries, err := os.ReadDir(filepath.Join(h.uploadsDir, workflowID))
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				documents = append(documents, entry.Name())
			}
		}
	}
	writeJSON(w, http.StatusOK, structureResponse{Application: app, Documents: documents})
}

// HandleUpdateFields signals one update_field per submitted key.
func (h *Handler) HandleUpdateFields(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		http.Error(w, "body must be a non-empty JSON object", http.StatusBadRequest)
		return
	}
	if _, err := h.repo.Get(r.Context(), workflowID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
		return
	}

	for field, value := range fields {
		err := h.flow.Signal(r.Context(), workflowID, workflow.SignalUpdateField, workflow.UpdateFieldSignal{
			FieldName: field,
			Value:     value,
		})
		if err != nil {
			log.Printf("[API] update_field %s: %v", field, err)
			http.Error(w, "signal failed", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "fields submitted"})
}

type reviewRequest struct {
	WorkflowID string `json:"workflow_id"`
	Approved   bool   `json:"approved"`
}

// HandleReview delivers the human approval verdict.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkflowID == "" {
		http.Error(w, "workflow_id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.repo.Get(r.Context(), req.WorkflowID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
		return
	}
	if err := h.flow.Signal(r.Context(), req.WorkflowID, workflow.SignalHumanApproval, req.Approved); err != nil {
		log.Printf("[API] human_approval: %v", err)
		http.Error(w, "signal failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "review recorded"})
}

// HandleSign copies the disclosures to their signed name and signals the
// signature gate. Missing disclosures mean the borrower is signing too early.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	dir := filepath.Join(h.uploadsDir, workflowID)
	src := filepath.Join(dir, "Initial_Disclosures.pdf")
	dst := filepath.Join(dir, "Initial_Disclosures_SIGNED.pdf")

	raw, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		http.Error(w, "disclosures not generated yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.flow.Signal(r.Context(), workflowID, workflow.SignalBorrowerSignature, true); err != nil {
		log.Printf("[API] borrower_signature: %v", err)
		http.Error(w, "signal failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed"})
}

// HandleDelete removes the application, its uploads and the running workflow.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	if _, err := h.repo.Get(r.Context(), workflowID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
		return
	}

	if err := h.flow.Terminate(r.Context(), workflowID, "deleted via API"); err != nil {
		log.Printf("[API] terminate %s: %v", workflowID, err)
	}
	if err := h.repo.Delete(r.Context(), workflowID); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := os.RemoveAll(filepath.Join(h.uploadsDir, workflowID)); err != nil {
		log.Printf("[API] remove uploads for %s: %v", workflowID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) saveUpload(workflowID, stem, originalName string, file multipart.File) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".pdf"
	}
	dir := filepath.Join(h.uploadsDir, workflowID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, stem+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] response encoding failed: %v", err)
	}
}
