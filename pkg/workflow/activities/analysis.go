package activities

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"loanflow/pkg/core/llm"
	"loanflow/pkg/core/textacq"

	"go.temporal.io/sdk/temporal"
)

// AnalyzeDocumentInput pairs document text with the extraction role.
type AnalyzeDocumentInput struct {
	Text string `json:"text"`
	Role string `json:"role"`
}

// AnalysisActivities bridges the lifecycle to the deterministic extraction
// stack: PDF text acquisition and role-constrained LLM analysis.
type AnalysisActivities struct {
	analyzer *llm.Analyzer
}

func NewAnalysisActivities(provider llm.Provider) *AnalysisActivities {
	return &AnalysisActivities{analyzer: llm.NewAnalyzer(provider)}
}

// ReadPDFContent extracts the text of one uploaded document. A missing file
// or unsupported extension is non-retryable; retrying cannot make the upload
// appear.
func (a *AnalysisActivities) ReadPDFContent(ctx context.Context, path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unsupported extension on %s", path), "UnsupportedExtension", nil)
	}

	ws, err := textacq.NewWorkspace()
	if err != nil {
		return "", fmt.Errorf("read_pdf_content: %w", err)
	}
	defer ws.Cleanup()

	acquirer := textacq.NewAcquirer(ws)
	staged, _, err := acquirer.StageInput(ctx, path)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("document %s unreadable", path), "MissingDocument", err)
	}
	adapter := textacq.NewPDFTextAdapter()
	text, err := adapter.ExtractText(ctx, staged)
	if err != nil {
		return "", fmt.Errorf("read_pdf_content: %w", err)
	}
	return text, nil
}

// AnalyzeDocument runs role-constrained extraction over document text.
func (a *AnalysisActivities) AnalyzeDocument(ctx context.Context, input AnalyzeDocumentInput) (*llm.DocumentAnalysis, error) {
	return a.analyzer.AnalyzeDocument(ctx, input.Text, input.Role)
}
