// Package pipeline drives the deterministic document flow: stage, split,
// acquire text, classify, extract, assemble, validate, lower to relational
// rows and emit MISMO. One run owns one output directory and one scoped temp
// workspace that is released on every terminal path.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loanflow/pkg/core/assemble"
	"loanflow/pkg/core/classify"
	"loanflow/pkg/core/merge"
	"loanflow/pkg/core/mismo"
	"loanflow/pkg/core/relational"
	"loanflow/pkg/core/rules"
	"loanflow/pkg/core/split"
	"loanflow/pkg/core/textacq"
	"loanflow/pkg/core/validate"
	"loanflow/pkg/models"
)

// Config carries the constructor-injected paths and options.
type Config struct {
	RulesDir       string
	SignaturesPath string
	OutputDir      string
	MISMOVersion   string
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	InputPath      string
	RunDir         string
	Classification models.ClassificationResult
	Chunks         int
	Merged         bool
	Canonical      *models.CanonicalRecord
	Issues         []models.ValidationIssue
	Payload        *models.RelationalPayload
	MISMOXML       string
	Duration       time.Duration
}

// Runner wires the pipeline components.
type Runner struct {
	cfg         Config
	classifier  *classify.Classifier
	engine      *rules.Engine
	assembler   *assemble.Assembler
	merger      *merge.Merger
	validator   *validate.Validator
	transformer *relational.Transformer
	enforcer    *relational.Enforcer
	emitter     *mismo.Emitter
}

// NewRunner constructs a runner from config.
func NewRunner(cfg Config) *Runner {
	emitter := mismo.NewEmitter()
	if cfg.MISMOVersion != "" {
		emitter.Version = cfg.MISMOVersion
	}
	return &Runner{
		cfg:         cfg,
		classifier:  classify.NewClassifier(),
		engine:      rules.NewEngine(cfg.RulesDir),
		assembler:   assemble.NewAssembler(),
		merger:      merge.NewMerger(),
		validator:   validate.NewValidator(),
		transformer: relational.NewTransformer(),
		enforcer:    relational.NewEnforcer(),
		emitter:     emitter,
	}
}

// Run processes one input document end to end and writes the run artifacts.
func (r *Runner) Run(ctx context.Context, inputPath string) (*RunResult, error) {
	started := time.Now()

	ws, err := textacq.NewWorkspace()
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	defer ws.Cleanup()

	runDir, err := r.prepareRunDir(inputPath)
	if err != nil {
		return nil, err
	}

	acquirer := textacq.NewAcquirer(ws)
	staged, imageSourced, err := acquirer.StageInput(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	result := &RunResult{InputPath: inputPath, RunDir: runDir}

	// Mega-PDF fast path: several document families in one file.
	if strings.EqualFold(filepath.Ext(staged), ".pdf") && !imageSourced {
		signatures, sigErr := split.LoadSignatures(r.cfg.SignaturesPath)
		if sigErr != nil {
			log.Printf("[Pipeline] signatures unavailable: %v, treating input as single document", sigErr)
		} else {
			splitter := split.NewSplitter(signatures, acquirer, ws)
			if mega, _ := splitter.DetectMega(ctx, staged); mega {
				return r.runMega(ctx, splitter, acquirer, staged, result, started)
			}
		}
	}

	classification, text, err := r.classifyAndExtractText(ctx, acquirer, staged, imageSourced)
	if err != nil {
		return nil, err
	}
	result.Classification = classification
	result.Chunks = 1
	r.writeArtifact(runDir, "1_raw.txt", []byte(text.Text))

	flat, ruleReport, err := r.engine.ExtractFlat(classification.DocumentCategory, text.Text)
	if err != nil {
		log.Printf("[Pipeline] no rules for %s: %v", classification.DocumentCategory, err)
		flat = models.FlatExtraction{}
	}

	record, err := r.assembler.Assemble(classification.DocumentCategory, flat)
	if err != nil {
		return nil, err
	}
	record.DocumentMetadata.SourceFile = filepath.Base(inputPath)

	if err := r.lowerAndPersist(result, record, ruleReport, started); err != nil {
		return nil, err
	}
	return result, nil
}

// runMega splits the document, extracts every chunk, merges the flat dicts
// and assembles one canonical record from the merged view.
func (r *Runner) runMega(ctx context.Context, splitter *split.Splitter, acquirer *textacq.Acquirer, staged string, result *RunResult, started time.Time) (*RunResult, error) {
	chunks, err := splitter.Split(ctx, staged)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	result.Chunks = len(chunks)
	result.Merged = true

	var inputs []merge.Input
	var rawParts []string
	var allRuleResults []rules.RuleResult
	for _, chunk := range chunks {
		if chunk.DocType == models.DocTypeUnknown || chunk.ChunkPath == "" {
			continue
		}
		classification, text, err := r.classifyAndExtractText(ctx, acquirer, chunk.ChunkPath, false)
		if err != nil {
			log.Printf("[Pipeline] chunk %s unreadable: %v", chunk.ChunkPath, err)
			continue
		}
		rawParts = append(rawParts, fmt.Sprintf("=== %s ===\n%s", chunk.DocType, text.Text))
		flat, report, err := r.engine.ExtractFlat(classification.DocumentCategory, text.Text)
		if err != nil {
			log.Printf("[Pipeline] no rules for chunk %s: %v", classification.DocumentCategory, err)
			continue
		}
		allRuleResults = append(allRuleResults, report...)
		inputs = append(inputs, merge.Input{DocType: classification.DocumentCategory, Flat: flat})
	}

	r.writeArtifact(result.RunDir, "1_raw.txt", []byte(strings.Join(rawParts, "\n\n")))

	merged := r.merger.Merge(inputs)
	if raw, err := json.MarshalIndent(merged.Flat, "", "  "); err == nil {
		r.writeArtifact(result.RunDir, "1b_merged_flat.json", raw)
	}

	record, err := r.assembler.AssembleMerged(merged.Flat)
	if err != nil {
		return nil, err
	}
	record.DocumentMetadata.SourceFile = filepath.Base(result.InputPath)

	result.Classification = models.ClassificationResult{
		FileType:         "pdf",
		PDFType:          models.PDFDigital,
		DocumentCategory: models.DocTypeMerged,
		Confidence:       1.0,
		Reasoning:        fmt.Sprintf("mega-PDF split into %d chunks", len(chunks)),
	}
	if err := r.lowerAndPersist(result, record, allRuleResults, started); err != nil {
		return nil, err
	}
	return result, nil
}

// classifyAndExtractText samples the first pages for classification, then
// pulls full text along the recommended path.
func (r *Runner) classifyAndExtractText(ctx context.Context, acquirer *textacq.Acquirer, staged string, imageSourced bool) (models.ClassificationResult, textacq.TextResult, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(staged)), ".")

	var sample []string
	pdfType := models.PDFNone
	if ext == "html" || ext == "htm" {
		// HTML carries its text inline, so the raw markup is enough for
		// keyword scoring.
		if raw, err := os.ReadFile(staged); err == nil {
			sample = []string{string(raw)}
		}
	}
	if ext == "pdf" {
		pages, err := acquirer.PageTexts(ctx, staged)
		if err == nil {
			sample = pages
			pdfType = models.PDFDigital
			if joined := strings.TrimSpace(strings.Join(pages, "")); len(joined) < textacq.MinTextLength {
				pdfType = models.PDFScanned
			}
		} else {
			pdfType = models.PDFScanned
		}
	}
	if imageSourced {
		pdfType = models.PDFScanned
	}

	classification := r.classifier.Classify(sample, ext, pdfType)
	text, err := acquirer.EnsureText(ctx, staged, imageSourced, classification)
	if err != nil {
		return classification, textacq.TextResult{}, fmt.Errorf("text acquisition: %w", err)
	}
	return classification, text, nil
}

// lowerAndPersist runs the shared back half: validate, relational, enforce,
// MISMO, artifacts and report.
func (r *Runner) lowerAndPersist(result *RunResult, record *models.CanonicalRecord, ruleReport []rules.RuleResult, started time.Time) error {
	record, issues := r.validator.Validate(record)
	result.Canonical = record
	result.Issues = issues

	payload, diags := r.transformer.Transform(record)
	r.enforcer.Enforce(payload)
	result.Payload = payload

	result.MISMOXML = r.emitter.Emit(record)
	result.Duration = time.Since(started)

	if raw, err := json.MarshalIndent(record, "", "  "); err == nil {
		r.writeArtifact(result.RunDir, "2_canonical.json", raw)
	}
	if raw, err := json.MarshalIndent(payload, "", "  "); err == nil {
		r.writeArtifact(result.RunDir, "3_relational_payload.json", raw)
	}
	r.writeArtifact(result.RunDir, "4_mismo.xml", []byte(result.MISMOXML))
	r.writeArtifact(result.RunDir, "report.md", []byte(renderReport(result, ruleReport, diags)))

	log.Printf("[Pipeline] %s done in %s: %d issue(s), %d table(s)",
		filepath.Base(result.InputPath), result.Duration.Round(time.Millisecond),
		len(issues), payload.Metadata.TotalTables)
	return nil
}

// prepareRunDir creates output/<stem>/ atomically before any writes.
func (r *Runner) prepareRunDir(inputPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	dir := filepath.Join(r.cfg.OutputDir, stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("run dir: %w", err)
	}
	return dir, nil
}

func (r *Runner) writeArtifact(runDir, name string, data []byte) {
	if err := os.WriteFile(filepath.Join(runDir, name), data, 0o644); err != nil {
		log.Printf("[Pipeline] artifact %s not written: %v", name, err)
	}
}
