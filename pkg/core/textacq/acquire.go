package textacq

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"loanflow/pkg/models"
	"loanflow/pkg/utils"
)

// MinTextLength is the minimum yield from structured extraction before the
// pipeline retries with OCR.
const MinTextLength = 50

// Supported input extensions. Anything else fails the run.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tiff": true, ".tif": true, ".heic": true,
}

// TextResult is the output of text acquisition.
type TextResult struct {
	Text   string
	Format models.ExtractorKind // markdown (structured) or ocr
	Method string               // structured, ocr, native, no-renderer
}

// Workspace owns a process-scoped temporary directory for staged PDFs and
// rasterized pages. It is released on the run's terminal path, success or
// failure.
type Workspace struct {
	Dir string
}

// NewWorkspace creates the scoped temp directory.
func NewWorkspace() (*Workspace, error) {
	dir, err := os.MkdirTemp("", "loanflow-run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Cleanup deletes the workspace directory.
func (w *Workspace) Cleanup() {
	if w.Dir != "" {
		os.RemoveAll(w.Dir)
	}
}

// Acquirer produces rule-ready text from input files.
type Acquirer struct {
	pdfText   *PDFTextAdapter
	ocr       *OCRAdapter
	imgToPDF  *ImageToPDFAdapter
	tables    *TableConverter
	workspace *Workspace
}

// NewAcquirer wires the default adapters over the given workspace.
func NewAcquirer(ws *Workspace) *Acquirer {
	return &Acquirer{
		pdfText:   NewPDFTextAdapter(),
		ocr:       NewOCRAdapter(),
		imgToPDF:  NewImageToPDFAdapter(),
		tables:    &TableConverter{},
		workspace: ws,
	}
}

// StageInput normalizes the input file to a PDF. Raster images are converted
// to single-page PDFs in the workspace; PDFs and HTML pass through. Returns
// the staged path and whether the document is image-sourced.
func (a *Acquirer) StageInput(ctx context.Context, path string) (string, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf" || ext == ".html" || ext == ".htm":
		return path, false, nil
	case imageExtensions[ext]:
		staged := filepath.Join(a.workspace.Dir, strings.TrimSuffix(filepath.Base(path), ext)+".pdf")
		if err := a.imgToPDF.Convert(ctx, path, staged); err != nil {
			return "", false, fmt.Errorf("image staging failed for %s: %w", path, err)
		}
		return staged, true, nil
	default:
		return "", false, fmt.Errorf("unsupported extension %q for %s", ext, path)
	}
}

// EnsureText produces text for the staged document. Selection rule: when the
// classifier recommends the structure-aware path and the document is not
// image-sourced, use the Markdown path; otherwise use OCR. A structured yield
// below MinTextLength retries with OCR.
func (a *Acquirer) EnsureText(ctx context.Context, stagedPath string, imageSourced bool, classification models.ClassificationResult) (TextResult, error) {
	if classification.RecommendedExtractor == models.ExtractorStructured && !imageSourced {
		text, err := a.structuredText(ctx, stagedPath)
		if err != nil {
			log.Printf("[TextAcq] structured extraction failed for %s: %v, falling back to OCR", stagedPath, err)
		} else if len(strings.TrimSpace(text)) >= MinTextLength {
			return TextResult{Text: text, Format: models.ExtractorStructured, Method: "structured"}, nil
		} else {
			log.Printf("[TextAcq] structured yield below %d chars for %s, retrying with OCR", MinTextLength, stagedPath)
		}
	}
	return a.ocrText(ctx, stagedPath)
}

// structuredText extracts Markdown with preserved table fences. HTML renderer
// output goes through the goquery table converter; native PDFs through
// pdftotext with layout preserved.
func (a *Acquirer) structuredText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		md, err := a.tables.ConvertHTMLToMarkdown(string(raw))
		if err != nil {
			return "", err
		}
		md = utils.CleanMarkdown(md)
		if !utils.ValidateMarkdown(md) {
			return "", fmt.Errorf("converted markdown failed validation")
		}
		return md, nil
	}

	text, err := a.pdfText.ExtractText(ctx, path)
	if err != nil {
		return "", err
	}
	return utils.CleanMarkdown(text), nil
}

// ocrText extracts line-oriented text. Native PDF text is preferred; pages
// with thin native text are rasterized and OCR'd. A missing OCR engine is
// non-fatal: the result is empty text with the no-renderer marker, surfaced
// downstream as low yield.
func (a *Acquirer) ocrText(ctx context.Context, path string) (TextResult, error) {
	native, err := a.pdfText.ExtractText(ctx, path)
	if err == nil && len(strings.TrimSpace(native)) >= MinTextLength {
		return TextResult{Text: native, Format: models.ExtractorOCR, Method: "native"}, nil
	}

	if !a.ocr.IsAvailable() {
		log.Printf("[TextAcq] no OCR engine available for %s", path)
		return TextResult{Text: "", Format: models.ExtractorOCR, Method: "no-renderer"}, nil
	}

	pages, err := a.pdfText.PageCount(ctx, path)
	if err != nil || pages == 0 {
		pages = 1
	}

	var sb strings.Builder
	for p := 1; p <= pages; p++ {
		img, err := a.ocr.RasterizePage(ctx, path, a.workspace.Dir, p, 0)
		if err != nil {
			log.Printf("[TextAcq] rasterize page %d failed: %v", p, err)
			continue
		}
		text, err := a.ocr.RecognizeImage(ctx, img)
		if err != nil {
			log.Printf("[TextAcq] OCR page %d failed: %v", p, err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return TextResult{Text: sb.String(), Format: models.ExtractorOCR, Method: "ocr"}, nil
}

// PageTexts returns per-page native text for classification and splitting.
func (a *Acquirer) PageTexts(ctx context.Context, path string) ([]string, error) {
	count, err := a.pdfText.PageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, count)
	for p := 1; p <= count; p++ {
		text, err := a.pdfText.ExtractPage(ctx, path, p)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// OCRPageBand rasterizes the top band of a page and OCRs it. Used by the
// splitter when native text is too thin to score anchors.
func (a *Acquirer) OCRPageBand(ctx context.Context, path string, page int, topFraction float64) (string, error) {
	if !a.ocr.IsAvailable() {
		return "", nil
	}
	img, err := a.ocr.RasterizePage(ctx, path, a.workspace.Dir, page, topFraction)
	if err != nil {
		return "", err
	}
	return a.ocr.RecognizeImage(ctx, img)
}
