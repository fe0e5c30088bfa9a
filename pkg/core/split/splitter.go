package split

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"loanflow/pkg/core/textacq"
	"loanflow/pkg/models"
)

// minPageTextLength is the native-text threshold below which the splitter
// re-reads the page through OCR of the top band.
const minPageTextLength = 50

// topBandFraction is how much of a thin page gets rasterized for anchors.
const topBandFraction = 0.30

// Chunk is one per-type segment of the input. Pages are 0-indexed positions
// in the original document; ChunkPath is empty when chunk writing was
// unavailable (page ranges still describe the split).
type Chunk struct {
	DocType   models.DocumentType `json:"doc_type"`
	Pages     []int               `json:"pages"`
	ChunkPath string              `json:"chunk_path,omitempty"`
}

// Splitter runs the anchor & continuity algorithm.
type Splitter struct {
	signatures []*Signature
	acquirer   *textacq.Acquirer
	chunks     *textacq.PDFChunkAdapter
	workspace  *textacq.Workspace
}

// NewSplitter builds a splitter over a loaded signatures table.
func NewSplitter(signatures []*Signature, acquirer *textacq.Acquirer, ws *textacq.Workspace) *Splitter {
	return &Splitter{
		signatures: signatures,
		acquirer:   acquirer,
		chunks:     textacq.NewPDFChunkAdapter(),
		workspace:  ws,
	}
}

// Split segments the PDF into ordered per-type chunks. Every page belongs to
// exactly one chunk; chunk order preserves input order; a first page without
// a match opens an Unknown group.
func (s *Splitter) Split(ctx context.Context, pdfPath string) ([]Chunk, error) {
	pageTexts, err := s.pageTexts(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if len(pageTexts) == 0 {
		return nil, fmt.Errorf("no pages in %s", pdfPath)
	}

	chunks := GroupPages(s.signatures, pageTexts)
	s.writeChunks(ctx, pdfPath, chunks)
	return chunks, nil
}

// GroupPages applies anchor scoring and continuity to per-page text. A page
// matching a signature starts a new group; an unmatched page joins the
// current group; an unmatched first page opens an Unknown group.
func GroupPages(signatures []*Signature, pageTexts []string) []Chunk {
	var chunks []Chunk
	for i, text := range pageTexts {
		sig, score := BestMatch(signatures, text)
		if sig != nil {
			log.Printf("[Splitter] page %d anchors %s (score %.2f)", i, sig.DocType, score)
			chunks = append(chunks, Chunk{DocType: sig.DocType, Pages: []int{i}})
			continue
		}
		if len(chunks) == 0 {
			chunks = append(chunks, Chunk{DocType: models.DocTypeUnknown, Pages: []int{i}})
			continue
		}
		last := &chunks[len(chunks)-1]
		last.Pages = append(last.Pages, i)
	}
	return chunks
}

// DetectMega samples up to 5 pages (first, 25%, 50%, 75%, last) and reports
// whether at least two distinct document types score above threshold.
func (s *Splitter) DetectMega(ctx context.Context, pdfPath string) (bool, error) {
	pageTexts, err := s.pageTexts(ctx, pdfPath)
	if err != nil {
		return false, err
	}
	return DetectMegaFromTexts(s.signatures, pageTexts), nil
}

// DetectMegaFromTexts is the sampling core of DetectMega.
func DetectMegaFromTexts(signatures []*Signature, pageTexts []string) bool {
	n := len(pageTexts)
	if n < 2 {
		return false
	}
	seen := make(map[models.DocumentType]bool)
	for _, p := range samplePages(n) {
		if sig, _ := BestMatch(signatures, pageTexts[p]); sig != nil {
			seen[sig.DocType] = true
		}
	}
	return len(seen) >= 2
}

// samplePages returns up to five distinct page indexes: first, quartiles, last.
func samplePages(n int) []int {
	candidates := []int{0, n / 4, n / 2, (3 * n) / 4, n - 1}
	var out []int
	seen := make(map[int]bool)
	for _, c := range candidates {
		if c >= 0 && c < n && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// pageTexts extracts native text per page, re-reading thin pages through OCR
// of the top band.
func (s *Splitter) pageTexts(ctx context.Context, pdfPath string) ([]string, error) {
	texts, err := s.acquirer.PageTexts(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("page text extraction failed: %w", err)
	}
	for i, text := range texts {
		if len(strings.TrimSpace(text)) >= minPageTextLength {
			continue
		}
		band, err := s.acquirer.OCRPageBand(ctx, pdfPath, i+1, topBandFraction)
		if err != nil {
			log.Printf("[Splitter] top-band OCR failed for page %d: %v", i, err)
			continue
		}
		if band != "" {
			texts[i] = band
		}
	}
	return texts, nil
}

// writeChunks emits one PDF per group. Failures are soft: callers still get
// the page ranges.
func (s *Splitter) writeChunks(ctx context.Context, pdfPath string, chunks []Chunk) {
	if !s.chunks.IsAvailable() {
		log.Printf("[Splitter] chunk writer unavailable, returning page ranges only")
		return
	}
	for i := range chunks {
		c := &chunks[i]
		first, last := c.Pages[0]+1, c.Pages[len(c.Pages)-1]+1
		name := fmt.Sprintf("chunk_%02d_%s.pdf", i, sanitizeName(string(c.DocType)))
		dest := filepath.Join(s.workspace.Dir, name)
		if err := s.chunks.WriteChunk(ctx, pdfPath, first, last, s.workspace.Dir, dest); err != nil {
			log.Printf("[Splitter] failed to write chunk %d: %v", i, err)
			continue
		}
		c.ChunkPath = dest
	}
}

func sanitizeName(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
