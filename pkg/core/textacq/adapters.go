// Package textacq turns input files (PDFs and images) into rule-ready text:
// Markdown with preserved table fences on the structured path, line-oriented
// OCR text otherwise. External renderers are wrapped in exec adapters so the
// engines stay pluggable.
package textacq

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// PDFTextAdapter extracts native text from a PDF via the pdftotext CLI.
type PDFTextAdapter struct {
	Timeout time.Duration
}

// NewPDFTextAdapter creates an adapter with default settings.
func NewPDFTextAdapter() *PDFTextAdapter {
	return &PDFTextAdapter{Timeout: 30 * time.Second}
}

// IsAvailable checks if pdftotext is installed and accessible.
func (a *PDFTextAdapter) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "pdftotext", "-v").Run() == nil
}

// ExtractText returns the full native text of the PDF, layout preserved.
func (a *PDFTextAdapter) ExtractText(ctx context.Context, path string) (string, error) {
	return a.run(ctx, path, 0, 0)
}

// ExtractPage returns the native text of a single 1-indexed page.
func (a *PDFTextAdapter) ExtractPage(ctx context.Context, path string, page int) (string, error) {
	return a.run(ctx, path, page, page)
}

func (a *PDFTextAdapter) run(ctx context.Context, path string, first, last int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	args := []string{"-layout"}
	if first > 0 {
		args = append(args, "-f", strconv.Itoa(first), "-l", strconv.Itoa(last))
	}
	args = append(args, path, "-")

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftotext", args...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %v (%s)", err, stderr.String())
	}
	return out.String(), nil
}

// PageCount returns the number of pages via pdfinfo.
func (a *PDFTextAdapter) PageCount(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdfinfo", path)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %v", err)
	}
	for _, line := range bytes.Split(out.Bytes(), []byte("\n")) {
		if bytes.HasPrefix(line, []byte("Pages:")) {
			n, err := strconv.Atoi(string(bytes.TrimSpace(line[len("Pages:"):])))
			if err != nil {
				return 0, err
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("pdfinfo: no Pages line for %s", path)
}

// OCRAdapter runs optical character recognition via the tesseract CLI, with
// pdftoppm rasterizing PDF pages first.
type OCRAdapter struct {
	Timeout time.Duration
	DPI     int
}

// NewOCRAdapter creates an adapter with default settings.
func NewOCRAdapter() *OCRAdapter {
	return &OCRAdapter{Timeout: 120 * time.Second, DPI: 300}
}

// IsAvailable checks if tesseract is installed and accessible.
func (a *OCRAdapter) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "tesseract", "--version").Run() == nil
}

// RecognizeImage OCRs a raster image file to text.
func (a *OCRAdapter) RecognizeImage(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var out, stderr bytes.Buffer
	// "stdout" as the output base makes tesseract write to stdout.
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout", "--psm", "6")
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %v (%s)", err, stderr.String())
	}
	return out.String(), nil
}

// RasterizePage renders one 1-indexed PDF page to a PNG under destDir and
// returns the produced file path. cropTopFraction > 0 limits the render to the
// top band of the page (used by the splitter's anchor scan).
func (a *OCRAdapter) RasterizePage(ctx context.Context, pdfPath, destDir string, page int, cropTopFraction float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	prefix := fmt.Sprintf("%s/page_%d", destDir, page)
	args := []string{
		"-png",
		"-r", strconv.Itoa(a.DPI),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
	}
	if cropTopFraction > 0 && cropTopFraction < 1 {
		// US Letter at the configured DPI; the top band is enough for anchors.
		height := int(float64(a.DPI) * 11.0 * cropTopFraction)
		args = append(args, "-H", strconv.Itoa(height))
	}
	args = append(args, pdfPath, prefix)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %v (%s)", err, stderr.String())
	}
	return prefix + ".png", nil
}

// PDFChunkAdapter writes page-range chunks of a PDF via pdfseparate/pdfunite.
type PDFChunkAdapter struct {
	Timeout time.Duration
}

// NewPDFChunkAdapter creates an adapter with default settings.
func NewPDFChunkAdapter() *PDFChunkAdapter {
	return &PDFChunkAdapter{Timeout: 60 * time.Second}
}

// IsAvailable checks if pdfseparate is installed and accessible.
func (a *PDFChunkAdapter) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "pdfseparate", "-v").Run() == nil
}

// WriteChunk extracts pages [first,last] (1-indexed, inclusive) into destPath.
func (a *PDFChunkAdapter) WriteChunk(ctx context.Context, srcPath string, first, last int, destDir, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	pattern := fmt.Sprintf("%s/chunk_page_%%d.pdf", destDir)
	sep := exec.CommandContext(ctx, "pdfseparate",
		"-f", strconv.Itoa(first), "-l", strconv.Itoa(last), srcPath, pattern)
	if err := sep.Run(); err != nil {
		return fmt.Errorf("pdfseparate failed: %v", err)
	}

	args := make([]string, 0, last-first+2)
	for p := first; p <= last; p++ {
		args = append(args, fmt.Sprintf("%s/chunk_page_%d.pdf", destDir, p))
	}
	args = append(args, destPath)
	if err := exec.CommandContext(ctx, "pdfunite", args...).Run(); err != nil {
		return fmt.Errorf("pdfunite failed: %v", err)
	}
	return nil
}

// ImageToPDFAdapter converts raster images to single-page PDFs via img2pdf.
type ImageToPDFAdapter struct {
	Timeout time.Duration
}

// NewImageToPDFAdapter creates an adapter with default settings.
func NewImageToPDFAdapter() *ImageToPDFAdapter {
	return &ImageToPDFAdapter{Timeout: 30 * time.Second}
}

// Convert writes a single-page PDF for the image at srcPath.
func (a *ImageToPDFAdapter) Convert(ctx context.Context, srcPath, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "img2pdf", srcPath, "-o", destPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("img2pdf failed: %v (%s)", err, stderr.String())
	}
	return nil
}
