package activities

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// GenerateDocumentInput describes one templated document render.
type GenerateDocumentInput struct {
	WorkflowID string                 `json:"workflow_id"`
	DocType    string                 `json:"doc_type"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// DocGenActivities renders loan documents into the workflow's uploads
// directory. Renders overwrite their target path, so retries are safe.
type DocGenActivities struct {
	uploadsDir string
}

func NewDocGenActivities(uploadsDir string) *DocGenActivities {
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}
	return &DocGenActivities{uploadsDir: uploadsDir}
}

// GenerateDocument renders a one-page PDF for the document type and returns
// its path. A monthly payment is derived from the loan terms when the caller
// did not supply one.
func (a *DocGenActivities) GenerateDocument(ctx context.Context, input GenerateDocumentInput) (string, error) {
	if input.WorkflowID == "" || input.DocType == "" {
		return "", fmt.Errorf("generate_document: workflow id and doc type are required")
	}

	data := map[string]interface{}{}
	for k, v := range input.Data {
		data[k] = v
	}
	if _, ok := data["monthly_payment"]; !ok {
		if payment, ok := derivePayment(data); ok {
			data["monthly_payment"] = payment
		}
	}

	dir := filepath.Join(a.uploadsDir, input.WorkflowID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("generate_document: %w", err)
	}
	target := filepath.Join(dir, SafeDocName(input.DocType)+".pdf")

	lines := []string{input.DocType, ""}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, data[k]))
	}

	if err := os.WriteFile(target, renderSimplePDF(lines), 0o644); err != nil {
		return "", fmt.Errorf("generate_document: %w", err)
	}
	log.Printf("[DocGen] rendered %s for workflow %s", target, input.WorkflowID)
	return target, nil
}

func derivePayment(data map[string]interface{}) (float64, bool) {
	principal, ok := asNumber(data["loan_amount"])
	if !ok || principal <= 0 {
		return 0, false
	}
	rate, _ := asNumber(data["interest_rate"])
	term, ok := asNumber(data["term_months"])
	if !ok || term <= 0 {
		term = 360
	}
	payment := MonthlyPayment(principal, rate, int(term))
	f, _ := payment.Float64()
	return f, true
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MonthlyPayment computes the standard amortized payment
// P*r*(1+r)^n / ((1+r)^n - 1) at a monthly rate r = annualRatePercent/1200,
// rounded to cents. A zero rate degenerates to straight division.
func MonthlyPayment(principal, annualRatePercent float64, termMonths int) decimal.Decimal {
	p := decimal.NewFromFloat(principal)
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent == 0 {
		return p.Div(n).Round(2)
	}

	r := decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(1200))
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	numerator := p.Mul(r).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return numerator.Div(denominator).Round(2)
}

// AmortizationRow is one month of a fixed-payment schedule.
type AmortizationRow struct {
	Month     int             `json:"month"`
	Payment   decimal.Decimal `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
}

// AmortizationSchedule expands a fixed-rate loan into its monthly schedule.
// maxRows caps the output; zero means the full term. The last row absorbs
// rounding so the final balance is exactly zero.
func AmortizationSchedule(principal, annualRatePercent float64, termMonths, maxRows int) []AmortizationRow {
	if termMonths <= 0 || principal <= 0 {
		return nil
	}
	payment := MonthlyPayment(principal, annualRatePercent, termMonths)
	r := decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(1200))
	balance := decimal.NewFromFloat(principal)

	rows := make([]AmortizationRow, 0, termMonths)
	for month := 1; month <= termMonths; month++ {
		interest := balance.Mul(r).Round(2)
		principalPart := payment.Sub(interest)
		if month == termMonths || principalPart.GreaterThan(balance) {
			principalPart = balance
			payment = principalPart.Add(interest)
		}
		balance = balance.Sub(principalPart)
		rows = append(rows, AmortizationRow{
			Month:     month,
			Payment:   payment,
			Principal: principalPart,
			Interest:  interest,
			Balance:   balance,
		})
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
		if balance.IsZero() {
			break
		}
	}
	return rows
}

// SafeDocName maps a document type to its stable filename stem.
func SafeDocName(docType string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		case c == ' ':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(docType))
}

// renderSimplePDF writes a minimal single-page PDF with one text line per
// entry. Offsets in the xref table are byte-exact so standard extractors can
// read it back.
func renderSimplePDF(lines []string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", escapePDFText(line))
	}
	content.WriteString("ET\n")
	stream := content.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
	}

	var out strings.Builder
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return []byte(out.String())
}

func escapePDFText(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return replacer.Replace(s)
}
