package models

// DocumentType is the closed set of documents the pipeline recognizes.
// Values are stable string identities; they are never invented at runtime.
type DocumentType string

const (
	DocTypeURLA                DocumentType = "URLA"
	DocTypeW2                  DocumentType = "W-2 Form"
	DocTypePayStub             DocumentType = "Pay Stub"
	DocTypeBankStatement       DocumentType = "Bank Statement"
	DocTypeTaxReturn           DocumentType = "Tax Return 1040"
	DocTypeAppraisal           DocumentType = "Appraisal 1004"
	DocTypeLoanEstimate        DocumentType = "Loan Estimate"
	DocTypeClosingDisclosure   DocumentType = "Closing Disclosure"
	DocTypeGovernmentID        DocumentType = "Government ID"
	DocTypeGiftLetter          DocumentType = "Gift Letter"
	DocType1099Misc            DocumentType = "1099-MISC"
	DocTypeVAForm              DocumentType = "VA Form"
	DocTypeSCIF                DocumentType = "SCIF"
	DocTypeMilitaryLES         DocumentType = "Military LES"
	DocTypeInvestmentStatement DocumentType = "Investment Statement"
	DocTypeLease               DocumentType = "Lease"
	DocTypeSalesContract       DocumentType = "Sales Contract"
	DocTypeProofOfInsurance    DocumentType = "Proof of Insurance"
	DocTypeUnknown             DocumentType = "Unknown"

	// DocTypeMerged marks a canonical record assembled from several source
	// documents; it never classifies an input file.
	DocTypeMerged DocumentType = "Merged"
)

// ExtractorKind selects the text acquisition path for a document.
type ExtractorKind string

const (
	ExtractorStructured ExtractorKind = "structured"
	ExtractorOCR        ExtractorKind = "ocr"
)

// PDFKind distinguishes digitally-born PDFs from scans.
type PDFKind string

const (
	PDFDigital PDFKind = "digital"
	PDFScanned PDFKind = "scanned"
	PDFNone    PDFKind = "n/a"
)

// ClassificationResult is produced once per input document and never mutated.
type ClassificationResult struct {
	FileType             string        `json:"file_type"`
	PDFType              PDFKind       `json:"pdf_type"`
	DocumentCategory     DocumentType  `json:"document_category"`
	RecommendedExtractor ExtractorKind `json:"recommended_extractor"`
	Confidence           float64       `json:"confidence"`
	Reasoning            string        `json:"reasoning"`
}
