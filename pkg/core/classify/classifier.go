// Package classify labels a document with one of the closed set of document
// types using keyword and regex scoring over the first pages of text.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"loanflow/pkg/models"
)

// MaxPages is how many leading pages participate in scoring.
const MaxPages = 3

// signature couples a document type with its scoring terms. Declaration order
// breaks score ties.
type signature struct {
	docType  models.DocumentType
	keywords []string
	patterns []*regexp.Regexp
}

// structuredTypes are the complex structured forms that extract more reliably
// through the Markdown path. The URLA family stays on OCR, which is
// empirically more reliable for it.
var structuredTypes = map[models.DocumentType]bool{
	models.DocTypeW2:                true,
	models.DocType1099Misc:          true,
	models.DocTypeLoanEstimate:      true,
	models.DocTypeClosingDisclosure: true,
	models.DocTypeBankStatement:     true,
}

var signatures = []signature{
	{
		docType:  models.DocTypeURLA,
		keywords: []string{"uniform residential loan application", "form 1003", "freddie mac form 65", "borrower information", "loan and property information"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)fannie\s*mae\s*form\s*1003`),
			regexp.MustCompile(`(?i)section\s*1[a-d]?\s*[:.]?\s*borrower`),
		},
	},
	{
		docType:  models.DocTypeW2,
		keywords: []string{"wage and tax statement", "wages, tips, other compensation", "employer identification number", "social security wages", "medicare wages"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)form\s*w-?2\b`),
			regexp.MustCompile(`(?i)copy\s*[bc2]?\s*.{0,20}employee'?s`),
		},
	},
	{
		docType:  models.DocTypePayStub,
		keywords: []string{"earnings statement", "pay period", "gross pay", "net pay", "year to date", "ytd"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)pay\s*(date|period)\s*[:.]?`),
			regexp.MustCompile(`(?i)(current|ytd)\s+(earnings|gross)`),
		},
	},
	{
		docType:  models.DocTypeBankStatement,
		keywords: []string{"account statement", "beginning balance", "ending balance", "deposits and credits", "withdrawals and debits", "statement period"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)account\s*(number|#)\s*[:.]?\s*[x*\d]{4,}`),
			regexp.MustCompile(`(?i)statement\s+period`),
		},
	},
	{
		docType:  models.DocTypeTaxReturn,
		keywords: []string{"u.s. individual income tax return", "adjusted gross income", "filing status", "taxable income", "form 1040"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)form\s*1040\b`),
			regexp.MustCompile(`(?i)department of the treasury.{0,40}internal revenue service`),
		},
	},
	{
		docType:  models.DocTypeAppraisal,
		keywords: []string{"uniform residential appraisal report", "appraised value", "subject property", "comparable sales", "neighborhood"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)form\s*1004\b`),
			regexp.MustCompile(`(?i)opinion\s+of\s+(market\s+)?value`),
		},
	},
	{
		docType:  models.DocTypeLoanEstimate,
		keywords: []string{"loan estimate", "estimated closing costs", "estimated cash to close", "rate lock", "projected payments"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)loan\s+estimate`),
			regexp.MustCompile(`(?i)can this amount increase`),
		},
	},
	{
		docType:  models.DocTypeClosingDisclosure,
		keywords: []string{"closing disclosure", "closing costs", "cash to close", "loan terms", "projected payments"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)closing\s+disclosure`),
			regexp.MustCompile(`(?i)this form is a statement of final loan terms`),
		},
	},
	{
		docType:  models.DocTypeGovernmentID,
		keywords: []string{"driver license", "identification card", "date of birth", "expiration date"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDL\s*(no|#|number)`),
			regexp.MustCompile(`(?i)(class|restrictions|endorsements)\b`),
		},
	},
	{
		docType:  models.DocTypeGiftLetter,
		keywords: []string{"gift letter", "donor", "no repayment", "bona fide gift"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gift\s+(funds|amount)`),
		},
	},
	{
		docType:  models.DocType1099Misc,
		keywords: []string{"miscellaneous information", "nonemployee compensation", "rents", "royalties", "payer"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)form\s*1099-?misc`),
		},
	},
	{
		docType:  models.DocTypeVAForm,
		keywords: []string{"department of veterans affairs", "certificate of eligibility", "va entitlement"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)va\s*form\s*26`),
		},
	},
	{
		docType:  models.DocTypeSCIF,
		keywords: []string{"servicemembers civil relief", "scra", "interest rate cap"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)servicemembers?\s+civil\s+relief\s+act`),
		},
	},
	{
		docType:  models.DocTypeMilitaryLES,
		keywords: []string{"leave and earnings statement", "entitlements", "deductions", "allotments", "basic pay"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bLES\b`),
			regexp.MustCompile(`(?i)defense\s+finance\s+and\s+accounting`),
		},
	},
	{
		docType:  models.DocTypeInvestmentStatement,
		keywords: []string{"investment account", "portfolio summary", "brokerage", "securities", "market value"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(total\s+)?portfolio\s+value`),
		},
	},
	{
		docType:  models.DocTypeLease,
		keywords: []string{"lease agreement", "tenant", "landlord", "monthly rent", "security deposit"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)term\s+of\s+(the\s+)?lease`),
		},
	},
	{
		docType:  models.DocTypeSalesContract,
		keywords: []string{"purchase agreement", "buyer", "seller", "purchase price", "earnest money"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(real\s+estate\s+)?(purchase|sales)\s+(contract|agreement)`),
		},
	},
	{
		docType:  models.DocTypeProofOfInsurance,
		keywords: []string{"evidence of insurance", "policy number", "coverage", "premium", "insured"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(homeowners?|hazard)\s+insurance`),
		},
	},
}

// Classifier scores page text against the signature table.
type Classifier struct{}

// NewClassifier returns a classifier over the built-in signature table.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify scores the first MaxPages pages of text and returns the winning
// document type. Empty text or a zero top score yields Unknown at 0.5.
func (c *Classifier) Classify(pages []string, fileType string, pdfType models.PDFKind) models.ClassificationResult {
	if len(pages) > MaxPages {
		pages = pages[:MaxPages]
	}
	text := strings.ToLower(strings.Join(pages, "\n"))

	best := models.DocTypeUnknown
	bestScore := 0
	var bestHits []string

	for _, sig := range signatures {
		score, hits := scoreSignature(text, sig)
		if score > bestScore {
			best = sig.docType
			bestScore = score
			bestHits = hits
		}
	}

	result := models.ClassificationResult{
		FileType:         fileType,
		PDFType:          pdfType,
		DocumentCategory: best,
		Confidence:       confidenceFromScore(bestScore),
	}
	if best == models.DocTypeUnknown {
		result.RecommendedExtractor = models.ExtractorOCR
		result.Reasoning = "no signature matched"
		return result
	}

	if structuredTypes[best] {
		result.RecommendedExtractor = models.ExtractorStructured
	} else {
		result.RecommendedExtractor = models.ExtractorOCR
	}
	result.Reasoning = fmt.Sprintf("score %d: %s", bestScore, strings.Join(bestHits, ", "))
	return result
}

// scoreSignature awards 1 point per keyword hit and 3 per regex hit. A
// multi-word keyword matches when every constituent word appears anywhere in
// the text, which tolerates OCR word-fusion.
func scoreSignature(lowerText string, sig signature) (int, []string) {
	score := 0
	var hits []string
	for _, kw := range sig.keywords {
		if keywordMatches(lowerText, kw) {
			score++
			hits = append(hits, kw)
		}
	}
	for _, re := range sig.patterns {
		if re.MatchString(lowerText) {
			score += 3
			hits = append(hits, "rx:"+re.String())
		}
	}
	return score, hits
}

func keywordMatches(lowerText, keyword string) bool {
	words := strings.Fields(strings.ToLower(keyword))
	if len(words) == 1 {
		return strings.Contains(lowerText, words[0])
	}
	for _, w := range words {
		if !strings.Contains(lowerText, w) {
			return false
		}
	}
	return true
}

// confidenceFromScore maps a raw score onto [0.5, 0.95].
func confidenceFromScore(score int) float64 {
	conf := 0.5 + 0.1*float64(score)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
