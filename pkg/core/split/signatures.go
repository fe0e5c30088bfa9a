// Package split segments multi-document PDFs into per-type chunks using
// anchor signatures with page continuity.
package split

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"loanflow/pkg/models"
)

// DefaultMinimumScore applies when a signature declares none.
const DefaultMinimumScore = 0.3

// Signature identifies the first page of a document type: required keywords
// must all match; keywords score 1 point, regex patterns 2.
type Signature struct {
	DocType          models.DocumentType `yaml:"doc_type"`
	RequiredKeywords []string            `yaml:"required_keywords"`
	Keywords         []string            `yaml:"keywords"`
	RegexPatterns    []string            `yaml:"regex_patterns"`
	MinimumScore     float64             `yaml:"minimum_score"`

	compiled []*regexp.Regexp
}

type signatureFile struct {
	Signatures []*Signature `yaml:"signatures"`
}

// LoadSignatures reads and compiles the signatures table from a YAML file.
func LoadSignatures(path string) ([]*Signature, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signatures: %w", err)
	}
	var file signatureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse signatures: %w", err)
	}
	for _, sig := range file.Signatures {
		if sig.MinimumScore == 0 {
			sig.MinimumScore = DefaultMinimumScore
		}
		for _, pattern := range sig.RegexPatterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("signature %s: bad pattern %q: %w", sig.DocType, pattern, err)
			}
			sig.compiled = append(sig.compiled, re)
		}
	}
	return file.Signatures, nil
}

// Score rates page text against the signature: (keyword_hits + 2*regex_hits)
// normalized by (len(keywords) + 2*len(regex)). Zero when any required
// keyword is missing or the signature is empty.
func (s *Signature) Score(pageText string) float64 {
	lower := strings.ToLower(pageText)

	for _, req := range s.RequiredKeywords {
		if !strings.Contains(lower, strings.ToLower(req)) {
			return 0
		}
	}

	denominator := float64(len(s.Keywords) + 2*len(s.compiled))
	if denominator == 0 {
		return 0
	}

	hits := 0.0
	for _, kw := range s.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	for _, re := range s.compiled {
		if re.MatchString(pageText) {
			hits += 2
		}
	}
	return hits / denominator
}

// BestMatch returns the highest-scoring signature above its minimum, or nil.
func BestMatch(signatures []*Signature, pageText string) (*Signature, float64) {
	var best *Signature
	bestScore := 0.0
	for _, sig := range signatures {
		score := sig.Score(pageText)
		if score >= sig.MinimumScore && score > bestScore {
			best = sig
			bestScore = score
		}
	}
	return best, bestScore
}
