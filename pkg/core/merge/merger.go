// Package merge combines per-document flat extractions into one flat dict
// and resolves which documents describe the same person.
package merge

import (
	"log"
	"reflect"
	"sort"

	"loanflow/pkg/models"
)

// docPriority ranks source reliability; higher overwrites lower.
var docPriority = map[models.DocumentType]int{
	models.DocTypeW2:            90,
	models.DocTypeAppraisal:     85,
	models.DocTypePayStub:       80,
	models.DocTypeTaxReturn:     70,
	models.DocTypeBankStatement: 60,
	models.DocTypeURLA:          50,
	models.DocTypeLoanEstimate:  40,
}

// Input is one document's extraction, in arrival order.
type Input struct {
	DocType models.DocumentType
	Flat    models.FlatExtraction
}

// Conflict records a value that was overwritten by a higher-priority source.
type Conflict struct {
	Key      string      `json:"key"`
	Kept     interface{} `json:"kept"`
	Replaced interface{} `json:"replaced"`
	Winner   models.DocumentType `json:"winner"`
	Loser    models.DocumentType `json:"loser"`
}

// Result is the merged dict plus the party identity map and conflict log.
type Result struct {
	Flat      models.FlatExtraction
	PartyMap  map[string]string
	Conflicts []Conflict
}

// Merger combines flat extractions by document priority.
type Merger struct{}

// NewMerger returns a merger with the standard priority table.
func NewMerger() *Merger { return &Merger{} }

// Merge sorts inputs ascending by priority and upserts non-null values, so
// the highest-priority document writes last. Conflicting overwrites are
// logged, never silent.
func (m *Merger) Merge(inputs []Input) *Result {
	ordered := make([]Input, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return docPriority[ordered[i].DocType] < docPriority[ordered[j].DocType]
	})

	merged := make(models.FlatExtraction)
	source := make(map[string]models.DocumentType)
	var conflicts []Conflict

	for _, in := range ordered {
		for key, value := range in.Flat {
			if value == nil {
				continue
			}
			if s, ok := value.(string); ok && s == "" {
				continue
			}
			// DeepEqual, not ==: table rules emit slice values, which are
			// uncomparable.
			if prev, exists := merged[key]; exists && !reflect.DeepEqual(prev, value) {
				conflicts = append(conflicts, Conflict{
					Key:      key,
					Kept:     value,
					Replaced: prev,
					Winner:   in.DocType,
					Loser:    source[key],
				})
				log.Printf("[Merger] %s overrides %s for %q", in.DocType, source[key], key)
			}
			merged[key] = value
			source[key] = in.DocType
		}
	}

	return &Result{
		Flat:      merged,
		PartyMap:  MatchParties(inputs),
		Conflicts: conflicts,
	}
}
