package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"loanflow/pkg/models"
)

// fileAliases maps document types to their rule file names. The names are
// historical and not derivable from the type string.
var fileAliases = map[models.DocumentType]string{
	models.DocTypeURLA:              "URLA.yaml",
	models.DocTypeW2:                "W-2Form.yaml",
	models.DocTypePayStub:           "PayStub.yaml",
	models.DocTypeBankStatement:     "BankStatement.yaml",
	models.DocTypeTaxReturn:         "TaxReturn.yaml",
	models.DocTypeAppraisal:         "Appraisal.yaml",
	models.DocTypeLoanEstimate:      "LoanEstimate.yaml",
	models.DocTypeClosingDisclosure: "ClosingDisclosure.yaml",
	models.DocType1099Misc:          "1099 misc.yaml",
}

// Loader reads rule files from a configured directory.
type Loader struct {
	Dir string
}

// NewLoader creates a loader over a rules directory.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// RuleFilePath resolves the rule file for a document type, falling back to a
// name derived from the type when no alias exists.
func (l *Loader) RuleFilePath(docType models.DocumentType) string {
	name, ok := fileAliases[docType]
	if !ok {
		name = strings.ReplaceAll(string(docType), " ", "") + ".yaml"
	}
	return filepath.Join(l.Dir, name)
}

// Load parses the rule file for a document type. A missing file is reported
// as an error for the caller to treat as a soft skip.
func (l *Loader) Load(docType models.DocumentType) (*RuleFile, error) {
	path := l.RuleFilePath(docType)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rule file for %s not readable: %w", docType, err)
	}
	var file RuleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("rule file %s malformed: %w", path, err)
	}
	if file.DocumentType == "" {
		file.DocumentType = docType
	}
	for i, rule := range file.Rules {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s_rule_%d", docType, i)
		}
	}
	return &file, nil
}
