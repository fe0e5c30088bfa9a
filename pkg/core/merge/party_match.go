package merge

import (
	"fmt"
	"strings"

	"loanflow/pkg/models"
)

// identityKeys names, per document family, the flat keys that carry a
// person's SSN and name. These drive cross-document party matching.
var identityKeys = map[models.DocumentType]struct{ ssn, name string }{
	models.DocTypeURLA:          {"urla_borrower_ssn", "urla_borrower_name"},
	models.DocTypeW2:            {"w2_employee_ssn", "w2_employee_name"},
	models.DocTypePayStub:       {"", "paystub_employee_name"},
	models.DocTypeTaxReturn:     {"tax_taxpayer_ssn", "tax_taxpayer_name"},
	models.DocTypeBankStatement: {"", "bank_account_holder"},
	models.DocTypeLoanEstimate:  {"", "le_applicant_name"},
	models.DocType1099Misc:      {"1099_recipient_tin", "1099_recipient_name"},
}

// evidence is one document's claim about a person.
type evidence struct {
	label string
	ssn   string
	name  string
}

// cluster groups evidence believed to describe one person.
type cluster struct {
	ssn  string
	name string
}

const nameMatchThreshold = 0.80

// MatchParties clusters per-document identity evidence into canonical party
// ids (party_0, party_1, ... in discovery order). SSN equality after
// normalization wins; otherwise names fuzzy-match by LCS ratio.
func MatchParties(inputs []Input) map[string]string {
	var tuples []evidence
	for i, in := range inputs {
		keys, ok := identityKeys[in.DocType]
		if !ok {
			continue
		}
		ev := evidence{label: fmt.Sprintf("%s_%d", in.DocType, i)}
		if keys.ssn != "" {
			ev.ssn = normalizeSSN(in.Flat.String(keys.ssn))
		}
		if keys.name != "" {
			ev.name = strings.ToUpper(strings.TrimSpace(in.Flat.String(keys.name)))
		}
		if ev.ssn == "" && ev.name == "" {
			continue
		}
		tuples = append(tuples, ev)
	}

	result := make(map[string]string, len(tuples))
	var clusters []*cluster
	for _, ev := range tuples {
		idx := -1
		for i, c := range clusters {
			if ev.ssn != "" && c.ssn != "" {
				if ev.ssn == c.ssn {
					idx = i
					break
				}
				continue
			}
			if ev.name != "" && c.name != "" && lcsRatio(ev.name, c.name) >= nameMatchThreshold {
				idx = i
				break
			}
		}
		if idx < 0 {
			clusters = append(clusters, &cluster{ssn: ev.ssn, name: ev.name})
			idx = len(clusters) - 1
		} else {
			// Backfill identity facts the cluster lacked.
			if clusters[idx].ssn == "" {
				clusters[idx].ssn = ev.ssn
			}
			if clusters[idx].name == "" {
				clusters[idx].name = ev.name
			}
		}
		result[ev.label] = fmt.Sprintf("party_%d", idx)
	}
	return result
}

func normalizeSSN(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)).
func lcsRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}
