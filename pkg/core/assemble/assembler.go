// Package assemble lowers flat extractions into the canonical deal tree. One
// strategy per document type knows the prefix convention of its source family
// and maps prefixed flat keys to canonical paths. A merged strategy picks a
// primary by prefix census and enriches additively from the rest.
package assemble

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"loanflow/pkg/core/rules"
	"loanflow/pkg/models"
)

// DefaultSchemaVersion is stamped into document_metadata unless overridden.
const DefaultSchemaVersion = "MISMO 3.4"

// strategy maps flat business keys to canonical dotted paths. post runs after
// the mapping pass for fixups the table cannot express.
type strategy struct {
	prefix   string
	mappings map[string]string
	post     func(tree map[string]interface{}, flat models.FlatExtraction)
}

var strategies = map[models.DocumentType]*strategy{
	models.DocTypeURLA: {
		prefix: "urla_",
		mappings: map[string]string{
			"urla_borrower_name":       "deal.parties[0].individual.full_name",
			"urla_borrower_ssn":        "deal.parties[0].individual.ssn",
			"urla_borrower_dob":        "deal.parties[0].individual.dob",
			"urla_borrower_phone":      "deal.parties[0].individual.phone",
			"urla_marital_status":      "deal.parties[0].individual.marital_status",
			"urla_citizenship":         "deal.parties[0].declarations.citizenship_residency_type",
			"urla_current_address":     "deal.parties[0].addresses[0].full_address",
			"urla_loan_amount":         "deal.disclosures_and_closing.promissory_note.principal_amount",
			"urla_loan_purpose":        "deal.transaction_information.loan_purpose.value",
			"urla_property_address":    "deal.collateral.subject_property.address.full_address",
			"urla_property_value":      "deal.collateral.subject_property.sales_price",
			"urla_occupancy":           "deal.collateral.subject_property.occupancy_type.value",
			"urla_employer_name":       "deal.parties[0].employment[0].employer_name",
			"urla_base_income_monthly": "deal.parties[0].employment[0].monthly_income.base",
			"urla_military_service":    "deal.parties[0].declarations.military_service",
			"urla_agency_case_number":  "deal.identifiers.agency_case_number",
		},
		post: markBorrower,
	},
	models.DocTypeW2: {
		prefix: "w2_",
		mappings: map[string]string{
			"w2_employee_name":    "deal.parties[0].individual.full_name",
			"w2_employee_ssn":     "deal.parties[0].individual.ssn",
			"w2_employer_name":    "deal.parties[0].employment[0].employer_name",
			"w2_employer_ein":     "deal.parties[0].employment[0].employer_ein",
			"w2_wages_monthly":    "deal.parties[0].employment[0].monthly_income.base",
			"w2_federal_withheld": "deal.parties[0].taxes[0].federal_withheld_amount",
			"w2_tax_year":         "deal.parties[0].taxes[0].year",
		},
		post: func(tree map[string]interface{}, flat models.FlatExtraction) {
			markBorrower(tree, flat)
			fragmentAmounts(tree, flat, models.DocTypeW2, map[string]string{
				"w2_wages_annual":          "wages_annual",
				"w2_social_security_wages": "social_security_wages",
				"w2_medicare_wages":        "medicare_wages",
			})
		},
	},
	models.DocTypePayStub: {
		prefix: "paystub_",
		mappings: map[string]string{
			"paystub_employee_name": "deal.parties[0].individual.full_name",
			"paystub_employer_name": "deal.parties[0].employment[0].employer_name",
			"paystub_period_start":  "deal.parties[0].income_verification_fragments[0].period_start",
			"paystub_period_end":    "deal.parties[0].income_verification_fragments[0].period_end",
		},
		post: func(tree map[string]interface{}, flat models.FlatExtraction) {
			markBorrower(tree, flat)
			fragmentAmounts(tree, flat, models.DocTypePayStub, map[string]string{
				"paystub_gross_pay":        "gross",
				"paystub_net_pay":          "net",
				"paystub_gross_current":    "gross_current",
				"paystub_gross_ytd":        "gross_ytd",
				"paystub_overtime_current": "overtime_current",
			})
		},
	},
	models.DocTypeBankStatement: {
		prefix: "bank_",
		mappings: map[string]string{
			"bank_account_holder":    "deal.parties[0].individual.full_name",
			"bank_account_number":    "deal.parties[0].assets[0].account_number",
			"bank_institution_name":  "deal.parties[0].assets[0].institution_name",
			"bank_ending_balance":    "deal.parties[0].assets[0].ending_balance",
			"bank_beginning_balance": "deal.parties[0].assets[0].beginning_balance",
			"bank_asset_type":        "deal.parties[0].assets[0].asset_type.value",
			"bank_transactions":      "deal.parties[0].assets[0].transactions",
		},
		post: markBorrower,
	},
	models.DocTypeTaxReturn: {
		prefix: "tax_",
		mappings: map[string]string{
			"tax_taxpayer_name":    "deal.parties[0].individual.full_name",
			"tax_taxpayer_ssn":     "deal.parties[0].individual.ssn",
			"tax_filing_status":    "deal.parties[0].taxes[0].filing_status",
			"tax_total_income":     "deal.parties[0].taxes[0].total_income",
			"tax_agi":              "deal.parties[0].taxes[0].adjusted_gross_income",
			"tax_federal_withheld": "deal.parties[0].taxes[0].federal_withheld_amount",
			"tax_year":             "deal.parties[0].taxes[0].year",
		},
		post: markBorrower,
	},
	models.DocTypeAppraisal: {
		prefix: "appraisal_",
		mappings: map[string]string{
			"appraisal_property_address": "deal.collateral.subject_property.address.full_address",
			"appraisal_value":            "deal.collateral.subject_property.appraised_value",
			"appraisal_year_built":       "deal.collateral.subject_property.year_built",
			"appraisal_gla_sqft":         "deal.collateral.subject_property.gross_living_area",
			"appraisal_property_type":    "deal.collateral.subject_property.property_type.value",
		},
	},
	models.DocTypeLoanEstimate: {
		prefix: "le_",
		mappings: map[string]string{
			"le_applicant_name": "deal.parties[0].individual.full_name",
			"le_loan_amount":    "deal.transaction_information.final_loan_amount",
			"le_interest_rate":  "deal.disclosures_and_closing.promissory_note.interest_rate",
			"le_cash_to_close":  "deal.disclosures_and_closing.h24.estimated_cash_to_close",
			"le_monthly_pi":     "deal.disclosures_and_closing.h24.estimated_total_monthly_payment",
			"le_rate_lock":      "deal.disclosures_and_closing.h24.rate_lock_indicator",
			"le_type":           "deal.transaction_information.mortgage_type.value",
		},
		post: markBorrower,
	},
	models.DocTypeClosingDisclosure: {
		prefix: "cd_",
		mappings: map[string]string{
			"cd_borrower_name":     "deal.parties[0].individual.full_name",
			"cd_closing_date":      "deal.transaction_information.closing_date",
			"cd_disbursement_date": "deal.disclosures_and_closing.disbursement_date",
			"cd_loan_amount":       "deal.transaction_information.final_loan_amount",
			"cd_interest_rate":     "deal.disclosures_and_closing.promissory_note.interest_rate",
			"cd_cash_to_close":     "deal.disclosures_and_closing.cash_to_close",
			"cd_property_address":  "deal.collateral.subject_property.address.full_address",
			"cd_lender_name":       "deal.parties[1].company_name",
		},
		post: func(tree map[string]interface{}, flat models.FlatExtraction) {
			markBorrower(tree, flat)
			if _, ok := flat["cd_lender_name"]; ok {
				rules.SetPath(tree, "deal.parties[1].party_role.value", "Lender")
			}
		},
	},
	models.DocType1099Misc: {
		prefix: "1099_",
		mappings: map[string]string{
			"1099_recipient_name":           "deal.parties[0].individual.full_name",
			"1099_recipient_tin":            "deal.parties[0].individual.ssn",
			"1099_nonemployee_compensation": "deal.parties[0].income[0].non_w2_income.nonemployee_compensation",
			"1099_rents":                    "deal.parties[0].income[0].non_w2_income.rents",
			"1099_royalties":                "deal.parties[0].income[0].non_w2_income.royalties",
			"1099_tax_year":                 "deal.parties[0].income[0].year",
		},
		post: func(tree map[string]interface{}, flat models.FlatExtraction) {
			markBorrower(tree, flat)
			rules.SetPath(tree, "deal.parties[0].income[0].source", "1099-MISC")
		},
	},
}

// knownPrefixes drives the merged strategy's census, in tie-break order.
var knownPrefixes = []struct {
	prefix  string
	docType models.DocumentType
}{
	{"urla_", models.DocTypeURLA},
	{"w2_", models.DocTypeW2},
	{"paystub_", models.DocTypePayStub},
	{"bank_", models.DocTypeBankStatement},
	{"tax_", models.DocTypeTaxReturn},
	{"appraisal_", models.DocTypeAppraisal},
	{"le_", models.DocTypeLoanEstimate},
	{"cd_", models.DocTypeClosingDisclosure},
	{"1099_", models.DocType1099Misc},
}

// Assembler builds canonical records from flat extractions.
type Assembler struct {
	SchemaVersion string
}

// NewAssembler creates an assembler with the default schema version.
func NewAssembler() *Assembler {
	return &Assembler{SchemaVersion: DefaultSchemaVersion}
}

// Assemble dispatches on document type, falling back to the generic strategy
// for types without a dedicated mapping.
func (a *Assembler) Assemble(docType models.DocumentType, flat models.FlatExtraction) (*models.CanonicalRecord, error) {
	strat, ok := strategies[docType]
	if !ok {
		return a.assembleGeneric(docType, flat)
	}
	tree := make(map[string]interface{})
	applyStrategy(strat, tree, flat)
	return a.finalize(docType, tree)
}

// AssembleMerged lowers a merged flat dict: the primary document type is
// chosen by prefix census (URLA wins when present, otherwise the most
// populous prefix); other families enrich additively.
func (a *Assembler) AssembleMerged(flat models.FlatExtraction) (*models.CanonicalRecord, error) {
	primary := selectPrimary(flat)
	strat, ok := strategies[primary]
	if !ok {
		return a.assembleGeneric(primary, flat)
	}
	tree := make(map[string]interface{})
	applyStrategy(strat, tree, flat)

	// Additive enrichment: never overwrite a value the primary produced.
	for _, entry := range knownPrefixes {
		if entry.docType == primary {
			continue
		}
		other := strategies[entry.docType]
		for key, path := range other.mappings {
			value, present := flat[key]
			if !present || value == nil {
				continue
			}
			if existing := rules.GetPath(tree, path); existing != nil && existing != "" {
				continue
			}
			rules.SetPath(tree, path, value)
		}
	}
	record, err := a.finalize(primary, tree)
	if err != nil {
		return nil, err
	}
	record.DocumentMetadata.DocumentType = models.DocTypeMerged
	return record, nil
}

// selectPrimary runs the prefix census.
func selectPrimary(flat models.FlatExtraction) models.DocumentType {
	counts := make(map[string]int)
	for key := range flat {
		for _, entry := range knownPrefixes {
			if strings.HasPrefix(key, entry.prefix) {
				counts[entry.prefix]++
				break
			}
		}
	}
	if counts["urla_"] > 0 {
		return models.DocTypeURLA
	}
	best := models.DocTypeUnknown
	bestCount := 0
	for _, entry := range knownPrefixes {
		if counts[entry.prefix] > bestCount {
			bestCount = counts[entry.prefix]
			best = entry.docType
		}
	}
	return best
}

func applyStrategy(strat *strategy, tree map[string]interface{}, flat models.FlatExtraction) {
	for key, path := range strat.mappings {
		value, ok := flat[key]
		if !ok || value == nil {
			continue
		}
		// Sub-record sequences are normalized to typed rows so the tree
		// carries one shape regardless of how the flat dict was produced.
		if records := flat.Records(key); records != nil {
			rules.SetPath(tree, path, records)
			continue
		}
		rules.SetPath(tree, path, value)
	}
	if strat.post != nil {
		strat.post(tree, flat)
	}
}

// finalize converts the assembled tree into the typed record and stamps
// document metadata.
func (a *Assembler) finalize(docType models.DocumentType, tree map[string]interface{}) (*models.CanonicalRecord, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", docType, err)
	}
	var record models.CanonicalRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("assemble %s: canonical shape: %w", docType, err)
	}
	record.DocumentMetadata.DocumentType = docType
	record.DocumentMetadata.SchemaVersion = a.schemaVersion()
	log.Printf("[Assembler] %s: %d canonical leaves", docType, models.CountLeaves(record.Deal))
	return &record, nil
}

// assembleGeneric preserves unmapped extractions in the metadata extras bag
// so nothing is silently dropped.
func (a *Assembler) assembleGeneric(docType models.DocumentType, flat models.FlatExtraction) (*models.CanonicalRecord, error) {
	record := &models.CanonicalRecord{}
	record.DocumentMetadata.DocumentType = docType
	record.DocumentMetadata.SchemaVersion = a.schemaVersion()
	record.DocumentMetadata.Extras = map[string]interface{}(flat.Clone())
	return record, nil
}

func (a *Assembler) schemaVersion() string {
	if a.SchemaVersion != "" {
		return a.SchemaVersion
	}
	return DefaultSchemaVersion
}

// markBorrower pins the primary party role whenever a party was produced.
func markBorrower(tree map[string]interface{}, flat models.FlatExtraction) {
	if rules.GetPath(tree, "deal.parties[0]") == nil {
		return
	}
	rules.SetPath(tree, "deal.parties[0].party_role.value", "Borrower")
}

// fragmentAmounts builds the document's income verification fragment from
// numeric flat keys.
func fragmentAmounts(tree map[string]interface{}, flat models.FlatExtraction, source models.DocumentType, keys map[string]string) {
	emitted := false
	for flatKey, amountKey := range keys {
		f, ok := flat.Float(flatKey)
		if !ok {
			continue
		}
		rules.SetPath(tree, "deal.parties[0].income_verification_fragments[0].amounts."+amountKey, f)
		emitted = true
	}
	if emitted || rules.GetPath(tree, "deal.parties[0].income_verification_fragments[0]") != nil {
		rules.SetPath(tree, "deal.parties[0].income_verification_fragments[0].source_document", string(source))
	}
}
