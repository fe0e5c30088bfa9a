package models

import "encoding/json"

// =============================================================================
// CANONICAL RECORD - MISMO-aligned deep record rooted at "deal"
// =============================================================================

// CanonicalRecord is the canonical MISMO-aligned record produced by the
// assembler. It mirrors MISMO 3.4/3.6 containment: parties, collateral,
// transaction information, disclosures and identifiers under a single deal.
type CanonicalRecord struct {
	Deal             Deal             `json:"deal"`
	DocumentMetadata DocumentMetadata `json:"document_metadata"`
}

// DocumentMetadata tracks the source document type and schema version for a
// canonical record.
type DocumentMetadata struct {
	DocumentType  DocumentType           `json:"document_type"`
	SchemaVersion string                 `json:"schema_version"`
	SourceFile    string                 `json:"source_file,omitempty"`
	Extras        map[string]interface{} `json:"extras,omitempty"`
}

// Deal is the root business object.
type Deal struct {
	Parties                []*Party               `json:"parties"`
	Collateral             Collateral             `json:"collateral"`
	TransactionInformation TransactionInformation `json:"transaction_information"`
	DisclosuresAndClosing  DisclosuresAndClosing  `json:"disclosures_and_closing"`
	Identifiers            Identifiers            `json:"identifiers"`
	Liabilities            []*Liability           `json:"liabilities,omitempty"`
}

// EnumValue wraps a MISMO enumerated value.
type EnumValue struct {
	Value string `json:"value,omitempty"`
}

// PartyRoleBorrower et al. are the recognized party roles.
const (
	PartyRoleBorrower   = "Borrower"
	PartyRoleCoBorrower = "CoBorrower"
	PartyRoleLender     = "Lender"
)

// Party is a person or company attached to the deal. Invariants: at most one
// primary Borrower (index 0); Lender parties carry CompanyName and optionally
// one individual (the loan officer).
type Party struct {
	Individual          *Individual                  `json:"individual,omitempty"`
	CompanyName         string                       `json:"company_name,omitempty"`
	NMLSID              string                       `json:"nmls_id,omitempty"`
	Addresses           []*Address                   `json:"addresses,omitempty"`
	Employment          []*Employment                `json:"employment,omitempty"`
	SelfEmployment      []*SelfEmployment            `json:"self_employment,omitempty"`
	Assets              []*Asset                     `json:"assets,omitempty"`
	Income              []*IncomeRecord              `json:"income,omitempty"`
	Taxes               []*TaxRecord                 `json:"taxes,omitempty"`
	IncomeFragments     []*IncomeVerificationFragment `json:"income_verification_fragments,omitempty"`
	IncomeDocuments     []map[string]interface{}     `json:"income_documents,omitempty"`
	Declarations        *Declarations                `json:"declarations,omitempty"`
	PartyRole           EnumValue                    `json:"party_role"`
	TotalLiabilities    *float64                     `json:"total_liabilities,omitempty"`
	TotalMonthlyPayments *float64                    `json:"total_monthly_payments,omitempty"`
}

// Individual holds person-level attributes.
type Individual struct {
	FullName             string   `json:"full_name,omitempty"`
	FirstName            string   `json:"first_name,omitempty"`
	LastName             string   `json:"last_name,omitempty"`
	SSN                  string   `json:"ssn,omitempty"`
	DOB                  string   `json:"dob,omitempty"`
	MaritalStatus        string   `json:"marital_status,omitempty"`
	CitizenshipResidency string   `json:"citizenship_residency,omitempty"`
	Ethnicity            []string `json:"ethnicity,omitempty"`
	Race                 []string `json:"race,omitempty"`
	Sex                  []string `json:"sex,omitempty"`
	Phone                string   `json:"phone,omitempty"`
}

// Address keeps both the raw composition and parsed components; either form
// may be present depending on the source document.
type Address struct {
	Street       string `json:"street,omitempty"`
	CityStateZip string `json:"city_state_zip,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
	FullAddress  string `json:"full_address,omitempty"`
}

// MonthlyIncome is the employment income sub-structure.
type MonthlyIncome struct {
	Base       *float64 `json:"base,omitempty"`
	Overtime   *float64 `json:"overtime,omitempty"`
	Bonus      *float64 `json:"bonus,omitempty"`
	Commission *float64 `json:"commission,omitempty"`
	Total      *float64 `json:"total,omitempty"`
}

// Employment records one employer relationship. Invariant: when both dates are
// present, StartDate <= EndDate.
type Employment struct {
	EmployerName   string        `json:"employer_name,omitempty"`
	PositionTitle  string        `json:"position_title,omitempty"`
	EmployerEIN    string        `json:"employer_ein,omitempty"`
	BusinessPhone  string        `json:"business_phone,omitempty"`
	EmploymentStatus EnumValue   `json:"employment_status"`
	MonthlyIncome  MonthlyIncome `json:"monthly_income"`
	StartDate      string        `json:"start_date,omitempty"`
	EndDate        string        `json:"end_date,omitempty"`
	IsSelfEmployed bool          `json:"is_self_employed,omitempty"`
}

// SelfEmployment records a business owned by the party.
type SelfEmployment struct {
	BusinessName    string   `json:"business_name,omitempty"`
	BusinessStreet  string   `json:"business_street,omitempty"`
	BusinessCity    string   `json:"business_city,omitempty"`
	BusinessState   string   `json:"business_state,omitempty"`
	BusinessZip     string   `json:"business_zip,omitempty"`
	PositionTitle   string   `json:"position_title,omitempty"`
	MonthlyIncome   *float64 `json:"monthly_income,omitempty"`
	OwnershipShare  *float64 `json:"ownership_share,omitempty"`
}

// Asset records a financial account or valued holding. Exactly one of
// CashOrMarketValueAmount / EndingBalance contributes to totals.
type Asset struct {
	InstitutionName         string                   `json:"institution_name,omitempty"`
	AccountNumber           string                   `json:"account_number,omitempty"`
	AssetType               EnumValue                `json:"asset_type"`
	CashOrMarketValueAmount *float64                 `json:"cash_or_market_value_amount,omitempty"`
	EndingBalance           *float64                 `json:"ending_balance,omitempty"`
	BeginningBalance        *float64                 `json:"beginning_balance,omitempty"`
	Transactions            []map[string]interface{} `json:"transactions,omitempty"`
	WithdrawalTransactions  []map[string]interface{} `json:"withdrawal_transactions,omitempty"`
}

// IncomeRecord carries non-employment income facts (e.g. 1099 figures).
type IncomeRecord struct {
	NonW2Income map[string]float64 `json:"non_w2_income,omitempty"`
	Source      string             `json:"source,omitempty"`
	Year        string             `json:"year,omitempty"`
}

// TaxRecord carries return-level facts from 1040/W-2 family documents.
type TaxRecord struct {
	FilingStatus          string   `json:"filing_status,omitempty"`
	TotalIncome           *float64 `json:"total_income,omitempty"`
	AdjustedGrossIncome   *float64 `json:"adjusted_gross_income,omitempty"`
	FederalWithheldAmount *float64 `json:"federal_withheld_amount,omitempty"`
	StateWithheldAmount   *float64 `json:"state_withheld_amount,omitempty"`
	Year                  string   `json:"year,omitempty"`
}

// IncomeVerificationFragment is a source-authenticated financial snapshot from
// a single document (IVF in the glossary).
type IncomeVerificationFragment struct {
	SourceDocument DocumentType       `json:"source_document"`
	PeriodStart    string             `json:"period_start,omitempty"`
	PeriodEnd      string             `json:"period_end,omitempty"`
	Amounts        map[string]float64 `json:"amounts,omitempty"`
}

// Declarations carries URLA Section 5 style declarations.
type Declarations struct {
	CitizenshipResidencyType string `json:"citizenship_residency_type,omitempty"`
	IntentToOccupy           string `json:"intent_to_occupy,omitempty"`
	OutstandingJudgments     string `json:"outstanding_judgments,omitempty"`
	DeclaredBankruptcy       string `json:"declared_bankruptcy,omitempty"`
	MilitaryService          string `json:"military_service,omitempty"`
}

// Collateral contains the subject property.
type Collateral struct {
	SubjectProperty SubjectProperty `json:"subject_property"`
}

// SubjectProperty is the property securing the loan.
type SubjectProperty struct {
	Address        Address   `json:"address"`
	PropertyType   EnumValue `json:"property_type"`
	OccupancyType  EnumValue `json:"occupancy_type"`
	YearBuilt       string   `json:"year_built,omitempty"`
	UnitsCount      *float64 `json:"units_count,omitempty"`
	SalesPrice      *float64 `json:"sales_price,omitempty"`
	AppraisedValue  *float64 `json:"appraised_value,omitempty"`
	GrossLivingArea *float64 `json:"gross_living_area,omitempty"`
}

// TransactionInformation holds the loan transaction terms.
type TransactionInformation struct {
	LoanPurpose      EnumValue `json:"loan_purpose"`
	MortgageType     EnumValue `json:"mortgage_type"`
	AmortizationType EnumValue `json:"amortization_type"`
	FinalLoanAmount  *float64  `json:"final_loan_amount,omitempty"`
	InterestRate     *float64  `json:"interest_rate,omitempty"`
	TermMonths       *float64  `json:"term_months,omitempty"`
	ApplicationDate  string    `json:"application_date,omitempty"`
	ClosingDate      string    `json:"closing_date,omitempty"`
}

// PromissoryNote holds the note terms from disclosure documents.
type PromissoryNote struct {
	PrincipalAmount *float64 `json:"principal_amount,omitempty"`
	InterestRate    *float64 `json:"interest_rate,omitempty"`
	TermMonths      *float64 `json:"term_months,omitempty"`
}

// H24Details carries CFPB Loan Estimate (form H-24) figures.
type H24Details struct {
	EstimatedCashToClose  *float64 `json:"estimated_cash_to_close,omitempty"`
	EstimatedTotalPayment *float64 `json:"estimated_total_monthly_payment,omitempty"`
	RateLockIndicator     string   `json:"rate_lock_indicator,omitempty"`
}

// DisclosuresAndClosing aggregates note, H-24 and closing details.
type DisclosuresAndClosing struct {
	PromissoryNote     PromissoryNote `json:"promissory_note"`
	H24                *H24Details    `json:"h24,omitempty"`
	ClosingCostsTotal  *float64       `json:"closing_costs_total,omitempty"`
	CashToClose        *float64       `json:"cash_to_close,omitempty"`
	DisclosureDate     string         `json:"disclosure_date,omitempty"`
	DisbursementDate   string         `json:"disbursement_date,omitempty"`
}

// Identifiers carries agency and lender-assigned identifiers.
type Identifiers struct {
	AgencyCaseNumber    string `json:"agency_case_number,omitempty"`
	LenderLoanNumber    string `json:"lender_loan_number,omitempty"`
	UniversalLoanID     string `json:"universal_loan_id,omitempty"`
}

// Liability is a single debt obligation.
type Liability struct {
	CreditorName   string   `json:"creditor_name,omitempty"`
	AccountNumber  string   `json:"account_number,omitempty"`
	LiabilityType  EnumValue `json:"liability_type"`
	Balance        *float64 `json:"balance,omitempty"`
	BalanceRaw     string   `json:"balance_raw,omitempty"`
	MonthlyPayment *float64 `json:"monthly_payment,omitempty"`
}

// =============================================================================
// LEAF COUNTING - reporting metric over arbitrary nesting
// =============================================================================

// CountLeaves returns the number of non-null scalar leaves in v, walking nested
// structs, maps and slices. Used for run reporting.
func CountLeaves(v interface{}) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return 0
	}
	return countLeaves(tree)
}

func countLeaves(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case map[string]interface{}:
		n := 0
		for _, c := range t {
			n += countLeaves(c)
		}
		return n
	case []interface{}:
		n := 0
		for _, c := range t {
			n += countLeaves(c)
		}
		return n
	case string:
		if t == "" {
			return 0
		}
		return 1
	default:
		return 1
	}
}

// FloatPtr is a convenience for building optional numeric fields.
func FloatPtr(f float64) *float64 { return &f }
