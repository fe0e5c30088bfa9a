// Package validate checks assembled canonical records before relational
// lowering. Validation never mutates the record; it returns the issue list
// alongside the unchanged data.
package validate

import (
	"fmt"
	"regexp"

	"loanflow/pkg/models"
)

var (
	ssnRe     = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	dateUSRe  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	dateISORe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validator runs the standard check set over a canonical record.
type Validator struct{}

// NewValidator returns a validator.
func NewValidator() *Validator { return &Validator{} }

// Validate returns the record untouched plus every issue found. Lender
// parties are skipped for borrower-specific checks.
func (v *Validator) Validate(record *models.CanonicalRecord) (*models.CanonicalRecord, []models.ValidationIssue) {
	var issues []models.ValidationIssue
	add := func(severity models.IssueSeverity, path, format string, args ...interface{}) {
		issues = append(issues, models.ValidationIssue{
			Severity: severity,
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	borrower := primaryBorrower(record)

	// Critical presence.
	if borrower == nil || borrower.Individual == nil || borrower.Individual.FullName == "" {
		add(models.SeverityCritical, "deal.parties[0].individual.full_name", "borrower name is missing")
	}
	if borrower == nil || borrower.Individual == nil || borrower.Individual.SSN == "" {
		add(models.SeverityCritical, "deal.parties[0].individual.ssn", "borrower SSN is missing")
	}
	if loanAmount(record) == nil {
		add(models.SeverityCritical, "deal.transaction_information.final_loan_amount", "loan amount is missing")
	}
	if record.Deal.TransactionInformation.LoanPurpose.Value == "" {
		add(models.SeverityCritical, "deal.transaction_information.loan_purpose.value", "loan purpose is missing")
	}
	if addr := record.Deal.Collateral.SubjectProperty.Address; addr.FullAddress == "" && addr.Street == "" {
		add(models.SeverityCritical, "deal.collateral.subject_property.address", "subject property address is missing")
	}

	// Formats and per-party checks.
	for i, party := range record.Deal.Parties {
		if party == nil || party.PartyRole.Value == "Lender" {
			continue
		}
		base := fmt.Sprintf("deal.parties[%d]", i)
		if ind := party.Individual; ind != nil {
			if ind.SSN != "" && !ssnRe.MatchString(ind.SSN) {
				add(models.SeverityFormat, base+".individual.ssn", "SSN %q is not NNN-NN-NNNN", ind.SSN)
			}
			if ind.DOB != "" && !validDate(ind.DOB) {
				add(models.SeverityFormat, base+".individual.dob", "date %q is not MM/DD/YYYY or YYYY-MM-DD", ind.DOB)
			}
		}
		for j, emp := range party.Employment {
			empPath := fmt.Sprintf("%s.employment[%d]", base, j)
			if emp.EmployerName == "" {
				add(models.SeverityQuality, empPath+".employer_name", "employer name is empty")
			}
			if emp.StartDate != "" && emp.EndDate != "" && emp.StartDate > emp.EndDate {
				add(models.SeverityLogic, empPath, "start_date %s after end_date %s", emp.StartDate, emp.EndDate)
			}
			checkIncome(&issues, empPath+".monthly_income", emp.MonthlyIncome)
		}
	}

	if d := record.Deal.TransactionInformation.ApplicationDate; d != "" && !validDate(d) {
		add(models.SeverityFormat, "deal.transaction_information.application_date", "date %q is not MM/DD/YYYY or YYYY-MM-DD", d)
	}

	// Amount sanity.
	if amt := loanAmount(record); amt != nil && *amt <= 0 {
		add(models.SeverityLogic, "deal.transaction_information.final_loan_amount", "loan amount %f is not positive", *amt)
	}
	if sp := record.Deal.Collateral.SubjectProperty.SalesPrice; sp != nil && *sp <= 0 {
		add(models.SeverityLogic, "deal.collateral.subject_property.sales_price", "sales price %f is not positive", *sp)
	}

	return record, issues
}

// HasCritical reports whether any issue is CRITICAL.
func HasCritical(issues []models.ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// primaryBorrower returns the first non-Lender party.
func primaryBorrower(record *models.CanonicalRecord) *models.Party {
	for _, p := range record.Deal.Parties {
		if p != nil && p.PartyRole.Value != "Lender" {
			return p
		}
	}
	return nil
}

// loanAmount prefers final_loan_amount over the note principal.
func loanAmount(record *models.CanonicalRecord) *float64 {
	if f := record.Deal.TransactionInformation.FinalLoanAmount; f != nil {
		return f
	}
	return record.Deal.DisclosuresAndClosing.PromissoryNote.PrincipalAmount
}

func validDate(s string) bool {
	return dateUSRe.MatchString(s) || dateISORe.MatchString(s)
}

func checkIncome(issues *[]models.ValidationIssue, path string, mi models.MonthlyIncome) {
	check := func(name string, f *float64) {
		if f != nil && *f < 0 {
			*issues = append(*issues, models.ValidationIssue{
				Severity: models.SeverityLogic,
				Path:     path + "." + name,
				Message:  fmt.Sprintf("income amount %f is negative", *f),
			})
		}
	}
	check("base", mi.Base)
	check("overtime", mi.Overtime)
	check("bonus", mi.Bonus)
	check("commission", mi.Commission)
	check("total", mi.Total)
}
