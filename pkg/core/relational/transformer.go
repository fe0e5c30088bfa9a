// Package relational flattens canonical records into table rowsets keyed by
// opaque internal refs, then enforces per-table schemas before persistence.
package relational

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"loanflow/pkg/models"
)

// Transformer lowers a CanonicalRecord into a RelationalPayload.
type Transformer struct{}

// NewTransformer returns a transformer.
func NewTransformer() *Transformer { return &Transformer{} }

// Transform allocates rows for properties, applications, customers and their
// dependent tables. Unmapped party arrays produce diagnostics, never silent
// drops.
func (t *Transformer) Transform(record *models.CanonicalRecord) (*models.RelationalPayload, []string) {
	payload := models.NewRelationalPayload()
	var diags []string

	propertyRef := t.lowerProperty(payload, record)
	applicationRef := t.lowerApplication(payload, record, propertyRef)

	customerSeq := 0
	var primaryCustomerRef string
	for i, party := range record.Deal.Parties {
		if party == nil {
			continue
		}
		if party.PartyRole.Value == "Lender" {
			t.preserveLender(payload, party)
			continue
		}
		customerRef := fmt.Sprintf("customer_%d", customerSeq)
		if customerSeq == 0 {
			primaryCustomerRef = customerRef
		}
		t.lowerCustomer(payload, party, customerRef)
		t.lowerJunction(payload, party, customerRef, applicationRef, customerSeq)
		t.lowerResidences(payload, party, customerRef)
		t.lowerEmployments(payload, party, customerRef, applicationRef)
		t.lowerSelfEmployments(payload, party, customerRef, applicationRef)
		t.lowerNonW2Incomes(payload, party, customerRef, applicationRef)
		t.lowerAssets(payload, party, customerRef)
		t.lowerLiabilityTotals(payload, party, customerRef)
		if customerSeq == 0 {
			t.lowerDemographics(payload, party, customerRef)
		}
		diags = append(diags, partyDiagnostics(i, party)...)
		customerSeq++
	}

	t.lowerDetailedLiabilities(payload, record, primaryCustomerRef)

	if primaryCustomerRef != "" {
		for _, row := range payload.Tables["applications"] {
			row["_primary_customer_ref"] = primaryCustomerRef
		}
	}

	payload.Finalize()
	log.Printf("[Relational] %d tables, %d rows", payload.Metadata.TotalTables, payload.Metadata.TotalRows)
	return payload, diags
}

func (t *Transformer) lowerProperty(payload *models.RelationalPayload, record *models.CanonicalRecord) string {
	sp := record.Deal.Collateral.SubjectProperty
	row := models.Row{
		"_ref":       "property_0",
		"_operation": models.OpUpsert,
		"address":    parseUSAddress(addressText(sp.Address)),
	}
	putNonEmpty(row, "property_type", sp.PropertyType.Value)
	putNonEmpty(row, "year_built", sp.YearBuilt)
	putFloat(row, "sales_price", sp.SalesPrice)
	putFloat(row, "appraised_value", sp.AppraisedValue)
	payload.Append("properties", row)
	return "property_0"
}

func (t *Transformer) lowerApplication(payload *models.RelationalPayload, record *models.CanonicalRecord, propertyRef string) string {
	ti := record.Deal.TransactionInformation
	dc := record.Deal.DisclosuresAndClosing
	ids := record.Deal.Identifiers

	keyInfo := map[string]interface{}{}
	putNonEmpty(keyInfo, "loan_purpose", ti.LoanPurpose.Value)
	putNonEmpty(keyInfo, "amortization_type", ti.AmortizationType.Value)
	putNonEmpty(keyInfo, "mortgage_type", ti.MortgageType.Value)
	putNonEmpty(keyInfo, "application_date", ti.ApplicationDate)
	putNonEmpty(keyInfo, "closing_date", ti.ClosingDate)
	if note := noteBag(dc.PromissoryNote); len(note) > 0 {
		keyInfo["promissory_note"] = note
	}
	if dc.H24 != nil {
		h24 := map[string]interface{}{}
		putFloat(h24, "estimated_cash_to_close", dc.H24.EstimatedCashToClose)
		putFloat(h24, "estimated_total_monthly_payment", dc.H24.EstimatedTotalPayment)
		putNonEmpty(h24, "rate_lock_indicator", dc.H24.RateLockIndicator)
		if len(h24) > 0 {
			keyInfo["h24"] = h24
		}
	}
	idBag := map[string]interface{}{}
	putNonEmpty(idBag, "agency_case_number", ids.AgencyCaseNumber)
	putNonEmpty(idBag, "lender_loan_number", ids.LenderLoanNumber)
	putNonEmpty(idBag, "universal_loan_id", ids.UniversalLoanID)
	if len(idBag) > 0 {
		keyInfo["identifiers"] = idBag
	}

	row := models.Row{
		"_ref":          "application_0",
		"_operation":    models.OpUpsert,
		"_property_ref": propertyRef,
	}
	if amt := preferredLoanAmount(record); amt != nil {
		row["loan_amount"] = *amt
	}
	putNonEmpty(row, "application_number", ids.AgencyCaseNumber)
	putNonEmpty(row, "occupancy_type", record.Deal.Collateral.SubjectProperty.OccupancyType.Value)
	if len(keyInfo) > 0 {
		row["key_information"] = keyInfo
	}
	payload.Append("applications", row)
	return "application_0"
}

// preserveLender stows lender identity under the application's
// key_information instead of emitting a customer row.
func (t *Transformer) preserveLender(payload *models.RelationalPayload, party *models.Party) {
	lender := map[string]interface{}{}
	putNonEmpty(lender, "company_name", party.CompanyName)
	if party.Individual != nil {
		officer := map[string]interface{}{}
		putNonEmpty(officer, "name", party.Individual.FullName)
		putNonEmpty(officer, "nmls_id", party.NMLSID)
		if len(officer) > 0 {
			lender["loan_officer"] = officer
		}
	}
	if len(lender) == 0 {
		return
	}
	for _, row := range payload.Tables["applications"] {
		keyInfo, ok := row["key_information"].(map[string]interface{})
		if !ok {
			keyInfo = map[string]interface{}{}
			row["key_information"] = keyInfo
		}
		keyInfo["lender"] = lender
	}
}

func (t *Transformer) lowerCustomer(payload *models.RelationalPayload, party *models.Party, ref string) {
	row := models.Row{"_ref": ref, "_operation": models.OpUpsert}
	if ind := party.Individual; ind != nil {
		putNonEmpty(row, "full_name", ind.FullName)
		putNonEmpty(row, "first_name", ind.FirstName)
		putNonEmpty(row, "last_name", ind.LastName)
		putNonEmpty(row, "ssn", ind.SSN)
		putNonEmpty(row, "date_of_birth", ind.DOB)
		putNonEmpty(row, "marital_status", ind.MaritalStatus)
		putNonEmpty(row, "phone", ind.Phone)
	}
	payload.Append("customers", row)
}

func (t *Transformer) lowerJunction(payload *models.RelationalPayload, party *models.Party, customerRef, applicationRef string, seq int) {
	role := party.PartyRole.Value
	if role == "" {
		role = "Borrower"
	}
	payload.Append("application_customers", models.Row{
		"_operation":       models.OpInsert,
		"_customer_ref":    customerRef,
		"_application_ref": applicationRef,
		"role":             role,
		"sequence":         seq,
	})
}

func (t *Transformer) lowerResidences(payload *models.RelationalPayload, party *models.Party, customerRef string) {
	for i, addr := range party.Addresses {
		if addr == nil {
			continue
		}
		residency := "Prior"
		if i == 0 {
			residency = "Current"
		}
		row := models.Row{
			"_operation":     models.OpInsert,
			"_customer_ref":  customerRef,
			"residency_type": residency,
			"address":        parseUSAddress(addressText(*addr)),
		}
		payload.Append("residences", row)
	}
}

func (t *Transformer) lowerEmployments(payload *models.RelationalPayload, party *models.Party, customerRef, applicationRef string) {
	for i, emp := range party.Employment {
		if emp == nil {
			continue
		}
		employmentRef := fmt.Sprintf("%s_employment_%d", customerRef, i)
		row := models.Row{
			"_ref":          employmentRef,
			"_operation":    models.OpInsert,
			"_customer_ref": customerRef,
		}
		putNonEmpty(row, "employer_name", emp.EmployerName)
		putNonEmpty(row, "position_title", emp.PositionTitle)
		putNonEmpty(row, "employer_ein", emp.EmployerEIN)
		putNonEmpty(row, "employment_status", emp.EmploymentStatus.Value)
		putNonEmpty(row, "start_date", emp.StartDate)
		putNonEmpty(row, "end_date", emp.EndDate)
		row["self_employed"] = emp.IsSelfEmployed
		payload.Append("employments", row)

		t.lowerMonthlyIncome(payload, emp.MonthlyIncome, customerRef, applicationRef, employmentRef)
	}
}

// lowerMonthlyIncome emits one incomes row per non-total sub-value, linked to
// both the customer and the employment. income_type is Title-cased from the
// sub-key.
func (t *Transformer) lowerMonthlyIncome(payload *models.RelationalPayload, mi models.MonthlyIncome, customerRef, applicationRef, employmentRef string) {
	emit := func(kind string, f *float64) {
		if f == nil {
			return
		}
		payload.Append("incomes", models.Row{
			"_operation":      models.OpInsert,
			"_customer_ref":   customerRef,
			"_employment_ref": employmentRef,
			"income_type":     titleCase(kind),
			"monthly_amount":  *f,
		})
	}
	emit("base", mi.Base)
	emit("overtime", mi.Overtime)
	emit("bonus", mi.Bonus)
	emit("commission", mi.Commission)
}

func (t *Transformer) lowerSelfEmployments(payload *models.RelationalPayload, party *models.Party, customerRef, applicationRef string) {
	for i, se := range party.SelfEmployment {
		if se == nil {
			continue
		}
		employmentRef := fmt.Sprintf("%s_self_employment_%d", customerRef, i)
		row := models.Row{
			"_ref":            employmentRef,
			"_operation":      models.OpInsert,
			"_customer_ref":   customerRef,
			"employment_type": "SelfEmployed",
			"self_employed":   true,
		}
		putNonEmpty(row, "employer_name", se.BusinessName)
		putNonEmpty(row, "position_title", se.PositionTitle)
		putNonEmpty(row, "employer_street", se.BusinessStreet)
		putNonEmpty(row, "employer_city", se.BusinessCity)
		putNonEmpty(row, "employer_state", se.BusinessState)
		putNonEmpty(row, "employer_zip", se.BusinessZip)
		payload.Append("employments", row)

		if se.MonthlyIncome != nil {
			payload.Append("incomes", models.Row{
				"_operation":      models.OpInsert,
				"_customer_ref":   customerRef,
				"_employment_ref": employmentRef,
				"income_type":     "SelfEmployment",
				"monthly_amount":  *se.MonthlyIncome,
			})
		}
	}
}

// lowerNonW2Incomes emits incomes rows for 1099-style figures and federal
// withholding facts.
func (t *Transformer) lowerNonW2Incomes(payload *models.RelationalPayload, party *models.Party, customerRef, applicationRef string) {
	for _, rec := range party.Income {
		if rec == nil {
			continue
		}
		for kind, amount := range rec.NonW2Income {
			row := models.Row{
				"_operation":    models.OpInsert,
				"_customer_ref": customerRef,
				"income_type":   titleCase(kind),
				"annual_amount": amount,
				"income_source": "Non-W2",
			}
			putNonEmpty(row, "source_document", rec.Source)
			putNonEmpty(row, "year", rec.Year)
			payload.Append("incomes", row)
		}
	}
	for _, tax := range party.Taxes {
		if tax == nil || tax.FederalWithheldAmount == nil {
			continue
		}
		row := models.Row{
			"_operation":    models.OpInsert,
			"_customer_ref": customerRef,
			"income_type":   "FederalWithholding",
			"annual_amount": *tax.FederalWithheldAmount,
			"income_source": "TaxDocument",
		}
		putNonEmpty(row, "year", tax.Year)
		payload.Append("incomes", row)
	}
}

func (t *Transformer) lowerAssets(payload *models.RelationalPayload, party *models.Party, customerRef string) {
	for _, asset := range party.Assets {
		if asset == nil {
			continue
		}
		assetType := asset.AssetType.Value
		if assetType == "" {
			assetType = "CheckingAccount"
		}
		value := 0.0
		switch {
		case asset.CashOrMarketValueAmount != nil:
			value = *asset.CashOrMarketValueAmount
		case asset.EndingBalance != nil:
			value = *asset.EndingBalance
		}
		row := models.Row{
			"_operation":    models.OpInsert,
			"_customer_ref": customerRef,
			"asset_type":    assetType,
			"asset_value":   value,
		}
		putNonEmpty(row, "institution_name", asset.InstitutionName)
		putNonEmpty(row, "account_number", asset.AccountNumber)
		if len(asset.Transactions) > 0 {
			row["transactions"] = asset.Transactions
		}
		payload.Append("assets", row)
	}
}

// lowerLiabilityTotals emits one synthetic liabilities row from party-level
// totals.
func (t *Transformer) lowerLiabilityTotals(payload *models.RelationalPayload, party *models.Party, customerRef string) {
	if party.TotalLiabilities == nil && party.TotalMonthlyPayments == nil {
		return
	}
	row := models.Row{
		"_operation":     models.OpInsert,
		"_customer_ref":  customerRef,
		"liability_type": "Aggregate",
	}
	putFloat(row, "balance", party.TotalLiabilities)
	putFloat(row, "monthly_payment", party.TotalMonthlyPayments)
	payload.Append("liabilities", row)
}

func (t *Transformer) lowerDetailedLiabilities(payload *models.RelationalPayload, record *models.CanonicalRecord, customerRef string) {
	for _, li := range record.Deal.Liabilities {
		if li == nil {
			continue
		}
		row := models.Row{
			"_operation":    models.OpInsert,
			"_customer_ref": customerRef,
		}
		putNonEmpty(row, "creditor_name", li.CreditorName)
		putNonEmpty(row, "account_number", li.AccountNumber)
		liType := li.LiabilityType.Value
		if liType == "" {
			liType = "Other"
		}
		row["liability_type"] = liType
		switch {
		case li.Balance != nil:
			row["balance"] = *li.Balance
		case li.BalanceRaw != "":
			if f := cleanCurrencyText(li.BalanceRaw); f != nil {
				row["balance"] = *f
			}
		}
		if li.MonthlyPayment != nil {
			row["monthly_payment"] = *li.MonthlyPayment
		} else {
			row["monthly_payment"] = 0.0
		}
		payload.Append("liabilities", row)
	}
}

// lowerDemographics wraps scalar findings as single-element sequences.
func (t *Transformer) lowerDemographics(payload *models.RelationalPayload, party *models.Party, customerRef string) {
	ind := party.Individual
	if ind == nil {
		return
	}
	if len(ind.Ethnicity) == 0 && len(ind.Race) == 0 && len(ind.Sex) == 0 {
		return
	}
	payload.Append("demographics", models.Row{
		"_operation":    models.OpInsert,
		"_customer_ref": customerRef,
		"ethnicity":     asSequence(ind.Ethnicity),
		"race":          asSequence(ind.Race),
		"sex":           asSequence(ind.Sex),
	})
}

// partyDiagnostics flags arrays no mapping consumed.
func partyDiagnostics(index int, party *models.Party) []string {
	var diags []string
	if len(party.IncomeDocuments) > 0 {
		diags = append(diags, fmt.Sprintf("deal.parties[%d].income_documents: %d entries not lowered", index, len(party.IncomeDocuments)))
	}
	return diags
}

// =============================================================================
// HELPERS
// =============================================================================

var usAddressRe = regexp.MustCompile(`^(.*?),\s*([A-Za-z .]+),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)

// parseUSAddress splits "street, City, ST 80202" into components, falling
// back to the raw text under "street" when the pattern does not hold.
func parseUSAddress(text string) map[string]interface{} {
	text = strings.TrimSpace(text)
	if m := usAddressRe.FindStringSubmatch(text); m != nil {
		return map[string]interface{}{
			"street": strings.TrimSpace(m[1]),
			"city":   strings.TrimSpace(m[2]),
			"state":  m[3],
			"zip":    m[4],
		}
	}
	return map[string]interface{}{"street": text}
}

func addressText(addr models.Address) string {
	if addr.FullAddress != "" {
		return addr.FullAddress
	}
	if addr.Street != "" && addr.CityStateZip != "" {
		return addr.Street + ", " + addr.CityStateZip
	}
	if addr.Street != "" {
		return addr.Street
	}
	return addr.CityStateZip
}

func preferredLoanAmount(record *models.CanonicalRecord) *float64 {
	if f := record.Deal.TransactionInformation.FinalLoanAmount; f != nil {
		return f
	}
	return record.Deal.DisclosuresAndClosing.PromissoryNote.PrincipalAmount
}

func noteBag(note models.PromissoryNote) map[string]interface{} {
	bag := map[string]interface{}{}
	putFloat(bag, "principal_amount", note.PrincipalAmount)
	putFloat(bag, "interest_rate", note.InterestRate)
	putFloat(bag, "term_months", note.TermMonths)
	return bag
}

func putNonEmpty(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func putFloat(m map[string]interface{}, key string, f *float64) {
	if f != nil {
		m[key] = *f
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func asSequence(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var currencyKeep = regexp.MustCompile(`[^0-9.\-]`)

func cleanCurrencyText(s string) *float64 {
	cleaned := currencyKeep.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return nil
	}
	var f float64
	if _, err := fmt.Sscanf(cleaned, "%f", &f); err != nil {
		return nil
	}
	return &f
}
