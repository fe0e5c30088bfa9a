package mismo

import (
	"regexp"
	"strconv"
	"strings"

	"loanflow/pkg/models"
)

// Namespace is the MISMO residential schema namespace.
const Namespace = "http://www.mismo.org/residential/2009/schemas"

// DefaultVersion is emitted unless the emitter is configured otherwise.
const DefaultVersion = "3.4"

// Emitter renders canonical records into MISMO XML.
type Emitter struct {
	Version string
}

// NewEmitter returns an emitter for the default MISMO version.
func NewEmitter() *Emitter {
	return &Emitter{Version: DefaultVersion}
}

// Emit builds the MESSAGE document for one canonical record.
func (e *Emitter) Emit(record *models.CanonicalRecord) string {
	version := e.Version
	if version == "" {
		version = DefaultVersion
	}

	message := NewElement("MESSAGE").Attr("xmlns", Namespace)
	about := message.Child("ABOUT_VERSIONS").Child("ABOUT_VERSION")
	about.Leaf("CreatedDatetime", "")
	about.Leaf("DataVersionIdentifier", version)

	deal := message.Child("DEAL_SETS").Child("DEAL_SET").Child("DEALS").Child("DEAL")

	e.emitParties(deal, record)
	e.emitCollateral(deal, record)
	e.emitLoan(deal, record)

	message.Prune()
	return message.Render()
}

// =============================================================================
// PARTIES
// =============================================================================

func (e *Emitter) emitParties(deal *Element, record *models.CanonicalRecord) {
	if len(record.Deal.Parties) == 0 {
		return
	}
	parties := deal.Child("PARTIES")
	for _, party := range record.Deal.Parties {
		if party == nil {
			continue
		}
		e.emitParty(parties.Child("PARTY"), party)
	}
}

func (e *Emitter) emitParty(el *Element, party *models.Party) {
	ind := party.Individual
	if ind != nil {
		individual := el.Child("INDIVIDUAL")
		name := individual.Child("NAME")
		first, middle, last := splitFullName(fullName(ind))
		name.Leaf("FirstName", first)
		name.Leaf("MiddleName", middle)
		name.Leaf("LastName", last)
		individual.Leaf("BirthDate", ind.DOB)
		individual.Leaf("MaritalStatusType", ind.MaritalStatus)

		if ind.SSN != "" {
			ti := el.Child("TAXPAYER_IDENTIFIERS").Child("TAXPAYER_IDENTIFIER")
			ti.Leaf("TaxpayerIdentifierType", "SocialSecurityNumber")
			ti.Leaf("TaxpayerIdentifierValue", ind.SSN)
		}
		if ind.Phone != "" {
			cp := el.Child("CONTACT_POINTS").Child("CONTACT_POINT").Child("CONTACT_POINT_TELEPHONE")
			cp.Leaf("ContactPointTelephoneValue", ind.Phone)
		}
	}

	if len(party.Addresses) > 0 {
		addresses := el.Child("ADDRESSES")
		for _, addr := range party.Addresses {
			if addr == nil {
				continue
			}
			emitAddress(addresses.Child("ADDRESS"), *addr)
		}
	}

	role := el.Child("ROLES").Child("ROLE")
	detail := role.Child("ROLE_DETAIL")
	roleType := party.PartyRole.Value
	if roleType == "" {
		roleType = "Borrower"
	}
	detail.Leaf("PartyRoleType", roleType)

	if roleType == "Borrower" || roleType == "CoBorrower" {
		e.emitBorrower(role.Child("BORROWER"), party)
	}
}

func (e *Emitter) emitBorrower(el *Element, party *models.Party) {
	if len(party.Employment) > 0 {
		employers := el.Child("EMPLOYERS")
		for _, emp := range party.Employment {
			if emp == nil {
				continue
			}
			employer := employers.Child("EMPLOYER")
			legal := employer.Child("LEGAL_ENTITY").Child("LEGAL_ENTITY_DETAIL")
			legal.Leaf("FullName", emp.EmployerName)
			detail := employer.Child("EMPLOYMENT")
			detail.Leaf("EmploymentPositionDescription", emp.PositionTitle)
			detail.Leaf("EmploymentStatusType", emp.EmploymentStatus.Value)
			if emp.IsSelfEmployed {
				detail.Leaf("EmploymentBorrowerSelfEmployedIndicator", "true")
			}
		}
	}

	items := collectIncomeItems(party)
	if len(items) > 0 {
		container := el.Child("CURRENT_INCOME").Child("CURRENT_INCOME_ITEMS")
		for _, item := range items {
			ci := container.Child("CURRENT_INCOME_ITEM").Child("CURRENT_INCOME_ITEM_DETAIL")
			ci.Leaf("IncomeType", item.kind)
			ci.Leaf("CurrentIncomeMonthlyTotalAmount", formatAmount(item.amount))
		}
	}

	if d := party.Declarations; d != nil {
		detail := el.Child("DECLARATION").Child("DECLARATION_DETAIL")
		detail.Leaf("CitizenshipResidencyType", d.CitizenshipResidencyType)
		detail.Leaf("IntentToOccupyType", d.IntentToOccupy)
	}
}

type incomeItem struct {
	kind   string
	amount float64
}

func collectIncomeItems(party *models.Party) []incomeItem {
	var items []incomeItem
	for _, emp := range party.Employment {
		if emp == nil {
			continue
		}
		add := func(kind string, f *float64) {
			if f != nil {
				items = append(items, incomeItem{kind, *f})
			}
		}
		add("Base", emp.MonthlyIncome.Base)
		add("Overtime", emp.MonthlyIncome.Overtime)
		add("Bonus", emp.MonthlyIncome.Bonus)
		add("Commission", emp.MonthlyIncome.Commission)
	}
	return items
}

// =============================================================================
// COLLATERAL AND LOAN
// =============================================================================

func (e *Emitter) emitCollateral(deal *Element, record *models.CanonicalRecord) {
	sp := record.Deal.Collateral.SubjectProperty
	subject := deal.Child("COLLATERALS").Child("COLLATERAL").Child("SUBJECT_PROPERTY")
	emitAddress(subject.Child("ADDRESS"), sp.Address)

	detail := subject.Child("PROPERTY_DETAIL")
	detail.Leaf("PropertyEstateType", sp.PropertyType.Value)
	detail.Leaf("PropertyUsageType", sp.OccupancyType.Value)
	detail.Leaf("PropertyStructureBuiltYear", sp.YearBuilt)

	if sp.AppraisedValue != nil {
		valuation := subject.Child("PROPERTY_VALUATIONS").Child("PROPERTY_VALUATION").Child("PROPERTY_VALUATION_DETAIL")
		valuation.Leaf("PropertyValuationAmount", formatAmount(*sp.AppraisedValue))
	}
}

func (e *Emitter) emitLoan(deal *Element, record *models.CanonicalRecord) {
	ti := record.Deal.TransactionInformation
	dc := record.Deal.DisclosuresAndClosing
	ids := record.Deal.Identifiers

	loan := deal.Child("LOANS").Child("LOAN")

	identifiers := loan.Child("LOAN_IDENTIFIERS")
	if ids.AgencyCaseNumber != "" {
		li := identifiers.Child("LOAN_IDENTIFIER")
		li.Leaf("LoanIdentifier", ids.AgencyCaseNumber)
		li.Leaf("LoanIdentifierType", "AgencyCase")
	}
	if ids.LenderLoanNumber != "" {
		li := identifiers.Child("LOAN_IDENTIFIER")
		li.Leaf("LoanIdentifier", ids.LenderLoanNumber)
		li.Leaf("LoanIdentifierType", "LenderLoan")
	}

	amortization := loan.Child("AMORTIZATION").Child("AMORTIZATION_RULE")
	amortization.Leaf("AmortizationType", ti.AmortizationType.Value)

	detail := loan.Child("LOAN_DETAIL")
	detail.Leaf("ApplicationReceivedDate", ti.ApplicationDate)
	detail.Leaf("MortgageType", ti.MortgageType.Value)

	terms := loan.Child("TERMS_OF_LOAN")
	if amt := loanAmount(record); amt != nil {
		terms.Leaf("NoteAmount", formatAmount(*amt))
	}
	if rate := noteRate(record); rate != nil {
		terms.Leaf("NoteRatePercent", formatAmount(*rate))
	}
	if term := termMonths(record); term != nil {
		terms.Leaf("LoanMaturityPeriodCount", formatAmount(*term))
	}

	purpose := loan.Child("LOAN_PURPOSE")
	purpose.Leaf("LoanPurposeType", ti.LoanPurpose.Value)

	closing := loan.Child("CLOSING_INFORMATION").Child("CLOSING_INFORMATION_DETAIL")
	closing.Leaf("ClosingDate", ti.ClosingDate)
	if dc.CashToClose != nil {
		closing.Leaf("CashToCloseAmount", formatAmount(*dc.CashToClose))
	}
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

var cityStateZipRe = regexp.MustCompile(`^(.*?),?\s*([A-Za-z .]+),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)

// emitAddress fills an ADDRESS container, parsing the US
// "City, ST ZZZZZ(-ZZZZ)?" tail out of full or combined address text.
func emitAddress(el *Element, addr models.Address) {
	street, city, state, zip := addr.Street, addr.City, addr.State, addr.Zip
	if city == "" {
		source := addr.CityStateZip
		if source == "" {
			source = addr.FullAddress
		}
		if m := cityStateZipRe.FindStringSubmatch(strings.TrimSpace(source)); m != nil {
			if street == "" {
				street = strings.TrimSpace(m[1])
			}
			city, state, zip = strings.TrimSpace(m[2]), m[3], m[4]
		} else if street == "" {
			street = addr.FullAddress
		}
	}
	el.Leaf("AddressLineText", street)
	el.Leaf("CityName", city)
	el.Leaf("StateCode", state)
	el.Leaf("PostalCode", zip)
}

// splitFullName returns First/Middle/Last for multi-token names; a single
// token becomes FirstName only.
func splitFullName(full string) (first, middle, last string) {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return "", "", ""
	case 1:
		return tokens[0], "", ""
	case 2:
		return tokens[0], "", tokens[1]
	default:
		return tokens[0], strings.Join(tokens[1:len(tokens)-1], " "), tokens[len(tokens)-1]
	}
}

func fullName(ind *models.Individual) string {
	if ind.FullName != "" {
		return ind.FullName
	}
	return strings.TrimSpace(ind.FirstName + " " + ind.LastName)
}

func loanAmount(record *models.CanonicalRecord) *float64 {
	if f := record.Deal.TransactionInformation.FinalLoanAmount; f != nil {
		return f
	}
	return record.Deal.DisclosuresAndClosing.PromissoryNote.PrincipalAmount
}

func noteRate(record *models.CanonicalRecord) *float64 {
	if f := record.Deal.TransactionInformation.InterestRate; f != nil {
		return f
	}
	return record.Deal.DisclosuresAndClosing.PromissoryNote.InterestRate
}

func termMonths(record *models.CanonicalRecord) *float64 {
	if f := record.Deal.TransactionInformation.TermMonths; f != nil {
		return f
	}
	return record.Deal.DisclosuresAndClosing.PromissoryNote.TermMonths
}

// formatAmount trims trailing zeros so 450000.0 emits as 450000 and 6.5
// stays 6.5.
func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
