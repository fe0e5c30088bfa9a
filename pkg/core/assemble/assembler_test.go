package assemble

import (
	"testing"

	"loanflow/pkg/models"
)

func TestAssembleURLARoundTrip(t *testing.T) {
	flat := models.FlatExtraction{
		"urla_borrower_name":    "John Q Doe",
		"urla_borrower_ssn":     "123-45-6789",
		"urla_loan_amount":      450000.0,
		"urla_loan_purpose":     "Purchase",
		"urla_property_address": "123 Main St, Denver, CO 80202",
	}
	record, err := NewAssembler().Assemble(models.DocTypeURLA, flat)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Deal.Parties) != 1 {
		t.Fatalf("expected one party, got %d", len(record.Deal.Parties))
	}
	borrower := record.Deal.Parties[0]
	if borrower.Individual == nil || borrower.Individual.SSN != "123-45-6789" {
		t.Errorf("ssn: got %+v", borrower.Individual)
	}
	if borrower.Individual.FullName != "John Q Doe" {
		t.Errorf("name: got %q", borrower.Individual.FullName)
	}
	if borrower.PartyRole.Value != "Borrower" {
		t.Errorf("role: got %q", borrower.PartyRole.Value)
	}
	note := record.Deal.DisclosuresAndClosing.PromissoryNote
	if note.PrincipalAmount == nil || *note.PrincipalAmount != 450000.0 {
		t.Errorf("principal: got %v", note.PrincipalAmount)
	}
	if record.Deal.TransactionInformation.LoanPurpose.Value != "Purchase" {
		t.Errorf("purpose: got %q", record.Deal.TransactionInformation.LoanPurpose.Value)
	}
	if record.DocumentMetadata.DocumentType != models.DocTypeURLA {
		t.Errorf("metadata type: got %s", record.DocumentMetadata.DocumentType)
	}
	if record.DocumentMetadata.SchemaVersion != DefaultSchemaVersion {
		t.Errorf("schema version: got %q", record.DocumentMetadata.SchemaVersion)
	}
}

func TestAssembleW2BuildsFragment(t *testing.T) {
	flat := models.FlatExtraction{
		"w2_employee_name": "Jane Doe",
		"w2_wages_annual":  96000.0,
		"w2_wages_monthly": 8000.0,
	}
	record, err := NewAssembler().Assemble(models.DocTypeW2, flat)
	if err != nil {
		t.Fatal(err)
	}
	p := record.Deal.Parties[0]
	if len(p.Employment) != 1 || p.Employment[0].MonthlyIncome.Base == nil || *p.Employment[0].MonthlyIncome.Base != 8000.0 {
		t.Errorf("monthly income: got %+v", p.Employment)
	}
	if len(p.IncomeFragments) != 1 {
		t.Fatalf("expected one fragment, got %d", len(p.IncomeFragments))
	}
	frag := p.IncomeFragments[0]
	if frag.SourceDocument != models.DocTypeW2 {
		t.Errorf("fragment source: got %s", frag.SourceDocument)
	}
	if frag.Amounts["wages_annual"] != 96000.0 {
		t.Errorf("fragment amounts: got %v", frag.Amounts)
	}
}

func TestAssembleBankStatementTransactions(t *testing.T) {
	flat := models.FlatExtraction{
		"bank_account_holder": "Jane Doe",
		"bank_transactions": []interface{}{
			map[string]interface{}{"description": "payroll", "amount": 2500.0},
			map[string]interface{}{"description": "rent", "amount": -1800.0},
		},
	}
	record, err := NewAssembler().Assemble(models.DocTypeBankStatement, flat)
	if err != nil {
		t.Fatal(err)
	}
	assets := record.Deal.Parties[0].Assets
	if len(assets) != 1 || len(assets[0].Transactions) != 2 {
		t.Fatalf("assets: got %+v", assets)
	}
	if assets[0].Transactions[0]["description"] != "payroll" {
		t.Errorf("transaction rows: got %v", assets[0].Transactions)
	}
}

func TestAssembleMergedURLAWins(t *testing.T) {
	flat := models.FlatExtraction{
		"urla_borrower_name": "John Q Doe",
		"urla_loan_amount":   450000.0,
		"w2_employee_name":   "JOHN Q DOE",
		"w2_employee_ssn":    "123-45-6789",
		"w2_wages_monthly":   8000.0,
		"bank_ending_balance": 25000.0,
		"bank_asset_type":     "CheckingAccount",
	}
	record, err := NewAssembler().AssembleMerged(flat)
	if err != nil {
		t.Fatal(err)
	}
	p := record.Deal.Parties[0]
	// URLA is primary: its name survives the W-2's variant.
	if p.Individual.FullName != "John Q Doe" {
		t.Errorf("primary value overwritten: got %q", p.Individual.FullName)
	}
	// Enrichment fills what URLA lacked.
	if p.Individual.SSN != "123-45-6789" {
		t.Errorf("enrichment missing: got %q", p.Individual.SSN)
	}
	if len(p.Assets) != 1 || p.Assets[0].EndingBalance == nil || *p.Assets[0].EndingBalance != 25000.0 {
		t.Errorf("assets: got %+v", p.Assets)
	}
	if record.DocumentMetadata.DocumentType != models.DocTypeMerged {
		t.Errorf("metadata type: got %s", record.DocumentMetadata.DocumentType)
	}
}

func TestAssembleMergedCensusWithoutURLA(t *testing.T) {
	flat := models.FlatExtraction{
		"w2_employee_name":    "Jane Doe",
		"w2_employee_ssn":     "987-65-4321",
		"w2_wages_monthly":    7500.0,
		"bank_ending_balance": 1000.0,
	}
	record, err := NewAssembler().AssembleMerged(flat)
	if err != nil {
		t.Fatal(err)
	}
	// W-2 has the most keys, so its strategy is primary.
	if record.Deal.Parties[0].Individual.FullName != "Jane Doe" {
		t.Errorf("got %q", record.Deal.Parties[0].Individual.FullName)
	}
}

func TestAssembleGenericPreservesKeys(t *testing.T) {
	flat := models.FlatExtraction{"gift_amount": 10000.0}
	record, err := NewAssembler().Assemble(models.DocTypeGiftLetter, flat)
	if err != nil {
		t.Fatal(err)
	}
	if record.DocumentMetadata.Extras["gift_amount"] != 10000.0 {
		t.Errorf("extras: got %v", record.DocumentMetadata.Extras)
	}
}

func TestCountLeaves(t *testing.T) {
	flat := models.FlatExtraction{
		"urla_borrower_name": "John Q Doe",
		"urla_borrower_ssn":  "123-45-6789",
		"urla_loan_amount":   450000.0,
	}
	record, err := NewAssembler().Assemble(models.DocTypeURLA, flat)
	if err != nil {
		t.Fatal(err)
	}
	// name + ssn + amount + injected party role = 4 non-null scalar leaves.
	if got := models.CountLeaves(record.Deal); got != 4 {
		t.Errorf("leaf count: got %d", got)
	}
}
