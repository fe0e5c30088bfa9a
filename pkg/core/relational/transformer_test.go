package relational

import (
	"encoding/json"
	"testing"

	"loanflow/pkg/models"
)

func sampleRecord() *models.CanonicalRecord {
	r := &models.CanonicalRecord{}
	r.Deal.Parties = []*models.Party{
		{
			Individual: &models.Individual{
				FullName:  "John Q Doe",
				SSN:       "123-45-6789",
				Ethnicity: []string{"Not Hispanic or Latino"},
			},
			Addresses: []*models.Address{
				{FullAddress: "456 Oak Ave, Denver, CO 80203"},
				{FullAddress: "789 Prior Ln, Boulder, CO 80301"},
			},
			Employment: []*models.Employment{
				{
					EmployerName: "Acme Widgets",
					MonthlyIncome: models.MonthlyIncome{
						Base:     models.FloatPtr(8000),
						Overtime: models.FloatPtr(500),
						Total:    models.FloatPtr(8500),
					},
				},
			},
			Assets: []*models.Asset{
				{InstitutionName: "First Bank", EndingBalance: models.FloatPtr(25000)},
			},
			PartyRole: models.EnumValue{Value: "Borrower"},
		},
		{
			CompanyName: "First National Lending",
			Individual:  &models.Individual{FullName: "Lori Officer"},
			NMLSID:      "NMLS-1234",
			PartyRole:   models.EnumValue{Value: "Lender"},
		},
	}
	r.Deal.Collateral.SubjectProperty.Address.FullAddress = "123 Main St, Denver, CO 80202"
	r.Deal.TransactionInformation.FinalLoanAmount = models.FloatPtr(450000)
	r.Deal.TransactionInformation.LoanPurpose = models.EnumValue{Value: "Purchase"}
	r.Deal.Identifiers.AgencyCaseNumber = "CASE-42"
	return r
}

func TestTransformTableAllocation(t *testing.T) {
	payload, diags := NewTransformer().Transform(sampleRecord())
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	if n := len(payload.Tables["properties"]); n != 1 {
		t.Errorf("properties: got %d rows", n)
	}
	if n := len(payload.Tables["customers"]); n != 1 {
		t.Errorf("lender must not produce a customer: got %d rows", n)
	}
	if n := len(payload.Tables["residences"]); n != 2 {
		t.Errorf("residences: got %d rows", n)
	}
	// base + overtime; total is never emitted.
	if n := len(payload.Tables["incomes"]); n != 2 {
		t.Errorf("incomes: got %d rows", n)
	}

	app := payload.Tables["applications"][0]
	if app["loan_amount"] != 450000.0 {
		t.Errorf("loan_amount: got %v", app["loan_amount"])
	}
	if app["application_number"] != "CASE-42" {
		t.Errorf("application_number: got %v", app["application_number"])
	}
	if app["_primary_customer_ref"] != "customer_0" {
		t.Errorf("primary customer ref: got %v", app["_primary_customer_ref"])
	}
	keyInfo := app["key_information"].(map[string]interface{})
	lender := keyInfo["lender"].(map[string]interface{})
	if lender["company_name"] != "First National Lending" {
		t.Errorf("lender preservation: got %v", lender)
	}
}

func TestTransformAddressParsing(t *testing.T) {
	payload, _ := NewTransformer().Transform(sampleRecord())
	prop := payload.Tables["properties"][0]
	addr := prop["address"].(map[string]interface{})
	if addr["city"] != "Denver" || addr["state"] != "CO" || addr["zip"] != "80202" {
		t.Errorf("address: got %v", addr)
	}
	res := payload.Tables["residences"]
	if res[0]["residency_type"] != "Current" || res[1]["residency_type"] != "Prior" {
		t.Errorf("residency types: got %v / %v", res[0]["residency_type"], res[1]["residency_type"])
	}
}

func TestTransformAssetValuePrecedence(t *testing.T) {
	r := sampleRecord()
	r.Deal.Parties[0].Assets = []*models.Asset{
		{CashOrMarketValueAmount: models.FloatPtr(10000), EndingBalance: models.FloatPtr(99999)},
		{EndingBalance: models.FloatPtr(5000)},
		{},
	}
	payload, _ := NewTransformer().Transform(r)
	assets := payload.Tables["assets"]
	if assets[0]["asset_value"] != 10000.0 {
		t.Errorf("cash value must win: got %v", assets[0]["asset_value"])
	}
	if assets[1]["asset_value"] != 5000.0 {
		t.Errorf("ending balance fallback: got %v", assets[1]["asset_value"])
	}
	if assets[2]["asset_value"] != 0.0 {
		t.Errorf("zero default: got %v", assets[2]["asset_value"])
	}
}

func TestTransformLiabilities(t *testing.T) {
	r := sampleRecord()
	r.Deal.Parties[0].TotalLiabilities = models.FloatPtr(32000)
	r.Deal.Liabilities = []*models.Liability{
		{CreditorName: "Visa", BalanceRaw: "$4,200.00"},
	}
	payload, _ := NewTransformer().Transform(r)
	rows := payload.Tables["liabilities"]
	if len(rows) != 2 {
		t.Fatalf("expected synthetic + detailed rows, got %d", len(rows))
	}
	if rows[0]["liability_type"] != "Aggregate" || rows[0]["balance"] != 32000.0 {
		t.Errorf("synthetic row: got %v", rows[0])
	}
	if rows[1]["balance"] != 4200.0 || rows[1]["monthly_payment"] != 0.0 {
		t.Errorf("detailed row: got %v", rows[1])
	}
}

func TestTransformDiagnosticsForUnmappedArrays(t *testing.T) {
	r := sampleRecord()
	r.Deal.Parties[0].IncomeDocuments = []map[string]interface{}{{"kind": "LES"}}
	_, diags := NewTransformer().Transform(r)
	if len(diags) != 1 {
		t.Errorf("expected one diagnostic, got %v", diags)
	}
}

func TestTransformDemographicsWrapped(t *testing.T) {
	payload, _ := NewTransformer().Transform(sampleRecord())
	demo := payload.Tables["demographics"][0]
	eth := demo["ethnicity"].([]string)
	if len(eth) != 1 || eth[0] != "Not Hispanic or Latino" {
		t.Errorf("ethnicity: got %v", eth)
	}
	if demo["race"].([]string) == nil || demo["sex"].([]string) == nil {
		t.Error("absent demographics must still be sequences")
	}
}

func TestPayloadMarshalShape(t *testing.T) {
	payload, _ := NewTransformer().Transform(sampleRecord())
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		t.Fatal(err)
	}
	if _, ok := tree["_metadata"]; !ok {
		t.Error("payload JSON must carry _metadata")
	}
	if _, ok := tree["applications"]; !ok {
		t.Error("payload JSON must carry table keys at top level")
	}
}
