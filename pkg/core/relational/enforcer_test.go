package relational

import (
	"reflect"
	"testing"

	"loanflow/pkg/models"
)

func TestEnforceFillsRequiredFromDefaults(t *testing.T) {
	payload := models.NewRelationalPayload()
	payload.Append("assets", models.Row{"_operation": models.OpInsert})
	NewEnforcer().Enforce(payload)
	row := payload.Tables["assets"][0]
	if row["asset_type"] != "CheckingAccount" {
		t.Errorf("default fill: got %v", row["asset_type"])
	}
	if row["asset_value"] != 0.0 {
		t.Errorf("default fill: got %v", row["asset_value"])
	}
}

func TestEnforceNullsRequiredWithoutDefault(t *testing.T) {
	payload := models.NewRelationalPayload()
	payload.Append("customers", models.Row{"_operation": models.OpUpsert})
	NewEnforcer().Enforce(payload)
	row := payload.Tables["customers"][0]
	v, exists := row["full_name"]
	if !exists || v != nil {
		t.Errorf("required without default must be explicit null, got %v (exists=%v)", v, exists)
	}
}

func TestEnforceRemovesDisallowed(t *testing.T) {
	payload := models.NewRelationalPayload()
	payload.Append("customers", models.Row{"full_name": "John", "raw_text": "..."})
	NewEnforcer().Enforce(payload)
	if _, ok := payload.Tables["customers"][0]["raw_text"]; ok {
		t.Error("disallowed key must be removed")
	}
}

func TestEnforceSkipsPairedRefIDs(t *testing.T) {
	e := NewEnforcer()
	e.schemas = map[string]TableSchema{
		"incomes": {Required: []string{"customer_id", "income_type"}},
	}
	payload := models.NewRelationalPayload()
	payload.Append("incomes", models.Row{"_customer_ref": "customer_0", "income_type": "Base"})
	e.Enforce(payload)
	if _, ok := payload.Tables["incomes"][0]["customer_id"]; ok {
		t.Error("id with paired _ref must not be required-filled")
	}
}

func TestEnforceUnknownTablePassesThrough(t *testing.T) {
	payload := models.NewRelationalPayload()
	payload.Append("exotic", models.Row{"anything": 1})
	NewEnforcer().Enforce(payload)
	if len(payload.Tables["exotic"][0]) != 1 {
		t.Error("unknown tables must be untouched")
	}
}

func TestEnforceIdempotent(t *testing.T) {
	payload := models.NewRelationalPayload()
	payload.Append("liabilities", models.Row{"balance": 100.0})
	enforcer := NewEnforcer()
	enforcer.Enforce(payload)
	first := copyRow(payload.Tables["liabilities"][0])
	enforcer.Enforce(payload)
	if !reflect.DeepEqual(first, map[string]interface{}(payload.Tables["liabilities"][0])) {
		t.Error("second enforcement pass must be a no-op")
	}
}

func copyRow(r models.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
