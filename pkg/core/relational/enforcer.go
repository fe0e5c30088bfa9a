package relational

import (
	"strings"

	"loanflow/pkg/models"
)

// TableSchema declares the enforcement lists for one destination table.
type TableSchema struct {
	Required   []string
	Defaults   map[string]interface{}
	Disallowed []string
}

// defaultSchemas covers the standard destination tables. Unknown tables pass
// through untouched.
var defaultSchemas = map[string]TableSchema{
	"properties": {
		Required: []string{"address", "property_type"},
		Defaults: map[string]interface{}{"property_type": "SingleFamily"},
	},
	"applications": {
		Required: []string{"loan_amount", "application_number"},
		Defaults: map[string]interface{}{},
	},
	"customers": {
		Required:   []string{"full_name"},
		Defaults:   map[string]interface{}{},
		Disallowed: []string{"raw_text"},
	},
	"application_customers": {
		Required: []string{"role", "sequence"},
		Defaults: map[string]interface{}{"role": "Borrower", "sequence": 0},
	},
	"employments": {
		Required: []string{"employer_name", "self_employed"},
		Defaults: map[string]interface{}{"self_employed": false},
	},
	"incomes": {
		Required: []string{"income_type"},
		Defaults: map[string]interface{}{"income_type": "Other"},
	},
	"demographics": {
		Required: []string{"ethnicity", "race", "sex"},
		Defaults: map[string]interface{}{"ethnicity": []string{}, "race": []string{}, "sex": []string{}},
	},
	"residences": {
		Required: []string{"residency_type", "address"},
		Defaults: map[string]interface{}{"residency_type": "Current"},
	},
	"assets": {
		Required: []string{"asset_type", "asset_value"},
		Defaults: map[string]interface{}{"asset_type": "CheckingAccount", "asset_value": 0.0},
	},
	"liabilities": {
		Required: []string{"liability_type", "monthly_payment"},
		Defaults: map[string]interface{}{"liability_type": "Other", "monthly_payment": 0.0},
	},
}

// Enforcer normalizes payload rows against per-table schemas.
type Enforcer struct {
	schemas map[string]TableSchema
}

// NewEnforcer returns an enforcer with the standard schemas.
func NewEnforcer() *Enforcer {
	return &Enforcer{schemas: defaultSchemas}
}

// Enforce applies the table schema to every row in place: required keys are
// filled from defaults or null, defaults cover optional-missing keys, and
// disallowed keys are removed. Reference-style keys (ending "_id" with a
// paired "_ref") skip required-fill. Idempotent per row.
func (e *Enforcer) Enforce(payload *models.RelationalPayload) {
	for table, rows := range payload.Tables {
		schema, ok := e.schemas[table]
		if !ok {
			continue
		}
		for _, row := range rows {
			enforceRow(row, schema)
		}
	}
}

func enforceRow(row models.Row, schema TableSchema) {
	for _, key := range schema.Required {
		if hasPairedRef(row, key) {
			continue
		}
		if _, exists := row[key]; exists {
			continue
		}
		if def, ok := schema.Defaults[key]; ok {
			row[key] = def
		} else {
			row[key] = nil
		}
	}
	for key, def := range schema.Defaults {
		if _, exists := row[key]; !exists {
			row[key] = def
		}
	}
	for _, key := range schema.Disallowed {
		delete(row, key)
	}
}

// hasPairedRef reports whether key is a reference id whose "_ref" sibling is
// present, e.g. customer_id with _customer_ref.
func hasPairedRef(row models.Row, key string) bool {
	if !strings.HasSuffix(key, "_id") {
		return false
	}
	ref := "_" + strings.TrimSuffix(key, "_id") + "_ref"
	_, ok := row[ref]
	return ok
}
