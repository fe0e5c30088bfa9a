package models

// FlatExtraction maps business keys (prefixed by document family, e.g.
// "w2_wages_annual", "urla_borrower_ssn") to extracted values. A value is a
// string, a float64, or an ordered sequence of sub-record maps (see Records).
// Keys are unique within one extraction; insertion order is irrelevant.
type FlatExtraction map[string]interface{}

// Clone returns a shallow copy. Sub-record slices are shared; callers that
// mutate sub-records must copy them first.
func (f FlatExtraction) Clone() FlatExtraction {
	out := make(FlatExtraction, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the value at key as a string, or "" when absent or not a string.
func (f FlatExtraction) String(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the value at key as a float64. Both float64 and int values are
// accepted since YAML and JSON decoding differ on integer literals.
func (f FlatExtraction) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Records returns the sub-record sequence at key, or nil. Table rules and
// JSON decoding both produce []interface{} element slices, so rows are
// asserted per element; a non-map element disqualifies the whole sequence.
func (f FlatExtraction) Records(key string) []map[string]interface{} {
	switch v := f[key].(type) {
	case []map[string]interface{}:
		return v
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			row, ok := item.(map[string]interface{})
			if !ok {
				return nil
			}
			out = append(out, row)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
