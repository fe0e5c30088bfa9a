package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// transformFunc converts a raw extracted value before emission.
type transformFunc func(interface{}) (interface{}, error)

var transforms = map[string]transformFunc{
	"annual_to_monthly": annualToMonthly,
	"to_float":          toFloat,
	"to_int":            toInt,
	"strip_ocr_noise":   stripOCRNoise,
}

// applyTransform runs the named transform, passing the value through when no
// transform is configured. Unknown names are an error so the rule surfaces in
// the report instead of silently emitting the raw value.
func applyTransform(name string, value interface{}) (interface{}, error) {
	if name == "" {
		return value, nil
	}
	fn, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return fn(value)
}

func annualToMonthly(value interface{}) (interface{}, error) {
	f, err := asFloat(value)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	return round2(*f / 12.0), nil
}

func toFloat(value interface{}) (interface{}, error) {
	f, err := asFloat(value)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	return *f, nil
}

func toInt(value interface{}) (interface{}, error) {
	f, err := asFloat(value)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	return int(*f), nil
}

// ocrKeepRe retains alphanumerics, whitespace and the punctuation that
// carries meaning in form values. Everything else is OCR noise.
var ocrKeepRe = regexp.MustCompile(`[^a-zA-Z0-9\s.,\-/#&'()]`)

func stripOCRNoise(value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	s = ocrKeepRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " "), nil
}

func asFloat(value interface{}) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	case string:
		return CleanCurrency(v), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to number", value)
	}
}

// currencyKeepRe retains only the characters that carry numeric meaning.
var currencyKeepRe = regexp.MustCompile(`[^0-9.\-]`)

// CleanCurrency parses a currency-ish string into a float rounded to two
// decimal places. Everything except digits, dot and minus is discarded first,
// so "$1,234.56", "1 234.56 USD" and "(see) 1234.56" all parse. Returns nil
// when nothing parseable remains.
func CleanCurrency(s string) *float64 {
	cleaned := currencyKeepRe.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	r := round2(f)
	return &r
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
