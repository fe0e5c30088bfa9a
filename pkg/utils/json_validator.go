package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ExtractJSONObject slices the first {...} substring out of an LLM response,
// tolerating markdown fences and leading prose.
func ExtractJSONObject(raw string) (string, error) {
	cleaned := CleanMarkdown(raw)
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", fmt.Errorf("JSON_NOT_FOUND: no object in response")
	}
	depth := 0
	for i := start; i < len(cleaned); i++ {
		switch cleaned[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}
	// Unbalanced braces; hand the tail to the repairer.
	return cleaned[start:], nil
}

// RepairJSON attempts to fix common JSON errors from LLM outputs: missing
// quotes around keys, single quotes, unclosed arrays/objects, trailing commas,
// TRUE/FALSE/Null casing, comments.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseLenientJSON decodes into out, escalating through three levels:
// strict JSON, repaired JSON, and finally Hjson (comments, unquoted keys).
func ParseLenientJSON(data string, out interface{}) error {
	if err := json.Unmarshal([]byte(data), out); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(data); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}

	var tree interface{}
	if err := hjson.Unmarshal([]byte(data), &tree); err != nil {
		return fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return json.Unmarshal(normalized, out)
}
