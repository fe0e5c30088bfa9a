package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// MODALITY-NEUTRAL RULE HANDLERS - regex, static, computed
// =============================================================================

// applyRegex runs the rule's pattern with its declared flags. Single-group
// rules emit one value through the transform chain; multi-group rules fan the
// named groups out to their destinations untransformed.
func applyRegex(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Pattern == "" {
		return false, fmt.Errorf("regex rule requires a pattern")
	}
	pattern := rule.Pattern
	if prefix := flagPrefix(rule.Flags); prefix != "" {
		pattern = prefix + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("pattern: %w", err)
	}

	// Multi-group fan-out.
	if len(rule.Groups) > 0 || len(rule.GroupsKeys) > 0 {
		m := re.FindStringSubmatch(doc.Text)
		if m == nil {
			return false, nil
		}
		any := false
		for i, name := range re.SubexpNames() {
			if name == "" || i >= len(m) || m[i] == "" {
				continue
			}
			if out.emitGroup(rule, name, strings.TrimSpace(m[i])) {
				any = true
			}
		}
		return any, nil
	}

	m := re.FindStringSubmatch(doc.Text)
	if m == nil {
		return false, nil
	}
	group := rule.Group
	if group == 0 && len(m) > 1 {
		group = 1
	}
	if group >= len(m) {
		return false, fmt.Errorf("group %d out of range", group)
	}
	value := strings.TrimSpace(m[group])
	if value == "" {
		return false, nil
	}
	return finish(rule, out, value)
}

// flagPrefix converts named flags to Go inline regex flags.
func flagPrefix(flags string) string {
	var set []string
	for _, f := range strings.Split(flags, ",") {
		switch strings.TrimSpace(strings.ToLower(f)) {
		case "ignorecase", "i":
			set = append(set, "i")
		case "multiline", "m":
			set = append(set, "m")
		case "dotall", "s":
			set = append(set, "s")
		}
	}
	if len(set) == 0 {
		return ""
	}
	return "(?" + strings.Join(set, "") + ")"
}

// applyStatic injects a constant.
func applyStatic(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Value == nil {
		return false, fmt.Errorf("static rule requires a value")
	}
	return finish(rule, out, rule.Value)
}

// applyComputed copies an already-extracted value from another destination.
func applyComputed(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.From == "" {
		return false, fmt.Errorf("computed rule requires a from reference")
	}
	value := out.lookup(rule.From)
	if value == nil {
		return false, nil
	}
	return finish(rule, out, value)
}
