package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// OCR RULE HANDLERS - checkbox, positional, section
// =============================================================================

// checkboxMarks are the glyph sequences OCR engines produce for a checked box.
// "XI" and "Xl" are what a filled box followed by its border edge OCRs to.
var checkboxMarks = []string{"XI", "Xl", "[X]", "[x]", "(X)", "(x)", "☑", "☒"}

const defaultCheckboxWindow = 5

// applyCheckbox locates the anchor label, then inside a vertical window looks
// for an option keyword preceded by a checked-box mark on the same line.
// Fallback: an option keyword sharing a line with any mark wins.
func applyCheckbox(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Anchor == "" || len(rule.Options) == 0 {
		return false, fmt.Errorf("checkbox rule requires anchor and options")
	}
	window := rule.Window
	if window <= 0 {
		window = defaultCheckboxWindow
	}
	lines := doc.Lines()
	anchor := strings.ToLower(rule.Anchor)

	start := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), anchor) {
			start = i
			break
		}
	}
	if start < 0 {
		return false, nil
	}

	end := start + window
	if end > len(lines) {
		end = len(lines)
	}

	// First pass: mark immediately preceding the option keyword.
	for i := start; i < end; i++ {
		line := lines[i]
		lower := strings.ToLower(line)
		for _, opt := range rule.Options {
			idx := strings.Index(lower, strings.ToLower(opt.Keyword))
			if idx < 0 {
				continue
			}
			before := strings.TrimSpace(line[:idx])
			for _, mark := range checkboxMarks {
				if strings.HasSuffix(before, mark) {
					return finish(rule, out, opt.Value)
				}
			}
		}
	}

	// Fallback: option keyword on a line that carries any mark at all.
	for i := start; i < end; i++ {
		line := lines[i]
		hasMark := false
		for _, mark := range checkboxMarks {
			if strings.Contains(line, mark) {
				hasMark = true
				break
			}
		}
		if !hasMark {
			continue
		}
		lower := strings.ToLower(line)
		for _, opt := range rule.Options {
			if strings.Contains(lower, strings.ToLower(opt.Keyword)) {
				return finish(rule, out, opt.Value)
			}
		}
	}
	return false, nil
}

const positionalBelowLimit = 10

// applyPositional captures text relative to an anchor keyword: the rest of
// the line for after/right, or the following non-blank lines for below.
func applyPositional(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.Anchor == "" {
		return false, fmt.Errorf("positional rule requires an anchor")
	}
	var captureRe *regexp.Regexp
	if rule.Capture != "" {
		var err error
		captureRe, err = regexp.Compile(rule.Capture)
		if err != nil {
			return false, fmt.Errorf("capture regex: %w", err)
		}
	}

	lines := doc.Lines()
	anchor := strings.ToLower(rule.Anchor)
	for i, line := range lines {
		idx := strings.Index(strings.ToLower(line), anchor)
		if idx < 0 {
			continue
		}
		switch rule.Direction {
		case "", "after", "right":
			rest := strings.TrimSpace(line[idx+len(rule.Anchor):])
			rest = strings.TrimLeft(rest, ":#")
			rest = strings.TrimSpace(rest)
			if value := captured(captureRe, rest); value != "" {
				return finish(rule, out, value)
			}
		case "below":
			skipped := 0
			scanned := 0
			for j := i + 1; j < len(lines) && scanned < positionalBelowLimit; j++ {
				candidate := strings.TrimSpace(lines[j])
				if candidate == "" {
					continue
				}
				scanned++
				if skipped < rule.Skip {
					skipped++
					continue
				}
				if value := captured(captureRe, candidate); value != "" {
					return finish(rule, out, value)
				}
			}
		default:
			return false, fmt.Errorf("unknown direction %q", rule.Direction)
		}
	}
	return false, nil
}

// captured applies the optional capture regex, preferring group 1.
func captured(re *regexp.Regexp, text string) string {
	if re == nil {
		return text
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[0])
}

// applySection captures everything between a start marker and an optional end
// marker, optionally reduced by a capture regex.
func applySection(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error) {
	if rule.StartMarker == "" {
		return false, fmt.Errorf("section rule requires a start_marker")
	}
	lowerText := strings.ToLower(doc.Text)
	start := strings.Index(lowerText, strings.ToLower(rule.StartMarker))
	if start < 0 {
		return false, nil
	}
	start += len(rule.StartMarker)

	end := len(doc.Text)
	if rule.EndMarker != "" {
		if rel := strings.Index(lowerText[start:], strings.ToLower(rule.EndMarker)); rel >= 0 {
			end = start + rel
		}
	}
	section := strings.TrimSpace(doc.Text[start:end])
	if section == "" {
		return false, nil
	}
	if rule.Capture != "" {
		re, err := regexp.Compile(rule.Capture)
		if err != nil {
			return false, fmt.Errorf("capture regex: %w", err)
		}
		section = captured(re, section)
		if section == "" {
			return false, nil
		}
	}
	return finish(rule, out, section)
}
