package rules

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"loanflow/pkg/models"
)

// Mode selects the extraction output shape.
type Mode int

const (
	// ModeFlat produces a flat business-key map.
	ModeFlat Mode = iota
	// ModeNested produces a nested canonical partial addressed by target paths.
	ModeNested
)

// Output accumulates extracted values in the selected mode.
type Output struct {
	Mode   Mode
	Flat   models.FlatExtraction
	Nested map[string]interface{}
}

// NewOutput prepares an empty output for the mode.
func NewOutput(mode Mode) *Output {
	return &Output{
		Mode:   mode,
		Flat:   make(models.FlatExtraction),
		Nested: make(map[string]interface{}),
	}
}

// emit routes a single value to the rule's destination. In flat mode Key
// takes precedence; in nested mode TargetPath is used. A rule without a
// destination for the active mode is a no-op.
func (o *Output) emit(rule *Rule, value interface{}) bool {
	if value == nil {
		return false
	}
	if o.Mode == ModeFlat {
		if rule.Key == "" {
			return false
		}
		o.Flat[rule.Key] = value
		return true
	}
	if rule.TargetPath == "" {
		return false
	}
	SetPath(o.Nested, rule.TargetPath, value)
	return true
}

// emitGroup routes one named group of a multi-group rule.
func (o *Output) emitGroup(rule *Rule, group string, value interface{}) bool {
	if value == nil {
		return false
	}
	if o.Mode == ModeFlat {
		key, ok := rule.GroupsKeys[group]
		if !ok {
			return false
		}
		o.Flat[key] = value
		return true
	}
	path, ok := rule.Groups[group]
	if !ok {
		return false
	}
	SetPath(o.Nested, path, value)
	return true
}

// lookup reads an already-extracted value, for computed rules.
func (o *Output) lookup(ref string) interface{} {
	if o.Mode == ModeFlat {
		return o.Flat[ref]
	}
	return GetPath(o.Nested, ref)
}

// Document is the text under extraction, with lazily-derived views.
type Document struct {
	Text  string
	lines []string
}

// NewDocument wraps raw text.
func NewDocument(text string) *Document {
	return &Document{Text: text}
}

// Lines returns the text split into lines, computed once.
func (d *Document) Lines() []string {
	if d.lines == nil {
		d.lines = strings.Split(d.Text, "\n")
	}
	return d.lines
}

// handler applies one rule kind. Returning (false, nil) means no match.
type handler func(e *Engine, rule *Rule, doc *Document, out *Output) (bool, error)

// dispatch is the single static table mapping rule type to handler. Unknown
// types are logged and skipped, never fatal.
var dispatch = map[string]handler{
	"heading":    applyHeading,
	"key_value":  applyKeyValue,
	"table":      applyTable,
	"checkbox":   applyCheckbox,
	"positional": applyPositional,
	"section":    applySection,
	"regex":      applyRegex,
	"static":     applyStatic,
	"computed":   applyComputed,
}

// Engine interprets rule files against document text.
type Engine struct {
	loader *Loader
}

// NewEngine creates an engine over a rule directory.
func NewEngine(rulesDir string) *Engine {
	return &Engine{loader: NewLoader(rulesDir)}
}

// ExtractFlat runs the document's rules in flat mode.
func (e *Engine) ExtractFlat(docType models.DocumentType, text string) (models.FlatExtraction, []RuleResult, error) {
	out, report, err := e.extract(docType, text, ModeFlat)
	if err != nil {
		return nil, report, err
	}
	return out.Flat, report, nil
}

// ExtractNested runs the document's rules in nested mode.
func (e *Engine) ExtractNested(docType models.DocumentType, text string) (map[string]interface{}, []RuleResult, error) {
	out, report, err := e.extract(docType, text, ModeNested)
	if err != nil {
		return nil, report, err
	}
	return out.Nested, report, nil
}

func (e *Engine) extract(docType models.DocumentType, text string, mode Mode) (*Output, []RuleResult, error) {
	file, err := e.loader.Load(docType)
	if err != nil {
		return nil, nil, err
	}
	out := NewOutput(mode)
	doc := NewDocument(text)
	report := make([]RuleResult, 0, len(file.Rules))
	for _, rule := range file.Rules {
		report = append(report, e.applyRule(rule, doc, out))
	}
	return out, report, nil
}

// applyRule dispatches one rule, converting panics and errors into report
// entries so one bad rule never aborts the document.
func (e *Engine) applyRule(rule *Rule, doc *Document, out *Output) (result RuleResult) {
	result = RuleResult{RuleID: rule.ID, Type: rule.Type}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[RuleEngine] rule %s panicked: %v", rule.ID, r)
			result.Status = StatusError
			result.Detail = fmt.Sprintf("panic: %v", r)
		}
	}()

	h, ok := dispatch[rule.Type]
	if !ok {
		log.Printf("[RuleEngine] unknown rule type %q (rule %s), skipping", rule.Type, rule.ID)
		result.Status = StatusSkipped
		result.Detail = "unknown rule type"
		return result
	}

	matched, err := h(e, rule, doc, out)
	switch {
	case err != nil:
		log.Printf("[RuleEngine] rule %s failed: %v", rule.ID, err)
		result.Status = StatusError
		result.Detail = err.Error()
	case matched:
		result.Status = StatusApplied
	default:
		result.Status = StatusNoMatch
	}
	return result
}

// finish applies the rule's transform and numeric coercion, then emits.
func finish(rule *Rule, out *Output, raw interface{}) (bool, error) {
	value, err := applyTransform(rule.Transform, raw)
	if err != nil {
		return false, err
	}
	if rule.Numeric {
		if s, ok := value.(string); ok {
			f := CleanCurrency(s)
			if f == nil {
				return false, nil
			}
			value = *f
		}
	}
	return out.emit(rule, value), nil
}

// =============================================================================
// NESTED PATH ADDRESSING - dotted paths with [i] indices
// =============================================================================

var pathSegmentRe = regexp.MustCompile(`^([a-zA-Z0-9_]+)(\[(\d+)\])?$`)

// SetPath writes value at a dotted path like
// "deal.parties[0].individual.ssn", growing intermediate maps and slices.
func SetPath(tree map[string]interface{}, path string, value interface{}) {
	segments := strings.Split(path, ".")
	var current interface{} = tree
	for i, seg := range segments {
		m := pathSegmentRe.FindStringSubmatch(seg)
		if m == nil {
			return
		}
		name := m[1]
		last := i == len(segments)-1

		parent, ok := current.(map[string]interface{})
		if !ok {
			return
		}

		if m[3] == "" {
			// Plain map key.
			if last {
				parent[name] = value
				return
			}
			child, ok := parent[name].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				parent[name] = child
			}
			current = child
			continue
		}

		// Indexed segment.
		idx, _ := strconv.Atoi(m[3])
		list, _ := parent[name].([]interface{})
		for len(list) <= idx {
			list = append(list, make(map[string]interface{}))
		}
		parent[name] = list
		if last {
			list[idx] = value
			return
		}
		child, ok := list[idx].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			list[idx] = child
		}
		current = child
	}
}

// GetPath reads a dotted path, returning nil when any segment is absent.
func GetPath(tree map[string]interface{}, path string) interface{} {
	segments := strings.Split(path, ".")
	var current interface{} = tree
	for _, seg := range segments {
		m := pathSegmentRe.FindStringSubmatch(seg)
		if m == nil {
			return nil
		}
		parent, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		child, exists := parent[m[1]]
		if !exists {
			return nil
		}
		if m[3] != "" {
			idx, _ := strconv.Atoi(m[3])
			list, ok := child.([]interface{})
			if !ok || idx >= len(list) {
				return nil
			}
			child = list[idx]
		}
		current = child
	}
	return current
}
