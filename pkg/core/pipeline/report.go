package pipeline

import (
	"fmt"
	"strings"

	"loanflow/pkg/core/rules"
	"loanflow/pkg/models"
)

// renderReport writes the human-readable run summary.
func renderReport(result *RunResult, ruleReport []rules.RuleResult, diags []string) string {
	var sb strings.Builder
	sb.WriteString("# Extraction Run Report\n\n")
	fmt.Fprintf(&sb, "- Input: `%s`\n", result.InputPath)
	fmt.Fprintf(&sb, "- Document: %s (confidence %.2f)\n", result.Classification.DocumentCategory, result.Classification.Confidence)
	fmt.Fprintf(&sb, "- Chunks: %d\n", result.Chunks)
	if result.Canonical != nil {
		fmt.Fprintf(&sb, "- Canonical leaves: %d\n", models.CountLeaves(result.Canonical.Deal))
	}
	fmt.Fprintf(&sb, "- Duration: %s\n", result.Duration)

	sb.WriteString("\n## Rules\n\n")
	counts := map[rules.RuleStatus]int{}
	for _, rr := range ruleReport {
		counts[rr.Status]++
	}
	fmt.Fprintf(&sb, "applied=%d no_match=%d skipped=%d error=%d\n",
		counts[rules.StatusApplied], counts[rules.StatusNoMatch], counts[rules.StatusSkipped], counts[rules.StatusError])
	for _, rr := range ruleReport {
		if rr.Status == rules.StatusError {
			fmt.Fprintf(&sb, "- `%s`: %s\n", rr.RuleID, rr.Detail)
		}
	}

	sb.WriteString("\n## Validation\n\n")
	if len(result.Issues) == 0 {
		sb.WriteString("No issues.\n")
	}
	for _, issue := range result.Issues {
		fmt.Fprintf(&sb, "- **%s** `%s`: %s\n", issue.Severity, issue.Path, issue.Message)
	}

	if result.Payload != nil {
		sb.WriteString("\n## Relational\n\n")
		for _, table := range result.Payload.TableNames() {
			fmt.Fprintf(&sb, "- %s: %d row(s)\n", table, len(result.Payload.Tables[table]))
		}
	}

	if len(diags) > 0 {
		sb.WriteString("\n## Diagnostics\n\n")
		for _, d := range diags {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	return sb.String()
}
