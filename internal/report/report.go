// Package report renders the per-run conversion report as Markdown.
package report

import (
	"fmt"
	"strings"

	"github.com/vk/tfconvert/internal/convert"
)

// Render produces the report for one finished conversion. The report is
// written once per run and carries every diagnostic from every attempt,
// including runs that succeeded.
func Render(name string, conv *convert.Conversion) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Conversion report: %s\n\n", name)

	counts := conv.CountByStatus()
	fmt.Fprintf(&b, "**%s** after %d attempt(s): %d resource(s) — %d mapped, %d partially mapped, %d unmapped.\n\n",
		conv.State,
		conv.AttemptCount(),
		len(conv.Resources),
		counts[convert.StatusMapped],
		counts[convert.StatusPartiallyMapped],
		counts[convert.StatusUnmapped])

	b.WriteString("| Logical ID | CloudFormation type | Status | Target address | Fixes |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, row := range conv.Resources {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			row.LogicalID,
			row.SourceType,
			row.Status,
			tableCell(row.TargetAddress),
			tableCell(strings.Join(row.Fixes, ", ")))
	}

	if unmapped := unmappedRows(conv); len(unmapped) > 0 {
		b.WriteString("\n## Unmapped resources\n\n")
		for _, row := range unmapped {
			fmt.Fprintf(&b, "- `%s` (%s)\n", row.LogicalID, row.SourceType)
		}
	}

	b.WriteString("\n## Diagnostics\n\n")
	if len(conv.Diagnostics) == 0 {
		b.WriteString("None recorded.\n")
	} else {
		for _, diag := range conv.Diagnostics {
			fmt.Fprintf(&b, "- %s\n", diag.String())
		}
	}

	return []byte(b.String())
}

func tableCell(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func unmappedRows(conv *convert.Conversion) []convert.ResourceMapping {
	var rows []convert.ResourceMapping
	for _, row := range conv.Resources {
		if row.Status == convert.StatusUnmapped {
			rows = append(rows, row)
		}
	}
	return rows
}
