package diff

import (
	"fmt"
	"strings"

	"hintgraph/tree"
)

// FormatText formats a script as human-readable text, one edit per line.
func (s Script) FormatText() string {
	var sb strings.Builder
	for _, e := range s {
		sb.WriteString(formatEdit(e))
	}
	sum := s.Summary()
	if len(s) > 0 {
		sb.WriteString(fmt.Sprintf("\nSummary: %d edits, cost %d (%d inserted, %d deleted, %d updated, %d moved)\n",
			len(s), s.Cost(), sum.Inserted, sum.Deleted, sum.Updated, sum.Moved))
	}
	return sb.String()
}

func formatEdit(e Edit) string {
	actionChar := getActionChar(e.Op)
	switch e.Op {
	case OpInsert:
		return fmt.Sprintf("  %s %s[%d]: %s\n", actionChar, e.Path, e.Index, truncateValue(tree.Render(e.Node)))
	case OpDelete:
		return fmt.Sprintf("  %s %s: %s\n", actionChar, e.Path, truncateValue(tree.Render(e.Node)))
	case OpMove:
		return fmt.Sprintf("  %s %s -> %s[%d]\n", actionChar, e.Path, e.To, e.Index)
	default:
		if e.Replaces() {
			return fmt.Sprintf("  %s %s := %s\n", actionChar, e.Path, truncateValue(tree.Render(e.Node)))
		}
		return fmt.Sprintf("  %s %s: %s %q\n", actionChar, e.Path, e.Type, e.Value)
	}
}

func getActionChar(op Op) string {
	switch op {
	case OpInsert:
		return "+"
	case OpDelete:
		return "-"
	case OpUpdate:
		return "~"
	case OpMove:
		return ">"
	default:
		return " "
	}
}

func truncateValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")

	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}

// FormatStats returns just the statistics line.
func (s Script) FormatStats() string {
	sum := s.Summary()
	return fmt.Sprintf("%d edits, cost %d (%d+, %d-, %d~, %d>)",
		len(s), s.Cost(), sum.Inserted, sum.Deleted, sum.Updated, sum.Moved)
}
