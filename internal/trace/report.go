package trace

import (
	"fmt"
	"sort"
	"strings"

	"navkit/internal/model"
)

// GenerateReport renders an analysis as plain text. verbose appends the raw
// journal.
func GenerateReport(result model.AnalysisResult, verbose bool) string {
	var sb strings.Builder

	title := fmt.Sprintf("navkit navigation report (v%s)", model.Version)
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	st := result.FinalState
	sb.WriteString("FINAL LOCATION\n")
	if st.FullPath == "" {
		sb.WriteString("  (no completed navigation)\n")
	} else {
		icon := model.IconActive
		if !st.PathFound {
			icon = model.IconUnknown
		}
		fmt.Fprintf(&sb, "  %s %s\n", icon, st.FullPath)
		if st.PathFound {
			fmt.Fprintf(&sb, "    pattern: %s  title: %q\n", st.PathPattern, st.Title)
		} else {
			sb.WriteString("    no route matched\n")
		}
		if len(st.PathParams) > 0 {
			fmt.Fprintf(&sb, "    params: %s\n", formatParams(st.PathParams))
		}
		if len(st.QueryParams) > 0 {
			fmt.Fprintf(&sb, "    query: %s\n", formatQuery(st.QueryParams))
		}
	}
	fmt.Fprintf(&sb, "  phase: %s\n\n", st.Phase)

	sb.WriteString("SECTIONS\n")
	if len(st.Sections) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, sec := range st.Sections {
		icon := model.IconInactive
		if sec.Active {
			icon = model.IconActive
		}
		fmt.Fprintf(&sb, "  %s %2d. %-20s %s\n", icon, sec.Index+1, sec.Title, sec.Path)
	}
	sb.WriteString("\n")

	sb.WriteString("ATTEMPTS\n")
	if len(result.Attempts) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, at := range result.Attempts {
		fmt.Fprintf(&sb, "  %2d. %-9s %-30s -> %s\n", at.Order, at.Origin, at.Target, at.Outcome)
	}
	sb.WriteString("\n")

	if len(result.Diagnostics) > 0 {
		sb.WriteString("DIAGNOSTICS\n")
		for _, d := range result.Diagnostics {
			fmt.Fprintf(&sb, "  - %s\n", d)
		}
		sb.WriteString("\n")
	}

	if verbose {
		sb.WriteString("JOURNAL\n")
		for _, ev := range result.Events {
			fmt.Fprintf(&sb, "  #%-3d %-26s", ev.Seq, ev.Type)
			if ev.Search != "" {
				fmt.Fprintf(&sb, " search=%s", ev.Search)
			}
			if ev.Path != "" {
				fmt.Fprintf(&sb, " path=%s", ev.Path)
			}
			if ev.Counter != 0 {
				fmt.Fprintf(&sb, " counter=%d", ev.Counter)
			}
			fmt.Fprintf(&sb, " phase=%s\n", ev.Phase)
		}
	}

	return sb.String()
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, " ")
}

func formatQuery(params map[string]model.QueryValue) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strings.Join(params[k].Strings(), ",")
	}
	return strings.Join(parts, " ")
}
