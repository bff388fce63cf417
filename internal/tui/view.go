package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"navkit/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true) // Sky Blue/Cyan
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	adviceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	helpBoxStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

func phaseBadge(p model.Phase) string {
	color := lipgloss.Color("35") // green
	switch p {
	case model.PhaseRequested:
		color = lipgloss.Color("214")
	case model.PhaseInProgress:
		color = lipgloss.Color("39")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#101010")).
		Background(color).
		Padding(0, 1).
		Render(strings.TrimSpace(model.PhaseIcon(p) + " " + string(p)))
}

func (m AppModel) View() string {
	if m.ShowHelp {
		return m.renderHelpDialog()
	}

	width := m.WindowSize.Width
	height := m.WindowSize.Height
	if width == 0 {
		width, height = 100, 30
	}

	netWidth := width - 6
	if netWidth < 40 {
		netWidth = 40
	}
	leftWidth := netWidth * 2 / 5
	rightWidth := netWidth - leftWidth

	boxHeight := height - 6
	if boxHeight < 10 {
		boxHeight = 10
	}
	interiorHeight := boxHeight - 2

	header := titleStyle.Render("navkit") + " " + phaseBadge(m.State.Phase) + " " + m.addressLine()

	// LEFT PANEL: sections over links
	var leftView strings.Builder
	leftView.WriteString(headingStyle.Render("Sections"))
	leftView.WriteString("\n")
	if len(m.State.Sections) == 0 {
		leftView.WriteString(dimStyle.Render("  (no visible routes)") + "\n")
	}
	for i, sec := range m.State.Sections {
		icon := model.IconInactive
		style := normalStyle
		if sec.Active {
			icon = model.IconActive
			style = activeStyle
		}
		line := truncate(fmt.Sprintf("%s %-12s %s", icon, sec.Title, sec.Path), leftWidth-2)
		if m.Focus == FocusSections && i == m.SectionIdx {
			style = selectedStyle
		}
		leftView.WriteString(style.Render(line) + "\n")
	}

	leftView.WriteString("\n" + headingStyle.Render("Links") + "\n")
	if len(m.Links) == 0 {
		leftView.WriteString(dimStyle.Render("  (no links)") + "\n")
	}
	for i, l := range m.Links {
		icon := " "
		if l.External {
			icon = model.IconExternal
		}
		text := l.Text
		if text == "" {
			text = l.Href
		}
		line := truncate(fmt.Sprintf("%s %s", icon, text), leftWidth-2)
		style := normalStyle
		if m.Focus == FocusLinks && i == m.LinkIdx {
			style = selectedStyle
		}
		leftView.WriteString(style.Render(line) + "\n")
	}

	lBorder := borderColor
	if !m.InputMode {
		lBorder = activeColor
	}
	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lBorder).
		Render(strings.TrimSuffix(leftView.String(), "\n"))

	// RIGHT PANEL: location details over the action log
	var details strings.Builder
	details.WriteString(headingStyle.Render("Location"))
	details.WriteString("\n")
	details.WriteString(m.locationDetails())

	logHeader := headingStyle.Render(fmt.Sprintf("Actions (%d)", m.ActionCount))
	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			strings.TrimSuffix(details.String(), "\n"),
			"",
			logHeader,
			m.LogViewport.View(),
		))

	help := "Help: ↑/↓: Select • Tab: Sections/Links • Enter: Go • g: Address • b/f: Back/Forward • s: Sync • ?: Help • q: Quit"
	footer := "\n" + dimStyle.Render(help)
	if m.InputMode {
		footer = "\nGo to: " + m.InputBuffer.View()
	}
	if m.Err != nil {
		footer = "\n" + adviceStyle.Render(fmt.Sprintf("Error: %v", m.Err)) + footer
	} else if m.Notice != "" {
		footer = "\n" + adviceStyle.Render(m.Notice) + footer
	}

	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, right) + footer
}

func (m AppModel) addressLine() string {
	if m.State.FullPath == "" {
		return dimStyle.Render("(not navigated)")
	}
	if !m.State.PathFound {
		return adviceStyle.Render(model.IconUnknown + " " + m.State.FullPath)
	}
	return m.State.FullPath
}

func (m AppModel) locationDetails() string {
	st := m.State
	if st.FullPath == "" {
		return dimStyle.Render("No completed navigation yet.") + "\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Path:     %s\n", st.Path)
	if st.PathFound {
		fmt.Fprintf(&sb, "Route:    %s (%s)\n", st.Title, st.PathPattern)
	} else {
		sb.WriteString(adviceStyle.Render("Route:    no registered route matched") + "\n")
	}
	if len(st.PathParams) > 0 {
		keys := make([]string, 0, len(st.PathParams))
		for k := range st.PathParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "Param:    %s = %s\n", k, st.PathParams[k])
		}
	}
	if len(st.QueryParams) > 0 {
		keys := make([]string, 0, len(st.QueryParams))
		for k := range st.QueryParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := st.QueryParams[k]
			if v.IsFlag() {
				fmt.Fprintf(&sb, "Query:    %s (flag)\n", k)
				continue
			}
			fmt.Fprintf(&sb, "Query:    %s = %s\n", k, strings.Join(v.Strings(), ", "))
		}
	}
	return sb.String()
}

func (m AppModel) renderHelpDialog() string {
	help := strings.Join([]string{
		headingStyle.Render("navkit browser"),
		"",
		"↑/↓ k/j     select a section or link",
		"Tab         switch between sections and links",
		"Enter       navigate to the section / click the link",
		"g /         type an address (path, query, #fragment)",
		"b ←         history back",
		"f →         history forward",
		"s           re-sync with the current location",
		"PgUp/PgDn   scroll the action log",
		"q           quit",
		"",
		dimStyle.Render("Links marked " + model.IconExternal + " leave the application."),
		dimStyle.Render("press any key to close"),
	}, "\n")
	return helpBoxStyle.Render(help)
}

func truncate(s string, width int) string {
	if width < 4 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-3 {
		r = r[:width-3]
	}
	return string(r) + "..."
}
