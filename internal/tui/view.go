package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nyfy17/VitaMobile/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#AAAAAA"))
	subjectStyle = lipgloss.NewStyle().
			Bold(true)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7BD88F"))

	badgeBase = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("#1A1A1A"))
	badgeStyles = map[string]lipgloss.Style{
		"low":    badgeBase.Background(lipgloss.Color("#FF6B6B")),
		"medium": badgeBase.Background(lipgloss.Color("#F5C542")),
		"high":   badgeBase.Background(lipgloss.Color("#7BD88F")),
	}
)

// confidenceClass buckets a percentage into low, medium or high.
func confidenceClass(pct, low, high int) string {
	switch {
	case pct < low:
		return "low"
	case pct < high:
		return "medium"
	default:
		return "high"
	}
}

func (m *Model) badge(confidence float64) string {
	pct := models.ConfidencePercent(confidence)
	class := confidenceClass(pct, m.opts.LowConfidence, m.opts.HighConfidence)
	return badgeStyles[class].Render(fmt.Sprintf("%d%%", pct))
}

// View renders the current screen.
func (m *Model) View() string {
	switch m.phase {
	case phaseIdle:
		return m.viewIdle()
	case phaseComplete:
		return m.viewComplete()
	}

	parts := []string{m.viewHeader(), m.viewRecord()}
	switch m.phase {
	case phaseCategory, phaseProject:
		parts = append(parts, m.picker.View(), subtleStyle.Render("enter select · esc cancel"))
	case phaseCategoryReason, phaseProjectReason:
		field := "Category"
		if m.phase == phaseProjectReason {
			field = "Project"
		}
		parts = append(parts,
			labelStyle.Render(field+" reason"),
			m.reason.View(),
			subtleStyle.Render("enter continue · esc cancel"),
		)
	default:
		parts = append(parts, m.viewKeys())
	}
	if line := m.viewStatus(); line != "" {
		parts = append(parts, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) viewHeader() string {
	progress := fmt.Sprintf("Email %d of %d", m.stats.Position+1, m.stats.Total)
	counts := subtleStyle.Render(fmt.Sprintf("%d corrections pending", m.stats.Corrected))
	return lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("Vita Review"), "  ", progress, "  ", counts)
}

func (m *Model) viewRecord() string {
	r := m.rec
	width := max(20, m.width-4)

	lines := []string{
		subjectStyle.Render(r.Subject),
		labelStyle.Render("From: ") + r.SenderDisplay(),
		labelStyle.Render("Date: ") + displayDate(r),
	}
	if r.OnelineSummary != "" {
		lines = append(lines, "", r.OnelineSummary)
	}

	lines = append(lines, "",
		labelStyle.Render("Category: ")+orDefault(r.AICategory, "Not analyzed")+" "+m.badge(r.CategoryConfidence),
	)
	if r.CategoryReasoning != "" {
		lines = append(lines, subtleStyle.Render(wrap(r.CategoryReasoning, width-2)))
	}
	lines = append(lines,
		labelStyle.Render("Project: ")+orDefault(r.OriginalProject(), "None")+" "+m.badge(r.ProjectConfidence),
	)
	if r.ProjectClues != "" {
		lines = append(lines, subtleStyle.Render(wrap(r.ProjectClues, width-2)))
	}

	if m.showBody {
		lines = append(lines, "", m.body.View())
	}
	return boxStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) viewKeys() string {
	body := "t show body"
	if m.showBody {
		body = "t hide body · ↑/↓ scroll"
	}
	return subtleStyle.Render("a approve · c correct · s skip · e export · " + body + " · q quit")
}

func (m *Model) viewStatus() string {
	if m.busy {
		return subtleStyle.Render("Saving...")
	}
	if m.errMsg != "" {
		return errorStyle.Render(m.errMsg)
	}
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	return ""
}

func (m *Model) viewIdle() string {
	lines := []string{
		titleStyle.Render("Vita Review"),
		"",
		"No snapshot loaded. Run `vita load <file>` to start reviewing.",
	}
	if m.stats.Corrected > 0 {
		lines = append(lines, fmt.Sprintf("%d corrections pending. Press e to export.", m.stats.Corrected))
	}
	lines = append(lines, "", subtleStyle.Render("e export · q quit"))
	if line := m.viewStatus(); line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewComplete() string {
	lines := []string{
		titleStyle.Render("Review complete"),
		"",
		fmt.Sprintf("All %d emails reviewed. %d corrections pending.", m.stats.Total, m.stats.Corrected),
	}
	if m.exported != "" {
		lines = append(lines,
			"",
			"Next steps:",
			"  1. Copy "+m.exported+" to the desktop machine.",
			"  2. Import it with the classifier to apply the corrections.",
			"  3. Load a fresh snapshot with `vita load` for the next batch.",
		)
	}
	lines = append(lines, "", subtleStyle.Render("e export · q quit"))
	if line := m.viewStatus(); line != "" {
		lines = append(lines, line)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func displayDate(r models.ReviewRecord) string {
	if t, ok := r.Timestamp(); ok {
		return t.Local().Format("Mon Jan 2, 2006 3:04 PM")
	}
	return orDefault(r.DateString(), "Unknown date")
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(max(10, width)).Render(s)
}
