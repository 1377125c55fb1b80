package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mhollis/caseline/internal/plan"
	"github.com/mhollis/caseline/internal/timeline"
)

var (
	titleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	statusStyleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	statusStyleWait   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	statusStyleBad    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	statusStylePlain  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	mutedTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	errorBannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	configErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	markerStyleUser   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	markerStyleReview = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	markerStyleAgent  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	panelStyle        = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#3C3C3C")).
				Padding(0, 1)
)

const journalTailLines = 4

// View renders the current screen.
func (a *App) View() string {
	switch a.state {
	case stateForm:
		return a.viewForm()
	case stateConfirm:
		return a.viewConfirm()
	default:
		return a.viewCase()
	}
}

func (a *App) viewCase() string {
	sections := []string{
		a.renderPlanPanel(),
		a.renderErrorBanners(),
		a.menu.View(),
		a.renderTimelinePanel(),
	}
	if a.showTrace {
		sections = append(sections, a.renderTracePanel())
	}
	sections = append(sections, a.renderJournalPanel(), a.renderFooter())
	out := make([]string, 0, len(sections))
	for _, section := range sections {
		if strings.TrimSpace(section) != "" {
			out = append(out, section)
		}
	}
	return strings.Join(out, "\n")
}

func (a *App) renderPlanPanel() string {
	current, err := a.store.Current()
	if err != nil {
		body := mutedTextStyle.Render("Loading case plan…")
		if a.fetchErrMsg != "" {
			body = errorBannerStyle.Render("No plan loaded yet")
		}
		return panelStyle.Render(titleStyle.Render("CASE "+a.caseID) + "\n" + body)
	}
	lines := []string{
		titleStyle.Render("CASE " + a.caseID),
		fmt.Sprintf("Status: %s · Confidence: %.0f%%",
			statusStyleFor(current.Status).Render(current.Status.FriendlyName()),
			current.Confidence*100),
	}
	if current.Summary != "" {
		lines = append(lines, mutedTextStyle.Render(current.Summary))
	}
	if len(current.Questions) > 0 {
		lines = append(lines, statusStyleWait.Render(
			fmt.Sprintf("%d open question(s) need answers", len(current.Questions))))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func statusStyleFor(status plan.Status) lipgloss.Style {
	switch status {
	case plan.StatusApproved, plan.StatusCompleted:
		return statusStyleOK
	case plan.StatusNeedsInput, plan.StatusQueuedReview, plan.StatusEvaluating:
		return statusStyleWait
	case plan.StatusBlocked:
		return statusStyleBad
	default:
		return statusStylePlain
	}
}

func (a *App) renderErrorBanners() string {
	var lines []string
	if a.fetchErrMsg != "" {
		lines = append(lines, errorBannerStyle.Render("✗ "+a.fetchErrMsg))
	}
	if a.execErrMsg != "" {
		lines = append(lines, errorBannerStyle.Render("✗ "+a.execErrMsg))
	}
	if a.schemaErrMsg != "" {
		lines = append(lines, configErrorStyle.Render("⚠ "+a.schemaErrMsg))
	}
	if len(lines) == 0 {
		return ""
	}
	lines = append(lines, mutedTextStyle.Render("  press x to dismiss"))
	return strings.Join(lines, "\n")
}

func (a *App) renderTimelinePanel() string {
	buckets := a.timeline.Buckets(a.clock())
	if len(buckets) == 0 {
		return panelStyle.Render(titleStyle.Render("TIMELINE") + "\n" +
			mutedTextStyle.Render("No events yet"))
	}
	lines := []string{titleStyle.Render("TIMELINE")}
	for _, bucket := range buckets {
		lines = append(lines, statusStylePlain.Render("── "+bucket.Label+" ──"))
		for _, entry := range bucket.Entries {
			lines = append(lines, renderTimelineEntry(entry))
		}
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderTimelineEntry(entry timeline.Entry) string {
	marker, style := "●", markerStyleAgent
	switch entry.Category {
	case timeline.CategoryUser:
		marker, style = "◆", markerStyleUser
	case timeline.CategoryReview:
		marker, style = "▲", markerStyleReview
	}
	when := entry.Event.Timestamp.Format("15:04")
	label := string(entry.Event.Type)
	if actionID := entry.Event.ActionID(); actionID != "" {
		label += " · " + actionID
	}
	return fmt.Sprintf("%s %s  %s", style.Render(marker), mutedTextStyle.Render(when), label)
}

func (a *App) renderTracePanel() string {
	current, err := a.store.Current()
	if err != nil {
		return ""
	}
	trace := current.Trace
	lines := []string{titleStyle.Render("TRACE " + trace.TraceID)}
	if !trace.Timestamp.IsZero() {
		lines = append(lines, mutedTextStyle.Render(trace.Timestamp.Format("2006-01-02 15:04:05 MST")))
	}
	for _, rule := range trace.RulesEvaluated {
		line := fmt.Sprintf("%s → %s", rule.RuleID, rule.Outcome)
		if len(rule.Evidence) > 0 {
			line += mutedTextStyle.Render(" (" + strings.Join(rule.Evidence, "; ") + ")")
		}
		lines = append(lines, line)
	}
	for _, note := range trace.ModelNotes {
		lines = append(lines, mutedTextStyle.Render("note: "+note))
	}
	if len(lines) == 1 {
		lines = append(lines, mutedTextStyle.Render("No trace recorded"))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderJournalPanel() string {
	if a.logbook == nil {
		return ""
	}
	tail := a.logbook.Tail(journalTailLines)
	if len(tail) == 0 {
		return ""
	}
	lines := []string{titleStyle.Render("JOURNAL")}
	for _, entry := range tail {
		lines = append(lines, mutedTextStyle.Render(entry))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderFooter() string {
	keys := "enter=select  r=refresh  x=dismiss errors  u=admin  q=quit"
	if a.admin.Unlocked() {
		keys = "enter=select  r=refresh  x=dismiss errors  t=trace  u=lock  q=quit"
	}
	footer := mutedTextStyle.Render(keys)
	if a.statusMsg != "" {
		footer = statusStylePlain.Render(a.statusMsg) + "\n" + footer
	}
	return footer
}

func (a *App) viewForm() string {
	if a.form == nil {
		return a.viewCase()
	}
	return a.form.View()
}

func (a *App) viewConfirm() string {
	action, input, ok := a.gate.Pending()
	if !ok {
		return a.viewCase()
	}
	lines := []string{
		statusStyleWait.Render("⚠ CONFIRM ACTION"),
		"",
		fmt.Sprintf("%s (%s)", action.Label, action.ID),
		mutedTextStyle.Render("Intent: " + action.Intent),
	}
	if len(input) > 0 {
		lines = append(lines, "", statusStylePlain.Render("Input collected:"))
		for _, kv := range sortedPairs(input) {
			lines = append(lines, mutedTextStyle.Render("  "+kv))
		}
	}
	lines = append(lines,
		"",
		mutedTextStyle.Render("y/enter=confirm and send  n/esc=cancel  e=edit input"),
		mutedTextStyle.Render("Nothing is sent until you confirm."),
	)
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func sortedPairs(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %v", key, values[key]))
	}
	return pairs
}
