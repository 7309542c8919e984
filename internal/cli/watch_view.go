package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmagar/nugs-dl/internal/queuesync"
	"github.com/jmagar/nugs-dl/pkg/api"

	"github.com/charmbracelet/lipgloss"
)

var (
	watchTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchPanelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	watchSelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	watchSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	watchStatusStyles = map[api.JobStatus]lipgloss.Style{
		api.StatusQueued:     watchMutedStyle,
		api.StatusProcessing: watchWarnStyle,
		api.StatusComplete:   watchOKStyle,
		api.StatusFailed:     watchErrorStyle,
	}
)

func (m watchModel) View() string {
	if m.fatalErr != nil {
		return watchErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	switch m.mode {
	case watchModeLoading:
		return m.viewLoading()
	case watchModeDeleteConfirm:
		return m.viewDeleteConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m watchModel) viewLoading() string {
	text := fmt.Sprintf("%s loading queue from %s...", m.spin.View(), m.server)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, text)
}

func (m watchModel) viewBrowse() string {
	header := watchTitleStyle.Render("nugs-queue watch") +
		"  " + m.renderConnState() + "\n" +
		watchMutedStyle.Render("up/down: move | d: remove job | r: refresh | q: quit")

	if m.loadErr != nil {
		body := watchPanelStyle.Width(maxInt(m.width-2, 40)).Render(
			watchErrorStyle.Render("snapshot failed: "+m.loadErr.Error()) + "\n\n" +
				"Press r to retry, q to quit.")
		return lipgloss.JoinVertical(lipgloss.Left, header, body)
	}

	list := m.renderJobList(maxInt(m.width-2, 40))
	counts := m.renderCountsLine()
	status := m.renderStatusLine(m.width)
	return lipgloss.JoinVertical(lipgloss.Left, header, list, counts, status)
}

func (m watchModel) renderConnState() string {
	switch m.engine.ConnState() {
	case queuesync.StateOpen:
		return watchOKStyle.Render("[stream open]")
	case queuesync.StateConnecting:
		return watchWarnStyle.Render("[connecting]")
	default:
		return watchErrorStyle.Render("[disconnected]")
	}
}

func (m watchModel) renderJobList(width int) string {
	if len(m.jobs) == 0 {
		return watchPanelStyle.Width(width).Render(
			watchMutedStyle.Render("Queue is empty.\nUse 'nugs-queue add <url>' to submit downloads."))
	}

	maxRows := clampInt(m.height-10, 4, 24)
	start, end := listWindow(len(m.jobs), m.cursor, maxRows)

	lines := make([]string, 0, maxRows+2)
	if start > 0 {
		lines = append(lines, watchMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		lines = append(lines, m.renderJobRow(m.jobs[i], i == m.cursor, width))
	}
	if end < len(m.jobs) {
		lines = append(lines, watchMutedStyle.Render("..."))
	}
	return watchPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m watchModel) renderJobRow(job api.DownloadJob, selected bool, width int) string {
	badge := m.renderStatusBadge(job.Status)

	labelWidth := maxInt(width-m.bar.Width-34, 12)
	label := truncateRunes(jobLabel(job), labelWidth)

	bar := ""
	switch {
	case job.Status == api.StatusProcessing && job.Progress < 0:
		bar = watchMutedStyle.Render("working...")
	case job.Status == api.StatusProcessing || job.Status == api.StatusComplete:
		bar = m.bar.ViewAs(job.Progress / 100.0)
	}

	detail := ""
	if job.Status == api.StatusProcessing {
		parts := make([]string, 0, 3)
		if job.TotalTracks > 0 {
			parts = append(parts, fmt.Sprintf("track %d/%d", job.CurrentTrack, job.TotalTracks))
		}
		if job.SpeedBPS > 0 {
			parts = append(parts, formatSpeed(job.SpeedBPS))
		}
		if job.StartedAt != nil {
			parts = append(parts, formatElapsed(time.Since(*job.StartedAt)))
		}
		detail = watchMutedStyle.Render(strings.Join(parts, " | "))
	}

	line := fmt.Sprintf("%s %-*s %s %s", badge, labelWidth, label, bar, detail)
	if selected {
		prefix := "> "
		line = watchSelStyle.Render(prefix) + line
	} else {
		line = "  " + line
	}
	if job.Status == api.StatusFailed && strings.TrimSpace(job.ErrorMessage) != "" {
		line += "\n    " + watchErrorStyle.Render(truncateRunes(job.ErrorMessage, maxInt(width-8, 12)))
	}
	return line
}

func (m watchModel) renderStatusBadge(status api.JobStatus) string {
	style, ok := watchStatusStyles[status]
	if !ok {
		style = watchMutedStyle
	}
	return style.Render(fmt.Sprintf("%-10s", string(status)))
}

func (m watchModel) renderCountsLine() string {
	c := countJobs(m.jobs)
	return watchMutedStyle.Render(fmt.Sprintf(
		"%d jobs | queued %d | processing %d | complete %d | failed %d",
		c.Total, c.Queued, c.Processing, c.Complete, c.Failed))
}

func (m watchModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		return ""
	}
	style := watchMutedStyle
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = watchErrorStyle
	} else if strings.HasPrefix(strings.ToLower(msg), "removed") {
		style = watchOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func (m watchModel) viewDeleteConfirm() string {
	text := fmt.Sprintf(
		"Remove job '%s' from the server queue?\n\nPress y or Enter to confirm, n or Esc to cancel.",
		truncateRunes(m.confirmDeleteName, 60),
	)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 7, 12)
	panel := watchPanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// listWindow picks a [start,end) slice of total rows that keeps cursor
// visible inside a window of at most size rows.
func listWindow(total, cursor, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
