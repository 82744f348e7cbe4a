package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/metrics"
)

type dashboardModel struct {
	engine *metrics.Engine
	store  *entity.Store
	now    func() time.Time
	width  int
	height int

	data     metrics.Dashboard
	burndown []metrics.BurndownPoint
	sprint   *metrics.SprintSummary

	bar   progress.Model
	chart barchart.Model
}

func newDashboardModel(e *metrics.Engine, s *entity.Store, now func() time.Time) dashboardModel {
	return dashboardModel{
		engine: e,
		store:  s,
		now:    now,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		chart:  barchart.New(60, 10),
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
	d.bar.Width = max(10, min(40, w/4))
	d.buildChart()
}

func (d *dashboardModel) refresh() {
	d.data = d.engine.Dashboard(d.now())
	d.sprint = nil
	d.burndown = nil
	if len(d.data.ActiveSprints) > 0 {
		sp := d.data.ActiveSprints[0]
		d.sprint = &sp
		d.burndown = metrics.Burndown(sp.Sprint, d.store.Tasks(), d.data.Date, d.now().Location())
	}
	d.buildChart()
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		// The greeting and the reference day follow the clock.
		d.refresh()
	}
	return d, nil
}

func (d *dashboardModel) buildChart() {
	chartWidth := max(20, d.width-8)
	chartHeight := 8
	if d.height > 40 {
		chartHeight = 12
	}
	d.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, p := range d.burndown {
		style := successStyle
		if float64(p.Remaining) > p.Ideal {
			style = warningStyle
		}
		bars = append(bars, barchart.BarData{
			Label: p.Date.Time().Format("02"),
			Values: []barchart.BarValue{{
				Name:  "remaining",
				Value: float64(p.Remaining),
				Style: style,
			}},
		})
	}
	if len(bars) == 0 {
		return
	}
	d.chart.PushAll(bars)
	d.chart.Draw()
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	w := d.width - 4

	greeting := titleStyle.Render(d.data.Greeting) +
		mutedStyle.Render("  "+d.data.Date.Time().Format("Monday, Jan 2 2006"))

	return lipgloss.JoinVertical(lipgloss.Left,
		greeting,
		d.renderStats(w),
		d.renderTodos(w),
		d.renderHeatmap(w),
		d.renderSprintPanel(w),
		d.renderTracks(w),
	)
}

func (d dashboardModel) renderStats(w int) string {
	c := d.data.Tasks
	overdue := fmt.Sprintf("%d overdue", d.data.Overdue)
	if d.data.Overdue > 0 {
		overdue = errorStyle.Render(overdue)
	}
	lines := []string{
		fmt.Sprintf("Tracks   %s active of %d",
			highlightStyle.Render(humanize.Comma(int64(d.data.ActiveTracks))), d.data.TotalTracks),
		fmt.Sprintf("Tasks    %d to do · %d in progress · %s done · %s",
			c.Todo, c.InProgress, successStyle.Render(humanize.Comma(int64(c.Done))), overdue),
		fmt.Sprintf("Focus    %s high priority pending · %s complete",
			warningStyle.Render(humanize.Comma(int64(d.data.HighPriorityPending))),
			highlightStyle.Render(fmt.Sprintf("%.2f%%", d.data.CompletionPercent))),
	}
	journal := mutedStyle.Render(fmt.Sprintf("Journal  nothing logged in the last %d days", len(d.data.Heatmap)))
	if d.data.LoggedDays > 0 {
		mood := "n/a"
		if d.data.AvgMood > 0 {
			mood = fmt.Sprintf("%.1f/10", d.data.AvgMood)
		}
		journal = fmt.Sprintf("Journal  %d days logged · mood %s · %s focus",
			d.data.LoggedDays, mood, formatHours(d.data.TotalFocusHours))
	}
	lines = append(lines, journal)
	return panelStyle.Width(w).Render(strings.Join(lines, "\n"))
}

// renderHeatmap draws one row per week of the window, oldest first.
func (d dashboardModel) renderHeatmap(w int) string {
	title := titleStyle.Render(fmt.Sprintf("Completions, last %d days", len(d.data.Heatmap)))
	if len(d.data.Heatmap) == 0 {
		return panelStyle.Width(w).Render(title)
	}

	var rows []string
	rows = append(rows, title)
	total := 0
	for start := 0; start < len(d.data.Heatmap); start += 7 {
		week := d.data.Heatmap[start:min(start+7, len(d.data.Heatmap))]
		cells := make([]string, len(week))
		for i, day := range week {
			cells[i] = heatCell(day.Level)
			total += day.Count
		}
		label := mutedStyle.Render(week[0].Date.Time().Format("Jan 02") + " ")
		rows = append(rows, label+strings.Join(cells, " "))
	}
	legend := make([]string, metrics.MaxLevel+1)
	for i := range legend {
		legend[i] = heatCell(i)
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("%d tasks done  less ", total))+
		strings.Join(legend, " ")+mutedStyle.Render(" more"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderSprintPanel(w int) string {
	title := titleStyle.Render("Active Sprints")
	if len(d.data.ActiveSprints) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, mutedStyle.Render("No sprint is running today. Create one in Tracks."),
		))
	}

	var rows []string
	rows = append(rows, title)
	for _, s := range d.data.ActiveSprints {
		name := s.Sprint.Name
		if s.TrackTitle != "" {
			name += mutedStyle.Render(" · " + s.TrackTitle)
		}
		days := fmt.Sprintf("%d days left", s.DaysRemaining)
		if s.DaysRemaining == 1 {
			days = "1 day left"
		}
		rows = append(rows, fmt.Sprintf("  %-30s %s %3d%%  %s",
			truncate(name, 30), d.bar.ViewAs(float64(s.Progress)/100), s.Progress, mutedStyle.Render(days)))
	}

	if d.sprint != nil && len(d.burndown) > 0 {
		rows = append(rows, "", mutedStyle.Render("Burn-down: "+d.sprint.Sprint.Name), d.chart.View())
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

// renderTracks groups active tracks under their category. Inactive tracks
// are only counted.
func (d dashboardModel) renderTracks(w int) string {
	title := titleStyle.Render("Tracks")
	if len(d.data.Tracks) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, mutedStyle.Render("No tracks yet. Press 3 to create one."),
		))
	}

	var rows []string
	rows = append(rows, title)
	shown := 0
	for _, g := range d.data.Categories {
		name := g.Category
		if name == "" {
			name = "Uncategorized"
		}
		rows = append(rows, subtitleStyle.Render(name)+
			mutedStyle.Render(fmt.Sprintf("  %d/%d tasks · %d%%", g.Tasks.Done, g.Tasks.Total, g.Progress)))
		for _, t := range g.Tracks {
			rows = append(rows, fmt.Sprintf("  %s %s %3d%%  %s",
				normalItemStyle.Render(fmt.Sprintf("%-30s", truncate(t.Track.Title, 30))),
				d.bar.ViewAs(float64(t.Progress)/100),
				t.Progress,
				mutedStyle.Render(fmt.Sprintf("%d/%d tasks", t.Tasks.Done, t.Tasks.Total))))
			shown++
		}
	}
	if inactive := len(d.data.Tracks) - shown; inactive > 0 {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("+%d inactive", inactive)))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderTodos(w int) string {
	title := titleStyle.Render(fmt.Sprintf("Today %d/%d", d.data.TodosDone, len(d.data.Todos)))
	if len(d.data.Todos) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, mutedStyle.Render("No checklist yet. Open the Journal to start today's."),
		))
	}

	rows := []string{title}
	for _, td := range d.data.Todos {
		box, style := mutedStyle.Render("[ ]"), normalItemStyle
		if td.IsCompleted {
			box, style = successStyle.Render("[x]"), mutedStyle
		}
		rows = append(rows, "  "+box+" "+style.Render(td.Title))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
